package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/richa-2701/leadpilot/internal/messaging"
	"github.com/richa-2701/leadpilot/internal/models"
	"github.com/richa-2701/leadpilot/internal/store"
)

var testNow = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func seedReminder(t *testing.T, st *store.MemoryStore, at time.Time, message string) *models.Reminder {
	t.Helper()
	rem := &models.Reminder{
		UserID:   1,
		Phone:    "+919999900001",
		Message:  message,
		RemindAt: at,
		Status:   models.ReminderStatusPending,
	}
	if err := st.CreateReminder(rem); err != nil {
		t.Fatalf("CreateReminder: %v", err)
	}
	return rem
}

func TestReminderDispatchSendsOnlyDue(t *testing.T) {
	st := store.NewMemoryStore()
	msg := messaging.NewMockService()
	seedReminder(t, st, testNow.Add(-time.Minute), "call Acme back")
	future := seedReminder(t, st, testNow.Add(time.Hour), "prep the demo")

	d := NewReminderDispatcher(st, msg, WithReminderClock(func() time.Time { return testNow }))
	d.DispatchDue(context.Background())

	sent := msg.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent = %+v", sent)
	}
	if !strings.Contains(sent[0].Body, "⏰ Reminder: call Acme back") {
		t.Errorf("body = %q", sent[0].Body)
	}

	// The due reminder moved to sent; the future one is still pending.
	after, _ := st.DueReminders(testNow.Add(2 * time.Hour))
	if len(after) != 1 || after[0].ID != future.ID {
		t.Errorf("pending after dispatch = %+v", after)
	}
}

func TestReminderDispatchMarksFailures(t *testing.T) {
	st := store.NewMemoryStore()
	msg := messaging.NewMockService()
	msg.FailWith(errors.New("transport down"))
	seedReminder(t, st, testNow.Add(-time.Minute), "call Acme back")

	d := NewReminderDispatcher(st, msg, WithReminderClock(func() time.Time { return testNow }))
	d.DispatchDue(context.Background())

	// Failed reminders do not stay due.
	pending, _ := st.DueReminders(testNow)
	if len(pending) != 0 {
		t.Errorf("pending = %+v", pending)
	}
}

func TestDripDispatchRetriesThenFails(t *testing.T) {
	st := store.NewMemoryStore()
	msg := messaging.NewMockService()
	drip := &models.DripMessage{
		LeadID: 1,
		Phone:  "+919888800001",
		Body:   "checking in",
		SendAt: testNow.Add(-time.Minute),
		Status: DripStatusPending,
	}
	if err := st.CreateDripMessage(drip); err != nil {
		t.Fatalf("CreateDripMessage: %v", err)
	}

	msg.FailWith(errors.New("transport down"))
	d := NewDripDispatcher(st, msg, WithDripClock(func() time.Time { return testNow }))

	// Two failures keep the message pending for another round.
	d.DispatchDue(context.Background())
	d.DispatchDue(context.Background())
	due, _ := st.DueDripMessages(testNow)
	if len(due) != 1 || due[0].Attempts != 2 {
		t.Fatalf("due = %+v", due)
	}

	// The third failure exhausts the attempts.
	d.DispatchDue(context.Background())
	due, _ = st.DueDripMessages(testNow)
	if len(due) != 0 {
		t.Errorf("due after exhaustion = %+v", due)
	}
}

func TestDripDispatchSends(t *testing.T) {
	st := store.NewMemoryStore()
	msg := messaging.NewMockService()
	drip := &models.DripMessage{
		LeadID: 1,
		Phone:  "+919888800001",
		Body:   "checking in",
		SendAt: testNow.Add(-time.Minute),
		Status: DripStatusPending,
	}
	if err := st.CreateDripMessage(drip); err != nil {
		t.Fatalf("CreateDripMessage: %v", err)
	}

	d := NewDripDispatcher(st, msg, WithDripClock(func() time.Time { return testNow }))
	d.DispatchDue(context.Background())

	sent := msg.Sent()
	if len(sent) != 1 || sent[0].To != "+919888800001" || sent[0].Body != "checking in" {
		t.Fatalf("sent = %+v", sent)
	}
	due, _ := st.DueDripMessages(testNow)
	if len(due) != 0 {
		t.Errorf("due after send = %+v", due)
	}
}
