package flow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/richa-2701/leadpilot/internal/extract"
	"github.com/richa-2701/leadpilot/internal/messaging"
	"github.com/richa-2701/leadpilot/internal/models"
	"github.com/richa-2701/leadpilot/internal/store"
)

var testNow = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC) // a Monday morning

const (
	testSenderPhone = "+919999900001"
	otherUserPhone  = "+919999900002"
)

func newTestRouter(t *testing.T) (*Router, *store.MemoryStore, *messaging.MockService) {
	t.Helper()
	st := store.NewMemoryStore()
	msg := messaging.NewMockService()
	r := NewRouter(st, msg, extract.NewStatic(), WithClock(func() time.Time { return testNow }))

	if err := st.CreateUser(&models.User{Username: "Ravi", Phone: testSenderPhone, Role: "admin"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := st.CreateUser(&models.User{Username: "Priya", Phone: otherUserPhone}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return r, st, msg
}

func route(t *testing.T, r *Router, text string) models.RouteResult {
	t.Helper()
	return r.Route(context.Background(), models.InboundMessage{
		Sender: testSenderPhone,
		Text:   text,
		Source: models.SourceApp,
	})
}

func seedLead(t *testing.T, st *store.MemoryStore, company string) *models.Lead {
	t.Helper()
	lead := &models.Lead{
		CompanyName: company,
		ContactName: "Contact",
		Phone:       "+919888800001",
		Status:      models.LeadStatusNew,
	}
	if err := st.CreateLead(lead); err != nil {
		t.Fatalf("CreateLead: %v", err)
	}
	return lead
}

func TestRouteUnknownSenderDenied(t *testing.T) {
	r, _, _ := newTestRouter(t)
	res := r.Route(context.Background(), models.InboundMessage{
		Sender: "+917000000000",
		Text:   "hello",
		Source: models.SourceApp,
	})
	if res.Status != "denied" {
		t.Errorf("status = %q, want denied", res.Status)
	}
	if !strings.Contains(res.Reply, "Access denied") {
		t.Errorf("reply = %q", res.Reply)
	}
}

func TestRouteGreetingAndHelp(t *testing.T) {
	r, _, _ := newTestRouter(t)

	res := route(t, r, "hi")
	if !strings.Contains(res.Reply, "Hello") {
		t.Errorf("greeting reply = %q", res.Reply)
	}

	res = route(t, r, "what can you do??")
	if !strings.Contains(res.Reply, "didn't understand") {
		t.Errorf("help reply = %q", res.Reply)
	}
}

func TestNewLeadCreation(t *testing.T) {
	r, st, _ := newTestRouter(t)

	res := route(t, r, "New Lead Acme Corp, Ravi Kumar, 9876543210")
	if !strings.Contains(res.Reply, "New lead created: Acme Corp") {
		t.Fatalf("reply = %q", res.Reply)
	}

	lead, err := st.FindLeadByCompany("Acme Corp")
	if err != nil || lead == nil {
		t.Fatalf("lead not created: %v", err)
	}
	if lead.ContactName != "Ravi Kumar" {
		t.Errorf("contact = %q", lead.ContactName)
	}
	if lead.Phone != "+919876543210" {
		t.Errorf("phone = %q, want canonical form", lead.Phone)
	}
	if lead.Status != models.LeadStatusNew {
		t.Errorf("status = %q", lead.Status)
	}

	// The nurture sequence is queued against the lead's phone.
	drips, err := st.DueDripMessages(testNow.Add(100 * time.Hour))
	if err != nil {
		t.Fatalf("DueDripMessages: %v", err)
	}
	if len(drips) != 2 {
		t.Fatalf("drip messages = %d, want 2", len(drips))
	}
	if drips[0].SendAt != testNow.Add(24*time.Hour) || drips[1].SendAt != testNow.Add(72*time.Hour) {
		t.Errorf("drip schedule: %v, %v", drips[0].SendAt, drips[1].SendAt)
	}
}

func TestNewLeadDuplicateRejected(t *testing.T) {
	r, st, _ := newTestRouter(t)
	seedLead(t, st, "Acme Corp")

	res := route(t, r, "New Lead Acme Corp, Someone, 9876500000")
	if !strings.Contains(res.Reply, "already exists") {
		t.Errorf("reply = %q", res.Reply)
	}
}

func TestQualifyCollectsMissingDetailsThenAdvances(t *testing.T) {
	r, st, _ := newTestRouter(t)
	lead := seedLead(t, st, "Acme Corp")

	res := route(t, r, "Qualify lead for Acme Corp")
	if !strings.Contains(res.Reply, "marked as Qualified") {
		t.Fatalf("reply = %q", res.Reply)
	}
	if !strings.Contains(res.Reply, "Address, Segment, Team Size, Email, Remark") {
		t.Errorf("missing-field prompt = %q", res.Reply)
	}

	got, _ := st.GetLead(lead.ID)
	if got.Status != models.LeadStatusQualified {
		t.Fatalf("status = %q, want Qualified", got.Status)
	}

	// The next message fills the missing fields in order.
	res = route(t, r, "MG Road Indore, Manufacturing, 50, buyer@acme.example, strong fit")
	if !strings.Contains(res.Reply, "Updated") {
		t.Fatalf("reply = %q", res.Reply)
	}
	got, _ = st.GetLead(lead.ID)
	if got.Address != "MG Road Indore" || got.Segment != "Manufacturing" ||
		got.TeamSize != "50" || got.Email != "buyer@acme.example" || got.Remark != "strong fit" {
		t.Errorf("fields not applied: %+v", got)
	}
	if !strings.Contains(res.Reply, "(yes/no)") {
		t.Errorf("expected the next-phase question, got %q", res.Reply)
	}

	// A positive answer ends the dialogue with the meeting command.
	res = route(t, r, "yes")
	if !strings.Contains(res.Reply, "Schedule meeting with Acme Corp") {
		t.Errorf("reply = %q", res.Reply)
	}

	// The dialogue is over: a greeting routes normally again.
	res = route(t, r, "hi")
	if !strings.Contains(res.Reply, "Hello") {
		t.Errorf("context not cleared, reply = %q", res.Reply)
	}
}

func TestQualifySkipLeavesFieldsUntouched(t *testing.T) {
	r, st, _ := newTestRouter(t)
	lead := seedLead(t, st, "Acme Corp")

	route(t, r, "Qualify lead for Acme Corp")
	res := route(t, r, "skip")
	if !strings.Contains(res.Reply, "(yes/no)") {
		t.Fatalf("skip must still advance, reply = %q", res.Reply)
	}

	got, _ := st.GetLead(lead.ID)
	if got.Address != "" || got.Segment != "" || got.Email != "" {
		t.Errorf("skip mutated the lead: %+v", got)
	}

	// A non-positive answer gets the demo command instead.
	res = route(t, r, "no")
	if !strings.Contains(res.Reply, "Schedule demo for Acme Corp") {
		t.Errorf("reply = %q", res.Reply)
	}
}

func TestQualifyCompleteLeadSkipsDetailsStep(t *testing.T) {
	r, st, _ := newTestRouter(t)
	lead := seedLead(t, st, "Acme Corp")
	lead.Address = "MG Road"
	lead.Segment = "Manufacturing"
	lead.TeamSize = "50"
	lead.Email = "buyer@acme.example"
	lead.Remark = "inbound"
	if err := st.UpdateLead(lead); err != nil {
		t.Fatalf("UpdateLead: %v", err)
	}

	res := route(t, r, "Qualify lead for Acme Corp")
	if !strings.Contains(res.Reply, "All details are on file") {
		t.Fatalf("reply = %q", res.Reply)
	}
	if !strings.Contains(res.Reply, "(yes/no)") {
		t.Errorf("expected the next-phase question, got %q", res.Reply)
	}
}

func TestQualifyUnknownCompanyAsksForName(t *testing.T) {
	r, st, _ := newTestRouter(t)
	seedLead(t, st, "Acme Corp")

	res := route(t, r, "Qualify lead for Globex")
	if !strings.Contains(res.Reply, "Which company") {
		t.Fatalf("reply = %q", res.Reply)
	}

	// The entire next message is read as the company name.
	res = route(t, r, "Acme Corp")
	if !strings.Contains(res.Reply, "marked as Qualified") {
		t.Errorf("reply = %q", res.Reply)
	}
}

func TestQualifyPendingLookupFailureClearsContext(t *testing.T) {
	r, _, _ := newTestRouter(t)

	route(t, r, "Qualify lead for Globex")
	res := route(t, r, "Still Nonexistent")
	if !strings.Contains(res.Reply, "No lead found") {
		t.Fatalf("reply = %q", res.Reply)
	}

	// No re-prompt: the next message routes normally.
	res = route(t, r, "hi")
	if !strings.Contains(res.Reply, "Hello") {
		t.Errorf("context not cleared, reply = %q", res.Reply)
	}
}

func TestPendingContextBeatsCommands(t *testing.T) {
	r, st, _ := newTestRouter(t)
	lead := seedLead(t, st, "Acme Corp")

	route(t, r, "Qualify lead for Acme Corp")

	// Even a well-formed scheduling command is consumed by the pending
	// dialogue; no event may be booked.
	res := route(t, r, "Schedule meeting with Acme Corp on tomorrow 3pm")
	if !strings.Contains(res.Reply, "(yes/no)") {
		t.Fatalf("expected dialogue continuation, got %q", res.Reply)
	}
	ev, err := st.LatestEvent(lead.ID, models.EventTypeMeeting, models.EventPhaseScheduled)
	if err != nil {
		t.Fatalf("LatestEvent: %v", err)
	}
	if ev != nil {
		t.Error("a meeting was booked while a dialogue was pending")
	}
}

func TestMeetingLifecycle(t *testing.T) {
	r, st, _ := newTestRouter(t)
	lead := seedLead(t, st, "Acme Corp")

	res := route(t, r, "Schedule meeting with Acme Corp on tomorrow 3pm")
	if !strings.Contains(res.Reply, "Meeting scheduled with Acme Corp") {
		t.Fatalf("reply = %q", res.Reply)
	}

	ev, _ := st.LatestEvent(lead.ID, models.EventTypeMeeting, models.EventPhaseScheduled)
	if ev == nil {
		t.Fatal("no scheduled meeting")
	}
	if ev.StartAt.Day() != 3 || ev.StartAt.Hour() != 15 {
		t.Errorf("start = %v", ev.StartAt)
	}
	if ev.EndAt.Sub(ev.StartAt) != time.Hour {
		t.Errorf("duration = %v", ev.EndAt.Sub(ev.StartAt))
	}
	got, _ := st.GetLead(lead.ID)
	if got.Status != models.LeadStatusMeetingScheduled {
		t.Errorf("status = %q", got.Status)
	}

	// Pre-meeting reminder was queued for the sender.
	rems, _ := st.DueReminders(testNow.Add(48 * time.Hour))
	if len(rems) != 1 || !strings.Contains(rems[0].Message, "meeting") {
		t.Fatalf("reminders = %+v", rems)
	}

	// Closing the meeting opens the post-meeting dialogue.
	res = route(t, r, "Meeting done for Acme Corp, they want a demo")
	if !strings.Contains(res.Reply, "marked as done") {
		t.Fatalf("reply = %q", res.Reply)
	}
	ev, _ = st.LatestEvent(lead.ID, models.EventTypeMeeting, models.EventPhaseDone)
	if ev == nil {
		t.Fatal("meeting not closed")
	}
	if ev.Remark != "they want a demo" {
		t.Errorf("remark = %q", ev.Remark)
	}
	got, _ = st.GetLead(lead.ID)
	if got.Status != models.LeadStatusMeetingDone {
		t.Errorf("status = %q", got.Status)
	}

	// "no" to changed details, then enrichment, then the demo prompt.
	res = route(t, r, "no")
	if !strings.Contains(res.Reply, "capture for Acme Corp") {
		t.Fatalf("reply = %q", res.Reply)
	}
	res = route(t, r, "Manufacturing, 120")
	if !strings.Contains(res.Reply, "Schedule demo for Acme Corp") {
		t.Fatalf("reply = %q", res.Reply)
	}
	got, _ = st.GetLead(lead.ID)
	if got.Segment != "Manufacturing" || got.TeamSize != "120" {
		t.Errorf("enrichment not applied: %+v", got)
	}
}

func TestMeetingDoneCoreUpdateBranch(t *testing.T) {
	r, st, _ := newTestRouter(t)
	lead := seedLead(t, st, "Acme Corp")
	if err := st.CreateEvent(&models.Event{
		LeadID:  lead.ID,
		Type:    models.EventTypeMeeting,
		Phase:   models.EventPhaseScheduled,
		StartAt: testNow.Add(-time.Hour),
	}); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	route(t, r, "Meeting done for Acme Corp")
	res := route(t, r, "yes")
	if !strings.Contains(res.Reply, "updated details") {
		t.Fatalf("reply = %q", res.Reply)
	}

	res = route(t, r, "Acme Industries, Sunil Shah, 9876511111")
	if !strings.Contains(res.Reply, "Updated") {
		t.Fatalf("reply = %q", res.Reply)
	}
	got, _ := st.GetLead(lead.ID)
	if got.CompanyName != "Acme Industries" || got.ContactName != "Sunil Shah" {
		t.Errorf("core details not applied: %+v", got)
	}
	if got.Phone != "+919876511111" {
		t.Errorf("phone = %q", got.Phone)
	}

	// The dialogue continues into the enrichment step under the new name.
	res = route(t, r, "skip")
	if !strings.Contains(res.Reply, "Schedule demo for Acme Industries") {
		t.Errorf("reply = %q", res.Reply)
	}
}

func TestMeetingConflictRejected(t *testing.T) {
	r, st, _ := newTestRouter(t)
	seedLead(t, st, "Acme Corp")
	seedLead(t, st, "Beta Ltd")

	route(t, r, "Schedule meeting with Acme Corp on tomorrow 3pm")
	res := route(t, r, "Schedule meeting with Beta Ltd on tomorrow 3pm")
	if !strings.Contains(res.Reply, "clashes") {
		t.Errorf("reply = %q", res.Reply)
	}
}

func TestDemoDoneQueuesFollowUp(t *testing.T) {
	r, st, _ := newTestRouter(t)
	lead := seedLead(t, st, "Acme Corp")

	route(t, r, "Schedule demo for Acme Corp on tomorrow 11am")
	got, _ := st.GetLead(lead.ID)
	if got.Status != models.LeadStatusDemoScheduled {
		t.Fatalf("status = %q", got.Status)
	}

	res := route(t, r, "Demo done for Acme Corp")
	if !strings.Contains(res.Reply, "Demo for Acme Corp marked as done") {
		t.Fatalf("reply = %q", res.Reply)
	}
	got, _ = st.GetLead(lead.ID)
	if got.Status != models.LeadStatusDemoDone {
		t.Errorf("status = %q", got.Status)
	}

	// Pre-demo reminders are replaced by a single follow-up nudge.
	rems, _ := st.DueReminders(testNow.Add(200 * time.Hour))
	if len(rems) != 1 {
		t.Fatalf("reminders = %+v", rems)
	}
	if !strings.Contains(rems[0].Message, "Follow up with Acme Corp") {
		t.Errorf("message = %q", rems[0].Message)
	}
	if !rems[0].RemindAt.Equal(testNow.Add(72 * time.Hour)) {
		t.Errorf("remind at = %v", rems[0].RemindAt)
	}
}

func TestNotInterestedWithRemark(t *testing.T) {
	r, st, _ := newTestRouter(t)
	lead := seedLead(t, st, "Acme Corp")

	res := route(t, r, "Acme Corp is not interested because budget freeze")
	if !strings.Contains(res.Reply, "marked as Not Interested") {
		t.Fatalf("reply = %q", res.Reply)
	}
	got, _ := st.GetLead(lead.ID)
	if got.Status != models.LeadStatusNotInterested {
		t.Errorf("status = %q", got.Status)
	}
	if !strings.Contains(got.Remark, "budget freeze") {
		t.Errorf("remark = %q", got.Remark)
	}
}

func TestSetReminder(t *testing.T) {
	r, st, _ := newTestRouter(t)
	lead := seedLead(t, st, "Acme Corp")

	res := route(t, r, "Remind me to send the brochure for Acme Corp at tomorrow 10am")
	if !strings.Contains(res.Reply, "Reminder set") {
		t.Fatalf("reply = %q", res.Reply)
	}

	rems, _ := st.DueReminders(testNow.Add(48 * time.Hour))
	if len(rems) != 1 {
		t.Fatalf("reminders = %+v", rems)
	}
	if rems[0].LeadID != lead.ID || !strings.Contains(rems[0].Message, "send the brochure") {
		t.Errorf("reminder = %+v", rems[0])
	}
}

func TestReassignNotifiesNewAssignee(t *testing.T) {
	r, st, msg := newTestRouter(t)
	lead := seedLead(t, st, "Acme Corp")

	res := route(t, r, "Reassign Acme Corp to Priya")
	if !strings.Contains(res.Reply, "reassigned to Priya") {
		t.Fatalf("reply = %q", res.Reply)
	}
	got, _ := st.GetLead(lead.ID)
	priya, _ := st.FindUserByName("Priya")
	if got.AssignedTo != priya.ID {
		t.Errorf("assigned to %d, want %d", got.AssignedTo, priya.ID)
	}

	sent := msg.Sent()
	if len(sent) != 1 || sent[0].To != otherUserPhone {
		t.Fatalf("notifications = %+v", sent)
	}
	if !strings.Contains(sent[0].Body, "assigned to you") {
		t.Errorf("body = %q", sent[0].Body)
	}
}

func TestActivityWithDateQueuesReminder(t *testing.T) {
	r, st, _ := newTestRouter(t)
	lead := seedLead(t, st, "Acme Corp")

	res := route(t, r, "Add activity for Acme Corp, call back tomorrow 4pm")
	if !strings.Contains(res.Reply, "Activity added") {
		t.Fatalf("reply = %q", res.Reply)
	}
	if !strings.Contains(res.Reply, "Follow-up reminder set") {
		t.Errorf("reply = %q", res.Reply)
	}

	logs, _ := st.ActivityLogs(lead.ID)
	if len(logs) == 0 || !strings.Contains(logs[0].Details, "call back") {
		t.Errorf("logs = %+v", logs)
	}
	rems, _ := st.DueReminders(testNow.Add(48 * time.Hour))
	if len(rems) != 1 {
		t.Errorf("reminders = %+v", rems)
	}
}

func TestDiscussionLifecycle(t *testing.T) {
	r, st, _ := newTestRouter(t)
	lead := seedLead(t, st, "Acme Corp")

	res := route(t, r, "Schedule discussion for Acme Corp, tomorrow 2pm")
	if !strings.Contains(res.Reply, "Discussion with Acme Corp scheduled") {
		t.Fatalf("reply = %q", res.Reply)
	}

	res = route(t, r, "Discussion done for Acme Corp, they asked for pricing")
	if !strings.Contains(res.Reply, "marked as done") {
		t.Fatalf("reply = %q", res.Reply)
	}

	// The scheduled reminder was completed, not left pending.
	rems, _ := st.DueReminders(testNow.Add(48 * time.Hour))
	if len(rems) != 0 {
		t.Errorf("pending reminders = %+v", rems)
	}
	logs, _ := st.ActivityLogs(lead.ID)
	var found bool
	for _, l := range logs {
		if strings.Contains(l.Details, "they asked for pricing") {
			found = true
		}
	}
	if !found {
		t.Errorf("outcome not logged: %+v", logs)
	}
}

func TestWhatsAppSourceSendsReply(t *testing.T) {
	r, _, msg := newTestRouter(t)

	res := r.Route(context.Background(), models.InboundMessage{
		Sender:      testSenderPhone,
		Text:        "hi",
		ReplyTarget: testSenderPhone,
		Source:      models.SourceWhatsApp,
	})
	if !res.Sent {
		t.Error("expected Sent to be true")
	}
	sent := msg.Sent()
	if len(sent) != 1 || sent[0].To != testSenderPhone {
		t.Fatalf("sent = %+v", sent)
	}
	if sent[0].Body != res.Reply {
		t.Errorf("body %q != reply %q", sent[0].Body, res.Reply)
	}
}

func TestAppSourceDoesNotSend(t *testing.T) {
	r, _, msg := newTestRouter(t)

	res := route(t, r, "hi")
	if res.Sent {
		t.Error("app-sourced messages must not be sent over the transport")
	}
	if len(msg.Sent()) != 0 {
		t.Errorf("sent = %+v", msg.Sent())
	}
}

func TestTransientSendFailureIsRetried(t *testing.T) {
	st := store.NewMemoryStore()
	if err := st.CreateUser(&models.User{Username: "Ravi", Phone: testSenderPhone, Role: "admin"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	mock := messaging.NewMockService()
	mock.FailNTimes(1, errors.New("gateway returned 503"))
	svc := messaging.NewRetryingService(mock, messaging.RetryPolicy{Sleep: func(time.Duration) {}})
	r := NewRouter(st, svc, extract.NewStatic(), WithClock(func() time.Time { return testNow }))

	res := r.Route(context.Background(), models.InboundMessage{
		Sender:      testSenderPhone,
		Text:        "hi",
		ReplyTarget: testSenderPhone,
		Source:      models.SourceWhatsApp,
	})
	if !res.Sent {
		t.Error("reply lost to a transient failure")
	}
	if got := mock.Sent(); len(got) != 1 {
		t.Errorf("sent = %+v, want exactly one delivered message", got)
	}
}

// statusFailStore rejects every status write, exercising the dialogue reset
// path when the store misbehaves mid-qualification.
type statusFailStore struct {
	*store.MemoryStore
}

func (s *statusFailStore) UpdateLeadStatus(leadID int64, status models.LeadStatus, remark string, actor int64) error {
	return errors.New("constraint violation")
}

func TestQualifyPendingStatusWriteFailureClearsContext(t *testing.T) {
	mem := store.NewMemoryStore()
	if err := mem.CreateUser(&models.User{Username: "Ravi", Phone: testSenderPhone, Role: "admin"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	seedLead(t, mem, "Acme Corp")
	r := NewRouter(&statusFailStore{mem}, messaging.NewMockService(), extract.NewStatic(),
		WithClock(func() time.Time { return testNow }))

	route(t, r, "qualified")
	res := route(t, r, "Acme Corp")
	if !strings.Contains(res.Reply, "internal error") {
		t.Fatalf("reply = %q", res.Reply)
	}

	// The broken dialogue must not capture the next message.
	res = route(t, r, "hi")
	if !strings.Contains(res.Reply, "Hello") {
		t.Errorf("context not cleared, reply = %q", res.Reply)
	}
}

func TestQualifyDetailsLeadGoneResetsDialogue(t *testing.T) {
	r, st, _ := newTestRouter(t)
	lead := seedLead(t, st, "Acme Corp")

	route(t, r, "Qualify lead for Acme Corp")

	// Renamed concurrently: the pending context still references the old name.
	lead.CompanyName = "Zenith Mills"
	if err := st.UpdateLead(lead); err != nil {
		t.Fatalf("UpdateLead: %v", err)
	}

	res := route(t, r, "Manufacturing, 120")
	if !strings.Contains(res.Reply, "start over") {
		t.Fatalf("reply = %q, want start-over prompt", res.Reply)
	}

	res = route(t, r, "hi")
	if !strings.Contains(res.Reply, "Hello") {
		t.Errorf("context not cleared, reply = %q", res.Reply)
	}
}
