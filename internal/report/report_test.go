package report

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/richa-2701/leadpilot/internal/messaging"
	"github.com/richa-2701/leadpilot/internal/models"
	"github.com/richa-2701/leadpilot/internal/store"
)

type recordingMailer struct {
	to      []string
	subject string
	body    string
	calls   int
}

func (m *recordingMailer) Send(to []string, subject, body string) error {
	m.to = to
	m.subject = subject
	m.body = body
	m.calls++
	return nil
}

func TestRender(t *testing.T) {
	stats := &models.LeadStats{
		Since: time.Date(2025, 5, 26, 0, 0, 0, 0, time.UTC),
		Total: 5,
		ByStatus: map[models.LeadStatus]int{
			models.LeadStatusNew:       2,
			models.LeadStatusQualified: 3,
		},
		MeetingsHeld: 4,
		DemosHeld:    1,
	}
	got := Render(stats)
	for _, want := range []string{
		"Weekly Lead Digest (since 26 May 2025)",
		"New leads this week: 5",
		"• New Lead: 2",
		"• Qualified: 3",
		"Meetings held: 4",
		"Demos held: 1",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("digest missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Unqualified") {
		t.Error("zero-count statuses should be omitted")
	}
}

func TestDigestDeliversToAdmins(t *testing.T) {
	st := store.NewMemoryStore()
	msg := messaging.NewMockService()
	mailer := &recordingMailer{}
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	users := []*models.User{
		{Username: "Ravi", Phone: "+919999900001", Email: "ravi@example.com", Role: "admin"},
		{Username: "Priya", Phone: "+919999900002", Role: "admin"},
		{Username: "Sunil", Phone: "+919999900003"}, // not an admin
	}
	for _, u := range users {
		if err := st.CreateUser(u); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
	}
	if err := st.CreateLead(&models.Lead{CompanyName: "Acme", Status: models.LeadStatusQualified}); err != nil {
		t.Fatalf("CreateLead: %v", err)
	}

	d := NewDigest(st, msg,
		WithMailer(mailer),
		WithDigestClock(func() time.Time { return now }),
	)
	if err := d.Send(context.Background()); err != nil {
		t.Fatalf("Send: %v", err)
	}

	sent := msg.Sent()
	if len(sent) != 2 {
		t.Fatalf("WhatsApp messages = %+v", sent)
	}
	if !strings.Contains(sent[0].Body, "Weekly Lead Digest") {
		t.Errorf("body = %q", sent[0].Body)
	}

	if mailer.calls != 1 {
		t.Fatalf("mailer calls = %d", mailer.calls)
	}
	if len(mailer.to) != 1 || mailer.to[0] != "ravi@example.com" {
		t.Errorf("mail recipients = %v", mailer.to)
	}
	if !strings.Contains(mailer.subject, "Weekly Lead Digest") {
		t.Errorf("subject = %q", mailer.subject)
	}
}

func TestDigestNoAdminsIsANoOp(t *testing.T) {
	st := store.NewMemoryStore()
	msg := messaging.NewMockService()

	d := NewDigest(st, msg)
	if err := d.Send(context.Background()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(msg.Sent()) != 0 {
		t.Errorf("sent = %+v", msg.Sent())
	}
}
