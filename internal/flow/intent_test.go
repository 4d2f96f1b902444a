package flow

import (
	"testing"

	"github.com/richa-2701/leadpilot/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		text string
		want models.IntentTag
	}{
		{"New Lead Acme Corp, Ravi, 9876543210", models.IntentNewLead},
		{"Qualify lead for Acme", models.IntentQualifyLead},
		{"Acme is qualified", models.IntentQualifyLead},
		{"Unqualify Acme", models.IntentUnqualifyLead},
		{"Acme is unqualified", models.IntentUnqualifyLead},
		{"Acme is not our segment", models.IntentNotOurSegment},
		{"Schedule meeting with Acme on tomorrow 3pm", models.IntentScheduleMeeting},
		{"schedule a meeting with Acme at 5", models.IntentScheduleMeeting},
		{"Meeting done for Acme", models.IntentMeetingDone},
		{"Schedule demo for Acme on friday", models.IntentScheduleDemo},
		{"Demo done for Acme", models.IntentDemoDone},
		{"demo ho gya for Acme", models.IntentDemoDone},
		{"Send quotation for Acme", models.IntentSendQuotation},
		{"Reassign Acme to Priya", models.IntentReassignLead},
		{"Remind me to call for Acme at 5pm", models.IntentSetReminder},
		{"Set reminder to follow up with Acme on monday", models.IntentSetReminder},
		{"Feedback for Acme: liked the demo", models.IntentFeedback},
		{"hello", models.IntentUnknown},
		{"", models.IntentUnknown},
		{"   ", models.IntentUnknown},
		// Comma shorthand without the New Lead prefix.
		{"Acme Corp, Ravi Kumar, 9876543210, Indore", models.IntentNewLead},
	}
	for _, tt := range tests {
		if got := Classify(tt.text); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestClassifyCompletionBeatsScheduling(t *testing.T) {
	// "done" phrasings must never read as bookings.
	if got := Classify("demo done for Acme, went well"); got != models.IntentDemoDone {
		t.Errorf("got %q, want demo_done", got)
	}
	if got := Classify("meeting done with Acme"); got != models.IntentMeetingDone {
		t.Errorf("got %q, want meeting_done", got)
	}
}
