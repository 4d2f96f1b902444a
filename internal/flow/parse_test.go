package flow

import (
	"testing"
	"time"
)

func TestParseCompany(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Qualify lead for Acme Corp", "Acme Corp"},
		{"qualified for Acme", "Acme"},
		{"company is Beta Industries", "Beta Industries"},
		{"Qualify lead for Acme because they called back", "Acme"},
		{"Acme Corp", "Acme Corp"},
		{"Schedule a meeting sometime", ""},
	}
	for _, tt := range tests {
		if got := ParseCompany(tt.text); got != tt.want {
			t.Errorf("ParseCompany(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestParseMeetingRequest(t *testing.T) {
	req, ok := ParseMeetingRequest("Schedule meeting with Acme Corp on tomorrow 3pm assigned to Priya")
	if !ok {
		t.Fatal("expected a match")
	}
	if req.Company != "Acme Corp" || req.TimeText != "tomorrow 3pm" || req.Assignee != "Priya" {
		t.Errorf("unexpected parse: %+v", req)
	}

	req, ok = ParseMeetingRequest("schedule a meeting with Beta at friday 11am")
	if !ok {
		t.Fatal("expected a match")
	}
	if req.Company != "Beta" || req.TimeText != "friday 11am" || req.Assignee != "" {
		t.Errorf("unexpected parse: %+v", req)
	}

	if _, ok := ParseMeetingRequest("meeting please"); ok {
		t.Error("expected no match for vague text")
	}
}

func TestParseReminderRequest(t *testing.T) {
	msg, company, timeText, ok := ParseReminderRequest("Remind me to send the brochure for Acme at tomorrow 10am")
	if !ok {
		t.Fatal("expected a match")
	}
	if msg != "send the brochure" || company != "Acme" || timeText != "tomorrow 10am" {
		t.Errorf("got %q / %q / %q", msg, company, timeText)
	}
}

func TestParseReassignRequestFallback(t *testing.T) {
	company, assignee, ok := ParseReassignRequest("Reassign Acme Corp to Priya")
	if !ok || company != "Acme Corp" || assignee != "Priya" {
		t.Errorf("got %q / %q / %v", company, assignee, ok)
	}

	company, assignee, ok = ParseReassignRequest("reassign Acme, Priya")
	if !ok || company != "Acme" || assignee != "Priya" {
		t.Errorf("comma fallback: got %q / %q / %v", company, assignee, ok)
	}
}

func TestParseDoneCompany(t *testing.T) {
	company, remark := ParseDoneCompany("Meeting done for Acme Corp, they want a demo next week")
	if company != "Acme Corp" {
		t.Errorf("company = %q", company)
	}
	if remark != "they want a demo next week" {
		t.Errorf("remark = %q", remark)
	}

	company, remark = ParseDoneCompany("demo done with Beta")
	if company != "Beta" || remark != "" {
		t.Errorf("got %q / %q", company, remark)
	}
}

func TestParseDateTime(t *testing.T) {
	base := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC) // a Monday
	got, err := ParseDateTime("tomorrow 3pm", base)
	if err != nil {
		t.Fatalf("ParseDateTime error: %v", err)
	}
	if got.Day() != 3 || got.Hour() != 15 {
		t.Errorf("got %v, want Jun 3 15:00", got)
	}

	if _, err := ParseDateTime("gibberish", base); err == nil {
		t.Error("expected an error for unparseable text")
	}
}

func TestKeywordSets(t *testing.T) {
	for _, s := range []string{"skip", "no", "Not now, later", "don't have it", "none"} {
		if !IsNegative(s) {
			t.Errorf("IsNegative(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"yes", "y", "ok", "Okay!", "sure", "do it", "yes please"} {
		if !IsPositive(s) {
			t.Errorf("IsPositive(%q) = false, want true", s)
		}
	}
	if IsNegative("yes") {
		t.Error("IsNegative(yes) should be false")
	}
	if IsPositive("nope") {
		t.Error("IsPositive(nope) should be false")
	}
}
