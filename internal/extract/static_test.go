package extract

import (
	"context"
	"testing"
)

func TestStaticLeadInfo(t *testing.T) {
	s := NewStatic()
	fields, err := s.LeadInfo(context.Background(), "Acme Industries, Ramesh, 9876543210, ramesh@acme.in, Indore")
	if err != nil {
		t.Fatalf("LeadInfo failed: %v", err)
	}
	if fields.CompanyName != "Acme Industries" {
		t.Errorf("company = %q", fields.CompanyName)
	}
	if fields.ContactName != "Ramesh" {
		t.Errorf("contact = %q", fields.ContactName)
	}
	if fields.Phone != "9876543210" {
		t.Errorf("phone = %q", fields.Phone)
	}
	if fields.Email != "ramesh@acme.in" {
		t.Errorf("email = %q", fields.Email)
	}
	if fields.Address != "Indore" {
		t.Errorf("address = %q", fields.Address)
	}
	if fields.Source != "whatsapp" {
		t.Errorf("source = %q, want whatsapp default", fields.Source)
	}
}

func TestStaticLeadInfoFourValues(t *testing.T) {
	s := NewStatic()
	fields, err := s.LeadInfo(context.Background(), "Globex, Priya, 9123456780, Mumbai")
	if err != nil {
		t.Fatalf("LeadInfo failed: %v", err)
	}
	if fields.Email != "" {
		t.Errorf("email = %q, want empty", fields.Email)
	}
	if fields.Address != "Mumbai" {
		t.Errorf("address = %q", fields.Address)
	}
}

func TestStaticUpdateFields(t *testing.T) {
	s := NewStatic()
	missing := []string{"Address", "Segment", "Team Size"}
	fields, err := s.UpdateFields(context.Background(), "Pune, Manufacturing, 40", missing)
	if err != nil {
		t.Fatalf("UpdateFields failed: %v", err)
	}
	if fields.Address != "Pune" || fields.Segment != "Manufacturing" || fields.TeamSize != "40" {
		t.Errorf("unexpected mapping: %+v", fields)
	}
}

func TestStaticCoreLeadUpdate(t *testing.T) {
	s := NewStatic()
	fields, err := s.CoreLeadUpdate(context.Background(), "Acme Pvt Ltd, Suresh, 9000000001")
	if err != nil {
		t.Fatalf("CoreLeadUpdate failed: %v", err)
	}
	if fields.CompanyName != "Acme Pvt Ltd" || fields.ContactName != "Suresh" || fields.Phone != "9000000001" {
		t.Errorf("unexpected mapping: %+v", fields)
	}
}

func TestStripCodeFences(t *testing.T) {
	in := "```json\n{\"company_name\": \"Acme\"}\n```"
	got := stripCodeFences(in)
	if got != `{"company_name": "Acme"}` {
		t.Errorf("stripCodeFences = %q", got)
	}
}
