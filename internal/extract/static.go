package extract

import (
	"context"
	"strings"
)

// Static is a deterministic extractor for the documented comma-order formats.
// It serves deployments without an OpenAI key and keeps tests offline.
type Static struct{}

// NewStatic creates a Static extractor.
func NewStatic() *Static {
	return &Static{}
}

func splitTrim(text string) []string {
	parts := strings.Split(text, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func looksLikeEmail(s string) bool {
	return strings.Contains(s, "@")
}

// LeadInfo maps a comma-separated line onto lead fields in the documented
// order: company, contact, phone, then email (detected by "@") and address.
func (s *Static) LeadInfo(_ context.Context, text string) (*LeadFields, error) {
	parts := splitTrim(text)
	fields := &LeadFields{Source: "whatsapp"}
	for i, p := range parts {
		switch i {
		case 0:
			fields.CompanyName = p
		case 1:
			fields.ContactName = p
		case 2:
			fields.Phone = p
		default:
			if looksLikeEmail(p) && fields.Email == "" {
				fields.Email = p
				continue
			}
			if fields.Address == "" {
				fields.Address = p
			} else {
				fields.Address += ", " + p
			}
		}
	}
	return fields, nil
}

// UpdateFields maps comma-separated values onto the missing fields in order.
func (s *Static) UpdateFields(_ context.Context, text string, missing []string) (*LeadFields, error) {
	parts := splitTrim(text)
	fields := &LeadFields{}
	for i, name := range missing {
		if i >= len(parts) || parts[i] == "" {
			break
		}
		fields.setByName(name, parts[i])
	}
	return fields, nil
}

// CoreLeadUpdate maps comma-separated values as company, contact, phone.
func (s *Static) CoreLeadUpdate(_ context.Context, text string) (*LeadFields, error) {
	parts := splitTrim(text)
	fields := &LeadFields{}
	for i, p := range parts {
		switch i {
		case 0:
			fields.CompanyName = p
		case 1:
			fields.ContactName = p
		case 2:
			fields.Phone = p
		}
	}
	return fields, nil
}

// setByName assigns a value by its human-readable field label.
func (f *LeadFields) setByName(name, value string) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "address":
		f.Address = value
	case "segment":
		f.Segment = value
	case "team size":
		f.TeamSize = value
	case "email":
		f.Email = value
	case "remark":
		f.Remark = value
	case "phone 2", "phone_2", "alternate phone":
		f.Phone2 = value
	case "turnover":
		f.Turnover = value
	case "current system":
		f.CurrentSys = value
	case "machine specification":
		f.MachineSpec = value
	case "challenges":
		f.Challenges = value
	}
}
