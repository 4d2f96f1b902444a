package flow

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// Keyword sets used by the continuation state machines.
var (
	negativeKeywords = []string{"no", "skip", "later", "none", "don't have", "dont have"}
	positiveKeywords = []string{"yes please", "yes", "y", "ok", "okay", "sure", "do it", "schedule"}
	greetingKeywords = map[string]bool{"hi": true, "hii": true, "hello": true, "hey": true}
)

// IsNegative reports whether the reply contains a negative keyword.
func IsNegative(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, kw := range negativeKeywords {
		if kw == "no" || kw == "y" {
			// Single short words match whole tokens only.
			for _, tok := range strings.Fields(t) {
				if strings.Trim(tok, ".,!") == kw {
					return true
				}
			}
			continue
		}
		if strings.Contains(t, kw) {
			return true
		}
	}
	return false
}

// IsPositive reports whether the reply contains a positive keyword.
func IsPositive(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, kw := range positiveKeywords {
		if len(kw) <= 2 {
			for _, tok := range strings.Fields(t) {
				if strings.Trim(tok, ".,!") == kw {
					return true
				}
			}
			continue
		}
		if strings.Contains(t, kw) {
			return true
		}
	}
	return false
}

// isGreeting reports whether the whole message is a bare greeting.
func isGreeting(text string) bool {
	return greetingKeywords[strings.Trim(strings.ToLower(strings.TrimSpace(text)), ".,!? ")]
}

// Entity extraction patterns for the command grammar.
var (
	meetingRe    = regexp.MustCompile(`(?i)schedule\s+(?:a\s+)?meeting\s+with\s+(.+?)\s+(?:on|at)\s+(.+?)(?:\s+assigned\s+to\s+(.+))?$`)
	demoRe       = regexp.MustCompile(`(?i)schedule\s+(?:a\s+)?demo\s+(?:for|with)\s+(.+?)\s+(?:on|at)\s+(.+?)(?:\s+assigned\s+to\s+(.+))?$`)
	rescheduleRe = regexp.MustCompile(`(?i)(?:reschedule\s+(meeting|demo)|(demo)\s+reschedule)\s*(?:for|with)?\s*(.*?)\s+(?:to|on|at)\s+(.+)$`)
	reminderRe   = regexp.MustCompile(`(?i)(?:remind\s+me\s+to|set\s+(?:a\s+)?reminder\s+to)\s+(.+?)\s+(?:for|with)\s+(.+?)\s+(?:at|on)\s+(.+)$`)
	activityRe   = regexp.MustCompile(`(?i)add\s+activity\s+for\s+(.+?),\s*(.+)$`)
	discussionRe = regexp.MustCompile(`(?i)(?:log|schedule)\s+discussion\s+for\s+(.+?),\s*(.+)$`)
	doneForRe    = regexp.MustCompile(`(?i)(?:meeting|demo|discussion)\s+done\s+(?:for|with)\s+(.+?)\s*(?:,\s*(.+))?$`)
	reassignRe   = regexp.MustCompile(`(?i)reassign\s+(.+?)\s+to\s+(.+)$`)
	feedbackRe   = regexp.MustCompile(`(?i)feedback\s+for\s+(.+?)\s*[:,-]\s*(.+)$`)
	quotationRe  = regexp.MustCompile(`(?i)quotation\s+(?:for|to)\s+(.+)$`)
	remarkRe     = regexp.MustCompile(`(?i)(?:because|reason|remark)\s+(.*)`)
	companyRe    = regexp.MustCompile(`(?i)(?:qualified\s+for|company\s+is|for)\s+([A-Za-z0-9\s&.'-]+)`)

	// activityDateRe spots trigger words suggesting the activity carries a
	// follow-up date.
	activityDateRe = regexp.MustCompile(`(?i)\b(?:on|at|in|next|tomorrow|today|by)\b`)

	// commandWords are tokens that disqualify a short message from being read
	// as a bare company name.
	commandWords = regexp.MustCompile(`(?i)\b(?:schedule|meeting|demo|remind|reminder|reassign|feedback|quotation|lead|activity|discussion|done|qualify|qualified|unqualified|segment|status)\b`)
)

// ParseCompany pulls a company name out of a qualification-style message
// ("qualify lead for Acme", "qualified for Acme"). When no pattern matches, a
// short message without command keywords is treated as the company itself.
func ParseCompany(text string) string {
	// A trailing remark clause would otherwise be swallowed into the name.
	text = remarkRe.ReplaceAllString(text, "")
	if m := companyRe.FindStringSubmatch(text); m != nil {
		return cleanCompany(m[1])
	}
	trimmed := strings.TrimSpace(text)
	if trimmed != "" && len(strings.Fields(trimmed)) <= 5 && !commandWords.MatchString(trimmed) {
		return cleanCompany(trimmed)
	}
	return ""
}

func cleanCompany(s string) string {
	return strings.Trim(strings.TrimSpace(s), ".,!?\"'")
}

// ParseDoneCompany extracts the company from "<thing> done for <company>[, remark]".
func ParseDoneCompany(text string) (company, remark string) {
	if m := doneForRe.FindStringSubmatch(text); m != nil {
		return cleanCompany(m[1]), strings.TrimSpace(m[2])
	}
	return "", ""
}

// ParseRemark extracts a trailing remark introduced by because/reason/remark.
func ParseRemark(text string) string {
	if m := remarkRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// scheduleRequest is a parsed meeting/demo scheduling command.
type scheduleRequest struct {
	Company  string
	TimeText string
	Assignee string
}

// ParseMeetingRequest parses "schedule meeting with <company> on <time> [assigned to <user>]".
func ParseMeetingRequest(text string) (*scheduleRequest, bool) {
	m := meetingRe.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	return &scheduleRequest{
		Company:  cleanCompany(m[1]),
		TimeText: strings.TrimSpace(m[2]),
		Assignee: strings.TrimSpace(m[3]),
	}, true
}

// ParseDemoRequest parses "schedule demo for <company> on <time> [assigned to <user>]".
func ParseDemoRequest(text string) (*scheduleRequest, bool) {
	m := demoRe.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	return &scheduleRequest{
		Company:  cleanCompany(m[1]),
		TimeText: strings.TrimSpace(m[2]),
		Assignee: strings.TrimSpace(m[3]),
	}, true
}

// ParseRescheduleRequest parses "reschedule meeting/demo [for <company>] to <time>".
func ParseRescheduleRequest(text string) (kind, company, timeText string, ok bool) {
	m := rescheduleRe.FindStringSubmatch(text)
	if m == nil {
		return "", "", "", false
	}
	kind = strings.ToLower(m[1])
	if kind == "" {
		kind = strings.ToLower(m[2])
	}
	return kind, cleanCompany(m[3]), strings.TrimSpace(m[4]), true
}

// ParseReminderRequest parses "remind me to <message> for <company> at <time>".
func ParseReminderRequest(text string) (message, company, timeText string, ok bool) {
	m := reminderRe.FindStringSubmatch(text)
	if m == nil {
		return "", "", "", false
	}
	return strings.TrimSpace(m[1]), cleanCompany(m[2]), strings.TrimSpace(m[3]), true
}

// ParseActivityRequest parses "add activity for <company>, <details>".
func ParseActivityRequest(text string) (company, details string, ok bool) {
	m := activityRe.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	return cleanCompany(m[1]), strings.TrimSpace(m[2]), true
}

// ParseDiscussionRequest parses "log/schedule discussion for <company>, <rest>".
func ParseDiscussionRequest(text string) (company, rest string, ok bool) {
	m := discussionRe.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	return cleanCompany(m[1]), strings.TrimSpace(m[2]), true
}

// ParseReassignRequest parses "reassign <company> to <user>", with a
// comma/colon fallback for terse phrasings.
func ParseReassignRequest(text string) (company, assignee string, ok bool) {
	if m := reassignRe.FindStringSubmatch(text); m != nil {
		return cleanCompany(m[1]), strings.TrimSpace(m[2]), true
	}
	rest := strings.TrimSpace(strings.TrimPrefix(strings.ToLower(text), "reassign"))
	for _, sep := range []string{",", ":"} {
		if parts := strings.SplitN(rest, sep, 2); len(parts) == 2 {
			return cleanCompany(parts[0]), strings.TrimSpace(parts[1]), true
		}
	}
	return "", "", false
}

// ParseFeedbackRequest parses "feedback for <company>: <text>".
func ParseFeedbackRequest(text string) (company, feedback string, ok bool) {
	m := feedbackRe.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	return cleanCompany(m[1]), strings.TrimSpace(m[2]), true
}

// ParseQuotationRequest parses "send quotation for <company>".
func ParseQuotationRequest(text string) (company string, ok bool) {
	m := quotationRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return cleanCompany(m[1]), true
}

// HasDateHint reports whether free text appears to reference a date or time.
func HasDateHint(text string) bool {
	return activityDateRe.MatchString(text)
}

var whenParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// ParseDateTime resolves natural-language date/time text ("tomorrow 3pm",
// "next monday at 11") relative to base.
func ParseDateTime(text string, base time.Time) (time.Time, error) {
	r, err := whenParser.Parse(text, base)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date/time from %q: %w", text, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("could not understand date/time %q", text)
	}
	return r.Time, nil
}
