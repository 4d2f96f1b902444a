package flow

import (
	"regexp"
	"strings"

	"github.com/richa-2701/leadpilot/internal/models"
)

// intentRule binds a pattern to the intent it selects. Rules are evaluated in
// order and the first match wins: order encodes priority, not specificity.
type intentRule struct {
	tag     models.IntentTag
	pattern *regexp.Regexp
}

// intentRules is the ordered rule table. Completion phrases come first so
// "demo done" never reads as a scheduling request, and the unqualify family
// is checked before the qualify family so negations win.
var intentRules = []intentRule{
	{models.IntentMeetingDone, regexp.MustCompile(`(?i)\bmeeting\s+done\b`)},
	{models.IntentDemoDone, regexp.MustCompile(`(?i)\bdemo\s+(?:done|completed|ho\s+gya)\b`)},
	{models.IntentNotOurSegment, regexp.MustCompile(`(?i)\bnot\s+our\s+segment\b`)},
	{models.IntentUnqualifyLead, regexp.MustCompile(`(?i)\bunqualif(?:y|ied)\b`)},
	{models.IntentQualifyLead, regexp.MustCompile(`(?i)\bqualif(?:y|ied)\b`)},
	{models.IntentSendQuotation, regexp.MustCompile(`(?i)\bquotation\b`)},
	{models.IntentScheduleDemo, regexp.MustCompile(`(?i)\bschedule\s+(?:a\s+)?demo\b|\bdemo\s+schedule\b`)},
	{models.IntentScheduleMeeting, regexp.MustCompile(`(?i)\bschedule\s+(?:a\s+)?meeting\b|\bmeeting\s+with\b`)},
	{models.IntentReassignLead, regexp.MustCompile(`(?i)\breassign\b`)},
	{models.IntentSetReminder, regexp.MustCompile(`(?i)\bremind\s+me\b|\bset\s+(?:a\s+)?reminder\b`)},
	{models.IntentFeedback, regexp.MustCompile(`(?i)\bfeedback\s+for\b`)},
	{models.IntentNewLead, regexp.MustCompile(`(?i)\bnew\s+lead\b`)},
}

// newLeadCommaThreshold is the comma count at which an otherwise unmatched
// message is treated as structured new-lead shorthand.
const newLeadCommaThreshold = 3

// Classify maps raw text to exactly one intent tag. Pure and total: it always
// returns a tag, falling back to IntentUnknown.
func Classify(text string) models.IntentTag {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return models.IntentUnknown
	}
	for _, rule := range intentRules {
		if rule.pattern.MatchString(trimmed) {
			return rule.tag
		}
	}
	if strings.Count(trimmed, ",") >= newLeadCommaThreshold {
		return models.IntentNewLead
	}
	return models.IntentUnknown
}
