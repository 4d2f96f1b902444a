package flow

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/richa-2701/leadpilot/internal/extract"
	"github.com/richa-2701/leadpilot/internal/messaging"
	"github.com/richa-2701/leadpilot/internal/models"
	"github.com/richa-2701/leadpilot/internal/store"
	"github.com/richa-2701/leadpilot/internal/util"
)

const internalErrorReply = "❌ An internal error occurred. Please try again."

// lookupFailureReply is sent when a resumed dialogue's company record has
// disappeared; the context is cleared and the sender starts over.
const lookupFailureReply = "❌ I couldn't find that company anymore. Please start over with a fresh command."

const helpReply = "🤖 I didn't understand that. Here are some things you can try:\n" +
	"• New Lead <company>, <contact>, <phone>, ...\n" +
	"• Qualify lead for <company>\n" +
	"• Schedule meeting with <company> on <date time>\n" +
	"• Schedule demo for <company> on <date time>\n" +
	"• Meeting done for <company> / Demo done for <company>\n" +
	"• Log discussion for <company>, <notes>\n" +
	"• Add activity for <company>, <details>\n" +
	"• Remind me to <task> for <company> at <date time>\n" +
	"• Reassign <company> to <user>"

const greetingReply = "👋 Hello! I can help you manage your leads.\n" +
	"Try: New Lead Acme Corp, Ravi Kumar, 9876543210"

// Router dispatches inbound messages to workflow handlers. Pending
// conversation context takes precedence over fresh intent classification.
type Router struct {
	store       store.Store
	msg         messaging.Service
	extractor   extract.Extractor
	contexts    *ContextStore
	lastCompany *TempStore
	now         func() time.Time
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithClock overrides the router's time source.
func WithClock(now func() time.Time) RouterOption {
	return func(r *Router) { r.now = now }
}

// NewRouter creates a Router over the given store, messaging service, and
// field extractor.
func NewRouter(st store.Store, msg messaging.Service, ex extract.Extractor, opts ...RouterOption) *Router {
	r := &Router{
		store:       st,
		msg:         msg,
		extractor:   ex,
		contexts:    NewContextStore(),
		lastCompany: NewTempStore(DefaultTempTTL),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route processes one inbound message and returns the outcome. For messages
// sourced from WhatsApp the reply is also sent through the messaging service.
func (r *Router) Route(ctx context.Context, in models.InboundMessage) (result models.RouteResult) {
	sender := util.CanonicalizeOrRaw(in.Sender)

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Router.Route: recovered from panic", "sender", sender, "panic", rec)
			r.contexts.Clear(sender)
			result = r.finish(ctx, in, sender, models.RouteResult{Status: "error", Reply: internalErrorReply})
		}
	}()

	user, err := r.store.FindUserByPhone(sender)
	if err != nil {
		slog.Error("Router.Route: user lookup failed", "sender", sender, "error", err)
		return r.finish(ctx, in, sender, models.RouteResult{Status: "error", Reply: internalErrorReply})
	}
	if user == nil {
		slog.Warn("Router.Route: unknown sender", "sender", sender)
		return r.finish(ctx, in, sender, models.RouteResult{Status: "denied", Reply: "⛔ Access denied. Your number is not registered."})
	}

	text := strings.TrimSpace(in.Text)
	lower := strings.ToLower(text)
	slog.Debug("Router.Route: routing message", "sender", sender, "user", user.Username, "text", text)

	if pc, ok := r.contexts.Get(sender); ok {
		reply := r.continueConversation(ctx, user, sender, pc, text)
		return r.finish(ctx, in, sender, models.RouteResult{Status: "ok", Reply: reply})
	}

	if reply, handled := r.routeOverride(ctx, user, sender, text, lower); handled {
		return r.finish(ctx, in, sender, models.RouteResult{Status: "ok", Reply: reply})
	}

	reply := r.routeIntent(ctx, user, sender, text, Classify(text))
	return r.finish(ctx, in, sender, models.RouteResult{Status: "ok", Reply: reply})
}

// routeOverride handles substring-triggered commands that bypass the
// classifier. These phrasings are common enough in the field that missing
// them on a classifier slip is worse than the occasional false positive.
func (r *Router) routeOverride(ctx context.Context, user *models.User, sender, text, lower string) (string, bool) {
	switch {
	case strings.Contains(lower, "discussion done for"):
		return r.handleDiscussionDone(ctx, user, text), true
	case strings.Contains(lower, "not interested"):
		return r.handleNotInterested(ctx, user, text), true
	case strings.Contains(lower, "reschedule meeting"):
		return r.handleReschedule(ctx, user, text, models.EventTypeMeeting), true
	case strings.Contains(lower, "reschedule demo"), strings.Contains(lower, "demo reschedule"):
		return r.handleReschedule(ctx, user, text, models.EventTypeDemo), true
	case strings.Contains(lower, "add activity for"):
		return r.handleAddActivity(ctx, user, text), true
	case strings.Contains(lower, "log discussion"):
		return r.handleLogDiscussion(ctx, user, text), true
	case strings.Contains(lower, "schedule discussion"):
		return r.handleScheduleDiscussion(ctx, user, text), true
	}
	return "", false
}

func (r *Router) routeIntent(ctx context.Context, user *models.User, sender, text string, tag models.IntentTag) string {
	switch tag {
	case models.IntentNewLead:
		return r.handleNewLead(ctx, user, text)
	case models.IntentQualifyLead:
		return r.handleQualifyLead(ctx, user, sender, text)
	case models.IntentUnqualifyLead:
		return r.handleUnqualify(ctx, user, text)
	case models.IntentNotOurSegment:
		return r.handleNotOurSegment(ctx, user, text)
	case models.IntentScheduleMeeting:
		return r.handleScheduleMeeting(ctx, user, text)
	case models.IntentMeetingDone:
		return r.handleMeetingDone(ctx, user, sender, text)
	case models.IntentScheduleDemo:
		return r.handleScheduleDemo(ctx, user, text)
	case models.IntentDemoDone:
		return r.handleDemoDone(ctx, user, text)
	case models.IntentSendQuotation:
		return r.handleSendQuotation(ctx, user, text)
	case models.IntentReassignLead:
		return r.handleReassign(ctx, user, text)
	case models.IntentSetReminder:
		return r.handleSetReminder(ctx, user, text)
	case models.IntentFeedback:
		return r.handleFeedback(ctx, user, text)
	default:
		if isGreeting(text) {
			return greetingReply
		}
		return helpReply
	}
}

// continueConversation resumes a pending multi-turn flow for the sender.
func (r *Router) continueConversation(ctx context.Context, user *models.User, sender string, pc PendingContext, text string) string {
	slog.Debug("Router.continueConversation: resuming", "sender", sender, "state", pc.State, "company", pc.Company)
	switch pc.State {
	case models.StateQualificationPending:
		return r.resumeQualificationPending(ctx, user, sender, text)
	case models.StateAwaitingQualificationDetails:
		return r.resumeQualificationDetails(ctx, user, sender, pc, text)
	case models.StateAwaitingFourPhaseDecision:
		return r.resumeFourPhaseDecision(ctx, sender, pc, text)
	case models.StateAwaitingDetailsChangeDecision:
		return r.resumeDetailsChangeDecision(ctx, sender, pc, text)
	case models.StateAwaitingCoreLeadUpdate:
		return r.resumeCoreLeadUpdate(ctx, user, sender, pc, text)
	case models.StateAwaitingMeetingDetails:
		return r.resumeMeetingDetails(ctx, user, sender, pc, text)
	default:
		slog.Warn("Router.continueConversation: unknown state, clearing", "sender", sender, "state", pc.State)
		r.contexts.Clear(sender)
		return helpReply
	}
}

// finish sends the reply over WhatsApp when the message arrived there, and
// fills in the Sent flag.
func (r *Router) finish(ctx context.Context, in models.InboundMessage, sender string, res models.RouteResult) models.RouteResult {
	if in.Source != models.SourceWhatsApp || res.Reply == "" {
		return res
	}
	target := in.ReplyTarget
	if target == "" {
		target = sender
	}
	if err := r.msg.SendMessage(ctx, target, res.Reply); err != nil {
		slog.Error("Router.finish: failed to send reply", "to", target, "error", err)
		res.Sent = false
		return res
	}
	res.Sent = true
	return res
}

// notify sends a best-effort message to a secondary recipient such as a
// newly assigned user. Failures are logged, never surfaced to the sender.
func (r *Router) notify(ctx context.Context, phone, body string) {
	if phone == "" {
		return
	}
	if err := r.msg.SendMessage(ctx, util.CanonicalizeOrRaw(phone), body); err != nil {
		slog.Warn("Router.notify: notification failed", "to", phone, "error", err)
	}
}

// findLead resolves a company reference to a lead, preferring the last
// company mentioned by the sender when the text itself gives nothing.
func (r *Router) findLead(ctx context.Context, sender, company string) (*models.Lead, error) {
	name := company
	if name == "" {
		if cached, ok := r.lastCompany.Get(sender); ok {
			name = cached
		}
	}
	if name == "" {
		return nil, nil
	}
	lead, err := r.store.FindLeadByCompany(name)
	if err != nil {
		return nil, err
	}
	if lead != nil {
		r.lastCompany.Set(sender, lead.CompanyName)
	}
	return lead, nil
}
