package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/richa-2701/leadpilot/internal/models"
	"github.com/richa-2701/leadpilot/internal/util"
)

// handleSetReminder creates a one-shot reminder delivered to the sender.
func (r *Router) handleSetReminder(ctx context.Context, user *models.User, text string) string {
	message, company, timeText, ok := ParseReminderRequest(text)
	if !ok {
		return "⏰ To set a reminder, send:\nRemind me to <task> for <company> at <date time>"
	}
	lead, err := r.findLead(ctx, util.CanonicalizeOrRaw(user.Phone), company)
	if err != nil {
		slog.Error("Router.handleSetReminder: lead lookup failed", "company", company, "error", err)
		return internalErrorReply
	}
	if lead == nil {
		return fmt.Sprintf("❌ No lead found matching %q.", company)
	}
	at, err := ParseDateTime(timeText, r.now())
	if err != nil {
		return fmt.Sprintf("❌ I couldn't understand the date/time %q. Try something like 'tomorrow 10am'.", timeText)
	}
	if at.Before(r.now()) {
		return fmt.Sprintf("❌ %s is in the past.", at.Format("Mon, 02 Jan 2006 3:04 PM"))
	}
	rem := &models.Reminder{
		LeadID:   lead.ID,
		UserID:   user.ID,
		Phone:    user.Phone,
		Message:  fmt.Sprintf("%s for %s", message, lead.CompanyName),
		RemindAt: at,
		Status:   models.ReminderStatusPending,
	}
	if err := r.store.CreateReminder(rem); err != nil {
		slog.Error("Router.handleSetReminder: create failed", "lead_id", lead.ID, "error", err)
		return internalErrorReply
	}
	slog.Info("Router.handleSetReminder: reminder set", "lead_id", lead.ID, "remind_at", at)
	return fmt.Sprintf("⏰ Reminder set for %s: %s", at.Format("Mon, 02 Jan 2006 3:04 PM"), rem.Message)
}
