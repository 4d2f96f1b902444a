package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/richa-2701/leadpilot/internal/models"
	"github.com/richa-2701/leadpilot/internal/util"
)

// handleAddActivity records an activity against a lead. When the details
// mention a date or time, a follow-up reminder is queued as well, and the
// lead's assignee is notified when someone else logged it.
func (r *Router) handleAddActivity(ctx context.Context, user *models.User, text string) string {
	company, details, ok := ParseActivityRequest(text)
	if !ok {
		return "📝 To add an activity, send:\nAdd activity for <company>, <details>"
	}
	lead, err := r.findLead(ctx, util.CanonicalizeOrRaw(user.Phone), company)
	if err != nil {
		slog.Error("Router.handleAddActivity: lead lookup failed", "company", company, "error", err)
		return internalErrorReply
	}
	if lead == nil {
		return fmt.Sprintf("❌ No lead found matching %q.", company)
	}

	r.logActivity(lead.ID, user.ID, "Activity: "+details)
	reply := fmt.Sprintf("✅ Activity added for %s.", lead.CompanyName)

	if HasDateHint(details) {
		if at, err := ParseDateTime(details, r.now()); err == nil && at.After(r.now()) {
			rem := &models.Reminder{
				LeadID:   lead.ID,
				UserID:   user.ID,
				Phone:    user.Phone,
				Message:  fmt.Sprintf("%s for %s", details, lead.CompanyName),
				RemindAt: at,
				Status:   models.ReminderStatusPending,
			}
			if err := r.store.CreateReminder(rem); err != nil {
				slog.Warn("Router.handleAddActivity: reminder create failed", "lead_id", lead.ID, "error", err)
			} else {
				reply += fmt.Sprintf("\n⏰ Follow-up reminder set for %s.", at.Format("Mon, 02 Jan 2006 3:04 PM"))
			}
		}
	}

	if lead.AssignedTo != 0 && lead.AssignedTo != user.ID {
		assignee, err := r.store.GetUser(lead.AssignedTo)
		if err != nil {
			slog.Warn("Router.handleAddActivity: assignee lookup failed", "user_id", lead.AssignedTo, "error", err)
		} else if assignee != nil && !util.SamePhone(assignee.Phone, user.Phone) {
			r.notify(ctx, assignee.Phone, fmt.Sprintf("📌 %s logged an activity on %s: %s", user.Username, lead.CompanyName, details))
		}
	}
	return reply
}
