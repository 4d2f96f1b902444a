package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/richa-2701/leadpilot/internal/models"
	"github.com/richa-2701/leadpilot/internal/util"
)

const demoDuration = 2 * time.Hour

// followUpDelay is how long after a finished demo the follow-up nudge fires.
const followUpDelay = 72 * time.Hour

// handleScheduleDemo books a demo through the shared scheduling path.
func (r *Router) handleScheduleDemo(ctx context.Context, user *models.User, text string) string {
	req, ok := ParseDemoRequest(text)
	if !ok {
		return "📅 To book a demo, send:\nSchedule demo for <company> on <date time>"
	}
	return r.scheduleEvent(ctx, user, req, models.EventTypeDemo)
}

// handleDemoDone closes the latest scheduled demo, clears its pre-event
// reminders, and queues a follow-up nudge.
func (r *Router) handleDemoDone(ctx context.Context, user *models.User, text string) string {
	company, remark := ParseDoneCompany(text)
	lead, err := r.findLead(ctx, util.CanonicalizeOrRaw(user.Phone), company)
	if err != nil {
		slog.Error("Router.handleDemoDone: lead lookup failed", "company", company, "error", err)
		return internalErrorReply
	}
	if lead == nil {
		return "❌ I couldn't tell which lead that was for. Try: Demo done for <company>"
	}

	event, err := r.store.LatestEvent(lead.ID, models.EventTypeDemo, models.EventPhaseScheduled)
	if err != nil {
		slog.Error("Router.handleDemoDone: event lookup failed", "lead_id", lead.ID, "error", err)
		return internalErrorReply
	}
	if event == nil {
		return fmt.Sprintf("❌ No scheduled demo found for %s.", lead.CompanyName)
	}

	event.Phase = models.EventPhaseDone
	event.Remark = remark
	if err := r.store.UpdateEvent(event); err != nil {
		slog.Error("Router.handleDemoDone: event update failed", "event_id", event.ID, "error", err)
		return internalErrorReply
	}
	if err := r.store.UpdateLeadStatus(lead.ID, models.LeadStatusDemoDone, remark, user.ID); err != nil {
		slog.Error("Router.handleDemoDone: status update failed", "lead_id", lead.ID, "error", err)
		return internalErrorReply
	}
	if err := r.store.DeleteRemindersLike(lead.ID, "%demo%"); err != nil {
		slog.Warn("Router.handleDemoDone: reminder cleanup failed", "lead_id", lead.ID, "error", err)
	}

	followUp := &models.Reminder{
		LeadID:   lead.ID,
		UserID:   user.ID,
		Phone:    user.Phone,
		Message:  fmt.Sprintf("Follow up with %s after the demo", lead.CompanyName),
		RemindAt: r.now().Add(followUpDelay),
		Status:   models.ReminderStatusPending,
	}
	if err := r.store.CreateReminder(followUp); err != nil {
		slog.Warn("Router.handleDemoDone: failed to queue follow-up", "lead_id", lead.ID, "error", err)
	}
	slog.Info("Router.handleDemoDone: demo closed", "lead_id", lead.ID, "company", lead.CompanyName)

	return fmt.Sprintf("✅ Demo for %s marked as done.\n⏰ I'll remind you to follow up in 3 days.\n👉 Next step: Send quotation for %s", lead.CompanyName, lead.CompanyName)
}
