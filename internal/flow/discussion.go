package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/richa-2701/leadpilot/internal/models"
	"github.com/richa-2701/leadpilot/internal/util"
)

// handleLogDiscussion writes discussion notes to the lead's activity trail.
func (r *Router) handleLogDiscussion(ctx context.Context, user *models.User, text string) string {
	company, notes, ok := ParseDiscussionRequest(text)
	if !ok {
		return "📝 To log a discussion, send:\nLog discussion for <company>, <notes>"
	}
	lead, err := r.findLead(ctx, util.CanonicalizeOrRaw(user.Phone), company)
	if err != nil {
		slog.Error("Router.handleLogDiscussion: lead lookup failed", "company", company, "error", err)
		return internalErrorReply
	}
	if lead == nil {
		return fmt.Sprintf("❌ No lead found matching %q.", company)
	}
	r.logActivity(lead.ID, user.ID, "Discussion: "+notes)
	return fmt.Sprintf("✅ Discussion logged for %s.", lead.CompanyName)
}

// handleScheduleDiscussion queues a reminder for a future discussion.
func (r *Router) handleScheduleDiscussion(ctx context.Context, user *models.User, text string) string {
	company, timeText, ok := ParseDiscussionRequest(text)
	if !ok {
		return "📅 To schedule a discussion, send:\nSchedule discussion for <company>, <date time>"
	}
	lead, err := r.findLead(ctx, util.CanonicalizeOrRaw(user.Phone), company)
	if err != nil {
		slog.Error("Router.handleScheduleDiscussion: lead lookup failed", "company", company, "error", err)
		return internalErrorReply
	}
	if lead == nil {
		return fmt.Sprintf("❌ No lead found matching %q.", company)
	}
	at, err := ParseDateTime(timeText, r.now())
	if err != nil {
		return fmt.Sprintf("❌ I couldn't understand the date/time %q.", timeText)
	}
	rem := &models.Reminder{
		LeadID:   lead.ID,
		UserID:   user.ID,
		Phone:    user.Phone,
		Message:  fmt.Sprintf("Discussion for %s", lead.CompanyName),
		RemindAt: at,
		Status:   models.ReminderStatusPending,
	}
	if err := r.store.CreateReminder(rem); err != nil {
		slog.Error("Router.handleScheduleDiscussion: reminder create failed", "lead_id", lead.ID, "error", err)
		return internalErrorReply
	}
	r.logActivity(lead.ID, user.ID, "Discussion scheduled for "+at.Format("02 Jan 2006 3:04 PM"))
	return fmt.Sprintf("✅ Discussion with %s scheduled for %s.", lead.CompanyName, at.Format("Mon, 02 Jan 2006 3:04 PM"))
}

// handleDiscussionDone completes the pending discussion reminder and records
// the outcome.
func (r *Router) handleDiscussionDone(ctx context.Context, user *models.User, text string) string {
	company, remark := ParseDoneCompany(text)
	lead, err := r.findLead(ctx, util.CanonicalizeOrRaw(user.Phone), company)
	if err != nil {
		slog.Error("Router.handleDiscussionDone: lead lookup failed", "company", company, "error", err)
		return internalErrorReply
	}
	if lead == nil {
		return "❌ I couldn't tell which lead that was for. Try: Discussion done for <company>, <outcome>"
	}
	if _, err := r.store.FindAndCompleteReminder(lead.ID, "%discussion for%"); err != nil {
		slog.Warn("Router.handleDiscussionDone: reminder completion failed", "lead_id", lead.ID, "error", err)
	}
	details := "Discussion done"
	if remark != "" {
		details += ": " + remark
	}
	r.logActivity(lead.ID, user.ID, details)
	return fmt.Sprintf("✅ Discussion for %s marked as done.", lead.CompanyName)
}
