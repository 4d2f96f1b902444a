package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/richa-2701/leadpilot/internal/models"
	"github.com/richa-2701/leadpilot/internal/util"
)

const meetingDuration = time.Hour

// postMeetingFields are the enrichment fields collected after a meeting.
var postMeetingFields = []string{
	"Segment", "Team Size", "Phone 2", "Turnover",
	"Current System", "Machine Specification", "Challenges",
}

// eventLabel renders an event type for user-facing messages.
func eventLabel(typ models.EventType) string {
	if typ == models.EventTypeDemo {
		return "Demo"
	}
	return "Meeting"
}

// handleScheduleMeeting books a meeting, checking the assignee's calendar
// for conflicts first.
func (r *Router) handleScheduleMeeting(ctx context.Context, user *models.User, text string) string {
	req, ok := ParseMeetingRequest(text)
	if !ok {
		return "📅 To book a meeting, send:\nSchedule meeting with <company> on <date time>"
	}
	return r.scheduleEvent(ctx, user, req, models.EventTypeMeeting)
}

// scheduleEvent is the shared booking path for meetings and demos.
func (r *Router) scheduleEvent(ctx context.Context, user *models.User, req *scheduleRequest, typ models.EventType) string {
	lead, err := r.findLead(ctx, util.CanonicalizeOrRaw(user.Phone), req.Company)
	if err != nil {
		slog.Error("Router.scheduleEvent: lead lookup failed", "company", req.Company, "error", err)
		return internalErrorReply
	}
	if lead == nil {
		return fmt.Sprintf("❌ No lead found matching %q.", req.Company)
	}

	startAt, err := ParseDateTime(req.TimeText, r.now())
	if err != nil {
		return fmt.Sprintf("❌ I couldn't understand the date/time %q. Try something like 'tomorrow 3pm'.", req.TimeText)
	}

	duration := meetingDuration
	if typ == models.EventTypeDemo {
		duration = demoDuration
	}
	endAt := startAt.Add(duration)

	assigneeID := lead.AssignedTo
	if assigneeID == 0 {
		assigneeID = user.ID
	}
	var assignee *models.User
	if req.Assignee != "" {
		assignee, err = r.store.FindUserByName(req.Assignee)
		if err != nil {
			slog.Error("Router.scheduleEvent: assignee lookup failed", "name", req.Assignee, "error", err)
			return internalErrorReply
		}
		if assignee == nil {
			return fmt.Sprintf("❌ User %q not found.", req.Assignee)
		}
		assigneeID = assignee.ID
	}

	busy, err := r.store.UserBusy(assigneeID, startAt, endAt)
	if err != nil {
		slog.Error("Router.scheduleEvent: busy check failed", "user_id", assigneeID, "error", err)
		return internalErrorReply
	}
	if busy {
		return fmt.Sprintf("⛔ That slot clashes with another %s on the assignee's calendar. Please pick a different time.", typ)
	}

	event := &models.Event{
		LeadID:     lead.ID,
		Type:       typ,
		Phase:      models.EventPhaseScheduled,
		StartAt:    startAt,
		EndAt:      endAt,
		AssignedTo: assigneeID,
		CreatedBy:  user.ID,
	}
	if err := r.store.CreateEvent(event); err != nil {
		slog.Error("Router.scheduleEvent: create failed", "lead_id", lead.ID, "type", typ, "error", err)
		return internalErrorReply
	}

	status := models.LeadStatusMeetingScheduled
	if typ == models.EventTypeDemo {
		status = models.LeadStatusDemoScheduled
	}
	if err := r.store.UpdateLeadStatus(lead.ID, status, "", user.ID); err != nil {
		slog.Error("Router.scheduleEvent: status update failed", "lead_id", lead.ID, "error", err)
		return internalErrorReply
	}
	slog.Info("Router.scheduleEvent: booked", "lead_id", lead.ID, "type", typ, "start_at", startAt)

	r.createEventReminders(lead, typ, startAt, user)

	if assignee != nil && !util.SamePhone(assignee.Phone, user.Phone) {
		r.notify(ctx, assignee.Phone, fmt.Sprintf("📌 %s with %s scheduled for you on %s.",
			eventLabel(typ), lead.CompanyName, startAt.Format("Mon, 02 Jan 2006 3:04 PM")))
	}

	return fmt.Sprintf("✅ %s scheduled with %s on %s.",
		eventLabel(typ), lead.CompanyName, startAt.Format("Mon, 02 Jan 2006 3:04 PM"))
}

// createEventReminders queues pre-event reminders for the scheduling user.
// Demos get a day-before nudge in addition to the hour-before one.
func (r *Router) createEventReminders(lead *models.Lead, typ models.EventType, startAt time.Time, user *models.User) {
	offsets := []time.Duration{time.Hour}
	if typ == models.EventTypeDemo {
		offsets = append(offsets, 24*time.Hour)
	}
	now := r.now()
	for _, off := range offsets {
		at := startAt.Add(-off)
		if at.Before(now) {
			continue
		}
		rem := &models.Reminder{
			LeadID:   lead.ID,
			UserID:   user.ID,
			Phone:    user.Phone,
			Message:  fmt.Sprintf("Upcoming %s for %s at %s", typ, lead.CompanyName, startAt.Format("3:04 PM, 02 Jan")),
			RemindAt: at,
			Status:   models.ReminderStatusPending,
		}
		if err := r.store.CreateReminder(rem); err != nil {
			slog.Warn("Router.createEventReminders: failed to queue reminder", "lead_id", lead.ID, "error", err)
		}
	}
}

// handleMeetingDone closes the latest scheduled meeting and opens the
// post-meeting dialogue asking whether the core details changed.
func (r *Router) handleMeetingDone(ctx context.Context, user *models.User, sender, text string) string {
	company, remark := ParseDoneCompany(text)
	lead, err := r.findLead(ctx, sender, company)
	if err != nil {
		slog.Error("Router.handleMeetingDone: lead lookup failed", "company", company, "error", err)
		return internalErrorReply
	}
	if lead == nil {
		return "❌ I couldn't tell which lead that was for. Try: Meeting done for <company>"
	}

	event, err := r.store.LatestEvent(lead.ID, models.EventTypeMeeting, models.EventPhaseScheduled)
	if err != nil {
		slog.Error("Router.handleMeetingDone: event lookup failed", "lead_id", lead.ID, "error", err)
		return internalErrorReply
	}
	if event == nil {
		return fmt.Sprintf("❌ No scheduled meeting found for %s.", lead.CompanyName)
	}

	event.Phase = models.EventPhaseDone
	event.Remark = remark
	if err := r.store.UpdateEvent(event); err != nil {
		slog.Error("Router.handleMeetingDone: event update failed", "event_id", event.ID, "error", err)
		return internalErrorReply
	}
	if err := r.store.UpdateLeadStatus(lead.ID, models.LeadStatusMeetingDone, remark, user.ID); err != nil {
		slog.Error("Router.handleMeetingDone: status update failed", "lead_id", lead.ID, "error", err)
		return internalErrorReply
	}
	if _, err := r.store.FindAndCompleteReminder(lead.ID, "%meeting%"); err != nil {
		slog.Warn("Router.handleMeetingDone: reminder completion failed", "lead_id", lead.ID, "error", err)
	}
	slog.Info("Router.handleMeetingDone: meeting closed", "lead_id", lead.ID, "company", lead.CompanyName)

	r.contexts.Set(sender, PendingContext{
		State:   models.StateAwaitingDetailsChangeDecision,
		Company: lead.CompanyName,
	})
	return fmt.Sprintf("✅ Meeting for %s marked as done.\nHave the company, contact person, or phone details changed? (yes/no)", lead.CompanyName)
}

// resumeDetailsChangeDecision branches the post-meeting dialogue between a
// core-details correction and the enrichment questions.
func (r *Router) resumeDetailsChangeDecision(ctx context.Context, sender string, pc PendingContext, text string) string {
	if IsPositive(text) {
		r.contexts.Set(sender, PendingContext{
			State:   models.StateAwaitingCoreLeadUpdate,
			Company: pc.Company,
		})
		return "📝 Please send the updated details as:\n<company>, <contact person>, <phone>"
	}
	r.contexts.Set(sender, PendingContext{
		State:   models.StateAwaitingMeetingDetails,
		Company: pc.Company,
	})
	return fmt.Sprintf("👍 Noted. Any details from the meeting to capture for %s?\n(%s)\nReply with what you have, or 'skip'.", pc.Company, strings.Join(postMeetingFields, ", "))
}

// resumeCoreLeadUpdate applies corrected company/contact/phone details, then
// moves on to the enrichment questions.
func (r *Router) resumeCoreLeadUpdate(ctx context.Context, user *models.User, sender string, pc PendingContext, text string) string {
	lead, err := r.store.FindLeadByCompany(pc.Company)
	if err != nil {
		slog.Error("Router.resumeCoreLeadUpdate: lead lookup failed", "company", pc.Company, "error", err)
		r.contexts.Clear(sender)
		return internalErrorReply
	}
	if lead == nil {
		slog.Warn("Router.resumeCoreLeadUpdate: lead gone", "company", pc.Company)
		r.contexts.Clear(sender)
		return lookupFailureReply
	}

	note := "⚠️ I couldn't read those details; keeping the old ones."
	fields, err := r.extractor.CoreLeadUpdate(ctx, text)
	if err != nil {
		slog.Warn("Router.resumeCoreLeadUpdate: extraction failed", "company", pc.Company, "error", err)
	} else {
		var updated []string
		if fields.CompanyName != "" && fields.CompanyName != lead.CompanyName {
			lead.CompanyName = fields.CompanyName
			updated = append(updated, "Company")
		}
		if fields.ContactName != "" {
			lead.ContactName = fields.ContactName
			updated = append(updated, "Contact")
		}
		if fields.Phone != "" {
			lead.Phone = util.CanonicalizeOrRaw(fields.Phone)
			updated = append(updated, "Phone")
		}
		if len(updated) > 0 {
			if err := r.store.UpdateLead(lead); err != nil {
				slog.Error("Router.resumeCoreLeadUpdate: update failed", "lead_id", lead.ID, "error", err)
				r.contexts.Clear(sender)
				return internalErrorReply
			}
			r.logActivity(lead.ID, user.ID, "Core details updated: "+strings.Join(updated, ", "))
			note = fmt.Sprintf("✅ Updated %s for %s.", strings.Join(updated, ", "), lead.CompanyName)
		}
	}

	r.lastCompany.Set(sender, lead.CompanyName)
	r.contexts.Set(sender, PendingContext{
		State:   models.StateAwaitingMeetingDetails,
		Company: lead.CompanyName,
	})
	return note + fmt.Sprintf("\nAny details from the meeting to capture for %s?\n(%s)\nReply with what you have, or 'skip'.", lead.CompanyName, strings.Join(postMeetingFields, ", "))
}

// resumeMeetingDetails captures post-meeting enrichment and ends the
// dialogue with the demo prompt.
func (r *Router) resumeMeetingDetails(ctx context.Context, user *models.User, sender string, pc PendingContext, text string) string {
	r.contexts.Clear(sender)

	demoPrompt := fmt.Sprintf("👉 Next step: Schedule demo for %s on <date time>", pc.Company)
	if IsNegative(text) {
		return "👍 Okay.\n" + demoPrompt
	}

	lead, err := r.store.FindLeadByCompany(pc.Company)
	if err != nil {
		slog.Error("Router.resumeMeetingDetails: lead lookup failed", "company", pc.Company, "error", err)
		return internalErrorReply
	}
	if lead == nil {
		slog.Warn("Router.resumeMeetingDetails: lead gone", "company", pc.Company)
		return lookupFailureReply
	}

	fields, err := r.extractor.UpdateFields(ctx, text, postMeetingFields)
	if err != nil {
		slog.Warn("Router.resumeMeetingDetails: extraction failed", "company", pc.Company, "error", err)
		return "⚠️ I couldn't read those details.\n" + demoPrompt
	}
	updated := applyLeadFields(lead, fields)
	if len(updated) == 0 {
		return "⚠️ I couldn't match those details to any field.\n" + demoPrompt
	}
	if err := r.store.UpdateLead(lead); err != nil {
		slog.Error("Router.resumeMeetingDetails: update failed", "lead_id", lead.ID, "error", err)
		return internalErrorReply
	}
	r.logActivity(lead.ID, user.ID, "Meeting details captured: "+strings.Join(updated, ", "))
	return fmt.Sprintf("✅ Saved %s for %s.\n%s", strings.Join(updated, ", "), lead.CompanyName, demoPrompt)
}

// handleReschedule moves the latest scheduled meeting or demo to a new time.
func (r *Router) handleReschedule(ctx context.Context, user *models.User, text string, typ models.EventType) string {
	_, company, timeText, ok := ParseRescheduleRequest(text)
	if !ok {
		return fmt.Sprintf("📅 To reschedule, send:\nReschedule %s for <company> to <date time>", typ)
	}
	lead, err := r.findLead(ctx, util.CanonicalizeOrRaw(user.Phone), company)
	if err != nil {
		slog.Error("Router.handleReschedule: lead lookup failed", "company", company, "error", err)
		return internalErrorReply
	}
	if lead == nil {
		return fmt.Sprintf("❌ No lead found matching %q.", company)
	}

	event, err := r.store.LatestEvent(lead.ID, typ, models.EventPhaseScheduled)
	if err != nil {
		slog.Error("Router.handleReschedule: event lookup failed", "lead_id", lead.ID, "error", err)
		return internalErrorReply
	}
	if event == nil {
		return fmt.Sprintf("❌ No scheduled %s found for %s.", typ, lead.CompanyName)
	}

	startAt, err := ParseDateTime(timeText, r.now())
	if err != nil {
		return fmt.Sprintf("❌ I couldn't understand the date/time %q.", timeText)
	}
	duration := event.EndAt.Sub(event.StartAt)
	if duration <= 0 {
		duration = meetingDuration
	}
	event.StartAt = startAt
	event.EndAt = startAt.Add(duration)
	if err := r.store.UpdateEvent(event); err != nil {
		slog.Error("Router.handleReschedule: event update failed", "event_id", event.ID, "error", err)
		return internalErrorReply
	}

	// Stale pre-event reminders are replaced wholesale.
	pattern := "%" + string(typ) + "%"
	if err := r.store.DeleteRemindersLike(lead.ID, pattern); err != nil {
		slog.Warn("Router.handleReschedule: reminder cleanup failed", "lead_id", lead.ID, "error", err)
	}
	r.createEventReminders(lead, typ, startAt, user)
	r.logActivity(lead.ID, user.ID, fmt.Sprintf("%s rescheduled to %s", eventLabel(typ), startAt.Format("02 Jan 2006 3:04 PM")))

	return fmt.Sprintf("✅ %s with %s moved to %s.",
		eventLabel(typ), lead.CompanyName, startAt.Format("Mon, 02 Jan 2006 3:04 PM"))
}
