package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/richa-2701/leadpilot/internal/extract"
	"github.com/richa-2701/leadpilot/internal/models"
)

// handleQualifyLead marks a lead qualified and starts the enrichment
// dialogue. When the company cannot be resolved from the message, the sender
// is asked for it and the next message is read as the bare company name.
func (r *Router) handleQualifyLead(ctx context.Context, user *models.User, sender, text string) string {
	company := ParseCompany(text)
	if company != "" {
		lead, err := r.store.FindLeadByCompany(company)
		if err != nil {
			slog.Error("Router.handleQualifyLead: lead lookup failed", "company", company, "error", err)
			return internalErrorReply
		}
		if lead != nil {
			r.lastCompany.Set(sender, lead.CompanyName)
			return r.startQualification(ctx, user, sender, lead, ParseRemark(text))
		}
	}
	r.contexts.Set(sender, PendingContext{State: models.StateQualificationPending})
	return "❓ Which company do you want to qualify? Reply with the company name."
}

// startQualification performs the status change and decides the next
// dialogue step: collect missing enrichment fields, or go straight to the
// next-phase decision when the record is already complete.
func (r *Router) startQualification(ctx context.Context, user *models.User, sender string, lead *models.Lead, remark string) string {
	if err := r.store.UpdateLeadStatus(lead.ID, models.LeadStatusQualified, remark, user.ID); err != nil {
		slog.Error("Router.startQualification: status update failed", "lead_id", lead.ID, "error", err)
		r.contexts.Clear(sender)
		return internalErrorReply
	}
	slog.Info("Router.startQualification: lead qualified", "lead_id", lead.ID, "company", lead.CompanyName, "by", user.Username)

	missing := lead.MissingQualificationFields()
	if len(missing) > 0 {
		r.contexts.Set(sender, PendingContext{
			State:   models.StateAwaitingQualificationDetails,
			Company: lead.CompanyName,
			Missing: missing,
		})
		return fmt.Sprintf("✅ %s marked as Qualified.\n📝 A few details are missing: %s.\nPlease share them in that order, or reply 'skip'.",
			lead.CompanyName, strings.Join(missing, ", "))
	}

	r.contexts.Set(sender, PendingContext{
		State:   models.StateAwaitingFourPhaseDecision,
		Company: lead.CompanyName,
	})
	return fmt.Sprintf("✅ %s marked as Qualified. All details are on file.\nShall we move to the next phase and schedule a meeting? (yes/no)", lead.CompanyName)
}

// resumeQualificationPending treats the entire message as the company name
// the sender was asked for. Any lookup problem clears the pending context so
// the sender is never stuck in a broken dialogue.
func (r *Router) resumeQualificationPending(ctx context.Context, user *models.User, sender, text string) string {
	company := cleanCompany(text)
	if company == "" {
		r.contexts.Clear(sender)
		return "❌ I didn't catch a company name. Please start over with 'Qualify lead for <company>'."
	}
	lead, err := r.store.FindLeadByCompany(company)
	if err != nil {
		slog.Error("Router.resumeQualificationPending: lead lookup failed", "company", company, "error", err)
		r.contexts.Clear(sender)
		return internalErrorReply
	}
	if lead == nil {
		r.contexts.Clear(sender)
		return fmt.Sprintf("❌ No lead found matching %q. Please check the name and start over with a fresh command.", company)
	}
	r.lastCompany.Set(sender, lead.CompanyName)
	return r.startQualification(ctx, user, sender, lead, "")
}

// resumeQualificationDetails applies the sender's reply to the fields that
// were missing. A negative reply skips the update entirely. Either way the
// dialogue advances to the next-phase decision.
func (r *Router) resumeQualificationDetails(ctx context.Context, user *models.User, sender string, pc PendingContext, text string) string {
	var note string
	if IsNegative(text) {
		note = "👍 No problem, we can fill those in later."
	} else {
		lead, err := r.store.FindLeadByCompany(pc.Company)
		if err != nil {
			slog.Error("Router.resumeQualificationDetails: lead lookup failed", "company", pc.Company, "error", err)
			r.contexts.Clear(sender)
			return internalErrorReply
		}
		if lead == nil {
			slog.Warn("Router.resumeQualificationDetails: lead gone", "company", pc.Company)
			r.contexts.Clear(sender)
			return lookupFailureReply
		}
		fields, err := r.extractor.UpdateFields(ctx, text, pc.Missing)
		if err != nil {
			slog.Warn("Router.resumeQualificationDetails: extraction failed", "company", pc.Company, "error", err)
			note = "⚠️ I couldn't read those details. We can fill them in later."
		} else {
			updated := applyLeadFields(lead, fields)
			if len(updated) > 0 {
				if err := r.store.UpdateLead(lead); err != nil {
					slog.Error("Router.resumeQualificationDetails: lead update failed", "lead_id", lead.ID, "error", err)
					r.contexts.Clear(sender)
					return internalErrorReply
				}
				r.logActivity(lead.ID, user.ID, "Details updated: "+strings.Join(updated, ", "))
				note = fmt.Sprintf("✅ Updated %s for %s.", strings.Join(updated, ", "), lead.CompanyName)
			} else {
				note = "⚠️ I couldn't match those details to the missing fields."
			}
		}
	}

	r.contexts.Set(sender, PendingContext{
		State:   models.StateAwaitingFourPhaseDecision,
		Company: pc.Company,
	})
	return note + fmt.Sprintf("\nShall we move to the next phase and schedule a meeting for %s? (yes/no)", pc.Company)
}

// resumeFourPhaseDecision ends the qualification dialogue. Both branches
// answer with the exact command to send next; nothing is booked here.
func (r *Router) resumeFourPhaseDecision(ctx context.Context, sender string, pc PendingContext, text string) string {
	r.contexts.Clear(sender)
	if IsPositive(text) {
		return fmt.Sprintf("👍 Great! To book it, send:\nSchedule meeting with %s on <date time>", pc.Company)
	}
	return fmt.Sprintf("Okay. Whenever you're ready, you can send:\nSchedule demo for %s on <date time>", pc.Company)
}

// applyLeadFields copies non-empty extracted values onto the lead and returns
// the names of the fields that changed.
func applyLeadFields(lead *models.Lead, f *extract.LeadFields) []string {
	var updated []string
	set := func(name, value string, dst *string) {
		if value != "" {
			*dst = value
			updated = append(updated, name)
		}
	}
	set("Address", f.Address, &lead.Address)
	set("Segment", f.Segment, &lead.Segment)
	set("Team Size", f.TeamSize, &lead.TeamSize)
	set("Email", f.Email, &lead.Email)
	set("Remark", f.Remark, &lead.Remark)
	set("Phone 2", f.Phone2, &lead.Phone2)
	set("Turnover", f.Turnover, &lead.Turnover)
	set("Current System", f.CurrentSys, &lead.CurrentSys)
	set("Machine Specification", f.MachineSpec, &lead.MachineSpec)
	set("Challenges", f.Challenges, &lead.Challenges)
	return updated
}

// logActivity writes an audit entry, logging instead of failing the flow
// when the write does not go through.
func (r *Router) logActivity(leadID, userID int64, details string) {
	err := r.store.CreateActivityLog(&models.ActivityLog{
		LeadID:    leadID,
		Details:   details,
		CreatedBy: userID,
	})
	if err != nil {
		slog.Warn("Router.logActivity: failed to record activity", "lead_id", leadID, "error", err)
	}
}
