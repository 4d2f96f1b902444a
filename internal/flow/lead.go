package flow

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/richa-2701/leadpilot/internal/models"
	"github.com/richa-2701/leadpilot/internal/util"
)

var newLeadPrefixRe = regexp.MustCompile(`(?i)^new\s+lead\s*[:,-]?\s*`)

// Nurture messages queued for every new lead that has a phone number.
var dripSchedule = []struct {
	after time.Duration
	body  string
}{
	{24 * time.Hour, "👋 Hi! Thanks for your interest. Would you like us to walk you through how our system fits your shop floor?"},
	{72 * time.Hour, "📊 Just checking in. Happy to share a short case study from a plant similar to yours. Interested?"},
}

// handleNewLead creates a lead from a comma-separated or free-text info line.
func (r *Router) handleNewLead(ctx context.Context, user *models.User, text string) string {
	info := newLeadPrefixRe.ReplaceAllString(strings.TrimSpace(text), "")
	if info == "" {
		return "📝 To add a lead, send:\nNew Lead <company>, <contact person>, <phone>"
	}

	fields, err := r.extractor.LeadInfo(ctx, info)
	if err != nil {
		slog.Error("Router.handleNewLead: extraction failed", "error", err)
		return "❌ I couldn't read the lead details. Please use:\nNew Lead <company>, <contact person>, <phone>"
	}
	if fields.CompanyName == "" {
		return "❌ I couldn't find a company name in that. Please use:\nNew Lead <company>, <contact person>, <phone>"
	}

	existing, err := r.store.FindLeadByCompany(fields.CompanyName)
	if err != nil {
		slog.Error("Router.handleNewLead: duplicate check failed", "company", fields.CompanyName, "error", err)
		return internalErrorReply
	}
	if existing != nil {
		return fmt.Sprintf("⚠️ A lead for %s already exists (status: %s).", existing.CompanyName, existing.Status)
	}

	assigneeID := user.ID
	assigneeNote := ""
	var assignee *models.User
	if fields.AssignedTo != "" {
		assignee, err = r.store.FindUserByName(fields.AssignedTo)
		if err != nil {
			slog.Error("Router.handleNewLead: assignee lookup failed", "name", fields.AssignedTo, "error", err)
			return internalErrorReply
		}
		if assignee == nil {
			assigneeNote = fmt.Sprintf("\n⚠️ User %q not found; assigned to you instead.", fields.AssignedTo)
		} else {
			assigneeID = assignee.ID
		}
	}

	lead := &models.Lead{
		CompanyName: fields.CompanyName,
		ContactName: fields.ContactName,
		Phone:       util.CanonicalizeOrRaw(fields.Phone),
		Phone2:      fields.Phone2,
		Email:       fields.Email,
		Address:     fields.Address,
		Segment:     fields.Segment,
		TeamSize:    fields.TeamSize,
		Turnover:    fields.Turnover,
		CurrentSys:  fields.CurrentSys,
		MachineSpec: fields.MachineSpec,
		Challenges:  fields.Challenges,
		Remark:      fields.Remark,
		Source:      fields.Source,
		Status:      models.LeadStatusNew,
		AssignedTo:  assigneeID,
		CreatedBy:   user.ID,
	}
	if err := r.store.CreateLead(lead); err != nil {
		slog.Error("Router.handleNewLead: create failed", "company", lead.CompanyName, "error", err)
		return internalErrorReply
	}
	r.logActivity(lead.ID, user.ID, "Lead created via "+lead.Source)
	slog.Info("Router.handleNewLead: lead created", "lead_id", lead.ID, "company", lead.CompanyName, "by", user.Username)

	r.enqueueDrip(lead)

	if assignee != nil && !util.SamePhone(assignee.Phone, user.Phone) {
		r.notify(ctx, assignee.Phone, fmt.Sprintf("📌 New lead %s has been assigned to you by %s.", lead.CompanyName, user.Username))
	}

	reply := fmt.Sprintf("✅ New lead created: %s", lead.CompanyName)
	if lead.ContactName != "" {
		reply += fmt.Sprintf(" (%s)", lead.ContactName)
	}
	reply += assigneeNote
	if missing := lead.MissingQualificationFields(); len(missing) > 0 {
		reply += fmt.Sprintf("\n📝 Still missing: %s.", strings.Join(missing, ", "))
	}
	return reply
}

// enqueueDrip queues the nurture sequence for a lead with a phone number.
func (r *Router) enqueueDrip(lead *models.Lead) {
	if lead.Phone == "" {
		return
	}
	now := r.now()
	for _, d := range dripSchedule {
		msg := &models.DripMessage{
			LeadID: lead.ID,
			Phone:  lead.Phone,
			Body:   d.body,
			SendAt: now.Add(d.after),
			Status: "pending",
		}
		if err := r.store.CreateDripMessage(msg); err != nil {
			slog.Warn("Router.enqueueDrip: failed to queue drip message", "lead_id", lead.ID, "error", err)
		}
	}
}

// statusPhraseRe matches the words of the disqualification commands so the
// company name can be parsed out of what remains.
var statusPhraseRe = regexp.MustCompile(`(?i)\b(?:is|not\s+interested|unqualif(?:y|ied)|not\s+our\s+segment|mark(?:ed)?|lead|as)\b|(?:because|reason|remark)\s+.*$`)

// setLeadStatus resolves the company and applies a terminal status with an
// optional remark, sharing the shape of unqualify/not-our-segment/not-interested.
func (r *Router) setLeadStatus(ctx context.Context, user *models.User, text string, status models.LeadStatus, verb string) string {
	cleaned := strings.Join(strings.Fields(statusPhraseRe.ReplaceAllString(text, " ")), " ")
	lead, err := r.findLead(ctx, util.CanonicalizeOrRaw(user.Phone), ParseCompany(cleaned))
	if err != nil {
		slog.Error("Router.setLeadStatus: lead lookup failed", "error", err)
		return internalErrorReply
	}
	if lead == nil {
		return fmt.Sprintf("❌ I couldn't tell which lead to mark %s. Try: %s <company> because <reason>", verb, verb)
	}
	remark := ParseRemark(text)
	if err := r.store.UpdateLeadStatus(lead.ID, status, remark, user.ID); err != nil {
		slog.Error("Router.setLeadStatus: status update failed", "lead_id", lead.ID, "error", err)
		return internalErrorReply
	}
	slog.Info("Router.setLeadStatus: status changed", "lead_id", lead.ID, "company", lead.CompanyName, "status", status)
	reply := fmt.Sprintf("✅ %s marked as %s.", lead.CompanyName, status)
	if remark != "" {
		reply += fmt.Sprintf("\n📝 Remark: %s", remark)
	}
	return reply
}

func (r *Router) handleUnqualify(ctx context.Context, user *models.User, text string) string {
	return r.setLeadStatus(ctx, user, text, models.LeadStatusUnqualified, "unqualified")
}

func (r *Router) handleNotOurSegment(ctx context.Context, user *models.User, text string) string {
	return r.setLeadStatus(ctx, user, text, models.LeadStatusNotOurSegment, "not our segment")
}

func (r *Router) handleNotInterested(ctx context.Context, user *models.User, text string) string {
	return r.setLeadStatus(ctx, user, text, models.LeadStatusNotInterested, "not interested")
}

// handleFeedback records free-form feedback on the lead's activity trail.
func (r *Router) handleFeedback(ctx context.Context, user *models.User, text string) string {
	company, feedback, ok := ParseFeedbackRequest(text)
	if !ok {
		return "📝 To record feedback, send:\nFeedback for <company>: <your notes>"
	}
	lead, err := r.findLead(ctx, util.CanonicalizeOrRaw(user.Phone), company)
	if err != nil {
		slog.Error("Router.handleFeedback: lead lookup failed", "company", company, "error", err)
		return internalErrorReply
	}
	if lead == nil {
		return fmt.Sprintf("❌ No lead found matching %q.", company)
	}
	r.logActivity(lead.ID, user.ID, "Feedback: "+feedback)
	return fmt.Sprintf("✅ Feedback recorded for %s.", lead.CompanyName)
}

// handleSendQuotation marks the quotation as sent and logs it.
func (r *Router) handleSendQuotation(ctx context.Context, user *models.User, text string) string {
	company, ok := ParseQuotationRequest(text)
	if !ok {
		company = ParseCompany(text)
	}
	lead, err := r.findLead(ctx, util.CanonicalizeOrRaw(user.Phone), company)
	if err != nil {
		slog.Error("Router.handleSendQuotation: lead lookup failed", "company", company, "error", err)
		return internalErrorReply
	}
	if lead == nil {
		return "❌ I couldn't tell which lead the quotation is for. Try: Send quotation for <company>"
	}
	if err := r.store.UpdateLeadStatus(lead.ID, models.LeadStatusQuotationSent, ParseRemark(text), user.ID); err != nil {
		slog.Error("Router.handleSendQuotation: status update failed", "lead_id", lead.ID, "error", err)
		return internalErrorReply
	}
	return fmt.Sprintf("✅ Quotation marked as sent for %s.", lead.CompanyName)
}
