package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/richa-2701/leadpilot/internal/models"
	"github.com/richa-2701/leadpilot/internal/util"
)

// handleReassign moves a lead to another user and notifies them.
func (r *Router) handleReassign(ctx context.Context, user *models.User, text string) string {
	company, assigneeName, ok := ParseReassignRequest(text)
	if !ok {
		return "👥 To reassign a lead, send:\nReassign <company> to <user>"
	}
	lead, err := r.findLead(ctx, util.CanonicalizeOrRaw(user.Phone), company)
	if err != nil {
		slog.Error("Router.handleReassign: lead lookup failed", "company", company, "error", err)
		return internalErrorReply
	}
	if lead == nil {
		return fmt.Sprintf("❌ No lead found matching %q.", company)
	}
	assignee, err := r.store.FindUserByName(assigneeName)
	if err != nil {
		slog.Error("Router.handleReassign: user lookup failed", "name", assigneeName, "error", err)
		return internalErrorReply
	}
	if assignee == nil {
		return fmt.Sprintf("❌ User %q not found.", assigneeName)
	}
	if lead.AssignedTo == assignee.ID {
		return fmt.Sprintf("ℹ️ %s is already assigned to %s.", lead.CompanyName, assignee.Username)
	}

	lead.AssignedTo = assignee.ID
	if err := r.store.UpdateLead(lead); err != nil {
		slog.Error("Router.handleReassign: update failed", "lead_id", lead.ID, "error", err)
		return internalErrorReply
	}
	r.logActivity(lead.ID, user.ID, fmt.Sprintf("Reassigned to %s", assignee.Username))
	slog.Info("Router.handleReassign: lead reassigned", "lead_id", lead.ID, "to", assignee.Username)

	if !util.SamePhone(assignee.Phone, user.Phone) {
		r.notify(ctx, assignee.Phone, fmt.Sprintf("📌 Lead %s has been assigned to you by %s.", lead.CompanyName, user.Username))
	}
	return fmt.Sprintf("✅ %s reassigned to %s.", lead.CompanyName, assignee.Username)
}
