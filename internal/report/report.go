// Package report builds and delivers the weekly lead digest.
//
// The digest summarizes lead counts by status plus meetings and demos held,
// and goes out to every admin user over WhatsApp and, when SMTP is
// configured, email.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/richa-2701/leadpilot/internal/messaging"
	"github.com/richa-2701/leadpilot/internal/models"
	"github.com/richa-2701/leadpilot/internal/store"
)

// DigestPeriod is the window the weekly digest covers.
const DigestPeriod = 7 * 24 * time.Hour

// WeeklyCronExpr fires Monday mornings at 09:00.
const WeeklyCronExpr = "0 9 * * 1"

// statusOrder fixes the digest line order regardless of map iteration.
var statusOrder = []models.LeadStatus{
	models.LeadStatusNew,
	models.LeadStatusQualified,
	models.LeadStatusMeetingScheduled,
	models.LeadStatusMeetingDone,
	models.LeadStatusDemoScheduled,
	models.LeadStatusDemoDone,
	models.LeadStatusQuotationSent,
	models.LeadStatusUnqualified,
	models.LeadStatusNotOurSegment,
	models.LeadStatusNotInterested,
}

// Digest delivers the weekly summary to admin users.
type Digest struct {
	store  store.Store
	msg    messaging.Service
	mailer Mailer
	now    func() time.Time
}

// DigestOption configures a Digest.
type DigestOption func(*Digest)

// WithMailer adds email delivery alongside WhatsApp.
func WithMailer(m Mailer) DigestOption {
	return func(d *Digest) { d.mailer = m }
}

// WithDigestClock overrides the time source.
func WithDigestClock(now func() time.Time) DigestOption {
	return func(d *Digest) { d.now = now }
}

// NewDigest creates a digest sender over the given store and messaging
// service.
func NewDigest(st store.Store, msg messaging.Service, opts ...DigestOption) *Digest {
	d := &Digest{
		store: st,
		msg:   msg,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Render formats lead statistics as the digest text.
func Render(stats *models.LeadStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Weekly Lead Digest (since %s)\n", stats.Since.Format("02 Jan 2006"))
	fmt.Fprintf(&b, "New leads this week: %d\n", stats.Total)
	for _, status := range statusOrder {
		if n := stats.ByStatus[status]; n > 0 {
			fmt.Fprintf(&b, "• %s: %d\n", status, n)
		}
	}
	fmt.Fprintf(&b, "Meetings held: %d\n", stats.MeetingsHeld)
	fmt.Fprintf(&b, "Demos held: %d", stats.DemosHeld)
	return b.String()
}

// Send builds the digest for the last week and delivers it to every admin.
// Per-recipient failures are logged and do not stop the rest.
func (d *Digest) Send(ctx context.Context) error {
	since := d.now().Add(-DigestPeriod)
	stats, err := d.store.LeadStatsSince(since)
	if err != nil {
		return fmt.Errorf("failed to compute lead stats: %w", err)
	}
	admins, err := d.store.AdminUsers()
	if err != nil {
		return fmt.Errorf("failed to list admin users: %w", err)
	}
	if len(admins) == 0 {
		slog.Warn("Digest.Send: no admin users configured")
		return nil
	}

	body := Render(stats)
	var emails []string
	for _, admin := range admins {
		if admin.Phone != "" {
			if err := d.msg.SendMessage(ctx, admin.Phone, body); err != nil {
				slog.Error("Digest.Send: WhatsApp delivery failed", "to", admin.Phone, "error", err)
			}
		}
		if admin.Email != "" {
			emails = append(emails, admin.Email)
		}
	}

	if d.mailer != nil && len(emails) > 0 {
		subject := fmt.Sprintf("Weekly Lead Digest - %s", d.now().Format("02 Jan 2006"))
		if err := d.mailer.Send(emails, subject, body); err != nil {
			slog.Error("Digest.Send: email delivery failed", "recipients", len(emails), "error", err)
		}
	}
	slog.Info("Digest.Send: digest delivered", "admins", len(admins), "total_leads", stats.Total)
	return nil
}

// Job adapts Send for the cron scheduler.
func (d *Digest) Job(ctx context.Context) func() {
	return func() {
		if err := d.Send(ctx); err != nil {
			slog.Error("Digest.Job: digest run failed", "error", err)
		}
	}
}
