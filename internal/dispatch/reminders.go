// Package dispatch runs LeadPilot's background delivery loops: due reminders
// and the drip nurture queue. Each dispatcher polls the store on an interval
// and pushes messages through the messaging service.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/richa-2701/leadpilot/internal/messaging"
	"github.com/richa-2701/leadpilot/internal/models"
	"github.com/richa-2701/leadpilot/internal/store"
)

// DefaultReminderInterval is how often the reminder queue is polled.
const DefaultReminderInterval = time.Minute

// ReminderDispatcher delivers due reminders over the messaging service.
type ReminderDispatcher struct {
	store    store.Store
	msg      messaging.Service
	interval time.Duration
	now      func() time.Time
}

// ReminderOption configures a ReminderDispatcher.
type ReminderOption func(*ReminderDispatcher)

// WithReminderInterval overrides the poll interval.
func WithReminderInterval(d time.Duration) ReminderOption {
	return func(r *ReminderDispatcher) { r.interval = d }
}

// WithReminderClock overrides the time source.
func WithReminderClock(now func() time.Time) ReminderOption {
	return func(r *ReminderDispatcher) { r.now = now }
}

// NewReminderDispatcher creates a dispatcher over the given store and
// messaging service.
func NewReminderDispatcher(st store.Store, msg messaging.Service, opts ...ReminderOption) *ReminderDispatcher {
	d := &ReminderDispatcher{
		store:    st,
		msg:      msg,
		interval: DefaultReminderInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start runs the poll loop until the context is cancelled.
func (d *ReminderDispatcher) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		slog.Info("ReminderDispatcher: started", "interval", d.interval)
		for {
			select {
			case <-ctx.Done():
				slog.Info("ReminderDispatcher: stopped")
				return
			case <-ticker.C:
				d.DispatchDue(ctx)
			}
		}
	}()
}

// DispatchDue sends every reminder whose time has come and records the
// outcome per reminder. One failure does not block the rest of the batch.
func (d *ReminderDispatcher) DispatchDue(ctx context.Context) {
	due, err := d.store.DueReminders(d.now())
	if err != nil {
		slog.Error("ReminderDispatcher.DispatchDue: query failed", "error", err)
		return
	}
	for _, rem := range due {
		status := models.ReminderStatusSent
		if err := d.msg.SendMessage(ctx, rem.Phone, "⏰ Reminder: "+rem.Message); err != nil {
			slog.Error("ReminderDispatcher.DispatchDue: send failed", "reminder_id", rem.ID, "to", rem.Phone, "error", err)
			status = models.ReminderStatusFailed
		}
		if err := d.store.MarkReminderStatus(rem.ID, status); err != nil {
			slog.Error("ReminderDispatcher.DispatchDue: failed to mark reminder", "reminder_id", rem.ID, "status", status, "error", err)
		}
	}
	if len(due) > 0 {
		slog.Debug("ReminderDispatcher.DispatchDue: batch processed", "count", len(due))
	}
}
