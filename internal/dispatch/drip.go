package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/richa-2701/leadpilot/internal/messaging"
	"github.com/richa-2701/leadpilot/internal/store"
)

// DefaultDripInterval is how often the drip queue is polled.
const DefaultDripInterval = 5 * time.Minute

// MaxDripAttempts is how many sends are tried before a drip message is
// marked failed.
const MaxDripAttempts = 3

// Drip message statuses as stored.
const (
	DripStatusPending = "pending"
	DripStatusSent    = "sent"
	DripStatusFailed  = "failed"
)

// DripDispatcher delivers queued nurture messages to leads.
type DripDispatcher struct {
	store    store.Store
	msg      messaging.Service
	interval time.Duration
	now      func() time.Time
}

// DripOption configures a DripDispatcher.
type DripOption func(*DripDispatcher)

// WithDripInterval overrides the poll interval.
func WithDripInterval(d time.Duration) DripOption {
	return func(dd *DripDispatcher) { dd.interval = d }
}

// WithDripClock overrides the time source.
func WithDripClock(now func() time.Time) DripOption {
	return func(dd *DripDispatcher) { dd.now = now }
}

// NewDripDispatcher creates a dispatcher over the given store and messaging
// service.
func NewDripDispatcher(st store.Store, msg messaging.Service, opts ...DripOption) *DripDispatcher {
	d := &DripDispatcher{
		store:    st,
		msg:      msg,
		interval: DefaultDripInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start runs the poll loop until the context is cancelled.
func (d *DripDispatcher) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		slog.Info("DripDispatcher: started", "interval", d.interval)
		for {
			select {
			case <-ctx.Done():
				slog.Info("DripDispatcher: stopped")
				return
			case <-ticker.C:
				d.DispatchDue(ctx)
			}
		}
	}()
}

// DispatchDue sends due drip messages. A failed send stays pending until
// MaxDripAttempts is reached, then the message is marked failed.
func (d *DripDispatcher) DispatchDue(ctx context.Context) {
	due, err := d.store.DueDripMessages(d.now())
	if err != nil {
		slog.Error("DripDispatcher.DispatchDue: query failed", "error", err)
		return
	}
	for _, msg := range due {
		attempts := msg.Attempts + 1
		status := DripStatusSent
		if err := d.msg.SendMessage(ctx, msg.Phone, msg.Body); err != nil {
			slog.Error("DripDispatcher.DispatchDue: send failed", "drip_id", msg.ID, "to", msg.Phone, "attempt", attempts, "error", err)
			status = DripStatusPending
			if attempts >= MaxDripAttempts {
				status = DripStatusFailed
			}
		}
		if err := d.store.MarkDripMessageStatus(msg.ID, status, attempts); err != nil {
			slog.Error("DripDispatcher.DispatchDue: failed to mark message", "drip_id", msg.ID, "status", status, "error", err)
		}
	}
	if len(due) > 0 {
		slog.Debug("DripDispatcher.DispatchDue: batch processed", "count", len(due))
	}
}
