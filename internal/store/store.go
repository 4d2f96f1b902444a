// Package store provides storage backends for LeadPilot.
//
// It defines the Store interface the dialogue handlers and background
// dispatchers write through, with SQLite and PostgreSQL implementations plus
// an in-memory store for tests. Lookups that find nothing return (nil, nil);
// callers decide whether absence is an error.
package store

import (
	"strings"
	"time"

	"github.com/richa-2701/leadpilot/internal/models"
)

// Opts holds configuration options for store implementations.
type Opts struct {
	DSN string
}

// Option configures store options.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DSN type constants returned by DetectDSNType.
const (
	DSNTypePostgres = "postgres"
	DSNTypeSQLite   = "sqlite3"
)

// DetectDSNType determines which backend a DSN addresses. Postgres URLs and
// key=value connection strings select postgres; anything else is treated as
// an SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DSNTypePostgres
	}
	if strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return DSNTypePostgres
	}
	return DSNTypeSQLite
}

// Store is the persistence interface for CRM records.
type Store interface {
	// Users
	CreateUser(u *models.User) error
	GetUser(id int64) (*models.User, error)
	FindUserByPhone(phone string) (*models.User, error)
	FindUserByName(name string) (*models.User, error)
	AdminUsers() ([]models.User, error)

	// Leads
	CreateLead(l *models.Lead) error
	GetLead(id int64) (*models.Lead, error)
	FindLeadByCompany(name string) (*models.Lead, error)
	UpdateLead(l *models.Lead) error
	// UpdateLeadStatus sets the lead status and writes the matching activity
	// log entry in one transaction.
	UpdateLeadStatus(leadID int64, status models.LeadStatus, remark string, actor int64) error
	LeadStatsSince(since time.Time) (*models.LeadStats, error)

	// Events (meetings and demos)
	CreateEvent(e *models.Event) error
	// LatestEvent returns the most recently scheduled event of the given type
	// and phase for a lead, or nil when there is none.
	LatestEvent(leadID int64, typ models.EventType, phase models.EventPhase) (*models.Event, error)
	UpdateEvent(e *models.Event) error
	// UserBusy reports whether the user already has a scheduled event
	// overlapping [start, end).
	UserBusy(userID int64, start, end time.Time) (bool, error)

	// Reminders
	CreateReminder(r *models.Reminder) error
	DueReminders(now time.Time) ([]models.Reminder, error)
	MarkReminderStatus(id int64, status models.ReminderStatus) error
	// DeleteRemindersLike removes pending reminders for a lead whose message
	// matches the SQL LIKE pattern.
	DeleteRemindersLike(leadID int64, pattern string) error
	// FindAndCompleteReminder marks the first pending reminder matching the
	// pattern as completed, reporting whether one was found.
	FindAndCompleteReminder(leadID int64, pattern string) (bool, error)

	// Activity log
	CreateActivityLog(a *models.ActivityLog) error
	ActivityLogs(leadID int64) ([]models.ActivityLog, error)

	// Drip campaign
	CreateDripMessage(d *models.DripMessage) error
	DueDripMessages(now time.Time) ([]models.DripMessage, error)
	MarkDripMessageStatus(id int64, status string, attempts int) error

	Close() error
}
