// Package store provides storage backends for LeadPilot.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"

	"github.com/richa-2701/leadpilot/internal/models"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN and runs
// migrations.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Users

func (s *PostgresStore) CreateUser(u *models.User) error {
	err := s.db.QueryRow(`INSERT INTO users (username, phone, email, department, role)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		u.Username, u.Phone, u.Email, u.Department, u.Role).Scan(&u.ID)
	if err != nil {
		slog.Error("PostgresStore CreateUser failed", "error", err, "username", u.Username)
		return fmt.Errorf("failed to insert user %s: %w", u.Username, err)
	}
	return nil
}

func pgScanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Phone, &u.Email, &u.Department, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user row: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) GetUser(id int64) (*models.User, error) {
	return pgScanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *PostgresStore) FindUserByPhone(phone string) (*models.User, error) {
	return pgScanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE phone = $1`, phone))
}

func (s *PostgresStore) FindUserByName(name string) (*models.User, error) {
	return pgScanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER($1)`, name))
}

func (s *PostgresStore) AdminUsers() ([]models.User, error) {
	rows, err := s.db.Query(`SELECT ` + userColumns + ` FROM users WHERE role = 'admin'`)
	if err != nil {
		return nil, fmt.Errorf("failed to query admin users: %w", err)
	}
	defer rows.Close()
	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Phone, &u.Email, &u.Department, &u.Role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Leads

func pgScanLead(row *sql.Row) (*models.Lead, error) {
	var l models.Lead
	err := row.Scan(&l.ID, &l.CompanyName, &l.ContactName, &l.Phone, &l.Phone2, &l.Email,
		&l.Address, &l.Segment, &l.TeamSize, &l.Turnover, &l.CurrentSys, &l.MachineSpec,
		&l.Challenges, &l.Remark, &l.Source, &l.Status, &l.AssignedTo, &l.CreatedBy,
		&l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan lead row: %w", err)
	}
	return &l, nil
}

func (s *PostgresStore) CreateLead(l *models.Lead) error {
	if l.CompanyName == "" {
		return models.ErrEmptyCompanyName
	}
	if l.Status == "" {
		l.Status = models.LeadStatusNew
	}
	err := s.db.QueryRow(`INSERT INTO leads (company_name, contact_name, phone, phone_2, email, address,
		segment, team_size, turnover, current_system, machine_specification, challenges, remark, source,
		status, assigned_to, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17) RETURNING id`,
		l.CompanyName, l.ContactName, l.Phone, l.Phone2, l.Email, l.Address,
		l.Segment, l.TeamSize, l.Turnover, l.CurrentSys, l.MachineSpec, l.Challenges, l.Remark, l.Source,
		l.Status, l.AssignedTo, l.CreatedBy).Scan(&l.ID)
	if err != nil {
		slog.Error("PostgresStore CreateLead failed", "error", err, "company", l.CompanyName)
		return fmt.Errorf("failed to insert lead %s: %w", l.CompanyName, err)
	}
	return nil
}

func (s *PostgresStore) GetLead(id int64) (*models.Lead, error) {
	return pgScanLead(s.db.QueryRow(`SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
}

func (s *PostgresStore) FindLeadByCompany(name string) (*models.Lead, error) {
	return pgScanLead(s.db.QueryRow(
		`SELECT `+leadColumns+` FROM leads WHERE company_name ILIKE '%' || $1 || '%' ORDER BY id DESC LIMIT 1`,
		name))
}

func (s *PostgresStore) UpdateLead(l *models.Lead) error {
	_, err := s.db.Exec(`UPDATE leads SET company_name = $1, contact_name = $2, phone = $3, phone_2 = $4,
		email = $5, address = $6, segment = $7, team_size = $8, turnover = $9, current_system = $10,
		machine_specification = $11, challenges = $12, remark = $13, source = $14, status = $15,
		assigned_to = $16, updated_at = NOW() WHERE id = $17`,
		l.CompanyName, l.ContactName, l.Phone, l.Phone2, l.Email, l.Address, l.Segment, l.TeamSize,
		l.Turnover, l.CurrentSys, l.MachineSpec, l.Challenges, l.Remark, l.Source, l.Status, l.AssignedTo, l.ID)
	if err != nil {
		slog.Error("PostgresStore UpdateLead failed", "error", err, "id", l.ID)
		return fmt.Errorf("failed to update lead %d: %w", l.ID, err)
	}
	return nil
}

func (s *PostgresStore) UpdateLeadStatus(leadID int64, status models.LeadStatus, remark string, actor int64) error {
	if !models.IsValidLeadStatus(status) {
		return models.ErrInvalidStatus
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var old models.LeadStatus
	if err := tx.QueryRow(`SELECT status FROM leads WHERE id = $1`, leadID).Scan(&old); err != nil {
		return fmt.Errorf("failed to read lead %d status: %w", leadID, err)
	}
	if remark != "" {
		_, err = tx.Exec(`UPDATE leads SET status = $1,
			remark = CASE WHEN remark = '' THEN $2 ELSE remark || E'\n' || $2 END,
			updated_at = NOW() WHERE id = $3`,
			status, "Status Update: "+remark, leadID)
	} else {
		_, err = tx.Exec(`UPDATE leads SET status = $1, updated_at = NOW() WHERE id = $2`, status, leadID)
	}
	if err != nil {
		return fmt.Errorf("failed to update lead %d status: %w", leadID, err)
	}
	_, err = tx.Exec(`INSERT INTO activity_logs (lead_id, details, created_by) VALUES ($1, $2, $3)`,
		leadID, fmt.Sprintf("Status changed from %s to %s", old, status), actor)
	if err != nil {
		return fmt.Errorf("failed to log status change for lead %d: %w", leadID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit status change: %w", err)
	}
	return nil
}

func (s *PostgresStore) LeadStatsSince(since time.Time) (*models.LeadStats, error) {
	stats := &models.LeadStats{Since: since, ByStatus: make(map[models.LeadStatus]int)}
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM leads WHERE created_at >= $1 GROUP BY status`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query lead stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var st models.LeadStatus
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("failed to scan stats row: %w", err)
		}
		stats.ByStatus[st] = n
		stats.Total += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM events WHERE type = $1 AND phase = $2 AND created_at >= $3`,
		models.EventTypeMeeting, models.EventPhaseDone, since).Scan(&stats.MeetingsHeld); err != nil {
		return nil, fmt.Errorf("failed to count meetings: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM events WHERE type = $1 AND phase = $2 AND created_at >= $3`,
		models.EventTypeDemo, models.EventPhaseDone, since).Scan(&stats.DemosHeld); err != nil {
		return nil, fmt.Errorf("failed to count demos: %w", err)
	}
	return stats, nil
}

// Events

func (s *PostgresStore) CreateEvent(e *models.Event) error {
	if e.Type != models.EventTypeMeeting && e.Type != models.EventTypeDemo {
		return models.ErrInvalidEventType
	}
	if e.Phase == "" {
		e.Phase = models.EventPhaseScheduled
	}
	err := s.db.QueryRow(`INSERT INTO events (lead_id, type, phase, start_at, end_at, assigned_to, remark, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		e.LeadID, e.Type, e.Phase, e.StartAt, e.EndAt, e.AssignedTo, e.Remark, e.CreatedBy).Scan(&e.ID)
	if err != nil {
		slog.Error("PostgresStore CreateEvent failed", "error", err, "lead_id", e.LeadID, "type", e.Type)
		return fmt.Errorf("failed to insert %s event for lead %d: %w", e.Type, e.LeadID, err)
	}
	return nil
}

func (s *PostgresStore) LatestEvent(leadID int64, typ models.EventType, phase models.EventPhase) (*models.Event, error) {
	row := s.db.QueryRow(`SELECT id, lead_id, type, phase, start_at, end_at, assigned_to, remark, created_by, created_at
		FROM events WHERE lead_id = $1 AND type = $2 AND phase = $3 ORDER BY start_at DESC, id DESC LIMIT 1`,
		leadID, typ, phase)
	var e models.Event
	var endAt sql.NullTime
	err := row.Scan(&e.ID, &e.LeadID, &e.Type, &e.Phase, &e.StartAt, &endAt, &e.AssignedTo, &e.Remark, &e.CreatedBy, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan event row: %w", err)
	}
	if endAt.Valid {
		e.EndAt = endAt.Time
	}
	return &e, nil
}

func (s *PostgresStore) UpdateEvent(e *models.Event) error {
	_, err := s.db.Exec(`UPDATE events SET phase = $1, start_at = $2, end_at = $3, assigned_to = $4, remark = $5 WHERE id = $6`,
		e.Phase, e.StartAt, e.EndAt, e.AssignedTo, e.Remark, e.ID)
	if err != nil {
		slog.Error("PostgresStore UpdateEvent failed", "error", err, "id", e.ID)
		return fmt.Errorf("failed to update event %d: %w", e.ID, err)
	}
	return nil
}

func (s *PostgresStore) UserBusy(userID int64, start, end time.Time) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM events WHERE assigned_to = $1 AND phase = $2
		AND start_at < $3 AND (end_at IS NULL OR end_at > $4)`,
		userID, models.EventPhaseScheduled, end, start).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check availability for user %d: %w", userID, err)
	}
	return n > 0, nil
}

// Reminders

func (s *PostgresStore) CreateReminder(r *models.Reminder) error {
	if r.Phone == "" {
		return models.ErrEmptyPhone
	}
	if r.Status == "" {
		r.Status = models.ReminderStatusPending
	}
	err := s.db.QueryRow(`INSERT INTO reminders (lead_id, user_id, phone, message, remind_at, status)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		r.LeadID, r.UserID, r.Phone, r.Message, r.RemindAt, r.Status).Scan(&r.ID)
	if err != nil {
		slog.Error("PostgresStore CreateReminder failed", "error", err, "phone", r.Phone)
		return fmt.Errorf("failed to insert reminder: %w", err)
	}
	return nil
}

func (s *PostgresStore) DueReminders(now time.Time) ([]models.Reminder, error) {
	rows, err := s.db.Query(`SELECT id, lead_id, user_id, phone, message, remind_at, status
		FROM reminders WHERE status = $1 AND remind_at <= $2 ORDER BY remind_at`,
		models.ReminderStatusPending, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due reminders: %w", err)
	}
	defer rows.Close()
	var reminders []models.Reminder
	for rows.Next() {
		var r models.Reminder
		if err := rows.Scan(&r.ID, &r.LeadID, &r.UserID, &r.Phone, &r.Message, &r.RemindAt, &r.Status); err != nil {
			return nil, fmt.Errorf("failed to scan reminder row: %w", err)
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

func (s *PostgresStore) MarkReminderStatus(id int64, status models.ReminderStatus) error {
	_, err := s.db.Exec(`UPDATE reminders SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to mark reminder %d %s: %w", id, status, err)
	}
	return nil
}

func (s *PostgresStore) DeleteRemindersLike(leadID int64, pattern string) error {
	_, err := s.db.Exec(`DELETE FROM reminders WHERE lead_id = $1 AND status = $2 AND message ILIKE $3`,
		leadID, models.ReminderStatusPending, pattern)
	if err != nil {
		return fmt.Errorf("failed to delete reminders for lead %d: %w", leadID, err)
	}
	return nil
}

func (s *PostgresStore) FindAndCompleteReminder(leadID int64, pattern string) (bool, error) {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM reminders WHERE lead_id = $1 AND status = $2 AND message ILIKE $3
		ORDER BY remind_at LIMIT 1`, leadID, models.ReminderStatusPending, pattern).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to find reminder for lead %d: %w", leadID, err)
	}
	if err := s.MarkReminderStatus(id, models.ReminderStatusCompleted); err != nil {
		return false, err
	}
	return true, nil
}

// Activity log

func (s *PostgresStore) CreateActivityLog(a *models.ActivityLog) error {
	err := s.db.QueryRow(`INSERT INTO activity_logs (lead_id, details, created_by) VALUES ($1, $2, $3) RETURNING id`,
		a.LeadID, a.Details, a.CreatedBy).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to insert activity log for lead %d: %w", a.LeadID, err)
	}
	return nil
}

func (s *PostgresStore) ActivityLogs(leadID int64) ([]models.ActivityLog, error) {
	rows, err := s.db.Query(`SELECT id, lead_id, details, created_by, created_at
		FROM activity_logs WHERE lead_id = $1 ORDER BY created_at DESC`, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity logs for lead %d: %w", leadID, err)
	}
	defer rows.Close()
	var logs []models.ActivityLog
	for rows.Next() {
		var a models.ActivityLog
		if err := rows.Scan(&a.ID, &a.LeadID, &a.Details, &a.CreatedBy, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity log row: %w", err)
		}
		logs = append(logs, a)
	}
	return logs, rows.Err()
}

// Drip campaign

func (s *PostgresStore) CreateDripMessage(d *models.DripMessage) error {
	if d.Status == "" {
		d.Status = "pending"
	}
	err := s.db.QueryRow(`INSERT INTO drip_messages (lead_id, phone, body, send_at, status, attempts)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		d.LeadID, d.Phone, d.Body, d.SendAt, d.Status, d.Attempts).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("failed to insert drip message for lead %d: %w", d.LeadID, err)
	}
	return nil
}

func (s *PostgresStore) DueDripMessages(now time.Time) ([]models.DripMessage, error) {
	rows, err := s.db.Query(`SELECT id, lead_id, phone, body, send_at, status, attempts
		FROM drip_messages WHERE status = 'pending' AND send_at <= $1 ORDER BY send_at`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due drip messages: %w", err)
	}
	defer rows.Close()
	var msgs []models.DripMessage
	for rows.Next() {
		var d models.DripMessage
		if err := rows.Scan(&d.ID, &d.LeadID, &d.Phone, &d.Body, &d.SendAt, &d.Status, &d.Attempts); err != nil {
			return nil, fmt.Errorf("failed to scan drip message row: %w", err)
		}
		msgs = append(msgs, d)
	}
	return msgs, rows.Err()
}

func (s *PostgresStore) MarkDripMessageStatus(id int64, status string, attempts int) error {
	_, err := s.db.Exec(`UPDATE drip_messages SET status = $1, attempts = $2 WHERE id = $3`, status, attempts, id)
	if err != nil {
		return fmt.Errorf("failed to mark drip message %d %s: %w", id, status, err)
	}
	return nil
}
