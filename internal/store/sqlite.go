// Package store provides storage backends for LeadPilot.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/richa-2701/leadpilot/internal/models"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Users

func (s *SQLiteStore) CreateUser(u *models.User) error {
	res, err := s.db.Exec(`INSERT INTO users (username, phone, email, department, role) VALUES (?, ?, ?, ?, ?)`,
		u.Username, u.Phone, u.Email, u.Department, u.Role)
	if err != nil {
		slog.Error("SQLiteStore CreateUser failed", "error", err, "username", u.Username)
		return fmt.Errorf("failed to insert user %s: %w", u.Username, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read user id: %w", err)
	}
	u.ID = id
	slog.Debug("SQLiteStore CreateUser succeeded", "id", u.ID, "username", u.Username)
	return nil
}

const userColumns = `id, username, phone, email, department, role, created_at`

func scanUser(row *sql.Row) (*models.User, error) {
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

func (s *SQLiteStore) GetUser(id int64) (*models.User, error) {
	return scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (s *SQLiteStore) FindUserByPhone(phone string) (*models.User, error) {
	return scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE phone = ?`, phone))
}

func (s *SQLiteStore) FindUserByName(name string) (*models.User, error) {
	return scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER(?)`, name))
}

func (s *SQLiteStore) AdminUsers() ([]models.User, error) {
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

const leadColumns = `id, company_name, contact_name, phone, phone_2, email, address, segment, team_size,
	turnover, current_system, machine_specification, challenges, remark, source, status,
	assigned_to, created_by, created_at, updated_at`

func scanLead(row *sql.Row) (*models.Lead, error) {
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

func (s *SQLiteStore) CreateLead(l *models.Lead) error {
	if l.CompanyName == "" {
		return models.ErrEmptyCompanyName
	}
	if l.Status == "" {
		l.Status = models.LeadStatusNew
	}
	res, err := s.db.Exec(`INSERT INTO leads (company_name, contact_name, phone, phone_2, email, address,
		segment, team_size, turnover, current_system, machine_specification, challenges, remark, source,
		status, assigned_to, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.CompanyName, l.ContactName, l.Phone, l.Phone2, l.Email, l.Address,
		l.Segment, l.TeamSize, l.Turnover, l.CurrentSys, l.MachineSpec, l.Challenges, l.Remark, l.Source,
		l.Status, l.AssignedTo, l.CreatedBy)
	if err != nil {
		slog.Error("SQLiteStore CreateLead failed", "error", err, "company", l.CompanyName)
		return fmt.Errorf("failed to insert lead %s: %w", l.CompanyName, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read lead id: %w", err)
	}
	l.ID = id
	slog.Debug("SQLiteStore CreateLead succeeded", "id", l.ID, "company", l.CompanyName)
	return nil
}

func (s *SQLiteStore) GetLead(id int64) (*models.Lead, error) {
	return scanLead(s.db.QueryRow(`SELECT `+leadColumns+` FROM leads WHERE id = ?`, id))
}

func (s *SQLiteStore) FindLeadByCompany(name string) (*models.Lead, error) {
	// Case-insensitive partial match; the most recent lead wins when several match.
	return scanLead(s.db.QueryRow(
		`SELECT `+leadColumns+` FROM leads WHERE LOWER(company_name) LIKE '%' || LOWER(?) || '%' ORDER BY id DESC LIMIT 1`,
		name))
}

func (s *SQLiteStore) UpdateLead(l *models.Lead) error {
	_, err := s.db.Exec(`UPDATE leads SET company_name = ?, contact_name = ?, phone = ?, phone_2 = ?,
		email = ?, address = ?, segment = ?, team_size = ?, turnover = ?, current_system = ?,
		machine_specification = ?, challenges = ?, remark = ?, source = ?, status = ?, assigned_to = ?,
		updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		l.CompanyName, l.ContactName, l.Phone, l.Phone2, l.Email, l.Address, l.Segment, l.TeamSize,
		l.Turnover, l.CurrentSys, l.MachineSpec, l.Challenges, l.Remark, l.Source, l.Status, l.AssignedTo, l.ID)
	if err != nil {
		slog.Error("SQLiteStore UpdateLead failed", "error", err, "id", l.ID)
		return fmt.Errorf("failed to update lead %d: %w", l.ID, err)
	}
	slog.Debug("SQLiteStore UpdateLead succeeded", "id", l.ID)
	return nil
}

func (s *SQLiteStore) UpdateLeadStatus(leadID int64, status models.LeadStatus, remark string, actor int64) error {
	if !models.IsValidLeadStatus(status) {
		return models.ErrInvalidStatus
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var old models.LeadStatus
	if err := tx.QueryRow(`SELECT status FROM leads WHERE id = ?`, leadID).Scan(&old); err != nil {
		return fmt.Errorf("failed to read lead %d status: %w", leadID, err)
	}
	if remark != "" {
		_, err = tx.Exec(`UPDATE leads SET status = ?, remark = CASE WHEN remark = '' THEN ? ELSE remark || char(10) || ? END,
			updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			status, "Status Update: "+remark, "Status Update: "+remark, leadID)
	} else {
		_, err = tx.Exec(`UPDATE leads SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, status, leadID)
	}
	if err != nil {
		return fmt.Errorf("failed to update lead %d status: %w", leadID, err)
	}
	_, err = tx.Exec(`INSERT INTO activity_logs (lead_id, details, created_by) VALUES (?, ?, ?)`,
		leadID, fmt.Sprintf("Status changed from %s to %s", old, status), actor)
	if err != nil {
		return fmt.Errorf("failed to log status change for lead %d: %w", leadID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit status change: %w", err)
	}
	slog.Debug("SQLiteStore UpdateLeadStatus succeeded", "lead_id", leadID, "from", old, "to", status)
	return nil
}

func (s *SQLiteStore) LeadStatsSince(since time.Time) (*models.LeadStats, error) {
	stats := &models.LeadStats{Since: since, ByStatus: make(map[models.LeadStatus]int)}
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM leads WHERE created_at >= ? GROUP BY status`, since)
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
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM events WHERE type = ? AND phase = ? AND created_at >= ?`,
		models.EventTypeMeeting, models.EventPhaseDone, since).Scan(&stats.MeetingsHeld); err != nil {
		return nil, fmt.Errorf("failed to count meetings: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM events WHERE type = ? AND phase = ? AND created_at >= ?`,
		models.EventTypeDemo, models.EventPhaseDone, since).Scan(&stats.DemosHeld); err != nil {
		return nil, fmt.Errorf("failed to count demos: %w", err)
	}
	return stats, nil
}

// Events

func (s *SQLiteStore) CreateEvent(e *models.Event) error {
	if e.Type != models.EventTypeMeeting && e.Type != models.EventTypeDemo {
		return models.ErrInvalidEventType
	}
	if e.Phase == "" {
		e.Phase = models.EventPhaseScheduled
	}
	res, err := s.db.Exec(`INSERT INTO events (lead_id, type, phase, start_at, end_at, assigned_to, remark, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.LeadID, e.Type, e.Phase, e.StartAt, e.EndAt, e.AssignedTo, e.Remark, e.CreatedBy)
	if err != nil {
		slog.Error("SQLiteStore CreateEvent failed", "error", err, "lead_id", e.LeadID, "type", e.Type)
		return fmt.Errorf("failed to insert %s event for lead %d: %w", e.Type, e.LeadID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read event id: %w", err)
	}
	e.ID = id
	slog.Debug("SQLiteStore CreateEvent succeeded", "id", e.ID, "lead_id", e.LeadID, "type", e.Type)
	return nil
}

func (s *SQLiteStore) LatestEvent(leadID int64, typ models.EventType, phase models.EventPhase) (*models.Event, error) {
	row := s.db.QueryRow(`SELECT id, lead_id, type, phase, start_at, end_at, assigned_to, remark, created_by, created_at
		FROM events WHERE lead_id = ? AND type = ? AND phase = ? ORDER BY start_at DESC, id DESC LIMIT 1`,
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

func (s *SQLiteStore) UpdateEvent(e *models.Event) error {
	_, err := s.db.Exec(`UPDATE events SET phase = ?, start_at = ?, end_at = ?, assigned_to = ?, remark = ? WHERE id = ?`,
		e.Phase, e.StartAt, e.EndAt, e.AssignedTo, e.Remark, e.ID)
	if err != nil {
		slog.Error("SQLiteStore UpdateEvent failed", "error", err, "id", e.ID)
		return fmt.Errorf("failed to update event %d: %w", e.ID, err)
	}
	return nil
}

func (s *SQLiteStore) UserBusy(userID int64, start, end time.Time) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM events WHERE assigned_to = ? AND phase = ?
		AND start_at < ? AND (end_at IS NULL OR end_at > ?)`,
		userID, models.EventPhaseScheduled, end, start).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check availability for user %d: %w", userID, err)
	}
	return n > 0, nil
}

// Reminders

func (s *SQLiteStore) CreateReminder(r *models.Reminder) error {
	if r.Phone == "" {
		return models.ErrEmptyPhone
	}
	if r.Status == "" {
		r.Status = models.ReminderStatusPending
	}
	res, err := s.db.Exec(`INSERT INTO reminders (lead_id, user_id, phone, message, remind_at, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.LeadID, r.UserID, r.Phone, r.Message, r.RemindAt, r.Status)
	if err != nil {
		slog.Error("SQLiteStore CreateReminder failed", "error", err, "phone", r.Phone)
		return fmt.Errorf("failed to insert reminder: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read reminder id: %w", err)
	}
	r.ID = id
	return nil
}

func (s *SQLiteStore) DueReminders(now time.Time) ([]models.Reminder, error) {
	rows, err := s.db.Query(`SELECT id, lead_id, user_id, phone, message, remind_at, status
		FROM reminders WHERE status = ? AND remind_at <= ? ORDER BY remind_at`,
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

func (s *SQLiteStore) MarkReminderStatus(id int64, status models.ReminderStatus) error {
	_, err := s.db.Exec(`UPDATE reminders SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to mark reminder %d %s: %w", id, status, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteRemindersLike(leadID int64, pattern string) error {
	_, err := s.db.Exec(`DELETE FROM reminders WHERE lead_id = ? AND status = ? AND LOWER(message) LIKE LOWER(?)`,
		leadID, models.ReminderStatusPending, pattern)
	if err != nil {
		return fmt.Errorf("failed to delete reminders for lead %d: %w", leadID, err)
	}
	return nil
}

func (s *SQLiteStore) FindAndCompleteReminder(leadID int64, pattern string) (bool, error) {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM reminders WHERE lead_id = ? AND status = ? AND LOWER(message) LIKE LOWER(?)
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

func (s *SQLiteStore) CreateActivityLog(a *models.ActivityLog) error {
	res, err := s.db.Exec(`INSERT INTO activity_logs (lead_id, details, created_by) VALUES (?, ?, ?)`,
		a.LeadID, a.Details, a.CreatedBy)
	if err != nil {
		return fmt.Errorf("failed to insert activity log for lead %d: %w", a.LeadID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read activity log id: %w", err)
	}
	a.ID = id
	return nil
}

func (s *SQLiteStore) ActivityLogs(leadID int64) ([]models.ActivityLog, error) {
	rows, err := s.db.Query(`SELECT id, lead_id, details, created_by, created_at
		FROM activity_logs WHERE lead_id = ? ORDER BY created_at DESC`, leadID)
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

func (s *SQLiteStore) CreateDripMessage(d *models.DripMessage) error {
	if d.Status == "" {
		d.Status = "pending"
	}
	res, err := s.db.Exec(`INSERT INTO drip_messages (lead_id, phone, body, send_at, status, attempts)
		VALUES (?, ?, ?, ?, ?, ?)`,
		d.LeadID, d.Phone, d.Body, d.SendAt, d.Status, d.Attempts)
	if err != nil {
		return fmt.Errorf("failed to insert drip message for lead %d: %w", d.LeadID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read drip message id: %w", err)
	}
	d.ID = id
	return nil
}

func (s *SQLiteStore) DueDripMessages(now time.Time) ([]models.DripMessage, error) {
	rows, err := s.db.Query(`SELECT id, lead_id, phone, body, send_at, status, attempts
		FROM drip_messages WHERE status = 'pending' AND send_at <= ? ORDER BY send_at`, now)
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

func (s *SQLiteStore) MarkDripMessageStatus(id int64, status string, attempts int) error {
	_, err := s.db.Exec(`UPDATE drip_messages SET status = ?, attempts = ? WHERE id = ?`, status, attempts, id)
	if err != nil {
		return fmt.Errorf("failed to mark drip message %d %s: %w", id, status, err)
	}
	return nil
}
