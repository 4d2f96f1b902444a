// Package store provides storage backends for LeadPilot.
//
// This file implements an in-memory store used by tests and by deployments
// that do not need persistence.
package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/richa-2701/leadpilot/internal/models"
)

// MemoryStore keeps all records in process memory. Safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64

	users        map[int64]*models.User
	leads        map[int64]*models.Lead
	events       map[int64]*models.Event
	reminders    map[int64]*models.Reminder
	activityLogs map[int64]*models.ActivityLog
	dripMessages map[int64]*models.DripMessage
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[int64]*models.User),
		leads:        make(map[int64]*models.Lead),
		events:       make(map[int64]*models.Event),
		reminders:    make(map[int64]*models.Reminder),
		activityLogs: make(map[int64]*models.ActivityLog),
		dripMessages: make(map[int64]*models.DripMessage),
	}
}

func (s *MemoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *MemoryStore) Close() error { return nil }

// Users

func (s *MemoryStore) CreateUser(u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = s.id()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *MemoryStore) GetUser(id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (s *MemoryStore) FindUserByPhone(phone string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Phone == phone {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) FindUserByName(name string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Username, name) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) AdminUsers() ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var admins []models.User
	for _, u := range s.users {
		if u.Role == "admin" {
			admins = append(admins, *u)
		}
	}
	sort.Slice(admins, func(i, j int) bool { return admins[i].ID < admins[j].ID })
	return admins, nil
}

// Leads

func (s *MemoryStore) CreateLead(l *models.Lead) error {
	if l.CompanyName == "" {
		return models.ErrEmptyCompanyName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l.ID = s.id()
	if l.Status == "" {
		l.Status = models.LeadStatusNew
	}
	now := time.Now()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now
	cp := *l
	s.leads[l.ID] = &cp
	return nil
}

func (s *MemoryStore) GetLead(id int64) (*models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if l, ok := s.leads[id]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, nil
}

func (s *MemoryStore) FindLeadByCompany(name string) (*models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil, nil
	}
	var best *models.Lead
	for _, l := range s.leads {
		if strings.Contains(strings.ToLower(l.CompanyName), needle) {
			if best == nil || l.ID > best.ID {
				best = l
			}
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (s *MemoryStore) UpdateLead(l *models.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.leads[l.ID]; !ok {
		return fmt.Errorf("lead %d not found", l.ID)
	}
	l.UpdatedAt = time.Now()
	cp := *l
	s.leads[l.ID] = &cp
	return nil
}

func (s *MemoryStore) UpdateLeadStatus(leadID int64, status models.LeadStatus, remark string, actor int64) error {
	if !models.IsValidLeadStatus(status) {
		return models.ErrInvalidStatus
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[leadID]
	if !ok {
		return fmt.Errorf("lead %d not found", leadID)
	}
	old := l.Status
	l.Status = status
	if remark != "" {
		entry := "Status Update: " + remark
		if l.Remark == "" {
			l.Remark = entry
		} else {
			l.Remark += "\n" + entry
		}
	}
	l.UpdatedAt = time.Now()
	id := s.id()
	s.activityLogs[id] = &models.ActivityLog{
		ID:        id,
		LeadID:    leadID,
		Details:   fmt.Sprintf("Status changed from %s to %s", old, status),
		CreatedBy: actor,
		CreatedAt: time.Now(),
	}
	return nil
}

func (s *MemoryStore) LeadStatsSince(since time.Time) (*models.LeadStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := &models.LeadStats{Since: since, ByStatus: make(map[models.LeadStatus]int)}
	for _, l := range s.leads {
		if !l.CreatedAt.Before(since) {
			stats.ByStatus[l.Status]++
			stats.Total++
		}
	}
	for _, e := range s.events {
		if e.Phase == models.EventPhaseDone && !e.CreatedAt.Before(since) {
			switch e.Type {
			case models.EventTypeMeeting:
				stats.MeetingsHeld++
			case models.EventTypeDemo:
				stats.DemosHeld++
			}
		}
	}
	return stats, nil
}

// Events

func (s *MemoryStore) CreateEvent(e *models.Event) error {
	if e.Type != models.EventTypeMeeting && e.Type != models.EventTypeDemo {
		return models.ErrInvalidEventType
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.id()
	if e.Phase == "" {
		e.Phase = models.EventPhaseScheduled
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	cp := *e
	s.events[e.ID] = &cp
	return nil
}

func (s *MemoryStore) LatestEvent(leadID int64, typ models.EventType, phase models.EventPhase) (*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *models.Event
	for _, e := range s.events {
		if e.LeadID != leadID || e.Type != typ || e.Phase != phase {
			continue
		}
		if best == nil || e.StartAt.After(best.StartAt) || (e.StartAt.Equal(best.StartAt) && e.ID > best.ID) {
			best = e
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (s *MemoryStore) UpdateEvent(e *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[e.ID]; !ok {
		return fmt.Errorf("event %d not found", e.ID)
	}
	cp := *e
	s.events[e.ID] = &cp
	return nil
}

func (s *MemoryStore) UserBusy(userID int64, start, end time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.events {
		if e.AssignedTo != userID || e.Phase != models.EventPhaseScheduled {
			continue
		}
		eventEnd := e.EndAt
		if eventEnd.IsZero() {
			eventEnd = e.StartAt.Add(time.Hour)
		}
		if e.StartAt.Before(end) && eventEnd.After(start) {
			return true, nil
		}
	}
	return false, nil
}

// Reminders

func (s *MemoryStore) CreateReminder(r *models.Reminder) error {
	if r.Phone == "" {
		return models.ErrEmptyPhone
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.id()
	if r.Status == "" {
		r.Status = models.ReminderStatusPending
	}
	cp := *r
	s.reminders[r.ID] = &cp
	return nil
}

func (s *MemoryStore) DueReminders(now time.Time) ([]models.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []models.Reminder
	for _, r := range s.reminders {
		if r.Status == models.ReminderStatusPending && !r.RemindAt.After(now) {
			due = append(due, *r)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].RemindAt.Before(due[j].RemindAt) })
	return due, nil
}

func (s *MemoryStore) MarkReminderStatus(id int64, status models.ReminderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if !ok {
		return fmt.Errorf("reminder %d not found", id)
	}
	r.Status = status
	return nil
}

// matchLike implements the subset of SQL LIKE the reminder queries use:
// '%' wildcards around a literal fragment, case-insensitive.
func matchLike(message, pattern string) bool {
	frag := strings.ToLower(strings.Trim(pattern, "%"))
	return strings.Contains(strings.ToLower(message), frag)
}

func (s *MemoryStore) DeleteRemindersLike(leadID int64, pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.reminders {
		if r.LeadID == leadID && r.Status == models.ReminderStatusPending && matchLike(r.Message, pattern) {
			delete(s.reminders, id)
		}
	}
	return nil
}

func (s *MemoryStore) FindAndCompleteReminder(leadID int64, pattern string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *models.Reminder
	for _, r := range s.reminders {
		if r.LeadID == leadID && r.Status == models.ReminderStatusPending && matchLike(r.Message, pattern) {
			if best == nil || r.RemindAt.Before(best.RemindAt) {
				best = r
			}
		}
	}
	if best == nil {
		return false, nil
	}
	best.Status = models.ReminderStatusCompleted
	return true, nil
}

// Activity log

func (s *MemoryStore) CreateActivityLog(a *models.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.id()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	cp := *a
	s.activityLogs[a.ID] = &cp
	return nil
}

func (s *MemoryStore) ActivityLogs(leadID int64) ([]models.ActivityLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var logs []models.ActivityLog
	for _, a := range s.activityLogs {
		if a.LeadID == leadID {
			logs = append(logs, *a)
		}
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].ID > logs[j].ID })
	return logs, nil
}

// Drip campaign

func (s *MemoryStore) CreateDripMessage(d *models.DripMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.ID = s.id()
	if d.Status == "" {
		d.Status = "pending"
	}
	cp := *d
	s.dripMessages[d.ID] = &cp
	return nil
}

func (s *MemoryStore) DueDripMessages(now time.Time) ([]models.DripMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []models.DripMessage
	for _, d := range s.dripMessages {
		if d.Status == "pending" && !d.SendAt.After(now) {
			due = append(due, *d)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].SendAt.Before(due[j].SendAt) })
	return due, nil
}

func (s *MemoryStore) MarkDripMessageStatus(id int64, status string, attempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.dripMessages[id]
	if !ok {
		return fmt.Errorf("drip message %d not found", id)
	}
	d.Status = status
	d.Attempts = attempts
	return nil
}
