// Package models defines the core data structures for LeadPilot.
//
// It includes the CRM records (leads, users, events, reminders), the closed
// intent and dialogue-state enums the router dispatches on, and the message
// types shared across modules.
package models

import (
	"errors"
	"time"
)

// IntentTag identifies the command family a free-text message belongs to.
type IntentTag string

const (
	// IntentNewLead creates a lead from a comma-separated info line.
	IntentNewLead IntentTag = "new_lead"
	// IntentQualifyLead marks a lead qualified and starts the qualification dialogue.
	IntentQualifyLead IntentTag = "qualify_lead"
	// IntentUnqualifyLead marks a lead unqualified.
	IntentUnqualifyLead IntentTag = "unqualify_lead"
	// IntentNotOurSegment marks a lead as outside the serviceable segment.
	IntentNotOurSegment IntentTag = "not_our_segment"
	// IntentScheduleMeeting books a meeting for a lead.
	IntentScheduleMeeting IntentTag = "schedule_meeting"
	// IntentMeetingDone closes the latest scheduled meeting.
	IntentMeetingDone IntentTag = "meeting_done"
	// IntentScheduleDemo books a demo for a lead.
	IntentScheduleDemo IntentTag = "schedule_demo"
	// IntentDemoDone closes the latest scheduled demo.
	IntentDemoDone IntentTag = "demo_done"
	// IntentSendQuotation records that a quotation was sent.
	IntentSendQuotation IntentTag = "send_quotation"
	// IntentReassignLead moves a lead to another user.
	IntentReassignLead IntentTag = "reassign_lead"
	// IntentSetReminder creates a one-shot reminder.
	IntentSetReminder IntentTag = "set_reminder"
	// IntentFeedback records free-form feedback against a lead.
	IntentFeedback IntentTag = "feedback"
	// IntentUnknown is the classifier fallback.
	IntentUnknown IntentTag = "unknown"
)

// IsValidIntentTag checks if the given intent tag is one of the closed set.
func IsValidIntentTag(t IntentTag) bool {
	switch t {
	case IntentNewLead, IntentQualifyLead, IntentUnqualifyLead, IntentNotOurSegment,
		IntentScheduleMeeting, IntentMeetingDone, IntentScheduleDemo, IntentDemoDone,
		IntentSendQuotation, IntentReassignLead, IntentSetReminder, IntentFeedback,
		IntentUnknown:
		return true
	default:
		return false
	}
}

// DialogState names a pending continuation step for a sender. A sender has at
// most one pending state at a time; setting a new one replaces the old.
type DialogState string

const (
	// StateQualificationPending awaits a yes/no on filling missing lead fields.
	StateQualificationPending DialogState = "qualification_pending"
	// StateAwaitingQualificationDetails awaits the missing-field details or "skip".
	StateAwaitingQualificationDetails DialogState = "awaiting_qualification_details"
	// StateAwaitingFourPhaseDecision awaits the meeting-vs-demo decision.
	StateAwaitingFourPhaseDecision DialogState = "awaiting_4_phase_decision"
	// StateAwaitingDetailsChangeDecision awaits a yes/no on updating core lead
	// details after a meeting was closed.
	StateAwaitingDetailsChangeDecision DialogState = "awaiting_details_change_decision"
	// StateAwaitingCoreLeadUpdate awaits the corrected core lead details.
	StateAwaitingCoreLeadUpdate DialogState = "awaiting_core_lead_update"
	// StateAwaitingMeetingDetails awaits post-meeting enrichment details.
	StateAwaitingMeetingDetails DialogState = "awaiting_meeting_details"
)

// IsValidDialogState checks if the given dialogue state is one of the closed set.
func IsValidDialogState(s DialogState) bool {
	switch s {
	case StateQualificationPending, StateAwaitingQualificationDetails,
		StateAwaitingFourPhaseDecision, StateAwaitingDetailsChangeDecision,
		StateAwaitingCoreLeadUpdate, StateAwaitingMeetingDetails:
		return true
	default:
		return false
	}
}

// LeadStatus is the normalized lifecycle status of a lead.
type LeadStatus string

const (
	LeadStatusNew              LeadStatus = "New Lead"
	LeadStatusQualified        LeadStatus = "Qualified"
	LeadStatusUnqualified      LeadStatus = "Unqualified"
	LeadStatusNotOurSegment    LeadStatus = "Not Our Segment"
	LeadStatusMeetingScheduled LeadStatus = "Meeting Scheduled"
	LeadStatusMeetingDone      LeadStatus = "Meeting Done"
	LeadStatusDemoScheduled    LeadStatus = "Demo Scheduled"
	LeadStatusDemoDone         LeadStatus = "Demo Done"
	LeadStatusQuotationSent    LeadStatus = "Quotation Sent"
	LeadStatusNotInterested    LeadStatus = "Not Interested"
)

// IsValidLeadStatus checks if the given status is one of the closed set.
func IsValidLeadStatus(s LeadStatus) bool {
	switch s {
	case LeadStatusNew, LeadStatusQualified, LeadStatusUnqualified,
		LeadStatusNotOurSegment, LeadStatusMeetingScheduled, LeadStatusMeetingDone,
		LeadStatusDemoScheduled, LeadStatusDemoDone, LeadStatusQuotationSent,
		LeadStatusNotInterested:
		return true
	default:
		return false
	}
}

// EventType distinguishes the two kinds of scheduled activity on a lead.
type EventType string

const (
	EventTypeMeeting EventType = "meeting"
	EventTypeDemo    EventType = "demo"
)

// EventPhase tracks whether a scheduled activity has happened yet.
type EventPhase string

const (
	EventPhaseScheduled EventPhase = "Scheduled"
	EventPhaseDone      EventPhase = "Done"
)

// ReminderStatus tracks dispatch state of a reminder.
type ReminderStatus string

const (
	ReminderStatusPending   ReminderStatus = "pending"
	ReminderStatusSent      ReminderStatus = "sent"
	ReminderStatusFailed    ReminderStatus = "failed"
	ReminderStatusCompleted ReminderStatus = "completed"
)

// Validation error variables shared by handlers and the store layer.
var (
	ErrEmptyCompanyName = errors.New("company name cannot be empty")
	ErrEmptyPhone       = errors.New("phone number cannot be empty")
	ErrInvalidStatus    = errors.New("invalid lead status")
	ErrInvalidEventType = errors.New("invalid event type")
)

// User represents a CRM user who can own leads and receive notifications.
type User struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	Phone      string    `json:"phone"`
	Email      string    `json:"email,omitempty"`
	Department string    `json:"department,omitempty"`
	Role       string    `json:"role,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// IsAdmin reports whether the user receives weekly digests.
func (u *User) IsAdmin() bool {
	return u.Role == "admin"
}

// Lead represents a prospect company and its enrichment fields.
type Lead struct {
	ID           int64      `json:"id"`
	CompanyName  string     `json:"company_name"`
	ContactName  string     `json:"contact_name,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	Phone2       string     `json:"phone_2,omitempty"`
	Email        string     `json:"email,omitempty"`
	Address      string     `json:"address,omitempty"`
	Segment      string     `json:"segment,omitempty"`
	TeamSize     string     `json:"team_size,omitempty"`
	Turnover     string     `json:"turnover,omitempty"`
	CurrentSys   string     `json:"current_system,omitempty"`
	MachineSpec  string     `json:"machine_specification,omitempty"`
	Challenges   string     `json:"challenges,omitempty"`
	Remark       string     `json:"remark,omitempty"`
	Source       string     `json:"source,omitempty"`
	Status       LeadStatus `json:"status"`
	AssignedTo   int64      `json:"assigned_to,omitempty"`
	CreatedBy    int64      `json:"created_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// MissingQualificationFields returns the enrichment fields still empty on the
// lead, in the fixed order they are asked for.
func (l *Lead) MissingQualificationFields() []string {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"Address", l.Address},
		{"Segment", l.Segment},
		{"Team Size", l.TeamSize},
		{"Email", l.Email},
		{"Remark", l.Remark},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// Event represents a scheduled activity (meeting or demo) on a lead.
type Event struct {
	ID         int64      `json:"id"`
	LeadID     int64      `json:"lead_id"`
	Type       EventType  `json:"type"`
	Phase      EventPhase `json:"phase"`
	StartAt    time.Time  `json:"start_at"`
	EndAt      time.Time  `json:"end_at,omitempty"`
	AssignedTo int64      `json:"assigned_to,omitempty"`
	Remark     string     `json:"remark,omitempty"`
	CreatedBy  int64      `json:"created_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Reminder represents a one-shot message to deliver at a point in time.
type Reminder struct {
	ID       int64          `json:"id"`
	LeadID   int64          `json:"lead_id,omitempty"`
	UserID   int64          `json:"user_id"`
	Phone    string         `json:"phone"`
	Message  string         `json:"message"`
	RemindAt time.Time      `json:"remind_at"`
	Status   ReminderStatus `json:"status"`
}

// ActivityLog records an action taken on a lead, for the audit trail.
type ActivityLog struct {
	ID        int64     `json:"id"`
	LeadID    int64     `json:"lead_id"`
	Details   string    `json:"details"`
	CreatedBy int64     `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DripMessage is a queued nurture message addressed to a lead's phone.
type DripMessage struct {
	ID       int64     `json:"id"`
	LeadID   int64     `json:"lead_id"`
	Phone    string    `json:"phone"`
	Body     string    `json:"body"`
	SendAt   time.Time `json:"send_at"`
	Status   string    `json:"status"`
	Attempts int       `json:"attempts"`
}

// LeadStats aggregates lead counts for the weekly digest.
type LeadStats struct {
	Since        time.Time          `json:"since"`
	Total        int                `json:"total"`
	ByStatus     map[LeadStatus]int `json:"by_status"`
	MeetingsHeld int                `json:"meetings_held"`
	DemosHeld    int                `json:"demos_held"`
}

// MessageSource identifies which surface a routed message arrived from.
type MessageSource string

const (
	// SourceWhatsApp marks messages from the chat bridge; replies are sent
	// back over the transport as well as echoed in the HTTP response.
	SourceWhatsApp MessageSource = "whatsapp"
	// SourceApp marks messages from the companion app; replies are returned
	// synchronously only.
	SourceApp MessageSource = "app"
)

// InboundMessage is a normalized incoming text handed to the router.
// ReplyTarget is required for WhatsApp traffic and ignored for app traffic.
type InboundMessage struct {
	Sender      string        `json:"sender"`
	Text        string        `json:"text"`
	ReplyTarget string        `json:"reply_target,omitempty"`
	Source      MessageSource `json:"source"`
	ReceivedAt  time.Time     `json:"received_at"`
}

// RouteResult is the outcome of routing one inbound message.
type RouteResult struct {
	Status string `json:"status"`
	Reply  string `json:"reply"`
	Sent   bool   `json:"sent"`
}

// Response represents an incoming message delivered by a transport.
type Response struct {
	From string `json:"from"`
	Body string `json:"body"`
	Time int64  `json:"time"`
}

// MessageStatus represents the delivery status of an outbound message.
type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
)

// Receipt reports the delivery status of a sent message.
type Receipt struct {
	To     string        `json:"to"`
	Status MessageStatus `json:"status"`
	Time   int64         `json:"time"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse is the standard JSON envelope for non-routing endpoints.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
