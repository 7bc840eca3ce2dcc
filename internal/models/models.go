package models

import "time"

type Source string

const (
	SourceEmail    Source = "email"
	SourceWhatsApp Source = "whatsapp"
	SourceManual   Source = "manual"
)

func (s Source) Valid() bool {
	switch s {
	case SourceEmail, SourceWhatsApp, SourceManual:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank orders priorities, urgent highest.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	}
	return 0
}

type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleAdmin Role = "admin"
)

const (
	SentimentPositive     = "positive"
	SentimentNeutral      = "neutral"
	SentimentNegative     = "negative"
	SentimentVeryNegative = "very_negative"
)

const MaxTitleLength = 250

type Query struct {
	ID         string    `json:"id"`
	Source     Source    `json:"source"`
	Sender     *string   `json:"sender"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Tags       []string  `json:"tags"`
	Category   *string   `json:"category"`
	Sentiment  *string   `json:"sentiment"`
	Summary    *string   `json:"summary"`
	Priority   Priority  `json:"priority"`
	Status     Status    `json:"status"`
	AssignedTo *string   `json:"assigned_to"`
	UserID     *string   `json:"user_id"`
	ReplySent  bool      `json:"reply_sent"`
	MessageID  *string   `json:"message_id,omitempty"`
	Channel    string    `json:"channel"`
	ReceivedAt time.Time `json:"received_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// QueryPatch is a field-scoped update; nil fields are left untouched.
type QueryPatch struct {
	Title      *string
	Body       *string
	Tags       *[]string
	Category   *string
	Sentiment  *string
	Summary    *string
	Priority   *Priority
	Status     *Status
	AssignedTo *string
	ReplySent  *bool
}

func (p QueryPatch) Empty() bool {
	return p.Title == nil && p.Body == nil && p.Tags == nil && p.Category == nil &&
		p.Sentiment == nil && p.Summary == nil && p.Priority == nil && p.Status == nil &&
		p.AssignedTo == nil && p.ReplySent == nil
}

// User is a staff account. Agents (role=agent) form the assignment pool.
type User struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	Role          Role      `json:"role"`
	IsActive      bool      `json:"is_active"`
	Skills        []string  `json:"skills"`
	Experience    *float64  `json:"experience,omitempty"`
	AssignedCount *int      `json:"assigned_count,omitempty"`
	IsOnline      *bool     `json:"is_online,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type UserPatch struct {
	Role       *Role
	IsActive   *bool
	Skills     *[]string
	Experience *float64
	IsOnline   *bool
}

type Note struct {
	ID        string    `json:"id"`
	QueryID   string    `json:"query_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const MaxNoteLength = 2000
