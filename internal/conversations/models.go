package conversations

import "time"

// Conversation is written by the external agent/transcription system.
// This service only reads it.
type Conversation struct {
	ID              string     `json:"id" db:"id"`
	PhoneNumber     string     `json:"phone_number" db:"phone_number"`
	RoomName        string     `json:"room_name,omitempty" db:"room_name"`
	JobID           string     `json:"job_id,omitempty" db:"job_id"`
	UserID          string     `json:"user_id,omitempty" db:"user_id"`
	UserName        string     `json:"user_name,omitempty" db:"user_name"`
	Status          Status     `json:"status" db:"status"`
	StartedAt       time.Time  `json:"started_at" db:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	LastMessage     string     `json:"last_message,omitempty" db:"last_message"`
	LastMessageAt   *time.Time `json:"last_message_at,omitempty" db:"last_message_at"`
	LastMessageRole Role       `json:"last_message_role,omitempty" db:"last_message_role"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

type Role string

const (
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

type Message struct {
	ID        string    `json:"id" db:"id"`
	Message   string    `json:"message" db:"message"`
	Role      Role      `json:"role" db:"role"`
	Timestamp time.Time `json:"timestamp" db:"created_at"`
	UserID    string    `json:"user_id,omitempty" db:"user_id"`
}
