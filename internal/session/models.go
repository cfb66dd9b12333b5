package session

import "time"

// Session tracks one outbound call attempt.
//
// RoomName is the correlation key between this record and provider webhooks;
// it is unique across all sessions.
type Session struct {
	ID          string     `json:"id" db:"id"`
	UserID      string     `json:"userId" db:"user_id"`
	Status      Status     `json:"status" db:"status"`
	CallStatus  CallStatus `json:"callStatus" db:"call_status"`
	RoomName    string     `json:"roomName" db:"room_name"`
	PhoneNumber string     `json:"phoneNumber" db:"phone_number"`

	CreatedAt   time.Time  `json:"timestamp" db:"created_at"`
	ConnectedAt *time.Time `json:"connectedAt,omitempty" db:"connected_at"`
	EndedAt     *time.Time `json:"endedAt,omitempty" db:"ended_at"`

	// DurationSeconds is set when the call ends.
	DurationSeconds *int `json:"duration,omitempty" db:"duration_seconds"`

	Transcript string `json:"transcript,omitempty" db:"transcript"`
	Notes      string `json:"notes,omitempty" db:"notes"`

	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in-progress"
	StatusRinging    Status = "ringing"
	StatusConnected  Status = "connected"
	StatusCompleted  Status = "completed"
	StatusMissed     Status = "missed"
	StatusEnded      Status = "ended"
)

// Terminal reports whether no webhook may move the session out of s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusMissed, StatusEnded:
		return true
	default:
		return false
	}
}

// Rank orders statuses along the call lifecycle; all terminal states share the top rank.
func (s Status) Rank() int {
	switch s {
	case StatusScheduled:
		return 0
	case StatusInProgress:
		return 1
	case StatusRinging:
		return 2
	case StatusConnected:
		return 3
	case StatusCompleted, StatusMissed, StatusEnded:
		return 4
	default:
		return -1
	}
}

func (s Status) Valid() bool { return s.Rank() >= 0 }

// OpenStatuses are the non-terminal statuses, used by the reconciliation sweep.
var OpenStatuses = []Status{StatusScheduled, StatusInProgress, StatusRinging, StatusConnected}

type CallStatus string

const (
	CallStatusInitiating   CallStatus = "initiating"
	CallStatusRinging      CallStatus = "ringing"
	CallStatusConnected    CallStatus = "connected"
	CallStatusDisconnected CallStatus = "disconnected"
	CallStatusFailed       CallStatus = "failed"
)

// Message is one chat turn recorded against a session.
type Message struct {
	ID             string    `json:"id" db:"id"`
	SessionID      string    `json:"sessionId" db:"session_id"`
	Text           string    `json:"text" db:"text"`
	Sender         Sender    `json:"sender" db:"sender"`
	Timestamp      time.Time `json:"timestamp" db:"created_at"`
	IsTranscribing bool      `json:"isTranscribing" db:"is_transcribing"`
}

type Sender string

const (
	SenderAI   Sender = "ai"
	SenderUser Sender = "user"
)

func (s Sender) Valid() bool { return s == SenderAI || s == SenderUser }
