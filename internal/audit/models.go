package audit

import "time"

// Event is an immutable, append-only record of one webhook event the
// projector handled.
//
// Invariants:
// - Events are never updated or deleted.
// - room_name is always set; session_id is empty for unmatched rooms.
// - Recording is best-effort; do not fail webhook handling on audit failures.
type Event struct {
	ID        string `json:"id" db:"id"`
	SessionID string `json:"sessionId,omitempty" db:"session_id"`
	RoomName  string `json:"roomName" db:"room_name"`

	// Kind is the webhook event kind, e.g. participant_joined.
	Kind string `json:"kind" db:"kind"`

	Outcome Outcome `json:"outcome" db:"outcome"`

	// Detail is a short human-readable description for ops.
	Detail string `json:"detail,omitempty" db:"detail"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type Outcome string

const (
	// OutcomeApplied means the session was updated.
	OutcomeApplied Outcome = "applied"
	// OutcomeIgnored means a guard rejected the event or the kind is informational.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeUnmatched means no session carries the event's room name.
	OutcomeUnmatched Outcome = "unmatched"
)
