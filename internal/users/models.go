package users

import "time"

// Profile is a user record. Phone is the link to sessions and conversations.
type Profile struct {
	UID          string    `json:"uid" db:"uid"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	Phone        string    `json:"phone,omitempty" db:"phone"`
	Timezone     string    `json:"timezone" db:"timezone"`
	ScheduleTime string    `json:"scheduleTime" db:"schedule_time"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusInCall   Status = "in-call"
)

type WithStatus struct {
	Profile
	Status Status `json:"status"`
}
