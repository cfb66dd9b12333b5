package session

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoChange is returned by a transition whose guard rejects the current state.
// Repositories treat it as "leave the record untouched".
var ErrNoChange = errors.New("session: no change")

// MarkRinging records that the phone leg was dialed. It only moves a leg that is
// still initiating, so a participant_joined that raced ahead is never regressed.
func (s *Session) MarkRinging(now time.Time) error {
	if s.Status.Terminal() || s.CallStatus != CallStatusInitiating {
		return ErrNoChange
	}
	s.CallStatus = CallStatusRinging
	s.UpdatedAt = now
	return nil
}

// MarkConnected records that the callee answered. ConnectedAt is set exactly once.
func (s *Session) MarkConnected(now time.Time) error {
	if s.Status.Terminal() || s.ConnectedAt != nil {
		return ErrNoChange
	}
	t := now
	s.Status = StatusConnected
	s.CallStatus = CallStatusConnected
	s.ConnectedAt = &t
	s.Notes = appendNote(s.Notes, "User answered the call at "+now.UTC().Format("15:04:05"))
	s.UpdatedAt = now
	return nil
}

// MarkParticipantLeft ends the call when the phone leg hangs up.
func (s *Session) MarkParticipantLeft(now time.Time) error {
	if s.Status.Terminal() {
		return ErrNoChange
	}
	t := now
	s.Status = StatusEnded
	s.CallStatus = CallStatusDisconnected
	s.EndedAt = &t
	if s.ConnectedAt != nil {
		d := elapsedSeconds(*s.ConnectedAt, now)
		s.DurationSeconds = &d
		s.Notes = "Call ended - Duration: " + FormatDuration(d)
	} else {
		s.Notes = "Call ended without connection"
	}
	s.UpdatedAt = now
	return nil
}

// MarkRoomFinished closes a session whose room was torn down. A session that
// already reached a terminal state through a more specific event is kept as is.
// providerDuration is used only when the call never connected.
func (s *Session) MarkRoomFinished(now time.Time, providerDuration time.Duration) error {
	if s.Status.Terminal() {
		return ErrNoChange
	}
	t := now
	s.Status = StatusCompleted
	s.CallStatus = CallStatusDisconnected
	s.EndedAt = &t
	switch {
	case s.ConnectedAt != nil:
		d := elapsedSeconds(*s.ConnectedAt, now)
		s.DurationSeconds = &d
	case providerDuration > 0:
		d := int(providerDuration / time.Second)
		s.DurationSeconds = &d
	}
	s.Notes = appendNote(s.Notes, "Room closed at "+now.UTC().Format(time.RFC3339))
	s.UpdatedAt = now
	return nil
}

// MarkDialFailed compensates for a failed outbound leg.
func (s *Session) MarkDialFailed(now time.Time, cause string) error {
	if s.Status.Terminal() {
		return ErrNoChange
	}
	t := now
	s.Status = StatusMissed
	s.CallStatus = CallStatusFailed
	s.EndedAt = &t
	s.Notes = appendNote(s.Notes, "Call failed: "+cause)
	s.UpdatedAt = now
	return nil
}

// MarkReconciled closes a session whose room no longer exists at the provider
// without a terminal webhook having been received.
func (s *Session) MarkReconciled(now time.Time) error {
	if s.Status.Terminal() {
		return ErrNoChange
	}
	t := now
	s.EndedAt = &t
	s.CallStatus = CallStatusDisconnected
	if s.ConnectedAt != nil {
		d := elapsedSeconds(*s.ConnectedAt, now)
		s.DurationSeconds = &d
		s.Status = StatusEnded
	} else {
		s.Status = StatusMissed
	}
	s.Notes = appendNote(s.Notes, "Closed by reconciliation: room no longer active")
	s.UpdatedAt = now
	return nil
}

// FormatDuration renders whole seconds as "Xm Ys".
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
}

// elapsedSeconds never goes negative, even when clocks disagree.
func elapsedSeconds(from, to time.Time) int {
	d := to.Sub(from)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}

func appendNote(existing, line string) string {
	if existing == "" {
		return line
	}
	return existing + "\n\n" + line
}
