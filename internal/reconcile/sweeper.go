// Package reconcile closes sessions whose terminal webhook never arrived.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"virtual-mentor/internal/audit"
	"virtual-mentor/internal/events"
	"virtual-mentor/internal/projector"
	"virtual-mentor/internal/session"
	"virtual-mentor/pkg/logger"
)

const eventKind = "reconcile"

// RoomChecker reports which of the named rooms still exist at the provider.
type RoomChecker interface {
	ActiveRooms(ctx context.Context, names []string) (map[string]bool, error)
}

type Sweeper struct {
	sessions   session.Repository
	rooms      RoomChecker
	caps       projector.CallSlots
	log        projector.EventLog
	events     events.Publisher
	staleAfter time.Duration
	clock      func() time.Time
}

// Result summarizes one sweep.
type Result struct {
	Checked int `json:"checked"`
	Closed  int `json:"closed"`
	Skipped int `json:"skipped"`
}

// NewSweeper builds a Sweeper. caps, log and pub may be nil.
func NewSweeper(sessions session.Repository, rooms RoomChecker, caps projector.CallSlots, log projector.EventLog, pub events.Publisher, staleAfter time.Duration) *Sweeper {
	if pub == nil {
		pub = events.Noop{}
	}
	return &Sweeper{
		sessions:   sessions,
		rooms:      rooms,
		caps:       caps,
		log:        log,
		events:     pub,
		staleAfter: staleAfter,
		clock:      time.Now,
	}
}

// Sweep closes every open session older than staleAfter whose room is gone.
// A provider failure aborts the sweep without touching any session.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	now := s.clock().UTC()
	open, err := s.sessions.ListOpen(ctx, now.Add(-s.staleAfter))
	if err != nil {
		return Result{}, fmt.Errorf("reconcile: list open sessions: %w", err)
	}
	res := Result{Checked: len(open)}
	if len(open) == 0 {
		return res, nil
	}

	names := make([]string, 0, len(open))
	for _, o := range open {
		names = append(names, o.RoomName)
	}
	active, err := s.rooms.ActiveRooms(ctx, names)
	if err != nil {
		return res, fmt.Errorf("reconcile: list provider rooms: %w", err)
	}

	log := logger.From(ctx)
	for _, o := range open {
		if active[o.RoomName] {
			res.Skipped++
			continue
		}
		updated, err := s.sessions.Mutate(ctx, o.ID, func(x *session.Session) error { return x.MarkReconciled(now) })
		if errors.Is(err, session.ErrNoChange) {
			// A webhook closed it between the listing and the lock.
			res.Skipped++
			continue
		}
		if err != nil {
			return res, fmt.Errorf("reconcile: close session %s: %w", o.ID, err)
		}
		res.Closed++
		log.Info("session reconciled", "session_id", updated.ID, "room", updated.RoomName, "status", string(updated.Status))
		s.afterClose(ctx, updated)
	}
	return res, nil
}

// Run sweeps every interval until ctx ends. Failures are logged and retried on
// the next tick.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	log := logger.From(ctx)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			res, err := s.Sweep(ctx)
			if err != nil {
				log.Error("reconcile sweep failed", "err", err)
				continue
			}
			if res.Closed > 0 {
				log.Info("reconcile sweep", "checked", res.Checked, "closed", res.Closed)
			}
		}
	}
}

func (s *Sweeper) afterClose(ctx context.Context, x session.Session) {
	log := logger.From(ctx).With("session_id", x.ID)
	if s.caps != nil {
		if err := s.caps.Release(ctx, x.UserID, x.ID); err != nil {
			log.Warn("call cap release failed", "user_id", x.UserID, "err", err)
		}
	}
	if s.log != nil {
		if err := s.log.Record(ctx, x.ID, x.RoomName, eventKind, audit.OutcomeApplied, "status "+string(x.Status)); err != nil {
			log.Warn("call event record failed", "err", err)
		}
	}
	if t, ok := events.TerminalType(x.Status); ok {
		if err := s.events.Publish(ctx, events.FromSession(t, x, s.clock())); err != nil {
			log.Warn("lifecycle event publish failed", "type", string(t), "err", err)
		}
	}
}
