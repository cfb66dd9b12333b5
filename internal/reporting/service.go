package reporting

import (
	"context"
	"errors"
	"time"

	"virtual-mentor/internal/session"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository is the read side reporting needs. session.Repository satisfies it.
type Repository interface {
	ListCreated(ctx context.Context, from, to time.Time) ([]session.Session, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) SessionsSummary(ctx context.Context, req SessionsSummaryRequest) (SessionsSummary, error) {
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return SessionsSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return SessionsSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListCreated(ctx, req.Range.From, req.Range.To)
	if err != nil {
		return SessionsSummary{}, err
	}

	out := SessionsSummary{Range: req.Range, ByStatus: map[string]int{}}
	timed := 0
	for _, r := range rows {
		out.TotalSessions++
		out.ByStatus[string(r.Status)]++
		if !r.Status.Terminal() {
			out.OpenSessions++
		}
		if r.ConnectedAt != nil {
			out.ConnectedSessions++
		}
		// Calls that never connected carry the room lifetime; keep them out of talk time.
		if r.DurationSeconds != nil && r.ConnectedAt != nil {
			out.TotalDurationSeconds += *r.DurationSeconds
			timed++
		}
	}
	if timed > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / timed
	}
	if out.TotalSessions > 0 {
		out.ConnectionRate = float64(out.ConnectedSessions) / float64(out.TotalSessions)
	}
	return out, nil
}
