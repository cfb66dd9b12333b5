package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo writes to call_events. It only ever INSERTs.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO call_events (id, session_id, room_name, kind, outcome, detail, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`
	_, err := r.db.ExecContext(ctx, q, e.ID, e.SessionID, e.RoomName, e.Kind, e.Outcome, e.Detail, e.CreatedAt)
	return err
}

func (r *PostgresRepo) ListBySession(ctx context.Context, sessionID string) ([]Event, error) {
	const q = `
SELECT id, session_id, room_name, kind, outcome, detail, created_at
FROM call_events
WHERE session_id = $1
ORDER BY created_at ASC
`
	rows, err := r.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.SessionID, &e.RoomName, &e.Kind, &e.Outcome, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
