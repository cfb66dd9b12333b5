package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"virtual-mentor/pkg/utils"
)

// PostgresRepo stores sessions in the sessions / session_messages tables
// created by internal/migrate.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const sessionColumns = `id, user_id, status, call_status, room_name, phone_number,
created_at, connected_at, ended_at, duration_seconds, transcript, notes, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var (
		s         Session
		connected sql.NullTime
		ended     sql.NullTime
		duration  sql.NullInt64
	)
	if err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.Status,
		&s.CallStatus,
		&s.RoomName,
		&s.PhoneNumber,
		&s.CreatedAt,
		&connected,
		&ended,
		&duration,
		&s.Transcript,
		&s.Notes,
		&s.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	s.ConnectedAt = utils.TimePtr(connected)
	s.EndedAt = utils.TimePtr(ended)
	s.DurationSeconds = utils.IntPtr(duration)
	return s, nil
}

func (r *PostgresRepo) Create(ctx context.Context, s Session) error {
	const q = `
INSERT INTO sessions (
  id, user_id, status, call_status, room_name, phone_number,
  created_at, connected_at, ended_at, duration_seconds, transcript, notes, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
)
`
	_, err := r.db.ExecContext(ctx, q,
		s.ID,
		s.UserID,
		s.Status,
		s.CallStatus,
		s.RoomName,
		s.PhoneNumber,
		s.CreatedAt,
		utils.NullTime(s.ConnectedAt),
		utils.NullTime(s.EndedAt),
		utils.NullInt(s.DurationSeconds),
		s.Transcript,
		s.Notes,
		s.UpdatedAt,
	)
	return insertErr(err)
}

// RoomNameIndex is the unique index on sessions.room_name.
const RoomNameIndex = "sessions_room_name_key"

// insertErr maps only a room-name collision to ErrDuplicateRoom; other unique
// violations (a reused id) surface as they are.
func insertErr(err error) error {
	if utils.IsUniqueViolationOn(err, RoomNameIndex) {
		return ErrDuplicateRoom
	}
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	return scanSession(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepo) FindByRoomName(ctx context.Context, roomName string) (Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions WHERE room_name = $1`
	return scanSession(r.db.QueryRowContext(ctx, q, roomName))
}

func (r *PostgresRepo) LatestByPhone(ctx context.Context, phoneNumber string) (Session, error) {
	q := `SELECT ` + sessionColumns + `
FROM sessions
WHERE phone_number = $1
ORDER BY created_at DESC
LIMIT 1`
	return scanSession(r.db.QueryRowContext(ctx, q, phoneNumber))
}

// Mutate locks the row for the duration of fn so concurrent webhook
// deliveries for the same room are applied one after another.
func (r *PostgresRepo) Mutate(ctx context.Context, id string, fn func(*Session) error) (Session, error) {
	var out Session
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		q := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1 FOR UPDATE`
		cur, err := scanSession(tx.QueryRowContext(ctx, q, id))
		if err != nil {
			return err
		}
		out = cur

		next := copySession(cur)
		if err := fn(&next); err != nil {
			return err
		}

		const upd = `
UPDATE sessions SET
  status = $2,
  call_status = $3,
  connected_at = $4,
  ended_at = $5,
  duration_seconds = $6,
  transcript = $7,
  notes = $8,
  updated_at = $9
WHERE id = $1
`
		if _, err := tx.ExecContext(ctx, upd,
			next.ID,
			next.Status,
			next.CallStatus,
			utils.NullTime(next.ConnectedAt),
			utils.NullTime(next.EndedAt),
			utils.NullInt(next.DurationSeconds),
			next.Transcript,
			next.Notes,
			next.UpdatedAt,
		); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, err
		}
		return out, err
	}
	return out, nil
}

func (r *PostgresRepo) ListOpen(ctx context.Context, createdBefore time.Time) ([]Session, error) {
	q := `SELECT ` + sessionColumns + `
FROM sessions
WHERE status IN ($1, $2, $3, $4) AND created_at < $5
ORDER BY created_at ASC`
	return r.list(ctx, q,
		StatusScheduled, StatusInProgress, StatusRinging, StatusConnected, createdBefore)
}

func (r *PostgresRepo) ListCreated(ctx context.Context, from, to time.Time) ([]Session, error) {
	q := `SELECT ` + sessionColumns + `
FROM sessions
WHERE created_at >= $1 AND created_at < $2
ORDER BY created_at ASC`
	return r.list(ctx, q, from, to)
}

func (r *PostgresRepo) list(ctx context.Context, q string, args ...any) ([]Session, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) AppendMessage(ctx context.Context, m Message) (Message, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	const q = `
INSERT INTO session_messages (id, session_id, text, sender, is_transcribing, created_at)
SELECT $1, $2, $3, $4, $5, $6
WHERE EXISTS (SELECT 1 FROM sessions WHERE id = $2)
`
	res, err := r.db.ExecContext(ctx, q, m.ID, m.SessionID, m.Text, m.Sender, m.IsTranscribing, m.Timestamp)
	if err != nil {
		return Message{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Message{}, ErrNotFound
	}
	return m, nil
}

func (r *PostgresRepo) ListMessages(ctx context.Context, sessionID string) ([]Message, error) {
	if _, err := r.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	const q = `
SELECT id, session_id, text, sender, is_transcribing, created_at
FROM session_messages
WHERE session_id = $1
ORDER BY created_at ASC
`
	rows, err := r.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Text, &m.Sender, &m.IsTranscribing, &m.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
