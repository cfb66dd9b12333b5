package conversations

import (
	"context"
	"database/sql"
	"errors"

	"virtual-mentor/pkg/utils"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const conversationColumns = `id, phone_number, room_name, job_id, user_id, user_name, status,
started_at, ended_at, last_message, last_message_at, last_message_role, updated_at`

func scanConversation(row interface{ Scan(...any) error }) (Conversation, error) {
	var (
		c             Conversation
		ended, lastAt sql.NullTime
	)
	if err := row.Scan(
		&c.ID,
		&c.PhoneNumber,
		&c.RoomName,
		&c.JobID,
		&c.UserID,
		&c.UserName,
		&c.Status,
		&c.StartedAt,
		&ended,
		&c.LastMessage,
		&lastAt,
		&c.LastMessageRole,
		&c.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Conversation{}, ErrNotFound
		}
		return Conversation{}, err
	}
	c.EndedAt = utils.TimePtr(ended)
	c.LastMessageAt = utils.TimePtr(lastAt)
	return c, nil
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Conversation, error) {
	q := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`
	return scanConversation(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepo) LatestByPhone(ctx context.Context, phoneNumber string) (Conversation, error) {
	q := `SELECT ` + conversationColumns + `
FROM conversations
WHERE phone_number = $1
ORDER BY started_at DESC
LIMIT 1`
	return scanConversation(r.db.QueryRowContext(ctx, q, phoneNumber))
}

func (r *PostgresRepo) ListMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	if _, err := r.Get(ctx, conversationID); err != nil {
		return nil, err
	}
	q := `
SELECT id, message, role, created_at, user_id
FROM conversation_messages
WHERE conversation_id = $1
ORDER BY created_at ASC`
	args := []any{conversationID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Message, &m.Role, &m.Timestamp, &m.UserID); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
