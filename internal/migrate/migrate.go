// Package migrate owns the Postgres schema. Statements are idempotent so Up
// can run on every deploy.
package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"virtual-mentor/pkg/utils"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
  id               TEXT PRIMARY KEY,
  user_id          TEXT NOT NULL,
  status           TEXT NOT NULL,
  call_status      TEXT NOT NULL,
  room_name        TEXT NOT NULL,
  phone_number     TEXT NOT NULL,
  created_at       TIMESTAMPTZ NOT NULL,
  connected_at     TIMESTAMPTZ,
  ended_at         TIMESTAMPTZ,
  duration_seconds INTEGER CHECK (duration_seconds >= 0),
  transcript       TEXT NOT NULL DEFAULT '',
  notes            TEXT NOT NULL DEFAULT '',
  updated_at       TIMESTAMPTZ NOT NULL
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS sessions_room_name_key ON sessions (room_name)`,
	`CREATE INDEX IF NOT EXISTS sessions_phone_created_idx ON sessions (phone_number, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS sessions_status_created_idx ON sessions (status, created_at)`,

	`CREATE TABLE IF NOT EXISTS session_messages (
  id              TEXT PRIMARY KEY,
  session_id      TEXT NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
  text            TEXT NOT NULL,
  sender          TEXT NOT NULL CHECK (sender IN ('ai', 'user')),
  is_transcribing BOOLEAN NOT NULL DEFAULT FALSE,
  created_at      TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS session_messages_session_idx ON session_messages (session_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS users (
  uid           TEXT PRIMARY KEY,
  name          TEXT NOT NULL DEFAULT '',
  email         TEXT NOT NULL DEFAULT '',
  phone         TEXT NOT NULL DEFAULT '',
  timezone      TEXT NOT NULL DEFAULT '',
  schedule_time TEXT NOT NULL DEFAULT '',
  created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`,

	`CREATE TABLE IF NOT EXISTS conversations (
  id                TEXT PRIMARY KEY,
  phone_number      TEXT NOT NULL,
  room_name         TEXT NOT NULL DEFAULT '',
  job_id            TEXT NOT NULL DEFAULT '',
  user_id           TEXT NOT NULL DEFAULT '',
  user_name         TEXT NOT NULL DEFAULT '',
  status            TEXT NOT NULL DEFAULT 'active',
  started_at        TIMESTAMPTZ NOT NULL,
  ended_at          TIMESTAMPTZ,
  last_message      TEXT NOT NULL DEFAULT '',
  last_message_at   TIMESTAMPTZ,
  last_message_role TEXT NOT NULL DEFAULT '',
  updated_at        TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS conversations_phone_updated_idx ON conversations (phone_number, updated_at DESC)`,

	`CREATE TABLE IF NOT EXISTS conversation_messages (
  id              TEXT PRIMARY KEY,
  conversation_id TEXT NOT NULL REFERENCES conversations (id) ON DELETE CASCADE,
  message         TEXT NOT NULL,
  role            TEXT NOT NULL,
  user_id         TEXT NOT NULL DEFAULT '',
  created_at      TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS conversation_messages_conv_idx ON conversation_messages (conversation_id, created_at)`,

	// Append-only: the application never issues UPDATE or DELETE against call_events.
	`CREATE TABLE IF NOT EXISTS call_events (
  id         TEXT PRIMARY KEY,
  session_id TEXT NOT NULL DEFAULT '',
  room_name  TEXT NOT NULL,
  kind       TEXT NOT NULL,
  outcome    TEXT NOT NULL,
  detail     TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS call_events_session_idx ON call_events (session_id, created_at)`,
}

// Up applies the schema inside a single transaction.
func Up(ctx context.Context, db *sql.DB) error {
	return utils.WithTx(ctx, db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		for i, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migrate: statement %d: %w", i, err)
			}
		}
		return nil
	})
}

// Statements returns a copy of the DDL, for printing with `vmentor migrate --print`.
func Statements() []string {
	out := make([]string, len(statements))
	copy(out, statements)
	return out
}
