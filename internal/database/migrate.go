// internal/database/migrate.go
package database

import (
	"context"
	"fmt"
)

// schema is applied at startup; every statement is idempotent. The legacy
// battles table predates vote_states and is created here only so fresh
// environments can exercise the fallback voting path.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	email TEXT UNIQUE NOT NULL,
	password TEXT NOT NULL,
	username TEXT NOT NULL,
	is_admin BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS user_stats (
	user_id UUID PRIMARY KEY,
	wins INT NOT NULL DEFAULT 0,
	losses INT NOT NULL DEFAULT 0,
	forfeits INT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS matches (
	id UUID PRIMARY KEY,
	status TEXT NOT NULL,
	turn_deadline_at TIMESTAMPTZ,
	paused_at TIMESTAMPTZ,
	data JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_matches_deadline
	ON matches (turn_deadline_at) WHERE status = 'active';
CREATE INDEX IF NOT EXISTS idx_matches_paused
	ON matches (paused_at) WHERE status = 'paused';
CREATE INDEX IF NOT EXISTS idx_matches_updated
	ON matches (updated_at) WHERE status IN ('waiting', 'active', 'paused');

CREATE TABLE IF NOT EXISTS vote_states (
	battle_id UUID PRIMARY KEY,
	status TEXT NOT NULL,
	vote_deadline_at TIMESTAMPTZ NOT NULL,
	data JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_vote_states_deadline
	ON vote_states (vote_deadline_at) WHERE status = 'voting';

CREATE TABLE IF NOT EXISTS notifications (
	id BIGSERIAL PRIMARY KEY,
	user_id UUID NOT NULL,
	event_kind TEXT NOT NULL,
	payload JSONB,
	sent_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications (user_id, sent_at);

CREATE TABLE IF NOT EXISTS battles (
	id UUID PRIMARY KEY,
	creator_id UUID NOT NULL,
	opponent_id UUID NOT NULL,
	creator_vote TEXT,
	opponent_vote TEXT,
	status TEXT NOT NULL DEFAULT 'voting',
	winner_id UUID
);
`

// Migrate applies the schema against the global pool.
func Migrate(ctx context.Context) error {
	if _, err := DB.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
