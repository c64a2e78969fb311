// internal/database/matches.go
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grindline/skate-service/internal/game"
	"github.com/grindline/skate-service/internal/models"
)

// MatchStore is the pgx-backed match store. The match document lives in a
// JSONB column; the scalar columns mirror the fields the sweep queries
// filter on, so candidate listing stays indexable.
type MatchStore struct {
	pool *pgxpool.Pool
}

func NewMatchStore(pool *pgxpool.Pool) *MatchStore {
	return &MatchStore{pool: pool}
}

func (ms *MatchStore) InsertMatch(ctx context.Context, m *models.Match) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal match: %w", err)
	}

	q := `
		INSERT INTO matches (id, status, turn_deadline_at, paused_at, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	err = pgx.BeginTxFunc(ctx, ms.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, q, m.ID, m.Status, m.TurnDeadlineAt, m.PausedAt, data, m.CreatedAt, m.UpdatedAt)
		return e
	})
	if err != nil {
		return fmt.Errorf("failed to insert match: %w", err)
	}
	return nil
}

func (ms *MatchStore) GetMatch(ctx context.Context, id uuid.UUID) (*models.Match, error) {
	var data []byte
	q := `SELECT data FROM matches WHERE id=$1`
	err := ms.pool.QueryRow(ctx, q, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, game.ErrMatchNotFound
	}
	if err != nil {
		return nil, err
	}

	var m models.Match
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal match %v: %w", id, err)
	}
	return &m, nil
}

// UpdateMatchTx locks the match row with SELECT ... FOR UPDATE, re-reads the
// document inside the transaction, and writes back only when fn asks for it.
// Racing callers serialize on the row lock; the loser re-reads the winner's
// committed state.
func (ms *MatchStore) UpdateMatchTx(ctx context.Context, id uuid.UUID, fn func(m *models.Match) (bool, error)) error {
	return pgx.BeginTxFunc(ctx, ms.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var data []byte
		err := tx.QueryRow(ctx, `SELECT data FROM matches WHERE id=$1 FOR UPDATE`, id).Scan(&data)
		if errors.Is(err, pgx.ErrNoRows) {
			return game.ErrMatchNotFound
		}
		if err != nil {
			return err
		}

		var m models.Match
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("failed to unmarshal match %v: %w", id, err)
		}

		write, err := fn(&m)
		if err != nil || !write {
			return err
		}

		m.UpdatedAt = time.Now()
		updated, err := json.Marshal(&m)
		if err != nil {
			return fmt.Errorf("failed to marshal match %v: %w", id, err)
		}

		q := `
			UPDATE matches
			SET status=$1, turn_deadline_at=$2, paused_at=$3, data=$4, updated_at=$5
			WHERE id=$6
		`
		_, err = tx.Exec(ctx, q, m.Status, m.TurnDeadlineAt, m.PausedAt, updated, m.UpdatedAt, id)
		return err
	})
}

func (ms *MatchStore) ListPastTurnDeadline(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	q := `
		SELECT id FROM matches
		WHERE status = 'active' AND turn_deadline_at IS NOT NULL AND turn_deadline_at <= $1
	`
	return ms.listIDs(ctx, q, now)
}

func (ms *MatchStore) ListPausedBefore(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	q := `
		SELECT id FROM matches
		WHERE status = 'paused' AND paused_at IS NOT NULL AND paused_at <= $1
	`
	return ms.listIDs(ctx, q, cutoff)
}

func (ms *MatchStore) ListStalledBefore(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	q := `
		SELECT id FROM matches
		WHERE status IN ('waiting', 'active', 'paused') AND updated_at <= $1
	`
	return ms.listIDs(ctx, q, cutoff)
}

func (ms *MatchStore) listIDs(ctx context.Context, q string, arg any) ([]uuid.UUID, error) {
	rows, err := ms.pool.Query(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RecordOutcome upserts lifetime win/loss counters once a match reaches a
// terminal state.
func (ms *MatchStore) RecordOutcome(ctx context.Context, winnerID uuid.UUID, loserIDs []uuid.UUID, forfeit bool) error {
	winQ := `
		INSERT INTO user_stats (user_id, wins, losses, forfeits)
		VALUES ($1, 1, 0, 0)
		ON CONFLICT (user_id) DO UPDATE SET wins = user_stats.wins + 1
	`
	lossQ := `
		INSERT INTO user_stats (user_id, wins, losses, forfeits)
		VALUES ($1, 0, 1, $2)
		ON CONFLICT (user_id)
		DO UPDATE SET losses = user_stats.losses + 1, forfeits = user_stats.forfeits + $2
	`

	return pgx.BeginTxFunc(ctx, ms.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if winnerID != uuid.Nil {
			if _, err := tx.Exec(ctx, winQ, winnerID); err != nil {
				return err
			}
		}
		forfeitInc := 0
		if forfeit {
			forfeitInc = 1
		}
		for _, loser := range loserIDs {
			if _, err := tx.Exec(ctx, lossQ, loser, forfeitInc); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetUserStats reads one user's lifetime counters; absent rows read as zero.
func (ms *MatchStore) GetUserStats(ctx context.Context, userID uuid.UUID) (*models.UserStats, error) {
	stats := models.UserStats{UserID: userID}
	q := `SELECT wins, losses, forfeits FROM user_stats WHERE user_id=$1`
	err := ms.pool.QueryRow(ctx, q, userID).Scan(&stats.Wins, &stats.Losses, &stats.Forfeits)
	if errors.Is(err, pgx.ErrNoRows) {
		return &stats, nil
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
