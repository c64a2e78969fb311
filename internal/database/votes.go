// internal/database/votes.go
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

	"github.com/grindline/skate-service/internal/battle"
	"github.com/grindline/skate-service/internal/models"
)

// VoteStore is the pgx-backed battle vote store. Vote states follow the same
// JSONB-document-plus-filter-columns shape as matches; legacy battles keep
// their original two-vote columns.
type VoteStore struct {
	pool *pgxpool.Pool
}

func NewVoteStore(pool *pgxpool.Pool) *VoteStore {
	return &VoteStore{pool: pool}
}

func (vs *VoteStore) InsertVoteState(ctx context.Context, v *models.VoteState) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal vote state: %w", err)
	}

	q := `
		INSERT INTO vote_states (battle_id, status, vote_deadline_at, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (battle_id) DO NOTHING
	`
	err = pgx.BeginTxFunc(ctx, vs.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, q, v.BattleID, v.Status, v.VoteDeadlineAt, data)
		return e
	})
	if err != nil {
		return fmt.Errorf("failed to insert vote state: %w", err)
	}
	return nil
}

func (vs *VoteStore) GetVoteState(ctx context.Context, battleID uuid.UUID) (*models.VoteState, error) {
	var data []byte
	err := vs.pool.QueryRow(ctx, `SELECT data FROM vote_states WHERE battle_id=$1`, battleID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, battle.ErrVoteStateNotFound
	}
	if err != nil {
		return nil, err
	}

	var v models.VoteState
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vote state %v: %w", battleID, err)
	}
	return &v, nil
}

func (vs *VoteStore) UpdateVoteStateTx(ctx context.Context, battleID uuid.UUID, fn func(v *models.VoteState) (bool, error)) error {
	return pgx.BeginTxFunc(ctx, vs.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var data []byte
		err := tx.QueryRow(ctx, `SELECT data FROM vote_states WHERE battle_id=$1 FOR UPDATE`, battleID).Scan(&data)
		if errors.Is(err, pgx.ErrNoRows) {
			return battle.ErrVoteStateNotFound
		}
		if err != nil {
			return err
		}

		var v models.VoteState
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("failed to unmarshal vote state %v: %w", battleID, err)
		}

		write, err := fn(&v)
		if err != nil || !write {
			return err
		}

		updated, err := json.Marshal(&v)
		if err != nil {
			return fmt.Errorf("failed to marshal vote state %v: %w", battleID, err)
		}

		q := `
			UPDATE vote_states
			SET status=$1, vote_deadline_at=$2, data=$3
			WHERE battle_id=$4
		`
		_, err = tx.Exec(ctx, q, v.Status, v.VoteDeadlineAt, updated, battleID)
		return err
	})
}

func (vs *VoteStore) ListVotingPastDeadline(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	q := `
		SELECT battle_id FROM vote_states
		WHERE status = 'voting' AND vote_deadline_at <= $1
	`
	rows, err := vs.pool.Query(ctx, q, now)
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

// UpdateLegacyBattleTx locks and mutates a pre-vote-state battle row. Votes
// on these rows live in the two dedicated columns, NULL until cast.
func (vs *VoteStore) UpdateLegacyBattleTx(ctx context.Context, battleID uuid.UUID, fn func(b *models.LegacyBattle) (bool, error)) error {
	return pgx.BeginTxFunc(ctx, vs.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var b models.LegacyBattle
		var creatorVote, opponentVote, winnerID *string
		q := `
			SELECT id, creator_id, opponent_id, creator_vote, opponent_vote, status, winner_id
			FROM battles WHERE id=$1 FOR UPDATE
		`
		err := tx.QueryRow(ctx, q, battleID).Scan(
			&b.ID, &b.CreatorID, &b.OpponentID, &creatorVote, &opponentVote, &b.Status, &winnerID,
		)
		if errors.Is(err, pgx.ErrNoRows) {
			return battle.ErrBattleNotFound
		}
		if err != nil {
			return err
		}
		if creatorVote != nil {
			b.CreatorVote = models.VoteKind(*creatorVote)
		}
		if opponentVote != nil {
			b.OpponentVote = models.VoteKind(*opponentVote)
		}
		if winnerID != nil {
			if parsed, perr := uuid.Parse(*winnerID); perr == nil {
				b.WinnerID = parsed
			}
		}

		write, err := fn(&b)
		if err != nil || !write {
			return err
		}

		upd := `
			UPDATE battles
			SET creator_vote=$1, opponent_vote=$2, status=$3, winner_id=$4
			WHERE id=$5
		`
		_, err = tx.Exec(ctx, upd,
			nullableVote(b.CreatorVote), nullableVote(b.OpponentVote), b.Status, nullableUUID(b.WinnerID), battleID,
		)
		return err
	})
}

func nullableVote(v models.VoteKind) *string {
	if v == "" {
		return nil
	}
	s := string(v)
	return &s
}

func nullableUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
