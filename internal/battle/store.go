// internal/battle/store.go
package battle

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/grindline/skate-service/internal/models"
)

// ErrVoteStateNotFound means no vote_states row exists for the battle; the
// caller falls back to the legacy battle path before reporting not-found.
var ErrVoteStateNotFound = errors.New("vote state not found")

// ErrBattleNotFound means not even a legacy battle row exists.
var ErrBattleNotFound = errors.New("battle not found")

// Store is the persistent vote store contract, with the same locked
// re-read-then-write transaction semantics as the match store.
type Store interface {
	InsertVoteState(ctx context.Context, v *models.VoteState) error
	GetVoteState(ctx context.Context, battleID uuid.UUID) (*models.VoteState, error)

	// UpdateVoteStateTx locks and re-reads the vote state, invoking fn; the
	// record is written back only on a (true, nil) return.
	UpdateVoteStateTx(ctx context.Context, battleID uuid.UUID, fn func(v *models.VoteState) (bool, error)) error

	// ListVotingPastDeadline returns battle ids still in voting whose
	// deadline has passed.
	ListVotingPastDeadline(ctx context.Context, now time.Time) ([]uuid.UUID, error)

	// UpdateLegacyBattleTx serves battles created before the vote_states
	// table existed: the two votes live directly on the battle row.
	UpdateLegacyBattleTx(ctx context.Context, battleID uuid.UUID, fn func(b *models.LegacyBattle) (bool, error)) error
}

// Notifier mirrors the match notifier: best-effort, post-commit.
type Notifier interface {
	Notify(userID uuid.UUID, eventKind string, payload map[string]interface{})
}
