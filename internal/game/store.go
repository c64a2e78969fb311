// internal/game/store.go
package game

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/grindline/skate-service/internal/models"
)

// ErrMatchNotFound is returned by Store implementations when no match row
// exists for the given id.
var ErrMatchNotFound = errors.New("match not found")

// Store is the persistent match store contract. Implementations must give
// UpdateMatchTx select-for-update semantics: the match handed to fn is
// re-read from durable storage inside the transaction, never served from an
// earlier un-locked read, so two racing callers serialize and the second
// observes the first's committed effects.
type Store interface {
	InsertMatch(ctx context.Context, m *models.Match) error

	// GetMatch is a point read outside any transaction.
	GetMatch(ctx context.Context, id uuid.UUID) (*models.Match, error)

	// UpdateMatchTx locks the match row, re-reads it, and invokes fn. The
	// mutated match is written back only when fn returns (true, nil);
	// (false, nil) commits nothing, which is how idempotent replays and
	// stale sweep candidates become no-ops.
	UpdateMatchTx(ctx context.Context, id uuid.UUID, fn func(m *models.Match) (bool, error)) error

	// ListPastTurnDeadline returns ids of active matches whose turn deadline
	// has passed. Candidates are re-validated inside UpdateMatchTx before
	// any write.
	ListPastTurnDeadline(ctx context.Context, now time.Time) ([]uuid.UUID, error)

	// ListPausedBefore returns ids of paused matches that entered the paused
	// state at or before the cutoff.
	ListPausedBefore(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)

	// ListStalledBefore returns ids of non-terminal matches with no write
	// activity since the cutoff.
	ListStalledBefore(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)

	// RecordOutcome bumps the winner's and losers' lifetime stats. Invoked
	// after the terminal match write commits; a failure here is logged, not
	// propagated.
	RecordOutcome(ctx context.Context, winnerID uuid.UUID, loserIDs []uuid.UUID, forfeit bool) error
}

// Notifier delivers user-facing events. Best effort: invoked after commit,
// never awaited for correctness.
type Notifier interface {
	Notify(userID uuid.UUID, eventKind string, payload map[string]interface{})
}
