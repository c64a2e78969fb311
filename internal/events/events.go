// internal/events/events.go
//
// Idempotency keys and the bounded per-record log of applied keys. Every
// mutating match/battle operation checks the log against a fresh in-
// transaction read before applying, so replayed requests and racing
// scheduler ticks collapse into no-ops.
package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxProcessedEvents bounds the per-record log. Oldest entries are dropped
// first once the cap is reached, so storage per match stays fixed.
const MaxProcessedEvents = 64

// Event kinds used to build ids. Scheduler-driven kinds pair with a
// deadline so concurrent sweeps resolving the same deadline dedupe.
const (
	KindCreateGame     = "create_game"
	KindJoinGame       = "join_game"
	KindSubmitTrick    = "submit_trick"
	KindPassTrick      = "pass_trick"
	KindDisconnect     = "disconnect"
	KindReconnect      = "reconnect"
	KindForfeit        = "forfeit"
	KindTurnTimeout    = "turn_timeout"
	KindReconnectExp   = "reconnect_expired"
	KindStalledForfeit = "stalled_forfeit"
	KindCastVote       = "cast_vote"
	KindVoteTimeout    = "vote_timeout"
)

// AlreadyProcessed reports whether eventID is present in the applied log.
func AlreadyProcessed(processed []string, eventID string) bool {
	for _, id := range processed {
		if id == eventID {
			return true
		}
	}
	return false
}

// Record appends eventID and truncates the log to MaxProcessedEvents,
// dropping the oldest entries. Returns the new log.
func Record(processed []string, eventID string) []string {
	processed = append(processed, eventID)
	if len(processed) > MaxProcessedEvents {
		processed = processed[len(processed)-MaxProcessedEvents:]
	}
	return processed
}

// PlayerEventID builds an id for a genuine user action. The uuid nonce
// makes each submission unique: two identical tricks from the same player
// are two distinct events.
func PlayerEventID(kind string, actorID, matchID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:%s:%s", kind, actorID, matchID, uuid.New())
}

// DeadlineEventID builds a deterministic id for a scheduler-driven action.
// Two sweep ticks resolving the same deadline compute the same id, so the
// second one re-reads the record, finds the id applied, and skips.
func DeadlineEventID(kind string, matchID uuid.UUID, deadline time.Time) string {
	return fmt.Sprintf("%s:%s:%d", kind, matchID, deadline.Unix())
}
