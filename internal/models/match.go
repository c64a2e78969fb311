// internal/models/match.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// MatchStatus enumerates the lifecycle states of a S.K.A.T.E. match.
type MatchStatus string

const (
	MatchWaiting   MatchStatus = "waiting"
	MatchActive    MatchStatus = "active"
	MatchPaused    MatchStatus = "paused"
	MatchCompleted MatchStatus = "completed"
	MatchForfeited MatchStatus = "forfeited"
)

// MatchAction is the phase within a round: the setter sets a trick, then the
// other players attempt it.
type MatchAction string

const (
	ActionSet     MatchAction = "set"
	ActionAttempt MatchAction = "attempt"
)

// ForfeitReason records why a match ended without a natural elimination.
type ForfeitReason string

const (
	ForfeitVoluntary         ForfeitReason = "voluntary"
	ForfeitDisconnectTimeout ForfeitReason = "disconnect_timeout"
	ForfeitSetTimeout        ForfeitReason = "set_timeout"
	ForfeitStalled           ForfeitReason = "stalled"
)

// MatchPlayer is one participant embedded in a Match. Order within
// Match.Players defines the turn rotation and is fixed at join time.
type MatchPlayer struct {
	ID             uuid.UUID  `json:"id"`
	Letters        string     `json:"letters"` // prefix of "SKATE", grows only
	Connected      bool       `json:"connected"`
	DisconnectedAt *time.Time `json:"disconnectedAt,omitempty"`
}

// Match is one trick-battle session. The game service is the sole writer;
// the timeout sweeps mutate it only through the same transactional paths.
type Match struct {
	ID               uuid.UUID     `json:"id"`
	SpotID           uuid.UUID     `json:"spotId"`
	Players          []MatchPlayer `json:"players"`
	MaxPlayers       int           `json:"maxPlayers"`
	Status           MatchStatus   `json:"status"`
	CurrentTurnIndex int           `json:"currentTurnIndex"`
	CurrentAction    MatchAction   `json:"currentAction"`
	CurrentTrick     string        `json:"currentTrick,omitempty"`
	SetterID         uuid.UUID     `json:"setterId,omitempty"`
	TurnDeadlineAt   *time.Time    `json:"turnDeadlineAt,omitempty"`
	PausedAt         *time.Time    `json:"pausedAt,omitempty"`
	WinnerID         uuid.UUID     `json:"winnerId,omitempty"`
	ForfeitReason    ForfeitReason `json:"forfeitReason,omitempty"`

	// ProcessedEventIDs is a bounded, oldest-first log of applied
	// idempotency keys. See internal/events.
	ProcessedEventIDs []string `json:"processedEventIds"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PlayerIndex returns the rotation index of the given player, or -1.
func (m *Match) PlayerIndex(id uuid.UUID) int {
	for i := range m.Players {
		if m.Players[i].ID == id {
			return i
		}
	}
	return -1
}

// HasPlayer reports whether the user participates in the match.
func (m *Match) HasPlayer(id uuid.UUID) bool {
	return m.PlayerIndex(id) >= 0
}

// Terminal reports whether the match has reached a final state.
func (m *Match) Terminal() bool {
	return m.Status == MatchCompleted || m.Status == MatchForfeited
}
