// internal/models/vote.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// VoteStatus enumerates the lifecycle of a battle vote record.
type VoteStatus string

const (
	VoteVoting    VoteStatus = "voting"
	VoteCompleted VoteStatus = "completed"
)

// VoteKind is the judgment a participant passes on their opponent's run.
// A "clean" vote concedes the point: it says the opponent landed their trick.
type VoteKind string

const (
	VoteClean   VoteKind = "clean"
	VoteSketchy VoteKind = "sketchy"
	VoteMissed  VoteKind = "missed"
)

// BattleVote is one participant's recorded judgment.
type BattleVote struct {
	ParticipantID uuid.UUID `json:"participantId"`
	Vote          VoteKind  `json:"vote"`
	VotedAt       time.Time `json:"votedAt"`
}

// VoteState tracks the two-party result voting for a Battle. At most one
// entry per participant lives in Votes; a re-vote overwrites in place.
type VoteState struct {
	BattleID        uuid.UUID    `json:"battleId"`
	CreatorID       uuid.UUID    `json:"creatorId"`
	OpponentID      uuid.UUID    `json:"opponentId"`
	Status          VoteStatus   `json:"status"`
	Votes           []BattleVote `json:"votes"`
	VotingStartedAt time.Time    `json:"votingStartedAt"`
	VoteDeadlineAt  time.Time    `json:"voteDeadlineAt"`
	WinnerID        uuid.UUID    `json:"winnerId,omitempty"`

	ProcessedEventIDs []string `json:"processedEventIds"`
}

// VoteBy returns the recorded vote for a participant, if any.
func (v *VoteState) VoteBy(id uuid.UUID) (BattleVote, bool) {
	for _, bv := range v.Votes {
		if bv.ParticipantID == id {
			return bv, true
		}
	}
	return BattleVote{}, false
}

// IsParticipant reports whether the user is the creator or the opponent.
func (v *VoteState) IsParticipant(id uuid.UUID) bool {
	return id == v.CreatorID || id == v.OpponentID
}

// LegacyBattle is the pre-vote-state shape: a battle row carrying the two
// votes directly, with no deadline and no per-state event log. Battles
// created before the vote_states table existed still resolve through it.
type LegacyBattle struct {
	ID           uuid.UUID `json:"id"`
	CreatorID    uuid.UUID `json:"creatorId"`
	OpponentID   uuid.UUID `json:"opponentId"`
	CreatorVote  VoteKind  `json:"creatorVote,omitempty"`
	OpponentVote VoteKind  `json:"opponentVote,omitempty"`
	Status       string    `json:"status"`
	WinnerID     uuid.UUID `json:"winnerId,omitempty"`
}
