// internal/battle/service.go
//
// The vote state machine for Battle matches: two participants judge each
// other's runs, and the judgments resolve the battle the moment both are in
// or the deadline lapses. Structurally parallel to the match state machine:
// every mutation re-reads the record inside a locked transaction and
// re-validates the idempotency log before writing.
package battle

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/grindline/skate-service/internal/config"
	"github.com/grindline/skate-service/internal/events"
	"github.com/grindline/skate-service/internal/models"
)

// Fixed error strings returned to callers.
const (
	ErrBattleMissing   = "Battle not found"
	ErrNotParticipant  = "Not a participant"
	ErrDeadlinePassed  = "Voting deadline has passed"
	ErrVotingCompleted = "Voting already completed"
)

// Notification kinds.
const (
	NotifyVoteRecorded   = "vote_recorded"
	NotifyBattleResolved = "battle_resolved"
)

// Result is the outcome contract for vote operations.
type Result struct {
	Success          bool              `json:"success"`
	Vote             *models.VoteState `json:"vote,omitempty"`
	Error            string            `json:"error,omitempty"`
	AlreadyProcessed bool              `json:"alreadyProcessed,omitempty"`
	WinnerID         uuid.UUID         `json:"winnerId,omitempty"`
}

func fail(msg string) *Result { return &Result{Success: false, Error: msg} }
func succeed(v *models.VoteState) *Result {
	return &Result{Success: true, Vote: v, WinnerID: v.WinnerID}
}

// Service orchestrates battle vote mutations against the store.
type Service struct {
	store    Store
	notifier Notifier
	log      *logrus.Logger
	timeouts config.Timeouts

	now func() time.Time
}

func NewService(store Store, notifier Notifier, logger *logrus.Logger, timeouts config.Timeouts) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		log:      logger,
		timeouts: timeouts,
		now:      time.Now,
	}
}

func (s *Service) notify(userID uuid.UUID, kind string, payload map[string]interface{}) {
	if s.notifier == nil || userID == uuid.Nil {
		return
	}
	s.notifier.Notify(userID, kind, payload)
}

// InitializeVoting opens the voting window for a battle.
func (s *Service) InitializeVoting(ctx context.Context, eventID string, battleID, creatorID, opponentID uuid.UUID) *Result {
	now := s.now()
	v := &models.VoteState{
		BattleID:          battleID,
		CreatorID:         creatorID,
		OpponentID:        opponentID,
		Status:            models.VoteVoting,
		VotingStartedAt:   now,
		VoteDeadlineAt:    now.Add(s.timeouts.Vote),
		ProcessedEventIDs: events.Record(nil, eventID),
	}
	if err := s.store.InsertVoteState(ctx, v); err != nil {
		s.log.WithFields(logrus.Fields{"battle": battleID, "error": err}).Error("initialize voting failed")
		return fail("Failed to initialize voting")
	}
	return succeed(v)
}

// CastVote records a participant's judgment. A second vote from the same
// participant overwrites the first. Once both sides have voted the battle
// resolves immediately. Battles predating the vote_states table fall back
// to the legacy two-vote path, which converges on the same scoring rule.
func (s *Service) CastVote(ctx context.Context, eventID string, battleID, userID uuid.UUID, vote models.VoteKind) *Result {
	var res *Result
	var resolved *models.VoteState

	err := s.store.UpdateVoteStateTx(ctx, battleID, func(v *models.VoteState) (bool, error) {
		if events.AlreadyProcessed(v.ProcessedEventIDs, eventID) {
			res = &Result{Success: true, Vote: v, AlreadyProcessed: true, WinnerID: v.WinnerID}
			return false, nil
		}
		if !v.IsParticipant(userID) {
			res = fail(ErrNotParticipant)
			return false, nil
		}
		now := s.now()
		if v.Status != models.VoteVoting {
			res = fail(ErrVotingCompleted)
			return false, nil
		}
		if now.After(v.VoteDeadlineAt) {
			res = fail(ErrDeadlinePassed)
			return false, nil
		}

		recordVote(v, userID, vote, now)

		if _, creatorVoted := v.VoteBy(v.CreatorID); creatorVoted {
			if _, opponentVoted := v.VoteBy(v.OpponentID); opponentVoted {
				resolveVotes(v)
				resolved = v
			}
		}

		v.ProcessedEventIDs = events.Record(v.ProcessedEventIDs, eventID)
		res = succeed(v)
		return true, nil
	})

	if errors.Is(err, ErrVoteStateNotFound) {
		return s.castLegacyVote(ctx, battleID, userID, vote)
	}
	if err != nil {
		s.log.WithFields(logrus.Fields{"battle": battleID, "actor": userID, "error": err}).Error("cast vote failed")
		return fail("Failed to cast vote")
	}

	if resolved != nil {
		s.announceResolution(resolved.CreatorID, resolved.OpponentID, resolved.BattleID, resolved.WinnerID)
	}
	return res
}

// recordVote appends or overwrites the participant's entry, keeping at most
// one vote per participant.
func recordVote(v *models.VoteState, userID uuid.UUID, vote models.VoteKind, now time.Time) {
	for i := range v.Votes {
		if v.Votes[i].ParticipantID == userID {
			v.Votes[i].Vote = vote
			v.Votes[i].VotedAt = now
			return
		}
	}
	v.Votes = append(v.Votes, models.BattleVote{ParticipantID: userID, Vote: vote, VotedAt: now})
}

// votePoints maps a judgment to the points it concedes to the opponent: a
// clean vote says the trick landed, sketchy gives partial credit.
func votePoints(v models.VoteKind) int {
	switch v {
	case models.VoteClean:
		return 2
	case models.VoteSketchy:
		return 1
	default:
		return 0
	}
}

// scoreVotes applies the shared scoring rule: each participant's vote awards
// points to the opponent, higher total wins, and the creator takes ties.
// Both the vote-state and the legacy path resolve through this.
func scoreVotes(creatorID, opponentID uuid.UUID, creatorVote, opponentVote models.VoteKind) uuid.UUID {
	creatorScore := votePoints(opponentVote)
	opponentScore := votePoints(creatorVote)
	if opponentScore > creatorScore {
		return opponentID
	}
	return creatorID
}

func resolveVotes(v *models.VoteState) {
	creatorVote, _ := v.VoteBy(v.CreatorID)
	opponentVote, _ := v.VoteBy(v.OpponentID)
	v.WinnerID = scoreVotes(v.CreatorID, v.OpponentID, creatorVote.Vote, opponentVote.Vote)
	v.Status = models.VoteCompleted
}

// castLegacyVote tallies directly against the two-vote battle row: no
// deadline, no per-state event log.
func (s *Service) castLegacyVote(ctx context.Context, battleID, userID uuid.UUID, vote models.VoteKind) *Result {
	var res *Result
	var creatorID, opponentID, winnerID uuid.UUID
	var announce bool

	err := s.store.UpdateLegacyBattleTx(ctx, battleID, func(b *models.LegacyBattle) (bool, error) {
		if b.Status == "completed" {
			res = fail(ErrVotingCompleted)
			return false, nil
		}

		switch userID {
		case b.CreatorID:
			b.CreatorVote = vote
		case b.OpponentID:
			b.OpponentVote = vote
		default:
			res = fail(ErrNotParticipant)
			return false, nil
		}

		if b.CreatorVote != "" && b.OpponentVote != "" {
			b.WinnerID = scoreVotes(b.CreatorID, b.OpponentID, b.CreatorVote, b.OpponentVote)
			b.Status = "completed"
			creatorID, opponentID, winnerID = b.CreatorID, b.OpponentID, b.WinnerID
			announce = true
		}

		res = &Result{Success: true, WinnerID: b.WinnerID}
		return true, nil
	})

	if errors.Is(err, ErrBattleNotFound) {
		return fail(ErrBattleMissing)
	}
	if err != nil {
		s.log.WithFields(logrus.Fields{"battle": battleID, "actor": userID, "error": err}).Error("cast legacy vote failed")
		return fail("Failed to cast vote")
	}
	if announce {
		s.announceResolution(creatorID, opponentID, battleID, winnerID)
	}
	return res
}

func (s *Service) announceResolution(creatorID, opponentID, battleID, winnerID uuid.UUID) {
	payload := map[string]interface{}{
		"battleId": battleID.String(),
		"winnerId": winnerID.String(),
	}
	s.notify(creatorID, NotifyBattleResolved, payload)
	s.notify(opponentID, NotifyBattleResolved, payload)
}

// ProcessVoteTimeouts resolves voting records whose deadline has passed: a
// lone voter wins, and with no votes at all the creator takes it. Idempotent
// via a deadline-derived event id. Returns how many battles were resolved.
func (s *Service) ProcessVoteTimeouts(ctx context.Context) int {
	now := s.now()
	ids, err := s.store.ListVotingPastDeadline(ctx, now)
	if err != nil {
		s.log.WithError(err).Error("vote sweep: listing candidates failed")
		return 0
	}

	processed := 0
	for _, id := range ids {
		if s.resolveVoteTimeout(ctx, id) {
			processed++
		}
	}
	return processed
}

func (s *Service) resolveVoteTimeout(ctx context.Context, battleID uuid.UUID) bool {
	var acted bool
	var resolved *models.VoteState

	err := s.store.UpdateVoteStateTx(ctx, battleID, func(v *models.VoteState) (bool, error) {
		now := s.now()
		if v.Status != models.VoteVoting || v.VoteDeadlineAt.After(now) {
			return false, nil
		}
		eventID := events.DeadlineEventID(events.KindVoteTimeout, v.BattleID, v.VoteDeadlineAt)
		if events.AlreadyProcessed(v.ProcessedEventIDs, eventID) {
			return false, nil
		}

		_, creatorVoted := v.VoteBy(v.CreatorID)
		_, opponentVoted := v.VoteBy(v.OpponentID)
		switch {
		case creatorVoted && opponentVoted:
			resolveVotes(v)
		case opponentVoted:
			v.WinnerID = v.OpponentID
			v.Status = models.VoteCompleted
		default:
			// Creator voted alone, or nobody did: creator wins either way.
			v.WinnerID = v.CreatorID
			v.Status = models.VoteCompleted
		}

		v.ProcessedEventIDs = events.Record(v.ProcessedEventIDs, eventID)
		resolved = v
		acted = true
		return true, nil
	})

	if err != nil {
		s.log.WithFields(logrus.Fields{"battle": battleID, "error": err}).Error("vote sweep: candidate failed")
		return false
	}
	if resolved != nil {
		s.announceResolution(resolved.CreatorID, resolved.OpponentID, resolved.BattleID, resolved.WinnerID)
	}
	return acted
}

// GetVoteState is a read-only lookup for the transport layer.
func (s *Service) GetVoteState(ctx context.Context, battleID uuid.UUID) *Result {
	v, err := s.store.GetVoteState(ctx, battleID)
	if errors.Is(err, ErrVoteStateNotFound) {
		return fail(ErrBattleMissing)
	}
	if err != nil {
		s.log.WithFields(logrus.Fields{"battle": battleID, "error": err}).Error("get vote state failed")
		return fail("Failed to get vote state")
	}
	return succeed(v)
}
