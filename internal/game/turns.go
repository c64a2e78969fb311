// internal/game/turns.go
package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/grindline/skate-service/internal/events"
	"github.com/grindline/skate-service/internal/models"
	"github.com/grindline/skate-service/internal/skate"
)

// errNoActivePlayer signals that turn rotation found nobody left to act.
// Reachable states eliminate and complete in the same atomic step, so
// hitting this outside that step means the record was corrupted externally.
var errNoActivePlayer = errors.New("no active player to rotate to")

// SubmitTrick records the acting player's trick. In the set phase it fixes
// the trick and setter and hands the turn to the first attempter; in the
// attempt phase it marks the trick as matched and advances rotation,
// starting a fresh set round once every active attempter has gone.
func (s *Service) SubmitTrick(ctx context.Context, eventID string, matchID, userID uuid.UUID, trickName string) *Result {
	var res *Result
	var notifs []pending

	err := s.store.UpdateMatchTx(ctx, matchID, func(m *models.Match) (bool, error) {
		if events.AlreadyProcessed(m.ProcessedEventIDs, eventID) {
			res = replayed(m)
			return false, nil
		}
		if m.Status != models.MatchActive {
			res = fail(ErrGameNotActive)
			return false, nil
		}
		idx := m.PlayerIndex(userID)
		if idx < 0 || idx != m.CurrentTurnIndex {
			res = fail(ErrNotYourTurn)
			return false, nil
		}

		now := s.now()
		switch m.CurrentAction {
		case models.ActionSet:
			m.CurrentTrick = trickName
			m.SetterID = userID
			m.CurrentAction = models.ActionAttempt
			next, ok := skate.NextActiveIndex(m.Players, idx)
			if !ok {
				return false, fmt.Errorf("set by %s: %w", userID, errNoActivePlayer)
			}
			m.CurrentTurnIndex = next
			m.TurnDeadlineAt = s.turnDeadline(now)

		case models.ActionAttempt:
			if err := s.advanceAfterAttempt(m, now); err != nil {
				return false, err
			}
		}

		m.ProcessedEventIDs = events.Record(m.ProcessedEventIDs, eventID)
		m.UpdatedAt = now

		notifs = append(notifs, s.turnNotification(m))
		res = succeed(m)
		return true, nil
	})

	if errors.Is(err, ErrMatchNotFound) {
		return fail(ErrGameNotFound)
	}
	if err != nil {
		s.log.WithFields(logrus.Fields{"match": matchID, "actor": userID, "error": err}).Error("submit trick failed")
		return fail("Failed to submit trick")
	}
	s.dispatch(notifs)
	return res
}

// PassTrick declines the current trick. The passer gains the next letter;
// reaching SKATE eliminates them, and the last elimination completes the
// match in the sole survivor's favor inside the same transaction.
func (s *Service) PassTrick(ctx context.Context, eventID string, matchID, userID uuid.UUID) *Result {
	var res *Result
	var notifs []pending

	err := s.store.UpdateMatchTx(ctx, matchID, func(m *models.Match) (bool, error) {
		if events.AlreadyProcessed(m.ProcessedEventIDs, eventID) {
			res = replayed(m)
			return false, nil
		}
		if m.Status != models.MatchActive {
			res = fail(ErrGameNotActive)
			return false, nil
		}
		idx := m.PlayerIndex(userID)
		if idx < 0 || idx != m.CurrentTurnIndex {
			res = fail(ErrNotYourTurn)
			return false, nil
		}
		if m.CurrentAction != models.ActionAttempt {
			res = fail(ErrPassOutsidePhase)
			return false, nil
		}

		now := s.now()
		newLetters, gained := skate.ApplyMiss(m.Players[idx].Letters)
		m.Players[idx].Letters = newLetters
		eliminated := skate.IsEliminated(newLetters)

		notifs = append(notifs, pending{userID, NotifyLetterGained, map[string]interface{}{
			"matchId": m.ID.String(),
			"letter":  gained,
			"letters": newLetters,
		}})

		if eliminated {
			if survivor, sole := skate.SoleSurvivorIndex(m.Players); sole {
				m.Status = models.MatchCompleted
				m.WinnerID = m.Players[survivor].ID
				m.TurnDeadlineAt = nil
				m.ProcessedEventIDs = events.Record(m.ProcessedEventIDs, eventID)
				m.UpdatedAt = now

				for _, p := range m.Players {
					notifs = append(notifs, pending{p.ID, NotifyMatchCompleted, map[string]interface{}{
						"matchId":  m.ID.String(),
						"winnerId": m.WinnerID.String(),
					}})
				}
				res = &Result{Success: true, Match: m, LetterGained: newLetters, IsEliminated: true}
				return true, nil
			}
		}

		if err := s.advanceAfterAttempt(m, now); err != nil {
			return false, err
		}

		m.ProcessedEventIDs = events.Record(m.ProcessedEventIDs, eventID)
		m.UpdatedAt = now

		notifs = append(notifs, s.turnNotification(m))
		res = &Result{Success: true, Match: m, LetterGained: newLetters, IsEliminated: eliminated}
		return true, nil
	})

	if errors.Is(err, ErrMatchNotFound) {
		return fail(ErrGameNotFound)
	}
	if err != nil {
		s.log.WithFields(logrus.Fields{"match": matchID, "actor": userID, "error": err}).Error("pass trick failed")
		return fail("Failed to pass trick")
	}
	s.dispatch(notifs)
	return res
}

// advanceAfterAttempt moves rotation past the player at CurrentTurnIndex.
// When the walk lands back on the setter the round is over: the setter role
// rotates, the trick clears, and the set phase restarts. Resets the turn
// deadline either way.
func (s *Service) advanceAfterAttempt(m *models.Match, now time.Time) error {
	setterIdx := m.PlayerIndex(m.SetterID)
	if setterIdx < 0 {
		return fmt.Errorf("setter %s: %w", m.SetterID, errNoActivePlayer)
	}

	next, ok := skate.NextActiveIndex(m.Players, m.CurrentTurnIndex)
	if !ok {
		return fmt.Errorf("advance from %d: %w", m.CurrentTurnIndex, errNoActivePlayer)
	}

	if next == setterIdx {
		// Round complete: rotate the setter, skipping eliminated players.
		newSetter, ok := skate.NextActiveIndex(m.Players, setterIdx)
		if !ok {
			return fmt.Errorf("rotate setter from %d: %w", setterIdx, errNoActivePlayer)
		}
		m.CurrentTurnIndex = newSetter
		m.CurrentAction = models.ActionSet
		m.CurrentTrick = ""
		m.SetterID = m.Players[newSetter].ID
	} else {
		m.CurrentTurnIndex = next
	}

	m.TurnDeadlineAt = s.turnDeadline(now)
	return nil
}

func (s *Service) turnNotification(m *models.Match) pending {
	return pending{m.Players[m.CurrentTurnIndex].ID, NotifyYourTurn, map[string]interface{}{
		"matchId": m.ID.String(),
		"action":  string(m.CurrentAction),
		"trick":   m.CurrentTrick,
	}}
}
