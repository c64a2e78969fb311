// internal/game/sweeps.go
//
// Deadline-driven transitions. Candidate matches are listed outside any
// transaction, then each one is re-read and re-validated inside its own
// locked transaction before anything is written: still the right status,
// deadline still in the past, deadline-derived event id not yet applied.
// Any failed check skips the candidate with no mutation, which is the sole
// safety net against racing a live player action.
package game

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/grindline/skate-service/internal/events"
	"github.com/grindline/skate-service/internal/models"
	"github.com/grindline/skate-service/internal/skate"
)

// ProcessTimeouts resolves active matches whose turn deadline has passed.
// An attempter who stalls just loses the turn opportunity; a setter who
// stalls forfeits the match to their opponent. Returns how many matches
// were acted on.
func (s *Service) ProcessTimeouts(ctx context.Context) int {
	now := s.now()
	ids, err := s.store.ListPastTurnDeadline(ctx, now)
	if err != nil {
		s.log.WithError(err).Error("turn-deadline sweep: listing candidates failed")
		return 0
	}

	processed := 0
	for _, id := range ids {
		if s.resolveTurnTimeout(ctx, id) {
			processed++
		}
	}
	return processed
}

func (s *Service) resolveTurnTimeout(ctx context.Context, matchID uuid.UUID) bool {
	var acted bool
	var notifs []pending
	var terminal *models.Match

	err := s.store.UpdateMatchTx(ctx, matchID, func(m *models.Match) (bool, error) {
		now := s.now()
		if m.Status != models.MatchActive || m.TurnDeadlineAt == nil || m.TurnDeadlineAt.After(now) {
			return false, nil
		}
		eventID := events.DeadlineEventID(events.KindTurnTimeout, m.ID, *m.TurnDeadlineAt)
		if events.AlreadyProcessed(m.ProcessedEventIDs, eventID) {
			return false, nil
		}

		switch m.CurrentAction {
		case models.ActionAttempt:
			// No letter penalty: the attempter simply loses the chance.
			if err := s.advanceAfterAttempt(m, now); err != nil {
				return false, err
			}
			notifs = append(notifs, s.turnNotification(m))

		case models.ActionSet:
			// The setter's inaction forfeits the match to their opponent.
			m.Status = models.MatchForfeited
			m.ForfeitReason = models.ForfeitSetTimeout
			m.TurnDeadlineAt = nil
			if next, ok := skate.NextActiveIndex(m.Players, m.CurrentTurnIndex); ok {
				m.WinnerID = m.Players[next].ID
			}
			notifs = append(notifs, forfeitNotifications(m)...)
			terminal = m
		}

		m.ProcessedEventIDs = events.Record(m.ProcessedEventIDs, eventID)
		m.UpdatedAt = now
		acted = true
		return true, nil
	})

	if err != nil {
		s.log.WithFields(logrus.Fields{"match": matchID, "error": err}).Error("turn-deadline sweep: candidate failed")
		return false
	}
	s.dispatch(notifs)
	if terminal != nil {
		s.recordOutcome(ctx, terminal)
	}
	return acted
}

// ForfeitExpiredGames resolves paused matches where a disconnected player
// overran the reconnect window. The forfeit goes through the same mutation
// as a voluntary one, with reason disconnect_timeout.
func (s *Service) ForfeitExpiredGames(ctx context.Context) int {
	now := s.now()
	ids, err := s.store.ListPausedBefore(ctx, now.Add(-s.timeouts.Reconnect))
	if err != nil {
		s.log.WithError(err).Error("disconnect sweep: listing candidates failed")
		return 0
	}

	processed := 0
	for _, id := range ids {
		if s.resolveReconnectExpiry(ctx, id) {
			processed++
		}
	}
	return processed
}

func (s *Service) resolveReconnectExpiry(ctx context.Context, matchID uuid.UUID) bool {
	var acted bool
	var notifs []pending
	var terminal *models.Match

	err := s.store.UpdateMatchTx(ctx, matchID, func(m *models.Match) (bool, error) {
		now := s.now()
		if m.Status != models.MatchPaused {
			return false, nil
		}

		// Find a disconnected player whose reconnect window has lapsed.
		loserIdx := -1
		var windowEnd time.Time
		for i, p := range m.Players {
			if p.Connected || p.DisconnectedAt == nil {
				continue
			}
			end := p.DisconnectedAt.Add(s.timeouts.Reconnect)
			if !end.After(now) {
				loserIdx = i
				windowEnd = end
				break
			}
		}
		if loserIdx < 0 {
			return false, nil
		}

		eventID := events.DeadlineEventID(events.KindReconnectExp, m.ID, windowEnd)
		if events.AlreadyProcessed(m.ProcessedEventIDs, eventID) {
			return false, nil
		}

		m.Status = models.MatchCompleted
		m.ForfeitReason = models.ForfeitDisconnectTimeout
		m.WinnerID = forfeitWinner(m, m.Players[loserIdx].ID)
		m.TurnDeadlineAt = nil
		m.ProcessedEventIDs = events.Record(m.ProcessedEventIDs, eventID)
		m.UpdatedAt = now

		notifs = forfeitNotifications(m)
		terminal = m
		acted = true
		return true, nil
	})

	if err != nil {
		s.log.WithFields(logrus.Fields{"match": matchID, "error": err}).Error("disconnect sweep: candidate failed")
		return false
	}
	s.dispatch(notifs)
	if terminal != nil {
		s.recordOutcome(ctx, terminal)
	}
	return acted
}

// ForfeitStalledGames resolves matches with no write activity past the hard
// cap. The player with fewer letters wins; on a tie the loser is whoever
// holds the current turn, falling back to the first player when the turn is
// unset. Deliberately arbitrary but deterministic, and preserved as
// observable behavior.
func (s *Service) ForfeitStalledGames(ctx context.Context) int {
	now := s.now()
	ids, err := s.store.ListStalledBefore(ctx, now.Add(-s.timeouts.Stalled))
	if err != nil {
		s.log.WithError(err).Error("stalled sweep: listing candidates failed")
		return 0
	}

	processed := 0
	for _, id := range ids {
		if s.resolveStalled(ctx, id) {
			processed++
		}
	}
	return processed
}

func (s *Service) resolveStalled(ctx context.Context, matchID uuid.UUID) bool {
	var acted bool
	var notifs []pending
	var terminal *models.Match

	err := s.store.UpdateMatchTx(ctx, matchID, func(m *models.Match) (bool, error) {
		now := s.now()
		if m.Terminal() || m.UpdatedAt.After(now.Add(-s.timeouts.Stalled)) {
			return false, nil
		}

		deadline := m.UpdatedAt.Add(s.timeouts.Stalled)
		eventID := events.DeadlineEventID(events.KindStalledForfeit, m.ID, deadline)
		if events.AlreadyProcessed(m.ProcessedEventIDs, eventID) {
			return false, nil
		}

		m.Status = models.MatchForfeited
		m.ForfeitReason = models.ForfeitStalled
		m.WinnerID = stalledWinner(m)
		m.TurnDeadlineAt = nil
		m.ProcessedEventIDs = events.Record(m.ProcessedEventIDs, eventID)
		m.UpdatedAt = now

		notifs = forfeitNotifications(m)
		terminal = m
		acted = true
		return true, nil
	})

	if err != nil {
		s.log.WithFields(logrus.Fields{"match": matchID, "error": err}).Error("stalled sweep: candidate failed")
		return false
	}
	s.dispatch(notifs)
	if terminal != nil {
		s.recordOutcome(ctx, terminal)
	}
	return acted
}

// stalledWinner applies the letter-count tie-break: fewest letters wins, and
// a full tie is broken against the current-turn holder (or the first player
// when the index is out of range). A match that never gathered two players
// has nobody to win it.
func stalledWinner(m *models.Match) uuid.UUID {
	if len(m.Players) < 2 {
		return uuid.Nil
	}

	loserIdx := m.CurrentTurnIndex
	if loserIdx < 0 || loserIdx >= len(m.Players) {
		loserIdx = 0
	}

	winIdx, best := -1, -1
	for i, p := range m.Players {
		n := len(p.Letters)
		switch {
		case winIdx < 0 || n < best:
			winIdx, best = i, n
		case n == best && winIdx == loserIdx:
			// Tied with the designated loser: the other player takes it.
			winIdx = i
		}
	}
	return m.Players[winIdx].ID
}
