// internal/game/connection.go
package game

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/grindline/skate-service/internal/events"
	"github.com/grindline/skate-service/internal/models"
)

// HandleDisconnect marks the player disconnected. An active match pauses
// until everyone is back or the reconnect window lapses; waiting matches
// are unaffected beyond the connection flag.
func (s *Service) HandleDisconnect(ctx context.Context, eventID string, matchID, userID uuid.UUID) *Result {
	var res *Result

	err := s.store.UpdateMatchTx(ctx, matchID, func(m *models.Match) (bool, error) {
		if events.AlreadyProcessed(m.ProcessedEventIDs, eventID) {
			res = replayed(m)
			return false, nil
		}
		idx := m.PlayerIndex(userID)
		if idx < 0 {
			res = fail(ErrPlayerNotInGame)
			return false, nil
		}

		now := s.now()
		m.Players[idx].Connected = false
		m.Players[idx].DisconnectedAt = &now

		if m.Status == models.MatchActive {
			m.Status = models.MatchPaused
			m.PausedAt = &now
		}

		m.ProcessedEventIDs = events.Record(m.ProcessedEventIDs, eventID)
		m.UpdatedAt = now
		res = succeed(m)
		return true, nil
	})

	if errors.Is(err, ErrMatchNotFound) {
		return fail(ErrGameNotFound)
	}
	if err != nil {
		s.log.WithFields(logrus.Fields{"match": matchID, "actor": userID, "error": err}).Error("handle disconnect failed")
		return fail("Failed to handle disconnect")
	}
	return res
}

// HandleReconnect marks the player connected again. Once every player is
// back a paused match resumes with a fresh turn deadline.
func (s *Service) HandleReconnect(ctx context.Context, eventID string, matchID, userID uuid.UUID) *Result {
	var res *Result
	var notifs []pending

	err := s.store.UpdateMatchTx(ctx, matchID, func(m *models.Match) (bool, error) {
		if events.AlreadyProcessed(m.ProcessedEventIDs, eventID) {
			res = replayed(m)
			return false, nil
		}
		idx := m.PlayerIndex(userID)
		if idx < 0 {
			res = fail(ErrPlayerNotInGame)
			return false, nil
		}

		now := s.now()
		m.Players[idx].Connected = true
		m.Players[idx].DisconnectedAt = nil

		allConnected := true
		for _, p := range m.Players {
			if !p.Connected {
				allConnected = false
				break
			}
		}

		if allConnected && m.Status == models.MatchPaused {
			m.Status = models.MatchActive
			m.PausedAt = nil
			m.TurnDeadlineAt = s.turnDeadline(now)
			notifs = append(notifs, s.turnNotification(m))
		}

		m.ProcessedEventIDs = events.Record(m.ProcessedEventIDs, eventID)
		m.UpdatedAt = now
		res = succeed(m)
		return true, nil
	})

	if errors.Is(err, ErrMatchNotFound) {
		return fail(ErrGameNotFound)
	}
	if err != nil {
		s.log.WithFields(logrus.Fields{"match": matchID, "actor": userID, "error": err}).Error("handle reconnect failed")
		return fail("Failed to handle reconnect")
	}
	s.dispatch(notifs)
	return res
}
