// internal/game/service.go
//
// The match state machine. Every mutating operation takes a caller-supplied
// event id, re-reads the match inside a locked transaction, re-validates the
// idempotency log against that fresh read, and only then writes. The timeout
// sweeps in sweeps.go drive the same transactional entry points; there is no
// special scheduler mode.
package game

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/grindline/skate-service/internal/config"
	"github.com/grindline/skate-service/internal/events"
	"github.com/grindline/skate-service/internal/models"
	"github.com/grindline/skate-service/internal/skate"
)

// Notification event kinds emitted by the match machinery.
const (
	NotifyYourTurn       = "your_turn"
	NotifyLetterGained   = "letter_gained"
	NotifyMatchStarted   = "match_started"
	NotifyMatchCompleted = "match_completed"
	NotifyMatchForfeited = "match_forfeited"
)

const (
	MinPlayers        = 2
	MaxPlayersCap     = 8
	DefaultMaxPlayers = 4
)

// Service orchestrates match mutations against the store. It holds no match
// state itself, so any number of stateless instances can run concurrently;
// the store's row locking provides all mutual exclusion.
type Service struct {
	store    Store
	notifier Notifier
	log      *logrus.Logger
	timeouts config.Timeouts

	// now is swappable for tests.
	now func() time.Time
}

// NewService wires a match service. A nil notifier disables notifications.
func NewService(store Store, notifier Notifier, logger *logrus.Logger, timeouts config.Timeouts) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		log:      logger,
		timeouts: timeouts,
		now:      time.Now,
	}
}

// pending is a notification queued during a transaction and fired only after
// the commit succeeds. A crash between commit and delivery loses the
// notification, never the state.
type pending struct {
	userID  uuid.UUID
	kind    string
	payload map[string]interface{}
}

func (s *Service) dispatch(notifs []pending) {
	if s.notifier == nil {
		return
	}
	for _, n := range notifs {
		if n.userID == uuid.Nil {
			continue
		}
		s.notifier.Notify(n.userID, n.kind, n.payload)
	}
}

func (s *Service) turnDeadline(now time.Time) *time.Time {
	d := now.Add(s.timeouts.Turn)
	return &d
}

// CreateGame creates a waiting match at the given spot with the creator as
// the sole player. maxPlayers is clamped to [2,8]; zero means the default 4.
func (s *Service) CreateGame(ctx context.Context, eventID string, spotID, creatorID uuid.UUID, maxPlayers int) *Result {
	if maxPlayers == 0 {
		maxPlayers = DefaultMaxPlayers
	}
	if maxPlayers < MinPlayers {
		maxPlayers = MinPlayers
	}
	if maxPlayers > MaxPlayersCap {
		maxPlayers = MaxPlayersCap
	}

	now := s.now()
	m := &models.Match{
		ID:         uuid.New(),
		SpotID:     spotID,
		MaxPlayers: maxPlayers,
		Status:     models.MatchWaiting,
		Players: []models.MatchPlayer{
			{ID: creatorID, Letters: "", Connected: true},
		},
		CurrentAction:     models.ActionSet,
		ProcessedEventIDs: events.Record(nil, eventID),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.store.InsertMatch(ctx, m); err != nil {
		s.log.WithFields(logrus.Fields{"spot": spotID, "creator": creatorID, "error": err}).Error("create game failed")
		return fail("Failed to create game")
	}
	return succeed(m)
}

// JoinGame appends a player to a waiting match. Reaching two players starts
// the match: index 0 becomes the setter and the turn clock starts.
func (s *Service) JoinGame(ctx context.Context, eventID string, matchID, userID uuid.UUID) *Result {
	var res *Result
	var notifs []pending

	err := s.store.UpdateMatchTx(ctx, matchID, func(m *models.Match) (bool, error) {
		if events.AlreadyProcessed(m.ProcessedEventIDs, eventID) {
			res = replayed(m)
			return false, nil
		}
		if m.HasPlayer(userID) {
			res = fail(ErrAlreadyInGame)
			return false, nil
		}
		if len(m.Players) >= m.MaxPlayers {
			res = fail(ErrGameFull)
			return false, nil
		}
		if m.Status != models.MatchWaiting {
			res = fail(ErrGameStarted)
			return false, nil
		}

		now := s.now()
		m.Players = append(m.Players, models.MatchPlayer{ID: userID, Connected: true})

		if len(m.Players) >= MinPlayers {
			m.Status = models.MatchActive
			m.CurrentTurnIndex = 0
			m.CurrentAction = models.ActionSet
			m.SetterID = m.Players[0].ID
			m.TurnDeadlineAt = s.turnDeadline(now)

			for _, p := range m.Players {
				notifs = append(notifs, pending{p.ID, NotifyMatchStarted, map[string]interface{}{
					"matchId": m.ID.String(),
				}})
			}
			notifs = append(notifs, pending{m.Players[0].ID, NotifyYourTurn, map[string]interface{}{
				"matchId": m.ID.String(),
				"action":  string(models.ActionSet),
			}})
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
		s.log.WithFields(logrus.Fields{"match": matchID, "actor": userID, "error": err}).Error("join game failed")
		return fail("Failed to join game")
	}
	s.dispatch(notifs)
	return res
}

// ForfeitGame ends the match in the other player's favor. For matches with
// more than two players the winner is the sole remaining active opponent;
// with several opponents still standing the forfeit is exceptional and no
// winner is recorded.
func (s *Service) ForfeitGame(ctx context.Context, eventID string, matchID, userID uuid.UUID, reason models.ForfeitReason) *Result {
	var res *Result
	var notifs []pending

	err := s.store.UpdateMatchTx(ctx, matchID, func(m *models.Match) (bool, error) {
		if events.AlreadyProcessed(m.ProcessedEventIDs, eventID) {
			res = replayed(m)
			return false, nil
		}
		if m.Terminal() {
			res = fail(ErrGameCompleted)
			return false, nil
		}
		if !m.HasPlayer(userID) {
			res = fail(ErrPlayerNotInGame)
			return false, nil
		}

		m.Status = models.MatchCompleted
		m.ForfeitReason = reason
		m.WinnerID = forfeitWinner(m, userID)
		m.TurnDeadlineAt = nil
		m.ProcessedEventIDs = events.Record(m.ProcessedEventIDs, eventID)
		m.UpdatedAt = s.now()

		notifs = forfeitNotifications(m)
		res = succeed(m)
		return true, nil
	})

	if errors.Is(err, ErrMatchNotFound) {
		return fail(ErrGameNotFound)
	}
	if err != nil {
		s.log.WithFields(logrus.Fields{"match": matchID, "actor": userID, "error": err}).Error("forfeit game failed")
		return fail("Failed to forfeit game")
	}
	s.dispatch(notifs)
	if res.Success && !res.AlreadyProcessed {
		s.recordOutcome(ctx, res.Match)
	}
	return res
}

// forfeitWinner picks the winner when loserID forfeits: the other player in
// a two-player match, the sole remaining active opponent otherwise, or Nil
// when several opponents remain.
func forfeitWinner(m *models.Match, loserID uuid.UUID) uuid.UUID {
	var candidates []uuid.UUID
	for _, p := range m.Players {
		if p.ID != loserID {
			candidates = append(candidates, p.ID)
		}
	}
	if len(candidates) == 1 {
		return candidates[0]
	}
	var active []uuid.UUID
	for _, p := range m.Players {
		if p.ID != loserID && !skate.IsEliminated(p.Letters) {
			active = append(active, p.ID)
		}
	}
	if len(active) == 1 {
		return active[0]
	}
	return uuid.Nil
}

func forfeitNotifications(m *models.Match) []pending {
	kind := NotifyMatchForfeited
	if m.Status == models.MatchCompleted && m.ForfeitReason == "" {
		kind = NotifyMatchCompleted
	}
	var notifs []pending
	for _, p := range m.Players {
		notifs = append(notifs, pending{p.ID, kind, map[string]interface{}{
			"matchId":  m.ID.String(),
			"winnerId": m.WinnerID.String(),
			"reason":   string(m.ForfeitReason),
		}})
	}
	return notifs
}

// recordOutcome bumps lifetime stats after a terminal commit. Failures are
// logged only; the match result already stands.
func (s *Service) recordOutcome(ctx context.Context, m *models.Match) {
	if m == nil || !m.Terminal() || m.WinnerID == uuid.Nil {
		return
	}
	var losers []uuid.UUID
	for _, p := range m.Players {
		if p.ID != m.WinnerID {
			losers = append(losers, p.ID)
		}
	}
	forfeit := m.ForfeitReason != ""
	if err := s.store.RecordOutcome(ctx, m.WinnerID, losers, forfeit); err != nil {
		s.log.WithFields(logrus.Fields{"match": m.ID, "winner": m.WinnerID, "error": err}).Warn("stats update failed")
	}
}

// GetMatch is a read-only point lookup for the transport layer.
func (s *Service) GetMatch(ctx context.Context, matchID uuid.UUID) *Result {
	m, err := s.store.GetMatch(ctx, matchID)
	if errors.Is(err, ErrMatchNotFound) {
		return fail(ErrGameNotFound)
	}
	if err != nil {
		s.log.WithFields(logrus.Fields{"match": matchID, "error": err}).Error("get match failed")
		return fail("Failed to get game")
	}
	return succeed(m)
}
