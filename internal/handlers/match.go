// internal/handlers/match.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/grindline/skate-service/internal/events"
	"github.com/grindline/skate-service/internal/game"
	"github.com/grindline/skate-service/internal/models"
)

// MatchServer exposes the match operations over HTTP. Every mutating
// endpoint threads an idempotency key into the service: the client may
// supply its own eventId for safe retries, otherwise one is minted per
// request.
type MatchServer struct {
	Games *game.Service
	Log   *logrus.Logger
}

func NewMatchServer(games *game.Service, logger *logrus.Logger) *MatchServer {
	return &MatchServer{Games: games, Log: logger}
}

type matchRequest struct {
	EventID    string    `json:"eventId,omitempty"`
	GameID     uuid.UUID `json:"gameId,omitempty"`
	SpotID     uuid.UUID `json:"spotId,omitempty"`
	MaxPlayers int       `json:"maxPlayers,omitempty"`
	TrickName  string    `json:"trickName,omitempty"`
}

func (s *MatchServer) decode(w http.ResponseWriter, r *http.Request) (matchRequest, uuid.UUID, bool) {
	userID, err := authedUser(r)
	if err != nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return matchRequest{}, uuid.Nil, false
	}

	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return matchRequest{}, uuid.Nil, false
	}
	return req, userID, true
}

func (s *MatchServer) eventID(req matchRequest, kind string, userID, matchID uuid.UUID) string {
	if req.EventID != "" {
		return req.EventID
	}
	return events.PlayerEventID(kind, userID, matchID)
}

// writeResult maps the result contract onto HTTP statuses: validation
// failures are 409s except the not-found lookup, which is a 404.
func writeResult(w http.ResponseWriter, res *game.Result) {
	status := http.StatusOK
	if !res.Success {
		status = http.StatusConflict
		if res.Error == game.ErrGameNotFound {
			status = http.StatusNotFound
		}
	}
	writeJSON(w, status, res)
}

func (s *MatchServer) CreateGameHandler(w http.ResponseWriter, r *http.Request) {
	req, userID, ok := s.decode(w, r)
	if !ok {
		return
	}
	eventID := s.eventID(req, events.KindCreateGame, userID, req.SpotID)
	writeResult(w, s.Games.CreateGame(r.Context(), eventID, req.SpotID, userID, req.MaxPlayers))
}

func (s *MatchServer) JoinGameHandler(w http.ResponseWriter, r *http.Request) {
	req, userID, ok := s.decode(w, r)
	if !ok {
		return
	}
	eventID := s.eventID(req, events.KindJoinGame, userID, req.GameID)
	writeResult(w, s.Games.JoinGame(r.Context(), eventID, req.GameID, userID))
}

func (s *MatchServer) SubmitTrickHandler(w http.ResponseWriter, r *http.Request) {
	req, userID, ok := s.decode(w, r)
	if !ok {
		return
	}
	eventID := s.eventID(req, events.KindSubmitTrick, userID, req.GameID)
	writeResult(w, s.Games.SubmitTrick(r.Context(), eventID, req.GameID, userID, req.TrickName))
}

func (s *MatchServer) PassTrickHandler(w http.ResponseWriter, r *http.Request) {
	req, userID, ok := s.decode(w, r)
	if !ok {
		return
	}
	eventID := s.eventID(req, events.KindPassTrick, userID, req.GameID)
	writeResult(w, s.Games.PassTrick(r.Context(), eventID, req.GameID, userID))
}

func (s *MatchServer) ForfeitGameHandler(w http.ResponseWriter, r *http.Request) {
	req, userID, ok := s.decode(w, r)
	if !ok {
		return
	}
	eventID := s.eventID(req, events.KindForfeit, userID, req.GameID)
	writeResult(w, s.Games.ForfeitGame(r.Context(), eventID, req.GameID, userID, models.ForfeitVoluntary))
}

// GetMatchHandler serves GET /game/state/{game_id}.
func (s *MatchServer) GetMatchHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := authedUser(r); err != nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	idStr := strings.TrimPrefix(r.URL.Path, "/game/state/")
	if idx := strings.Index(idStr, "/"); idx != -1 {
		idStr = idStr[:idx]
	}
	matchID, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "invalid game_id format", http.StatusBadRequest)
		return
	}

	writeResult(w, s.Games.GetMatch(r.Context(), matchID))
}
