// internal/handlers/battle.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/grindline/skate-service/internal/battle"
	"github.com/grindline/skate-service/internal/events"
	"github.com/grindline/skate-service/internal/models"
)

// BattleServer exposes battle voting over HTTP.
type BattleServer struct {
	Battles *battle.Service
	Log     *logrus.Logger
}

func NewBattleServer(battles *battle.Service, logger *logrus.Logger) *BattleServer {
	return &BattleServer{Battles: battles, Log: logger}
}

type voteRequest struct {
	EventID    string          `json:"eventId,omitempty"`
	BattleID   uuid.UUID       `json:"battleId"`
	OpponentID uuid.UUID       `json:"opponentId,omitempty"`
	Vote       models.VoteKind `json:"vote,omitempty"`
}

func writeVoteResult(w http.ResponseWriter, res *battle.Result) {
	status := http.StatusOK
	if !res.Success {
		status = http.StatusConflict
		if res.Error == battle.ErrBattleMissing {
			status = http.StatusNotFound
		}
	}
	writeJSON(w, status, res)
}

// StartVotingHandler opens voting on a battle; the caller is the creator.
func (s *BattleServer) StartVotingHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := authedUser(r)
	if err != nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if req.OpponentID == uuid.Nil {
		http.Error(w, "opponentId required", http.StatusBadRequest)
		return
	}

	eventID := req.EventID
	if eventID == "" {
		eventID = events.PlayerEventID(events.KindCastVote, userID, req.BattleID)
	}
	writeVoteResult(w, s.Battles.InitializeVoting(r.Context(), eventID, req.BattleID, userID, req.OpponentID))
}

// CastVoteHandler records one participant's judgment.
func (s *BattleServer) CastVoteHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := authedUser(r)
	if err != nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	switch req.Vote {
	case models.VoteClean, models.VoteSketchy, models.VoteMissed:
	default:
		http.Error(w, "invalid vote", http.StatusBadRequest)
		return
	}

	eventID := req.EventID
	if eventID == "" {
		eventID = events.PlayerEventID(events.KindCastVote, userID, req.BattleID)
	}
	writeVoteResult(w, s.Battles.CastVote(r.Context(), eventID, req.BattleID, userID, req.Vote))
}

// GetVoteStateHandler serves GET /battle/votes/{battle_id}.
func (s *BattleServer) GetVoteStateHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := authedUser(r); err != nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	idStr := strings.TrimPrefix(r.URL.Path, "/battle/votes/")
	if idx := strings.Index(idStr, "/"); idx != -1 {
		idStr = idStr[:idx]
	}
	battleID, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "invalid battle_id format", http.StatusBadRequest)
		return
	}

	writeVoteResult(w, s.Battles.GetVoteState(r.Context(), battleID))
}
