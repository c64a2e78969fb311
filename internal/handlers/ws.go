// internal/handlers/ws.go
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/grindline/skate-service/internal/cache"
	"github.com/grindline/skate-service/internal/events"
	"github.com/grindline/skate-service/internal/middleware"
)

// MatchWSHandler upgrades the connection for a specific match and streams
// that user's notifications from the Redis pub/sub channel. Presence is
// derived from the socket: accepting it applies a reconnect event, and the
// socket closing applies a disconnect event.
func MatchWSHandler(logger *logrus.Logger, s *MatchServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/game/ws/"), "/")
		if len(pathParts) < 1 || pathParts[0] == "" {
			http.Error(w, "Missing game_id in path (/game/ws/{game_id})", http.StatusBadRequest)
			return
		}
		matchID, err := uuid.Parse(pathParts[0])
		if err != nil {
			http.Error(w, "Invalid game_id format", http.StatusBadRequest)
			return
		}

		userID, err := authedUser(r)
		if err != nil {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}

		lookup := s.Games.GetMatch(r.Context(), matchID)
		if !lookup.Success {
			http.Error(w, lookup.Error, http.StatusNotFound)
			return
		}
		if !lookup.Match.HasPlayer(userID) {
			http.Error(w, "You are not a player in this game", http.StatusForbidden)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"skate"},
			OriginPatterns: []string{"*"}, // Adjust for production security.
		})
		if err != nil {
			logger.Warnf("WebSocket accept error for game %s: %v", matchID, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "Internal server error during handler exit.")

		if c.Subprotocol() != "skate" {
			c.Close(websocket.StatusPolicyViolation, "Client must use the 'skate' subprotocol.")
			return
		}
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s.Games.HandleReconnect(ctx, events.PlayerEventID(events.KindReconnect, userID, matchID), matchID, userID)
		defer func() {
			dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer dcancel()
			s.Games.HandleDisconnect(dctx, events.PlayerEventID(events.KindDisconnect, userID, matchID), matchID, userID)
		}()

		sub := cache.Rdb.Subscribe(ctx, cache.UserChannel(userID))
		defer sub.Close()

		// Writer: relay the user's notification channel to the socket.
		go func() {
			ch := sub.Channel()
			for msg := range ch {
				wctx, wcancel := context.WithTimeout(ctx, 5*time.Second)
				err := c.Write(wctx, websocket.MessageText, []byte(msg.Payload))
				wcancel()
				if err != nil {
					cancel()
					return
				}
			}
		}()

		// Reader: the client sends nothing we act on; the loop exists to
		// observe the close.
		var closeErr error
		for {
			if _, _, closeErr = c.Read(ctx); closeErr != nil {
				break
			}
		}
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, closeErr)
		c.Close(websocket.StatusNormalClosure, "")
	}
}
