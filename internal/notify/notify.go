// internal/notify/notify.go bridges match and battle events to Redis: a
// durable copy lands on the worker queue, and a fire-and-forget copy goes
// out over the user's pub/sub channel for live websocket sessions.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/grindline/skate-service/internal/cache"
	"github.com/grindline/skate-service/internal/models"
)

// RedisNotifier satisfies the game and battle Notifier interfaces.
type RedisNotifier struct {
	log     *logrus.Logger
	timeout time.Duration
}

func NewRedisNotifier(logger *logrus.Logger) *RedisNotifier {
	return &RedisNotifier{log: logger, timeout: 3 * time.Second}
}

// Notify queues and publishes the event. Services call this after the match
// transaction commits, so failures are logged and otherwise swallowed.
func (rn *RedisNotifier) Notify(userID uuid.UUID, eventKind string, payload map[string]interface{}) {
	n := models.Notification{
		UserID:    userID,
		EventKind: eventKind,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), rn.timeout)
	defer cancel()

	if err := cache.QueueNotification(ctx, n); err != nil {
		rn.log.WithFields(logrus.Fields{"user": userID, "kind": eventKind, "error": err}).Warn("failed to queue notification")
	}
	if err := cache.PublishToUser(ctx, n); err != nil {
		rn.log.WithFields(logrus.Fields{"user": userID, "kind": eventKind, "error": err}).Warn("failed to publish notification")
	}
}
