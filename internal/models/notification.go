// internal/models/notification.go
package models

import "github.com/google/uuid"

// Notification is one user-facing event handed to the dispatcher. Delivery
// is best-effort: the match transaction never waits on it.
type Notification struct {
	UserID    uuid.UUID              `json:"user_id"`
	EventKind string                 `json:"event_kind"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp int64                  `json:"timestamp"`
}
