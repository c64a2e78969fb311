package models

import "github.com/google/uuid"

type User struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Password string    `json:"password,omitempty"`
	Username string    `json:"username"`

	IsAdmin bool `json:"is_admin"`
}

// UserStats aggregates a user's lifetime match results.
type UserStats struct {
	UserID   uuid.UUID `json:"user_id"`
	Wins     int       `json:"wins"`
	Losses   int       `json:"losses"`
	Forfeits int       `json:"forfeits"`
}
