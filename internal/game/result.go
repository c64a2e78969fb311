// internal/game/result.go
package game

import "github.com/grindline/skate-service/internal/models"

// Result is the outcome contract for every match operation. Validation
// failures come back as Success=false with one of the fixed error strings;
// idempotent replays come back as Success=true with AlreadyProcessed set
// and the last-known match state. Operations never panic past this boundary.
type Result struct {
	Success          bool          `json:"success"`
	Match            *models.Match `json:"match,omitempty"`
	Error            string        `json:"error,omitempty"`
	AlreadyProcessed bool          `json:"alreadyProcessed,omitempty"`
	LetterGained     string        `json:"letterGained,omitempty"`
	IsEliminated     bool          `json:"isEliminated,omitempty"`
}

func fail(msg string) *Result {
	return &Result{Success: false, Error: msg}
}

func succeed(m *models.Match) *Result {
	return &Result{Success: true, Match: m}
}

func replayed(m *models.Match) *Result {
	return &Result{Success: true, Match: m, AlreadyProcessed: true}
}
