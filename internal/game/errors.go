// internal/game/errors.go
package game

// Fixed, user-displayable error strings. These are the public contract of
// every operation; infrastructure failures are logged with context and
// surfaced only as the generic "Failed to <operation>" messages.
const (
	ErrGameNotFound     = "Game not found"
	ErrAlreadyInGame    = "Already in game"
	ErrGameFull         = "Game is full"
	ErrGameStarted      = "Game has already started"
	ErrGameCompleted    = "Game already completed"
	ErrNotYourTurn      = "Not your turn"
	ErrGameNotActive    = "Game is not active"
	ErrPassOutsidePhase = "Can only pass during attempt phase"
	ErrPlayerNotInGame  = "Player not in game"
)
