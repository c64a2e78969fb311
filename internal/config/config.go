// internal/config/config.go
package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds every wall-clock rule the match and vote machinery runs on.
// All values come from the environment with sane defaults, so deployments
// can shorten them for staging without a rebuild.
type Timeouts struct {
	// Turn is how long the active player has to act before the turn-deadline
	// sweep takes their turn away (attempt phase) or forfeits them (set phase).
	Turn time.Duration

	// Reconnect is the window a disconnected player has to come back before
	// the paused match is forfeited against them.
	Reconnect time.Duration

	// Vote is how long battle participants have to cast result votes.
	Vote time.Duration

	// Stalled is the hard cap on paused matches before the letter-count
	// tie-break forfeits them regardless of who disconnected.
	Stalled time.Duration

	// SweepInterval is the scheduler cadence.
	SweepInterval time.Duration
}

// Load reads timeout settings from the environment.
//   - TURN_TIMEOUT_SEC        (default 120)
//   - RECONNECT_WINDOW_SEC    (default 300)
//   - VOTE_WINDOW_SEC         (default 86400)
//   - STALLED_TIMEOUT_SEC     (default 172800)
//   - SWEEP_INTERVAL_SEC      (default 30)
func Load() Timeouts {
	return Timeouts{
		Turn:          secs("TURN_TIMEOUT_SEC", 120),
		Reconnect:     secs("RECONNECT_WINDOW_SEC", 300),
		Vote:          secs("VOTE_WINDOW_SEC", 86400),
		Stalled:       secs("STALLED_TIMEOUT_SEC", 172800),
		SweepInterval: secs("SWEEP_INTERVAL_SEC", 30),
	}
}

func secs(key string, def int) time.Duration {
	return time.Duration(GetEnvInt(key, def)) * time.Second
}

// GetEnv reads an environment variable or returns a default value.
func GetEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// GetEnvInt parses an environment variable as integer, else a default value.
func GetEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
