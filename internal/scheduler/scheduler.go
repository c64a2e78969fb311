// internal/scheduler/scheduler.go runs the periodic timeout sweeps: turn
// deadlines, disconnect grace windows, stalled matches, and vote deadlines.
package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grindline/skate-service/internal/config"
)

// GameSweeper is the slice of the game service the scheduler drives.
type GameSweeper interface {
	ProcessTimeouts(ctx context.Context) int
	ForfeitExpiredGames(ctx context.Context) int
	ForfeitStalledGames(ctx context.Context) int
}

// VoteSweeper resolves expired battle votes.
type VoteSweeper interface {
	ProcessVoteTimeouts(ctx context.Context) int
}

// Scheduler drives the sweep loop. Every sweep re-validates its candidates
// inside a store transaction, so overlapping schedulers are safe; only one
// commit wins per deadline.
type Scheduler struct {
	games    GameSweeper
	battles  VoteSweeper
	log      *logrus.Logger
	interval time.Duration

	ctx      context.Context
	cancelFn context.CancelFunc
}

func New(games GameSweeper, battles VoteSweeper, logger *logrus.Logger, timeouts config.Timeouts) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		games:    games,
		battles:  battles,
		log:      logger,
		interval: timeouts.SweepInterval,
		ctx:      ctx,
		cancelFn: cancel,
	}
}

// Run blocks, sweeping every interval until Stop is called.
func (s *Scheduler) Run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.WithField("interval", s.interval).Info("scheduler started")

	for {
		select {
		case <-s.ctx.Done():
			s.log.Info("scheduler shutting down")
			return

		case <-ticker.C:
			s.Sweep(s.ctx)
		}
	}
}

// Sweep runs every sweep once and logs an aggregate count when anything
// actually resolved.
func (s *Scheduler) Sweep(ctx context.Context) {
	turns := s.games.ProcessTimeouts(ctx)
	reconnects := s.games.ForfeitExpiredGames(ctx)
	stalled := s.games.ForfeitStalledGames(ctx)
	votes := s.battles.ProcessVoteTimeouts(ctx)

	if total := turns + reconnects + stalled + votes; total > 0 {
		s.log.WithFields(logrus.Fields{
			"turn_timeouts":       turns,
			"disconnect_forfeits": reconnects,
			"stalled_forfeits":    stalled,
			"vote_timeouts":       votes,
		}).Info("sweep resolved matches")
	}
}

// Stop cancels the sweep loop.
func (s *Scheduler) Stop() {
	s.cancelFn()
}
