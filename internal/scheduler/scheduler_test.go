// internal/scheduler/scheduler_test.go
package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/grindline/skate-service/internal/config"
)

type stubGameSweeper struct {
	turns, reconnects, stalled int
}

func (s *stubGameSweeper) ProcessTimeouts(context.Context) int {
	s.turns++
	return 1
}

func (s *stubGameSweeper) ForfeitExpiredGames(context.Context) int {
	s.reconnects++
	return 0
}

func (s *stubGameSweeper) ForfeitStalledGames(context.Context) int {
	s.stalled++
	return 0
}

type stubVoteSweeper struct {
	votes int
}

func (s *stubVoteSweeper) ProcessVoteTimeouts(context.Context) int {
	s.votes++
	return 2
}

func TestSweepRunsEverySweeper(t *testing.T) {
	games := &stubGameSweeper{}
	votes := &stubVoteSweeper{}
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	sched := New(games, votes, logger, config.Timeouts{SweepInterval: time.Hour})
	sched.Sweep(context.Background())

	assert.Equal(t, 1, games.turns)
	assert.Equal(t, 1, games.reconnects)
	assert.Equal(t, 1, games.stalled)
	assert.Equal(t, 1, votes.votes)
}

func TestRunStopsOnCancel(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	sched := New(&stubGameSweeper{}, &stubVoteSweeper{}, logger, config.Timeouts{SweepInterval: time.Millisecond})

	done := make(chan struct{})
	go func() {
		sched.Run()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	sched.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
