// internal/events/events_test.go
package events

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRecordAndLookup(t *testing.T) {
	var processed []string
	assert.False(t, AlreadyProcessed(processed, "e1"))

	processed = Record(processed, "e1")
	assert.True(t, AlreadyProcessed(processed, "e1"))
	assert.False(t, AlreadyProcessed(processed, "e2"))
}

func TestRecordTruncatesOldestFirst(t *testing.T) {
	var processed []string
	for i := 0; i < MaxProcessedEvents+10; i++ {
		processed = Record(processed, fmt.Sprintf("e%d", i))
	}
	assert.Len(t, processed, MaxProcessedEvents)
	assert.False(t, AlreadyProcessed(processed, "e0"), "oldest entries drop first")
	assert.True(t, AlreadyProcessed(processed, fmt.Sprintf("e%d", MaxProcessedEvents+9)))
}

func TestDeadlineEventIDDeterministic(t *testing.T) {
	matchID := uuid.New()
	deadline := time.Now()

	a := DeadlineEventID(KindTurnTimeout, matchID, deadline)
	b := DeadlineEventID(KindTurnTimeout, matchID, deadline)
	assert.Equal(t, a, b, "same deadline must dedupe across sweep ticks")

	c := DeadlineEventID(KindTurnTimeout, matchID, deadline.Add(time.Second))
	assert.NotEqual(t, a, c)
}

func TestPlayerEventIDUnique(t *testing.T) {
	actor, match := uuid.New(), uuid.New()
	a := PlayerEventID(KindSubmitTrick, actor, match)
	b := PlayerEventID(KindSubmitTrick, actor, match)
	assert.NotEqual(t, a, b, "player submissions carry a nonce")
}
