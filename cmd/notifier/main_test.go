// cmd/notifier/main_test.go
package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grindline/skate-service/internal/models"
)

type capturingPersist struct {
	mu      sync.Mutex
	batches [][]models.Notification
}

func (cp *capturingPersist) persist(batch []models.Notification) error {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.batches = append(cp.batches, batch)
	return nil
}

func (cp *capturingPersist) snapshot() [][]models.Notification {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	out := make([][]models.Notification, len(cp.batches))
	copy(out, cp.batches)
	return out
}

func newTestNotifier(batchSize int, cp *capturingPersist) *NotifierService {
	ctx, cancel := context.WithCancel(context.Background())
	return &NotifierService{
		batchSize:  batchSize,
		flushDelay: time.Hour,
		batch:      make([]models.Notification, 0, batchSize),
		persist:    cp.persist,
		ctx:        ctx,
		cancelFn:   cancel,
	}
}

func note(kind string) models.Notification {
	return models.Notification{UserID: uuid.New(), EventKind: kind, Timestamp: time.Now().UnixMilli()}
}

// Filling the batch must trigger a flush and return; the reader goroutine
// calling appendToBatch can never be allowed to block on its own flush.
func TestAppendToBatchFlushesAtThreshold(t *testing.T) {
	cp := &capturingPersist{}
	ns := newTestNotifier(2, cp)

	done := make(chan struct{})
	go func() {
		ns.appendToBatch(note("your_turn"))
		ns.appendToBatch(note("letter_gained"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("appendToBatch blocked once the batch filled")
	}

	batches := cp.snapshot()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 2)
}

func TestFlushBatchToDBDrainsPartialBatch(t *testing.T) {
	cp := &capturingPersist{}
	ns := newTestNotifier(10, cp)

	ns.appendToBatch(note("match_started"))
	ns.flushBatchToDB()

	batches := cp.snapshot()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 1)

	// Nothing left: another flush is a no-op.
	ns.flushBatchToDB()
	assert.Len(t, cp.snapshot(), 1)
}
