// internal/game/store_test.go
package game

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/grindline/skate-service/internal/models"
)

// memStore is an in-memory Store. Matches handed to closures are deep
// copies, and the canonical record is replaced only on a (true, nil) return,
// mirroring the re-read-then-write transaction the pgx store performs.
type memStore struct {
	mu      sync.Mutex
	matches map[uuid.UUID]*models.Match
	stats   map[uuid.UUID]*models.UserStats
}

func newMemStore() *memStore {
	return &memStore{
		matches: make(map[uuid.UUID]*models.Match),
		stats:   make(map[uuid.UUID]*models.UserStats),
	}
}

func cloneMatch(m *models.Match) *models.Match {
	data, _ := json.Marshal(m)
	var out models.Match
	_ = json.Unmarshal(data, &out)
	return &out
}

func (ms *memStore) InsertMatch(_ context.Context, m *models.Match) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.matches[m.ID] = cloneMatch(m)
	return nil
}

func (ms *memStore) GetMatch(_ context.Context, id uuid.UUID) (*models.Match, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	m, ok := ms.matches[id]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return cloneMatch(m), nil
}

func (ms *memStore) UpdateMatchTx(_ context.Context, id uuid.UUID, fn func(m *models.Match) (bool, error)) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	stored, ok := ms.matches[id]
	if !ok {
		return ErrMatchNotFound
	}
	fresh := cloneMatch(stored)
	write, err := fn(fresh)
	if err != nil {
		return err
	}
	if write {
		ms.matches[id] = fresh
	}
	return nil
}

func (ms *memStore) ListPastTurnDeadline(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	var ids []uuid.UUID
	for id, m := range ms.matches {
		if m.Status == models.MatchActive && m.TurnDeadlineAt != nil && !m.TurnDeadlineAt.After(now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (ms *memStore) ListPausedBefore(_ context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	var ids []uuid.UUID
	for id, m := range ms.matches {
		if m.Status == models.MatchPaused && m.PausedAt != nil && !m.PausedAt.After(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (ms *memStore) ListStalledBefore(_ context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	var ids []uuid.UUID
	for id, m := range ms.matches {
		if !m.Terminal() && !m.UpdatedAt.After(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (ms *memStore) RecordOutcome(_ context.Context, winnerID uuid.UUID, loserIDs []uuid.UUID, forfeit bool) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	bump := func(id uuid.UUID) *models.UserStats {
		st, ok := ms.stats[id]
		if !ok {
			st = &models.UserStats{UserID: id}
			ms.stats[id] = st
		}
		return st
	}
	bump(winnerID).Wins++
	for _, id := range loserIDs {
		st := bump(id)
		st.Losses++
		if forfeit {
			st.Forfeits++
		}
	}
	return nil
}

// mockNotifier collects dispatched notifications instead of sending them.
type mockNotifier struct {
	mu    sync.Mutex
	sent  []models.Notification
	byKey map[string]int
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{byKey: make(map[string]int)}
}

func (mn *mockNotifier) Notify(userID uuid.UUID, eventKind string, payload map[string]interface{}) {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	mn.sent = append(mn.sent, models.Notification{UserID: userID, EventKind: eventKind, Payload: payload})
	mn.byKey[userID.String()+"/"+eventKind]++
}

func (mn *mockNotifier) count(userID uuid.UUID, eventKind string) int {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	return mn.byKey[userID.String()+"/"+eventKind]
}

func (mn *mockNotifier) kinds() []string {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	var out []string
	for _, n := range mn.sent {
		out = append(out, n.EventKind)
	}
	return out
}
