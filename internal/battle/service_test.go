// internal/battle/service_test.go
package battle

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grindline/skate-service/internal/config"
	"github.com/grindline/skate-service/internal/events"
	"github.com/grindline/skate-service/internal/models"
)

// memVoteStore is an in-memory Store with the same copy-on-read transaction
// semantics the pgx implementation provides.
type memVoteStore struct {
	mu     sync.Mutex
	votes  map[uuid.UUID]*models.VoteState
	legacy map[uuid.UUID]*models.LegacyBattle
}

func newMemVoteStore() *memVoteStore {
	return &memVoteStore{
		votes:  make(map[uuid.UUID]*models.VoteState),
		legacy: make(map[uuid.UUID]*models.LegacyBattle),
	}
}

func cloneVoteState(v *models.VoteState) *models.VoteState {
	data, _ := json.Marshal(v)
	var out models.VoteState
	_ = json.Unmarshal(data, &out)
	return &out
}

func (ms *memVoteStore) InsertVoteState(_ context.Context, v *models.VoteState) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.votes[v.BattleID] = cloneVoteState(v)
	return nil
}

func (ms *memVoteStore) GetVoteState(_ context.Context, battleID uuid.UUID) (*models.VoteState, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	v, ok := ms.votes[battleID]
	if !ok {
		return nil, ErrVoteStateNotFound
	}
	return cloneVoteState(v), nil
}

func (ms *memVoteStore) UpdateVoteStateTx(_ context.Context, battleID uuid.UUID, fn func(v *models.VoteState) (bool, error)) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	stored, ok := ms.votes[battleID]
	if !ok {
		return ErrVoteStateNotFound
	}
	fresh := cloneVoteState(stored)
	write, err := fn(fresh)
	if err != nil {
		return err
	}
	if write {
		ms.votes[battleID] = fresh
	}
	return nil
}

func (ms *memVoteStore) ListVotingPastDeadline(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	var ids []uuid.UUID
	for id, v := range ms.votes {
		if v.Status == models.VoteVoting && !v.VoteDeadlineAt.After(now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (ms *memVoteStore) UpdateLegacyBattleTx(_ context.Context, battleID uuid.UUID, fn func(b *models.LegacyBattle) (bool, error)) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	stored, ok := ms.legacy[battleID]
	if !ok {
		return ErrBattleNotFound
	}
	cp := *stored
	write, err := fn(&cp)
	if err != nil {
		return err
	}
	if write {
		ms.legacy[battleID] = &cp
	}
	return nil
}

type mockNotifier struct {
	mu   sync.Mutex
	sent map[string]int
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{sent: make(map[string]int)}
}

func (mn *mockNotifier) Notify(userID uuid.UUID, eventKind string, _ map[string]interface{}) {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	mn.sent[userID.String()+"/"+eventKind]++
}

func (mn *mockNotifier) count(userID uuid.UUID, eventKind string) int {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	return mn.sent[userID.String()+"/"+eventKind]
}

func newTestService() (*Service, *memVoteStore, *mockNotifier) {
	store := newMemVoteStore()
	notifier := newMockNotifier()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	svc := NewService(store, notifier, logger, config.Timeouts{Vote: 24 * time.Hour})
	return svc, store, notifier
}

func eid() string {
	return events.PlayerEventID(events.KindCastVote, uuid.New(), uuid.New())
}

func TestInitializeVoting(t *testing.T) {
	svc, _, _ := newTestService()
	battleID, creator, opponent := uuid.New(), uuid.New(), uuid.New()

	res := svc.InitializeVoting(context.Background(), eid(), battleID, creator, opponent)
	require.True(t, res.Success)

	assert.Equal(t, models.VoteVoting, res.Vote.Status)
	assert.Empty(t, res.Vote.Votes)
	assert.True(t, res.Vote.VoteDeadlineAt.After(time.Now().Add(23*time.Hour)))
}

func TestCastVoteBattleNotFound(t *testing.T) {
	svc, _, _ := newTestService()
	res := svc.CastVote(context.Background(), eid(), uuid.New(), uuid.New(), models.VoteClean)
	assert.Equal(t, ErrBattleMissing, res.Error)
}

func TestCastVoteNotParticipant(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	battleID := uuid.New()
	svc.InitializeVoting(ctx, eid(), battleID, uuid.New(), uuid.New())

	res := svc.CastVote(ctx, eid(), battleID, uuid.New(), models.VoteClean)
	assert.Equal(t, ErrNotParticipant, res.Error)
}

func TestCastVoteDeadlinePassed(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()
	battleID, creator, opponent := uuid.New(), uuid.New(), uuid.New()
	svc.InitializeVoting(ctx, eid(), battleID, creator, opponent)

	require.NoError(t, store.UpdateVoteStateTx(ctx, battleID, func(v *models.VoteState) (bool, error) {
		v.VoteDeadlineAt = time.Now().Add(-time.Minute)
		return true, nil
	}))

	res := svc.CastVote(ctx, eid(), battleID, creator, models.VoteClean)
	assert.Equal(t, ErrDeadlinePassed, res.Error)
}

func TestCastVoteOverwritesPriorVote(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()
	battleID, creator, opponent := uuid.New(), uuid.New(), uuid.New()
	svc.InitializeVoting(ctx, eid(), battleID, creator, opponent)

	require.True(t, svc.CastVote(ctx, eid(), battleID, creator, models.VoteMissed).Success)
	require.True(t, svc.CastVote(ctx, eid(), battleID, creator, models.VoteClean).Success)

	v, err := store.GetVoteState(ctx, battleID)
	require.NoError(t, err)
	require.Len(t, v.Votes, 1, "one entry per participant")
	assert.Equal(t, models.VoteClean, v.Votes[0].Vote)
	assert.Equal(t, models.VoteVoting, v.Status, "one-sided voting does not resolve")
}

func TestBothVotesResolveImmediately(t *testing.T) {
	svc, _, notifier := newTestService()
	ctx := context.Background()
	battleID, creator, opponent := uuid.New(), uuid.New(), uuid.New()
	svc.InitializeVoting(ctx, eid(), battleID, creator, opponent)

	// Creator concedes clean; opponent says missed. The creator's vote
	// scores for the opponent, so the opponent wins.
	require.True(t, svc.CastVote(ctx, eid(), battleID, creator, models.VoteClean).Success)
	res := svc.CastVote(ctx, eid(), battleID, opponent, models.VoteMissed)
	require.True(t, res.Success)

	assert.Equal(t, models.VoteCompleted, res.Vote.Status)
	assert.Equal(t, opponent, res.WinnerID)
	assert.Equal(t, 1, notifier.count(creator, NotifyBattleResolved))
	assert.Equal(t, 1, notifier.count(opponent, NotifyBattleResolved))
}

func TestTiedVotesFavorCreator(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	battleID, creator, opponent := uuid.New(), uuid.New(), uuid.New()
	svc.InitializeVoting(ctx, eid(), battleID, creator, opponent)

	require.True(t, svc.CastVote(ctx, eid(), battleID, creator, models.VoteClean).Success)
	res := svc.CastVote(ctx, eid(), battleID, opponent, models.VoteClean)
	require.True(t, res.Success)

	assert.Equal(t, creator, res.WinnerID)
}

func TestCastVoteIdempotentReplay(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	battleID, creator, opponent := uuid.New(), uuid.New(), uuid.New()
	svc.InitializeVoting(ctx, eid(), battleID, creator, opponent)

	eventID := events.PlayerEventID(events.KindCastVote, creator, battleID)
	first := svc.CastVote(ctx, eventID, battleID, creator, models.VoteClean)
	require.True(t, first.Success)
	assert.False(t, first.AlreadyProcessed)

	second := svc.CastVote(ctx, eventID, battleID, creator, models.VoteClean)
	require.True(t, second.Success)
	assert.True(t, second.AlreadyProcessed)
	assert.Len(t, second.Vote.Votes, 1)
}

func TestLegacyBattlePathConverges(t *testing.T) {
	svc, store, notifier := newTestService()
	ctx := context.Background()
	creator, opponent := uuid.New(), uuid.New()
	battleID := uuid.New()
	store.legacy[battleID] = &models.LegacyBattle{
		ID:         battleID,
		CreatorID:  creator,
		OpponentID: opponent,
		Status:     "voting",
	}

	require.True(t, svc.CastVote(ctx, eid(), battleID, creator, models.VoteClean).Success)
	res := svc.CastVote(ctx, eid(), battleID, opponent, models.VoteMissed)
	require.True(t, res.Success)

	// Same scoring rule as the vote-state path.
	assert.Equal(t, opponent, res.WinnerID)
	assert.Equal(t, "completed", store.legacy[battleID].Status)
	assert.Equal(t, 1, notifier.count(creator, NotifyBattleResolved))
}

func TestLegacyBattleRejectsVoteAfterCompletion(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()
	creator, opponent := uuid.New(), uuid.New()
	battleID := uuid.New()
	store.legacy[battleID] = &models.LegacyBattle{
		ID:         battleID,
		CreatorID:  creator,
		OpponentID: opponent,
		Status:     "voting",
	}

	require.True(t, svc.CastVote(ctx, eid(), battleID, creator, models.VoteClean).Success)
	res := svc.CastVote(ctx, eid(), battleID, opponent, models.VoteMissed)
	require.True(t, res.Success)
	require.Equal(t, opponent, res.WinnerID)

	// A revote on the resolved battle must not re-score it.
	late := svc.CastVote(ctx, eid(), battleID, opponent, models.VoteClean)
	assert.False(t, late.Success)
	assert.Equal(t, ErrVotingCompleted, late.Error)
	assert.Equal(t, opponent, store.legacy[battleID].WinnerID, "winner unchanged after completion")
}

func TestLegacyBattleNotParticipant(t *testing.T) {
	svc, store, _ := newTestService()
	battleID := uuid.New()
	store.legacy[battleID] = &models.LegacyBattle{
		ID: battleID, CreatorID: uuid.New(), OpponentID: uuid.New(), Status: "voting",
	}

	res := svc.CastVote(context.Background(), eid(), battleID, uuid.New(), models.VoteClean)
	assert.Equal(t, ErrNotParticipant, res.Error)
}

func TestProcessVoteTimeouts(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	expire := func(battleID uuid.UUID) {
		require.NoError(t, store.UpdateVoteStateTx(ctx, battleID, func(v *models.VoteState) (bool, error) {
			v.VoteDeadlineAt = time.Now().Add(-time.Minute)
			return true, nil
		}))
	}

	// One-sided: the voter wins.
	oneSided, creator1, opponent1 := uuid.New(), uuid.New(), uuid.New()
	svc.InitializeVoting(ctx, eid(), oneSided, creator1, opponent1)
	require.True(t, svc.CastVote(ctx, eid(), oneSided, opponent1, models.VoteMissed).Success)
	expire(oneSided)

	// Nobody voted: the creator wins by default.
	silent, creator2, opponent2 := uuid.New(), uuid.New(), uuid.New()
	svc.InitializeVoting(ctx, eid(), silent, creator2, opponent2)
	expire(silent)

	processed := svc.ProcessVoteTimeouts(ctx)
	assert.Equal(t, 2, processed)

	v1, _ := store.GetVoteState(ctx, oneSided)
	assert.Equal(t, models.VoteCompleted, v1.Status)
	assert.Equal(t, opponent1, v1.WinnerID)

	v2, _ := store.GetVoteState(ctx, silent)
	assert.Equal(t, creator2, v2.WinnerID)

	// Sweeping again resolves nothing further.
	assert.Equal(t, 0, svc.ProcessVoteTimeouts(ctx))
}

func TestVoteTimeoutDedupesByDeadlineEventID(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()
	battleID, creator, opponent := uuid.New(), uuid.New(), uuid.New()
	svc.InitializeVoting(ctx, eid(), battleID, creator, opponent)

	deadline := time.Now().Add(-time.Minute)
	require.NoError(t, store.UpdateVoteStateTx(ctx, battleID, func(v *models.VoteState) (bool, error) {
		v.VoteDeadlineAt = deadline
		v.ProcessedEventIDs = events.Record(v.ProcessedEventIDs,
			events.DeadlineEventID(events.KindVoteTimeout, battleID, deadline))
		return true, nil
	}))

	assert.False(t, svc.resolveVoteTimeout(ctx, battleID))

	v, _ := store.GetVoteState(ctx, battleID)
	assert.Equal(t, models.VoteVoting, v.Status, "duplicate sweep commits nothing")
}
