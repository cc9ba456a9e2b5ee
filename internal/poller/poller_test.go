package poller_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/apexstats/apex-tracker/internal/events"
	"github.com/apexstats/apex-tracker/internal/poller"
	"github.com/apexstats/apex-tracker/internal/respawn"
	"github.com/apexstats/apex-tracker/internal/store"
	"github.com/apexstats/apex-tracker/internal/stryder"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type scriptedFetcher struct {
	mu      sync.Mutex
	results []stryder.Result
	calls   map[int64]int
}

func newScriptedFetcher(results ...stryder.Result) *scriptedFetcher {
	return &scriptedFetcher{results: results, calls: map[int64]int{}}
}

func (f *scriptedFetcher) Fetch(_ context.Context, uid int64, _ respawn.Platform) stryder.Result {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[uid]++
	if len(f.results) == 0 {
		return stryder.Timeout(errors.New("script exhausted"))
	}

	result := f.results[0]
	f.results = f.results[1:]

	return result
}

func (f *scriptedFetcher) Calls(uid int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[uid]
}

type memoryStore struct {
	mu        sync.Mutex
	snapshots map[int64][]respawn.Snapshot
}

func newMemoryStore() *memoryStore {
	return &memoryStore{snapshots: map[int64][]respawn.Snapshot{}}
}

func (s *memoryStore) LatestSnapshot(_ context.Context, uid int64) (respawn.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.snapshots[uid]
	if len(history) == 0 {
		return respawn.Snapshot{}, store.ErrNoResult
	}

	return history[len(history)-1], nil
}

func (s *memoryStore) SaveSnapshot(_ context.Context, snapshot respawn.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.snapshots[snapshot.UID]
	if len(history) > 0 && history[len(history)-1].Timestamp >= snapshot.Timestamp {
		return store.ErrOutOfOrder
	}

	s.snapshots[snapshot.UID] = append(history, snapshot)

	return nil
}

func (s *memoryStore) Len(uid int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.snapshots[uid])
}

var testPlayer = poller.Player{UID: 1000, Name: "tester", Platform: respawn.PlatformPC}

func snapshotAt(timestamp int64, online bool, inMatch bool) respawn.Snapshot {
	return respawn.Snapshot{
		SnapshotID: uuid.New(),
		UID:        testPlayer.UID,
		Platform:   testPlayer.Platform,
		Timestamp:  timestamp,
		Online:     online,
		InMatch:    inMatch,
	}
}

func TestPacerBackoff(t *testing.T) {
	pacer := poller.NewPacer(poller.DefaultPacing())
	require.Equal(t, 60*time.Second, pacer.Next())

	pacer.Observe(stryder.OutcomeRateLimited)
	require.Equal(t, 20*time.Second, pacer.Slowdown())
	require.Equal(t, 80*time.Second, pacer.Next())

	pacer.SetOnline(true)
	require.Equal(t, 35*time.Second, pacer.Next())

	for range 4 {
		pacer.Observe(stryder.OutcomeOK)
	}
	require.Equal(t, 18*time.Second, pacer.Slowdown())

	pacer.Observe(stryder.OutcomeNotFound)
	require.Equal(t, 17500*time.Millisecond, pacer.Slowdown())
}

func TestPacerDecayNeverNegative(t *testing.T) {
	pacer := poller.NewPacer(poller.DefaultPacing())
	pacer.Observe(stryder.OutcomeRateLimited)

	for range 100 {
		pacer.Observe(stryder.OutcomeOK)
	}

	require.Equal(t, time.Duration(0), pacer.Slowdown())
	require.Equal(t, poller.DefaultOfflineDelay, pacer.Next())
}

func TestPacerTimeoutDoesNotMutate(t *testing.T) {
	pacer := poller.NewPacer(poller.DefaultPacing())
	pacer.Observe(stryder.OutcomeTimeout)
	require.Equal(t, time.Duration(0), pacer.Slowdown())

	pacer.Observe(stryder.OutcomeRateLimited)
	pacer.Observe(stryder.OutcomeTimeout)
	pacer.Observe(stryder.OutcomeTimeout)
	require.Equal(t, 20*time.Second, pacer.Slowdown())
}

func TestWorkerCycle(t *testing.T) {
	first := snapshotAt(100, true, false)
	same := first
	same.SnapshotID = uuid.New()
	same.Timestamp = 115
	inMatch := snapshotAt(130, true, true)
	ended := snapshotAt(145, true, false)

	fetcher := newScriptedFetcher(
		stryder.OK(first),
		stryder.OK(same),
		stryder.RateLimited(nil),
		stryder.OK(inMatch),
		stryder.Timeout(nil),
		stryder.OK(ended),
	)
	memory := newMemoryStore()
	router := events.NewRouter()
	activity := make(chan events.Event, 32)
	router.ListenFor(events.Any, activity)

	worker := poller.NewWorker(testPlayer, fetcher, memory, router, poller.NewPacer(poller.DefaultPacing()), nil, time.Second)
	worker.Seed(t.Context())

	require.Equal(t, stryder.OutcomeOK, worker.Cycle(t.Context()))
	require.Equal(t, 1, memory.Len(testPlayer.UID))
	require.Equal(t, 15*time.Second, worker.Pacer().Next())

	require.Equal(t, stryder.OutcomeOK, worker.Cycle(t.Context()))
	require.Equal(t, 1, memory.Len(testPlayer.UID))

	require.Equal(t, stryder.OutcomeRateLimited, worker.Cycle(t.Context()))
	require.Equal(t, 20*time.Second, worker.Pacer().Slowdown())
	require.Equal(t, 35*time.Second, worker.Pacer().Next())

	require.Equal(t, stryder.OutcomeOK, worker.Cycle(t.Context()))
	require.Equal(t, 2, memory.Len(testPlayer.UID))
	require.Equal(t, 19500*time.Millisecond, worker.Pacer().Slowdown())

	require.Equal(t, stryder.OutcomeTimeout, worker.Cycle(t.Context()))
	require.Equal(t, 19500*time.Millisecond, worker.Pacer().Slowdown())

	require.Equal(t, stryder.OutcomeOK, worker.Cycle(t.Context()))
	require.Equal(t, 3, memory.Len(testPlayer.UID))

	var seen []events.EventType
	for len(activity) > 0 {
		seen = append(seen, (<-activity).Type)
	}

	require.Equal(t, []events.EventType{
		events.Fetched, events.Saved,
		events.Fetched,
		events.RateLimited, events.FetchError,
		events.Fetched, events.Saved, events.MatchStarted,
		events.FetchError,
		events.Fetched, events.Saved, events.MatchEnded,
	}, seen)
}

func TestWorkerSeedsFromStore(t *testing.T) {
	memory := newMemoryStore()
	stored := snapshotAt(100, false, false)
	require.NoError(t, memory.SaveSnapshot(t.Context(), stored))

	again := stored
	again.SnapshotID = uuid.New()
	again.Timestamp = 200

	fetcher := newScriptedFetcher(stryder.OK(again), stryder.NotFound(nil))
	worker := poller.NewWorker(testPlayer, fetcher, memory, nil, poller.NewPacer(poller.DefaultPacing()), nil, time.Second)
	worker.Seed(t.Context())

	require.Equal(t, stryder.OutcomeOK, worker.Cycle(t.Context()))
	require.Equal(t, 1, memory.Len(testPlayer.UID))

	require.Equal(t, stryder.OutcomeNotFound, worker.Cycle(t.Context()))
	require.False(t, worker.Pacer().Online())
	require.Equal(t, poller.DefaultOfflineDelay, worker.Pacer().Next())
}

func testOptions() poller.Options {
	return poller.Options{
		Pacing: poller.Pacing{
			OnlineDelay:   time.Millisecond,
			OfflineDelay:  time.Millisecond,
			SlowdownStep:  time.Millisecond,
			SlowdownDecay: time.Millisecond,
		},
		FetchTimeout:     time.Second,
		MaxConcurrent:    2,
		LivenessInterval: 5 * time.Millisecond,
		MaxRestarts:      2,
	}
}

type panicFetcher struct {
	calls atomic.Int32
}

func (f *panicFetcher) Fetch(_ context.Context, _ int64, _ respawn.Platform) stryder.Result {
	f.calls.Add(1)
	panic("boom")
}

func TestManagerRestartsThenFails(t *testing.T) {
	fetcher := &panicFetcher{}
	manager := poller.NewManager(fetcher, newMemoryStore(), nil, testOptions())

	err := manager.Run(t.Context(), []poller.Player{testPlayer})
	require.ErrorIs(t, err, poller.ErrWorkerDied)
	require.ErrorIs(t, err, poller.ErrWorkerPanic)
	require.EqualValues(t, 3, fetcher.calls.Load())
	require.Empty(t, manager.Players())
}

func TestManagerSync(t *testing.T) {
	fetcher := newScriptedFetcher()
	manager := poller.NewManager(fetcher, newMemoryStore(), nil, testOptions())

	ctx, cancel := context.WithCancel(t.Context())
	result := make(chan error, 1)
	go func() {
		result <- manager.Run(ctx, []poller.Player{testPlayer})
	}()

	require.Eventually(t, func() bool {
		return fetcher.Calls(testPlayer.UID) > 0
	}, time.Second, time.Millisecond)

	second := poller.Player{UID: 2000, Name: "second", Platform: respawn.PlatformPS4}
	require.NoError(t, manager.Sync([]poller.Player{second}))
	require.Equal(t, []int64{second.UID}, manager.Players())

	require.Eventually(t, func() bool {
		return fetcher.Calls(second.UID) > 0
	}, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-result)
	require.Empty(t, manager.Players())
}

func TestManagerSyncBeforeRun(t *testing.T) {
	fetcher := newScriptedFetcher()
	manager := poller.NewManager(fetcher, newMemoryStore(), nil, testOptions())

	reloaded := poller.Player{UID: 3000, Name: "reloaded", Platform: respawn.PlatformX1}
	require.NoError(t, manager.Sync([]poller.Player{reloaded}))
	require.Empty(t, manager.Players())

	ctx, cancel := context.WithCancel(t.Context())
	result := make(chan error, 1)
	go func() {
		result <- manager.Run(ctx, []poller.Player{testPlayer})
	}()

	require.Eventually(t, func() bool {
		return fetcher.Calls(reloaded.UID) > 0
	}, time.Second, time.Millisecond)
	require.Equal(t, []int64{reloaded.UID}, manager.Players())
	require.Zero(t, fetcher.Calls(testPlayer.UID))

	cancel()
	require.NoError(t, <-result)
}
