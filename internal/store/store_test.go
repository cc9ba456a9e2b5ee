package store_test

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/apexstats/apex-tracker/internal/cdata"
	"github.com/apexstats/apex-tracker/internal/games"
	"github.com/apexstats/apex-tracker/internal/respawn"
	"github.com/apexstats/apex-tracker/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func openTestStore(t *testing.T) *store.Queries {
	t.Helper()

	conn, err := store.Open(t.Context(), filepath.Join(t.TempDir(), "test.db"), true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return store.New(conn)
}

func testSnapshot(uid int64, timestamp int64, inMatch bool) respawn.Snapshot {
	return respawn.Snapshot{
		SnapshotID:      uuid.New(),
		UID:             uid,
		Platform:        respawn.PlatformPC,
		Timestamp:       timestamp,
		Name:            "player",
		Online:          true,
		InMatch:         inMatch,
		RankScore:       4500,
		AccountLevel:    120,
		AccountProgress: 33,
		Character:       725342087,
		Badges:          [respawn.TrackerSlots]respawn.Badge{{Code: 10, Tier: 2}, {Code: 11}, {Code: 12, Tier: 4}},
		Trackers:        [respawn.TrackerSlots]respawn.Tracker{{Code: 1, Value: 1002}, {Code: 2, Value: 2002}, {Code: 3, Value: 3002}},
	}
}

func TestSnapshots(t *testing.T) {
	queries := openTestStore(t)

	first := testSnapshot(1, 100, false)
	second := testSnapshot(1, 200, true)
	other := testSnapshot(2, 150, false)

	require.NoError(t, queries.SaveSnapshot(t.Context(), second))
	require.NoError(t, queries.SaveSnapshot(t.Context(), other))
	require.ErrorIs(t, queries.SaveSnapshot(t.Context(), first), store.ErrOutOfOrder)
	require.ErrorIs(t, queries.SaveSnapshot(t.Context(), testSnapshot(1, 200, false)), store.ErrOutOfOrder)

	latest, errLatest := queries.LatestSnapshot(t.Context(), 1)
	require.NoError(t, errLatest)
	require.Equal(t, second, latest)

	third := testSnapshot(1, 300, false)
	third.Online = false
	require.NoError(t, queries.SaveSnapshot(t.Context(), third))

	history, errHistory := queries.SnapshotsByPlayer(t.Context(), 1)
	require.NoError(t, errHistory)
	require.Equal(t, []respawn.Snapshot{second, third}, history)

	uids, errUIDs := queries.SnapshotPlayers(t.Context())
	require.NoError(t, errUIDs)
	require.Equal(t, []int64{1, 2}, uids)

	count, errCount := queries.SnapshotCount(t.Context(), 1)
	require.NoError(t, errCount)
	require.EqualValues(t, 2, count)

	_, errMissing := queries.LatestSnapshot(t.Context(), 3)
	require.ErrorIs(t, errMissing, store.ErrNoResult)
}

func TestGameEventsInsertOrIgnore(t *testing.T) {
	queries := openTestStore(t)

	before := testSnapshot(1, 100, true)
	after := testSnapshot(1, 400, false)
	require.NoError(t, queries.SaveSnapshot(t.Context(), before))
	require.NoError(t, queries.SaveSnapshot(t.Context(), after))

	event := games.GameEvent{
		EventID:    games.EventID(before.SnapshotID, after.SnapshotID),
		UID:        1,
		BeforeID:   before.SnapshotID,
		AfterID:    after.SnapshotID,
		Timestamp:  after.Timestamp,
		GameLength: 5,
		XPProgress: 3600,
		Legend:     cdata.Wraith,
		Trackers: [respawn.TrackerSlots]games.TrackerDelta{
			{Slot: 1, Code: 1, Grouping: cdata.GroupingKills, Mode: cdata.ModeBattleRoyale, Value: 3},
			{Slot: 2, Code: 2, Grouping: cdata.GroupingDamage, Mode: cdata.ModeBattleRoyale, Value: 812},
			{Slot: 3, Code: 3, Grouping: cdata.GroupingUngrouped, Mode: cdata.ModeArenas, Value: 0},
		},
		TrackersShifted: true,
	}

	inserted, err := queries.SaveGameEvent(t.Context(), event)
	require.NoError(t, err)
	require.True(t, inserted)

	changed := event
	changed.GameLength = 99
	inserted, err = queries.SaveGameEvent(t.Context(), changed)
	require.NoError(t, err)
	require.False(t, inserted)

	stored, errEvents := queries.GameEventsByPlayer(t.Context(), 1)
	require.NoError(t, errEvents)
	require.Len(t, stored, 1)
	require.Equal(t, 5, stored[0].GameLength)
	require.Equal(t, event.EventID, stored[0].EventID)
	require.Equal(t, event.Trackers, stored[0].Trackers)
	require.Equal(t, cdata.Wraith, stored[0].Legend)
	require.True(t, stored[0].TrackersShifted)

	count, errCount := queries.GameEventCount(t.Context(), 1)
	require.NoError(t, errCount)
	require.EqualValues(t, 1, count)
}

func TestIngestionTasks(t *testing.T) {
	queries := openTestStore(t)

	require.NoError(t, queries.EnsureTask(t.Context(), 1, "alpha"))
	require.NoError(t, queries.EnsureTask(t.Context(), 2, "bravo"))
	require.NoError(t, queries.EnsureTask(t.Context(), 1, "alpha2"))

	for _, counter := range []store.Counter{
		store.CounterFetched, store.CounterFetched, store.CounterInserted,
		store.CounterFetchError, store.CounterRateLimited,
	} {
		require.NoError(t, queries.Increment(t.Context(), 1, counter))
	}

	tasks, err := queries.Tasks(t.Context())
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	require.Equal(t, "alpha2", tasks[0].PlayerName)
	require.EqualValues(t, 2, tasks[0].RecordsFetched)
	require.EqualValues(t, 1, tasks[0].RecordsInserted)
	require.EqualValues(t, 1, tasks[0].FetchErrors)
	require.EqualValues(t, 1, tasks[0].RateLimits)
	require.EqualValues(t, 0, tasks[1].RecordsFetched)
}

func TestMigrateDown(t *testing.T) {
	conn, err := store.Open(t.Context(), filepath.Join(t.TempDir(), "test.db"), true)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, store.Migrate(conn, store.MigrateDn))
	require.NoError(t, store.Migrate(conn, store.MigrateUp))
}

func TestPragmasApplyToEveryConnection(t *testing.T) {
	conn, err := store.Open(t.Context(), filepath.Join(t.TempDir(), "pragmas.db"), true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	// Holding the first connection forces the pool to open a second one.
	first, errFirst := conn.Conn(t.Context())
	require.NoError(t, errFirst)
	defer func() { _ = first.Close() }()

	second, errSecond := conn.Conn(t.Context())
	require.NoError(t, errSecond)
	defer func() { _ = second.Close() }()

	for _, pooled := range []*sql.Conn{first, second} {
		var busyTimeout, foreignKeys int
		require.NoError(t, pooled.QueryRowContext(t.Context(), "PRAGMA busy_timeout").Scan(&busyTimeout))
		require.NoError(t, pooled.QueryRowContext(t.Context(), "PRAGMA foreign_keys").Scan(&foreignKeys))
		require.Equal(t, 10000, busyTimeout)
		require.Equal(t, 1, foreignKeys)
	}
}

func TestConcurrentAppends(t *testing.T) {
	queries := openTestStore(t)

	const (
		players   = 8
		snapshots = 25
	)

	var group errgroup.Group
	for uid := int64(1); uid <= players; uid++ {
		group.Go(func() error {
			if err := queries.EnsureTask(t.Context(), uid, "player"); err != nil {
				return err
			}

			for idx := range int64(snapshots) {
				if err := queries.SaveSnapshot(t.Context(), testSnapshot(uid, 100+idx, idx%2 == 0)); err != nil {
					return err
				}

				if err := queries.Increment(t.Context(), uid, store.CounterInserted); err != nil {
					return err
				}
			}

			return nil
		})
	}

	require.NoError(t, group.Wait())

	for uid := int64(1); uid <= players; uid++ {
		count, err := queries.SnapshotCount(t.Context(), uid)
		require.NoError(t, err)
		require.EqualValues(t, snapshots, count)
	}

	tasks, errTasks := queries.Tasks(t.Context())
	require.NoError(t, errTasks)
	require.Len(t, tasks, players)
	for _, task := range tasks {
		require.EqualValues(t, snapshots, task.RecordsInserted)
	}
}
