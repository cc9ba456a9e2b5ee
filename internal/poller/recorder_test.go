package poller_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/apexstats/apex-tracker/internal/events"
	"github.com/apexstats/apex-tracker/internal/poller"
	"github.com/apexstats/apex-tracker/internal/store"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	conn, err := store.Open(t.Context(), filepath.Join(t.TempDir(), "test.db"), true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	queries := store.New(conn)
	router := events.NewRouter()
	recorder := poller.NewRecorder(queries, router)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	go recorder.Start(ctx)

	for _, eventType := range []events.EventType{
		events.Fetched, events.Saved, events.Fetched, events.RateLimited, events.FetchError, events.Online,
	} {
		router.Send(events.Event{Type: eventType, UID: 7, Name: "seven"})
	}

	require.Eventually(t, func() bool {
		tasks, errTasks := queries.Tasks(t.Context())
		if errTasks != nil || len(tasks) != 1 {
			return false
		}

		task := tasks[0]

		return task.RecordsFetched == 2 && task.RecordsInserted == 1 && task.FetchErrors == 1 && task.RateLimits == 1
	}, 2*time.Second, 10*time.Millisecond)
}
