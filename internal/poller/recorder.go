package poller

import (
	"context"
	"log/slog"

	"github.com/apexstats/apex-tracker/internal/events"
	"github.com/apexstats/apex-tracker/internal/store"
)

// CounterStore persists the per player ingestion counters.
type CounterStore interface {
	EnsureTask(ctx context.Context, uid int64, name string) error
	Increment(ctx context.Context, uid int64, counter store.Counter) error
}

var counterEvents = map[events.EventType]store.Counter{ //nolint:gochecknoglobals
	events.Fetched:     store.CounterFetched,
	events.Saved:       store.CounterInserted,
	events.FetchError:  store.CounterFetchError,
	events.RateLimited: store.CounterRateLimited,
}

// Recorder turns activity events into ingestion counter updates.
type Recorder struct {
	store    CounterStore
	incoming chan events.Event
	known    map[int64]bool
}

func NewRecorder(counters CounterStore, router *events.Router) *Recorder {
	recorder := &Recorder{
		store:    counters,
		incoming: make(chan events.Event, 256),
		known:    map[int64]bool{},
	}

	for eventType := range counterEvents {
		router.ListenFor(eventType, recorder.incoming)
	}

	return recorder
}

// Start processes events until ctx is cancelled.
func (r *Recorder) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-r.incoming:
			r.record(ctx, event)
		}
	}
}

func (r *Recorder) record(ctx context.Context, event events.Event) {
	counter, found := counterEvents[event.Type]
	if !found {
		return
	}

	if !r.known[event.UID] {
		if err := r.store.EnsureTask(ctx, event.UID, event.Name); err != nil {
			slog.Error("Failed to create ingestion task", slog.Int64("uid", event.UID),
				slog.String("error", err.Error()))

			return
		}

		r.known[event.UID] = true
	}

	if err := r.store.Increment(ctx, event.UID, counter); err != nil {
		slog.Error("Failed to update ingestion counter", slog.Int64("uid", event.UID),
			slog.String("type", event.Type.String()), slog.String("error", err.Error()))
	}
}
