package poller

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/apexstats/apex-tracker/internal/events"
	"github.com/apexstats/apex-tracker/internal/respawn"
	"github.com/apexstats/apex-tracker/internal/store"
	"github.com/apexstats/apex-tracker/internal/stryder"
	"golang.org/x/sync/semaphore"
)

const DefaultFetchTimeout = 15 * time.Second

// Store is the snapshot persistence used by the workers.
type Store interface {
	LatestSnapshot(ctx context.Context, uid int64) (respawn.Snapshot, error)
	SaveSnapshot(ctx context.Context, snapshot respawn.Snapshot) error
}

// Player identifies a tracked account.
type Player struct {
	UID      int64
	Name     string
	Platform respawn.Platform
}

func (p Player) logAttrs() slog.Attr {
	return slog.Group("player", slog.Int64("uid", p.UID), slog.String("name", p.Name),
		slog.String("platform", string(p.Platform)))
}

// Worker polls a single player. Fetch, change detection and persistence run strictly in sequence
// and only one fetch is ever outstanding.
type Worker struct {
	player   Player
	fetcher  stryder.Fetcher
	store    Store
	router   *events.Router
	pacer    *Pacer
	sem      *semaphore.Weighted
	timeout  time.Duration
	previous *respawn.Snapshot
}

func NewWorker(player Player, fetcher stryder.Fetcher, snapshots Store, router *events.Router,
	pacer *Pacer, sem *semaphore.Weighted, timeout time.Duration,
) *Worker {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}

	return &Worker{
		player:  player,
		fetcher: fetcher,
		store:   snapshots,
		router:  router,
		pacer:   pacer,
		sem:     sem,
		timeout: timeout,
	}
}

func (w *Worker) Player() Player {
	return w.player
}

func (w *Worker) Pacer() *Pacer {
	return w.pacer
}

// Seed loads the latest persisted snapshot so that a restarted worker does not store a duplicate.
func (w *Worker) Seed(ctx context.Context) {
	latest, errLatest := w.store.LatestSnapshot(ctx, w.player.UID)
	if errLatest != nil {
		if !errors.Is(errLatest, store.ErrNoResult) {
			slog.Error("Failed to load latest snapshot", w.player.logAttrs(),
				slog.String("error", errLatest.Error()))
		}

		return
	}

	w.previous = &latest
	w.pacer.SetOnline(latest.Online)
}

// Run polls until ctx is cancelled. Cancellation is only observed between cycles.
func (w *Worker) Run(ctx context.Context) error {
	w.Seed(ctx)

	for {
		w.Cycle(ctx)

		delay := w.pacer.Next()
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()

			return nil
		case <-timer.C:
		}
	}
}

func (w *Worker) fetch(ctx context.Context) stryder.Result {
	if w.sem != nil {
		if err := w.sem.Acquire(ctx, 1); err != nil {
			return stryder.Timeout(err)
		}
		defer w.sem.Release(1)
	}

	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
	defer cancel()

	return w.fetcher.Fetch(fetchCtx, w.player.UID, w.player.Platform)
}

// Cycle performs one fetch and handles its outcome.
func (w *Worker) Cycle(ctx context.Context) stryder.Outcome {
	result := w.fetch(ctx)
	if result.Outcome == stryder.OutcomeTimeout && ctx.Err() != nil {
		return result.Outcome
	}

	w.pacer.Observe(result.Outcome)

	switch result.Outcome {
	case stryder.OutcomeOK:
		w.onSnapshot(ctx, result.Snapshot)
	case stryder.OutcomeRateLimited:
		slog.Warn("Rate limited, slowing down", w.player.logAttrs(),
			slog.Duration("slowdown", w.pacer.Slowdown()))
		w.send(events.RateLimited, events.RateLimitedEvent{Slowdown: w.pacer.Slowdown()})
		w.sendError(result)
	case stryder.OutcomeNotFound:
		slog.Warn("Player not found", w.player.logAttrs(), errAttr(result.Err))
		w.pacer.SetOnline(false)
		w.sendError(result)
	case stryder.OutcomeTimeout:
		slog.Warn("Fetch failed, retrying next cycle", w.player.logAttrs(), errAttr(result.Err))
		w.sendError(result)
	}

	return result.Outcome
}

func (w *Worker) onSnapshot(ctx context.Context, snapshot respawn.Snapshot) {
	w.send(events.Fetched, nil)
	w.pacer.SetOnline(snapshot.Online)

	changes := respawn.Diff(w.previous, snapshot)
	if changes.Empty() {
		slog.Debug("No changes", w.player.logAttrs())

		return
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
	defer cancel()

	if errSave := w.store.SaveSnapshot(saveCtx, snapshot); errSave != nil {
		if errors.Is(errSave, store.ErrOutOfOrder) {
			slog.Warn("Discarded stale snapshot", w.player.logAttrs(), slog.Int64("timestamp", snapshot.Timestamp))
		} else {
			slog.Error("Failed to save snapshot", w.player.logAttrs(), slog.String("error", errSave.Error()))
		}

		return
	}

	w.previous = &snapshot

	if changes.First {
		slog.Info("Stored first snapshot", w.player.logAttrs())
	} else {
		slog.Info("Stored snapshot", w.player.logAttrs(), slog.String("changed", strings.Join(changes.Fields, ",")))
	}

	w.send(events.Saved, events.SavedEvent{Snapshot: snapshot, Changed: changes.Fields})

	if changes.First {
		return
	}

	if changes.OnlineChanged() {
		if snapshot.Online {
			slog.Info("Player going online", w.player.logAttrs())
			w.send(events.Online, nil)
		} else {
			slog.Info("Player logging off", w.player.logAttrs())
			w.send(events.Offline, nil)
		}
	}

	if changes.MatchChanged() {
		if snapshot.InMatch {
			w.send(events.MatchStarted, nil)
		} else {
			w.send(events.MatchEnded, nil)
		}
	}
}

func (w *Worker) send(eventType events.EventType, data any) {
	if w.router == nil {
		return
	}

	w.router.Send(events.Event{Type: eventType, UID: w.player.UID, Name: w.player.Name, Data: data})
}

func (w *Worker) sendError(result stryder.Result) {
	w.send(events.FetchError, events.FetchErrorEvent{Outcome: result.Outcome.String(), Err: result.Err})
}

func errAttr(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}

	return slog.String("error", err.Error())
}
