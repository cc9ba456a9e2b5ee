package games

import (
	"context"
	"errors"
	"log/slog"

	"github.com/apexstats/apex-tracker/internal/cdata"
	"github.com/apexstats/apex-tracker/internal/respawn"
)

var ErrProcess = errors.New("failed to process game events")

// Store provides read access to snapshot history and insert-or-ignore writes of events.
type Store interface {
	SnapshotPlayers(ctx context.Context) ([]int64, error)
	SnapshotsByPlayer(ctx context.Context, uid int64) ([]respawn.Snapshot, error)
	SaveGameEvent(ctx context.Context, event GameEvent) (bool, error)
}

// Stats summarises a reconstruction pass.
type Stats struct {
	Found    int
	Inserted int
	Failed   int
}

func (s *Stats) add(other Stats) {
	s.Found += other.Found
	s.Inserted += other.Inserted
	s.Failed += other.Failed
}

type Processor struct {
	store   Store
	catalog *cdata.Catalog
}

func NewProcessor(events Store, catalog *cdata.Catalog) *Processor {
	return &Processor{store: events, catalog: catalog}
}

// ProcessPlayer reconstructs every match in a players history and stores the ones not seen before.
// Units that fail are logged and counted, they never stop the pass.
func (p *Processor) ProcessPlayer(ctx context.Context, uid int64) (Stats, error) {
	snapshots, errSnapshots := p.store.SnapshotsByPlayer(ctx, uid)
	if errSnapshots != nil {
		return Stats{}, errors.Join(errSnapshots, ErrProcess)
	}

	found, errs := Reconstruct(p.catalog, snapshots)
	stats := Stats{Found: len(found), Failed: len(errs)}

	for _, err := range errs {
		slog.Error("Skipped game event", slog.Int64("uid", uid), slog.String("error", err.Error()))
	}

	for _, event := range found {
		inserted, errSave := p.store.SaveGameEvent(ctx, event)
		if errSave != nil {
			stats.Failed++
			slog.Error("Failed to save game event", slog.Int64("uid", uid),
				slog.String("event_id", event.EventID.String()), slog.String("error", errSave.Error()))

			continue
		}

		if inserted {
			stats.Inserted++
		}
	}

	slog.Debug("Processed game events", slog.Int64("uid", uid), slog.Int("found", stats.Found),
		slog.Int("inserted", stats.Inserted), slog.Int("failed", stats.Failed))

	return stats, nil
}

// ProcessAll runs ProcessPlayer for every player with stored snapshots.
func (p *Processor) ProcessAll(ctx context.Context) (Stats, error) {
	uids, errUIDs := p.store.SnapshotPlayers(ctx)
	if errUIDs != nil {
		return Stats{}, errors.Join(errUIDs, ErrProcess)
	}

	var total Stats
	for _, uid := range uids {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}

		stats, err := p.ProcessPlayer(ctx, uid)
		if err != nil {
			return total, err
		}

		total.add(stats)
	}

	return total, nil
}
