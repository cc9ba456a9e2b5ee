package games

import (
	"context"
	"log/slog"
	"time"

	"github.com/apexstats/apex-tracker/internal/events"
)

const DefaultReconstructInterval = 15 * time.Minute

// Scheduler serialises reconstruction runs. It does a full pass on a fixed interval and a single
// player pass whenever a persisted snapshot ends a match.
type Scheduler struct {
	processor *Processor
	interval  time.Duration
	incoming  chan events.Event
}

func NewScheduler(processor *Processor, router *events.Router, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultReconstructInterval
	}

	scheduler := &Scheduler{
		processor: processor,
		interval:  interval,
		incoming:  make(chan events.Event, 64),
	}

	if router != nil {
		router.ListenFor(events.MatchEnded, scheduler.incoming)
	}

	return scheduler
}

// Start runs until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		case event := <-s.incoming:
			stats, err := s.processor.ProcessPlayer(ctx, event.UID)
			if err != nil {
				slog.Error("Failed to reconstruct player", slog.Int64("uid", event.UID),
					slog.String("error", err.Error()))

				continue
			}

			if stats.Inserted > 0 {
				slog.Info("Recorded game", slog.Int64("uid", event.UID), slog.String("name", event.Name),
					slog.Int("inserted", stats.Inserted))
			}
		}
	}
}

func (s *Scheduler) runAll(ctx context.Context) {
	stats, err := s.processor.ProcessAll(ctx)
	if err != nil {
		slog.Error("Failed to reconstruct game events", slog.String("error", err.Error()))

		return
	}

	slog.Info("Reconstructed game events", slog.Int("found", stats.Found),
		slog.Int("inserted", stats.Inserted), slog.Int("failed", stats.Failed))
}
