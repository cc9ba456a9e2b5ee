// Package games reconstructs discrete matches from a players persisted snapshot history.
package games

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/apexstats/apex-tracker/internal/cdata"
	"github.com/apexstats/apex-tracker/internal/respawn"
	"github.com/google/uuid"
)

// XPPerLevel is the fixed amount of experience assumed for every account level.
const XPPerLevel = 18000

var (
	ErrLegendUnresolved = errors.New("legend played could not be resolved")
	ErrTrackerMismatch  = errors.New("banner tracker codes changed during match")
	ErrOutOfOrder       = errors.New("snapshots are not in ascending timestamp order")
)

// eventNamespace seeds the deterministic event ids derived from the bounding snapshot ids.
var eventNamespace = uuid.MustParse("6f1b3c2e-0d7a-4c55-9a4e-52b7d6a3e1f0") //nolint:gochecknoglobals

// TrackerDelta is the per slot change in a banner tracker over a match.
type TrackerDelta struct {
	Slot     int
	Code     int
	Grouping cdata.Grouping
	Mode     cdata.Mode
	Value    int
}

// GameEvent is a single reconstructed match bounded by the snapshot that entered the match and
// the snapshot that left it.
type GameEvent struct {
	EventID  uuid.UUID
	UID      int64
	BeforeID uuid.UUID
	AfterID  uuid.UUID
	// Timestamp is the after snapshot capture time.
	Timestamp  int64
	GameLength int
	XPProgress int
	Legend     cdata.Legend
	Trackers   [respawn.TrackerSlots]TrackerDelta
	// TrackersShifted is set when any slot showed a different tracker code after the match. Deltas
	// are still computed positionally.
	TrackersShifted bool
	CreatedOn       time.Time
}

// EventID returns the deterministic id for the match bounded by before and after.
func EventID(before uuid.UUID, after uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(eventNamespace, append(before[:], after[:]...))
}

// GameLength returns the match length in whole minutes, rounding half away from zero.
func GameLength(before respawn.Snapshot, after respawn.Snapshot) int {
	return int(math.Round(float64(after.Timestamp-before.Timestamp) / 60))
}

// XPProgress estimates the experience earned between two snapshots. A level up mid match shows up
// as a positive level delta with a negative progress delta.
func XPProgress(before respawn.Snapshot, after respawn.Snapshot) int {
	levels := (after.AccountLevel - before.AccountLevel) * XPPerLevel
	progress := (after.AccountProgress - before.AccountProgress) * XPPerLevel / 100

	return levels + progress
}

// Reconstruct scans snapshots, which must be a single players history in ascending timestamp
// order, and emits one event for every completed in match period. Units that cannot be built are
// skipped and returned as errors so that the rest of the history still makes progress.
func Reconstruct(catalog *cdata.Catalog, snapshots []respawn.Snapshot) ([]GameEvent, []error) {
	var (
		events []GameEvent
		errs   []error
		anchor *respawn.Snapshot
	)

	// last is the most recent snapshot accepted in order. Rejected snapshots never become the baseline.
	last := 0
	for idx := 1; idx < len(snapshots); idx++ {
		previous := snapshots[last]
		current := snapshots[idx]

		if current.Timestamp <= previous.Timestamp {
			errs = append(errs, fmt.Errorf("%w: uid %d at %d", ErrOutOfOrder, current.UID, current.Timestamp))

			continue
		}

		last = idx

		if previous.InMatch == current.InMatch {
			continue
		}

		if current.InMatch {
			anchor = &snapshots[idx]

			continue
		}

		if anchor == nil {
			continue
		}

		event, errEvent := NewGameEvent(catalog, *anchor, current)
		anchor = nil
		if errEvent != nil {
			errs = append(errs, errEvent)

			continue
		}

		events = append(events, event)
	}

	return events, errs
}

// NewGameEvent derives a single event from the snapshots bounding a match.
func NewGameEvent(catalog *cdata.Catalog, before respawn.Snapshot, after respawn.Snapshot) (GameEvent, error) {
	legend, errLegend := catalog.Legend(after.Character)
	if errLegend != nil {
		return GameEvent{}, errors.Join(
			fmt.Errorf("%w: uid %d snapshots %s..%s", ErrLegendUnresolved, after.UID, before.SnapshotID, after.SnapshotID),
			errLegend)
	}

	event := GameEvent{
		EventID:    EventID(before.SnapshotID, after.SnapshotID),
		UID:        after.UID,
		BeforeID:   before.SnapshotID,
		AfterID:    after.SnapshotID,
		Timestamp:  after.Timestamp,
		GameLength: max(0, GameLength(before, after)),
		XPProgress: XPProgress(before, after),
		Legend:     legend,
	}

	for slot := range respawn.TrackerSlots {
		beforeTracker := before.Trackers[slot]
		afterTracker := after.Trackers[slot]

		delta := TrackerDelta{
			Slot:     slot + 1,
			Code:     afterTracker.Code,
			Grouping: cdata.GroupingUngrouped,
			Mode:     cdata.ModeBattleRoyale,
			Value:    afterTracker.Decoded() - beforeTracker.Decoded(),
		}

		if entry, errTracker := catalog.Tracker(afterTracker.Code); errTracker == nil {
			delta.Grouping = entry.Grouping
			delta.Mode = entry.Mode
		}

		if beforeTracker.Code != afterTracker.Code {
			event.TrackersShifted = true
		}

		event.Trackers[slot] = delta
	}

	if event.TrackersShifted {
		slog.Warn(ErrTrackerMismatch.Error(), slog.Int64("uid", event.UID),
			slog.String("event_id", event.EventID.String()))
	}

	return event, nil
}
