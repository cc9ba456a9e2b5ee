package respawn

import (
	"fmt"
	"slices"
)

// Changes lists the snapshot fields that differ between two snapshots.
type Changes struct {
	Fields []string
	// First is set when there was no previous snapshot to compare with.
	First bool
}

func (c Changes) Empty() bool {
	return !c.First && len(c.Fields) == 0
}

func (c Changes) Has(field string) bool {
	return slices.Contains(c.Fields, field)
}

// OnlineChanged reports a transition of the online flag. It is tracked separately since it drives
// the polling cadence.
func (c Changes) OnlineChanged() bool {
	return c.Has("online")
}

// MatchChanged reports a transition of the in match flag.
func (c Changes) MatchChanged() bool {
	return c.Has("in_match")
}

type fieldCheck struct {
	name  string
	equal func(a, b *Snapshot) bool
}

func field[T comparable](name string, get func(s *Snapshot) T) fieldCheck {
	return fieldCheck{name: name, equal: func(a, b *Snapshot) bool { return get(a) == get(b) }}
}

// comparedFields covers every Snapshot field except SnapshotID and Timestamp.
var comparedFields = func() []fieldCheck { //nolint:gochecknoglobals
	checks := []fieldCheck{
		field("uid", func(s *Snapshot) int64 { return s.UID }),
		field("platform", func(s *Snapshot) Platform { return s.Platform }),
		field("name", func(s *Snapshot) string { return s.Name }),
		field("online", func(s *Snapshot) bool { return s.Online }),
		field("joinable", func(s *Snapshot) bool { return s.Joinable }),
		field("party_full", func(s *Snapshot) bool { return s.PartyFull }),
		field("party_in_match", func(s *Snapshot) bool { return s.PartyInMatch }),
		field("in_match", func(s *Snapshot) bool { return s.InMatch }),
		field("rank_score", func(s *Snapshot) int { return s.RankScore }),
		field("arena_score", func(s *Snapshot) int { return s.ArenaScore }),
		field("account_level", func(s *Snapshot) int { return s.AccountLevel }),
		field("account_progress", func(s *Snapshot) int { return s.AccountProgress }),
		field("character", func(s *Snapshot) int { return s.Character }),
		field("character_skin", func(s *Snapshot) int { return s.CharacterSkin }),
		field("frame", func(s *Snapshot) int { return s.Frame }),
		field("stance", func(s *Snapshot) int { return s.Stance }),
		field("intro_quip", func(s *Snapshot) int { return s.IntroQuip }),
		field("ban_reason", func(s *Snapshot) int { return s.BanReason }),
		field("ban_seconds", func(s *Snapshot) int { return s.BanSeconds }),
	}

	for slot := range TrackerSlots {
		checks = append(checks,
			field(fmt.Sprintf("badge%d", slot+1), func(s *Snapshot) Badge { return s.Badges[slot] }),
			field(fmt.Sprintf("tracker%d", slot+1), func(s *Snapshot) Tracker { return s.Trackers[slot] }),
		)
	}

	return checks
}()

// Diff compares current against previous, ignoring the capture timestamp and snapshot id.
// A nil previous snapshot is always reported as a change.
func Diff(previous *Snapshot, current Snapshot) Changes {
	if previous == nil {
		return Changes{First: true}
	}

	var changes Changes
	for _, check := range comparedFields {
		if !check.equal(previous, &current) {
			changes.Fields = append(changes.Fields, check.name)
		}
	}

	return changes
}

// ShouldPersist reports whether current differs meaningfully from the last persisted snapshot.
func ShouldPersist(previous *Snapshot, current Snapshot) bool {
	return !Diff(previous, current).Empty()
}
