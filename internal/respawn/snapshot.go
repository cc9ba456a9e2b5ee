// Package respawn holds the player live state snapshot polled from the stryder endpoint and the
// change detection used to decide which snapshots are worth persisting.
package respawn

import (
	"strings"

	"github.com/google/uuid"
)

// TrackerSlots is the fixed number of banner tracker slots on a player banner.
const TrackerSlots = 3

type Platform string

const (
	PlatformPC     Platform = "PC"
	PlatformPS4    Platform = "PS4"
	PlatformXbox   Platform = "X1"
	PlatformSwitch Platform = "SWITCH"
)

func ParsePlatform(value string) (Platform, bool) {
	switch Platform(strings.ToUpper(strings.TrimSpace(value))) {
	case PlatformPC:
		return PlatformPC, true
	case PlatformPS4:
		return PlatformPS4, true
	case PlatformXbox:
		return PlatformXbox, true
	case PlatformSwitch:
		return PlatformSwitch, true
	default:
		return "", false
	}
}

// Tracker is one banner tracker slot. Value is the raw encoded value as sent upstream.
type Tracker struct {
	Code  int
	Value int
}

// Decoded returns the displayed tracker value.
func (t Tracker) Decoded() int {
	return DecodeTracker(t.Value)
}

// DecodeTracker converts an encoded banner tracker value using (raw-2)/100 with floor division,
// so that negative and zero inputs round down like the upstream encoding expects.
func DecodeTracker(raw int) int {
	numerator := raw - 2
	quotient := numerator / 100
	if numerator%100 != 0 && numerator < 0 {
		quotient--
	}

	return quotient
}

// Badge is one of the three banner badge slots.
type Badge struct {
	Code int
	Tier int
}

// Snapshot is a single sample of a players live state. Snapshots are immutable once stored.
type Snapshot struct {
	// SnapshotID is unique per fetch and is never part of change comparison.
	SnapshotID uuid.UUID
	UID        int64
	Platform   Platform
	// Timestamp is the capture time in unix seconds.
	Timestamp int64
	Name      string

	Online       bool
	Joinable     bool
	PartyFull    bool
	PartyInMatch bool
	InMatch      bool

	RankScore  int
	ArenaScore int

	AccountLevel    int
	AccountProgress int

	Character     int
	CharacterSkin int
	Frame         int
	Stance        int
	IntroQuip     int
	Badges        [TrackerSlots]Badge
	Trackers      [TrackerSlots]Tracker

	BanReason  int
	BanSeconds int
}
