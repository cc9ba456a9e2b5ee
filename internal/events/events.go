// Package events fans out poller activity to any interested listeners.
package events

import (
	"time"

	"github.com/apexstats/apex-tracker/internal/respawn"
)

type EventType int

const (
	Any EventType = iota - 1
	// Fetched is sent for every successful fetch, persisted or not.
	Fetched
	Saved
	FetchError
	RateLimited
	Online
	Offline
	MatchStarted
	MatchEnded
)

func (t EventType) String() string {
	switch t {
	case Any:
		return "any"
	case Fetched:
		return "fetched"
	case Saved:
		return "saved"
	case FetchError:
		return "fetch_error"
	case RateLimited:
		return "rate_limited"
	case Online:
		return "online"
	case Offline:
		return "offline"
	case MatchStarted:
		return "match_started"
	case MatchEnded:
		return "match_ended"
	default:
		return "unknown"
	}
}

type Event struct {
	Type      EventType
	Timestamp time.Time
	UID       int64
	Name      string
	Data      any
}

// SavedEvent carries the persisted snapshot and the fields that differed from the previous one.
type SavedEvent struct {
	Snapshot respawn.Snapshot
	Changed  []string
}

// FetchErrorEvent describes a failed fetch. Outcome is the stryder outcome name.
type FetchErrorEvent struct {
	Outcome string
	Err     error
}

// RateLimitedEvent reports the slowdown offset in effect after a rate limit response.
type RateLimitedEvent struct {
	Slowdown time.Duration
}
