package poller

import (
	"time"

	"github.com/apexstats/apex-tracker/internal/stryder"
	"golang.org/x/exp/constraints"
)

const (
	DefaultOnlineDelay   = 15 * time.Second
	DefaultOfflineDelay  = 60 * time.Second
	DefaultSlowdownStep  = 20 * time.Second
	DefaultSlowdownDecay = 500 * time.Millisecond
)

// Pacing configures the poll cadence and the rate limit backoff.
type Pacing struct {
	OnlineDelay   time.Duration
	OfflineDelay  time.Duration
	SlowdownStep  time.Duration
	SlowdownDecay time.Duration
}

func DefaultPacing() Pacing {
	return Pacing{
		OnlineDelay:   DefaultOnlineDelay,
		OfflineDelay:  DefaultOfflineDelay,
		SlowdownStep:  DefaultSlowdownStep,
		SlowdownDecay: DefaultSlowdownDecay,
	}
}

func clampMin[T constraints.Integer | constraints.Float](value T, minimum T) T {
	if value < minimum {
		return minimum
	}

	return value
}

// Pacer tracks the cadence state of a single player. It is owned by one worker and is not safe
// for concurrent use.
type Pacer struct {
	pacing   Pacing
	online   bool
	slowdown time.Duration
}

func NewPacer(pacing Pacing) *Pacer {
	return &Pacer{pacing: pacing}
}

// Observe applies a fetch outcome to the slowdown offset. Rate limiting grows it by one step.
// Completed requests, found or not, decay it toward zero. Timeouts leave it untouched.
func (p *Pacer) Observe(outcome stryder.Outcome) {
	switch outcome {
	case stryder.OutcomeRateLimited:
		p.slowdown += p.pacing.SlowdownStep
	case stryder.OutcomeOK, stryder.OutcomeNotFound:
		p.slowdown = clampMin(p.slowdown-p.pacing.SlowdownDecay, 0)
	case stryder.OutcomeTimeout:
	}
}

func (p *Pacer) SetOnline(online bool) {
	p.online = online
}

func (p *Pacer) Online() bool {
	return p.online
}

func (p *Pacer) Slowdown() time.Duration {
	return p.slowdown
}

// Next returns the delay until the following cycle.
func (p *Pacer) Next() time.Duration {
	if p.online {
		return p.pacing.OnlineDelay + p.slowdown
	}

	return p.pacing.OfflineDelay + p.slowdown
}
