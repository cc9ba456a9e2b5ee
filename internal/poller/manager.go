// Package poller runs one supervised polling loop per tracked player.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/apexstats/apex-tracker/internal/events"
	"github.com/apexstats/apex-tracker/internal/stryder"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultLivenessInterval = 2 * time.Minute
	DefaultMaxRestarts      = 3
	DefaultMaxConcurrent    = 4
)

var (
	ErrWorkerDied  = errors.New("player worker died")
	ErrWorkerPanic = errors.New("player worker panicked")
)

type Options struct {
	Pacing           Pacing
	FetchTimeout     time.Duration
	MaxConcurrent    int64
	LivenessInterval time.Duration
	MaxRestarts      int
}

func DefaultOptions() Options {
	return Options{
		Pacing:           DefaultPacing(),
		FetchTimeout:     DefaultFetchTimeout,
		MaxConcurrent:    DefaultMaxConcurrent,
		LivenessInterval: DefaultLivenessInterval,
		MaxRestarts:      DefaultMaxRestarts,
	}
}

type supervised struct {
	worker   *Worker
	cancel   context.CancelFunc
	done     chan struct{}
	err      error
	restarts int
}

// Manager owns the player workers. A worker that exits without being stopped is restarted, and
// only once it has exhausted its restarts does the whole manager fail.
type Manager struct {
	fetcher stryder.Fetcher
	store   Store
	router  *events.Router
	opts    Options
	sem     *semaphore.Weighted

	mu      *sync.Mutex
	ctx     context.Context //nolint:containedctx
	pending []Player
	queued  bool
	workers map[int64]*supervised
}

func NewManager(fetcher stryder.Fetcher, snapshots Store, router *events.Router, opts Options) *Manager {
	defaults := DefaultOptions()
	if opts.LivenessInterval <= 0 {
		opts.LivenessInterval = defaults.LivenessInterval
	}

	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = defaults.MaxConcurrent
	}

	if opts.MaxRestarts < 0 {
		opts.MaxRestarts = 0
	}

	return &Manager{
		fetcher: fetcher,
		store:   snapshots,
		router:  router,
		opts:    opts,
		sem:     semaphore.NewWeighted(opts.MaxConcurrent),
		mu:      &sync.Mutex{},
		workers: map[int64]*supervised{},
	}
}

// Run starts a worker for every player and supervises them until ctx is cancelled, returning nil,
// or until a worker dies more often than allowed, returning ErrWorkerDied. A player list passed to
// Sync before Run is newer than players and replaces it.
func (m *Manager) Run(ctx context.Context, players []Player) error {
	m.mu.Lock()
	m.ctx = ctx
	if m.queued {
		players = m.pending
		m.pending, m.queued = nil, false
	}
	m.mu.Unlock()

	if err := m.Sync(players); err != nil {
		return err
	}

	slog.Info("Poller started", slog.Int("players", len(players)),
		slog.Duration("liveness_interval", m.opts.LivenessInterval))

	ticker := time.NewTicker(m.opts.LivenessInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.stopAll()

			return nil
		case <-ticker.C:
			if err := m.checkLiveness(); err != nil {
				m.stopAll()

				return err
			}
		}
	}
}

// Sync starts workers for new players and stops workers for players no longer listed. Before Run
// the list is held and applied once Run starts.
func (m *Manager) Sync(players []Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx == nil {
		m.pending, m.queued = slices.Clone(players), true

		return nil
	}

	wanted := make(map[int64]Player, len(players))
	for _, player := range players {
		wanted[player.UID] = player
	}

	for uid, sup := range m.workers {
		if _, found := wanted[uid]; found {
			continue
		}

		slog.Info("Stopping player worker", sup.worker.player.logAttrs())
		sup.cancel()
		<-sup.done
		delete(m.workers, uid)
	}

	for uid, player := range wanted {
		if _, found := m.workers[uid]; found {
			continue
		}

		worker := NewWorker(player, m.fetcher, m.store, m.router, NewPacer(m.opts.Pacing), m.sem, m.opts.FetchTimeout)
		m.workers[uid] = m.start(worker)
	}

	return nil
}

// Players returns the uids of all running workers.
func (m *Manager) Players() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	uids := make([]int64, 0, len(m.workers))
	for uid := range m.workers {
		uids = append(uids, uid)
	}

	slices.Sort(uids)

	return uids
}

func (m *Manager) start(worker *Worker) *supervised {
	workerCtx, cancel := context.WithCancel(m.ctx)
	sup := &supervised{worker: worker, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sup.done)
		defer func() {
			if recovered := recover(); recovered != nil {
				sup.err = fmt.Errorf("%w: %v", ErrWorkerPanic, recovered)
				slog.Error("Player worker panicked", worker.player.logAttrs(), slog.String("error", sup.err.Error()))
			}
		}()

		sup.err = worker.Run(workerCtx)
	}()

	return sup
}

func (m *Manager) checkLiveness() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx == nil || m.ctx.Err() != nil {
		return nil
	}

	for uid, sup := range m.workers {
		select {
		case <-sup.done:
		default:
			continue
		}

		player := sup.worker.player
		if sup.restarts >= m.opts.MaxRestarts {
			slog.Error("Player worker exhausted restarts", player.logAttrs(), slog.Int("restarts", sup.restarts))

			return fmt.Errorf("%w: uid %d: %w", ErrWorkerDied, uid, sup.err)
		}

		slog.Warn("Restarting dead player worker", player.logAttrs(), slog.Int("restarts", sup.restarts+1))

		// The pacer carries over so a restart does not reset the backoff.
		worker := NewWorker(player, m.fetcher, m.store, m.router, sup.worker.pacer, m.sem, m.opts.FetchTimeout)
		restarted := m.start(worker)
		restarted.restarts = sup.restarts + 1
		m.workers[uid] = restarted
	}

	return nil
}

func (m *Manager) stopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for uid, sup := range m.workers {
		sup.cancel()
		<-sup.done
		delete(m.workers, uid)
	}

	m.ctx = nil
}
