package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DefaultPollInterval is used when Start is given a non-positive interval.
const DefaultPollInterval = 5 * time.Second

// FetchFunc is one poll. The context is cancelled when the poll is stopped.
type FetchFunc func(ctx context.Context) error

// Poller re-invokes fetch functions on a fixed interval.
type Poller struct {
	log zerolog.Logger
}

// NewPoller creates a new poller.
func NewPoller(log zerolog.Logger) *Poller {
	return &Poller{log: log}
}

// PollHandle controls one running poll loop.
type PollHandle struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	stopped bool
	calls   sync.WaitGroup

	inFlight atomic.Bool
	runs     atomic.Int64
	skipped  atomic.Int64
}

// Start schedules fetch every interval until the handle is stopped or ctx is
// done. The first invocation happens after one interval. A tick that fires
// while the previous fetch is still running is skipped, not queued. Fetch
// errors are logged and polling continues.
func (p *Poller) Start(ctx context.Context, name string, fetch FetchFunc, interval time.Duration) *PollHandle {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	h := &PollHandle{name: name, cancel: cancel, done: make(chan struct{})}
	log := p.log.With().Str("poll", name).Logger()

	go func() {
		defer close(h.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.tick(ctx, fetch, log)
			}
		}
	}()

	return h
}

func (h *PollHandle) tick(ctx context.Context, fetch FetchFunc, log zerolog.Logger) {
	if !h.inFlight.CompareAndSwap(false, true) {
		h.skipped.Add(1)
		log.Debug().Msg("previous fetch still running, tick skipped")
		return
	}

	h.mu.Lock()
	if h.stopped || ctx.Err() != nil {
		h.mu.Unlock()
		h.inFlight.Store(false)
		return
	}
	h.calls.Add(1)
	h.mu.Unlock()

	go func() {
		defer h.calls.Done()
		defer h.inFlight.Store(false)

		h.runs.Add(1)
		err := fetch(ctx)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled) || ctx.Err() != nil:
			log.Debug().Msg("fetch cancelled")
		default:
			log.Warn().Err(err).Msg("poll fetch failed")
		}
	}()
}

// Stop ends the loop and cancels the in-flight fetch. No fetch starts after
// Stop returns. Stop is idempotent.
func (h *PollHandle) Stop() {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
	h.cancel()
}

// Wait blocks until the loop and any in-flight fetch have returned.
func (h *PollHandle) Wait() {
	<-h.done
	h.calls.Wait()
}

// Name returns the poll name.
func (h *PollHandle) Name() string { return h.name }

// Runs returns how many fetches were started.
func (h *PollHandle) Runs() int64 { return h.runs.Load() }

// Skipped returns how many ticks were dropped because a fetch was in flight.
func (h *PollHandle) Skipped() int64 { return h.skipped.Load() }

// Stop is a convenience for h.Stop that tolerates nil handles.
func (p *Poller) Stop(h *PollHandle) {
	h.Stop()
}
