package service

import (
	"context"
	"sync"
	"time"

	"p2p-desk/internal/core/ports"
	"p2p-desk/pkg/apperror"

	"github.com/rs/zerolog"
)

// submissions claims a key for each write so the same session cannot send
// the same write twice while the first is in flight. Without a shared guard
// claims are held in process.
type submissions struct {
	guard ports.SubmissionGuard
	ttl   time.Duration
	log   zerolog.Logger
}

func newSubmissions(guard ports.SubmissionGuard, ttl time.Duration, log zerolog.Logger) submissions {
	if guard == nil {
		guard = newLocalGuard()
	}
	if ttl <= 0 {
		ttl = DefaultActionLockTTL
	}
	return submissions{guard: guard, ttl: ttl, log: log}
}

// claim takes key and returns its release func. A held key fails with
// ACT_001.
func (s submissions) claim(ctx context.Context, key string) (func(), error) {
	ok, err := s.guard.Acquire(ctx, key, s.ttl)
	if err != nil {
		return nil, apperror.ErrStorage(err)
	}
	if !ok {
		return nil, apperror.ErrActionInFlight()
	}
	return func() {
		if err := s.guard.Release(context.WithoutCancel(ctx), key); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("failed to release submission claim")
		}
	}, nil
}

// localGuard is an in-process ports.SubmissionGuard.
type localGuard struct {
	mu   sync.Mutex
	held map[string]time.Time
}

func newLocalGuard() *localGuard {
	return &localGuard{held: make(map[string]time.Time)}
}

func (g *localGuard) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now()
	if exp, ok := g.held[key]; ok && now.Before(exp) {
		return false, nil
	}
	g.held[key] = now.Add(ttl)
	return true, nil
}

func (g *localGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	delete(g.held, key)
	g.mu.Unlock()
	return nil
}
