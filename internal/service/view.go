package service

import (
	"context"
	"sync"
	"time"

	"p2p-desk/internal/core/domain"
)

// PageFetcher loads the current page of a listing.
type PageFetcher[T any] func(ctx context.Context) (domain.Page[T], error)

// View ties a board to the fetch that fills it and the poll that keeps it
// fresh. A view is mounted at most once; after Unmount it is dead.
type View[T any] struct {
	name   string
	board  *Board[T]
	fetch  PageFetcher[T]
	poller *Poller

	mu     sync.Mutex
	handle *PollHandle
	dead   bool
}

// NewView creates an unmounted view.
func NewView[T any](name string, board *Board[T], fetch PageFetcher[T], poller *Poller) *View[T] {
	return &View[T]{name: name, board: board, fetch: fetch, poller: poller}
}

// Name returns the view name.
func (v *View[T]) Name() string { return v.name }

// Board returns the board the view renders.
func (v *View[T]) Board() *Board[T] { return v.board }

// Refresh fetches once and applies the result if it is still the newest.
func (v *View[T]) Refresh(ctx context.Context) error {
	seq := v.board.Begin()
	page, err := v.fetch(ctx)
	if err != nil {
		if ctx.Err() == nil {
			v.board.Fail(seq, err)
		}
		return err
	}
	v.board.Apply(seq, page)
	return nil
}

// Mount starts polling. It is a no-op on a view that is already mounted or
// has been unmounted.
func (v *View[T]) Mount(ctx context.Context, interval time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.handle != nil || v.dead {
		return
	}
	v.handle = v.poller.Start(ctx, v.name, v.Refresh, interval)
}

// Unmount stops polling and closes the board so no in-flight response is
// applied afterwards. Unmount is idempotent.
func (v *View[T]) Unmount() {
	v.mu.Lock()
	h := v.handle
	v.dead = true
	v.mu.Unlock()

	h.Stop()
	v.board.Close()
}

// Mounted reports whether the view is currently polling.
func (v *View[T]) Mounted() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.handle != nil && !v.dead
}
