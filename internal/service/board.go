package service

import (
	"sync"
	"time"

	"p2p-desk/internal/core/domain"
)

// Snapshot is what a board currently shows.
type Snapshot[T any] struct {
	Page      domain.Page[T] `json:"page"`
	Seq       uint64         `json:"seq"`
	Version   uint64         `json:"version"`
	UpdatedAt time.Time      `json:"updatedAt"`
	LastError string         `json:"lastError,omitempty"`
	Closed    bool           `json:"-"`
}

// Board holds the visible state of one polled listing.
//
// Every fetch takes a sequence number from Begin before it starts. Apply
// only accepts a result whose number is newer than everything applied so
// far, so a slow stale response never overwrites a fresher one. Local
// reconciliation raises a fence that discards fetches begun before it.
// After Close nothing is applied.
type Board[T any] struct {
	key   func(T) string
	match func(T) bool

	mu      sync.Mutex
	page    domain.Page[T]
	issued  uint64
	applied uint64
	fence   uint64
	version uint64
	updated time.Time
	lastErr string
	closed  bool
	subs    map[chan struct{}]struct{}
}

// NewBoard creates a board. key identifies items; match, if non-nil, is the
// board's filter and items that stop matching are dropped on Upsert.
func NewBoard[T any](key func(T) string, match func(T) bool) *Board[T] {
	return &Board[T]{
		key:   key,
		match: match,
		page:  domain.NewPage[T](nil, 0, 1, 0),
		subs:  make(map[chan struct{}]struct{}),
	}
}

// Begin issues the sequence number for a fetch about to start.
func (b *Board[T]) Begin() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.issued++
	return b.issued
}

// Apply installs the result of fetch seq. It returns false if the result is
// stale or the board is closed.
func (b *Board[T]) Apply(seq uint64, page domain.Page[T]) bool {
	b.mu.Lock()
	if b.closed || seq <= b.applied || seq <= b.fence {
		b.mu.Unlock()
		return false
	}
	if page.Items == nil {
		page.Items = []T{}
	}
	b.page = page
	b.applied = seq
	b.lastErr = ""
	b.touchLocked()
	b.mu.Unlock()
	b.notify()
	return true
}

// Fail records the error of fetch seq for display. Stale errors are ignored
// and the current items stay visible.
func (b *Board[T]) Fail(seq uint64, err error) bool {
	b.mu.Lock()
	if b.closed || seq <= b.applied || seq <= b.fence || err == nil {
		b.mu.Unlock()
		return false
	}
	b.lastErr = err.Error()
	b.touchLocked()
	b.mu.Unlock()
	b.notify()
	return true
}

// Upsert merges a confirmed item. An item that no longer matches the
// board's filter is removed instead. New items are put first and the page
// is kept within its limit.
func (b *Board[T]) Upsert(item T) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	id := b.key(item)
	idx := b.indexLocked(id)
	keep := b.match == nil || b.match(item)

	switch {
	case idx >= 0 && keep:
		b.page.Items[idx] = item
	case idx >= 0:
		b.removeAtLocked(idx)
	case keep:
		b.page.Items = append([]T{item}, b.page.Items...)
		if b.page.Limit > 0 && len(b.page.Items) > b.page.Limit {
			b.page.Items = b.page.Items[:b.page.Limit]
		}
		b.setCountLocked(b.page.Count + 1)
	default:
		b.mu.Unlock()
		return false
	}
	b.fenceLocked()
	b.mu.Unlock()
	b.notify()
	return true
}

// Remove drops the item with the given key.
func (b *Board[T]) Remove(id string) bool {
	b.mu.Lock()
	idx := b.indexLocked(id)
	if b.closed || idx < 0 {
		b.mu.Unlock()
		return false
	}
	b.removeAtLocked(idx)
	b.fenceLocked()
	b.mu.Unlock()
	b.notify()
	return true
}

// Get returns the item with the given key.
func (b *Board[T]) Get(id string) (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if idx := b.indexLocked(id); idx >= 0 {
		return b.page.Items[idx], true
	}
	var zero T
	return zero, false
}

// Snapshot returns a copy of the visible state.
func (b *Board[T]) Snapshot() Snapshot[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	page := b.page
	page.Items = make([]T, len(b.page.Items))
	copy(page.Items, b.page.Items)
	return Snapshot[T]{
		Page:      page,
		Seq:       b.applied,
		Version:   b.version,
		UpdatedAt: b.updated,
		LastError: b.lastErr,
		Closed:    b.closed,
	}
}

// Subscribe returns a channel that receives a signal after every change.
// Signals coalesce; read Snapshot to see the latest state. The channel is
// closed when the board closes or cancel is called.
func (b *Board[T]) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if _, ok := b.subs[ch]; ok {
				delete(b.subs, ch)
				close(ch)
			}
			b.mu.Unlock()
		})
	}
	return ch, cancel
}

// Close stops the board from accepting any further change.
func (b *Board[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
		delete(b.subs, ch)
	}
}

// Closed reports whether Close was called.
func (b *Board[T]) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Matches reports whether item belongs on this board.
func (b *Board[T]) Matches(item T) bool {
	return b.match == nil || b.match(item)
}

func (b *Board[T]) indexLocked(id string) int {
	for i, item := range b.page.Items {
		if b.key(item) == id {
			return i
		}
	}
	return -1
}

func (b *Board[T]) removeAtLocked(idx int) {
	items := make([]T, 0, len(b.page.Items)-1)
	items = append(items, b.page.Items[:idx]...)
	items = append(items, b.page.Items[idx+1:]...)
	b.page.Items = items
	b.setCountLocked(b.page.Count - 1)
}

func (b *Board[T]) setCountLocked(count int) {
	if count < 0 {
		count = 0
	}
	b.page.Count = count
	b.page.TotalPages = domain.TotalPages(count, b.page.Limit)
}

// fenceLocked discards every fetch begun before a local reconciliation.
func (b *Board[T]) fenceLocked() {
	b.fence = b.issued
	b.touchLocked()
}

func (b *Board[T]) touchLocked() {
	b.version++
	b.updated = time.Now()
}

func (b *Board[T]) notify() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
