package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"p2p-desk/internal/core/domain"
	"p2p-desk/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func orderKey(o domain.Order) string { return o.ID }
func dealKey(d domain.Deal) string   { return d.ID }

// OrderBoard is a mounted order queue and the actor it was mounted for.
type OrderBoard struct {
	Actor  domain.Actor
	Filter OrderFilter
	Board  *Board[domain.Order]
}

type mountedView struct {
	role    domain.Role
	order   *OrderBoard
	deals   *Board[domain.Deal]
	unmount func()
}

// Desk keeps the views each session currently has on screen. Boards of
// mounted views are what the dispatcher reconciles after an action.
type Desk struct {
	queues   *QueueService
	poller   *Poller
	interval time.Duration
	log      zerolog.Logger

	mu       sync.Mutex
	sessions map[string]map[string]*mountedView
}

// NewDesk creates a desk that polls mounted views every interval.
func NewDesk(queues *QueueService, poller *Poller, interval time.Duration, log zerolog.Logger) *Desk {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Desk{
		queues:   queues,
		poller:   poller,
		interval: interval,
		log:      log,
		sessions: make(map[string]map[string]*mountedView),
	}
}

// MountOrders loads the order queue of actor and keeps it polled until the
// returned release func is called or ctx ends. An expired session fails the
// mount; other fetch errors leave the view mounted and shown on the board.
func (d *Desk) MountOrders(ctx context.Context, sess *Session, actor domain.Actor, filter OrderFilter, q PageQuery) (*View[domain.Order], func(), error) {
	if _, ok := orderQueuePaths[actor]; !ok {
		return nil, nil, errUnknownActor(actor)
	}
	q = q.normalize(d.queues.limit)
	board := NewBoard(orderKey, filter.Match)
	name := fmt.Sprintf("orders:%s:%s:%d", actor, filter, q.Page)
	view := NewView(name, board, func(ctx context.Context) (domain.Page[domain.Order], error) {
		return d.queues.Orders(ctx, sess, actor, filter, q)
	}, d.poller)

	release, err := d.mount(ctx, sess.ID(), view.Refresh, view.Mount, view.Unmount, &mountedView{
		role:  actor.Role(),
		order: &OrderBoard{Actor: actor, Filter: filter, Board: board},
	})
	if err != nil {
		return nil, nil, err
	}
	return view, release, nil
}

// MountOpenDeals loads the open deals list and keeps it polled.
func (d *Desk) MountOpenDeals(ctx context.Context, sess *Session, q PageQuery) (*View[domain.Deal], func(), error) {
	q = q.normalize(d.queues.limit)
	board := NewBoard(dealKey, func(deal domain.Deal) bool { return deal.Status == domain.DealStatusOpen })
	view := NewView(fmt.Sprintf("deals:open:%d", q.Page), board, func(ctx context.Context) (domain.Page[domain.Deal], error) {
		return d.queues.OpenDeals(ctx, sess, q)
	}, d.poller)

	release, err := d.mount(ctx, sess.ID(), view.Refresh, view.Mount, view.Unmount, &mountedView{role: domain.RoleUser, deals: board})
	if err != nil {
		return nil, nil, err
	}
	return view, release, nil
}

func (d *Desk) mount(
	ctx context.Context,
	sessionID string,
	refresh func(context.Context) error,
	start func(context.Context, time.Duration),
	stop func(),
	mv *mountedView,
) (func(), error) {
	if err := refresh(ctx); err != nil {
		switch apperror.KindOf(err) {
		case apperror.KindUnauthenticated, apperror.KindValidation, apperror.KindInternal:
			stop()
			return nil, err
		}
		d.log.Warn().Err(err).Str("session_id", sessionID).Msg("initial fetch failed, polling anyway")
	}

	id := uuid.NewString()
	mv.unmount = stop

	d.mu.Lock()
	views, ok := d.sessions[sessionID]
	if !ok {
		views = make(map[string]*mountedView)
		d.sessions[sessionID] = views
	}
	views[id] = mv
	d.mu.Unlock()

	start(ctx, d.interval)

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			if views, ok := d.sessions[sessionID]; ok {
				delete(views, id)
				if len(views) == 0 {
					delete(d.sessions, sessionID)
				}
			}
			d.mu.Unlock()
			stop()
		})
	}, nil
}

// OrderBoards returns the order queues a session has mounted.
func (d *Desk) OrderBoards(sessionID string) []OrderBoard {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []OrderBoard
	for _, mv := range d.sessions[sessionID] {
		if mv.order != nil {
			out = append(out, *mv.order)
		}
	}
	return out
}

// DealBoards returns the open-deal lists a session has mounted.
func (d *Desk) DealBoards(sessionID string) []*Board[domain.Deal] {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*Board[domain.Deal]
	for _, mv := range d.sessions[sessionID] {
		if mv.deals != nil {
			out = append(out, mv.deals)
		}
	}
	return out
}

// Mounted returns how many views a session has mounted.
func (d *Desk) Mounted(sessionID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions[sessionID])
}

// Release unmounts every view of a session.
func (d *Desk) Release(sessionID string) {
	d.mu.Lock()
	views := d.sessions[sessionID]
	delete(d.sessions, sessionID)
	d.mu.Unlock()

	for _, mv := range views {
		mv.unmount()
	}
}

// ReleaseRole unmounts the views of a session that read with role's token.
func (d *Desk) ReleaseRole(sessionID string, role domain.Role) {
	var stale []*mountedView
	d.mu.Lock()
	views := d.sessions[sessionID]
	for id, mv := range views {
		if mv.role == role {
			stale = append(stale, mv)
			delete(views, id)
		}
	}
	if len(views) == 0 {
		delete(d.sessions, sessionID)
	}
	d.mu.Unlock()

	for _, mv := range stale {
		mv.unmount()
	}
}

// Close unmounts every view of every session.
func (d *Desk) Close() {
	d.mu.Lock()
	sessions := d.sessions
	d.sessions = make(map[string]map[string]*mountedView)
	d.mu.Unlock()

	for _, views := range sessions {
		for _, mv := range views {
			mv.unmount()
		}
	}
}
