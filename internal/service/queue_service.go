package service

import (
	"context"
	"net/http"
	"net/url"

	"p2p-desk/internal/core/domain"
	"p2p-desk/internal/core/ports"
)

// QueueService reads the deal and order listings each role works from.
type QueueService struct {
	gw    ports.Gateway
	limit int
}

// NewQueueService creates a queue service. limit is the default page size.
func NewQueueService(gw ports.Gateway, limit int) *QueueService {
	if limit < 1 {
		limit = DefaultPageLimit
	}
	return &QueueService{gw: gw, limit: limit}
}

// orderQueuePaths maps each actor to the listing of orders it acts on.
var orderQueuePaths = map[domain.Actor]string{
	domain.ActorBuyer:    ports.PathMyDeals,
	domain.ActorSeller:   ports.PathGetRequests,
	domain.ActorSubAdmin: ports.PathSubAdminRequestOrders,
	domain.ActorAdmin:    ports.PathAdminRequestOrders,
}

// OpenDeals lists the deals a buyer may pick.
func (s *QueueService) OpenDeals(ctx context.Context, creds ports.Credentials, q PageQuery) (domain.Page[domain.Deal], error) {
	q = q.normalize(s.limit)
	page, err := fetchPage[domain.Deal](ctx, s.gw, creds, ports.RemoteRequest{
		Role:   domain.RoleUser,
		Method: http.MethodGet,
		Path:   ports.PathAllDeals,
	}, q)
	if err != nil {
		return page, err
	}
	open := page.Items[:0]
	for _, d := range page.Items {
		if d.Status == domain.DealStatusOpen {
			open = append(open, d)
		}
	}
	page.Items = open
	return page, nil
}

// Orders lists the order queue of actor, optionally restricted to a status.
func (s *QueueService) Orders(ctx context.Context, creds ports.Credentials, actor domain.Actor, filter OrderFilter, q PageQuery) (domain.Page[domain.Order], error) {
	q = q.normalize(s.limit)
	path, ok := orderQueuePaths[actor]
	if !ok {
		return domain.Page[domain.Order]{}, errUnknownActor(actor)
	}

	query := url.Values{}
	if !filter.All() {
		query.Set("status", string(filter.Status))
	}
	page, err := fetchPage[domain.Order](ctx, s.gw, creds, ports.RemoteRequest{
		Role:   actor.Role(),
		Method: http.MethodGet,
		Path:   path,
		Query:  query,
	}, q)
	if err != nil {
		return page, err
	}

	// Some listings ignore the status parameter.
	kept := page.Items[:0]
	for _, o := range page.Items {
		if filter.Match(o) {
			kept = append(kept, o)
		}
	}
	page.Items = kept
	return page, nil
}
