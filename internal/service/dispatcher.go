package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"p2p-desk/internal/core/domain"
	"p2p-desk/internal/core/ports"
	"p2p-desk/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultActionLockTTL bounds how long a submission claim may be held.
const DefaultActionLockTTL = 30 * time.Second

const (
	actionTransition = "transition"
	actionPickDeal   = "pick_deal"
)

// TransitionRequest asks to move an order to Target on behalf of Actor.
// From is the status the caller last saw; a mounted board takes precedence.
type TransitionRequest struct {
	Actor   domain.Actor
	OrderID string
	From    domain.OrderStatus
	Target  domain.OrderStatus
	Receipt string
	Remark  string
}

// ActionResult is the confirmed outcome of a dispatched action.
type ActionResult struct {
	Order   domain.Order `json:"order"`
	Message string       `json:"message"`
}

// Dispatcher sends lifecycle actions to the endpoint of the acting role and
// reconciles mounted boards with the confirmed result. It never retries.
type Dispatcher struct {
	gw     ports.Gateway
	claims submissions
	audit  ports.AuditService
	desk   *Desk
	log    zerolog.Logger
}

// NewDispatcher creates a dispatcher. guard and desk may be nil.
func NewDispatcher(gw ports.Gateway, guard ports.SubmissionGuard, audit ports.AuditService, desk *Desk, lockTTL time.Duration, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{gw: gw, claims: newSubmissions(guard, lockTTL, log), audit: audit, desk: desk, log: log}
}

// Transition validates req against the lifecycle locally, then dispatches
// it. Illegal requests never reach the network. On success the confirmed
// status is merged into every mounted board holding the order, and boards
// whose filter it no longer matches drop it. On rejection local state only
// changes if the backend embedded the current order in its answer; the
// backend message is returned verbatim.
func (d *Dispatcher) Transition(ctx context.Context, sess *Session, req TransitionRequest, boards ...*Board[domain.Order]) (*ActionResult, error) {
	if req.OrderID == "" {
		return nil, apperror.Validation("Order id is required.")
	}
	boards = append(boards, d.orderBoards(sess.ID())...)

	local, known := findOrder(boards, req.OrderID)
	from := req.From
	if known {
		from = local.Status
	}
	if from == "" {
		return nil, apperror.Validation("Current order status is unknown, refresh and try again.")
	}
	if err := domain.CheckTransition(req.Actor, from, req.Target); err != nil {
		return nil, err
	}
	remoteReq, err := transitionRoute(req)
	if err != nil {
		return nil, err
	}

	release, err := d.claims.claim(ctx, fmt.Sprintf("%s:%s:%s", sess.ID(), req.OrderID, req.Target))
	if err != nil {
		return nil, err
	}
	defer release()

	entry := &domain.ActionAudit{
		SessionID:  sess.ID(),
		Actor:      req.Actor,
		Action:     actionTransition,
		SubjectID:  req.OrderID,
		FromStatus: string(from),
		ToStatus:   string(req.Target),
	}

	env, err := d.gw.Do(ctx, sess, remoteReq)
	if err != nil {
		d.record(ctx, entry, domain.OutcomeFailed, err.Error())
		return nil, err
	}
	if !env.Success {
		if current, ok := embeddedOrder(env.Data); ok && current.ID == req.OrderID {
			resync(boards, current)
		}
		d.record(ctx, entry, outcomeOf(env), env.Message)
		return nil, env.Err()
	}

	confirmed := local
	if !known {
		confirmed = domain.Order{ID: req.OrderID}
	}
	if echoed, ok := embeddedOrder(env.Data); ok && echoed.ID == req.OrderID {
		confirmed = mergeOrder(confirmed, echoed)
	} else {
		confirmed.Status = req.Target
	}
	if req.Receipt != "" && confirmed.Receipt == "" {
		confirmed.Receipt = req.Receipt
	}

	for _, b := range boards {
		if _, present := b.Get(req.OrderID); present {
			b.Upsert(confirmed)
		}
	}

	d.record(ctx, entry, domain.OutcomeConfirmed, env.Message)
	d.log.Info().
		Str("actor", string(req.Actor)).
		Str("order_id", req.OrderID).
		Str("from", string(from)).
		Str("to", string(confirmed.Status)).
		Msg("transition confirmed")

	return &ActionResult{Order: confirmed, Message: env.Message}, nil
}

// PickDeal lets a buyer take an open deal. On success the deal leaves every
// mounted open-deals list and the new order is added to the buyer's order
// queues as PENDING.
func (d *Dispatcher) PickDeal(ctx context.Context, sess *Session, dealID string) (*ActionResult, error) {
	if dealID == "" {
		return nil, apperror.Validation("Deal id is required.")
	}
	dealBoards := d.dealBoards(sess.ID())
	deal, known := findDeal(dealBoards, dealID)
	if known && !deal.CanPick() {
		return nil, apperror.Validation("This deal is no longer open.")
	}

	release, err := d.claims.claim(ctx, fmt.Sprintf("%s:pick:%s", sess.ID(), dealID))
	if err != nil {
		return nil, err
	}
	defer release()

	entry := &domain.ActionAudit{
		SessionID:  sess.ID(),
		Actor:      domain.ActorBuyer,
		Action:     actionPickDeal,
		SubjectID:  dealID,
		FromStatus: string(domain.DealStatusOpen),
		ToStatus:   string(domain.OrderStatusPending),
	}

	env, err := d.gw.Do(ctx, sess, ports.RemoteRequest{
		Role:   domain.RoleUser,
		Method: http.MethodPost,
		Path:   ports.PathPickDeal,
		Body:   map[string]string{"dealId": dealID},
	})
	if err != nil {
		d.record(ctx, entry, domain.OutcomeFailed, err.Error())
		return nil, err
	}
	if !env.Success {
		if current, ok := embeddedDeal(env.Data); ok && current.ID == dealID {
			for _, b := range dealBoards {
				if _, present := b.Get(dealID); present {
					b.Upsert(current)
				}
			}
		}
		d.record(ctx, entry, outcomeOf(env), env.Message)
		return nil, env.Err()
	}

	order, ok := embeddedOrder(env.Data)
	if !ok {
		order = domain.Order{ID: dealID}
	}
	if order.DealID == "" {
		order.DealID = dealID
	}
	if order.Status == "" {
		order.Status = domain.OrderStatusPending
	}
	if known {
		if order.SellerID == "" {
			order.SellerID = deal.SellerID
		}
		if order.TokenAmount.IsZero() {
			order.TokenAmount = deal.Quantity
		}
		if order.FiatAmount.IsZero() {
			order.FiatAmount = deal.Total()
		}
	}

	for _, b := range dealBoards {
		b.Remove(dealID)
	}
	for _, ob := range d.orderBoardsFor(sess.ID(), domain.ActorBuyer) {
		ob.Upsert(order)
	}

	d.record(ctx, entry, domain.OutcomeConfirmed, env.Message)
	d.log.Info().Str("deal_id", dealID).Str("order_id", order.ID).Msg("deal picked")

	return &ActionResult{Order: order, Message: env.Message}, nil
}

// transitionRoute selects the endpoint and payload for the acting role.
func transitionRoute(req TransitionRequest) (ports.RemoteRequest, error) {
	r := ports.RemoteRequest{Role: req.Actor.Role(), Method: http.MethodPost}
	switch req.Actor {
	case domain.ActorBuyer:
		switch req.Target {
		case domain.OrderStatusPaid:
			if strings.TrimSpace(req.Receipt) == "" {
				return r, apperror.Validation("Payment receipt is required.")
			}
			r.Path = ports.PathSubmitPayment
			r.Body = map[string]string{"orderId": req.OrderID, "receipt": req.Receipt}
		case domain.OrderStatusDispute:
			r.Path = ports.PathRaiseDispute
			r.Body = map[string]string{"orderId": req.OrderID, "reason": req.Remark}
		default:
			return r, apperror.ErrActorNotPermitted(string(req.Actor), string(req.Target))
		}
	case domain.ActorSeller:
		r.Path = ports.PathManageDeal
		r.Body = map[string]string{"requestId": req.OrderID, "status": string(req.Target)}
	case domain.ActorSubAdmin:
		r.Path = ports.PathSubAdminManageOrder
		r.Body = map[string]string{"orderId": req.OrderID, "action": string(req.Target), "remark": req.Remark}
	case domain.ActorAdmin:
		r.Path = ports.PathAdminManageOrder
		r.Body = map[string]string{"id": req.OrderID, "status": string(req.Target), "remark": req.Remark}
	default:
		return r, errUnknownActor(req.Actor)
	}
	return r, nil
}

func (d *Dispatcher) record(ctx context.Context, entry *domain.ActionAudit, outcome domain.ActionOutcome, message string) {
	if d.audit == nil {
		return
	}
	entry.ID = uuid.New()
	entry.Outcome = outcome
	entry.Message = message
	entry.CreatedAt = time.Now().UTC()
	d.audit.Record(ctx, entry)
}

func (d *Dispatcher) orderBoards(sessionID string) []*Board[domain.Order] {
	if d.desk == nil {
		return nil
	}
	var out []*Board[domain.Order]
	for _, ob := range d.desk.OrderBoards(sessionID) {
		out = append(out, ob.Board)
	}
	return out
}

func (d *Dispatcher) orderBoardsFor(sessionID string, actor domain.Actor) []*Board[domain.Order] {
	if d.desk == nil {
		return nil
	}
	var out []*Board[domain.Order]
	for _, ob := range d.desk.OrderBoards(sessionID) {
		if ob.Actor == actor {
			out = append(out, ob.Board)
		}
	}
	return out
}

func (d *Dispatcher) dealBoards(sessionID string) []*Board[domain.Deal] {
	if d.desk == nil {
		return nil
	}
	return d.desk.DealBoards(sessionID)
}

func outcomeOf(env *ports.Envelope) domain.ActionOutcome {
	switch env.Failure {
	case ports.FailureUnauthenticated:
		return domain.OutcomeUnauthenticated
	case ports.FailureTransient:
		return domain.OutcomeFailed
	default:
		return domain.OutcomeRejected
	}
}

func findOrder(boards []*Board[domain.Order], id string) (domain.Order, bool) {
	for _, b := range boards {
		if o, ok := b.Get(id); ok {
			return o, true
		}
	}
	return domain.Order{}, false
}

func findDeal(boards []*Board[domain.Deal], id string) (domain.Deal, bool) {
	for _, b := range boards {
		if deal, ok := b.Get(id); ok {
			return deal, true
		}
	}
	return domain.Deal{}, false
}

// resync overwrites the local copy of an order with the backend's view.
func resync(boards []*Board[domain.Order], current domain.Order) {
	for _, b := range boards {
		if local, ok := b.Get(current.ID); ok {
			b.Upsert(mergeOrder(local, current))
		}
	}
}

// mergeOrder overlays the fields the backend sent on the local copy.
func mergeOrder(local, remote domain.Order) domain.Order {
	out := local
	out.ID = remote.ID
	out.Status = remote.Status
	if remote.DealID != "" {
		out.DealID = remote.DealID
	}
	if remote.BuyerID != "" {
		out.BuyerID = remote.BuyerID
	}
	if remote.SellerID != "" {
		out.SellerID = remote.SellerID
	}
	if !remote.TokenAmount.IsZero() {
		out.TokenAmount = remote.TokenAmount
	}
	if !remote.FiatAmount.IsZero() {
		out.FiatAmount = remote.FiatAmount
	}
	if remote.Receipt != "" {
		out.Receipt = remote.Receipt
	}
	if remote.ExpiresAt != nil {
		out.ExpiresAt = remote.ExpiresAt
	}
	if remote.RequestedAt != nil {
		out.RequestedAt = remote.RequestedAt
	}
	if remote.CompletedAt != nil {
		out.CompletedAt = remote.CompletedAt
	}
	return out
}

// embeddedOrder finds an order in a response payload, either as the payload
// itself or under an "order" key.
func embeddedOrder(raw json.RawMessage) (domain.Order, bool) {
	return embedded[domain.Order](raw, "order", func(o domain.Order) bool {
		_, known := domain.ParseOrderStatus(string(o.Status))
		return o.ID != "" && known
	})
}

func embeddedDeal(raw json.RawMessage) (domain.Deal, bool) {
	return embedded[domain.Deal](raw, "deal", func(d domain.Deal) bool {
		return d.ID != "" && d.Status != ""
	})
}

func embedded[T any](raw json.RawMessage, key string, valid func(T) bool) (T, bool) {
	var zero T
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return zero, false
	}
	var direct T
	if json.Unmarshal(raw, &direct) == nil && valid(direct) {
		return direct, true
	}
	var wrapper map[string]json.RawMessage
	if json.Unmarshal(raw, &wrapper) != nil {
		return zero, false
	}
	inner, ok := wrapper[key]
	if !ok {
		return zero, false
	}
	var nested T
	if json.Unmarshal(inner, &nested) == nil && valid(nested) {
		return nested, true
	}
	return zero, false
}
