package domain

import (
	"p2p-desk/pkg/apperror"
)

type transition struct {
	from OrderStatus
	to   OrderStatus
}

// transitions is the order lifecycle graph. Each legal one-hop move lists
// the actors allowed to request it.
var transitions = map[transition][]Actor{
	{OrderStatusPending, OrderStatusAccepted}: {ActorSeller},
	{OrderStatusPending, OrderStatusRejected}: {ActorSeller},

	{OrderStatusAccepted, OrderStatusPaid}: {ActorBuyer},

	{OrderStatusPaid, OrderStatusSellerConfirmed}: {ActorSeller},
	{OrderStatusPaid, OrderStatusRejected}:        {ActorSeller},

	{OrderStatusSellerConfirmed, OrderStatusCompleted}: {ActorSubAdmin, ActorAdmin},
	{OrderStatusSellerConfirmed, OrderStatusDispute}:   {ActorBuyer, ActorSeller, ActorSubAdmin, ActorAdmin},

	{OrderStatusDispute, OrderStatusCompleted}: {ActorAdmin},
	{OrderStatusDispute, OrderStatusRejected}:  {ActorAdmin},
}

// lifecycleOrder fixes the iteration order of AllowedTargets.
var lifecycleOrder = []OrderStatus{
	OrderStatusPending,
	OrderStatusAccepted,
	OrderStatusPaid,
	OrderStatusSellerConfirmed,
	OrderStatusDispute,
	OrderStatusCompleted,
	OrderStatusRejected,
	OrderStatusCancelled,
}

// CheckTransition validates that actor may move an order from one status to
// another in a single hop. It never performs I/O and the returned error is
// safe to show to the user.
func CheckTransition(actor Actor, from, to OrderStatus) error {
	if from.IsTerminal() {
		return apperror.ErrTerminalState(string(from))
	}
	actors, ok := transitions[transition{from, to}]
	if !ok {
		return apperror.ErrIllegalTransition(string(from), string(to))
	}
	for _, a := range actors {
		if a == actor {
			return nil
		}
	}
	return apperror.ErrActorNotPermitted(string(actor), string(to))
}

// AllowedTargets lists the statuses actor may request from the given status.
// UIs use it to decide which action buttons to render.
func AllowedTargets(actor Actor, from OrderStatus) []OrderStatus {
	var out []OrderStatus
	for _, to := range lifecycleOrder {
		if CheckTransition(actor, from, to) == nil {
			out = append(out, to)
		}
	}
	return out
}
