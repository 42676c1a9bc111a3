package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an accepted trade.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusAccepted        OrderStatus = "ACCEPTED"
	OrderStatusPaid            OrderStatus = "PAID"
	OrderStatusSellerConfirmed OrderStatus = "SELLER_CONFIRMED"
	OrderStatusCompleted       OrderStatus = "COMPLETED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusDispute         OrderStatus = "DISPUTE"
)

// orderStatusAliases maps the spellings different backend endpoints use.
var orderStatusAliases = map[string]OrderStatus{
	"BUYER_PAID": OrderStatusPaid,
	"CONFIRMED":  OrderStatusSellerConfirmed,
	"DISPUTED":   OrderStatusDispute,
	"CANCELED":   OrderStatusCancelled,
}

// ParseOrderStatus normalises a wire status. ok is false for unknown values,
// which are still returned upper-cased so they can be displayed.
func ParseOrderStatus(s string) (status OrderStatus, ok bool) {
	key := strings.ToUpper(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, " ", "_")
	if alias, found := orderStatusAliases[key]; found {
		return alias, true
	}
	st := OrderStatus(key)
	switch st {
	case OrderStatusPending, OrderStatusAccepted, OrderStatusPaid, OrderStatusSellerConfirmed,
		OrderStatusCompleted, OrderStatusRejected, OrderStatusCancelled, OrderStatusDispute:
		return st, true
	}
	return st, false
}

// UnmarshalText normalises aliases on decode.
func (s *OrderStatus) UnmarshalText(b []byte) error {
	*s, _ = ParseOrderStatus(string(b))
	return nil
}

// IsTerminal reports whether no further transition exists.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusRejected || s == OrderStatusCancelled
}

// Order is a trade between a buyer and a seller derived from a Deal.
type Order struct {
	ID          string          `json:"id"`
	DealID      string          `json:"dealId,omitempty"`
	BuyerID     string          `json:"buyerId,omitempty"`
	SellerID    string          `json:"sellerId,omitempty"`
	TokenAmount decimal.Decimal `json:"tokenAmount"`
	FiatAmount  decimal.Decimal `json:"fiatAmount"`
	Receipt     string          `json:"receipt,omitempty"`
	Status      OrderStatus     `json:"status"`
	ExpiresAt   *time.Time      `json:"expiresAt,omitempty"`
	RequestedAt *time.Time      `json:"createdAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// UnmarshalJSON accepts the backend's "_id" key as well as "id".
func (o *Order) UnmarshalJSON(b []byte) error {
	type plain Order
	var wire struct {
		plain
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	*o = Order(wire.plain)
	if o.ID == "" {
		o.ID = wire.MongoID
	}
	return nil
}

// ExpiresIn returns the time left before the order expires. It is zero for
// terminal orders and orders without an expiry.
func (o *Order) ExpiresIn(now time.Time) time.Duration {
	if o.ExpiresAt == nil || o.Status.IsTerminal() {
		return 0
	}
	if d := o.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
