package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DealStatus is the state of a sell-side offer.
type DealStatus string

const (
	DealStatusOpen      DealStatus = "OPEN"
	DealStatusPicked    DealStatus = "PICKED"
	DealStatusCancelled DealStatus = "CANCELLED"
)

// UnmarshalText upper-cases the wire value and folds CANCELED.
func (s *DealStatus) UnmarshalText(b []byte) error {
	v := strings.ToUpper(strings.TrimSpace(string(b)))
	if v == "CANCELED" {
		v = string(DealStatusCancelled)
	}
	*s = DealStatus(v)
	return nil
}

// Deal is a seller's offer to sell tokens at a unit price.
type Deal struct {
	ID             string          `json:"id"`
	SellerID       string          `json:"sellerId,omitempty"`
	Price          decimal.Decimal `json:"price"`
	Quantity       decimal.Decimal `json:"quantity"`
	PaymentMethods []string        `json:"paymentMethods,omitempty"`
	Status         DealStatus      `json:"status"`
	CreatedAt      *time.Time      `json:"createdAt,omitempty"`
}

// UnmarshalJSON accepts "_id" and treats a missing status as OPEN, which is
// how the open-deals listing omits it.
func (d *Deal) UnmarshalJSON(b []byte) error {
	type plain Deal
	var wire struct {
		plain
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	*d = Deal(wire.plain)
	if d.ID == "" {
		d.ID = wire.MongoID
	}
	if d.Status == "" {
		d.Status = DealStatusOpen
	}
	return nil
}

// CanPick reports whether a buyer may still pick the deal.
func (d *Deal) CanPick() bool {
	return d.Status == DealStatusOpen && d.Quantity.IsPositive()
}

// Total is the fiat value of the full available quantity.
func (d *Deal) Total() decimal.Decimal {
	return d.Price.Mul(d.Quantity)
}
