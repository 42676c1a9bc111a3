package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EntryMode is the direction of a ledger entry.
type EntryMode string

const (
	EntryModeCredit EntryMode = "CREDIT"
	EntryModeDebit  EntryMode = "DEBIT"
)

// UnmarshalText upper-cases the wire value.
func (m *EntryMode) UnmarshalText(b []byte) error {
	*m = EntryMode(strings.ToUpper(strings.TrimSpace(string(b))))
	return nil
}

// LedgerEntry is a wallet or income transaction. Entries are owned by the
// backend and only ever read.
type LedgerEntry struct {
	ID        string          `json:"id"`
	Token     string          `json:"token,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Mode      EntryMode       `json:"mode"`
	Type      string          `json:"type,omitempty"`
	Remark    string          `json:"remark,omitempty"`
	CreatedAt *time.Time      `json:"createdAt,omitempty"`
}

func (e *LedgerEntry) UnmarshalJSON(b []byte) error {
	type plain LedgerEntry
	var wire struct {
		plain
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	*e = LedgerEntry(wire.plain)
	if e.ID == "" {
		e.ID = wire.MongoID
	}
	return nil
}

// Signed returns the amount with a negative sign for debits.
func (e *LedgerEntry) Signed() decimal.Decimal {
	if e.Mode == EntryModeDebit && e.Amount.IsPositive() {
		return e.Amount.Neg()
	}
	return e.Amount
}

// WithdrawalStatus is the state of a withdrawal request.
type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "PENDING"
	WithdrawalApproved  WithdrawalStatus = "APPROVED"
	WithdrawalRejected  WithdrawalStatus = "REJECTED"
	WithdrawalCompleted WithdrawalStatus = "COMPLETED"
)

func (s *WithdrawalStatus) UnmarshalText(b []byte) error {
	*s = WithdrawalStatus(strings.ToUpper(strings.TrimSpace(string(b))))
	return nil
}

// Withdrawal is a user's request to move tokens out of the platform.
type Withdrawal struct {
	ID        string           `json:"id"`
	Amount    decimal.Decimal  `json:"amount"`
	Address   string           `json:"address,omitempty"`
	Status    WithdrawalStatus `json:"status"`
	CreatedAt *time.Time       `json:"createdAt,omitempty"`
	UpdatedAt *time.Time       `json:"updatedAt,omitempty"`
}

func (w *Withdrawal) UnmarshalJSON(b []byte) error {
	type plain Withdrawal
	var wire struct {
		plain
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	*w = Withdrawal(wire.plain)
	if w.ID == "" {
		w.ID = wire.MongoID
	}
	return nil
}

// Balance is the user's spendable token balance as last fetched.
type Balance struct {
	Token     string          `json:"token,omitempty"`
	Amount    decimal.Decimal `json:"balance"`
	FetchedAt time.Time       `json:"fetchedAt"`
}
