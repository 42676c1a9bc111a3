package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"p2p-desk/internal/core/domain"
	"p2p-desk/internal/core/ports"
	"p2p-desk/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// WithdrawRequest asks to move tokens to an external address.
type WithdrawRequest struct {
	Amount  decimal.Decimal
	Address string
}

// WalletService reads balances and ledgers and places withdrawals. The last
// fetched balance of each session is kept to check withdrawals locally.
type WalletService struct {
	gw     ports.Gateway
	claims submissions
	limit  int
	log    zerolog.Logger

	mu       sync.RWMutex
	balances map[string]domain.Balance
}

// NewWalletService creates a wallet service. guard may be nil.
func NewWalletService(gw ports.Gateway, guard ports.SubmissionGuard, limit int, log zerolog.Logger) *WalletService {
	if limit < 1 {
		limit = DefaultPageLimit
	}
	return &WalletService{
		gw:       gw,
		claims:   newSubmissions(guard, 0, log),
		limit:    limit,
		log:      log,
		balances: make(map[string]domain.Balance),
	}
}

// Balance fetches the user's balance and remembers it for the session.
func (s *WalletService) Balance(ctx context.Context, sess *Session) (domain.Balance, error) {
	env, err := s.gw.Do(ctx, sess, ports.RemoteRequest{
		Role:   domain.RoleUser,
		Method: http.MethodGet,
		Path:   ports.PathWalletBalance,
	})
	if err != nil {
		return domain.Balance{}, err
	}
	if !env.Success {
		return domain.Balance{}, env.Err()
	}
	bal, err := decodeBalance(env.Data)
	if err != nil {
		return domain.Balance{}, apperror.ErrMalformedPayload(err)
	}
	bal.FetchedAt = time.Now().UTC()

	s.mu.Lock()
	s.balances[sess.ID()] = bal
	s.mu.Unlock()
	return bal, nil
}

// CachedBalance returns the last fetched balance of a session.
func (s *WalletService) CachedBalance(sessionID string) (domain.Balance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bal, ok := s.balances[sessionID]
	return bal, ok
}

// Forget drops the cached balance of a session.
func (s *WalletService) Forget(sessionID string) {
	s.mu.Lock()
	delete(s.balances, sessionID)
	s.mu.Unlock()
}

// WalletHistory lists wallet transactions. Admins see the platform ledger.
func (s *WalletService) WalletHistory(ctx context.Context, sess *Session, role domain.Role, q PageQuery) (domain.Page[domain.LedgerEntry], error) {
	var path string
	switch role {
	case domain.RoleUser:
		path = ports.PathWalletHistory
	case domain.RoleAdmin:
		path = ports.PathAdminWallet
	default:
		return domain.Page[domain.LedgerEntry]{}, apperror.Validation("Wallet history is not available for " + string(role) + ".")
	}
	return fetchPage[domain.LedgerEntry](ctx, s.gw, sess, ports.RemoteRequest{
		Role:   role,
		Method: http.MethodGet,
		Path:   path,
	}, q.normalize(s.limit))
}

// IncomeHistory lists the user's trading income.
func (s *WalletService) IncomeHistory(ctx context.Context, sess *Session, q PageQuery) (domain.Page[domain.LedgerEntry], error) {
	return fetchPage[domain.LedgerEntry](ctx, s.gw, sess, ports.RemoteRequest{
		Role:   domain.RoleUser,
		Method: http.MethodGet,
		Path:   ports.PathIncomeHistory,
	}, q.normalize(s.limit))
}

// Withdrawals lists the user's withdrawal requests.
func (s *WalletService) Withdrawals(ctx context.Context, sess *Session, q PageQuery) (domain.Page[domain.Withdrawal], error) {
	return fetchPage[domain.Withdrawal](ctx, s.gw, sess, ports.RemoteRequest{
		Role:   domain.RoleUser,
		Method: http.MethodGet,
		Path:   ports.PathWithdrawOrders,
	}, q.normalize(s.limit))
}

// PlaceWithdraw requests a withdrawal. Invalid amounts, a missing address
// and amounts above the last fetched balance are refused without calling
// the withdrawal endpoint. When no balance was fetched yet it is fetched
// first. A session has at most one withdrawal in flight.
func (s *WalletService) PlaceWithdraw(ctx context.Context, sess *Session, req WithdrawRequest) (*domain.Withdrawal, string, error) {
	if !req.Amount.IsPositive() {
		return nil, "", apperror.ErrInvalidAmount()
	}
	address := strings.TrimSpace(req.Address)
	if address == "" {
		return nil, "", apperror.Validation("Withdrawal address is required.")
	}

	release, err := s.claims.claim(ctx, sess.ID()+":withdraw")
	if err != nil {
		return nil, "", err
	}
	defer release()

	bal, ok := s.CachedBalance(sess.ID())
	if !ok {
		if bal, err = s.Balance(ctx, sess); err != nil {
			return nil, "", err
		}
	}
	if req.Amount.GreaterThan(bal.Amount) {
		return nil, "", apperror.ErrInsufficientBalance()
	}

	env, err := s.gw.Do(ctx, sess, ports.RemoteRequest{
		Role:   domain.RoleUser,
		Method: http.MethodPost,
		Path:   ports.PathPlaceWithdraw,
		Body:   map[string]string{"amount": req.Amount.String(), "address": address},
	})
	if err != nil {
		return nil, "", err
	}
	if !env.Success {
		return nil, "", env.Err()
	}

	s.mu.Lock()
	if cur, ok := s.balances[sess.ID()]; ok {
		cur.Amount = cur.Amount.Sub(req.Amount)
		s.balances[sess.ID()] = cur
	}
	s.mu.Unlock()

	w := &domain.Withdrawal{Amount: req.Amount, Address: address, Status: domain.WithdrawalPending}
	if echoed, ok := embedded[domain.Withdrawal](env.Data, "withdrawal", func(x domain.Withdrawal) bool { return x.ID != "" }); ok {
		w = &echoed
	}
	s.log.Info().Str("session_id", sess.ID()).Str("amount", req.Amount.String()).Msg("withdrawal placed")
	return w, env.Message, nil
}

// decodeBalance reads a bare number, a {balance} object or the same under
// a "wallet" key.
func decodeBalance(raw json.RawMessage) (domain.Balance, error) {
	raw = bytes.TrimSpace(raw)
	var bal domain.Balance
	if len(raw) == 0 || raw[0] != '{' {
		err := json.Unmarshal(raw, &bal.Amount)
		return bal, err
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return bal, err
	}
	if nested, ok := obj["wallet"]; ok {
		return decodeBalance(nested)
	}
	for _, k := range []string{"balance", "amount", "available"} {
		if v, ok := obj[k]; ok {
			if err := json.Unmarshal(v, &bal.Amount); err != nil {
				return bal, err
			}
			break
		}
	}
	for _, k := range []string{"token", "currency", "symbol"} {
		if v, ok := obj[k]; ok {
			_ = json.Unmarshal(v, &bal.Token)
			break
		}
	}
	return bal, nil
}
