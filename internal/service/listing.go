package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"p2p-desk/internal/core/domain"
	"p2p-desk/internal/core/ports"
	"p2p-desk/pkg/apperror"
)

// DefaultPageLimit is used when a listing is requested without a limit.
const DefaultPageLimit = 10

// listKeys are the wrapper keys some endpoints put their array under,
// in order of preference.
var listKeys = []string{"items", "docs", "rows", "list", "orders", "deals", "requests", "tickets", "transactions", "withdrawals", "history"}

// PageQuery selects one page of a listing.
type PageQuery struct {
	Page  int
	Limit int
}

func (q PageQuery) normalize(defaultLimit int) PageQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = defaultLimit
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageLimit
	}
	return q
}

func (q PageQuery) values() url.Values {
	return url.Values{
		"page":  {strconv.Itoa(q.Page)},
		"limit": {strconv.Itoa(q.Limit)},
	}
}

// fetchPage performs a list call and decodes the items. The total page
// count is always derived from the count the backend reports.
func fetchPage[T any](ctx context.Context, gw ports.Gateway, creds ports.Credentials, req ports.RemoteRequest, q PageQuery) (domain.Page[T], error) {
	if req.Query == nil {
		req.Query = url.Values{}
	}
	for k, v := range q.values() {
		req.Query[k] = v
	}

	env, err := gw.Do(ctx, creds, req)
	if err != nil {
		return domain.Page[T]{}, err
	}
	if !env.Success {
		return domain.Page[T]{}, env.Err()
	}

	items, err := decodeList[T](env.Data)
	if err != nil {
		return domain.Page[T]{}, apperror.ErrMalformedPayload(err)
	}
	count := len(items)
	if env.HasCount {
		count = env.Count
	}
	return domain.NewPage(items, count, q.Page, q.Limit), nil
}

// decodeList reads an array payload, or the array inside a wrapper object.
func decodeList[T any](raw json.RawMessage) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []T{}, nil
	}
	if raw[0] == '[' {
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	for _, key := range listKeys {
		if v, ok := obj[key]; ok && isArray(v) {
			return decodeList[T](v)
		}
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if isArray(obj[k]) {
			return decodeList[T](obj[k])
		}
	}
	return []T{}, nil
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

// OrderFilter restricts an order queue to one status. The zero value and
// "all" show every status.
type OrderFilter struct {
	Status domain.OrderStatus
}

// ParseOrderFilter parses a status filter from a query string.
func ParseOrderFilter(s string) (OrderFilter, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return OrderFilter{}, nil
	}
	st, ok := domain.ParseOrderStatus(s)
	if !ok {
		return OrderFilter{}, apperror.Validation("Unknown status filter: " + s)
	}
	return OrderFilter{Status: st}, nil
}

// All reports whether the filter is unrestricted.
func (f OrderFilter) All() bool { return f.Status == "" }

// Match reports whether o belongs in the filtered queue.
func (f OrderFilter) Match(o domain.Order) bool {
	return f.All() || o.Status == f.Status
}

func (f OrderFilter) String() string {
	if f.All() {
		return "all"
	}
	return string(f.Status)
}

func errUnknownActor(actor domain.Actor) error {
	return apperror.Validation("Unknown actor: " + string(actor))
}
