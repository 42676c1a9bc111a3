package domain

// Page is one page of a paginated backend listing.
type Page[T any] struct {
	Items      []T `json:"items"`
	Count      int `json:"count"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// NewPage builds a page and derives TotalPages from count and limit.
func NewPage[T any](items []T, count, page, limit int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:      items,
		Count:      count,
		Page:       page,
		Limit:      limit,
		TotalPages: TotalPages(count, limit),
	}
}

// TotalPages returns ceil(count/limit), never less than 1. A non-positive
// limit is treated as one page.
func TotalPages(count, limit int) int {
	if limit <= 0 || count <= 0 {
		return 1
	}
	return (count + limit - 1) / limit
}
