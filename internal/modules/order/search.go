// README: Best-effort recency-windowed substring search for operator tooling.
package order

import (
	"context"
	"strings"
	"time"

	"courio/internal/types"
)

const (
	// searchWindow bounds how far back the search looks. This is operator
	// tooling over recent orders, not a general-purpose index.
	searchWindow = 30 * 24 * time.Hour

	searchFetchLimit = 500
)

// SearchOrders matches term as a case-insensitive substring over customer
// name/phone, pickup name, order numbers, item names, and driver id, scanning
// at most the last 30 days of orders.
func (s *Service) SearchOrders(ctx context.Context, businessID types.ID, term string, limit int) ([]*Order, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, ErrBadRequest
	}
	if limit <= 0 || limit > searchFetchLimit {
		limit = 50
	}

	since := s.now().Add(-searchWindow)
	recent, err := s.store.ListRecent(ctx, businessID, since, searchFetchLimit)
	if err != nil {
		return nil, err
	}

	var out []*Order
	for _, o := range recent {
		if matchesSearchTerm(o, term) {
			out = append(out, o)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func matchesSearchTerm(o *Order, term string) bool {
	needle := strings.ToLower(term)
	haystacks := []string{
		o.Customer.Name,
		o.Customer.Phone,
		o.Pickup.Name,
		o.OrderNumber,
		o.DispatchOrderNumber,
		string(o.DriverID),
	}
	for _, it := range o.Items {
		haystacks = append(haystacks, it.Name)
	}
	for _, h := range haystacks {
		if h != "" && strings.Contains(strings.ToLower(h), needle) {
			return true
		}
	}
	return false
}
