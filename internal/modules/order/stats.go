// README: Stats aggregator; reduces a filtered order set into operational metrics.
package order

// Stats are the operational metrics derived from an order set.
type Stats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"inProgress"`
	Completed  int `json:"completed"`
	Cancelled  int `json:"cancelled"`

	TotalRevenue               float64 `json:"totalRevenue"`
	AverageOrderValue          float64 `json:"averageOrderValue"`
	AverageDeliveryTimeMinutes float64 `json:"averageDeliveryTimeMinutes"`
}

// AggregateStats buckets every order into exactly one of four disjoint status
// groups and accumulates revenue over the completed subset only. Delivery
// latency averages only orders with a valid createdAt and an end timestamp
// strictly after it; malformed timelines are excluded rather than counted as
// zero, which would silently bias the average down.
func AggregateStats(orders []*Order) Stats {
	var st Stats
	st.Total = len(orders)

	var deliveryMinutes float64
	var delivered int

	for _, o := range orders {
		status := Normalize(string(o.Status))
		switch {
		case IsTerminalSuccess(status):
			st.Completed++
			st.TotalRevenue += o.TotalAmount

			end := o.Timeline.CompletedAt
			if end == nil && !o.UpdatedAt.IsZero() {
				end = &o.UpdatedAt
			}
			start := o.Timeline.CreatedAt
			if end != nil && !start.IsZero() && end.After(start) {
				deliveryMinutes += end.Sub(start).Minutes()
				delivered++
			}
		case IsTerminalFailure(status):
			st.Cancelled++
		default:
			if _, pending := pendingStatuses[status]; pending {
				st.Pending++
			} else {
				st.InProgress++
			}
		}
	}

	if st.Completed > 0 {
		st.AverageOrderValue = st.TotalRevenue / float64(st.Completed)
	}
	if delivered > 0 {
		st.AverageDeliveryTimeMinutes = deliveryMinutes / float64(delivered)
	}
	return st
}
