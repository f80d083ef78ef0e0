// README: Query helper tests (chunking, cursor codec, merge order).
package order

import (
	"context"
	"fmt"
	"testing"
	"time"

	"courio/internal/types"
)

func TestChunkStatusesSplitsWithoutDropping(t *testing.T) {
	all := make([]Status, 0, len(canonicalSet))
	for st := range canonicalSet {
		all = append(all, st)
	}
	extra := append(append([]Status{}, all...), StatusCancelled) // 12 values

	chunks := chunkStatuses(extra, maxInValues)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	total := 0
	for _, c := range chunks {
		if len(c) > maxInValues {
			t.Errorf("chunk of %d exceeds limit %d", len(c), maxInValues)
		}
		total += len(c)
	}
	if total != len(extra) {
		t.Errorf("chunks carry %d values, want %d — part of the set was dropped", total, len(extra))
	}
}

func TestChunkStatusesEmptyMeansNoPredicate(t *testing.T) {
	chunks := chunkStatuses(nil, maxInValues)
	if len(chunks) != 1 || chunks[0] != nil {
		t.Errorf("chunks = %v, want single nil chunk", chunks)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	in := pageCursor{CreatedAt: time.Now().UnixNano(), ID: "orders/abc"}
	out, err := decodeCursor(encodeCursor(in))
	if err != nil {
		t.Fatal(err)
	}
	if out == nil || *out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}

	if c, err := decodeCursor(""); err != nil || c != nil {
		t.Error("empty token must decode to nil cursor")
	}
	if _, err := decodeCursor("!!not-base64!!"); err == nil {
		t.Error("garbage token must fail to decode")
	}
}

func TestSortNewestFirst(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mk := func(id string, at time.Time) *Order {
		return &Order{ID: types.ID(id), Timeline: Timeline{CreatedAt: at}}
	}
	orders := []*Order{
		mk("a", t0),
		mk("b", t0.Add(time.Hour)),
		mk("c", t0),
	}
	sortNewestFirst(orders)
	if orders[0].ID != "b" {
		t.Errorf("newest order not first: %v", orders[0].ID)
	}
	// equal timestamps tie-break on id descending, matching the store's
	// secondary sort key
	if orders[1].ID != "c" || orders[2].ID != "a" {
		t.Errorf("tie-break order wrong: %v, %v", orders[1].ID, orders[2].ID)
	}
}

// sliceFetcher emulates the store's raw page fetch (StartAfter + Limit over
// the newest-first sort) against an in-memory slice, so the page-assembly
// loop can be exercised without Firestore.
func sliceFetcher(all []*Order) pageFetcher {
	return func(_ context.Context, _ Filter, pageSize int, cur *pageCursor) ([]*Order, error) {
		var page []*Order
		for _, o := range all {
			if cur != nil {
				c := o.Timeline.CreatedAt.UnixNano()
				if c > cur.CreatedAt || (c == cur.CreatedAt && string(o.ID) >= cur.ID) {
					continue
				}
			}
			page = append(page, o)
			if len(page) == pageSize {
				break
			}
		}
		return page, nil
	}
}

func TestQueryPagesScansPastFilteredRows(t *testing.T) {
	// 100 orders newest-first; the newest 50 are CASH, the older 50 CARD. A
	// multi-valued payment filter is evaluated client-side, so the first raw
	// page holds zero matches and the scan must keep going.
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	var all []*Order
	for i := 0; i < 100; i++ {
		pm := PaymentCard
		if i < 50 {
			pm = PaymentCash
		}
		all = append(all, &Order{
			ID:            types.ID(fmt.Sprintf("ord%03d", i)),
			PaymentMethod: pm,
			Timeline:      Timeline{CreatedAt: t0.Add(-time.Duration(i) * time.Minute)},
		})
	}
	sortNewestFirst(all)

	f := Filter{PaymentMethods: []PaymentMethod{PaymentCard, PaymentUnknown}}
	got, next, err := queryPages(context.Background(), f, 50, nil, sliceFetcher(all))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 50 {
		t.Fatalf("page holds %d orders, want all 50 CARD matches", len(got))
	}
	for _, o := range got {
		if o.PaymentMethod != PaymentCard {
			t.Errorf("order %s has payment %s", o.ID, o.PaymentMethod)
		}
	}
	// the 50 matches exhaust the store; the follow-up page must be empty
	cur, err := decodeCursor(next)
	if err != nil {
		t.Fatal(err)
	}
	rest, next2, err := queryPages(context.Background(), f, 50, cur, sliceFetcher(all))
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 0 || next2 != "" {
		t.Errorf("follow-up page = %d orders, cursor %q; want empty end of results", len(rest), next2)
	}
}

func TestQueryPagesCursorNeverSkipsMatches(t *testing.T) {
	// alternating CASH/CARD, small pages: result pages fill mid raw page, so
	// the cursor must resume from the last returned row, not the last scanned.
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	var all []*Order
	for i := 0; i < 30; i++ {
		pm := PaymentCash
		if i%2 == 0 {
			pm = PaymentCard
		}
		all = append(all, &Order{
			ID:            types.ID(fmt.Sprintf("ord%03d", i)),
			PaymentMethod: pm,
			Timeline:      Timeline{CreatedAt: t0.Add(-time.Duration(i) * time.Minute)},
		})
	}
	sortNewestFirst(all)

	f := Filter{PaymentMethods: []PaymentMethod{PaymentCard, PaymentUnknown}}
	seen := map[types.ID]struct{}{}
	var drained []*Order
	cursor := ""
	for {
		cur, err := decodeCursor(cursor)
		if err != nil {
			t.Fatal(err)
		}
		page, next, err := queryPages(context.Background(), f, 4, cur, sliceFetcher(all))
		if err != nil {
			t.Fatal(err)
		}
		for _, o := range page {
			if _, dup := seen[o.ID]; dup {
				t.Fatalf("order %s returned twice", o.ID)
			}
			seen[o.ID] = struct{}{}
		}
		drained = append(drained, page...)
		if next == "" {
			break
		}
		cursor = next
	}
	if len(drained) != 15 {
		t.Fatalf("drained %d orders, want all 15 CARD matches", len(drained))
	}
	for i := 1; i < len(drained); i++ {
		if drained[i-1].Timeline.CreatedAt.Before(drained[i].Timeline.CreatedAt) {
			t.Fatal("drained results not newest-first")
		}
	}
}

func TestFilterPaymentMethodsClientSide(t *testing.T) {
	orders := []*Order{
		{PaymentMethod: PaymentCash},
		{PaymentMethod: PaymentCard},
		{PaymentMethod: PaymentUnknown},
	}
	got := filterPaymentMethods(orders, []PaymentMethod{PaymentCash, PaymentCard})
	if len(got) != 2 {
		t.Errorf("filtered to %d orders, want 2", len(got))
	}

	// single-valued sets are pushed down as equality, not filtered here
	same := []*Order{{PaymentMethod: PaymentCash}}
	if got := filterPaymentMethods(same, []PaymentMethod{PaymentCard}); len(got) != 1 {
		t.Error("single-value set must pass through untouched")
	}
}
