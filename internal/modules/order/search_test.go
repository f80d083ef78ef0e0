// README: Search matching tests.
package order

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMatchesSearchTerm(t *testing.T) {
	o := &Order{
		OrderNumber:         "CO-20260301-AB12CD34",
		DispatchOrderNumber: "DSP-778899",
		DriverID:            "drv42",
		Customer:            Customer{Name: "Maria Lindqvist", Phone: "+46701234567"},
		Pickup:              Pickup{Name: "Thai Corner"},
		Items:               []Item{{Name: "Green Curry", Quantity: 1}},
	}
	hits := []string{"maria", "467012", "thai corner", "ab12cd", "dsp-7788", "green curry", "drv42"}
	for _, term := range hits {
		if !matchesSearchTerm(o, term) {
			t.Errorf("term %q did not match", term)
		}
	}
	for _, term := range []string{"sushi", "drv43", "co-2027"} {
		if matchesSearchTerm(o, term) {
			t.Errorf("term %q matched unexpectedly", term)
		}
	}
}

func TestSearchOrdersWindowAndTerm(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	svc.now = func() time.Time { return clock }

	// outside the 30-day window
	clock = base.Add(-45 * 24 * time.Hour)
	if _, err := svc.Create(ctx, CreateCommand{BusinessID: "biz1", Customer: Customer{Name: "Old Oscar"}}); err != nil {
		t.Fatal(err)
	}
	// recent, matching
	clock = base.Add(-time.Hour)
	if _, err := svc.Create(ctx, CreateCommand{BusinessID: "biz1", Customer: Customer{Name: "Oscar Recent"}}); err != nil {
		t.Fatal(err)
	}

	clock = base
	got, err := svc.SearchOrders(ctx, "biz1", "oscar", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Customer.Name != "Oscar Recent" {
		t.Errorf("search returned %d orders, want the single recent match", len(got))
	}
}

func TestSearchOrdersRejectsEmptyTerm(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.SearchOrders(context.Background(), "", "   ", 10); !errors.Is(err, ErrBadRequest) {
		t.Errorf("err = %v, want ErrBadRequest", err)
	}
}
