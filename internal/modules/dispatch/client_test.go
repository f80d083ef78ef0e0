// README: Dispatch provider client tests against an httptest double.
package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"courio/internal/config"
	"courio/internal/modules/order"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.DispatchConfig{BaseURL: srv.URL, APIKey: "k123", Timeout: 2 * time.Second})
}

func TestCreateOrderSuccess(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]interface{}
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-Api-Key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(CreateResult{Success: true, ProviderOrderID: "DSP-1"})
	})

	o := &order.Order{Status: order.StatusNotAssigned, OrderNumber: "CO-1"}
	res, err := client.CreateOrder(context.Background(), "ord1", o)
	if err != nil {
		t.Fatal(err)
	}
	if res.ProviderOrderID != "DSP-1" {
		t.Errorf("provider id = %q", res.ProviderOrderID)
	}
	if gotPath != "/v1/orders" || gotKey != "k123" {
		t.Errorf("path/key = %q/%q", gotPath, gotKey)
	}
	if gotBody["externalId"] != "ord1" || gotBody["status"] != "pending" {
		t.Errorf("payload = %v", gotBody)
	}
}

func TestCreateOrderRejected(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(CreateResult{Success: false})
	})
	if _, err := client.CreateOrder(context.Background(), "ord1", &order.Order{}); err == nil {
		t.Error("want error when provider rejects")
	}
}

func TestCreateOrderServerError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	if _, err := client.CreateOrder(context.Background(), "ord1", &order.Order{}); err == nil {
		t.Error("want error on 5xx")
	}
}

func TestUpdateOrderPatchesChangedFields(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]interface{}
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]bool{"success": true})
	})

	err := client.UpdateOrder(context.Background(), "ord7", map[string]interface{}{"status": "delivered"})
	if err != nil {
		t.Fatal(err)
	}
	if gotMethod != http.MethodPatch || gotPath != "/v1/orders/ord7" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
	if gotBody["status"] != "delivered" {
		t.Errorf("body = %v", gotBody)
	}
}

func TestUpdateOrderEmptyChangeSetNoOps(t *testing.T) {
	called := false
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	if err := client.UpdateOrder(context.Background(), "ord1", nil); err != nil {
		t.Fatal(err)
	}
	if called {
		t.Error("empty change set still hit the provider")
	}
}

func TestProviderStatusTokenTotal(t *testing.T) {
	for _, st := range order.ActiveStatuses {
		if ProviderStatusToken(st) == "" {
			t.Errorf("no provider token for %s", st)
		}
	}
	for _, st := range []order.Status{order.StatusDelivered, order.StatusFailedDelivery, order.StatusIncomplete, order.StatusCancelled} {
		if ProviderStatusToken(st) == "" {
			t.Errorf("no provider token for %s", st)
		}
	}
}
