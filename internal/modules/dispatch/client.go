// README: HTTP client for the external dispatch provider.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"courio/internal/config"
	"courio/internal/modules/order"
	"courio/internal/types"
)

// providerStatus maps every canonical state onto the provider's own, stricter
// vocabulary. The mapping is total: a canonical status always has a provider
// token.
var providerStatus = map[order.Status]string{
	order.StatusActive:         "processing",
	order.StatusNotAssigned:    "pending",
	order.StatusNotAccepted:    "offered",
	order.StatusNotStartedYet:  "accepted",
	order.StatusStarted:        "assigned",
	order.StatusPickedUp:       "in_transit",
	order.StatusReadyToDeliver: "out_for_delivery",
	order.StatusDelivered:      "delivered",
	order.StatusFailedDelivery: "failed",
	order.StatusIncomplete:     "incomplete",
	order.StatusCancelled:      "cancelled",
}

// ProviderStatusToken returns the provider-side token for a canonical status.
func ProviderStatusToken(s order.Status) string {
	if t, ok := providerStatus[s]; ok {
		return t
	}
	return providerStatus[order.StatusNotAssigned]
}

// CreateResult is the provider's answer to an order-creation call.
type CreateResult struct {
	Success         bool   `json:"success"`
	ProviderOrderID string `json:"providerOrderId"`
}

// Provider is the outbound surface of the dispatch provider. The production
// implementation is Client; tests and the outbox worker substitute fakes.
type Provider interface {
	CreateOrder(ctx context.Context, id types.ID, o *order.Order) (CreateResult, error)
	UpdateOrder(ctx context.Context, id types.ID, fields map[string]interface{}) error
}

// Client talks JSON over HTTP to the dispatch provider. Timeouts are enforced
// by the underlying http.Client; a timeout is a sync failure, never a
// local-write failure.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(cfg config.DispatchConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

// createPayload is the provider's order-creation wire format.
type createPayload struct {
	ExternalID    string  `json:"externalId"`
	OrderNumber   string  `json:"orderNumber"`
	Status        string  `json:"status"`
	PaymentMethod string  `json:"paymentMethod"`
	AmountDue     float64 `json:"amountDue"`

	CustomerName   string  `json:"customerName"`
	CustomerPhone  string  `json:"customerPhone"`
	DropoffAddress string  `json:"dropoffAddress"`
	DropoffLat     float64 `json:"dropoffLat"`
	DropoffLng     float64 `json:"dropoffLng"`
	PickupName     string  `json:"pickupName"`
	PickupAddress  string  `json:"pickupAddress"`
	PickupLat      float64 `json:"pickupLat"`
	PickupLng      float64 `json:"pickupLng"`
}

// CreateOrder registers the order with the provider and returns the
// provider-assigned order id.
func (c *Client) CreateOrder(ctx context.Context, id types.ID, o *order.Order) (CreateResult, error) {
	payload := createPayload{
		ExternalID:     string(id),
		OrderNumber:    o.OrderNumber,
		Status:         ProviderStatusToken(o.Status),
		PaymentMethod:  string(o.PaymentMethod),
		AmountDue:      o.AmountToCollect,
		CustomerName:   o.Customer.Name,
		CustomerPhone:  o.Customer.Phone,
		DropoffAddress: o.Customer.Address,
		DropoffLat:     o.Customer.Coords.Lat,
		DropoffLng:     o.Customer.Coords.Lng,
		PickupName:     o.Pickup.Name,
		PickupAddress:  o.Pickup.Address,
		PickupLat:      o.Pickup.Coords.Lat,
		PickupLng:      o.Pickup.Coords.Lng,
	}

	var res CreateResult
	if err := c.do(ctx, http.MethodPost, "/v1/orders", payload, &res); err != nil {
		return CreateResult{}, err
	}
	if !res.Success {
		return res, fmt.Errorf("provider rejected order %s", id)
	}
	return res, nil
}

// UpdateOrder pushes only the changed fields for an order the provider
// already knows, keyed by our order id. No-ops on an empty change set.
func (c *Client) UpdateOrder(ctx context.Context, id types.ID, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	var res struct {
		Success bool `json:"success"`
	}
	path := fmt.Sprintf("/v1/orders/%s", id)
	if err := c.do(ctx, http.MethodPatch, path, fields, &res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("provider rejected update for order %s", id)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding dispatch payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("building dispatch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling dispatch provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("dispatch provider returned %d: %s", resp.StatusCode, snippet)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding dispatch response: %w", err)
		}
	}
	return nil
}
