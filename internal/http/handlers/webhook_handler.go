// README: Dispatch provider webhook handler.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"courio/internal/modules/dispatch"
	"courio/internal/modules/order"
)

type WebhookHandler struct {
	webhook *dispatch.Webhook
}

func NewWebhookHandler(webhook *dispatch.Webhook) *WebhookHandler {
	return &WebhookHandler{webhook: webhook}
}

type dispatchWebhookReq struct {
	EventID         string    `json:"eventId"`
	OrderID         string    `json:"orderId"`
	ProviderOrderID string    `json:"providerOrderId"`
	NewStatus       string    `json:"newStatus"`
	DriverID        string    `json:"driverId"`
	Timestamp       time.Time `json:"timestamp"`
	ProofOfDelivery []string  `json:"proofOfDelivery"`
}

// Receive applies a provider callback. A 4xx answer tells the provider not to
// retry; 5xx answers are retried by the provider's delivery queue.
func (h *WebhookHandler) Receive(c *gin.Context) {
	var req dispatchWebhookReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.OrderID == "" && req.ProviderOrderID == "" {
		writeError(c, http.StatusBadRequest, "missing order reference")
		return
	}
	err := h.webhook.Process(c.Request.Context(), dispatch.WebhookEvent{
		EventID:         req.EventID,
		OrderID:         req.OrderID,
		ProviderOrderID: req.ProviderOrderID,
		NewStatus:       req.NewStatus,
		DriverID:        req.DriverID,
		Timestamp:       req.Timestamp,
		ProofOfDelivery: req.ProofOfDelivery,
	})
	switch {
	case err == nil:
		writeJSON(c, http.StatusOK, gin.H{"received": true})
	case errors.Is(err, order.ErrNotFound), errors.Is(err, order.ErrInvalidStatus), errors.Is(err, order.ErrBadRequest):
		writeOrderError(c, err)
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
