// README: Inbound webhook processing; provider callbacks re-enter the canonical update path.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"courio/internal/modules/order"
	"courio/internal/types"
)

// WebhookEvent is a status callback from the dispatch provider. Either
// OrderID (ours) or ProviderOrderID must be present.
type WebhookEvent struct {
	EventID         string
	OrderID         string
	ProviderOrderID string
	NewStatus       string
	DriverID        string
	Timestamp       time.Time
	ProofOfDelivery []string
}

// OrderUpdater is the slice of the order service the webhook needs. Inbound
// callbacks go through the exact same update entry point as any other status
// change, so the provider's vocabulary is normalized uniformly and never
// leaks into the canonical model.
type OrderUpdater interface {
	GetByDispatchNumber(ctx context.Context, dispatchNo string) (*order.Order, error)
	Update(ctx context.Context, id types.ID, cmd order.UpdateCommand) error
}

// eventClaimer atomically claims event ids so concurrent deliveries of the
// same event cannot both proceed.
type eventClaimer interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

// Webhook applies provider callbacks to local orders.
type Webhook struct {
	orders OrderUpdater
	dedupe eventClaimer
	log    *zap.Logger
}

func NewWebhook(orders OrderUpdater, dedupe eventClaimer, log *zap.Logger) *Webhook {
	if log == nil {
		log = zap.NewNop()
	}
	return &Webhook{orders: orders, dedupe: dedupe, log: log}
}

// Process applies one callback. Replayed deliveries (same event id) are
// dropped; unknown status tokens fail closed inside the update path.
func (w *Webhook) Process(ctx context.Context, ev WebhookEvent) error {
	claimed := false
	if w.dedupe != nil && ev.EventID != "" {
		ok, err := w.dedupe.Claim(ctx, ev.EventID)
		switch {
		case err != nil:
			// Dedupe store unreachable: apply anyway. Timeline fields are
			// idempotent; the worst a duplicate does is repeat a proof photo,
			// which beats losing the event.
			w.log.Warn("webhook dedupe claim failed", zap.String("event_id", ev.EventID), zap.Error(err))
		case !ok:
			w.log.Debug("duplicate webhook delivery dropped", zap.String("event_id", ev.EventID))
			return nil
		default:
			claimed = true
		}
	}

	if err := w.apply(ctx, ev); err != nil {
		if claimed {
			// free the claim so the provider's retry is not swallowed
			if relErr := w.dedupe.Release(ctx, ev.EventID); relErr != nil {
				w.log.Warn("webhook dedupe release failed", zap.String("event_id", ev.EventID), zap.Error(relErr))
			}
		}
		return err
	}
	return nil
}

func (w *Webhook) apply(ctx context.Context, ev WebhookEvent) error {
	id := types.ID(ev.OrderID)
	if id == "" {
		o, err := w.orders.GetByDispatchNumber(ctx, ev.ProviderOrderID)
		if err != nil {
			return fmt.Errorf("resolving webhook order: %w", err)
		}
		id = o.ID
	}

	cmd := order.UpdateCommand{FromSync: true}
	if ev.NewStatus != "" {
		st := ev.NewStatus
		cmd.Status = &st
	}
	if ev.DriverID != "" {
		d := types.ID(ev.DriverID)
		cmd.DriverID = &d
	}
	if !ev.Timestamp.IsZero() {
		ts := ev.Timestamp
		cmd.At = &ts
	}
	cmd.ProofOfDelivery = ev.ProofOfDelivery

	return w.orders.Update(ctx, id, cmd)
}

// dedupeTTL bounds how long delivered event ids are remembered.
const dedupeTTL = 24 * time.Hour

// EventDeduper remembers processed webhook event ids in Redis.
type EventDeduper struct {
	rdb *redis.Client
}

func NewEventDeduper(rdb *redis.Client) *EventDeduper {
	return &EventDeduper{rdb: rdb}
}

func (d *EventDeduper) key(eventID string) string {
	return "dispatch:webhook:" + eventID
}

// Claim atomically marks the event id as taken. A single SETNX keeps two
// concurrent deliveries of the same event from both passing.
func (d *EventDeduper) Claim(ctx context.Context, eventID string) (bool, error) {
	return d.rdb.SetNX(ctx, d.key(eventID), 1, dedupeTTL).Result()
}

// Release frees a claim after a failed apply so the provider's retry gets
// through.
func (d *EventDeduper) Release(ctx context.Context, eventID string) error {
	return d.rdb.Del(ctx, d.key(eventID)).Err()
}
