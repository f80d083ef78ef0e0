// README: Dispatch sync adapter; mirrors local writes outward and records failed intents.
package dispatch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"courio/internal/modules/order"
	"courio/internal/types"
)

// intentQueue records sync operations that could not be delivered so the
// outbox worker can retry them.
type intentQueue interface {
	Enqueue(ctx context.Context, e Entry) error
}

// Syncer implements order.Dispatcher. Every push is fire-and-forget relative
// to the local write: a failed call is logged, recorded as an outbox intent,
// and returned as an error for the caller to log — never to roll back.
type Syncer struct {
	store    order.Store
	provider Provider
	outbox   intentQueue
	log      *zap.Logger
}

func NewSyncer(store order.Store, provider Provider, outbox intentQueue, log *zap.Logger) *Syncer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Syncer{store: store, provider: provider, outbox: outbox, log: log}
}

// PushCreate registers the order with the provider and writes the provider's
// order number back onto the local record. On failure the local record stays
// valid but unsynced and a retry intent is queued.
func (s *Syncer) PushCreate(ctx context.Context, id types.ID, o *order.Order) error {
	res, err := s.provider.CreateOrder(ctx, id, o)
	if err != nil {
		s.recordIntent(ctx, Entry{OrderID: id, Kind: KindCreate})
		return fmt.Errorf("dispatch create for order %s: %w", id, err)
	}
	if res.ProviderOrderID == "" {
		return nil
	}
	if err := s.store.SetDispatchOrderNumber(ctx, id, res.ProviderOrderID); err != nil {
		// The provider knows the order but the local record does not carry
		// its number; the outbox retry re-reads and reconciles.
		s.recordIntent(ctx, Entry{OrderID: id, Kind: KindCreate})
		return fmt.Errorf("recording dispatch number for order %s: %w", id, err)
	}
	return nil
}

// PushUpdate pushes only the changed, dispatch-relevant fields. No-ops on an
// empty change set.
func (s *Syncer) PushUpdate(ctx context.Context, id types.ID, changes order.DispatchChanges) error {
	if changes.Empty() {
		return nil
	}
	fields := updateFields(changes)
	if err := s.provider.UpdateOrder(ctx, id, fields); err != nil {
		s.recordIntent(ctx, Entry{OrderID: id, Kind: KindUpdate, Fields: fields})
		return fmt.Errorf("dispatch update for order %s: %w", id, err)
	}
	return nil
}

func (s *Syncer) recordIntent(ctx context.Context, e Entry) {
	if s.outbox == nil {
		return
	}
	if err := s.outbox.Enqueue(ctx, e); err != nil {
		s.log.Error("queueing dispatch retry intent failed; order left unreconciled",
			zap.String("order_id", string(e.OrderID)), zap.String("kind", string(e.Kind)), zap.Error(err))
	}
}

// updateFields translates a change set into the provider's wire fields.
func updateFields(changes order.DispatchChanges) map[string]interface{} {
	fields := map[string]interface{}{}
	if changes.Status != nil {
		fields["status"] = ProviderStatusToken(*changes.Status)
	}
	if changes.DriverID != nil {
		fields["driverId"] = string(*changes.DriverID)
	}
	if len(changes.ProofOfDelivery) > 0 {
		fields["proofOfDelivery"] = changes.ProofOfDelivery
	}
	return fields
}
