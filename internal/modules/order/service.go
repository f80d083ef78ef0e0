// README: Order service; canonical write path, timeline merge, and dispatch mirroring.
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"courio/internal/types"
)

var (
	ErrNotFound      = errors.New("order not found")
	ErrBadRequest    = errors.New("bad request")
	ErrInvalidStatus = errors.New("status not in canonical set")
	ErrConflict      = errors.New("order state conflict")
)

// Dispatcher mirrors local writes to the external dispatch provider. Calls
// are fire-and-forget relative to the local write: the service logs failures
// and never rolls back or blocks local persistence on them.
type Dispatcher interface {
	PushCreate(ctx context.Context, id types.ID, o *Order) error
	PushUpdate(ctx context.Context, id types.ID, changes DispatchChanges) error
}

// DispatchChanges carries only the changed fields the provider cares about.
type DispatchChanges struct {
	Status          *Status
	DriverID        *types.ID
	ProofOfDelivery []string
}

// Empty reports whether there is nothing to push.
func (c DispatchChanges) Empty() bool {
	return c.Status == nil && c.DriverID == nil && len(c.ProofOfDelivery) == 0
}

// Geocoder resolves a street address to coordinates (best effort).
type Geocoder interface {
	Geocode(ctx context.Context, address string) (types.Point, error)
}

type Service struct {
	store    Store
	dispatch Dispatcher
	geocoder Geocoder
	log      *zap.Logger
	now      func() time.Time
}

func NewService(store Store, dispatch Dispatcher, geocoder Geocoder, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:    store,
		dispatch: dispatch,
		geocoder: geocoder,
		log:      log,
		now:      time.Now,
	}
}

// CreateCommand carries caller-supplied order fields. Missing required fields
// get explicit defaults; Status may be in any known vocabulary.
type CreateCommand struct {
	Source        string
	OrderType     string
	PaymentMethod string
	Status        string

	BusinessID types.ID
	DriverID   types.ID
	Customer   Customer
	Pickup     Pickup

	Items           []Item
	TotalOrderValue float64
	DeliveryFee     float64
	Tip             float64
	Tax             float64
	Discount        float64
	AmountToCollect float64
	TotalAmount     float64
}

// Create persists a new order with every required field defaulted, the status
// normalized, and createdAt/updatedAt/lastStatusChangeAt set to now, then
// mirrors it to the dispatch provider. Dispatch failures are logged and leave
// the order locally valid but unsynced.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (types.ID, error) {
	if cmd.BusinessID == "" {
		return "", fmt.Errorf("%w: business id is required", ErrBadRequest)
	}
	now := s.now()
	o := &Order{
		OrderNumber:        newOrderNumber(now),
		Source:             cmd.Source,
		OrderType:          cmd.OrderType,
		PaymentMethod:      NormalizePaymentMethod(cmd.PaymentMethod),
		BusinessID:         cmd.BusinessID,
		DriverID:           cmd.DriverID,
		Customer:           cmd.Customer,
		Pickup:             cmd.Pickup,
		Items:              cmd.Items,
		TotalOrderValue:    cmd.TotalOrderValue,
		DeliveryFee:        cmd.DeliveryFee,
		Tip:                cmd.Tip,
		Tax:                cmd.Tax,
		Discount:           cmd.Discount,
		AmountToCollect:    cmd.AmountToCollect,
		TotalAmount:        cmd.TotalAmount,
		Status:             Normalize(cmd.Status),
		Timeline:           Timeline{CreatedAt: now},
		LastStatusChangeAt: now,
		UpdatedAt:          now,
	}
	o.applyDefaults()
	s.geocodeMissing(ctx, o)

	// An order created directly in a later lifecycle state still gets its
	// milestone timestamps.
	o.Timeline = o.Timeline.apply(TimelineUpdates(o.Status, o.Timeline, now))

	id, err := s.store.Create(ctx, o)
	if err != nil {
		return "", err
	}
	o.ID = id

	if s.dispatch != nil {
		if err := s.dispatch.PushCreate(ctx, id, o); err != nil {
			s.log.Warn("dispatch create sync failed; order remains unsynced",
				zap.String("order_id", string(id)), zap.Error(err))
		}
	}
	return id, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: missing order id", ErrBadRequest)
	}
	return s.store.Get(ctx, id)
}

// GetByDispatchNumber resolves an order by the provider's order number; used
// by webhook callbacks that only carry the provider id.
func (s *Service) GetByDispatchNumber(ctx context.Context, dispatchNo string) (*Order, error) {
	if dispatchNo == "" {
		return nil, fmt.Errorf("%w: missing dispatch order number", ErrBadRequest)
	}
	return s.store.FindByDispatchNumber(ctx, dispatchNo)
}

// UpdateCommand is a partial change set. Nil pointers mean "leave unchanged".
type UpdateCommand struct {
	Status             *string
	DriverID           *types.ID
	PaymentMethod      *string
	CancellationReason *string
	RefundAmount       *float64
	Tip                *float64
	AmountToCollect    *float64
	ProofOfDelivery    []string

	// At overrides the transition time; webhook callbacks pass the
	// provider's event timestamp here.
	At *time.Time

	// FromSync marks changes that originated at the dispatch provider, so
	// they are not echoed back outward.
	FromSync bool
}

// Update applies a partial change set to an order. The resulting status must
// be resolvable to the canonical set or the whole update is rejected (fails
// closed), and a terminal order rejects any further status change with
// ErrConflict. Timeline timestamps are merged per policy, and the change is
// mirrored to the dispatch provider only when status or driver actually
// changed and the change did not itself come from sync.
func (s *Service) Update(ctx context.Context, id types.ID, cmd UpdateCommand) error {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	newStatus := existing.Status
	if cmd.Status != nil {
		parsed, ok := ParseStatus(*cmd.Status)
		if !ok {
			return fmt.Errorf("%w: %q", ErrInvalidStatus, *cmd.Status)
		}
		newStatus = parsed
	}
	if newStatus != existing.Status && IsTerminal(existing.Status) {
		return fmt.Errorf("%w: order already %s", ErrConflict, existing.Status)
	}

	// updatedAt records the local write time; the timeline is stamped with
	// now, which a provider callback may override via At.
	wall := s.now()
	now := wall
	if cmd.At != nil && !cmd.At.IsZero() {
		now = *cmd.At
	}

	fields := map[string]interface{}{"updatedAt": wall}

	statusChanged := cmd.Status != nil && newStatus != existing.Status
	if cmd.Status != nil {
		fields["status"] = string(newStatus)
		for field, ts := range TimelineUpdates(newStatus, existing.Timeline, now) {
			fields[field] = ts
		}
	}

	driverChanged := cmd.DriverID != nil && *cmd.DriverID != existing.DriverID
	if driverChanged {
		fields["driverId"] = string(*cmd.DriverID)
	}
	if cmd.PaymentMethod != nil {
		fields["paymentMethod"] = string(NormalizePaymentMethod(*cmd.PaymentMethod))
	}
	if cmd.CancellationReason != nil {
		fields["cancellationReason"] = *cmd.CancellationReason
	}
	if cmd.RefundAmount != nil {
		fields["refundAmount"] = *cmd.RefundAmount
	}
	if cmd.Tip != nil {
		fields["tip"] = *cmd.Tip
	}
	if cmd.AmountToCollect != nil {
		fields["amountToCollect"] = *cmd.AmountToCollect
	}
	if len(cmd.ProofOfDelivery) > 0 {
		fields["proofOfDelivery"] = append(existing.ProofOfDelivery, cmd.ProofOfDelivery...)
	}

	if err := s.store.UpdateFields(ctx, id, fields); err != nil {
		return err
	}

	if cmd.FromSync || s.dispatch == nil || (!statusChanged && !driverChanged) {
		return nil
	}
	changes := DispatchChanges{ProofOfDelivery: cmd.ProofOfDelivery}
	if statusChanged {
		st := newStatus
		changes.Status = &st
	}
	if driverChanged {
		changes.DriverID = cmd.DriverID
	}
	if err := s.dispatch.PushUpdate(ctx, id, changes); err != nil {
		s.log.Warn("dispatch update sync failed; local write kept",
			zap.String("order_id", string(id)), zap.Error(err))
	}
	return nil
}

// UpdateStatus is the single-field convenience used by driver and admin flows.
func (s *Service) UpdateStatus(ctx context.Context, id types.ID, rawStatus string) error {
	return s.Update(ctx, id, UpdateCommand{Status: &rawStatus})
}

// AssignDriver attaches a driver and moves the order into the started leg.
func (s *Service) AssignDriver(ctx context.Context, id types.ID, driverID types.ID) error {
	if driverID == "" {
		return fmt.Errorf("%w: missing driver id", ErrBadRequest)
	}
	status := "ASSIGNED"
	return s.Update(ctx, id, UpdateCommand{Status: &status, DriverID: &driverID})
}

// CancelOrder moves the order to CANCELLED with a reason and optional refund.
func (s *Service) CancelOrder(ctx context.Context, id types.ID, reason string, refundAmount float64) error {
	status := string(StatusCancelled)
	return s.Update(ctx, id, UpdateCommand{
		Status:             &status,
		CancellationReason: &reason,
		RefundAmount:       &refundAmount,
	})
}

// Delete removes the local record. The dispatch-provider mirror is left
// untouched on purpose; operators reconcile orphaned provider orders
// out-of-band. The warn log keeps the asymmetry visible.
func (s *Service) Delete(ctx context.Context, id types.ID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Warn("order deleted locally; dispatch mirror not removed",
		zap.String("order_id", string(id)))
	return nil
}

// Query runs the structured filter with cursor pagination, newest first.
func (s *Service) Query(ctx context.Context, f Filter, pageSize int, cursor string) ([]*Order, string, error) {
	return s.store.Query(ctx, f, pageSize, cursor)
}

// GetActiveOrders returns orders in any non-terminal state.
func (s *Service) GetActiveOrders(ctx context.Context, f Filter, pageSize int, cursor string) ([]*Order, string, error) {
	f.Statuses = ActiveStatuses
	return s.store.Query(ctx, f, pageSize, cursor)
}

// statsPageSize bounds each page while draining the filtered set for stats.
const statsPageSize = 200

// GetOrderStats drains the filtered order set and reduces it to operational
// metrics.
func (s *Service) GetOrderStats(ctx context.Context, f Filter) (Stats, error) {
	var all []*Order
	cursor := ""
	for {
		batch, next, err := s.store.Query(ctx, f, statsPageSize, cursor)
		if err != nil {
			return Stats{}, err
		}
		all = append(all, batch...)
		if next == "" {
			break
		}
		cursor = next
	}
	return AggregateStats(all), nil
}

func (s *Service) geocodeMissing(ctx context.Context, o *Order) {
	if s.geocoder == nil {
		return
	}
	resolve := func(p *types.Point, address, which string) {
		if !p.IsZero() || address == "" {
			return
		}
		pt, err := s.geocoder.Geocode(ctx, address)
		if err != nil {
			s.log.Debug("geocoding failed", zap.String("which", which), zap.Error(err))
			return
		}
		*p = pt
	}
	resolve(&o.Customer.Coords, o.Customer.Address, "customer")
	resolve(&o.Pickup.Coords, o.Pickup.Address, "pickup")
}

// newOrderNumber builds the human-readable order number, e.g. CO-20260831-1A2B3C4D.
func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("CO-%s-%s", now.Format("20060102"), suffix)
}
