// README: Order aggregate, embedded parties, and required-field defaults.
package order

import (
	"time"

	"courio/internal/types"
)

// PaymentMethod is how the customer pays on delivery.
type PaymentMethod string

const (
	PaymentCash    PaymentMethod = "CASH"
	PaymentCard    PaymentMethod = "CARD"
	PaymentUnknown PaymentMethod = "UNKNOWN"
)

// NormalizePaymentMethod maps any raw payment token to the closed set,
// defaulting to UNKNOWN.
func NormalizePaymentMethod(raw string) PaymentMethod {
	switch canonicalizeToken(raw) {
	case "CASH", "COD", "CASH_ON_DELIVERY":
		return PaymentCash
	case "CARD", "CREDIT_CARD", "ONLINE":
		return PaymentCard
	}
	return PaymentUnknown
}

// Customer is the delivery recipient embedded on the order.
type Customer struct {
	Name    string
	Phone   string
	Address string
	Coords  types.Point
}

// Pickup is the collection point embedded on the order.
type Pickup struct {
	Name    string
	Address string
	Coords  types.Point
}

// Item is a single order line.
type Item struct {
	Name      string
	Quantity  int
	UnitPrice float64
}

// Order is the central entity: one record in the orders collection.
type Order struct {
	ID          types.ID
	OrderNumber string
	// DispatchOrderNumber is the external provider's id for this order;
	// empty until the create sync succeeds, and never reassigned after.
	DispatchOrderNumber string

	Source        string
	OrderType     string
	PaymentMethod PaymentMethod

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

	Status             Status
	CancellationReason string
	RefundAmount       float64

	Timeline           Timeline
	LastStatusChangeAt time.Time
	UpdatedAt          time.Time

	// ProofOfDelivery holds artifact URLs reported by the driver or the
	// dispatch provider (photos, signatures).
	ProofOfDelivery []string
}

const (
	defaultSource    = "dashboard"
	defaultOrderType = "delivery"
)

// applyDefaults fills every required field with an explicit default so a
// persisted document never contains an undefined required field, and so a get
// succeeds even against a malformed legacy document.
func (o *Order) applyDefaults() {
	if !IsCanonical(o.Status) {
		o.Status = Normalize(string(o.Status))
	}
	if o.Source == "" {
		o.Source = defaultSource
	}
	if o.OrderType == "" {
		o.OrderType = defaultOrderType
	}
	if o.PaymentMethod != PaymentCash && o.PaymentMethod != PaymentCard {
		o.PaymentMethod = PaymentUnknown
	}
	if o.Items == nil {
		o.Items = []Item{}
	}
	if o.ProofOfDelivery == nil {
		o.ProofOfDelivery = []string{}
	}
}
