// README: Wire codec between Firestore document data and the Order aggregate.
package order

import (
	"time"

	"courio/internal/types"
)

// orderFromDoc decodes raw Firestore document data field by field, filling an
// explicit default for every required field. Legacy documents written by
// older code paths may miss fields or carry loose types (int64 where float64
// is expected, strings in any status vocabulary); decoding tolerates all of
// that and never fails. The stored status is re-normalized on every read.
func orderFromDoc(id types.ID, data map[string]interface{}) *Order {
	o := &Order{
		ID:                  id,
		OrderNumber:         docString(data, "orderNumber"),
		DispatchOrderNumber: docString(data, "dispatchOrderNumber"),
		Source:              docString(data, "source"),
		OrderType:           docString(data, "orderType"),
		PaymentMethod:       NormalizePaymentMethod(docString(data, "paymentMethod")),
		BusinessID:          types.ID(docString(data, "businessId")),
		DriverID:            types.ID(docString(data, "driverId")),
		Customer: Customer{
			Name:    docString(data, "customerName"),
			Phone:   docString(data, "customerPhone"),
			Address: docString(data, "customerAddress"),
			Coords:  docPoint(data, "customerLat", "customerLng"),
		},
		Pickup: Pickup{
			Name:    docString(data, "pickupName"),
			Address: docString(data, "pickupAddress"),
			Coords:  docPoint(data, "pickupLat", "pickupLng"),
		},
		Items:              docItems(data, "items"),
		TotalOrderValue:    docFloat(data, "totalOrderValue"),
		DeliveryFee:        docFloat(data, "deliveryFee"),
		Tip:                docFloat(data, "tip"),
		Tax:                docFloat(data, "tax"),
		Discount:           docFloat(data, "discount"),
		AmountToCollect:    docFloat(data, "amountToCollect"),
		TotalAmount:        docFloat(data, "totalAmount"),
		Status:             Normalize(docString(data, "status")),
		CancellationReason: docString(data, "cancellationReason"),
		RefundAmount:       docFloat(data, "refundAmount"),
		Timeline: Timeline{
			CreatedAt:   docTime(data, "createdAt"),
			AssignedAt:  docTimePtr(data, FieldAssignedAt),
			StartedAt:   docTimePtr(data, FieldStartedAt),
			PickedUpAt:  docTimePtr(data, FieldPickedUpAt),
			ArrivedAt:   docTimePtr(data, FieldArrivedAt),
			CompletedAt: docTimePtr(data, FieldCompletedAt),
			CancelledAt: docTimePtr(data, FieldCancelledAt),
		},
		LastStatusChangeAt: docTime(data, FieldLastStatusChangeAt),
		UpdatedAt:          docTime(data, "updatedAt"),
		ProofOfDelivery:    docStrings(data, "proofOfDelivery"),
	}
	o.applyDefaults()
	return o
}

// docFromOrder encodes an Order into its wire map. Every required field is
// written explicitly; nil timeline fields are omitted rather than written as
// null so the write-once merge semantics hold.
func docFromOrder(o *Order) map[string]interface{} {
	doc := map[string]interface{}{
		"orderNumber":         o.OrderNumber,
		"dispatchOrderNumber": o.DispatchOrderNumber,
		"source":              o.Source,
		"orderType":           o.OrderType,
		"paymentMethod":       string(o.PaymentMethod),
		"businessId":          string(o.BusinessID),
		"driverId":            string(o.DriverID),
		"customerName":        o.Customer.Name,
		"customerPhone":       o.Customer.Phone,
		"customerAddress":     o.Customer.Address,
		"customerLat":         o.Customer.Coords.Lat,
		"customerLng":         o.Customer.Coords.Lng,
		"pickupName":          o.Pickup.Name,
		"pickupAddress":       o.Pickup.Address,
		"pickupLat":           o.Pickup.Coords.Lat,
		"pickupLng":           o.Pickup.Coords.Lng,
		"items":               itemsToDoc(o.Items),
		"totalOrderValue":     o.TotalOrderValue,
		"deliveryFee":         o.DeliveryFee,
		"tip":                 o.Tip,
		"tax":                 o.Tax,
		"discount":            o.Discount,
		"amountToCollect":     o.AmountToCollect,
		"totalAmount":         o.TotalAmount,
		"status":              string(o.Status),
		"cancellationReason":  o.CancellationReason,
		"refundAmount":        o.RefundAmount,
		"createdAt":           o.Timeline.CreatedAt,
		"lastStatusChangeAt":  o.LastStatusChangeAt,
		"updatedAt":           o.UpdatedAt,
		"proofOfDelivery":     o.ProofOfDelivery,
	}
	putTime := func(field string, ts *time.Time) {
		if ts != nil {
			doc[field] = *ts
		}
	}
	putTime(FieldAssignedAt, o.Timeline.AssignedAt)
	putTime(FieldStartedAt, o.Timeline.StartedAt)
	putTime(FieldPickedUpAt, o.Timeline.PickedUpAt)
	putTime(FieldArrivedAt, o.Timeline.ArrivedAt)
	putTime(FieldCompletedAt, o.Timeline.CompletedAt)
	putTime(FieldCancelledAt, o.Timeline.CancelledAt)
	return doc
}

func itemsToDoc(items []Item) []interface{} {
	out := make([]interface{}, 0, len(items))
	for _, it := range items {
		out = append(out, map[string]interface{}{
			"name":      it.Name,
			"quantity":  int64(it.Quantity),
			"unitPrice": it.UnitPrice,
		})
	}
	return out
}

func docString(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func docFloat(data map[string]interface{}, key string) float64 {
	switch v := data[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

func docInt(data map[string]interface{}, key string) int {
	switch v := data[key].(type) {
	case int64:
		return int(v)
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func docTime(data map[string]interface{}, key string) time.Time {
	if v, ok := data[key].(time.Time); ok {
		return v
	}
	return time.Time{}
}

func docTimePtr(data map[string]interface{}, key string) *time.Time {
	if v, ok := data[key].(time.Time); ok && !v.IsZero() {
		t := v
		return &t
	}
	return nil
}

func docPoint(data map[string]interface{}, latKey, lngKey string) types.Point {
	return types.Point{Lat: docFloat(data, latKey), Lng: docFloat(data, lngKey)}
}

func docStrings(data map[string]interface{}, key string) []string {
	raw, ok := data[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func docItems(data map[string]interface{}, key string) []Item {
	raw, ok := data[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]Item, 0, len(raw))
	for _, v := range raw {
		m, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, Item{
			Name:      docString(m, "name"),
			Quantity:  docInt(m, "quantity"),
			UnitPrice: docFloat(m, "unitPrice"),
		})
	}
	return out
}
