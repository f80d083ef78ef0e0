// README: Order handlers for CRUD, lifecycle actions, query, stats, and search.
package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"courio/internal/modules/order"
	"courio/internal/types"
)

type OrderHandler struct {
	orders *order.Service
}

func NewOrderHandler(svc *order.Service) *OrderHandler {
	return &OrderHandler{orders: svc}
}

type pointReq struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type itemReq struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

type createOrderReq struct {
	Source        string `json:"source"`
	OrderType     string `json:"orderType"`
	PaymentMethod string `json:"paymentMethod"`
	Status        string `json:"status"`

	BusinessID string `json:"businessId"`
	DriverID   string `json:"driverId"`

	CustomerName    string   `json:"customerName"`
	CustomerPhone   string   `json:"customerPhone"`
	CustomerAddress string   `json:"customerAddress"`
	CustomerCoords  pointReq `json:"customerCoords"`
	PickupName      string   `json:"pickupName"`
	PickupAddress   string   `json:"pickupAddress"`
	PickupCoords    pointReq `json:"pickupCoords"`

	Items           []itemReq `json:"items"`
	TotalOrderValue float64   `json:"totalOrderValue"`
	DeliveryFee     float64   `json:"deliveryFee"`
	Tip             float64   `json:"tip"`
	Tax             float64   `json:"tax"`
	Discount        float64   `json:"discount"`
	AmountToCollect float64   `json:"amountToCollect"`
	TotalAmount     float64   `json:"totalAmount"`
}

func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.BusinessID == "" {
		writeError(c, http.StatusBadRequest, "missing businessId")
		return
	}
	items := make([]order.Item, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, order.Item{Name: it.Name, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	id, err := h.orders.Create(c.Request.Context(), order.CreateCommand{
		Source:        req.Source,
		OrderType:     req.OrderType,
		PaymentMethod: req.PaymentMethod,
		Status:        req.Status,
		BusinessID:    types.ID(req.BusinessID),
		DriverID:      types.ID(req.DriverID),
		Customer: order.Customer{
			Name:    req.CustomerName,
			Phone:   req.CustomerPhone,
			Address: req.CustomerAddress,
			Coords:  types.Point{Lat: req.CustomerCoords.Lat, Lng: req.CustomerCoords.Lng},
		},
		Pickup: order.Pickup{
			Name:    req.PickupName,
			Address: req.PickupAddress,
			Coords:  types.Point{Lat: req.PickupCoords.Lat, Lng: req.PickupCoords.Lng},
		},
		Items:           items,
		TotalOrderValue: req.TotalOrderValue,
		DeliveryFee:     req.DeliveryFee,
		Tip:             req.Tip,
		Tax:             req.Tax,
		Discount:        req.Discount,
		AmountToCollect: req.AmountToCollect,
		TotalAmount:     req.TotalAmount,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"orderId": id})
}

func (h *OrderHandler) Get(c *gin.Context) {
	o, err := h.orders.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, orderToResponse(o))
}

type updateOrderReq struct {
	Status             *string  `json:"status"`
	DriverID           *string  `json:"driverId"`
	PaymentMethod      *string  `json:"paymentMethod"`
	CancellationReason *string  `json:"cancellationReason"`
	RefundAmount       *float64 `json:"refundAmount"`
	Tip                *float64 `json:"tip"`
	AmountToCollect    *float64 `json:"amountToCollect"`
	ProofOfDelivery    []string `json:"proofOfDelivery"`
}

func (h *OrderHandler) Update(c *gin.Context) {
	var req updateOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd := order.UpdateCommand{
		Status:             req.Status,
		PaymentMethod:      req.PaymentMethod,
		CancellationReason: req.CancellationReason,
		RefundAmount:       req.RefundAmount,
		Tip:                req.Tip,
		AmountToCollect:    req.AmountToCollect,
		ProofOfDelivery:    req.ProofOfDelivery,
	}
	if req.DriverID != nil {
		d := types.ID(*req.DriverID)
		cmd.DriverID = &d
	}
	if err := h.orders.Update(c.Request.Context(), types.ID(c.Param("id")), cmd); err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"updated": true})
}

func (h *OrderHandler) Delete(c *gin.Context) {
	if err := h.orders.Delete(c.Request.Context(), types.ID(c.Param("id"))); err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"deleted": true})
}

type statusReq struct {
	Status string `json:"status"`
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var req statusReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		writeError(c, http.StatusBadRequest, "missing status")
		return
	}
	if err := h.orders.UpdateStatus(c.Request.Context(), types.ID(c.Param("id")), req.Status); err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"updated": true})
}

type assignReq struct {
	DriverID string `json:"driverId"`
}

func (h *OrderHandler) AssignDriver(c *gin.Context) {
	var req assignReq
	if err := c.ShouldBindJSON(&req); err != nil || req.DriverID == "" {
		writeError(c, http.StatusBadRequest, "missing driverId")
		return
	}
	if err := h.orders.AssignDriver(c.Request.Context(), types.ID(c.Param("id")), types.ID(req.DriverID)); err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"assigned": true})
}

type cancelReq struct {
	Reason       string  `json:"reason"`
	RefundAmount float64 `json:"refundAmount"`
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	var req cancelReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.orders.CancelOrder(c.Request.Context(), types.ID(c.Param("id")), req.Reason, req.RefundAmount); err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"cancelled": true})
}

func (h *OrderHandler) List(c *gin.Context) {
	f, pageSize, cursor, ok := parseFilter(c)
	if !ok {
		return
	}
	orders, next, err := h.orders.Query(c.Request.Context(), f, pageSize, cursor)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, listResponse(orders, next))
}

func (h *OrderHandler) Active(c *gin.Context) {
	f, pageSize, cursor, ok := parseFilter(c)
	if !ok {
		return
	}
	orders, next, err := h.orders.GetActiveOrders(c.Request.Context(), f, pageSize, cursor)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, listResponse(orders, next))
}

func (h *OrderHandler) Stats(c *gin.Context) {
	f, _, _, ok := parseFilter(c)
	if !ok {
		return
	}
	stats, err := h.orders.GetOrderStats(c.Request.Context(), f)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, stats)
}

func (h *OrderHandler) Search(c *gin.Context) {
	term := c.Query("q")
	limit, _ := strconv.Atoi(c.Query("limit"))
	orders, err := h.orders.SearchOrders(c.Request.Context(), types.ID(c.Query("businessId")), term, limit)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, listResponse(orders, ""))
}

// parseFilter reads the structured filter from query parameters. Comma lists
// are accepted for multi-valued fields.
func parseFilter(c *gin.Context) (order.Filter, int, string, bool) {
	var f order.Filter
	for _, raw := range splitList(c.Query("status")) {
		st, valid := order.ParseStatus(raw)
		if !valid {
			writeError(c, http.StatusBadRequest, "unknown status "+raw)
			return f, 0, "", false
		}
		f.Statuses = append(f.Statuses, st)
	}
	for _, raw := range splitList(c.Query("paymentMethod")) {
		f.PaymentMethods = append(f.PaymentMethods, order.NormalizePaymentMethod(raw))
	}
	f.BusinessID = types.ID(c.Query("businessId"))
	f.DriverID = types.ID(c.Query("driverId"))
	f.Source = c.Query("source")
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(c, http.StatusBadRequest, "invalid from timestamp")
			return f, 0, "", false
		}
		f.CreatedFrom = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(c, http.StatusBadRequest, "invalid to timestamp")
			return f, 0, "", false
		}
		f.CreatedTo = t
	}
	pageSize, _ := strconv.Atoi(c.Query("pageSize"))
	return f, pageSize, c.Query("cursor"), true
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type orderResponse struct {
	ID                  string  `json:"id"`
	OrderNumber         string  `json:"orderNumber"`
	DispatchOrderNumber string  `json:"dispatchOrderNumber,omitempty"`
	Status              string  `json:"status"`
	Source              string  `json:"source"`
	OrderType           string  `json:"orderType"`
	PaymentMethod       string  `json:"paymentMethod"`
	BusinessID          string  `json:"businessId"`
	DriverID            string  `json:"driverId,omitempty"`
	CustomerName        string  `json:"customerName"`
	CustomerPhone       string  `json:"customerPhone"`
	CustomerAddress     string  `json:"customerAddress"`
	PickupName          string  `json:"pickupName"`
	PickupAddress       string  `json:"pickupAddress"`
	TotalOrderValue     float64 `json:"totalOrderValue"`
	DeliveryFee         float64 `json:"deliveryFee"`
	Tip                 float64 `json:"tip"`
	Tax                 float64 `json:"tax"`
	Discount            float64 `json:"discount"`
	AmountToCollect     float64 `json:"amountToCollect"`
	TotalAmount         float64 `json:"totalAmount"`
	CancellationReason  string  `json:"cancellationReason,omitempty"`
	RefundAmount        float64 `json:"refundAmount,omitempty"`

	CreatedAt          time.Time  `json:"createdAt"`
	AssignedAt         *time.Time `json:"assignedAt,omitempty"`
	StartedAt          *time.Time `json:"startedAt,omitempty"`
	PickedUpAt         *time.Time `json:"pickedUpAt,omitempty"`
	ArrivedAt          *time.Time `json:"arrivedAt,omitempty"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
	CancelledAt        *time.Time `json:"cancelledAt,omitempty"`
	LastStatusChangeAt time.Time  `json:"lastStatusChangeAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

func orderToResponse(o *order.Order) orderResponse {
	return orderResponse{
		ID:                  string(o.ID),
		OrderNumber:         o.OrderNumber,
		DispatchOrderNumber: o.DispatchOrderNumber,
		Status:              string(o.Status),
		Source:              o.Source,
		OrderType:           o.OrderType,
		PaymentMethod:       string(o.PaymentMethod),
		BusinessID:          string(o.BusinessID),
		DriverID:            string(o.DriverID),
		CustomerName:        o.Customer.Name,
		CustomerPhone:       o.Customer.Phone,
		CustomerAddress:     o.Customer.Address,
		PickupName:          o.Pickup.Name,
		PickupAddress:       o.Pickup.Address,
		TotalOrderValue:     o.TotalOrderValue,
		DeliveryFee:         o.DeliveryFee,
		Tip:                 o.Tip,
		Tax:                 o.Tax,
		Discount:            o.Discount,
		AmountToCollect:     o.AmountToCollect,
		TotalAmount:         o.TotalAmount,
		CancellationReason:  o.CancellationReason,
		RefundAmount:        o.RefundAmount,
		CreatedAt:           o.Timeline.CreatedAt,
		AssignedAt:          o.Timeline.AssignedAt,
		StartedAt:           o.Timeline.StartedAt,
		PickedUpAt:          o.Timeline.PickedUpAt,
		ArrivedAt:           o.Timeline.ArrivedAt,
		CompletedAt:         o.Timeline.CompletedAt,
		CancelledAt:         o.Timeline.CancelledAt,
		LastStatusChangeAt:  o.LastStatusChangeAt,
		UpdatedAt:           o.UpdatedAt,
	}
}

func listResponse(orders []*order.Order, next string) gin.H {
	items := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		items = append(items, orderToResponse(o))
	}
	resp := gin.H{"orders": items}
	if next != "" {
		resp["nextCursor"] = next
	}
	return resp
}
