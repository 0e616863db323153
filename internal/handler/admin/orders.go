package admin

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/dukerupert/verdandi/internal/handler"
	"github.com/dukerupert/verdandi/internal/service"
	"github.com/shopspring/decimal"
)

// OrderHandler serves the order lifecycle commands.
type OrderHandler struct {
	orders      service.OrderService
	payments    service.PaymentTransactionService
	fulfillment service.FulfillmentService
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orders service.OrderService, payments service.PaymentTransactionService, fulfillment service.FulfillmentService) *OrderHandler {
	return &OrderHandler{
		orders:      orders,
		payments:    payments,
		fulfillment: fulfillment,
	}
}

// List handles GET /admin/orders
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseOrderFilter(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	page, err := h.orders.SearchOrders(r.Context(), filter)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	items := make([]orderResponse, len(page.Items))
	for i := range page.Items {
		items[i] = newOrderResponse(&page.Items[i])
	}
	handler.WriteJSON(w, http.StatusOK, domain.Page[orderResponse]{
		Items:      items,
		PageIndex:  page.PageIndex,
		PageSize:   page.PageSize,
		TotalCount: page.TotalCount,
	})
}

func parseOrderFilter(r *http.Request) (domain.OrderFilter, error) {
	const op = "admin.orders.list"
	q := r.URL.Query()
	filter := domain.OrderFilter{
		PaymentStatus:  domain.PaymentStatus(q.Get("payment_status")),
		ShippingStatus: domain.ShippingStatus(q.Get("shipping_status")),
		CustomerID:     q.Get("customer_id"),
		StoreID:        q.Get("store_id"),
		Tag:            q.Get("tag"),
		IncludeDeleted: q.Get("include_deleted") == "true",
	}

	if s := q.Get("order_status"); s != "" {
		status, err := domain.ParseOrderStatus(s)
		if err != nil {
			return filter, err
		}
		filter.OrderStatus = status
	}
	if filter.PaymentStatus != "" && !filter.PaymentStatus.Valid() {
		return filter, domain.Errorf(domain.EINVALID, op, "unknown payment status: %q", filter.PaymentStatus)
	}
	if filter.ShippingStatus != "" && !filter.ShippingStatus.Valid() {
		return filter, domain.Errorf(domain.EINVALID, op, "unknown shipping status: %q", filter.ShippingStatus)
	}

	for key, dst := range map[string]**time.Time{"created_from": &filter.CreatedFrom, "created_to": &filter.CreatedTo} {
		if s := q.Get(key); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return filter, domain.NewValidationError(op, key, "must be an RFC 3339 timestamp")
			}
			*dst = &t
		}
	}

	for key, dst := range map[string]*int{"page": &filter.PageIndex, "page_size": &filter.PageSize} {
		if s := q.Get(key); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				return filter, domain.NewValidationError(op, key, "must be a non-negative integer")
			}
			*dst = n
		}
	}
	return filter, nil
}

type orderDetailResponse struct {
	orderResponse
	Transactions []transactionResponse `json:"payment_transactions"`
	Shipments    []shipmentResponse    `json:"shipments"`
}

// Get handles GET /admin/orders/{id}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	order, err := h.orders.GetOrder(ctx, r.PathValue("id"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	txs, err := h.payments.ListByOrderGUID(ctx, order.OrderGUID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	shipments, err := h.fulfillment.ListShipmentsForOrder(ctx, order.ID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	resp := orderDetailResponse{
		orderResponse: newOrderResponse(order),
		Transactions:  make([]transactionResponse, len(txs)),
		Shipments:     make([]shipmentResponse, len(shipments)),
	}
	for i := range txs {
		resp.Transactions[i] = newTransactionResponse(&txs[i])
	}
	for i := range shipments {
		resp.Shipments[i] = newShipmentResponse(&shipments[i])
	}
	handler.WriteJSON(w, http.StatusOK, resp)
}

type setStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending processing complete cancelled"`
	Notify bool   `json:"notify"`
}

// SetStatus handles POST /admin/orders/{id}/status
func (h *OrderHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if err := handler.DecodeJSON(r, "admin.orders.set_status", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	order, err := h.orders.SetOrderStatus(r.Context(), r.PathValue("id"), domain.OrderStatus(req.Status), req.Notify)
	h.respondOrder(w, r, order, err)
}

type notifyRequest struct {
	Notify bool `json:"notify"`
}

// Cancel handles POST /admin/orders/{id}/cancel
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if err := handler.DecodeJSON(r, "admin.orders.cancel", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	order, err := h.orders.CancelOrder(r.Context(), r.PathValue("id"), req.Notify)
	h.respondOrder(w, r, order, err)
}

// CheckStatus handles POST /admin/orders/{id}/check-status
func (h *OrderHandler) CheckStatus(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.CheckOrderStatus(r.Context(), r.PathValue("id"))
	h.respondOrder(w, r, order, err)
}

// Delete handles DELETE /admin/orders/{id}
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.DeleteOrder(r.Context(), r.PathValue("id")); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type insertItemRequest struct {
	ProductID        string                   `json:"product_id" validate:"required"`
	ProductName      string                   `json:"product_name"`
	SKU              string                   `json:"sku"`
	WarehouseID      string                   `json:"warehouse_id"`
	Attributes       []domain.CustomAttribute `json:"attributes"`
	Quantity         int                      `json:"quantity" validate:"gt=0"`
	UnitPriceInclTax decimal.Decimal          `json:"unit_price_incl_tax"`
	UnitPriceExclTax decimal.Decimal          `json:"unit_price_excl_tax"`
	DiscountAmount   decimal.Decimal          `json:"discount_amount"`
	IsGiftVoucher    bool                     `json:"is_gift_voucher"`
}

// InsertItem handles POST /admin/orders/{id}/items
func (h *OrderHandler) InsertItem(w http.ResponseWriter, r *http.Request) {
	var req insertItemRequest
	if err := handler.DecodeJSON(r, "admin.orders.insert_item", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	order, err := h.orders.InsertOrderItem(r.Context(), r.PathValue("id"), service.InsertOrderItemParams{
		ProductID:        req.ProductID,
		ProductName:      req.ProductName,
		SKU:              req.SKU,
		WarehouseID:      req.WarehouseID,
		Attributes:       req.Attributes,
		Quantity:         req.Quantity,
		UnitPriceInclTax: req.UnitPriceInclTax,
		UnitPriceExclTax: req.UnitPriceExclTax,
		DiscountAmount:   req.DiscountAmount,
		IsGiftVoucher:    req.IsGiftVoucher,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusCreated, newOrderResponse(order))
}

type updateItemRequest struct {
	Quantity         int              `json:"quantity" validate:"gt=0"`
	UnitPriceInclTax *decimal.Decimal `json:"unit_price_incl_tax"`
	UnitPriceExclTax *decimal.Decimal `json:"unit_price_excl_tax"`
	DiscountAmount   *decimal.Decimal `json:"discount_amount"`
}

// UpdateItem handles PUT /admin/orders/{id}/items/{itemID}
func (h *OrderHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if err := handler.DecodeJSON(r, "admin.orders.update_item", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	order, err := h.orders.UpdateOrderItem(r.Context(), r.PathValue("id"), r.PathValue("itemID"), service.UpdateOrderItemParams{
		Quantity:         req.Quantity,
		UnitPriceInclTax: req.UnitPriceInclTax,
		UnitPriceExclTax: req.UnitPriceExclTax,
		DiscountAmount:   req.DiscountAmount,
	})
	h.respondOrder(w, r, order, err)
}

type quantityRequest struct {
	Quantity int `json:"quantity" validate:"gt=0"`
}

// CancelItem handles POST /admin/orders/{id}/items/{itemID}/cancel
func (h *OrderHandler) CancelItem(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := handler.DecodeJSON(r, "admin.orders.cancel_item", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	order, err := h.orders.CancelOrderItem(r.Context(), r.PathValue("id"), r.PathValue("itemID"), req.Quantity)
	h.respondOrder(w, r, order, err)
}

// ReturnItem handles POST /admin/orders/{id}/items/{itemID}/return
func (h *OrderHandler) ReturnItem(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := handler.DecodeJSON(r, "admin.orders.return_item", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	order, err := h.fulfillment.ReturnOrderItem(r.Context(), r.PathValue("id"), r.PathValue("itemID"), req.Quantity)
	h.respondOrder(w, r, order, err)
}

func (h *OrderHandler) respondOrder(w http.ResponseWriter, r *http.Request, order *domain.Order, err error) {
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, newOrderResponse(order))
}
