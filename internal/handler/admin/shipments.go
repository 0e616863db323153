package admin

import (
	"net/http"

	"github.com/dukerupert/verdandi/internal/handler"
	"github.com/dukerupert/verdandi/internal/service"
)

// ShipmentHandler creates and advances shipments.
type ShipmentHandler struct {
	fulfillment service.FulfillmentService
}

// NewShipmentHandler creates a new shipment handler
func NewShipmentHandler(fulfillment service.FulfillmentService) *ShipmentHandler {
	return &ShipmentHandler{fulfillment: fulfillment}
}

type shipmentLine struct {
	OrderItemID string `json:"order_item_id" validate:"required"`
	Quantity    int    `json:"quantity" validate:"gt=0"`
}

type createShipmentRequest struct {
	Items          []shipmentLine `json:"items" validate:"required,min=1,dive"`
	Carrier        string         `json:"carrier"`
	TrackingNumber string         `json:"tracking_number"`
}

// Create handles POST /admin/orders/{id}/shipments
func (h *ShipmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createShipmentRequest
	if err := handler.DecodeJSON(r, "admin.shipments.create", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	params := service.CreateShipmentParams{
		OrderID:        r.PathValue("id"),
		Carrier:        req.Carrier,
		TrackingNumber: req.TrackingNumber,
		Items:          make([]service.ShipmentItemParams, len(req.Items)),
	}
	for i, line := range req.Items {
		params.Items[i] = service.ShipmentItemParams{OrderItemID: line.OrderItemID, Quantity: line.Quantity}
	}

	shipment, err := h.fulfillment.CreateShipment(r.Context(), params)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusCreated, newShipmentResponse(shipment))
}

// Ship handles POST /admin/shipments/{id}/ship
func (h *ShipmentHandler) Ship(w http.ResponseWriter, r *http.Request) {
	shipment, err := h.fulfillment.MarkShipped(r.Context(), r.PathValue("id"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, newShipmentResponse(shipment))
}

// Deliver handles POST /admin/shipments/{id}/deliver
func (h *ShipmentHandler) Deliver(w http.ResponseWriter, r *http.Request) {
	shipment, err := h.fulfillment.MarkDelivered(r.Context(), r.PathValue("id"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, newShipmentResponse(shipment))
}
