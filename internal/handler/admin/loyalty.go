package admin

import (
	"context"
	"net/http"

	"github.com/dukerupert/verdandi/internal/handler"
	"github.com/dukerupert/verdandi/internal/service"
)

// LoyaltyHandler serves the points ledger operations.
type LoyaltyHandler struct {
	loyalty service.LoyaltyService
}

// NewLoyaltyHandler creates a new loyalty handler
func NewLoyaltyHandler(loyalty service.LoyaltyService) *LoyaltyHandler {
	return &LoyaltyHandler{loyalty: loyalty}
}

type pointsResponse struct {
	OrderID string `json:"order_id"`
	Points  int    `json:"points"`
}

// Award handles POST /admin/orders/{id}/loyalty/award
func (h *LoyaltyHandler) Award(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.loyalty.AwardLoyaltyPoints)
}

// Reduce handles POST /admin/orders/{id}/loyalty/reduce
func (h *LoyaltyHandler) Reduce(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.loyalty.ReduceLoyaltyPoints)
}

// ReturnRedeemed handles POST /admin/orders/{id}/loyalty/return-redeemed
func (h *LoyaltyHandler) ReturnRedeemed(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.loyalty.ReturnBackRedeemedLoyaltyPoints)
}

func (h *LoyaltyHandler) run(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (int, error)) {
	orderID := r.PathValue("id")
	points, err := op(r.Context(), orderID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, pointsResponse{OrderID: orderID, Points: points})
}

type customerLoyaltyResponse struct {
	CustomerID string                `json:"customer_id"`
	StoreID    string                `json:"store_id,omitempty"`
	Balance    int                   `json:"balance"`
	History    []ledgerEntryResponse `json:"history"`
}

// Customer handles GET /admin/customers/{id}/loyalty?store_id=
func (h *LoyaltyHandler) Customer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID := r.PathValue("id")
	storeID := r.URL.Query().Get("store_id")

	balance, err := h.loyalty.Balance(ctx, customerID, storeID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	history, err := h.loyalty.History(ctx, customerID, storeID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	resp := customerLoyaltyResponse{
		CustomerID: customerID,
		StoreID:    storeID,
		Balance:    balance,
		History:    make([]ledgerEntryResponse, len(history)),
	}
	for i, e := range history {
		resp.History[i] = newLedgerEntryResponse(e)
	}
	handler.WriteJSON(w, http.StatusOK, resp)
}
