package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"p2px/internal/db"
	"p2px/internal/models"
)

func orderIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

// CreateOrder places a new buy or sell order.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeErrorStatus(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		Side         string          `json:"side"`
		Currency     string          `json:"currency"`
		Fiat         string          `json:"fiat"`
		Amount       decimal.Decimal `json:"amount"`
		PricePerCoin decimal.Decimal `json:"price_per_coin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	side, err := models.ParseSide(req.Side)
	if err != nil {
		h.writeError(w, err)
		return
	}
	currency, err := models.ParseCurrency(req.Currency)
	if err != nil {
		h.writeError(w, err)
		return
	}
	fiat, err := models.ParseFiat(req.Fiat)
	if err != nil {
		h.writeError(w, err)
		return
	}

	order, err := h.DB.CreateOrder(r.Context(), userID, side, currency, fiat, req.Amount, req.PricePerCoin)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"order": order})
}

// ListOrders returns orders matching the query filters.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	var filter db.OrderFilter
	q := r.URL.Query()

	if s := q.Get("side"); s != "" {
		side, err := models.ParseSide(s)
		if err != nil {
			h.writeError(w, err)
			return
		}
		filter.Side = &side
	}
	if c := q.Get("currency"); c != "" {
		currency, err := models.ParseCurrency(c)
		if err != nil {
			h.writeError(w, err)
			return
		}
		filter.Currency = &currency
	}
	if f := q.Get("fiat"); f != "" {
		fiat, err := models.ParseFiat(f)
		if err != nil {
			h.writeError(w, err)
			return
		}
		filter.Fiat = &fiat
	}
	if s := q.Get("status"); s != "" {
		status, err := models.ParseOrderStatus(s)
		if err != nil {
			h.writeError(w, err)
			return
		}
		filter.Status = &status
	}

	orders, err := h.DB.ListOrders(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

// GetUserOrders lists the authenticated user's orders.
func (h *Handler) GetUserOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeErrorStatus(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	orders, err := h.DB.GetUserOrders(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

// UpdateOrderStatus is the owner-only direct status transition.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeErrorStatus(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	orderID, ok := orderIDParam(r)
	if !ok {
		writeErrorStatus(w, http.StatusBadRequest, "Invalid order id")
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	status, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		h.writeError(w, err)
		return
	}

	order, err := h.DB.SetStatus(r.Context(), orderID, userID, status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

// CancelOrder cancels the authenticated user's own ACTIVE order.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeErrorStatus(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	orderID, ok := orderIDParam(r)
	if !ok {
		writeErrorStatus(w, http.StatusBadRequest, "Invalid order id")
		return
	}

	order, err := h.DB.Cancel(r.Context(), orderID, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}
