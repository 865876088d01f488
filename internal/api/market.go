package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"p2px/internal/models"
)

// GetMarketData returns the best bid/ask, spread and volume stats for a
// currency.
func (h *Handler) GetMarketData(w http.ResponseWriter, r *http.Request) {
	currency, err := models.ParseCurrency(chi.URLParam(r, "currency"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	data, err := h.Market.Snapshot(r.Context(), currency)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// GetBuyOrders lists the ACTIVE bid side of the book in priority order.
func (h *Handler) GetBuyOrders(w http.ResponseWriter, r *http.Request) {
	h.activeOrders(w, r, models.SideBuy)
}

// GetSellOrders lists the ACTIVE ask side of the book in priority order.
func (h *Handler) GetSellOrders(w http.ResponseWriter, r *http.Request) {
	h.activeOrders(w, r, models.SideSell)
}

func (h *Handler) activeOrders(w http.ResponseWriter, r *http.Request, side models.Side) {
	currency, err := models.ParseCurrency(chi.URLParam(r, "currency"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	orders, err := h.DB.GetActiveOrders(r.Context(), currency, side)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}
