package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"p2px/internal/models"
)

// GetUserWallets lists the authenticated user's wallets.
func (h *Handler) GetUserWallets(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeErrorStatus(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	wallets, err := h.DB.GetUserWallets(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"wallets": wallets})
}

// GetWalletByCurrency returns one wallet of the authenticated user.
func (h *Handler) GetWalletByCurrency(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeErrorStatus(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	currency, err := models.ParseCurrency(chi.URLParam(r, "currency"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	wallet, err := h.DB.GetWalletByCurrency(r.Context(), userID, currency)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"wallet": wallet})
}

// CreateWallet explicitly creates an empty wallet for a currency.
func (h *Handler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeErrorStatus(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		Currency string `json:"currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	currency, err := models.ParseCurrency(req.Currency)
	if err != nil {
		h.writeError(w, err)
		return
	}

	wallet, err := h.DB.CreateWallet(r.Context(), userID, currency)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"wallet": wallet})
}

// UpdateWalletBalance deposits into or withdraws from the user's own wallet.
func (h *Handler) UpdateWalletBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeErrorStatus(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		Currency  string          `json:"currency"`
		Amount    decimal.Decimal `json:"amount"`
		Operation string          `json:"operation"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	currency, err := models.ParseCurrency(req.Currency)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !req.Amount.IsPositive() {
		writeErrorStatus(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	delta := req.Amount
	switch req.Operation {
	case "deposit":
	case "withdraw":
		delta = delta.Neg()
	default:
		writeErrorStatus(w, http.StatusBadRequest, "operation must be deposit or withdraw")
		return
	}

	wallet, err := h.DB.ApplyDelta(r.Context(), userID, currency, delta)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"wallet": wallet})
}

// TransferFunds moves funds to another user identified by email or id.
func (h *Handler) TransferFunds(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeErrorStatus(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		Receiver string          `json:"receiver"`
		Currency string          `json:"currency"`
		Amount   decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	currency, err := models.ParseCurrency(req.Currency)
	if err != nil {
		h.writeError(w, err)
		return
	}

	txn, err := h.Engine.InternalTransfer(r.Context(), userID, req.Receiver, currency, req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transaction": txn})
}

// GetWalletStats reports the system-wide total balance per currency.
func (h *Handler) GetWalletStats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[models.Currency]decimal.Decimal, len(models.Currencies))
	for _, currency := range models.Currencies {
		total, err := h.DB.TotalBalance(r.Context(), currency)
		if err != nil {
			h.writeError(w, err)
			return
		}
		stats[currency] = total
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": stats})
}
