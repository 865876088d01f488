package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"p2px/internal/models"
)

// CreateTransaction performs an internal transfer to another user.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusCreated, map[string]any{"transaction": txn})
}

// GetUserTransactions lists everything the user sent and received.
func (h *Handler) GetUserTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeErrorStatus(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	sent, received, err := h.DB.GetUserTransactions(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sent_transactions":     sent,
		"received_transactions": received,
	})
}

// GetTransactionByID returns a single transaction; only participants may
// view it.
func (h *Handler) GetTransactionByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeErrorStatus(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "Invalid transaction id")
		return
	}

	txn, err := h.DB.GetTransaction(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if txn.SenderID != userID && (txn.ReceiverID == nil || *txn.ReceiverID != userID) {
		writeErrorStatus(w, http.StatusForbidden, "Unauthorized to view this transaction")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transaction": txn})
}

// TradeCrypto settles a fill against an existing order.
func (h *Handler) TradeCrypto(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeErrorStatus(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		OrderID int64           `json:"order_id"`
		Amount  decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.Engine.SettleTrade(r.Context(), req.OrderID, userID, req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// SendExternal records a debit-only transfer to an outside address.
func (h *Handler) SendExternal(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeErrorStatus(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		Address  string          `json:"address"`
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

	txn, err := h.Engine.SendExternal(r.Context(), userID, req.Address, currency, req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"transaction": txn})
}
