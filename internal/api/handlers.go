package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"p2px/internal/auth"
	"p2px/internal/db"
	"p2px/internal/exchange"
	"p2px/internal/models"
)

type ctxKey string

const userIDKey ctxKey = "user_id"

// Handler contains dependencies for HTTP handlers.
type Handler struct {
	DB     *db.DB
	Engine *exchange.Engine
	Market *exchange.Market
	Auth   *auth.Service
	log    *zap.Logger
}

// NewHandler creates a new handler.
func NewHandler(database *db.DB, engine *exchange.Engine, market *exchange.Market, authService *auth.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{DB: database, Engine: engine, Market: market, Auth: authService, log: logger}
}

// Routes wires every API endpoint onto a fresh router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(h.JWTAuthMiddleware)

		r.Get("/auth/profile", h.Profile)
		r.Get("/auth/find-by-email", h.FindUserByEmail)

		r.Get("/wallets", h.GetUserWallets)
		r.Post("/wallets", h.CreateWallet)
		r.Get("/wallets/stats/all", h.GetWalletStats)
		r.Get("/wallets/{currency}", h.GetWalletByCurrency)
		r.Put("/wallets/balance", h.UpdateWalletBalance)
		r.Post("/wallets/transfer", h.TransferFunds)

		r.Post("/orders", h.CreateOrder)
		r.Get("/orders", h.ListOrders)
		r.Get("/orders/user", h.GetUserOrders)
		r.Put("/orders/{id}/status", h.UpdateOrderStatus)
		r.Put("/orders/{id}/cancel", h.CancelOrder)

		r.Post("/transactions", h.CreateTransaction)
		r.Get("/transactions", h.GetUserTransactions)
		r.Post("/transactions/trade", h.TradeCrypto)
		r.Post("/transactions/external", h.SendExternal)
		r.Get("/transactions/{id}", h.GetTransactionByID)

		r.Get("/market/{currency}", h.GetMarketData)
		r.Get("/market/{currency}/buy", h.GetBuyOrders)
		r.Get("/market/{currency}/sell", h.GetSellOrders)
	})

	return r
}

// JWTAuthMiddleware verifies JWT tokens and injects the user id.
func (h *Handler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.Header.Get("Authorization")
		if tokenString == "" {
			writeErrorStatus(w, http.StatusUnauthorized, "Authorization header required")
			return
		}
		tokenString = strings.TrimPrefix(tokenString, "Bearer ")

		userID, err := h.Auth.UserFromToken(tokenString)
		if err != nil {
			writeErrorStatus(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userIDFrom(r *http.Request) (int64, bool) {
	id, ok := r.Context().Value(userIDKey).(int64)
	return id, ok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErrorStatus(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps the domain error taxonomy to transport status codes.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		writeErrorStatus(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrUnauthorized):
		writeErrorStatus(w, http.StatusForbidden, err.Error())
	case errors.Is(err, models.ErrInvalidArgument),
		errors.Is(err, models.ErrOrderNotActive),
		errors.Is(err, models.ErrOrderOverfill),
		errors.Is(err, models.ErrInsufficientFunds),
		errors.Is(err, models.ErrSelfTrade),
		errors.Is(err, models.ErrAlreadyExists):
		writeErrorStatus(w, http.StatusBadRequest, err.Error())
	case models.IsRetryable(err):
		writeErrorStatus(w, http.StatusServiceUnavailable, "temporary failure, please retry")
	default:
		h.log.Error("internal error", zap.Error(err))
		writeErrorStatus(w, http.StatusInternalServerError, "internal server error")
	}
}

// Register handles user registration.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.Auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// Login handles user login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeErrorStatus(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// Profile returns the authenticated user's record.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r)
	if !ok {
		writeErrorStatus(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, err := h.DB.GetUserByID(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// FindUserByEmail looks up a transfer counterparty by email.
func (h *Handler) FindUserByEmail(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeErrorStatus(w, http.StatusBadRequest, "email query parameter required")
		return
	}

	user, err := h.DB.GetUserByEmail(r.Context(), strings.ToLower(email))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": user.ID, "email": user.Email})
}
