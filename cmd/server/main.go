package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"p2px/internal/api"
	"p2px/internal/auth"
	"p2px/internal/config"
	"p2px/internal/db"
	"p2px/internal/exchange"
	"p2px/internal/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

type wsHub struct {
	clients map[*wsClient]bool
	mu      sync.RWMutex
}

func newWSHub() *wsHub {
	return &wsHub{clients: make(map[*wsClient]bool)}
}

func (h *wsHub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
}

func (h *wsHub) remove(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// broadcastMarket pushes a fresh snapshot of every currency to all
// connected clients.
func (h *wsHub) broadcastMarket(ctx context.Context, market *exchange.Market, logger *zap.Logger) {
	snapshots := make([]*models.MarketData, 0, len(models.Currencies))
	for _, currency := range models.Currencies {
		snap, err := market.Snapshot(ctx, currency)
		if err != nil {
			logger.Warn("market snapshot failed", zap.String("currency", string(currency)), zap.Error(err))
			continue
		}
		snapshots = append(snapshots, snap)
	}
	data, err := json.Marshal(map[string]any{"market": snapshots})
	if err != nil {
		logger.Error("failed to marshal market snapshot", zap.Error(err))
		return
	}

	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.mu.Lock()
		err := c.conn.WriteMessage(websocket.TextMessage, data)
		c.mu.Unlock()
		if err != nil {
			h.remove(c)
			c.conn.Close()
		}
	}
}

func handleWebSocket(hub *wsHub, market *exchange.Market, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &wsClient{conn: conn}
		hub.add(client)

		// Send an initial snapshot to the new client.
		hub.broadcastMarket(r.Context(), market, logger)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				hub.remove(client)
				conn.Close()
				break
			}
		}
	}
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx := context.Background()

	if err := db.Migrate(ctx, cfg.DatabaseURL, logger); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	database, err := db.NewDB(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	engine := exchange.NewEngine(database, logger)
	market := exchange.NewMarket(database, logger)
	authService := auth.NewService(database, cfg.JWTSecret, logger)
	handler := api.NewHandler(database, engine, market, authService, logger)

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.ClientURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	hub := newWSHub()
	r.Get("/ws", handleWebSocket(hub, market, logger))
	r.Mount("/api", handler.Routes())

	// Periodic market feed for websocket clients.
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			hub.broadcastMarket(ctx, market, logger)
		}
	}()

	addr := ":" + cfg.Port
	logger.Info("starting server", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}
