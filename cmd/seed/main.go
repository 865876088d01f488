package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"p2px/internal/auth"
	"p2px/internal/config"
	"p2px/internal/db"
	"p2px/internal/models"
)

// Seed the database with demo users, starter wallets and an order book.
func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

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

	// Skip seeding when demo data is already present.
	var count int
	if err := database.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM orders").Scan(&count); err != nil {
		logger.Fatal("failed to check orders", zap.Error(err))
	}
	if count > 0 {
		fmt.Printf("Database already has %d orders. No need to seed.\n", count)
		os.Exit(0)
	}

	authService := auth.NewService(database, cfg.JWTSecret, logger)

	trader1 := mustUser(ctx, logger, authService, database, "trader1@example.com", "password1")
	trader2 := mustUser(ctx, logger, authService, database, "trader2@example.com", "password2")

	type seedOrder struct {
		userID int64
		side   models.Side
		amount string
		price  string
	}
	orders := []seedOrder{
		{trader1.ID, models.SideBuy, "0.15", "1150000"},
		{trader1.ID, models.SideBuy, "0.2", "1180000"},
		{trader2.ID, models.SideSell, "0.1", "1210000"},
		{trader2.ID, models.SideSell, "1.0", "1250000"},
	}

	var lastSell int64
	for _, o := range orders {
		order, err := database.CreateOrder(ctx, o.userID, o.side, models.CurrencyBTC, models.FiatTHB,
			decimal.RequireFromString(o.amount), decimal.RequireFromString(o.price))
		if err != nil {
			logger.Fatal("failed to create order", zap.Error(err))
		}
		if o.side == models.SideSell {
			lastSell = order.ID
		}
	}

	// A partially filled sell order gives the market feed some history.
	if _, _, err := database.SettleTrade(ctx, lastSell, trader1.ID, decimal.RequireFromString("0.4")); err != nil {
		logger.Fatal("failed to settle demo trade", zap.Error(err))
	}

	fmt.Println("Seeded demo users, wallets and order book.")
}

func mustUser(ctx context.Context, logger *zap.Logger, authService *auth.Service, database *db.DB, email, password string) *models.User {
	user, err := authService.Register(ctx, email, password)
	if err == nil {
		return user
	}
	if errors.Is(err, models.ErrAlreadyExists) {
		user, err = database.GetUserByEmail(ctx, email)
		if err == nil {
			return user
		}
	}
	logger.Fatal("failed to seed user", zap.String("email", email), zap.Error(err))
	return nil
}
