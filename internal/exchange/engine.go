// Package exchange holds the settlement engine and the market snapshot:
// the services the request layer calls with already-authenticated user ids.
package exchange

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"p2px/internal/models"
)

// Store is the transactional datastore collaborator. Each mutating call is
// one atomic unit: it either fully commits or reports a typed failure with
// zero side effects.
type Store interface {
	GetOrder(ctx context.Context, orderID int64) (*models.Order, error)
	SettleTrade(ctx context.Context, orderID, takerID int64, amount decimal.Decimal) (*models.Transaction, *models.Order, error)
	Transfer(ctx context.Context, senderID, receiverID int64, currency models.Currency, amount decimal.Decimal) (*models.Transaction, error)
	SendExternal(ctx context.Context, senderID int64, address string, currency models.Currency, amount decimal.Decimal) (*models.Transaction, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	BestBid(ctx context.Context, currency models.Currency) (*decimal.Decimal, error)
	BestAsk(ctx context.Context, currency models.Currency) (*decimal.Decimal, error)
	StatsByCurrency(ctx context.Context, currency models.Currency) (*models.TransactionStats, error)
}

// TradeResult is what a successful settlement returns to the request layer.
type TradeResult struct {
	Transaction *models.Transaction `json:"transaction"`
	Order       *models.Order       `json:"order"`
}

// Engine validates trade and transfer intents and delegates the atomic
// multi-row mutation to the store.
type Engine struct {
	store Store
	log   *zap.Logger
}

// NewEngine creates a settlement engine over the given store.
func NewEngine(store Store, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, log: logger}
}

// SettleTrade fills orderID by amount on behalf of takerID.
func (e *Engine) SettleTrade(ctx context.Context, orderID, takerID int64, amount decimal.Decimal) (*TradeResult, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: trade amount must be positive", models.ErrInvalidArgument)
	}

	txn, order, err := e.store.SettleTrade(ctx, orderID, takerID, amount)
	if err != nil {
		e.log.Warn("trade rejected",
			zap.Int64("order_id", orderID),
			zap.Int64("taker_id", takerID),
			zap.String("amount", amount.String()),
			zap.Error(err))
		return nil, err
	}
	return &TradeResult{Transaction: txn, Order: order}, nil
}

// InternalTransfer resolves the receiver (numeric id or email) and moves
// amount between the two users' wallets. No order is involved.
func (e *Engine) InternalTransfer(ctx context.Context, senderID int64, receiver string, currency models.Currency, amount decimal.Decimal) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: transfer amount must be positive", models.ErrInvalidArgument)
	}

	receiverUser, err := e.resolveUser(ctx, receiver)
	if err != nil {
		return nil, err
	}
	if receiverUser.ID == senderID {
		return nil, fmt.Errorf("%w: cannot transfer to yourself", models.ErrInvalidArgument)
	}

	return e.store.Transfer(ctx, senderID, receiverUser.ID, currency, amount)
}

// SendExternal debits the sender against an address outside this system.
func (e *Engine) SendExternal(ctx context.Context, senderID int64, address string, currency models.Currency, amount decimal.Decimal) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", models.ErrInvalidArgument)
	}
	if strings.TrimSpace(address) == "" {
		return nil, fmt.Errorf("%w: external address required", models.ErrInvalidArgument)
	}
	return e.store.SendExternal(ctx, senderID, strings.TrimSpace(address), currency, amount)
}

func (e *Engine) resolveUser(ctx context.Context, receiver string) (*models.User, error) {
	receiver = strings.TrimSpace(receiver)
	if receiver == "" {
		return nil, fmt.Errorf("%w: receiver required", models.ErrInvalidArgument)
	}
	if id, err := strconv.ParseInt(receiver, 10, 64); err == nil {
		return e.store.GetUserByID(ctx, id)
	}
	return e.store.GetUserByEmail(ctx, receiver)
}
