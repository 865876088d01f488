package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"p2px/internal/models"
)

// SettleTrade fills an order by amount as one atomic unit: the order row is
// locked, validations rerun against current state, the asset moves between
// the two wallets, the transaction is recorded and the order's remaining
// amount drops. Any failure rolls the whole unit back.
//
// The asset always flows from debtor to creditor; fiat is recorded on the
// transaction (amount x price) but never settled against a fiat wallet.
func (db *DB) SettleTrade(ctx context.Context, orderID, takerID int64, amount decimal.Decimal) (*models.Transaction, *models.Order, error) {
	if !amount.IsPositive() {
		return nil, nil, fmt.Errorf("%w: amount must be positive", models.ErrInvalidArgument)
	}

	var (
		txn     *models.Transaction
		updated *models.Order
	)
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		order, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status != models.OrderActive {
			return fmt.Errorf("%w: order %d is %s", models.ErrOrderNotActive, orderID, order.Status)
		}
		if order.UserID == takerID {
			return models.ErrSelfTrade
		}
		if amount.GreaterThan(order.RemainingAmount) {
			return fmt.Errorf("%w: fill %s exceeds remaining %s",
				models.ErrOrderOverfill, amount, order.RemainingAmount)
		}

		// On a SELL the maker sources the asset; on a BUY the taker does.
		debtor, creditor := order.UserID, takerID
		if order.Side == models.SideBuy {
			debtor, creditor = takerID, order.UserID
		}

		if _, err := applyDelta(ctx, tx, debtor, order.Currency, amount.Neg()); err != nil {
			return err
		}
		if _, err := applyDelta(ctx, tx, creditor, order.Currency, amount); err != nil {
			return err
		}

		fiatAmount := amount.Mul(order.PricePerCoin)
		fiat := order.Fiat
		txn, err = insertTransaction(ctx, tx, &models.Transaction{
			ID:         uuid.New(),
			SenderID:   debtor,
			ReceiverID: &creditor,
			Currency:   order.Currency,
			Amount:     amount,
			FiatAmount: &fiatAmount,
			Fiat:       &fiat,
		})
		if err != nil {
			return err
		}

		updated, err = reduceRemaining(ctx, tx, orderID, amount)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	db.log.Info("trade settled",
		zap.Int64("order_id", orderID),
		zap.Int64("taker_id", takerID),
		zap.String("currency", string(updated.Currency)),
		zap.String("amount", amount.String()),
		zap.String("remaining", updated.RemainingAmount.String()),
		zap.String("status", string(updated.Status)))
	return txn, updated, nil
}
