package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"p2px/internal/models"
)

// Wallet ledger. All balance mutation goes through applyDelta so the
// non-negative invariant is enforced by a single conditional update, never a
// read-then-write across two steps.

const walletCols = "id, user_id, currency, balance::text, created_at, updated_at"

func scanWallet(row pgx.Row) (*models.Wallet, error) {
	var w models.Wallet
	var balance string
	if err := row.Scan(&w.ID, &w.UserID, &w.Currency, &balance, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	b, err := decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance %q: %w", balance, err)
	}
	w.Balance = b
	return &w, nil
}

// GetBalance returns the wallet balance, or zero when no wallet exists.
// No wallet is created implicitly.
func (db *DB) GetBalance(ctx context.Context, userID int64, currency models.Currency) (decimal.Decimal, error) {
	var s string
	err := db.Pool.QueryRow(ctx,
		"SELECT balance::text FROM wallets WHERE user_id = $1 AND currency = $2",
		userID, currency).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, wrapDBErr("get balance", err)
	}
	b, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse balance %q: %w", s, err)
	}
	return b, nil
}

// HasSufficientBalance reports whether the user's wallet covers amount.
// Returns false when no wallet exists.
func (db *DB) HasSufficientBalance(ctx context.Context, userID int64, currency models.Currency, amount decimal.Decimal) (bool, error) {
	if !amount.IsPositive() {
		return false, fmt.Errorf("%w: amount must be positive", models.ErrInvalidArgument)
	}
	balance, err := db.GetBalance(ctx, userID, currency)
	if err != nil {
		return false, err
	}
	return balance.GreaterThanOrEqual(amount), nil
}

// applyDelta credits or debits one wallet with a single conditional update.
// A wallet is created lazily on first non-negative delta; a debit that would
// take the balance below zero fails with ErrInsufficientFunds.
func applyDelta(ctx context.Context, q querier, userID int64, currency models.Currency, delta decimal.Decimal) (*models.Wallet, error) {
	w, err := scanWallet(q.QueryRow(ctx, `
		UPDATE wallets
		SET balance = balance + $3, updated_at = now()
		WHERE user_id = $1 AND currency = $2 AND balance + $3 >= 0
		RETURNING `+walletCols,
		userID, currency, delta))
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, wrapDBErr("apply wallet delta", err)
	}

	// Either the wallet is missing or the debit would overdraw it.
	var exists bool
	if err := q.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM wallets WHERE user_id = $1 AND currency = $2)",
		userID, currency).Scan(&exists); err != nil {
		return nil, wrapDBErr("check wallet existence", err)
	}
	if exists || delta.IsNegative() {
		return nil, fmt.Errorf("%w: %s wallet of user %d cannot absorb %s",
			models.ErrInsufficientFunds, currency, userID, delta)
	}

	// First credit creates the wallet. ON CONFLICT covers a concurrent create.
	w, err = scanWallet(q.QueryRow(ctx, `
		INSERT INTO wallets (user_id, currency, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, currency)
		DO UPDATE SET balance = wallets.balance + EXCLUDED.balance, updated_at = now()
		RETURNING `+walletCols,
		userID, currency, delta))
	if err != nil {
		return nil, wrapDBErr("create wallet", err)
	}
	return w, nil
}

// ApplyDelta atomically credits (positive delta) or debits (negative delta)
// one wallet. Used directly for deposits and withdrawals.
func (db *DB) ApplyDelta(ctx context.Context, userID int64, currency models.Currency, delta decimal.Decimal) (*models.Wallet, error) {
	if delta.IsZero() {
		return nil, fmt.Errorf("%w: delta must be non-zero", models.ErrInvalidArgument)
	}
	return applyDelta(ctx, db.Pool, userID, currency, delta)
}

// Transfer moves amount from sender to receiver and records the transaction.
// Debit, credit (creating the receiver wallet on demand) and the transaction
// record land as one atomic unit or not at all.
func (db *DB) Transfer(ctx context.Context, senderID, receiverID int64, currency models.Currency, amount decimal.Decimal) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", models.ErrInvalidArgument)
	}

	var txn *models.Transaction
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := applyDelta(ctx, tx, senderID, currency, amount.Neg()); err != nil {
			return err
		}
		if _, err := applyDelta(ctx, tx, receiverID, currency, amount); err != nil {
			return err
		}
		var err error
		txn, err = insertTransaction(ctx, tx, &models.Transaction{
			ID:         uuid.New(),
			SenderID:   senderID,
			ReceiverID: &receiverID,
			Currency:   currency,
			Amount:     amount,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	db.log.Info("transfer settled",
		zap.Int64("sender_id", senderID),
		zap.Int64("receiver_id", receiverID),
		zap.String("currency", string(currency)),
		zap.String("amount", amount.String()))
	return txn, nil
}

// GetUserWallets retrieves all wallets owned by a user.
func (db *DB) GetUserWallets(ctx context.Context, userID int64) ([]models.Wallet, error) {
	rows, err := db.Pool.Query(ctx,
		"SELECT "+walletCols+" FROM wallets WHERE user_id = $1 ORDER BY currency",
		userID)
	if err != nil {
		return nil, wrapDBErr("get user wallets", err)
	}
	defer rows.Close()

	var wallets []models.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet: %w", err)
		}
		wallets = append(wallets, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr("get user wallets", err)
	}
	return wallets, nil
}

// GetWalletByCurrency retrieves one wallet of a user.
func (db *DB) GetWalletByCurrency(ctx context.Context, userID int64, currency models.Currency) (*models.Wallet, error) {
	w, err := scanWallet(db.Pool.QueryRow(ctx,
		"SELECT "+walletCols+" FROM wallets WHERE user_id = $1 AND currency = $2",
		userID, currency))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s wallet", models.ErrNotFound, currency)
	}
	if err != nil {
		return nil, wrapDBErr("get wallet", err)
	}
	return w, nil
}

// CreateWallet explicitly creates an empty wallet. Fails when one already
// exists for the (user, currency) pair.
func (db *DB) CreateWallet(ctx context.Context, userID int64, currency models.Currency) (*models.Wallet, error) {
	w, err := scanWallet(db.Pool.QueryRow(ctx,
		"INSERT INTO wallets (user_id, currency, balance) VALUES ($1, $2, 0) RETURNING "+walletCols,
		userID, currency))
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: %s wallet", models.ErrAlreadyExists, currency)
	}
	if err != nil {
		return nil, wrapDBErr("create wallet", err)
	}
	return w, nil
}

// TotalBalance sums every wallet balance for one currency across all users.
func (db *DB) TotalBalance(ctx context.Context, currency models.Currency) (decimal.Decimal, error) {
	var s string
	err := db.Pool.QueryRow(ctx,
		"SELECT COALESCE(SUM(balance), 0)::text FROM wallets WHERE currency = $1",
		currency).Scan(&s)
	if err != nil {
		return decimal.Zero, wrapDBErr("total balance", err)
	}
	total, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse total %q: %w", s, err)
	}
	return total, nil
}
