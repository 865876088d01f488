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

const txnCols = "id::text, sender_id, receiver_id, external_address, currency, amount::text, fiat_amount::text, fiat, is_external, created_at"

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var t models.Transaction
	var id, amount string
	var fiatAmount, fiat *string
	if err := row.Scan(&id, &t.SenderID, &t.ReceiverID, &t.ExternalAddress, &t.Currency,
		&amount, &fiatAmount, &fiat, &t.IsExternal, &t.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if t.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("failed to parse transaction id %q: %w", id, err)
	}
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("failed to parse amount %q: %w", amount, err)
	}
	if fiatAmount != nil {
		fa, err := decimal.NewFromString(*fiatAmount)
		if err != nil {
			return nil, fmt.Errorf("failed to parse fiat amount %q: %w", *fiatAmount, err)
		}
		t.FiatAmount = &fa
	}
	if fiat != nil {
		f := models.Fiat(*fiat)
		t.Fiat = &f
	}
	return &t, nil
}

func scanTransactions(rows pgx.Rows) ([]models.Transaction, error) {
	defer rows.Close()
	var txns []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr("read transactions", err)
	}
	return txns, nil
}

// insertTransaction appends one immutable audit record. Always called inside
// the same transaction as the wallet mutation it records.
func insertTransaction(ctx context.Context, q querier, t *models.Transaction) (*models.Transaction, error) {
	created, err := scanTransaction(q.QueryRow(ctx, `
		INSERT INTO transactions (id, sender_id, receiver_id, external_address, currency, amount, fiat_amount, fiat, is_external)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+txnCols,
		t.ID, t.SenderID, t.ReceiverID, t.ExternalAddress, t.Currency, t.Amount, t.FiatAmount, t.Fiat, t.IsExternal))
	if err != nil {
		return nil, wrapDBErr("insert transaction", err)
	}
	return created, nil
}

// GetTransaction retrieves one transaction by id.
func (db *DB) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	t, err := scanTransaction(db.Pool.QueryRow(ctx,
		"SELECT "+txnCols+" FROM transactions WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, wrapDBErr("get transaction", err)
	}
	return t, nil
}

// GetUserTransactions retrieves everything the user sent and received,
// newest first.
func (db *DB) GetUserTransactions(ctx context.Context, userID int64) (sent, received []models.Transaction, err error) {
	rows, err := db.Pool.Query(ctx,
		"SELECT "+txnCols+" FROM transactions WHERE sender_id = $1 ORDER BY created_at DESC",
		userID)
	if err != nil {
		return nil, nil, wrapDBErr("get sent transactions", err)
	}
	if sent, err = scanTransactions(rows); err != nil {
		return nil, nil, err
	}

	rows, err = db.Pool.Query(ctx,
		"SELECT "+txnCols+" FROM transactions WHERE receiver_id = $1 ORDER BY created_at DESC",
		userID)
	if err != nil {
		return nil, nil, wrapDBErr("get received transactions", err)
	}
	if received, err = scanTransactions(rows); err != nil {
		return nil, nil, err
	}
	return sent, received, nil
}

// StatsByCurrency aggregates settled volume, count and the five most recent
// transactions for one currency.
func (db *DB) StatsByCurrency(ctx context.Context, currency models.Currency) (*models.TransactionStats, error) {
	var volume string
	stats := &models.TransactionStats{}
	err := db.Pool.QueryRow(ctx,
		"SELECT COALESCE(SUM(amount), 0)::text, COUNT(*) FROM transactions WHERE currency = $1",
		currency).Scan(&volume, &stats.Count)
	if err != nil {
		return nil, wrapDBErr("transaction stats", err)
	}
	if stats.TotalVolume, err = decimal.NewFromString(volume); err != nil {
		return nil, fmt.Errorf("failed to parse volume %q: %w", volume, err)
	}

	rows, err := db.Pool.Query(ctx,
		"SELECT "+txnCols+" FROM transactions WHERE currency = $1 ORDER BY created_at DESC LIMIT 5",
		currency)
	if err != nil {
		return nil, wrapDBErr("latest transactions", err)
	}
	if stats.Latest, err = scanTransactions(rows); err != nil {
		return nil, err
	}
	return stats, nil
}

// SendExternal debits the sender and records an external transaction against
// an address outside this system. No receiver wallet is touched.
func (db *DB) SendExternal(ctx context.Context, senderID int64, address string, currency models.Currency, amount decimal.Decimal) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", models.ErrInvalidArgument)
	}
	if address == "" {
		return nil, fmt.Errorf("%w: external address required", models.ErrInvalidArgument)
	}

	var txn *models.Transaction
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := applyDelta(ctx, tx, senderID, currency, amount.Neg()); err != nil {
			return err
		}
		var err error
		txn, err = insertTransaction(ctx, tx, &models.Transaction{
			ID:              uuid.New(),
			SenderID:        senderID,
			ExternalAddress: &address,
			Currency:        currency,
			Amount:          amount,
			IsExternal:      true,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	db.log.Info("external send settled",
		zap.Int64("sender_id", senderID),
		zap.String("currency", string(currency)),
		zap.String("amount", amount.String()))
	return txn, nil
}
