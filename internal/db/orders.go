package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"p2px/internal/models"
)

const orderCols = "id, user_id, side, currency, fiat, remaining_amount::text, price_per_coin::text, status, created_at"

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	var remaining, price string
	if err := row.Scan(&o.ID, &o.UserID, &o.Side, &o.Currency, &o.Fiat, &remaining, &price, &o.Status, &o.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if o.RemainingAmount, err = decimal.NewFromString(remaining); err != nil {
		return nil, fmt.Errorf("failed to parse remaining amount %q: %w", remaining, err)
	}
	if o.PricePerCoin, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("failed to parse price %q: %w", price, err)
	}
	return &o, nil
}

func scanOrders(rows pgx.Rows) ([]models.Order, error) {
	defer rows.Close()
	var orders []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr("read orders", err)
	}
	return orders, nil
}

// CreateOrder inserts a new ACTIVE order with remaining = amount.
func (db *DB) CreateOrder(ctx context.Context, userID int64, side models.Side, currency models.Currency, fiat models.Fiat, amount, pricePerCoin decimal.Decimal) (*models.Order, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", models.ErrInvalidArgument)
	}
	if !pricePerCoin.IsPositive() {
		return nil, fmt.Errorf("%w: price must be positive", models.ErrInvalidArgument)
	}

	var exists bool
	if err := db.Pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)", userID).Scan(&exists); err != nil {
		return nil, wrapDBErr("check user existence", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: user %d", models.ErrNotFound, userID)
	}

	order, err := scanOrder(db.Pool.QueryRow(ctx, `
		INSERT INTO orders (user_id, side, currency, fiat, remaining_amount, price_per_coin, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'ACTIVE')
		RETURNING `+orderCols,
		userID, side, currency, fiat, amount, pricePerCoin))
	if err != nil {
		return nil, wrapDBErr("create order", err)
	}
	return order, nil
}

// GetOrder retrieves one order by id.
func (db *DB) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	order, err := scanOrder(db.Pool.QueryRow(ctx,
		"SELECT "+orderCols+" FROM orders WHERE id = $1", orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: order %d", models.ErrNotFound, orderID)
	}
	if err != nil {
		return nil, wrapDBErr("get order", err)
	}
	return order, nil
}

// GetActiveOrders lists the ACTIVE side of the book for one currency in
// priority order: best price first, earliest creation breaking ties.
func (db *DB) GetActiveOrders(ctx context.Context, currency models.Currency, side models.Side) ([]models.Order, error) {
	// Best bid is the highest price, best ask the lowest.
	dir := "ASC"
	if side == models.SideBuy {
		dir = "DESC"
	}
	rows, err := db.Pool.Query(ctx,
		"SELECT "+orderCols+" FROM orders WHERE currency = $1 AND side = $2 AND status = 'ACTIVE'"+
			" ORDER BY price_per_coin "+dir+", created_at ASC",
		currency, side)
	if err != nil {
		return nil, wrapDBErr("get active orders", err)
	}
	return scanOrders(rows)
}

// OrderFilter narrows ListOrders. Nil fields match everything.
type OrderFilter struct {
	Side     *models.Side
	Currency *models.Currency
	Fiat     *models.Fiat
	Status   *models.OrderStatus
}

// ListOrders retrieves orders matching the filter, newest first.
func (db *DB) ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	where := []string{"TRUE"}
	args := []any{}
	add := func(col string, v any) {
		args = append(args, v)
		where = append(where, col+" = $"+strconv.Itoa(len(args)))
	}
	if filter.Side != nil {
		add("side", *filter.Side)
	}
	if filter.Currency != nil {
		add("currency", *filter.Currency)
	}
	if filter.Fiat != nil {
		add("fiat", *filter.Fiat)
	}
	if filter.Status != nil {
		add("status", *filter.Status)
	}

	rows, err := db.Pool.Query(ctx,
		"SELECT "+orderCols+" FROM orders WHERE "+strings.Join(where, " AND ")+" ORDER BY created_at DESC",
		args...)
	if err != nil {
		return nil, wrapDBErr("list orders", err)
	}
	return scanOrders(rows)
}

// GetUserOrders retrieves all orders owned by a user, newest first.
func (db *DB) GetUserOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	rows, err := db.Pool.Query(ctx,
		"SELECT "+orderCols+" FROM orders WHERE user_id = $1 ORDER BY created_at DESC",
		userID)
	if err != nil {
		return nil, wrapDBErr("get user orders", err)
	}
	return scanOrders(rows)
}

// reduceRemaining consumes fill from an ACTIVE order with one conditional
// update, checked against the stored value rather than a stale read. Hitting
// zero flips the order to COMPLETED.
func reduceRemaining(ctx context.Context, q querier, orderID int64, fill decimal.Decimal) (*models.Order, error) {
	order, err := scanOrder(q.QueryRow(ctx, `
		UPDATE orders
		SET remaining_amount = remaining_amount - $2,
		    status = CASE WHEN remaining_amount - $2 <= 0 THEN 'COMPLETED' ELSE status END
		WHERE id = $1 AND status = 'ACTIVE' AND remaining_amount >= $2
		RETURNING `+orderCols,
		orderID, fill))
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, wrapDBErr("reduce remaining", err)
	}

	// The guard refused: work out which invariant would have broken.
	var status models.OrderStatus
	var remaining string
	err = q.QueryRow(ctx, "SELECT status, remaining_amount::text FROM orders WHERE id = $1", orderID).
		Scan(&status, &remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: order %d", models.ErrNotFound, orderID)
	}
	if err != nil {
		return nil, wrapDBErr("inspect order", err)
	}
	if status != models.OrderActive {
		return nil, fmt.Errorf("%w: order %d is %s", models.ErrOrderNotActive, orderID, status)
	}
	return nil, fmt.Errorf("%w: fill %s exceeds remaining %s", models.ErrOrderOverfill, fill, remaining)
}

// ReduceRemaining consumes fill from an order outside any settlement.
func (db *DB) ReduceRemaining(ctx context.Context, orderID int64, fill decimal.Decimal) (*models.Order, error) {
	if !fill.IsPositive() {
		return nil, fmt.Errorf("%w: fill must be positive", models.ErrInvalidArgument)
	}
	return reduceRemaining(ctx, db.Pool, orderID, fill)
}

// lockOrder loads an order under FOR UPDATE so concurrent settlements against
// it serialize.
func lockOrder(ctx context.Context, q querier, orderID int64) (*models.Order, error) {
	order, err := scanOrder(q.QueryRow(ctx,
		"SELECT "+orderCols+" FROM orders WHERE id = $1 FOR UPDATE", orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: order %d", models.ErrNotFound, orderID)
	}
	if err != nil {
		return nil, wrapDBErr("lock order", err)
	}
	return order, nil
}

// Cancel marks an ACTIVE order CANCELLED. Only the owner may cancel, and the
// remaining amount is left untouched as a record of what was unfilled.
func (db *DB) Cancel(ctx context.Context, orderID, requesterID int64) (*models.Order, error) {
	return db.transition(ctx, orderID, requesterID, models.OrderCancelled)
}

// SetStatus is the owner-only direct status transition.
func (db *DB) SetStatus(ctx context.Context, orderID, requesterID int64, status models.OrderStatus) (*models.Order, error) {
	return db.transition(ctx, orderID, requesterID, status)
}

func (db *DB) transition(ctx context.Context, orderID, requesterID int64, status models.OrderStatus) (*models.Order, error) {
	var updated *models.Order
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		order, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.UserID != requesterID {
			return fmt.Errorf("%w: order %d belongs to another user", models.ErrUnauthorized, orderID)
		}
		if order.Status.Terminal() {
			return fmt.Errorf("%w: order %d is %s", models.ErrOrderNotActive, orderID, order.Status)
		}
		updated, err = scanOrder(tx.QueryRow(ctx,
			"UPDATE orders SET status = $2 WHERE id = $1 RETURNING "+orderCols,
			orderID, status))
		if err != nil {
			return wrapDBErr("update order status", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// BestBid returns the price of the best ACTIVE buy order, or nil when the
// bid side is empty.
func (db *DB) BestBid(ctx context.Context, currency models.Currency) (*decimal.Decimal, error) {
	return db.bestPrice(ctx, currency, models.SideBuy, "DESC")
}

// BestAsk returns the price of the best ACTIVE sell order, or nil when the
// ask side is empty.
func (db *DB) BestAsk(ctx context.Context, currency models.Currency) (*decimal.Decimal, error) {
	return db.bestPrice(ctx, currency, models.SideSell, "ASC")
}

func (db *DB) bestPrice(ctx context.Context, currency models.Currency, side models.Side, dir string) (*decimal.Decimal, error) {
	var s string
	err := db.Pool.QueryRow(ctx,
		"SELECT price_per_coin::text FROM orders WHERE currency = $1 AND side = $2 AND status = 'ACTIVE'"+
			" ORDER BY price_per_coin "+dir+", created_at ASC LIMIT 1",
		currency, side).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapDBErr("best price", err)
	}
	price, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse price %q: %w", s, err)
	}
	return &price, nil
}
