package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"p2px/internal/models"
)

const userCols = "id, email, password_hash, created_at"

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUserWithWallets inserts a new user and a starter wallet for every
// supported currency in one transaction.
func (db *DB) CreateUserWithWallets(ctx context.Context, email, passwordHash string, starterBalance decimal.Decimal) (*models.User, error) {
	var user *models.User
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		u, err := scanUser(tx.QueryRow(ctx,
			"INSERT INTO users (email, password_hash) VALUES ($1, $2) RETURNING "+userCols,
			email, passwordHash))
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: email already registered", models.ErrAlreadyExists)
		}
		if err != nil {
			return wrapDBErr("create user", err)
		}
		for _, currency := range models.Currencies {
			if _, err := applyDelta(ctx, tx, u.ID, currency, starterBalance); err != nil {
				return err
			}
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := scanUser(db.Pool.QueryRow(ctx,
		"SELECT "+userCols+" FROM users WHERE email = $1", email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, email)
	}
	if err != nil {
		return nil, wrapDBErr("get user by email", err)
	}
	return user, nil
}

// GetUserByID retrieves a user by id.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	user, err := scanUser(db.Pool.QueryRow(ctx,
		"SELECT "+userCols+" FROM users WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %d", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, wrapDBErr("get user by id", err)
	}
	return user, nil
}
