package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Currency is a supported crypto asset.
type Currency string

const (
	CurrencyBTC  Currency = "BTC"
	CurrencyETH  Currency = "ETH"
	CurrencyXRP  Currency = "XRP"
	CurrencyDOGE Currency = "DOGE"
)

// Currencies lists every supported crypto asset. Registration creates one
// wallet per entry.
var Currencies = []Currency{CurrencyBTC, CurrencyETH, CurrencyXRP, CurrencyDOGE}

// ParseCurrency validates a currency code supplied at the boundary.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Currencies {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unknown currency %q", ErrInvalidArgument, s)
}

// Fiat is a supported quote currency. Fiat amounts are informational only;
// no fiat wallet is ever debited or credited.
type Fiat string

const (
	FiatTHB Fiat = "THB"
	FiatUSD Fiat = "USD"
)

// ParseFiat validates a fiat code supplied at the boundary.
func ParseFiat(s string) (Fiat, error) {
	f := Fiat(strings.ToUpper(strings.TrimSpace(s)))
	if f == FiatTHB || f == FiatUSD {
		return f, nil
	}
	return "", fmt.Errorf("%w: unknown fiat %q", ErrInvalidArgument, s)
}

// Side is an order direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide validates an order side supplied at the boundary.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	}
	return "", fmt.Errorf("%w: unknown side %q", ErrInvalidArgument, s)
}

// OrderStatus is an order lifecycle state. COMPLETED and CANCELLED are
// terminal; no further mutation is allowed once reached.
type OrderStatus string

const (
	OrderActive    OrderStatus = "ACTIVE"
	OrderCompleted OrderStatus = "COMPLETED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// ParseOrderStatus validates an order status supplied at the boundary.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case OrderActive:
		return OrderActive, nil
	case OrderCompleted:
		return OrderCompleted, nil
	case OrderCancelled:
		return OrderCancelled, nil
	}
	return "", fmt.Errorf("%w: unknown order status %q", ErrInvalidArgument, s)
}

// Terminal reports whether the status permits no further mutation.
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

// User represents a registered user. Users are created through registration;
// the settlement core never creates them.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Wallet is a per-user, per-currency balance record. At most one wallet
// exists per (user, currency) pair; balances never go negative.
type Wallet struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Currency  Currency        `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Order is a standing offer to buy or sell a quantity of a currency at a
// fixed price. RemainingAmount only ever decreases.
type Order struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	Side            Side            `json:"side"`
	Currency        Currency        `json:"currency"`
	Fiat            Fiat            `json:"fiat"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	PricePerCoin    decimal.Decimal `json:"price_per_coin"`
	Status          OrderStatus     `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Transaction is the append-only audit record of a balance movement.
// External sends carry an address instead of a receiver and debit only.
type Transaction struct {
	ID              uuid.UUID        `json:"id"`
	SenderID        int64            `json:"sender_id"`
	ReceiverID      *int64           `json:"receiver_id,omitempty"`
	ExternalAddress *string          `json:"external_address,omitempty"`
	Currency        Currency         `json:"currency"`
	Amount          decimal.Decimal  `json:"amount"`
	FiatAmount      *decimal.Decimal `json:"fiat_amount,omitempty"`
	Fiat            *Fiat            `json:"fiat,omitempty"`
	IsExternal      bool             `json:"is_external"`
	CreatedAt       time.Time        `json:"created_at"`
}

// TransactionStats aggregates settled volume for one currency.
type TransactionStats struct {
	TotalVolume decimal.Decimal `json:"total_volume"`
	Count       int64           `json:"count"`
	Latest      []Transaction   `json:"latest"`
}

// MarketData is a point-in-time view of the book for one currency.
// Prices are nil when the corresponding side of the book is empty.
type MarketData struct {
	Currency   Currency          `json:"currency"`
	HighestBid *decimal.Decimal  `json:"highest_bid"`
	LowestAsk  *decimal.Decimal  `json:"lowest_ask"`
	Spread     *decimal.Decimal  `json:"spread"`
	Stats      *TransactionStats `json:"stats,omitempty"`
}
