package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		in      string
		want    Currency
		wantErr bool
	}{
		{"BTC", CurrencyBTC, false},
		{"btc", CurrencyBTC, false},
		{" doge ", CurrencyDOGE, false},
		{"USD", "", true},
		{"", "", true},
		{"BITCOIN", "", true},
	}
	for _, tt := range tests {
		got, err := ParseCurrency(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidArgument, "input %q", tt.in)
			continue
		}
		assert.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestParseSide(t *testing.T) {
	side, err := ParseSide("buy")
	assert.NoError(t, err)
	assert.Equal(t, SideBuy, side)

	side, err = ParseSide("SELL")
	assert.NoError(t, err)
	assert.Equal(t, SideSell, side)

	_, err = ParseSide("hold")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestParseFiat(t *testing.T) {
	fiat, err := ParseFiat("thb")
	assert.NoError(t, err)
	assert.Equal(t, FiatTHB, fiat)

	_, err = ParseFiat("EUR")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestParseOrderStatus(t *testing.T) {
	status, err := ParseOrderStatus("active")
	assert.NoError(t, err)
	assert.Equal(t, OrderActive, status)

	_, err = ParseOrderStatus("open")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestOrderStatusTerminal(t *testing.T) {
	assert.False(t, OrderActive.Terminal())
	assert.True(t, OrderCompleted.Terminal())
	assert.True(t, OrderCancelled.Terminal())
}

func TestRetryableError(t *testing.T) {
	base := errors.New("connection reset")
	err := &RetryableError{Op: "commit transaction", Err: base}

	assert.True(t, IsRetryable(err))
	assert.True(t, IsRetryable(fmt.Errorf("settle: %w", err)))
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "commit transaction")

	assert.False(t, IsRetryable(base))
	assert.False(t, IsRetryable(ErrInsufficientFunds))
	assert.False(t, IsRetryable(nil))
}
