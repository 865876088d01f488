package exchange

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"p2px/internal/models"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestMarket_Snapshot_BothSides(t *testing.T) {
	store := newFakeStore()
	store.bid = dec("1180000")
	store.ask = dec("1210000")
	store.stats = &models.TransactionStats{TotalVolume: decimal.RequireFromString("2.5"), Count: 4}
	market := NewMarket(store, nil)

	snap, err := market.Snapshot(context.Background(), models.CurrencyBTC)
	require.NoError(t, err)

	assert.Equal(t, models.CurrencyBTC, snap.Currency)
	assert.True(t, snap.HighestBid.Equal(decimal.RequireFromString("1180000")))
	assert.True(t, snap.LowestAsk.Equal(decimal.RequireFromString("1210000")))
	require.NotNil(t, snap.Spread)
	assert.True(t, snap.Spread.Equal(decimal.RequireFromString("30000")))
	assert.Equal(t, int64(4), snap.Stats.Count)
}

func TestMarket_Snapshot_EmptyAskSide(t *testing.T) {
	store := newFakeStore()
	store.bid = dec("1180000")
	market := NewMarket(store, nil)

	snap, err := market.Snapshot(context.Background(), models.CurrencyBTC)
	require.NoError(t, err)

	assert.NotNil(t, snap.HighestBid)
	assert.Nil(t, snap.LowestAsk)
	assert.Nil(t, snap.Spread, "spread requires both sides")
}

func TestMarket_Snapshot_EmptyBook(t *testing.T) {
	store := newFakeStore()
	market := NewMarket(store, nil)

	snap, err := market.Snapshot(context.Background(), models.CurrencyDOGE)
	require.NoError(t, err)

	assert.Nil(t, snap.HighestBid)
	assert.Nil(t, snap.LowestAsk)
	assert.Nil(t, snap.Spread)
}

func TestMarket_Snapshot_NegativeSpread(t *testing.T) {
	// A crossed book still reports the raw difference; the snapshot does
	// not pretend to be a matching engine.
	store := newFakeStore()
	store.bid = dec("1250000")
	store.ask = dec("1200000")
	market := NewMarket(store, nil)

	snap, err := market.Snapshot(context.Background(), models.CurrencyBTC)
	require.NoError(t, err)
	require.NotNil(t, snap.Spread)
	assert.True(t, snap.Spread.Equal(decimal.RequireFromString("-50000")))
}
