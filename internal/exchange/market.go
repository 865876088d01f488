package exchange

import (
	"context"

	"go.uber.org/zap"

	"p2px/internal/models"
)

// Market derives read-only snapshots from the order book and the transaction
// history. Every snapshot is computed fresh; there is no caching layer.
type Market struct {
	store Store
	log   *zap.Logger
}

// NewMarket creates a market snapshot service over the given store.
func NewMarket(store Store, logger *zap.Logger) *Market {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Market{store: store, log: logger}
}

// Snapshot returns the best bid, best ask and spread for one currency,
// together with settled-volume stats. Prices are nil when the corresponding
// side of the book is empty; spread is nil unless both are present.
func (m *Market) Snapshot(ctx context.Context, currency models.Currency) (*models.MarketData, error) {
	bid, err := m.store.BestBid(ctx, currency)
	if err != nil {
		return nil, err
	}
	ask, err := m.store.BestAsk(ctx, currency)
	if err != nil {
		return nil, err
	}
	stats, err := m.store.StatsByCurrency(ctx, currency)
	if err != nil {
		return nil, err
	}

	data := &models.MarketData{
		Currency:   currency,
		HighestBid: bid,
		LowestAsk:  ask,
		Stats:      stats,
	}
	if bid != nil && ask != nil {
		spread := ask.Sub(*bid)
		data.Spread = &spread
	}
	return data, nil
}
