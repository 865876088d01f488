package exchange

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"p2px/internal/models"
)

// fakeStore is an in-memory Store for exercising the engine without a
// database. Mutating calls only record their arguments.
type fakeStore struct {
	usersByEmail map[string]*models.User
	usersByID    map[int64]*models.User
	orders       map[int64]*models.Order

	bid   *decimal.Decimal
	ask   *decimal.Decimal
	stats *models.TransactionStats

	settleCalls   int
	transferCalls []transferCall
	externalCalls []externalCall
}

type transferCall struct {
	senderID   int64
	receiverID int64
	currency   models.Currency
	amount     decimal.Decimal
}

type externalCall struct {
	senderID int64
	address  string
	currency models.Currency
	amount   decimal.Decimal
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		usersByEmail: make(map[string]*models.User),
		usersByID:    make(map[int64]*models.User),
		orders:       make(map[int64]*models.Order),
		stats:        &models.TransactionStats{},
	}
}

func (f *fakeStore) addUser(id int64, email string) *models.User {
	u := &models.User{ID: id, Email: email}
	f.usersByEmail[email] = u
	f.usersByID[id] = u
	return u
}

func (f *fakeStore) GetOrder(_ context.Context, orderID int64) (*models.Order, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: order %d", models.ErrNotFound, orderID)
	}
	return o, nil
}

func (f *fakeStore) SettleTrade(_ context.Context, orderID, takerID int64, amount decimal.Decimal) (*models.Transaction, *models.Order, error) {
	f.settleCalls++
	order, ok := f.orders[orderID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: order %d", models.ErrNotFound, orderID)
	}
	receiver := takerID
	txn := &models.Transaction{
		ID:         uuid.New(),
		SenderID:   order.UserID,
		ReceiverID: &receiver,
		Currency:   order.Currency,
		Amount:     amount,
	}
	return txn, order, nil
}

func (f *fakeStore) Transfer(_ context.Context, senderID, receiverID int64, currency models.Currency, amount decimal.Decimal) (*models.Transaction, error) {
	f.transferCalls = append(f.transferCalls, transferCall{senderID, receiverID, currency, amount})
	receiver := receiverID
	return &models.Transaction{ID: uuid.New(), SenderID: senderID, ReceiverID: &receiver, Currency: currency, Amount: amount}, nil
}

func (f *fakeStore) SendExternal(_ context.Context, senderID int64, address string, currency models.Currency, amount decimal.Decimal) (*models.Transaction, error) {
	f.externalCalls = append(f.externalCalls, externalCall{senderID, address, currency, amount})
	return &models.Transaction{ID: uuid.New(), SenderID: senderID, ExternalAddress: &address, Currency: currency, Amount: amount, IsExternal: true}, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	u, ok := f.usersByEmail[email]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, email)
	}
	return u, nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	u, ok := f.usersByID[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %d", models.ErrNotFound, id)
	}
	return u, nil
}

func (f *fakeStore) BestBid(context.Context, models.Currency) (*decimal.Decimal, error) {
	return f.bid, nil
}

func (f *fakeStore) BestAsk(context.Context, models.Currency) (*decimal.Decimal, error) {
	return f.ask, nil
}

func (f *fakeStore) StatsByCurrency(context.Context, models.Currency) (*models.TransactionStats, error) {
	return f.stats, nil
}

func TestEngine_SettleTrade_RejectsNonPositiveAmount(t *testing.T) {
	store := newFakeStore()
	engine := NewEngine(store, nil)

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-1)} {
		_, err := engine.SettleTrade(context.Background(), 1, 2, amount)
		assert.ErrorIs(t, err, models.ErrInvalidArgument)
	}
	assert.Equal(t, 0, store.settleCalls, "store must not be touched on invalid input")
}

func TestEngine_SettleTrade_Delegates(t *testing.T) {
	store := newFakeStore()
	store.orders[7] = &models.Order{ID: 7, UserID: 1, Side: models.SideSell, Currency: models.CurrencyBTC}
	engine := NewEngine(store, nil)

	result, err := engine.SettleTrade(context.Background(), 7, 2, decimal.RequireFromString("0.4"))
	require.NoError(t, err)
	assert.Equal(t, 1, store.settleCalls)
	assert.Equal(t, int64(7), result.Order.ID)
	assert.True(t, result.Transaction.Amount.Equal(decimal.RequireFromString("0.4")))
}

func TestEngine_SettleTrade_PropagatesStoreError(t *testing.T) {
	store := newFakeStore()
	engine := NewEngine(store, nil)

	_, err := engine.SettleTrade(context.Background(), 404, 2, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestEngine_InternalTransfer_ResolvesByEmail(t *testing.T) {
	store := newFakeStore()
	store.addUser(5, "bob@example.com")
	engine := NewEngine(store, nil)

	txn, err := engine.InternalTransfer(context.Background(), 1, "bob@example.com", models.CurrencyETH, decimal.NewFromInt(3))
	require.NoError(t, err)
	require.Len(t, store.transferCalls, 1)
	assert.Equal(t, int64(5), store.transferCalls[0].receiverID)
	assert.Equal(t, int64(1), txn.SenderID)
}

func TestEngine_InternalTransfer_ResolvesByID(t *testing.T) {
	store := newFakeStore()
	store.addUser(5, "bob@example.com")
	engine := NewEngine(store, nil)

	_, err := engine.InternalTransfer(context.Background(), 1, "5", models.CurrencyETH, decimal.NewFromInt(3))
	require.NoError(t, err)
	require.Len(t, store.transferCalls, 1)
	assert.Equal(t, int64(5), store.transferCalls[0].receiverID)
}

func TestEngine_InternalTransfer_Rejections(t *testing.T) {
	store := newFakeStore()
	store.addUser(1, "alice@example.com")
	engine := NewEngine(store, nil)

	// Unknown receiver.
	_, err := engine.InternalTransfer(context.Background(), 1, "ghost@example.com", models.CurrencyBTC, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, models.ErrNotFound)

	// Self transfer.
	_, err = engine.InternalTransfer(context.Background(), 1, "alice@example.com", models.CurrencyBTC, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	// Empty receiver.
	_, err = engine.InternalTransfer(context.Background(), 1, "  ", models.CurrencyBTC, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	// Non-positive amount.
	_, err = engine.InternalTransfer(context.Background(), 1, "alice@example.com", models.CurrencyBTC, decimal.Zero)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	assert.Empty(t, store.transferCalls)
}

func TestEngine_SendExternal(t *testing.T) {
	store := newFakeStore()
	engine := NewEngine(store, nil)

	txn, err := engine.SendExternal(context.Background(), 1, " bc1qexample ", models.CurrencyBTC, decimal.RequireFromString("0.25"))
	require.NoError(t, err)
	require.Len(t, store.externalCalls, 1)
	assert.Equal(t, "bc1qexample", store.externalCalls[0].address, "address is trimmed")
	assert.True(t, txn.IsExternal)

	_, err = engine.SendExternal(context.Background(), 1, "", models.CurrencyBTC, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = engine.SendExternal(context.Background(), 1, "bc1qexample", models.CurrencyBTC, decimal.Zero)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}
