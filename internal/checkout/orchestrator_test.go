package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chen220-Yee/social-shop/internal/catalog"
	"github.com/chen220-Yee/social-shop/internal/money"
	"github.com/chen220-Yee/social-shop/internal/orders"
	"github.com/chen220-Yee/social-shop/internal/wallet"
)

type fakeStock struct {
	mu        sync.Mutex
	stock     map[string]int
	price     map[string]money.Cents
	released  []catalog.Reservation
	committed []string
}

func (f *fakeStock) Reserve(_ context.Context, attemptID, productID string, qty int) (catalog.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stock[productID]
	if !ok {
		return catalog.Reservation{}, catalog.ErrProductNotFound
	}
	if s < qty {
		return catalog.Reservation{}, &catalog.OutOfStockError{ProductID: productID, Requested: qty, Available: s}
	}
	f.stock[productID] -= qty
	return catalog.Reservation{AttemptID: attemptID, ProductID: productID, Qty: qty, PriceCents: f.price[productID]}, nil
}

func (f *fakeStock) Release(_ context.Context, res catalog.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stock[res.ProductID] += res.Qty
	f.released = append(f.released, res)
	return nil
}

func (f *fakeStock) Commit(_ context.Context, res catalog.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, res.ProductID)
	return nil
}

type fakeLedger struct {
	mu       sync.Mutex
	balance  map[string]money.Cents
	credited []money.Cents
}

func (f *fakeLedger) Debit(_ context.Context, userID string, amount money.Cents) (wallet.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balance[userID] < amount {
		return wallet.Receipt{}, wallet.ErrInsufficientFunds
	}
	f.balance[userID] -= amount
	return wallet.Receipt{UserID: userID, AmountCents: -amount, BalanceCents: f.balance[userID]}, nil
}

func (f *fakeLedger) Credit(_ context.Context, userID string, amount money.Cents) (wallet.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balance[userID] += amount
	f.credited = append(f.credited, amount)
	return wallet.Receipt{UserID: userID, AmountCents: amount, BalanceCents: f.balance[userID]}, nil
}

type fakeOrders struct {
	mu      sync.Mutex
	fail    error
	created []orders.Order
}

func (f *fakeOrders) CreatePaid(_ context.Context, userID string, lines []orders.Line, total money.Cents) (orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return orders.Order{}, f.fail
	}
	o := orders.Order{ID: "order-1", UserID: userID, Lines: lines, TotalCents: total, Status: orders.StatusPaid}
	f.created = append(f.created, o)
	return o, nil
}

type fakeCart struct {
	mu     sync.Mutex
	fail   error
	pruned [][]string
}

func (f *fakeCart) Prune(_ context.Context, _ string, productIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.pruned = append(f.pruned, productIDs)
	return nil
}

type fakeCreds struct{ password string }

func (f *fakeCreds) VerifyPayPassword(_ context.Context, _, payPassword string) error {
	if payPassword != f.password {
		return ErrInvalidCredential
	}
	return nil
}

type fixture struct {
	stock  *fakeStock
	ledger *fakeLedger
	orders *fakeOrders
	cart   *fakeCart
	orch   *Orchestrator
}

func newFixture() *fixture {
	f := &fixture{
		stock: &fakeStock{
			stock: map[string]int{"p1": 5, "p2": 3},
			price: map[string]money.Cents{"p1": 1000, "p2": 2500},
		},
		ledger: &fakeLedger{balance: map[string]money.Cents{"u1": 10000}},
		orders: &fakeOrders{},
		cart:   &fakeCart{},
	}
	f.orch = &Orchestrator{
		Stock:       f.stock,
		Ledger:      f.ledger,
		Orders:      f.orders,
		Cart:        f.cart,
		Credentials: &fakeCreds{password: "secret"},
		Log:         zap.NewNop(),
	}
	return f
}

func req(lines ...LineInput) Request {
	return Request{UserID: "u1", Lines: lines, PayPassword: "secret"}
}

func TestExecuteSuccess(t *testing.T) {
	f := newFixture()

	order, err := f.orch.Execute(context.Background(), req(
		LineInput{ProductID: "p1", Quantity: 2},
		LineInput{ProductID: "p2", Quantity: 1},
	))
	require.NoError(t, err)

	assert.Equal(t, orders.StatusPaid, order.Status)
	assert.Equal(t, money.Cents(4500), order.TotalCents) // 2*10.00 + 1*25.00
	require.Len(t, order.Lines, 2)
	assert.Equal(t, money.Cents(1000), order.Lines[0].PriceCents)

	assert.Equal(t, 3, f.stock.stock["p1"])
	assert.Equal(t, 2, f.stock.stock["p2"])
	assert.ElementsMatch(t, []string{"p1", "p2"}, f.stock.committed)
	assert.Empty(t, f.stock.released)

	assert.Equal(t, money.Cents(5500), f.ledger.balance["u1"])

	require.Len(t, f.cart.pruned, 1)
	assert.Equal(t, []string{"p1", "p2"}, f.cart.pruned[0])
}

func TestExecuteInvalidCredential(t *testing.T) {
	f := newFixture()

	_, err := f.orch.Execute(context.Background(), Request{
		UserID:      "u1",
		Lines:       []LineInput{{ProductID: "p1", Quantity: 1}},
		PayPassword: "wrong",
	})
	require.ErrorIs(t, err, ErrInvalidCredential)

	// no side effects at all
	assert.Equal(t, 5, f.stock.stock["p1"])
	assert.Equal(t, money.Cents(10000), f.ledger.balance["u1"])
	assert.Empty(t, f.orders.created)
}

func TestExecuteOutOfStockCompensates(t *testing.T) {
	f := newFixture()

	_, err := f.orch.Execute(context.Background(), req(
		LineInput{ProductID: "p1", Quantity: 2},
		LineInput{ProductID: "p2", Quantity: 4}, // only 3 available
	))

	var oos *catalog.OutOfStockError
	require.ErrorAs(t, err, &oos)
	assert.Equal(t, "p2", oos.ProductID)
	assert.Equal(t, 4, oos.Requested)
	assert.Equal(t, 3, oos.Available)

	// p1's reservation was released, everything back to pre-attempt values
	assert.Equal(t, 5, f.stock.stock["p1"])
	assert.Equal(t, 3, f.stock.stock["p2"])
	assert.Equal(t, money.Cents(10000), f.ledger.balance["u1"])
	assert.Empty(t, f.orders.created)
	assert.Empty(t, f.cart.pruned)
}

func TestExecuteInsufficientFundsCompensates(t *testing.T) {
	f := newFixture()
	f.ledger.balance["u1"] = 500 // 5.00, total will be 45.00

	_, err := f.orch.Execute(context.Background(), req(
		LineInput{ProductID: "p1", Quantity: 2},
		LineInput{ProductID: "p2", Quantity: 1},
	))
	require.ErrorIs(t, err, wallet.ErrInsufficientFunds)

	assert.Equal(t, 5, f.stock.stock["p1"])
	assert.Equal(t, 3, f.stock.stock["p2"])
	assert.Equal(t, money.Cents(500), f.ledger.balance["u1"])
	assert.Len(t, f.stock.released, 2)
	assert.Empty(t, f.orders.created)
}

func TestExecutePersistFailureRefundsAndReleases(t *testing.T) {
	f := newFixture()
	f.orders.fail = errors.New("connection reset")

	_, err := f.orch.Execute(context.Background(), req(LineInput{ProductID: "p1", Quantity: 1}))

	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "persist_order", pe.Step)

	assert.Equal(t, 5, f.stock.stock["p1"])
	assert.Equal(t, money.Cents(10000), f.ledger.balance["u1"])
	require.Len(t, f.ledger.credited, 1)
	assert.Equal(t, money.Cents(1000), f.ledger.credited[0])
	assert.Empty(t, f.cart.pruned)
}

func TestExecuteMergesDuplicateLines(t *testing.T) {
	f := newFixture()

	order, err := f.orch.Execute(context.Background(), req(
		LineInput{ProductID: "p1", Quantity: 1},
		LineInput{ProductID: "p1", Quantity: 2},
	))
	require.NoError(t, err)

	// one combined decrement of the summed quantity
	require.Len(t, order.Lines, 1)
	assert.Equal(t, 3, order.Lines[0].Quantity)
	assert.Equal(t, 2, f.stock.stock["p1"])
	assert.Equal(t, money.Cents(3000), order.TotalCents)
}

func TestExecutePruneFailureIsNonFatal(t *testing.T) {
	f := newFixture()
	f.cart.fail = errors.New("cart store down")

	order, err := f.orch.Execute(context.Background(), req(LineInput{ProductID: "p1", Quantity: 1}))
	require.NoError(t, err)

	// the purchase stands: paid order, stock committed, wallet debited
	assert.Equal(t, orders.StatusPaid, order.Status)
	assert.Equal(t, 4, f.stock.stock["p1"])
	assert.Equal(t, money.Cents(9000), f.ledger.balance["u1"])
}

func TestExecuteConcurrentLastUnit(t *testing.T) {
	f := newFixture()
	f.stock.stock["p1"] = 1
	f.ledger.balance["u1"] = 100000

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.orch.Execute(context.Background(), req(LineInput{ProductID: "p1", Quantity: 1}))
		}(i)
	}
	wg.Wait()

	var successes, outOfStock int
	for _, err := range results {
		if err == nil {
			successes++
			continue
		}
		var oos *catalog.OutOfStockError
		if errors.As(err, &oos) {
			outOfStock++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, outOfStock)
	assert.Equal(t, 0, f.stock.stock["p1"])
	assert.Equal(t, money.Cents(99000), f.ledger.balance["u1"])
}

func TestExecuteValidation(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name string
		req  Request
	}{
		{"no user", Request{Lines: []LineInput{{ProductID: "p1", Quantity: 1}}, PayPassword: "secret"}},
		{"no password", Request{UserID: "u1", Lines: []LineInput{{ProductID: "p1", Quantity: 1}}}},
		{"no lines", Request{UserID: "u1", PayPassword: "secret"}},
		{"zero quantity", req(LineInput{ProductID: "p1", Quantity: 0})},
		{"negative quantity", req(LineInput{ProductID: "p1", Quantity: -2})},
		{"missing product id", req(LineInput{Quantity: 1})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orch.Execute(context.Background(), tt.req)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			// validation never touches shared state
			assert.Equal(t, 5, f.stock.stock["p1"])
			assert.Equal(t, money.Cents(10000), f.ledger.balance["u1"])
		})
	}
}
