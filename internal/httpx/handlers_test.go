package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chen220-Yee/social-shop/internal/auth"
	"github.com/chen220-Yee/social-shop/internal/cart"
	"github.com/chen220-Yee/social-shop/internal/catalog"
	"github.com/chen220-Yee/social-shop/internal/checkout"
	"github.com/chen220-Yee/social-shop/internal/money"
	"github.com/chen220-Yee/social-shop/internal/orders"
	"github.com/chen220-Yee/social-shop/internal/wallet"
)

const testSecret = "test-secret"

type fakeCheckout struct {
	order orders.Order
	err   error
}

func (f *fakeCheckout) Execute(_ context.Context, _ checkout.Request) (orders.Order, error) {
	return f.order, f.err
}

type fakeOrderStore struct {
	list      []orders.Order
	total     int
	cancelErr error
}

func (f *fakeOrderStore) ListPaid(_ context.Context, _ string, _, _ int) ([]orders.Order, int, error) {
	return f.list, f.total, nil
}

func (f *fakeOrderStore) Cancel(_ context.Context, _, _ string) error { return f.cancelErr }

type fakeWallet struct {
	info       wallet.Info
	pending    []wallet.RechargeRequest
	resolveErr error
}

func (f *fakeWallet) Info(_ context.Context, _ string) (wallet.Info, error) { return f.info, nil }

func (f *fakeWallet) SubmitRecharge(_ context.Context, _ string, amount money.Cents) (string, error) {
	if amount <= 0 {
		return "", wallet.ErrInvalidAmount
	}
	return "req-1", nil
}

func (f *fakeWallet) Resolve(_ context.Context, _, _ string, _ wallet.Decision) (money.Cents, error) {
	if f.resolveErr != nil {
		return 0, f.resolveErr
	}
	return 2000, nil
}

func (f *fakeWallet) ListPending(_ context.Context) ([]wallet.RechargeRequest, error) {
	return f.pending, nil
}

type fakeCartSvc struct{ lines []cart.Line }

func (f *fakeCartSvc) Get(_ context.Context, _ string) ([]cart.Line, error) { return f.lines, nil }
func (f *fakeCartSvc) AddLine(_ context.Context, _, _ string, _ int) error  { return nil }
func (f *fakeCartSvc) SetLine(_ context.Context, _, _ string, _ int) error  { return nil }
func (f *fakeCartSvc) RemoveLine(_ context.Context, _, _ string) error      { return nil }

type fakeCatalog struct{ products []catalog.Product }

func (f *fakeCatalog) ListProducts(_ context.Context) ([]catalog.Product, error) {
	return f.products, nil
}

func (f *fakeCatalog) GetProduct(_ context.Context, id string) (catalog.Product, error) {
	for _, p := range f.products {
		if p.ID == id {
			return p, nil
		}
	}
	return catalog.Product{}, catalog.ErrProductNotFound
}

type fakePublisher struct {
	mu       sync.Mutex
	messages [][]byte
}

func (f *fakePublisher) Publish(_, value []byte, _ ...kafkago.Header) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, value)
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

type env struct {
	router   *chi.Mux
	checkout *fakeCheckout
	orders   *fakeOrderStore
	wallet   *fakeWallet
	paid     *fakePublisher
	cancel   *fakePublisher
	recharge *fakePublisher
}

func newEnv() *env {
	e := &env{
		checkout: &fakeCheckout{},
		orders:   &fakeOrderStore{},
		wallet:   &fakeWallet{},
		paid:     &fakePublisher{},
		cancel:   &fakePublisher{},
		recharge: &fakePublisher{},
	}
	h := &ShopHandler{
		Checkout:       e.checkout,
		Orders:         e.orders,
		Wallet:         e.wallet,
		Cart:           &fakeCartSvc{},
		Catalog:        &fakeCatalog{products: []catalog.Product{{ID: "p1", PriceCents: 1000, Stock: 5}}},
		OrderEvents:    e.paid,
		CancelEvents:   e.cancel,
		RechargeEvents: e.recharge,
		Log:            zap.NewNop(),
		Service:        "shop-api-test",
	}
	r := chi.NewRouter()
	h.Register(r, testSecret)
	e.router = r
	return e
}

func (e *env) do(t *testing.T, method, path string, body any, userID string, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		token, err := auth.NewToken(testSecret, userID, admin, time.Hour)
		require.NoError(t, err)
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, r)
	return w
}

func TestCheckoutHandler(t *testing.T) {
	t.Run("success publishes order paid", func(t *testing.T) {
		e := newEnv()
		e.checkout.order = orders.Order{
			ID: "order-1", UserID: "u1", Status: orders.StatusPaid, TotalCents: 1000,
			Lines: []orders.Line{{ProductID: "p1", Quantity: 1, PriceCents: 1000}},
		}
		w := e.do(t, http.MethodPost, "/checkout",
			CreateOrderReq{Lines: []checkout.LineInput{{ProductID: "p1", Quantity: 1}}, PayPassword: "x"}, "u1", false)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, e.paid.count())
	})

	t.Run("unauthenticated", func(t *testing.T) {
		e := newEnv()
		w := e.do(t, http.MethodPost, "/checkout", CreateOrderReq{}, "", false)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"invalid credential", checkout.ErrInvalidCredential, http.StatusBadRequest},
		{"out of stock", &catalog.OutOfStockError{ProductID: "p1", Requested: 2, Available: 1}, http.StatusConflict},
		{"insufficient funds", wallet.ErrInsufficientFunds, http.StatusPaymentRequired},
		{"validation", &checkout.ValidationError{Msg: "no line items"}, http.StatusBadRequest},
		{"persistence", &checkout.PersistenceError{Step: "persist_order"}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv()
			e.checkout.err = tt.err
			w := e.do(t, http.MethodPost, "/checkout",
				CreateOrderReq{Lines: []checkout.LineInput{{ProductID: "p1", Quantity: 1}}, PayPassword: "x"}, "u1", false)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, 0, e.paid.count(), "failed checkout must not publish")
		})
	}

	t.Run("out of stock names the shortfall", func(t *testing.T) {
		e := newEnv()
		e.checkout.err = &catalog.OutOfStockError{ProductID: "p1", Requested: 2, Available: 1}
		w := e.do(t, http.MethodPost, "/checkout",
			CreateOrderReq{Lines: []checkout.LineInput{{ProductID: "p1", Quantity: 2}}, PayPassword: "x"}, "u1", false)

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "p1", body["product_id"])
		assert.Equal(t, float64(2), body["requested"])
		assert.Equal(t, float64(1), body["available"])
	})
}

func TestListOrdersHandler(t *testing.T) {
	e := newEnv()
	e.orders.list = []orders.Order{{ID: "o1", Status: orders.StatusPaid}}
	e.orders.total = 11

	w := e.do(t, http.MethodGet, "/orders?page=2&limit=5", nil, "u1", false)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ListOrdersResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 11, resp.Total)
	assert.Equal(t, 2, resp.Page)
	assert.Equal(t, 5, resp.Limit)
	assert.Len(t, resp.Orders, 1)
}

func TestCancelOrderHandler(t *testing.T) {
	t.Run("not cancellable", func(t *testing.T) {
		e := newEnv()
		e.orders.cancelErr = orders.ErrNotFound
		w := e.do(t, http.MethodPut, "/orders/o1/cancel", nil, "u1", false)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, 0, e.cancel.count())
	})

	t.Run("cancelled publishes event", func(t *testing.T) {
		e := newEnv()
		w := e.do(t, http.MethodPut, "/orders/o1/cancel", nil, "u1", false)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, e.cancel.count())
	})
}

func TestRechargeHandlers(t *testing.T) {
	t.Run("submit", func(t *testing.T) {
		e := newEnv()
		w := e.do(t, http.MethodPost, "/wallet/recharge", RechargeReq{Amount: 20.00}, "u1", false)
		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "pending", body["status"])
		assert.NotEmpty(t, body["request_id"])
	})

	t.Run("submit non-positive amount", func(t *testing.T) {
		e := newEnv()
		w := e.do(t, http.MethodPost, "/wallet/recharge", RechargeReq{Amount: 0}, "u1", false)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("admin listing forbidden for users", func(t *testing.T) {
		e := newEnv()
		w := e.do(t, http.MethodGet, "/admin/recharges", nil, "u1", false)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("admin listing", func(t *testing.T) {
		e := newEnv()
		e.wallet.pending = []wallet.RechargeRequest{{ID: "r1", Status: wallet.StatusPending}}
		w := e.do(t, http.MethodGet, "/admin/recharges", nil, "admin-1", true)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("resolve forbidden for users", func(t *testing.T) {
		e := newEnv()
		w := e.do(t, http.MethodPut, "/admin/recharges/u1/r1",
			ResolveRechargeReq{Decision: "approved"}, "u1", false)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, 0, e.recharge.count())
	})

	t.Run("resolve publishes event", func(t *testing.T) {
		e := newEnv()
		w := e.do(t, http.MethodPut, "/admin/recharges/u1/r1",
			ResolveRechargeReq{Decision: "approved"}, "admin-1", true)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, e.recharge.count())
	})

	t.Run("resolve already resolved", func(t *testing.T) {
		e := newEnv()
		e.wallet.resolveErr = wallet.ErrAlreadyResolved
		w := e.do(t, http.MethodPut, "/admin/recharges/u1/r1",
			ResolveRechargeReq{Decision: "approved"}, "admin-1", true)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, 0, e.recharge.count())
	})

	t.Run("resolve bad decision", func(t *testing.T) {
		e := newEnv()
		w := e.do(t, http.MethodPut, "/admin/recharges/u1/r1",
			ResolveRechargeReq{Decision: "maybe"}, "admin-1", true)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCartHandlers(t *testing.T) {
	t.Run("add unknown product", func(t *testing.T) {
		e := newEnv()
		w := e.do(t, http.MethodPost, "/cart", CartLineReq{ProductID: "ghost", Quantity: 1}, "u1", false)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("add", func(t *testing.T) {
		e := newEnv()
		w := e.do(t, http.MethodPost, "/cart", CartLineReq{ProductID: "p1", Quantity: 2}, "u1", false)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("set requires positive quantity", func(t *testing.T) {
		e := newEnv()
		w := e.do(t, http.MethodPut, "/cart/p1", CartQtyReq{Quantity: 0}, "u1", false)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
