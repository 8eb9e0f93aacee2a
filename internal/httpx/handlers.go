package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/chen220-Yee/social-shop/internal/auth"
	"github.com/chen220-Yee/social-shop/internal/cart"
	"github.com/chen220-Yee/social-shop/internal/catalog"
	"github.com/chen220-Yee/social-shop/internal/checkout"
	"github.com/chen220-Yee/social-shop/internal/metrics"
	"github.com/chen220-Yee/social-shop/internal/money"
	"github.com/chen220-Yee/social-shop/internal/orders"
	"github.com/chen220-Yee/social-shop/internal/redisx"
	"github.com/chen220-Yee/social-shop/internal/wallet"
)

type CheckoutService interface {
	Execute(ctx context.Context, req checkout.Request) (orders.Order, error)
}

type OrderStore interface {
	ListPaid(ctx context.Context, userID string, page, limit int) ([]orders.Order, int, error)
	Cancel(ctx context.Context, userID, orderID string) error
}

type WalletService interface {
	Info(ctx context.Context, userID string) (wallet.Info, error)
	SubmitRecharge(ctx context.Context, userID string, amount money.Cents) (string, error)
	Resolve(ctx context.Context, userID, requestID string, decision wallet.Decision) (money.Cents, error)
	ListPending(ctx context.Context) ([]wallet.RechargeRequest, error)
}

type CartService interface {
	Get(ctx context.Context, userID string) ([]cart.Line, error)
	AddLine(ctx context.Context, userID, productID string, qty int) error
	SetLine(ctx context.Context, userID, productID string, qty int) error
	RemoveLine(ctx context.Context, userID, productID string) error
}

type ProductLister interface {
	ListProducts(ctx context.Context) ([]catalog.Product, error)
	GetProduct(ctx context.Context, id string) (catalog.Product, error)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type ShopHandler struct {
	Checkout        CheckoutService
	Orders          OrderStore
	Wallet          WalletService
	Cart            CartService
	Catalog         ProductLister
	OrderEvents     Publisher // shop.order.paid
	CancelEvents    Publisher // shop.order.cancelled
	RechargeEvents  Publisher // shop.wallet.recharge.resolved
	Redis           *redis.Client
	Log             *zap.Logger
	RechargeMetrics *metrics.Recharge
	Service         string
}

func (h *ShopHandler) Register(r *chi.Mux, jwtSecret string) {
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(jwtSecret))

		r.Post("/checkout", h.createOrder)
		r.Get("/orders", h.listOrders)
		r.Put("/orders/{id}/cancel", h.cancelOrder)

		r.Get("/products", h.listProducts)

		r.Get("/cart", h.getCart)
		r.Post("/cart", h.addCartLine)
		r.Put("/cart/{productID}", h.setCartLine)
		r.Delete("/cart/{productID}", h.removeCartLine)

		r.Get("/wallet", h.walletInfo)
		r.Post("/wallet/recharge", h.submitRecharge)

		r.Get("/admin/recharges", h.listPendingRecharges)
		r.Put("/admin/recharges/{userID}/{requestID}", h.resolveRecharge)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain failures to HTTP codes. Storage internals never
// reach the client; anything unrecognized becomes a generic 500.
func (h *ShopHandler) writeError(w http.ResponseWriter, err error) {
	var ve *checkout.ValidationError
	var oos *catalog.OutOfStockError

	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": ve.Msg})
	case errors.Is(err, checkout.ErrInvalidCredential):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid pay password"})
	case errors.As(err, &oos):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":      "out of stock",
			"product_id": oos.ProductID,
			"requested":  oos.Requested,
			"available":  oos.Available,
		})
	case errors.Is(err, wallet.ErrInsufficientFunds):
		writeJSON(w, http.StatusPaymentRequired, map[string]string{"error": "insufficient balance"})
	case errors.Is(err, wallet.ErrInvalidAmount):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must be greater than zero"})
	case errors.Is(err, wallet.ErrAlreadyResolved):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "already processed"})
	case errors.Is(err, orders.ErrNotFound),
		errors.Is(err, wallet.ErrRequestNotFound),
		errors.Is(err, wallet.ErrAccountNotFound),
		errors.Is(err, cart.ErrLineNotFound),
		errors.Is(err, catalog.ErrProductNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	default:
		h.Log.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// cacheOrderStatus warms the read cache the notifier also maintains. Failures
// only cost a cache miss.
func (h *ShopHandler) cacheOrderStatus(ctx context.Context, orderID, status string) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	val := fmt.Sprintf(`{"status":%q}`, status)
	if err := h.Redis.Set(ctx, key, val, redisx.TTLStatusCache).Err(); err != nil {
		h.Log.Warn("status cache write failed", zap.String("order_id", orderID), zap.Error(err))
	}
}

func identity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
	}
	return id, ok
}

func requireAdmin(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := identity(w, r)
	if !ok {
		return id, false
	}
	if !id.Admin {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
		return id, false
	}
	return id, true
}
