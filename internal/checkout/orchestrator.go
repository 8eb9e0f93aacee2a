// Package checkout runs one purchase as a saga across stock, wallet, orders
// and cart. Each step is a blocking call to its owning store; the orchestrator
// holds no lock across steps. Correctness comes from the stores' conditional
// writes plus reverse-order compensation when a step fails.
package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chen220-Yee/social-shop/internal/catalog"
	"github.com/chen220-Yee/social-shop/internal/metrics"
	"github.com/chen220-Yee/social-shop/internal/money"
	"github.com/chen220-Yee/social-shop/internal/orders"
	"github.com/chen220-Yee/social-shop/internal/wallet"
)

type Stock interface {
	Reserve(ctx context.Context, attemptID, productID string, qty int) (catalog.Reservation, error)
	Release(ctx context.Context, res catalog.Reservation) error
	Commit(ctx context.Context, res catalog.Reservation) error
}

type Ledger interface {
	Debit(ctx context.Context, userID string, amount money.Cents) (wallet.Receipt, error)
	Credit(ctx context.Context, userID string, amount money.Cents) (wallet.Receipt, error)
}

type OrderWriter interface {
	CreatePaid(ctx context.Context, userID string, lines []orders.Line, total money.Cents) (orders.Order, error)
}

type CartPruner interface {
	Prune(ctx context.Context, userID string, productIDs []string) error
}

// CredentialVerifier checks the pay password presented with a checkout.
// Returns ErrInvalidCredential on mismatch.
type CredentialVerifier interface {
	VerifyPayPassword(ctx context.Context, userID, payPassword string) error
}

type LineInput struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type Request struct {
	UserID      string
	Lines       []LineInput
	PayPassword string
}

type Orchestrator struct {
	Stock       Stock
	Ledger      Ledger
	Orders      OrderWriter
	Cart        CartPruner
	Credentials CredentialVerifier
	Log         *zap.Logger
	Metrics     *metrics.Checkout

	// StepTimeout bounds each saga step; a step that overruns is treated as
	// failed and compensated. Zero means 5s.
	StepTimeout time.Duration
}

const (
	compensateAttempts = 5
	compensateBackoff  = 100 * time.Millisecond
	pruneAttempts      = 3
)

func (o *Orchestrator) stepTimeout() time.Duration {
	if o.StepTimeout > 0 {
		return o.StepTimeout
	}
	return 5 * time.Second
}

// Execute runs the saga: verify credential, reserve stock per line, debit the
// wallet, persist the paid order, then commit reservations and prune the
// cart. Steps 1-4 are all-or-nothing; the final commit+prune is best-effort.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (orders.Order, error) {
	lines, err := normalize(req)
	if err != nil {
		return orders.Order{}, err
	}
	start := time.Now()
	defer func() {
		if o.Metrics != nil {
			o.Metrics.Duration.Observe(float64(time.Since(start).Milliseconds()))
		}
	}()
	attemptID := uuid.NewString()
	log := o.Log.With(zap.String("attempt_id", attemptID), zap.String("user_id", req.UserID))

	// Step 1: credential check, no side effects yet.
	if err := o.step(ctx, func(sc context.Context) error {
		return o.Credentials.VerifyPayPassword(sc, req.UserID, req.PayPassword)
	}); err != nil {
		o.observe("invalid_credential")
		return orders.Order{}, err
	}

	// Step 2: reserve stock in submission order. First failure releases
	// everything reserved so far in this attempt.
	reserved := make([]catalog.Reservation, 0, len(lines))
	for _, l := range lines {
		var res catalog.Reservation
		err := o.step(ctx, func(sc context.Context) (e error) {
			res, e = o.Stock.Reserve(sc, attemptID, l.ProductID, l.Quantity)
			return e
		})
		if err != nil {
			log.Info("reserve failed, compensating", zap.String("product_id", l.ProductID), zap.Error(err))
			o.releaseAll(ctx, log, reserved)
			o.observe("out_of_stock")
			return orders.Order{}, err
		}
		reserved = append(reserved, res)
	}

	// Step 3: debit with the total computed from reservation-time prices.
	var total money.Cents
	orderLines := make([]orders.Line, 0, len(reserved))
	for _, res := range reserved {
		total += res.PriceCents.Mul(res.Qty)
		orderLines = append(orderLines, orders.Line{
			ProductID: res.ProductID, Quantity: res.Qty, PriceCents: res.PriceCents,
		})
	}
	if err := o.step(ctx, func(sc context.Context) error {
		_, e := o.Ledger.Debit(sc, req.UserID, total)
		return e
	}); err != nil {
		log.Info("debit failed, compensating", zap.String("total", total.String()), zap.Error(err))
		o.releaseAll(ctx, log, reserved)
		o.observe("insufficient_funds")
		return orders.Order{}, err
	}

	// Step 4: persist the order already paid. On failure refund first, then
	// release, the reverse of the order the steps ran in.
	var order orders.Order
	if err := o.step(ctx, func(sc context.Context) (e error) {
		order, e = o.Orders.CreatePaid(sc, req.UserID, orderLines, total)
		return e
	}); err != nil {
		log.Error("order persist failed, compensating", zap.Error(err))
		o.refund(ctx, log, req.UserID, total)
		o.releaseAll(ctx, log, reserved)
		o.observe("persistence_error")
		return orders.Order{}, &PersistenceError{Step: "persist_order", Err: err}
	}

	// Step 5: the purchase is final. Commit reservations and prune the cart;
	// neither can roll back a paid order, failures are logged and retryable.
	for _, res := range reserved {
		if err := o.Stock.Commit(ctx, res); err != nil {
			log.Warn("reservation commit failed", zap.String("product_id", res.ProductID), zap.Error(err))
		}
	}
	productIDs := make([]string, 0, len(reserved))
	for _, res := range reserved {
		productIDs = append(productIDs, res.ProductID)
	}
	if err := withRetry(ctx, pruneAttempts, compensateBackoff, func(rc context.Context) error {
		return o.Cart.Prune(rc, req.UserID, productIDs)
	}); err != nil {
		log.Warn("cart prune failed", zap.Error(err))
	}

	o.observe("completed")
	log.Info("checkout completed",
		zap.String("order_id", order.ID), zap.String("total", total.String()), zap.Int("lines", len(orderLines)))
	return order, nil
}

func (o *Orchestrator) step(ctx context.Context, fn func(context.Context) error) error {
	sc, cancel := context.WithTimeout(ctx, o.stepTimeout())
	defer cancel()
	return fn(sc)
}

// releaseAll undoes reservations in reverse order. It runs detached from the
// request context so a client timeout cannot strand reserved stock.
func (o *Orchestrator) releaseAll(ctx context.Context, log *zap.Logger, reserved []catalog.Reservation) {
	cc, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	for i := len(reserved) - 1; i >= 0; i-- {
		res := reserved[i]
		if err := withRetry(cc, compensateAttempts, compensateBackoff, func(rc context.Context) error {
			return o.Stock.Release(rc, res)
		}); err != nil {
			log.Error("reservation release failed after retries",
				zap.String("product_id", res.ProductID), zap.Error(err))
		}
		if o.Metrics != nil {
			o.Metrics.Compensations.WithLabelValues("release_stock").Inc()
		}
	}
}

func (o *Orchestrator) refund(ctx context.Context, log *zap.Logger, userID string, amount money.Cents) {
	cc, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := withRetry(cc, compensateAttempts, compensateBackoff, func(rc context.Context) error {
		_, e := o.Ledger.Credit(rc, userID, amount)
		return e
	}); err != nil {
		log.Error("refund failed after retries", zap.String("amount", amount.String()), zap.Error(err))
	}
	if o.Metrics != nil {
		o.Metrics.Compensations.WithLabelValues("refund_wallet").Inc()
	}
}

func (o *Orchestrator) observe(result string) {
	if o.Metrics != nil {
		o.Metrics.Attempts.WithLabelValues(result).Inc()
	}
}

// normalize validates the request and merges duplicate product lines into a
// single summed quantity, keeping the first position.
func normalize(req Request) ([]LineInput, error) {
	if req.UserID == "" {
		return nil, &ValidationError{Msg: "missing user id"}
	}
	if req.PayPassword == "" {
		return nil, &ValidationError{Msg: "missing pay password"}
	}
	if len(req.Lines) == 0 {
		return nil, &ValidationError{Msg: "no line items"}
	}
	index := map[string]int{}
	out := make([]LineInput, 0, len(req.Lines))
	for _, l := range req.Lines {
		if l.ProductID == "" {
			return nil, &ValidationError{Msg: "missing product id"}
		}
		if l.Quantity <= 0 {
			return nil, &ValidationError{Msg: "quantity must be positive for product " + l.ProductID}
		}
		if i, ok := index[l.ProductID]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out, nil
}
