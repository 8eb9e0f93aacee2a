package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/chen220-Yee/social-shop/internal/money"
)

// StockRepo owns product stock. Nothing else writes products.stock.
type StockRepo struct {
	DB  *pgxpool.Pool
	Log *zap.Logger
}

// Reserve decrements stock for one checkout attempt. The decrement is a
// single conditional UPDATE, so two attempts racing for the last units cannot
// both win: the statement only applies while stock >= qty.
func (r *StockRepo) Reserve(ctx context.Context, attemptID, productID string, qty int) (Reservation, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Reservation{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var price money.Cents
	err = tx.QueryRow(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2
		RETURNING price_cents`, productID, qty).Scan(&price)
	if errors.Is(err, pgx.ErrNoRows) {
		// Lost the race or never had enough; re-read to name the shortfall.
		var available int
		if err := r.DB.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1`, productID).Scan(&available); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return Reservation{}, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
			}
			return Reservation{}, err
		}
		return Reservation{}, &OutOfStockError{ProductID: productID, Requested: qty, Available: available}
	}
	if err != nil {
		return Reservation{}, err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO reservations(attempt_id, product_id, qty, status)
		VALUES ($1,$2,$3,'RESERVED')
		ON CONFLICT (attempt_id, product_id) DO NOTHING`, attemptID, productID, qty); err != nil {
		return Reservation{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Reservation{}, err
	}
	return Reservation{AttemptID: attemptID, ProductID: productID, Qty: qty, PriceCents: price}, nil
}

// Release restores a reserved quantity. The status flip guards the restore,
// so releasing the same reservation twice adds the stock back only once.
func (r *StockRepo) Release(ctx context.Context, res Reservation) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE reservations SET status='RELEASED'
		WHERE attempt_id=$1 AND product_id=$2 AND status='RESERVED'`, res.AttemptID, res.ProductID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		r.Log.Debug("release skipped, reservation not held",
			zap.String("attempt_id", res.AttemptID), zap.String("product_id", res.ProductID))
		return nil
	}
	if _, err := tx.Exec(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`,
		res.ProductID, res.Qty); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Commit marks the decrement final. No stock movement; the decrement already
// happened at Reserve and will no longer be restored.
func (r *StockRepo) Commit(ctx context.Context, res Reservation) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE reservations SET status='COMMITTED'
		WHERE attempt_id=$1 AND product_id=$2 AND status='RESERVED'`, res.AttemptID, res.ProductID)
	return err
}
