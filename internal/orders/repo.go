package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chen220-Yee/social-shop/internal/money"
)

var ErrNotFound = errors.New("order not found")

type Repo struct{ DB *pgxpool.Pool }

// CreatePaid persists an order directly in the paid state with its frozen
// lines and total, all in one transaction. The checkout saga is the only
// caller; no pending order is ever written.
func (r *Repo) CreatePaid(ctx context.Context, userID string, lines []Line, total money.Cents) (Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o := Order{
		ID:         uuid.NewString(),
		UserID:     userID,
		Lines:      lines,
		TotalCents: total,
		Status:     StatusPaid,
		CreatedAt:  time.Now().UTC(),
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO orders(id, user_id, status, total_cents, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		o.ID, o.UserID, string(o.Status), int64(o.TotalCents), o.CreatedAt); err != nil {
		return Order{}, err
	}
	for _, l := range lines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, qty, price_cents)
			VALUES ($1, $2, $3, $4)`,
			o.ID, l.ProductID, l.Quantity, int64(l.PriceCents)); err != nil {
			return Order{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	return o, nil
}

// ListPaid returns a user's paid orders, newest first, with the total count
// for pagination.
func (r *Repo) ListPaid(ctx context.Context, userID string, page, limit int) ([]Order, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	var total int
	if err := r.DB.QueryRow(ctx, `
		SELECT COUNT(*) FROM orders WHERE user_id=$1 AND status='paid'`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT id, user_id, status, total_cents, created_at
		FROM orders WHERE user_id=$1 AND status='paid'
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Status, &o.TotalCents, &o.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range out {
		lines, err := r.loadLines(ctx, out[i].ID)
		if err != nil {
			return nil, 0, err
		}
		out[i].Lines = lines
	}
	return out, total, nil
}

func (r *Repo) loadLines(ctx context.Context, orderID string) ([]Line, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT product_id, qty, price_cents FROM order_items WHERE order_id=$1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ProductID, &l.Quantity, &l.PriceCents); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// Cancel flips a paid order to cancelled. The status condition makes it a
// no-op when the order is missing, someone else's, or already terminal; the
// caller cannot tell those apart and gets ErrNotFound for all of them.
func (r *Repo) Cancel(ctx context.Context, userID, orderID string) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status='cancelled'
		WHERE id=$1 AND user_id=$2 AND status='paid'`, orderID, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) GetStatus(ctx context.Context, orderID string) (Status, error) {
	var s string
	err := r.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, orderID).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return Status(s), nil
}
