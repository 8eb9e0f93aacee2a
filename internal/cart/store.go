package cart

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrLineNotFound = errors.New("cart line not found")

type Line struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Store owns a user's pending-purchase lines, one row per (user, product).
type Store struct{ DB *pgxpool.Pool }

func (s *Store) Get(ctx context.Context, userID string) ([]Line, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT product_id, quantity FROM cart_items
		WHERE user_id=$1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ProductID, &l.Quantity); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// AddLine merges the quantity into an existing line for the same product
// instead of duplicating it.
func (s *Store) AddLine(ctx context.Context, userID, productID string, qty int) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO cart_items(user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()`,
		userID, productID, qty)
	return err
}

// SetLine replaces the quantity of an existing line.
func (s *Store) SetLine(ctx context.Context, userID, productID string, qty int) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE cart_items SET quantity=$3, updated_at=now()
		WHERE user_id=$1 AND product_id=$2`, userID, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrLineNotFound
	}
	return nil
}

func (s *Store) RemoveLine(ctx context.Context, userID, productID string) error {
	ct, err := s.DB.Exec(ctx, `
		DELETE FROM cart_items WHERE user_id=$1 AND product_id=$2`, userID, productID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrLineNotFound
	}
	return nil
}

// Prune removes exactly the given product ids after a successful checkout.
// Ids already absent are skipped, so a retried prune is a no-op.
func (s *Store) Prune(ctx context.Context, userID string, productIDs []string) error {
	if len(productIDs) == 0 {
		return nil
	}
	_, err := s.DB.Exec(ctx, `
		DELETE FROM cart_items WHERE user_id=$1 AND product_id = ANY($2)`,
		userID, productIDs)
	return err
}
