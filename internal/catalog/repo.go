package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, stock, price_cents, picture, category, created_at, updated_at
		FROM products ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Stock, &p.PriceCents, &p.Picture, &p.Category, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) GetProduct(ctx context.Context, id string) (Product, error) {
	var p Product
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, stock, price_cents, picture, category, created_at, updated_at
		FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.Stock, &p.PriceCents, &p.Picture, &p.Category, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return p, err
}
