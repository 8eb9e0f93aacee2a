package orders

import (
	"time"

	"github.com/chen220-Yee/social-shop/internal/money"
)

type Order struct {
	ID         string      `json:"id"`
	UserID     string      `json:"user_id"`
	Lines      []Line      `json:"lines"`
	TotalCents money.Cents `json:"total_cents"`
	Status     Status      `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Line freezes the price at purchase time. Later catalog price changes do not
// rewrite historical totals.
type Line struct {
	ProductID  string      `json:"product_id"`
	Quantity   int         `json:"quantity"`
	PriceCents money.Cents `json:"price_cents"`
}
