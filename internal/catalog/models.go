package catalog

import (
	"time"

	"github.com/chen220-Yee/social-shop/internal/money"
)

type Product struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Stock      int         `json:"stock"`
	PriceCents money.Cents `json:"price_cents"`
	Picture    string      `json:"picture"`
	Category   string      `json:"category"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// Reservation is a provisional stock decrement tied to one checkout attempt.
// It stays reversible until Commit flips it final.
type Reservation struct {
	AttemptID  string
	ProductID  string
	Qty        int
	PriceCents money.Cents // price at reservation time, frozen for the order
}
