package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/chen220-Yee/social-shop/internal/checkout"
)

// PayPasswordVerifier checks a presented pay password against the bcrypt hash
// stored with the user record.
type PayPasswordVerifier struct{ DB *pgxpool.Pool }

func (v *PayPasswordVerifier) VerifyPayPassword(ctx context.Context, userID, payPassword string) error {
	var hash string
	err := v.DB.QueryRow(ctx, `SELECT password_hash FROM users WHERE id=$1`, userID).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return checkout.ErrInvalidCredential
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(payPassword)) != nil {
		return checkout.ErrInvalidCredential
	}
	return nil
}
