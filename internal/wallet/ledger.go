package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/chen220-Yee/social-shop/internal/money"
)

// Ledger owns wallet balances and the recharge-request log. Balance changes
// go through Debit/Credit only; both are single conditional statements, so
// concurrent mutations on the same account serialize at the row.
type Ledger struct {
	DB  *pgxpool.Pool
	Log *zap.Logger
}

// Debit subtracts amount if the balance covers it. The WHERE clause carries
// the invariant: balance_cents can never go below zero.
func (l *Ledger) Debit(ctx context.Context, userID string, amount money.Cents) (Receipt, error) {
	if amount <= 0 {
		return Receipt{}, ErrInvalidAmount
	}
	var balance money.Cents
	err := l.DB.QueryRow(ctx, `
		UPDATE wallets SET balance_cents = balance_cents - $2
		WHERE user_id = $1 AND balance_cents >= $2
		RETURNING balance_cents`, userID, int64(amount)).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		var cur int64
		err := l.DB.QueryRow(ctx, `SELECT balance_cents FROM wallets WHERE user_id=$1`, userID).Scan(&cur)
		if errors.Is(err, pgx.ErrNoRows) {
			return Receipt{}, fmt.Errorf("%w: %s", ErrAccountNotFound, userID)
		}
		if err != nil {
			return Receipt{}, err
		}
		return Receipt{}, fmt.Errorf("%w: need %s, have %s", ErrInsufficientFunds, amount, money.Cents(cur))
	}
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{UserID: userID, AmountCents: -amount, BalanceCents: balance, At: time.Now().UTC()}, nil
}

// Credit adds amount, creating the account on first use.
func (l *Ledger) Credit(ctx context.Context, userID string, amount money.Cents) (Receipt, error) {
	if amount <= 0 {
		return Receipt{}, ErrInvalidAmount
	}
	var balance money.Cents
	err := l.DB.QueryRow(ctx, `
		INSERT INTO wallets(user_id, balance_cents) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET balance_cents = wallets.balance_cents + EXCLUDED.balance_cents
		RETURNING balance_cents`, userID, int64(amount)).Scan(&balance)
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{UserID: userID, AmountCents: amount, BalanceCents: balance, At: time.Now().UTC()}, nil
}

// SubmitRecharge appends a pending request. The balance is untouched until an
// administrator resolves it.
func (l *Ledger) SubmitRecharge(ctx context.Context, userID string, amount money.Cents) (string, error) {
	if amount <= 0 {
		return "", ErrInvalidAmount
	}
	id := uuid.NewString()
	_, err := l.DB.Exec(ctx, `
		INSERT INTO recharge_requests(id, user_id, amount_cents, status)
		VALUES ($1, $2, $3, 'pending')`, id, userID, int64(amount))
	if err != nil {
		return "", err
	}
	l.Log.Info("recharge submitted",
		zap.String("user_id", userID), zap.String("request_id", id), zap.String("amount", amount.String()))
	return id, nil
}

// Resolve moves a pending request to a terminal state exactly once. The
// pending->terminal flip and the credit share one transaction, and the flip is
// conditional on status='pending': of two concurrent resolutions, exactly one
// sees pending and applies the credit, the other gets ErrAlreadyResolved.
func (l *Ledger) Resolve(ctx context.Context, userID, requestID string, decision Decision) (money.Cents, error) {
	if !decision.Valid() {
		return 0, fmt.Errorf("invalid decision %q", decision)
	}

	tx, err := l.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var amount int64
	err = tx.QueryRow(ctx, `
		UPDATE recharge_requests SET status=$3, resolved_at=now()
		WHERE id=$1 AND user_id=$2 AND status='pending'
		RETURNING amount_cents`, requestID, userID, string(decision.Status())).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		var status string
		err := l.DB.QueryRow(ctx, `
			SELECT status FROM recharge_requests WHERE id=$1 AND user_id=$2`, requestID, userID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrRequestNotFound
		}
		if err != nil {
			return 0, err
		}
		return 0, ErrAlreadyResolved
	}
	if err != nil {
		return 0, err
	}

	if decision == DecisionApprove {
		if _, err := tx.Exec(ctx, `
			INSERT INTO wallets(user_id, balance_cents) VALUES ($1, $2)
			ON CONFLICT (user_id) DO UPDATE SET balance_cents = wallets.balance_cents + EXCLUDED.balance_cents`,
			userID, amount); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	l.Log.Info("recharge resolved",
		zap.String("user_id", userID), zap.String("request_id", requestID), zap.String("decision", string(decision)))
	return money.Cents(amount), nil
}

// Info returns the balance plus the recharge history, newest first.
func (l *Ledger) Info(ctx context.Context, userID string) (Info, error) {
	var balance int64
	err := l.DB.QueryRow(ctx, `SELECT balance_cents FROM wallets WHERE user_id=$1`, userID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		balance = 0 // wallet created lazily; no row means empty wallet
	} else if err != nil {
		return Info{}, err
	}

	rows, err := l.DB.Query(ctx, `
		SELECT id, user_id, amount_cents, status, created_at, resolved_at
		FROM recharge_requests WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return Info{}, err
	}
	defer rows.Close()

	var reqs []RechargeRequest
	for rows.Next() {
		var r RechargeRequest
		if err := rows.Scan(&r.ID, &r.UserID, &r.AmountCents, &r.Status, &r.CreatedAt, &r.ResolvedAt); err != nil {
			return Info{}, err
		}
		reqs = append(reqs, r)
	}
	if err := rows.Err(); err != nil {
		return Info{}, err
	}
	b := money.Cents(balance)
	return Info{BalanceCents: b, Balance: b.String(), RechargeRequests: reqs}, nil
}

// ListPending returns pending requests across all accounts, oldest first, for
// the admin review queue.
func (l *Ledger) ListPending(ctx context.Context) ([]RechargeRequest, error) {
	rows, err := l.DB.Query(ctx, `
		SELECT id, user_id, amount_cents, status, created_at, resolved_at
		FROM recharge_requests WHERE status='pending' ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []RechargeRequest
	for rows.Next() {
		var r RechargeRequest
		if err := rows.Scan(&r.ID, &r.UserID, &r.AmountCents, &r.Status, &r.CreatedAt, &r.ResolvedAt); err != nil {
			return nil, err
		}
		reqs = append(reqs, r)
	}
	return reqs, rows.Err()
}
