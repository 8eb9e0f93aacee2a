package wallet

import (
	"time"

	"github.com/chen220-Yee/social-shop/internal/money"
)

type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

type Decision string

const (
	DecisionApprove Decision = "approved"
	DecisionReject  Decision = "rejected"
)

func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionReject
}

func (d Decision) Status() RequestStatus {
	if d == DecisionApprove {
		return StatusApproved
	}
	return StatusRejected
}

type RechargeRequest struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	AmountCents money.Cents   `json:"amount_cents"`
	Status      RequestStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	ResolvedAt  *time.Time    `json:"resolved_at,omitempty"`
}

type Info struct {
	BalanceCents     money.Cents       `json:"balance_cents"`
	Balance          string            `json:"balance"`
	RechargeRequests []RechargeRequest `json:"recharge_requests"`
}

// Receipt records the outcome of one balance mutation.
type Receipt struct {
	UserID       string      `json:"user_id"`
	AmountCents  money.Cents `json:"amount_cents"`
	BalanceCents money.Cents `json:"balance_cents"`
	At           time.Time   `json:"at"`
}
