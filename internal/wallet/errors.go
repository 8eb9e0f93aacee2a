package wallet

import "errors"

var (
	ErrAccountNotFound   = errors.New("wallet account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrRequestNotFound   = errors.New("recharge request not found")
	// ErrAlreadyResolved means the request already reached a terminal state.
	// A retried approval hits this instead of crediting twice.
	ErrAlreadyResolved = errors.New("recharge request already resolved")
	ErrInvalidAmount   = errors.New("amount must be greater than zero")
)
