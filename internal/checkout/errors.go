package checkout

import (
	"errors"
	"fmt"
)

var ErrInvalidCredential = errors.New("invalid payment credential")

// ValidationError marks malformed input rejected before any state was touched.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return "validation: " + e.Msg }

// PersistenceError surfaces a storage failure from a saga step after retries
// were exhausted. Completed steps have been compensated by the time the
// caller sees it.
type PersistenceError struct {
	Step string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure at %s: %v", e.Step, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
