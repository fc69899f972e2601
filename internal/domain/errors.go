package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound          = errors.New("entity not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountNotActive  = errors.New("account is not active")
	ErrSameAccount       = errors.New("source and destination accounts are the same")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidState      = errors.New("illegal state transition")
)

// EligibilityError reports every violated loan-eligibility rule, not just
// the first one.
type EligibilityError struct {
	Reasons []string
}

func (e *EligibilityError) Error() string {
	return "loan eligibility failed: " + strings.Join(e.Reasons, "; ")
}

// TransientError marks a persistence hiccup that left domain state
// unchanged. It is the only error in the taxonomy a caller may retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient storage error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
