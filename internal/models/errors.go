package models

import "errors"

// Domain error taxonomy. Every failed operation reports exactly one of these
// through the error chain; callers branch with errors.Is.
var (
	// ErrNotFound is returned when an order, wallet, user or transaction
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is returned when the acting user does not own the
	// resource being mutated or viewed.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrOrderNotActive is returned on any mutation attempt against an
	// order in a terminal state.
	ErrOrderNotActive = errors.New("order not active")

	// ErrOrderOverfill is returned when a fill exceeds the order's
	// remaining amount.
	ErrOrderOverfill = errors.New("fill exceeds remaining amount")

	// ErrInsufficientFunds is returned when a debit would take a wallet
	// balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrSelfTrade is returned when the counterparty of a trade is the
	// order owner.
	ErrSelfTrade = errors.New("cannot trade with yourself")

	// ErrInvalidArgument is returned for non-positive amounts and unknown
	// enum values.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAlreadyExists is returned when a uniqueness rule would be
	// violated (duplicate email, duplicate wallet currency).
	ErrAlreadyExists = errors.New("already exists")
)

// RetryableError marks a transient datastore failure (serialization
// conflict, deadlock, lost connection). The whole atomic unit rolled back
// with zero side effects; the caller may retry it.
type RetryableError struct {
	Op  string
	Err error
}

func (e *RetryableError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err wraps a transient failure worth retrying.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
