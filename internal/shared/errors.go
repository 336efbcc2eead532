package shared

import "errors"

var (
	// ErrValidation indicates bad caller input; the store was never touched.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates a referenced entity is missing.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyCanceled rejects a second reversal of the same operation.
	ErrAlreadyCanceled = errors.New("already canceled")
	// ErrUnavailable surfaces store contention that outlived the retry budget.
	ErrUnavailable = errors.New("store unavailable")
	// ErrInvalidTransition rejects a status change the state machine forbids.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInsufficientStock rejects consumption beyond quantity on hand.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrPartialReversal marks a committed inventory reversal whose finance
	// cleanup failed afterwards. The inventory reversal is not rolled back.
	ErrPartialReversal = errors.New("reversal committed, finance cleanup pending")
)
