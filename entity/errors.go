package entity

import "errors"

var (
	// ErrSessionFull is a definitive business rejection, never retried.
	ErrSessionFull = errors.New("session is full")

	// ErrInvalidTransition means the requested booking status change is not
	// in the transition table. If the UI triggers it, it is a bug.
	ErrInvalidTransition = errors.New("invalid booking status transition")

	// ErrConcurrentModification means an optimistic status check-and-set
	// lost a race. Callers retry once before surfacing it.
	ErrConcurrentModification = errors.New("booking was modified concurrently")

	ErrVerificationFailed = errors.New("webhook signature verification failed")

	// ErrPaymentUnavailable is returned after the bounded retry budget for
	// transient gateway errors is exhausted.
	ErrPaymentUnavailable = errors.New("payment provider is unavailable")

	// ErrRefundExceedsCaptured guards the cumulative refund bound: the sum of
	// processed refunds for a payment must never exceed the captured amount.
	ErrRefundExceedsCaptured = errors.New("refund exceeds captured amount")

	ErrNotFound = errors.New("not found")
)
