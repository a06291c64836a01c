package services

import "errors"

var (
	// ErrNotFound matches standard 404 behavior
	ErrNotFound = errors.New("record not found")

	// ErrValidation covers malformed input and missing required fields.
	// Retrying the same request will not fix it.
	ErrValidation = errors.New("validation failed")

	// ErrSignature is a webhook authentication failure. No processing
	// happens after it; a legitimate sender never produces it.
	ErrSignature = errors.New("invalid signature")

	// ErrConflict means a concurrent mutation lost a race. Retryable.
	ErrConflict = errors.New("conflicting concurrent update")
)
