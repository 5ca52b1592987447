package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")

	// Reconciliation
	ErrVersionConflict = errors.New("document version conflict")
	ErrOrderNotFound   = errors.New("order not found for user")
	ErrMalformedEvent  = errors.New("malformed payment event")

	// Webhook authentication. Callers must not reveal which one occurred
	// beyond the HTTP status.
	ErrMissingSignature = errors.New("webhook signature missing")
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// Checkout
	ErrInvalidPaymentSignature = errors.New("invalid payment signature")
	ErrPaymentMismatch         = errors.New("payment does not belong to order")
	ErrPaymentNotCaptured      = errors.New("payment not captured")
	ErrRateLimited             = errors.New("too many requests")
	ErrForbidden               = errors.New("order belongs to another user")
)
