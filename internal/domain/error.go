package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// Billing errors
	ErrInvalidAmount           = errors.New("approval amount must be a positive number")
	ErrRejectionReasonRequired = errors.New("rejection reason is required")
	ErrPaymentNotPending       = errors.New("payment is not pending review")
	ErrSubscriptionCancelled   = errors.New("subscription is cancelled")
	ErrRunInProgress           = errors.New("billing run already in progress")
	ErrNoRecipient             = errors.New("no billing recipient for branch")
	ErrInvalidTransition       = errors.New("invalid subscription transition")

	// Infrastructure errors
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid database execution context")
)
