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

	// Payment / subscription errors
	ErrMissingCredentials   = errors.New("payment provider credentials are not configured")
	ErrInvalidPhoneNumber   = errors.New("invalid phone number format")
	ErrInvalidOTP           = errors.New("invalid otp code")
	ErrOTPExpired           = errors.New("otp code has expired")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrUnknownProvider      = errors.New("unknown payment provider")
	ErrDuplicateTransaction = errors.New("transaction already exists for provider reference")
	ErrPaymentNotPending    = errors.New("payment is not in a pending state")
	ErrUnauthorized         = errors.New("caller is not authorized for this operation")
	ErrLockNotAcquired      = errors.New("could not acquire lock")
	ErrRateLimited          = errors.New("rate limit exceeded")
)
