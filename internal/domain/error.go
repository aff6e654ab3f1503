package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrConversionNotFound = errors.New("conversion not found")
	ErrAlreadyPaid        = errors.New("conversion already paid")
	ErrPaymentRequired    = errors.New("payment required")

	// Provider & webhook errors
	ErrUnsupportedProvider   = errors.New("unsupported payment provider")
	ErrProviderNotConfigured = errors.New("payment provider not configured")
	ErrProvider              = errors.New("payment provider request failed")
	ErrWebhookAuth           = errors.New("webhook signature verification failed")
	ErrWebhookProcessing     = errors.New("webhook payload could not be processed")

	// Storage errors
	ErrOperationFailed    = errors.New("storage operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid transaction execution context")

	// Converter errors
	ErrConverterBusy = errors.New("converter busy")
)
