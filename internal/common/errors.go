// Package common defines shared constants and sentinel errors used across
// the storefront server layers. Callers should use errors.Is to match these
// values; services wrap them with fmt.Errorf("%w: ...") to add a message.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound    = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrorInternal = errors.New("internal error")

	// Caller has no valid session identity where one is required.
	ErrUnauthenticated = errors.New("you must be logged in to do that")
	// Caller is authenticated but lacks permission or ownership.
	ErrForbidden = errors.New("you do not have permission to do that")

	ErrInvalidCredentials    = errors.New("invalid password")
	ErrInvalidOrExpiredToken = errors.New("this reset token is either invalid or expired")
	ErrValidation            = errors.New("validation error")
	ErrMailDelivery          = errors.New("mail delivery failed")
	ErrRateLimited           = errors.New("too many requests")
)
