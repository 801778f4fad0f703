// Package services defines the business logic for access control, document
// generation, and usage reporting. This file centralizes common service-level
// error values so that they can be consistently returned by service methods
// and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing chat notices is performed at the dispatcher layer.
package services

import "errors"

var (
	// ErrInvalidDuration is returned when a temporary grant is requested for
	// a non-positive number of days.
	ErrInvalidDuration = errors.New("grant duration must be at least one day")

	// ErrInvalidQuota is returned when a quota is set to a negative amount.
	ErrInvalidQuota = errors.New("quota must be non-negative")
)
