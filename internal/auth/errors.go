package auth

import "errors"

var (
	// ErrUnauthorized is returned when a request carries no usable
	// credentials.
	ErrUnauthorized = errors.New("auth: unauthorized")
	// ErrInvalidToken is returned for tokens that fail signature,
	// expiry or claim checks.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrTenantMismatch is returned when a resource belongs to a
	// different school than the caller's.
	ErrTenantMismatch = errors.New("auth: school mismatch")
)
