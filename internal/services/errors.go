package services

import "errors"

var (
	// ErrAuthorizationDenied covers every hierarchy violation: acting on an
	// equal or higher rank, acting on yourself, or lifting a running or
	// permanent ban below headAdmin. Wrapped with the concrete reason, which
	// is surfaced verbatim to the caller.
	ErrAuthorizationDenied = errors.New("authorization denied")

	// ErrActiveBanExists is the single-active-ban invariant violation. It is
	// deliberately distinct from validation failures.
	ErrActiveBanExists = errors.New("target already has an active ban")

	ErrWarningNotFound = errors.New("warning not found")
	ErrBanNotFound     = errors.New("ban not found")
	ErrBanNotActive    = errors.New("ban is not active")

	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrConflictRetryExhausted means repeated version conflicts starved a
	// read-modify-write loop. Safe for the caller to retry.
	ErrConflictRetryExhausted = errors.New("too many concurrent updates, retry")
)
