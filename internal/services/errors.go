// Package services defines the business logic of the gateway core: token
// refresh for the bridge processes, inbound message dispatch, and the
// analytics rollup. This file centralizes common service-level error values so
// that they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the handler
// layer.
package services

import "errors"

// Refresh-related errors.
var (
	// ErrSecretUnconfigured indicates the expected gateway shared secret is
	// not set in the environment. Requests cannot be authenticated at all.
	ErrSecretUnconfigured = errors.New("gateway secret is not configured")

	// ErrBadSecret indicates the X-Gateway-Secret header did not match the
	// configured secret. Returned before any database access.
	ErrBadSecret = errors.New("invalid gateway secret")

	// ErrSessionNotFound indicates the requested gateway session does not
	// exist.
	ErrSessionNotFound = errors.New("gateway session not found")

	// ErrSessionNotConnected indicates the session exists but is not in the
	// CONNECTED state, so it may not act for its user.
	ErrSessionNotConnected = errors.New("gateway session is not connected")

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// Dispatch-related errors.
var (
	// ErrUnknownPlatform is returned when an inbound message names a platform
	// the gateway does not handle.
	ErrUnknownPlatform = errors.New("unknown platform")

	// ErrUnknownSender is returned when an inbound sender identifier cannot be
	// resolved to any user.
	ErrUnknownSender = errors.New("sender does not map to a known user")
)
