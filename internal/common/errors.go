// Package common defines shared constants and sentinel errors used across
// the Guardline client. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Identity API rejections.
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrAccountInactive      = errors.New("account inactive or suspended")
	ErrAccountLocked        = errors.New("account temporarily locked")
	ErrInvalidTwoFactorCode = errors.New("invalid two-factor code")

	// ErrTwoFactorRequired is a state signal rather than a failure: the
	// password was accepted and the server is waiting for a second factor.
	ErrTwoFactorRequired = errors.New("two-factor code required")

	// Token lifecycle errors. ErrSessionExpired means the refresh token was
	// rejected and the user has to authenticate again.
	ErrSessionExpired = errors.New("session expired")

	// Transport-level failure. Retryable at the caller's discretion; the
	// client never retries on its own.
	ErrUnavailable = errors.New("server unavailable")

	// Caller bugs, not user-facing conditions.
	ErrInvalidState      = errors.New("operation not valid in current session state")
	ErrOperationInFlight = errors.New("another operation is already in flight")
)
