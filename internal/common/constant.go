package common

// HTTP header names used on identity API requests and responses.
const (
	// RequestIDHeaderName carries a client-generated id for request tracing.
	RequestIDHeaderName = "X-Request-ID"

	// RequiresTwoFactorHeaderName is set by the identity API on a login
	// rejection that is actually a second-factor challenge.
	RequiresTwoFactorHeaderName = "X-Requires-2FA"
)
