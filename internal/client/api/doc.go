// Package api contains the client-side contract for the Guardline identity
// API and its HTTP implementation.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic contract (see the Client interface) covering the
//     authentication surface: Login, Refresh, Logout, Me.
//  2. A concrete HTTP/JSON implementation (see HTTPClient) that speaks the
//     backend's wire shapes, attaches per-request ids, and maps HTTP status
//     codes to sentinel errors.
//
// # Error Handling
//
// Common conditions are exposed as sentinel errors from internal/common that
// callers can match with errors.Is. ErrTwoFactorRequired deserves a note: it
// is returned by Login when the password was accepted but the account has a
// second factor enrolled — a state signal, not a rejection.
//
// # Concurrency & Contexts
//
// HTTPClient is safe for concurrent use. All operations accept a
// context.Context and honor cancellation/timeouts.
package api
