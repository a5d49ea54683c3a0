package api

import (
	"context"

	"github.com/guardline/guardline-cli/internal/client/models"
)

// AuthResult is what a successful token-issuing call returns: a fresh token
// pair plus the user profile the server sends along with it.
type AuthResult struct {
	Tokens models.TokenPair
	User   *models.User
}

// Client is the transport-agnostic contract for the identity API.
//
// Failure conditions surface as sentinel errors from internal/common:
// ErrInvalidCredentials, ErrTwoFactorRequired, ErrInvalidTwoFactorCode,
// ErrAccountInactive, ErrAccountLocked, ErrSessionExpired, ErrUnavailable.
// All methods honor context cancellation/timeouts.
type Client interface {
	Login(ctx context.Context, creds models.Credentials) (*AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*AuthResult, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
	Me(ctx context.Context, accessToken string) (*models.User, error)
	Close() error
}
