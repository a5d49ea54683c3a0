package routes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/guardline/guardline-cli/internal/client/api"
	"github.com/guardline/guardline-cli/internal/client/models"
	"github.com/guardline/guardline-cli/internal/client/session"
	"github.com/guardline/guardline-cli/internal/client/tokens"
	"github.com/guardline/guardline-cli/internal/logging"
)

func signedOut() session.State { return session.State{} }

func signedIn() session.State {
	return session.State{
		User:            &models.User{ID: "u-1", Email: "reporter@example.com"},
		AccessToken:     "access-1",
		RefreshToken:    "refresh-1",
		IsAuthenticated: true,
	}
}

func TestEvaluate(t *testing.T) {
	table := DefaultTable()

	tests := []struct {
		name    string
		state   session.State
		path    string
		allowed bool
	}{
		{"public while signed out", signedOut(), "/login", true},
		{"public while signed in", signedIn(), "/login", true},
		{"protected while signed out", signedOut(), "/reports", false},
		{"protected while signed in", signedIn(), "/reports", true},
		{"home requires auth", signedOut(), "/", false},
		{"unknown path requires auth", signedOut(), "/no-such-page", false},
		{"unknown path while signed in", signedIn(), "/no-such-page", true},
		{"trailing slash matches", signedIn(), "/reports/", true},
		{"empty path is home", signedIn(), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(table, tt.state, tt.path)
			require.Equal(t, tt.allowed, d.Allowed)
		})
	}
}

func TestEvaluate_DeniedCarriesOrigin(t *testing.T) {
	d := Evaluate(DefaultTable(), signedOut(), "/reports/new")
	require.False(t, d.Allowed)
	require.Equal(t, LoginPath, d.RedirectTo)
	require.Equal(t, "/reports/new", d.From)
}

func TestEvaluate_PendingTwoFactorIsNotAuthenticated(t *testing.T) {
	st := session.State{RequiresTwoFactor: true}
	d := Evaluate(DefaultTable(), st, "/reports")
	require.False(t, d.Allowed)
	require.Equal(t, LoginPath, d.RedirectTo)
}

type loginAPI struct{}

func (loginAPI) Login(ctx context.Context, creds models.Credentials) (*api.AuthResult, error) {
	return &api.AuthResult{
		Tokens: models.TokenPair{AccessToken: "access-1", RefreshToken: "refresh-1", TokenType: "bearer"},
		User:   &models.User{ID: "u-1", Email: creds.Email, Status: models.StatusActive},
	}, nil
}

func (loginAPI) Refresh(ctx context.Context, refreshToken string) (*api.AuthResult, error) {
	return nil, nil
}

func (loginAPI) Logout(ctx context.Context, accessToken, refreshToken string) error { return nil }

func (loginAPI) Me(ctx context.Context, accessToken string) (*models.User, error) { return nil, nil }

func (loginAPI) Close() error { return nil }

func TestGuard_TracksSession(t *testing.T) {
	m := session.NewManager(loginAPI{}, tokens.NewMemoryStore(), logging.NewDiscardLogger())
	g := NewGuard(m, nil)

	d := g.Check("/reports")
	require.False(t, d.Allowed)
	require.Equal(t, LoginPath, d.RedirectTo)

	require.NoError(t, m.Login(context.Background(), models.Credentials{
		Email:    "reporter@example.com",
		Password: []byte("correct horse"),
	}))

	require.True(t, g.Check("/reports").Allowed)

	require.NoError(t, m.Logout(context.Background()))
	require.False(t, g.Check("/reports").Allowed)
}
