package cli

import (
	"bufio"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/guardline/guardline-cli/internal/client/api"
	"github.com/guardline/guardline-cli/internal/client/config"
	"github.com/guardline/guardline-cli/internal/client/models"
	"github.com/guardline/guardline-cli/internal/client/routes"
	"github.com/guardline/guardline-cli/internal/client/session"
	"github.com/guardline/guardline-cli/internal/client/tokens"
	"github.com/guardline/guardline-cli/internal/common"
	"github.com/guardline/guardline-cli/internal/logging"
)

// stubAPI drives App tests without a server. Accounts with a non-empty code
// require a second factor.
type stubAPI struct {
	code string
}

func (s *stubAPI) Login(ctx context.Context, creds models.Credentials) (*api.AuthResult, error) {
	if string(creds.Password) != "correct horse" {
		return nil, common.ErrInvalidCredentials
	}
	if s.code != "" && creds.TwoFactorCode == "" {
		return nil, common.ErrTwoFactorRequired
	}
	if s.code != "" && creds.TwoFactorCode != s.code {
		return nil, common.ErrInvalidTwoFactorCode
	}
	return &api.AuthResult{
		Tokens: models.TokenPair{AccessToken: "access-1", RefreshToken: "refresh-1", TokenType: "bearer"},
		User:   &models.User{ID: "u-1", Email: creds.Email, Name: "Test Reporter", Status: models.StatusActive},
	}, nil
}

func (s *stubAPI) Refresh(ctx context.Context, refreshToken string) (*api.AuthResult, error) {
	if refreshToken != "refresh-1" {
		return nil, common.ErrSessionExpired
	}
	return &api.AuthResult{
		Tokens: models.TokenPair{AccessToken: "access-2", RefreshToken: "refresh-2", TokenType: "bearer"},
		User:   &models.User{ID: "u-1", Email: "reporter@example.com", Status: models.StatusActive},
	}, nil
}

func (s *stubAPI) Logout(ctx context.Context, accessToken, refreshToken string) error { return nil }

func (s *stubAPI) Me(ctx context.Context, accessToken string) (*models.User, error) {
	return nil, common.ErrSessionExpired
}

func (s *stubAPI) Close() error { return nil }

func newTestApp(t *testing.T, apiClient api.Client) *App {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	m := session.NewManager(apiClient, tokens.NewMemoryStore(), logging.NewDiscardLogger())
	t.Cleanup(m.Close)
	return &App{
		config:  cfg,
		manager: m,
		guard:   routes.NewGuard(m, nil),
		logger:  logging.NewDiscardLogger(),
		reader:  bufio.NewReader(strings.NewReader("")),
	}
}

func stubInput(t *testing.T, lines []string, password []byte) {
	t.Helper()
	oldText, oldPass, oldPrint := getSimpleText, getPassword, printlnFn
	t.Cleanup(func() {
		getSimpleText, getPassword, printlnFn = oldText, oldPass, oldPrint
	})

	i := 0
	getSimpleText = func(r *bufio.Reader, prompt string, w io.Writer) (string, error) {
		if i >= len(lines) {
			return "", io.EOF
		}
		line := lines[i]
		i++
		return line, nil
	}
	getPassword = func(w io.Writer) ([]byte, error) {
		return append([]byte(nil), password...), nil
	}
	printlnFn = func(...any) (int, error) { return 0, nil }
}

func TestApp_LoginSuccess(t *testing.T) {
	app := newTestApp(t, &stubAPI{})
	stubInput(t, []string{"reporter@example.com", "y"}, []byte("correct horse"))

	require.NoError(t, app.Login(context.Background()))
	require.True(t, app.isLoggedIn())
	require.Equal(t, "(reporter@example.com)", app.getStatus())
}

func TestApp_LoginWrongPassword(t *testing.T) {
	app := newTestApp(t, &stubAPI{})
	stubInput(t, []string{"reporter@example.com", "n"}, []byte("wrong password"))

	// User-facing failure, not an error.
	require.NoError(t, app.Login(context.Background()))
	require.False(t, app.isLoggedIn())
}

func TestApp_LoginWithTwoFactor(t *testing.T) {
	app := newTestApp(t, &stubAPI{code: "123456"})
	stubInput(t, []string{"reporter@example.com", "n", "123456"}, []byte("correct horse"))

	require.NoError(t, app.Login(context.Background()))
	require.True(t, app.isLoggedIn())
}

func TestApp_LoginWrongCodeLeavesPending(t *testing.T) {
	app := newTestApp(t, &stubAPI{code: "123456"})
	stubInput(t, []string{"reporter@example.com", "n", "000000", "123456"}, []byte("correct horse"))

	require.NoError(t, app.Login(context.Background()))
	require.False(t, app.isLoggedIn())
	require.Equal(t, "(awaiting code)", app.getStatus())

	// Retrying via the code command completes the login.
	require.NoError(t, app.Code(context.Background()))
	require.True(t, app.isLoggedIn())
}

func TestApp_CodeWithoutPendingLogin(t *testing.T) {
	app := newTestApp(t, &stubAPI{})
	stubInput(t, []string{"123456"}, nil)

	require.NoError(t, app.Code(context.Background()))
	require.False(t, app.isLoggedIn())
}

func TestApp_RefreshAndLogout(t *testing.T) {
	app := newTestApp(t, &stubAPI{})
	stubInput(t, []string{"reporter@example.com", "n"}, []byte("correct horse"))
	ctx := context.Background()

	require.NoError(t, app.Login(ctx))
	require.NoError(t, app.Refresh(ctx))
	require.Equal(t, "access-2", app.manager.CurrentState().AccessToken)

	require.NoError(t, app.Logout(ctx))
	require.False(t, app.isLoggedIn())
	require.Equal(t, "", app.getStatus())
}

func TestApp_RouteCheck(t *testing.T) {
	app := newTestApp(t, &stubAPI{})
	stubInput(t, []string{"reporter@example.com", "n"}, []byte("correct horse"))
	ctx := context.Background()

	require.NoError(t, app.Route(ctx, "/reports"))
	require.False(t, app.guard.Check("/reports").Allowed)

	require.NoError(t, app.Login(ctx))
	require.True(t, app.guard.Check("/reports").Allowed)
}

func TestApp_WhoamiSignedOut(t *testing.T) {
	app := newTestApp(t, &stubAPI{})
	stubInput(t, nil, nil)

	require.NoError(t, app.Whoami(context.Background()))
}
