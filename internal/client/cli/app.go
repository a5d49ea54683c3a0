package cli

import (
	"bufio"
	"context"
	"os"

	"github.com/guardline/guardline-cli/internal/client/api"
	"github.com/guardline/guardline-cli/internal/client/config"
	"github.com/guardline/guardline-cli/internal/client/routes"
	"github.com/guardline/guardline-cli/internal/client/session"
	"github.com/guardline/guardline-cli/internal/client/tokens"
	"github.com/guardline/guardline-cli/internal/logging"

	_ "modernc.org/sqlite"
)

// App wires the session manager, route guard and interactive input into
// the Guardline CLI.
type App struct {
	config  *config.Config
	manager *session.Manager
	guard   *routes.Guard
	logger  logging.Logger
	reader  *bufio.Reader
}

// NewApp opens the local session database, builds the API client and the
// session manager on top of it, and returns a ready-to-run App.
func NewApp(c *config.Config, logger logging.Logger) (*App, error) {
	ctx := context.Background()

	db, err := tokens.OpenDatabase(ctx, c.DatabasePath)
	if err != nil {
		logger.Error(ctx, "error initializing session database", "error", err)
		return nil, err
	}

	apiClient := api.NewHTTPClient(c.APIBaseURL, c.RequestTimeout)
	manager := session.NewManager(apiClient, tokens.NewSQLiteStore(db), logger)

	return &App{
		config:  c,
		manager: manager,
		guard:   routes.NewGuard(manager, nil),
		logger:  logger,
		reader:  bufio.NewReader(os.Stdin),
	}, nil
}

// Run restores any persisted session, arms the proactive refresh when one
// was restored, and enters the REPL. Blocks until the user exits.
func (a *App) Run(ctx context.Context) {
	defer a.manager.Close()

	if err := a.manager.Hydrate(ctx); err != nil {
		a.logger.Warn(ctx, "session restore failed", "error", err)
	}
	if a.isLoggedIn() {
		a.manager.ScheduleRefresh(ctx, a.config.RefreshLeeway)
	}

	runREPL(ctx, a, a.getStatus, bufio.NewScanner(os.Stdin))
}

func (a *App) isLoggedIn() bool {
	return a.manager.CurrentState().IsAuthenticated
}

// getStatus renders the prompt fragment describing the current session.
func (a *App) getStatus() string {
	st := a.manager.CurrentState()
	switch {
	case st.IsAuthenticated && st.User != nil:
		return "(" + st.User.Email + ")"
	case st.RequiresTwoFactor:
		return "(awaiting code)"
	default:
		return ""
	}
}
