package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/guardline/guardline-cli/internal/client/models"
	"github.com/guardline/guardline-cli/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Login prompts the user for credentials and tries to authenticate.
//
// When the account has two-factor authentication enabled, the first round
// trip comes back asking for a code; the user is prompted for it right away
// and the login completes with VerifyTwoFactor. A rejected code leaves the
// login pending, so the user can retry with the "code" command.
//
// The password byte slice is securely wiped before returning.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	remember, err := getSimpleText(a.reader, "Stay signed in? (y/N)", os.Stdout)
	if err != nil {
		return err
	}

	creds := models.Credentials{
		Email:      email,
		Password:   password,
		RememberMe: strings.EqualFold(remember, "y"),
	}

	err = a.manager.Login(ctx, creds)
	switch {
	case err == nil:
		a.printWelcome()
		return nil
	case errors.Is(err, common.ErrTwoFactorRequired):
		printlnFn("Two-factor authentication required.")
		return a.Code(ctx)
	case errors.Is(err, common.ErrAccountLocked):
		printlnFn("Account temporarily locked. Try again later.")
		return nil
	case errors.Is(err, common.ErrInvalidCredentials):
		printlnFn("Invalid email or password.")
		return nil
	case errors.Is(err, common.ErrUnavailable):
		printlnFn("Server unavailable. Try again later.")
		return nil
	default:
		return err
	}
}

// Code prompts for a two-factor code and completes a pending login.
func (a *App) Code(ctx context.Context) error {
	code, err := getSimpleText(a.reader, "Enter two-factor code", os.Stdout)
	if err != nil {
		return err
	}

	err = a.manager.VerifyTwoFactor(ctx, code)
	switch {
	case err == nil:
		a.printWelcome()
		return nil
	case errors.Is(err, common.ErrInvalidTwoFactorCode):
		printlnFn("Invalid code. Run 'code' to try again.")
		return nil
	case errors.Is(err, common.ErrInvalidState):
		printlnFn("No login is waiting for a code. Run 'login' first.")
		return nil
	default:
		return err
	}
}

// Refresh exchanges the refresh token for a fresh pair on demand.
func (a *App) Refresh(ctx context.Context) error {
	err := a.manager.Refresh(ctx)
	switch {
	case err == nil:
		printlnFn("Session refreshed.")
		return nil
	case errors.Is(err, common.ErrSessionExpired):
		printlnFn("Session expired. Please log in again.")
		return nil
	case errors.Is(err, common.ErrUnavailable):
		printlnFn("Server unavailable. Session unchanged.")
		return nil
	default:
		return err
	}
}

// Whoami prints the signed-in user.
func (a *App) Whoami(ctx context.Context) error {
	st := a.manager.CurrentState()
	if !st.IsAuthenticated {
		printlnFn("Not signed in.")
		return nil
	}
	u := st.User
	printlnFn(fmt.Sprintf("%s <%s> roles=%s", u.Name, u.Email, strings.Join(u.Roles, ",")))
	return nil
}

// Route evaluates whether the given path may be entered right now.
func (a *App) Route(ctx context.Context, path string) error {
	d := a.guard.Check(path)
	if d.Allowed {
		printlnFn(fmt.Sprintf("%s: allowed", path))
	} else {
		printlnFn(fmt.Sprintf("%s: denied, redirect to %s", path, d.RedirectTo))
	}
	return nil
}

// Logout signs the user out. Always succeeds locally.
func (a *App) Logout(ctx context.Context) error {
	if err := a.manager.Logout(ctx); err != nil {
		return err
	}
	printlnFn("Signed out.")
	return nil
}

func (a *App) printWelcome() {
	st := a.manager.CurrentState()
	if st.User != nil {
		printlnFn(fmt.Sprintf("Welcome, %s!", st.User.Email))
	}
	a.manager.ScheduleRefresh(context.Background(), a.config.RefreshLeeway)
}
