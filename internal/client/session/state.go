package session

import (
	"github.com/guardline/guardline-cli/internal/client/models"
)

// Phase is the authentication phase derived from a State snapshot. Exactly
// one phase holds at any observation point.
type Phase string

const (
	PhaseUnauthenticated  Phase = "unauthenticated"
	PhasePendingTwoFactor Phase = "pending_two_factor"
	PhaseAuthenticated    Phase = "authenticated"
)

// State is a read-only snapshot of the session. The Manager is its sole
// mutator; consumers receive copies and can never tear the live state.
//
// Invariants maintained by the Manager:
//   - IsAuthenticated implies User != nil and AccessToken != "".
//   - RequiresTwoFactor implies !IsAuthenticated and no tokens.
//
// Pending credentials are not part of the snapshot: they live in a private
// slot inside the Manager so the password never crosses a read surface.
type State struct {
	User              *models.User
	AccessToken       string
	RefreshToken      string
	IsAuthenticated   bool
	IsLoading         bool
	RequiresTwoFactor bool
}

// Phase classifies the snapshot.
func (s State) Phase() Phase {
	switch {
	case s.IsAuthenticated:
		return PhaseAuthenticated
	case s.RequiresTwoFactor:
		return PhasePendingTwoFactor
	default:
		return PhaseUnauthenticated
	}
}
