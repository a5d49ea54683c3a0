package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUserHasRole(t *testing.T) {
	u := &User{Roles: []string{"reporter", "moderator"}}
	require.True(t, u.HasRole("moderator"))
	require.False(t, u.HasRole("admin"))
	require.False(t, (&User{}).HasRole("reporter"))
}

func TestUserCanLogin(t *testing.T) {
	require.True(t, (&User{Status: StatusActive}).CanLogin())
	require.False(t, (&User{Status: StatusSuspended}).CanLogin())
	require.False(t, (&User{Status: StatusInactive}).CanLogin())
}

func TestCredentialsCloneAndWipe(t *testing.T) {
	c := Credentials{Email: "a@b.c", Password: []byte("password1"), TwoFactorCode: "123456"}
	clone := c.Clone()

	c.Wipe()
	require.Nil(t, c.Password)
	require.Empty(t, c.TwoFactorCode)

	// The clone owns its own buffer and survives the wipe.
	require.Equal(t, []byte("password1"), clone.Password)
	require.Equal(t, "123456", clone.TwoFactorCode)
}

func TestTokenPairExpiresAt(t *testing.T) {
	require.True(t, TokenPair{}.Empty())
	require.True(t, TokenPair{}.ExpiresAt().IsZero())

	issued := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p := TokenPair{AccessToken: "a", RefreshToken: "r", ExpiresIn: 900, IssuedAt: issued}
	require.False(t, p.Empty())
	require.Equal(t, issued.Add(15*time.Minute), p.ExpiresAt())
}
