package models

import "time"

// TokenPair holds the bearer credentials issued by the identity API.
// ExpiresIn is relative to issuance; IssuedAt is stamped client-side when
// the pair is received, so ExpiresAt can be computed after a reload.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	IssuedAt     time.Time
}

// Empty reports whether the pair carries no usable credentials.
func (t TokenPair) Empty() bool {
	return t.AccessToken == "" && t.RefreshToken == ""
}

// ExpiresAt returns the access token deadline derived from IssuedAt and
// ExpiresIn. The zero time is returned when either part is missing.
func (t TokenPair) ExpiresAt() time.Time {
	if t.IssuedAt.IsZero() || t.ExpiresIn == 0 {
		return time.Time{}
	}
	return t.IssuedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
}
