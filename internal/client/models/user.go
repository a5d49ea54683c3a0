// Package models contains client-side data types mirroring the identity API.
package models

import (
	"time"
)

// UserStatus is the account status as reported by the identity API.
type UserStatus string

const (
	StatusActive    UserStatus = "active"
	StatusSuspended UserStatus = "suspended"
	StatusInactive  UserStatus = "inactive"
)

// User is the identity record for an authenticated account. The client
// treats it as read-only; changes happen server-side and show up on re-fetch.
type User struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	Name               string     `json:"name,omitempty"`
	EmailVerified      bool       `json:"email_verified"`
	PhoneVerified      bool       `json:"phone_verified"`
	Status             UserStatus `json:"status"`
	TrustScore         float64    `json:"trust_score"`
	IsVerifiedReporter bool       `json:"is_verified_reporter"`
	Roles              []string   `json:"roles"`
	CreatedAt          time.Time  `json:"created_at"`
	LastLoginAt        *time.Time `json:"last_login_at,omitempty"`
}

// HasRole reports whether the user carries the given role name.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// CanLogin reports whether the account status permits authentication.
func (u *User) CanLogin() bool {
	return u.Status == StatusActive
}
