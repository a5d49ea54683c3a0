package models

import (
	"github.com/guardline/guardline-cli/internal/common"
)

// Credentials is transient login input. The password is kept as a byte
// slice so it can be wiped deterministically; it must never be written to
// durable storage or logs. While a login waits for a second factor the
// session manager holds a clone in volatile memory only.
type Credentials struct {
	Email         string `validate:"required,email"`
	Password      []byte `validate:"required"`
	RememberMe    bool
	TwoFactorCode string
}

// Clone returns a deep copy so the original password buffer can be wiped
// independently of the copy.
func (c Credentials) Clone() Credentials {
	clone := c
	clone.Password = append([]byte(nil), c.Password...)
	return clone
}

// Wipe zeroes the password buffer and drops the reference.
func (c *Credentials) Wipe() {
	common.WipeByteArray(c.Password)
	c.Password = nil
	c.TwoFactorCode = ""
}
