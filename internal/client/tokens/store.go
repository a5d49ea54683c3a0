// Package tokens persists the session token pair across client restarts.
//
// The Store contract is deliberately forgiving: Load returns (nil, nil) for
// absent or corrupted data — a missing pair is a normal outcome for the
// session manager, not an error.
package tokens

import (
	"context"

	"github.com/guardline/guardline-cli/internal/client/models"
)

// Logical key names inside the metadata key-value table.
const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyTokenType    = "token_type"
	keyIssuedAt     = "token_issued_at"
	keyExpiresIn    = "token_expires_in"
)

// Store is the durable home of the token pair.
type Store interface {
	// Save replaces the stored pair.
	Save(ctx context.Context, pair models.TokenPair) error

	// Load returns the stored pair, or (nil, nil) when nothing usable is
	// stored.
	Load(ctx context.Context) (*models.TokenPair, error)

	// Clear removes the stored pair. Clearing an empty store is a no-op.
	Clear(ctx context.Context) error
}
