// Package app defines the application layer "ports" (interfaces) and the
// OAuth handshake use-cases that depend on them. Adapter packages (SQLite
// token store, FatSecret client, callback server) provide the concrete
// implementations. No SQL or HTTP belongs here.
package app

import (
	"context"
	"time"

	"github.com/haukened/mealplanner/internal/domain"
)

// Clock abstracts time to enable deterministic testing of TTL / expiry logic.
type Clock interface {
	// Now returns the current wall-clock time.
	Now() time.Time
}

// TokenStore persists OAuth tokens with their secrets encrypted at rest.
// Implementations return ErrNotFound, ErrConnectionFailed or
// ErrDecryptionFailed (matched with errors.Is) and never retry.
type TokenStore interface {
	StoreAccessToken(ctx context.Context, user domain.UserID, tok domain.AccessToken) error
	GetAccessToken(ctx context.Context, user domain.UserID) (domain.AccessToken, error)
	AccessTokenMetadata(ctx context.Context, user domain.UserID) (domain.TokenMetadata, error)
	DeleteAccessToken(ctx context.Context, user domain.UserID) error
	TouchAccessToken(ctx context.Context, user domain.UserID) error

	StorePendingToken(ctx context.Context, user domain.UserID, tok domain.RequestToken) error
	// TakePendingToken atomically removes and returns a live pending token.
	// An empty token selects the user's newest pending token.
	TakePendingToken(ctx context.Context, user domain.UserID, token string) (domain.RequestToken, error)

	CleanupExpiredPending(ctx context.Context) (int, error)
	VerifyTokenValidity(ctx context.Context, user domain.UserID) (domain.TokenValidity, error)
}

// Handshaker performs the remote legs of the 3-legged OAuth flow.
type Handshaker interface {
	RequestToken(ctx context.Context, callbackURL string) (domain.RequestToken, error)
	AccessToken(ctx context.Context, rt domain.RequestToken, verifier string) (domain.AccessToken, error)
	AuthorizationURL(token string) string
}

// MetricsSink receives counter increments. A nil sink is ignored.
type MetricsSink interface {
	Inc(name string, delta int64)
}
