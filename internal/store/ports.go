// Package store defines the persistence port used by the token store adapter
// and provides the adapter itself. The Index port isolates the concrete
// SQLite table so the encryption and TTL rules can be tested without a
// database. Callers outside this package interact only with app.TokenStore.
package store

import (
	"context"
	"time"

	"github.com/haukened/mealplanner/internal/domain"
)

// Record is one stored token row. Nonce and Ciphertext hold the encrypted
// secret; the token itself is a public identifier and is stored in the clear.
type Record struct {
	UserID     string
	Kind       domain.TokenKind
	Token      string
	Version    uint8 // encryption scheme version
	Nonce      []byte
	Ciphertext []byte
	CreatedAt  time.Time
	LastUsedAt time.Time
}

// Index abstracts the token table (typically backed by SQLite). Methods
// return app.ErrNotFound for missing rows and wrap app.ErrConnectionFailed
// when the backend is unreachable.
type Index interface {
	// Put writes rec. For access tokens any previous access row of the user
	// is replaced; pending rows are keyed by token.
	Put(ctx context.Context, rec Record) error
	// Get returns a row without removing it. An empty token selects the
	// newest row of that kind for the user.
	Get(ctx context.Context, user string, kind domain.TokenKind, token string) (Record, error)
	// Take atomically deletes and returns a row, with the same selection
	// rules as Get.
	Take(ctx context.Context, user string, kind domain.TokenKind, token string) (Record, error)
	// Delete removes matching rows and returns how many were removed. An
	// empty token removes every row of that kind for the user.
	Delete(ctx context.Context, user string, kind domain.TokenKind, token string) (int, error)
	// Touch sets last_used_at on the user's newest row of kind.
	Touch(ctx context.Context, user string, kind domain.TokenKind, t time.Time) error
	// DeleteCreatedBefore removes rows of kind created strictly before t.
	DeleteCreatedBefore(ctx context.Context, kind domain.TokenKind, t time.Time) (int, error)
}
