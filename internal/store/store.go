package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/haukened/mealplanner/internal/app"
	"github.com/haukened/mealplanner/internal/crypt"
	"github.com/haukened/mealplanner/internal/domain"
)

// SchemeAESGCM is the version tag written with every encrypted secret.
const SchemeAESGCM uint8 = 1

// Options tunes token lifetimes. Zero values select the domain defaults.
type Options struct {
	PendingTTL   time.Duration
	AccessMaxAge time.Duration
}

// Store implements app.TokenStore on top of an Index. Secrets are encrypted
// with the configured key before they reach the Index and decrypted on read.
type Store struct {
	index Index
	key   crypt.Key
	clock app.Clock
	opts  Options
}

var _ app.TokenStore = (*Store)(nil)

// New returns a Store. The key should come from crypt.ValidateEncryptionAtStartup.
func New(index Index, key crypt.Key, clock app.Clock, opts Options) *Store {
	if opts.PendingTTL <= 0 {
		opts.PendingTTL = domain.DefaultPendingTTL
	}
	if opts.AccessMaxAge <= 0 {
		opts.AccessMaxAge = domain.DefaultAccessMaxAge
	}
	return &Store{index: index, key: key, clock: clock, opts: opts}
}

// PendingTTL returns the effective pending token lifetime.
func (s *Store) PendingTTL() time.Duration { return s.opts.PendingTTL }

func (s *Store) seal(user domain.UserID, kind domain.TokenKind, token, secret string, created, used time.Time) Record {
	blob := crypt.EncryptString(secret, s.key)
	return Record{
		UserID:     user.String(),
		Kind:       kind,
		Token:      token,
		Version:    SchemeAESGCM,
		Nonce:      blob.Nonce,
		Ciphertext: blob.Ciphertext,
		CreatedAt:  created.UTC(),
		LastUsedAt: used.UTC(),
	}
}

func (s *Store) open(rec Record) (string, error) {
	if rec.Version != SchemeAESGCM {
		return "", fmt.Errorf("%w: unknown scheme version %d", app.ErrDecryptionFailed, rec.Version)
	}
	secret, err := crypt.DecryptString(crypt.EncryptedBlob{Nonce: rec.Nonce, Ciphertext: rec.Ciphertext}, s.key)
	if err != nil {
		return "", fmt.Errorf("%w: %w", app.ErrDecryptionFailed, err)
	}
	return secret, nil
}

// StoreAccessToken encrypts and upserts the user's access token. Concurrent
// writers for the same user resolve as last-write-wins.
func (s *Store) StoreAccessToken(ctx context.Context, user domain.UserID, tok domain.AccessToken) error {
	if err := tok.Validate(); err != nil {
		return err
	}
	now := s.clock.Now()
	created := tok.CreatedAt
	if created.IsZero() {
		created = now
	}
	used := tok.LastUsedAt
	if used.IsZero() {
		used = created
	}
	return s.index.Put(ctx, s.seal(user, domain.KindAccess, tok.Token, tok.Secret, created, used))
}

// GetAccessToken returns the decrypted access token. A key mismatch yields
// app.ErrDecryptionFailed and never a partial secret.
func (s *Store) GetAccessToken(ctx context.Context, user domain.UserID) (domain.AccessToken, error) {
	rec, err := s.index.Get(ctx, user.String(), domain.KindAccess, "")
	if err != nil {
		return domain.AccessToken{}, err
	}
	secret, err := s.open(rec)
	if err != nil {
		return domain.AccessToken{}, err
	}
	return domain.AccessToken{Token: rec.Token, Secret: secret, CreatedAt: rec.CreatedAt, LastUsedAt: rec.LastUsedAt}, nil
}

// AccessTokenMetadata returns the stored access token without decrypting it.
func (s *Store) AccessTokenMetadata(ctx context.Context, user domain.UserID) (domain.TokenMetadata, error) {
	rec, err := s.index.Get(ctx, user.String(), domain.KindAccess, "")
	if err != nil {
		return domain.TokenMetadata{}, err
	}
	return domain.TokenMetadata{Kind: rec.Kind, Token: rec.Token, CreatedAt: rec.CreatedAt, LastUsedAt: rec.LastUsedAt}, nil
}

// DeleteAccessToken removes the user's access token.
func (s *Store) DeleteAccessToken(ctx context.Context, user domain.UserID) error {
	n, err := s.index.Delete(ctx, user.String(), domain.KindAccess, "")
	if err != nil {
		return err
	}
	if n == 0 {
		return app.ErrNotFound
	}
	return nil
}

// TouchAccessToken records that the access token was just used.
func (s *Store) TouchAccessToken(ctx context.Context, user domain.UserID) error {
	return s.index.Touch(ctx, user.String(), domain.KindAccess, s.clock.Now().UTC())
}

// StorePendingToken encrypts and stores a request token.
func (s *Store) StorePendingToken(ctx context.Context, user domain.UserID, tok domain.RequestToken) error {
	if err := tok.Validate(); err != nil {
		return err
	}
	created := tok.CreatedAt
	if created.IsZero() {
		created = s.clock.Now()
	}
	return s.index.Put(ctx, s.seal(user, domain.KindPending, tok.Token, tok.Secret, created, created))
}

// GetPendingToken reads a live pending token without consuming it.
func (s *Store) GetPendingToken(ctx context.Context, user domain.UserID, token string) (domain.RequestToken, error) {
	rec, err := s.index.Get(ctx, user.String(), domain.KindPending, token)
	if err != nil {
		return domain.RequestToken{}, err
	}
	return s.pendingFromRecord(rec)
}

// TakePendingToken removes and returns a pending token in one statement, so
// at most one caller can exchange it. Expired tokens are removed and
// reported as app.ErrNotFound.
func (s *Store) TakePendingToken(ctx context.Context, user domain.UserID, token string) (domain.RequestToken, error) {
	rec, err := s.index.Take(ctx, user.String(), domain.KindPending, token)
	if err != nil {
		return domain.RequestToken{}, err
	}
	return s.pendingFromRecord(rec)
}

func (s *Store) pendingFromRecord(rec Record) (domain.RequestToken, error) {
	if domain.PendingExpired(rec.CreatedAt, s.clock.Now(), s.opts.PendingTTL) {
		return domain.RequestToken{}, fmt.Errorf("pending token expired: %w", app.ErrNotFound)
	}
	secret, err := s.open(rec)
	if err != nil {
		return domain.RequestToken{}, err
	}
	return domain.RequestToken{Token: rec.Token, Secret: secret, CreatedAt: rec.CreatedAt}, nil
}

// DeletePendingToken removes one pending token, or all of the user's
// pending tokens when token is empty.
func (s *Store) DeletePendingToken(ctx context.Context, user domain.UserID, token string) error {
	n, err := s.index.Delete(ctx, user.String(), domain.KindPending, token)
	if err != nil {
		return err
	}
	if n == 0 {
		return app.ErrNotFound
	}
	return nil
}

// CleanupExpiredPending deletes pending tokens older than the configured TTL
// and returns how many were removed.
func (s *Store) CleanupExpiredPending(ctx context.Context) (int, error) {
	return s.index.DeleteCreatedBefore(ctx, domain.KindPending, domain.PendingCutoff(s.clock.Now(), s.opts.PendingTTL))
}

// VerifyTokenValidity checks the user's access token locally. It neither
// decrypts nor calls the remote API: not_found is definitive, while valid
// and old only mean the remote API is worth asking.
func (s *Store) VerifyTokenValidity(ctx context.Context, user domain.UserID) (domain.TokenValidity, error) {
	rec, err := s.index.Get(ctx, user.String(), domain.KindAccess, "")
	if errors.Is(err, app.ErrNotFound) {
		return domain.ValidityNotFound, nil
	}
	if err != nil {
		return "", err
	}
	return domain.AccessValidity(rec.CreatedAt, s.clock.Now(), s.opts.AccessMaxAge), nil
}

// VerifyPendingValidity checks a pending token locally.
func (s *Store) VerifyPendingValidity(ctx context.Context, user domain.UserID, token string) (domain.TokenValidity, error) {
	rec, err := s.index.Get(ctx, user.String(), domain.KindPending, token)
	if errors.Is(err, app.ErrNotFound) {
		return domain.ValidityNotFound, nil
	}
	if err != nil {
		return "", err
	}
	if domain.PendingExpired(rec.CreatedAt, s.clock.Now(), s.opts.PendingTTL) {
		return domain.ValidityExpired, nil
	}
	return domain.ValidityValid, nil
}
