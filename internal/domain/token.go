package domain

import (
	"strings"
	"time"
)

// TokenKind distinguishes short-lived request tokens from long-lived access tokens.
type TokenKind string

const (
	KindPending TokenKind = "pending"
	KindAccess  TokenKind = "access"
)

func (k TokenKind) Valid() bool { return k == KindPending || k == KindAccess }

// RequestToken is the temporary credential from step one of the 3-legged
// handshake. It lives until it is exchanged or expires.
type RequestToken struct {
	Token     string
	Secret    string
	CreatedAt time.Time
}

// AccessToken is the long-lived credential for an authorized user.
type AccessToken struct {
	Token      string
	Secret     string
	CreatedAt  time.Time
	LastUsedAt time.Time
}

// Validate rejects tokens with an empty or whitespace-padded token or secret.
func (t RequestToken) Validate() error { return validatePair(t.Token, t.Secret) }

// Validate rejects tokens with an empty or whitespace-padded token or secret.
func (t AccessToken) Validate() error { return validatePair(t.Token, t.Secret) }

func validatePair(token, secret string) error {
	if token == "" || secret == "" {
		return ErrInvalidToken
	}
	if strings.TrimSpace(token) != token || strings.TrimSpace(secret) != secret {
		return ErrInvalidToken
	}
	return nil
}

// TokenValidity is the outcome of a local, network-free validity check.
type TokenValidity string

const (
	// ValidityValid means the token exists locally; only the remote API can
	// tell whether it was revoked.
	ValidityValid TokenValidity = "valid"
	// ValidityNotFound means no token is stored.
	ValidityNotFound TokenValidity = "not_found"
	// ValidityExpired applies to pending tokens past their TTL.
	ValidityExpired TokenValidity = "expired"
	// ValidityOld means the access token exists but is older than the
	// configured maximum age and must be verified remotely.
	ValidityOld TokenValidity = "old"
)

// LocallyInvalid reports whether the validity is known to be unusable
// without contacting the remote API.
func (v TokenValidity) LocallyInvalid() bool {
	return v == ValidityNotFound || v == ValidityExpired
}

// TokenMetadata is the non-secret part of a stored token.
type TokenMetadata struct {
	Kind       TokenKind
	Token      string
	CreatedAt  time.Time
	LastUsedAt time.Time
}
