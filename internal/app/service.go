package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/haukened/mealplanner/internal/domain"
)

// Storage errors surfaced by TokenStore implementations.
var (
	ErrNotFound         = errors.New("token not found")
	ErrConnectionFailed = errors.New("token storage unavailable")
	ErrDecryptionFailed = errors.New("stored token could not be decrypted")
)

// ErrVerifierRequired is returned when completing a handshake without a verifier.
var ErrVerifierRequired = errors.New("oauth_verifier is required")

// Counter names emitted by the service.
const (
	CounterHandshakeStarted   = "oauth_handshake_started_total"
	CounterHandshakeCompleted = "oauth_handshake_completed_total"
	CounterPendingCleaned     = "oauth_pending_cleaned_total"
)

// DefaultCallback is the out-of-band callback used when none is given.
const DefaultCallback = "oob"

// OAuthService orchestrates the 3-legged handshake against the injected
// store, remote handshaker and clock.
type OAuthService struct {
	Store      TokenStore
	Handshaker Handshaker
	Clock      Clock
	Metrics    MetricsSink
	Logger     *slog.Logger // defaults to slog.Default()
}

// StartResult is what the user needs to authorize the application.
type StartResult struct {
	AuthURL string
	Token   string
}

// Start obtains a request token, stores it as pending and returns the URL
// the user must visit.
func (s *OAuthService) Start(ctx context.Context, user domain.UserID, callbackURL string) (StartResult, error) {
	if callbackURL == "" {
		callbackURL = DefaultCallback
	}
	rt, err := s.Handshaker.RequestToken(ctx, callbackURL)
	if err != nil {
		return StartResult{}, err
	}
	rt.CreatedAt = s.Clock.Now().UTC()
	if err := s.Store.StorePendingToken(ctx, user, rt); err != nil {
		return StartResult{}, err
	}
	s.inc(CounterHandshakeStarted, 1)
	return StartResult{AuthURL: s.Handshaker.AuthorizationURL(rt.Token), Token: rt.Token}, nil
}

// Complete exchanges the pending request token for an access token. The
// pending token is removed before the exchange, so a failed or replayed
// exchange cannot reuse it.
func (s *OAuthService) Complete(ctx context.Context, user domain.UserID, oauthToken, verifier string) error {
	verifier = strings.TrimSpace(verifier)
	if verifier == "" {
		return ErrVerifierRequired
	}
	rt, err := s.Store.TakePendingToken(ctx, user, oauthToken)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("no pending authorization, start a new one: %w", err)
		}
		return err
	}
	at, err := s.Handshaker.AccessToken(ctx, rt, verifier)
	if err != nil {
		return err
	}
	now := s.Clock.Now().UTC()
	at.CreatedAt = now
	at.LastUsedAt = now
	if err := s.Store.StoreAccessToken(ctx, user, at); err != nil {
		return err
	}
	s.inc(CounterHandshakeCompleted, 1)
	return nil
}

// Status is the locally known connection state of a user.
type Status struct {
	Validity           domain.TokenValidity
	Token              string
	ConnectedAt        time.Time
	LastUsedAt         time.Time
	DaysSinceConnected int
}

// Connected reports whether an access token is stored.
func (st Status) Connected() bool { return st.Validity == domain.ValidityValid || st.Validity == domain.ValidityOld }

// Status reads token metadata without decrypting or calling the remote API.
func (s *OAuthService) Status(ctx context.Context, user domain.UserID) (Status, error) {
	validity, err := s.Store.VerifyTokenValidity(ctx, user)
	if err != nil {
		return Status{}, err
	}
	if validity.LocallyInvalid() {
		return Status{Validity: validity}, nil
	}
	meta, err := s.Store.AccessTokenMetadata(ctx, user)
	if errors.Is(err, ErrNotFound) {
		return Status{Validity: domain.ValidityNotFound}, nil
	}
	if err != nil {
		return Status{}, err
	}
	return Status{
		Validity:           validity,
		Token:              meta.Token,
		ConnectedAt:        meta.CreatedAt,
		LastUsedAt:         meta.LastUsedAt,
		DaysSinceConnected: domain.DaysSince(meta.CreatedAt, s.Clock.Now()),
	}, nil
}

// Credentials returns the decrypted access token for a 3-legged call and
// records the use. A failed touch does not fail the call.
func (s *OAuthService) Credentials(ctx context.Context, user domain.UserID) (domain.AccessToken, error) {
	at, err := s.Store.GetAccessToken(ctx, user)
	if err != nil {
		return domain.AccessToken{}, err
	}
	if err := s.Store.TouchAccessToken(ctx, user); err != nil {
		s.logger().Warn("touch access token", "user", user, "error", err)
	}
	return at, nil
}

func (s *OAuthService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Disconnect removes the user's access token. It reports whether one existed.
func (s *OAuthService) Disconnect(ctx context.Context, user domain.UserID) (bool, error) {
	err := s.Store.DeleteAccessToken(ctx, user)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Cleanup deletes expired pending tokens and returns how many were removed.
func (s *OAuthService) Cleanup(ctx context.Context) (int, error) {
	n, err := s.Store.CleanupExpiredPending(ctx)
	if err != nil {
		return 0, err
	}
	s.inc(CounterPendingCleaned, int64(n))
	return n, nil
}

func (s *OAuthService) inc(name string, delta int64) {
	if s.Metrics != nil && delta > 0 {
		s.Metrics.Inc(name, delta)
	}
}
