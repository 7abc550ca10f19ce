package lambda

import (
	"context"
	"errors"

	"github.com/haukened/mealplanner/internal/app"
	"github.com/haukened/mealplanner/internal/crypt"
	"github.com/haukened/mealplanner/internal/domain"
	"github.com/haukened/mealplanner/internal/fatsecret"
	"github.com/haukened/mealplanner/internal/oauth1"
	"github.com/haukened/mealplanner/internal/tandoor"
)

// Error codes reported in the failure envelope.
const (
	CodeConfiguration = "configuration"
	CodeCrypto        = "crypto"
	CodeNotFound      = "not_found"
	CodeConnection    = "connection"
	CodeAuth          = "auth"
	CodeUnavailable   = "unavailable"
	CodeInvalidInput  = "invalid_input"
	CodeRemote        = "remote"
	CodeInternal      = "internal"
)

// ErrConfiguration can be wrapped by callers to mark missing settings.
var ErrConfiguration = errors.New("configuration error")

// Classify maps err to one of the Code* constants. Order matters: a store
// decryption failure is also a crypto error and must not read as not found.
func Classify(err error) string {
	var (
		fsAPI  *fatsecret.APIError
		fsHTTP *fatsecret.HTTPError
		tdHTTP *tandoor.HTTPError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidDate),
		errors.Is(err, domain.ErrInvalidToken),
		errors.Is(err, app.ErrVerifierRequired),
		errors.Is(err, fatsecret.ErrEmptyQuery),
		errors.Is(err, fatsecret.ErrInvalidMeal),
		errors.Is(err, tandoor.ErrInvalidMealPlan):
		return CodeInvalidInput
	case errors.Is(err, ErrConfiguration),
		errors.Is(err, oauth1.ErrConfiguration),
		errors.Is(err, tandoor.ErrConfiguration):
		return CodeConfiguration
	case errors.Is(err, crypt.ErrCrypto), errors.Is(err, app.ErrDecryptionFailed):
		return CodeCrypto
	case errors.Is(err, app.ErrConnectionFailed):
		return CodeConnection
	case fatsecret.IsAuthError(err), errors.Is(err, tandoor.ErrAuth):
		return CodeAuth
	case errors.Is(err, app.ErrNotFound),
		errors.Is(err, tandoor.ErrNotFound),
		errors.Is(err, fatsecret.ErrNoMatch):
		return CodeNotFound
	case fatsecret.Recoverable(err),
		errors.Is(err, tandoor.ErrTransport),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &tdHTTP) && tdHTTP.Status >= 500:
		return CodeUnavailable
	case errors.As(err, &fsAPI),
		errors.As(err, &fsHTTP),
		errors.As(err, &tdHTTP),
		errors.Is(err, fatsecret.ErrDecode),
		errors.Is(err, tandoor.ErrDecode):
		return CodeRemote
	}
	return CodeInternal
}
