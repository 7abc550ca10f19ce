package oauth1

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks missing or malformed consumer credentials.
	ErrConfiguration         = errors.New("oauth configuration error")
	ErrMissingConsumerKey    = fmt.Errorf("%w: consumer key is required", ErrConfiguration)
	ErrMissingConsumerSecret = fmt.Errorf("%w: consumer secret is required", ErrConfiguration)
	ErrUnsupportedMethod     = fmt.Errorf("%w: unsupported signature method", ErrConfiguration)

	ErrMalformedTokenResponse = errors.New("malformed oauth token response")

	errNotAbsolute = errors.New("url must be absolute")
)

// SigningError reports a failure inside signature generation. It indicates an
// environment defect (for example an unavailable random source).
type SigningError struct {
	Op  string
	Err error
}

func (e *SigningError) Error() string { return "oauth signing: " + e.Op + ": " + e.Err.Error() }

func (e *SigningError) Unwrap() error { return e.Err }
