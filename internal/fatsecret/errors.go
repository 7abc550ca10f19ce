package fatsecret

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
)

// ErrorCode is a FatSecret API error code.
type ErrorCode int

const (
	CodeMissingOAuthParameter      ErrorCode = 2
	CodeUnsupportedOAuthParameter  ErrorCode = 3
	CodeInvalidSignatureMethod     ErrorCode = 4
	CodeInvalidConsumerCredentials ErrorCode = 5
	CodeInvalidOrExpiredToken      ErrorCode = 6
	CodeInvalidSignature           ErrorCode = 7
	CodeInvalidNonce               ErrorCode = 8
	CodeInvalidAccessToken         ErrorCode = 9
	CodeInvalidMethod              ErrorCode = 13
	CodeAPIUnavailable             ErrorCode = 14
	CodeMissingRequiredParameter   ErrorCode = 101
	CodeInvalidID                  ErrorCode = 106
	CodeInvalidSearchValue         ErrorCode = 107
	CodeInvalidDate                ErrorCode = 108
	CodeNoEntries                  ErrorCode = 207
)

var codeText = map[ErrorCode]string{
	CodeMissingOAuthParameter:      "missing oauth parameter",
	CodeUnsupportedOAuthParameter:  "unsupported oauth parameter",
	CodeInvalidSignatureMethod:     "invalid signature method",
	CodeInvalidConsumerCredentials: "invalid consumer credentials",
	CodeInvalidOrExpiredToken:      "invalid or expired token",
	CodeInvalidSignature:           "invalid signature",
	CodeInvalidNonce:               "invalid nonce",
	CodeInvalidAccessToken:         "invalid access token",
	CodeInvalidMethod:              "invalid method",
	CodeAPIUnavailable:             "api unavailable",
	CodeMissingRequiredParameter:   "missing required parameter",
	CodeInvalidID:                  "invalid id",
	CodeInvalidSearchValue:         "invalid search value",
	CodeInvalidDate:                "invalid date",
	CodeNoEntries:                  "no entries found",
}

func (c ErrorCode) String() string {
	if s, ok := codeText[c]; ok {
		return s
	}
	return fmt.Sprintf("unknown error (code %d)", int(c))
}

// IsAuth reports whether the code concerns OAuth credentials or signing.
func (c ErrorCode) IsAuth() bool { return c >= 2 && c <= 9 }

// APIError is the {"error":{"code":N,"message":"..."}} envelope.
type APIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("fatsecret: %s", e.Code)
	}
	return fmt.Sprintf("fatsecret: %s: %s", e.Code, e.Message)
}

// IsAuth reports whether the error concerns OAuth credentials or signing.
func (e *APIError) IsAuth() bool { return e.Code.IsAuth() }

// HTTPError is a non-2xx response without a parseable API error body.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("fatsecret: http %d: %s", e.Status, e.Body)
}

// ErrTransport wraps network-level failures.
var ErrTransport = errors.New("fatsecret: request failed")

// ErrDecode wraps responses that cannot be parsed.
var ErrDecode = errors.New("fatsecret: unexpected response")

// Recoverable reports whether retrying the same request could succeed:
// network failures, API unavailability (code 14) and 5xx responses.
func Recoverable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == CodeAPIUnavailable
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status >= 500
	}
	if errors.Is(err, ErrTransport) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsAuthError reports whether err is an authentication failure.
func IsAuthError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsAuth()
}

// parseAPIError extracts an APIError from body, or nil if body is not an
// error envelope.
func parseAPIError(body []byte) *APIError {
	var env struct {
		Error *struct {
			Code    Int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil || env.Error == nil {
		return nil
	}
	return &APIError{Code: ErrorCode(env.Error.Code), Message: env.Error.Message}
}
