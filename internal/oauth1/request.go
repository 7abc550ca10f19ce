package oauth1

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// NewRequest signs params and builds the HTTP request. GET and DELETE carry
// the signed set in the query string; every other method sends it as a form
// body.
func (s *Signer) NewRequest(ctx context.Context, method, rawURL string, params url.Values, tok *Token) (*http.Request, error) {
	method = strings.ToUpper(method)
	signed, err := s.Sign(method, rawURL, params, tok)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	u.RawQuery = ""
	u.Fragment = ""

	if method == http.MethodGet || method == http.MethodDelete {
		u.RawQuery = encodeQuery(signed)
		return http.NewRequestWithContext(ctx, method, u.String(), nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), strings.NewReader(encodeQuery(signed)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

// encodeQuery serializes with the same RFC 3986 encoding used for signing so
// the server sees exactly the bytes that were signed.
func encodeQuery(v url.Values) string {
	return NormalizeParameters(v)
}

// AuthorizationHeader renders the oauth_* members of params as an
// Authorization header value.
func AuthorizationHeader(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if strings.HasPrefix(k, "oauth_") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString("OAuth ")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, `%s="%s"`, Encode(k), Encode(params.Get(k)))
	}
	return b.String()
}

// ParseTokenResponse reads a form-encoded token endpoint response. The
// returned values hold any extra fields such as oauth_callback_confirmed.
func ParseTokenResponse(body string) (Token, url.Values, error) {
	vals, err := url.ParseQuery(strings.TrimSpace(body))
	if err != nil {
		return Token{}, nil, fmt.Errorf("%w: %v", ErrMalformedTokenResponse, err)
	}
	tok := Token{Token: vals.Get(ParamToken), Secret: vals.Get(ParamTokenSecret)}
	if tok.Token == "" || tok.Secret == "" {
		return Token{}, vals, ErrMalformedTokenResponse
	}
	return tok, vals, nil
}
