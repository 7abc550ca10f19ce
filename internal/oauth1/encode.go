// Package oauth1 signs HTTP requests with OAuth 1.0a (RFC 5849) HMAC
// signatures and builds the signed requests for 2-legged and 3-legged calls.
package oauth1

import (
	"net/url"
	"sort"
	"strings"
)

const upperhex = "0123456789ABCDEF"

// Encode percent-encodes s per RFC 3986: unreserved characters
// (A-Z a-z 0-9 - . _ ~) pass through and every other byte becomes %XX.
func Encode(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if !unreserved(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0x0f])
	}
	return b.String()
}

func unreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}

type pair struct{ k, v string }

// NormalizeParameters encodes every key and value, sorts by encoded key then
// encoded value, and joins them as k=v&k=v.
func NormalizeParameters(params url.Values) string {
	pairs := make([]pair, 0, len(params))
	for k, vs := range params {
		ek := Encode(k)
		for _, v := range vs {
			pairs = append(pairs, pair{ek, Encode(v)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(p.k)
		b.WriteByte('=')
		b.WriteString(p.v)
	}
	return b.String()
}

// BaseURL normalizes raw for signing: scheme and host are lowercased,
// default ports dropped, and query and fragment removed. Query parameters are
// returned so callers can include them in the signed set.
func BaseURL(raw string) (string, url.Values, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", nil, &url.Error{Op: "parse", URL: raw, Err: errNotAbsolute}
	}
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && !(scheme == "http" && port == "80") && !(scheme == "https" && port == "443") {
		host += ":" + port
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return scheme + "://" + host + path, u.Query(), nil
}

// SignatureBaseString joins the upper-cased method, the encoded base URL and
// the encoded normalized parameters with '&'.
func SignatureBaseString(method, baseURL string, params url.Values) string {
	return strings.ToUpper(method) + "&" + Encode(baseURL) + "&" + Encode(NormalizeParameters(params))
}

// SigningKey returns encode(consumerSecret)&encode(tokenSecret). For
// 2-legged requests tokenSecret is empty and the key ends in '&'.
func SigningKey(consumerSecret, tokenSecret string) string {
	return Encode(consumerSecret) + "&" + Encode(tokenSecret)
}
