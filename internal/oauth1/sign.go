package oauth1

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"hash"
	"net/url"
	"strconv"
	"time"
)

// SignatureMethod names the HMAC variant placed in oauth_signature_method.
type SignatureMethod string

const (
	HMACSHA1   SignatureMethod = "HMAC-SHA1"
	HMACSHA256 SignatureMethod = "HMAC-SHA256"
)

func (m SignatureMethod) hash() (func() hash.Hash, bool) {
	switch m {
	case HMACSHA1, "":
		return sha1.New, true
	case HMACSHA256:
		return sha256.New, true
	}
	return nil, false
}

// OAuth protocol parameter names.
const (
	ParamConsumerKey     = "oauth_consumer_key"
	ParamNonce           = "oauth_nonce"
	ParamSignature       = "oauth_signature"
	ParamSignatureMethod = "oauth_signature_method"
	ParamTimestamp       = "oauth_timestamp"
	ParamToken           = "oauth_token"
	ParamTokenSecret     = "oauth_token_secret"
	ParamVersion         = "oauth_version"
	ParamCallback        = "oauth_callback"
	ParamVerifier        = "oauth_verifier"
)

// Version is the protocol version sent with every request.
const Version = "1.0"

// SigningContext is everything a signature depends on besides the nonce and
// timestamp. An empty Token signs a 2-legged request.
type SigningContext struct {
	ConsumerKey     string
	ConsumerSecret  string
	Token           string
	TokenSecret     string
	Method          string
	BaseURL         string
	Params          url.Values
	SignatureMethod SignatureMethod
}

// Sign returns a copy of sc.Params extended with the oauth_* parameters and
// oauth_signature. It is pure: equal inputs give byte-identical output.
func Sign(sc SigningContext, nonce string, timestamp int64) (url.Values, error) {
	if sc.ConsumerKey == "" {
		return nil, ErrMissingConsumerKey
	}
	if sc.ConsumerSecret == "" {
		return nil, ErrMissingConsumerSecret
	}
	newHash, ok := sc.SignatureMethod.hash()
	if !ok {
		return nil, ErrUnsupportedMethod
	}
	method := sc.SignatureMethod
	if method == "" {
		method = HMACSHA1
	}

	out := make(url.Values, len(sc.Params)+7)
	for k, vs := range sc.Params {
		out[k] = append([]string(nil), vs...)
	}
	out.Set(ParamConsumerKey, sc.ConsumerKey)
	out.Set(ParamNonce, nonce)
	out.Set(ParamSignatureMethod, string(method))
	out.Set(ParamTimestamp, strconv.FormatInt(timestamp, 10))
	out.Set(ParamVersion, Version)
	if sc.Token != "" {
		out.Set(ParamToken, sc.Token)
	}
	out.Del(ParamSignature)

	base := SignatureBaseString(sc.Method, sc.BaseURL, out)
	mac := hmac.New(newHash, []byte(SigningKey(sc.ConsumerSecret, sc.TokenSecret)))
	mac.Write([]byte(base))
	out.Set(ParamSignature, base64.StdEncoding.EncodeToString(mac.Sum(nil)))
	return out, nil
}

// NewNonce returns 16 random bytes as 32 hex characters.
func NewNonce() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

// Token is a user token/secret pair for 3-legged signing.
type Token struct {
	Token  string
	Secret string
}

// Signer holds consumer credentials and produces signed parameter sets.
type Signer struct {
	consumerKey    string
	consumerSecret string
	method         SignatureMethod
	nonce          func() (string, error)
	now            func() time.Time
}

// Option configures a Signer.
type Option func(*Signer)

// WithNonceSource replaces the random nonce generator.
func WithNonceSource(f func() (string, error)) Option { return func(s *Signer) { s.nonce = f } }

// WithClock replaces time.Now for oauth_timestamp.
func WithClock(f func() time.Time) Option { return func(s *Signer) { s.now = f } }

// WithSignatureMethod selects HMAC-SHA1 (default) or HMAC-SHA256.
func WithSignatureMethod(m SignatureMethod) Option { return func(s *Signer) { s.method = m } }

// NewSigner validates the consumer credentials up front so a missing key is
// reported before any network call.
func NewSigner(consumerKey, consumerSecret string, opts ...Option) (*Signer, error) {
	if consumerKey == "" {
		return nil, ErrMissingConsumerKey
	}
	if consumerSecret == "" {
		return nil, ErrMissingConsumerSecret
	}
	s := &Signer{
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		method:         HMACSHA1,
		nonce:          NewNonce,
		now:            time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if _, ok := s.method.hash(); !ok {
		return nil, ErrUnsupportedMethod
	}
	return s, nil
}

// ConsumerKey returns the configured consumer key.
func (s *Signer) ConsumerKey() string { return s.consumerKey }

// Sign signs a request to rawURL. Query parameters already on rawURL are
// included in the signature. tok may be nil for 2-legged requests.
func (s *Signer) Sign(method, rawURL string, params url.Values, tok *Token) (url.Values, error) {
	base, query, err := BaseURL(rawURL)
	if err != nil {
		return nil, &SigningError{Op: "base url", Err: err}
	}
	merged := make(url.Values, len(params)+len(query))
	for k, vs := range query {
		merged[k] = append(merged[k], vs...)
	}
	for k, vs := range params {
		merged[k] = append(merged[k], vs...)
	}
	nonce, err := s.nonce()
	if err != nil {
		return nil, &SigningError{Op: "nonce", Err: err}
	}
	sc := SigningContext{
		ConsumerKey:     s.consumerKey,
		ConsumerSecret:  s.consumerSecret,
		Method:          method,
		BaseURL:         base,
		Params:          merged,
		SignatureMethod: s.method,
	}
	if tok != nil {
		sc.Token = tok.Token
		sc.TokenSecret = tok.Secret
	}
	return Sign(sc, nonce, s.now().Unix())
}
