package oauth1

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fatsecretAPI = "https://platform.fatsecret.com/rest/server.api"

func TestEncode(t *testing.T) {
	cases := map[string]string{
		"":                   "",
		"abcXYZ019-._~":      "abcXYZ019-._~",
		"chicken soup":       "chicken%20soup",
		"a+b=c&d":            "a%2Bb%3Dc%26d",
		"Ladies + Gentlemen": "Ladies%20%2B%20Gentlemen",
		"/?#[]@!$'()*,;":     "%2F%3F%23%5B%5D%40%21%24%27%28%29%2A%2C%3B",
		"é":                  "%C3%A9",
		"☃":                  "%E2%98%83",
		"%":                  "%25",
	}
	for in, want := range cases {
		if got := Encode(in); got != want {
			t.Errorf("Encode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeParametersOrdering(t *testing.T) {
	params := url.Values{
		"a":  {"z", "b c", "b"},
		"A":  {"x"},
		"a2": {"q"},
	}
	got := NormalizeParameters(params)
	assert.Equal(t, "A=x&a=b&a=b%20c&a=z&a2=q", got)
}

func TestNormalizeEncodesBeforeSorting(t *testing.T) {
	// Raw 'a' sorts before '|', but the encoded form %7C sorts before 'a'.
	params := url.Values{"k": {"a", "|"}}
	assert.Equal(t, "k=%7C&k=a", NormalizeParameters(params))
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		in    string
		want  string
		query url.Values
	}{
		{in: "https://platform.fatsecret.com/rest/server.api", want: fatsecretAPI},
		{in: "HTTPS://Platform.FatSecret.com:443/rest/server.api", want: fatsecretAPI},
		{in: "http://example.com:80", want: "http://example.com/"},
		{in: "http://example.com:8080/r?b=2&a=1#frag", want: "http://example.com:8080/r", query: url.Values{"a": {"1"}, "b": {"2"}}},
	}
	for _, tc := range tests {
		got, q, err := BaseURL(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
		if tc.query != nil {
			assert.Equal(t, tc.query, q)
		}
	}
	_, _, err := BaseURL("/relative/only")
	require.Error(t, err)
}

func TestSigningKey(t *testing.T) {
	assert.Equal(t, "cs&", SigningKey("cs", ""))
	assert.Equal(t, "c%26s&t%20s", SigningKey("c&s", "t s"))
}

func TestSignTwoLeggedGolden(t *testing.T) {
	sc := SigningContext{
		ConsumerKey:    "ck",
		ConsumerSecret: "cs",
		Method:         "GET",
		BaseURL:        fatsecretAPI,
		Params:         url.Values{"method": {"foods.search"}, "search_expression": {"chicken soup"}},
	}
	wantBase := "GET&https%3A%2F%2Fplatform.fatsecret.com%2Frest%2Fserver.api&method%3Dfoods.search%26oauth_consumer_key%3Dck%26oauth_nonce%3Dn1%26oauth_signature_method%3DHMAC-SHA1%26oauth_timestamp%3D1700000000%26oauth_version%3D1.0%26search_expression%3Dchicken%2520soup"

	out, err := Sign(sc, "n1", 1700000000)
	require.NoError(t, err)
	assert.Equal(t, "4IuzfA+894Sgq0Vbehbnzm0lhc8=", out.Get(ParamSignature))
	assert.Equal(t, "HMAC-SHA1", out.Get(ParamSignatureMethod))
	assert.Equal(t, "1.0", out.Get(ParamVersion))
	assert.Empty(t, out.Get(ParamToken), "2-legged requests carry no oauth_token")

	signed := url.Values{}
	for k, v := range out {
		if k != ParamSignature {
			signed[k] = v
		}
	}
	assert.Equal(t, wantBase, SignatureBaseString("get", fatsecretAPI, signed))

	again, err := Sign(sc, "n1", 1700000000)
	require.NoError(t, err)
	assert.Equal(t, out, again, "signing must be deterministic")
	assert.Len(t, sc.Params, 2, "input params must not be mutated")
}

func TestSignThreeLeggedGolden(t *testing.T) {
	sc := SigningContext{
		ConsumerKey:    "ck",
		ConsumerSecret: "cs",
		Token:          "at",
		TokenSecret:    "ts",
		Method:         "POST",
		BaseURL:        fatsecretAPI,
		Params:         url.Values{"method": {"food_entries.get.v2"}, "date": {"19700"}},
	}
	out, err := Sign(sc, "n2", 1700000000)
	require.NoError(t, err)
	assert.Equal(t, "ge7OcOzhvxgzqkvSTm/i4vhxcH8=", out.Get(ParamSignature))
	assert.Equal(t, "at", out.Get(ParamToken))
	assert.Empty(t, out.Get(ParamTokenSecret), "token secret must never be sent")
}

func TestSignHMACSHA256(t *testing.T) {
	sc := SigningContext{
		ConsumerKey:     "ck",
		ConsumerSecret:  "cs",
		Method:          "GET",
		BaseURL:         fatsecretAPI,
		Params:          url.Values{"method": {"foods.search"}, "search_expression": {"chicken soup"}},
		SignatureMethod: HMACSHA256,
	}
	out, err := Sign(sc, "n1", 1700000000)
	require.NoError(t, err)
	assert.Equal(t, "53wmKMnith77S/iUHqNQseiFZq8Z6tV25phzafiSCBs=", out.Get(ParamSignature))
}

// Reference request from the RFC 5849 walkthrough published in the Twitter API docs.
func TestSignReferenceVector(t *testing.T) {
	sc := SigningContext{
		ConsumerKey:    "xvz1evFS4wEEPTGEFPHBog",
		ConsumerSecret: "kAcSOqF21Fu85e7zjz7ZN2U4ZRhfV3WpwPAoE3Z7kBw",
		Token:          "370773112-GmHxMAgYyLbNEtIKZeRNFsMKPR9EyMZeS9weJAEb",
		TokenSecret:    "LswwdoUaIvS8ltyTt5jkRh4J50vUPVVHtR2YPi5kE",
		Method:         "POST",
		BaseURL:        "https://api.twitter.com/1.1/statuses/update.json",
		Params: url.Values{
			"include_entities": {"true"},
			"status":           {"Hello Ladies + Gentlemen, a signed OAuth request!"},
		},
	}
	out, err := Sign(sc, "kYjzVBB8Y0ZFabxSWbWovY3uYSQ2pTgmZeNu2VS4cg", 1318622958)
	require.NoError(t, err)
	assert.Equal(t, "hCtSmYh+iHYCEqBWrE7C7hYmtUk=", out.Get(ParamSignature))
}

func TestSignErrors(t *testing.T) {
	_, err := Sign(SigningContext{ConsumerSecret: "cs"}, "n", 1)
	assert.ErrorIs(t, err, ErrMissingConsumerKey)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = Sign(SigningContext{ConsumerKey: "ck"}, "n", 1)
	assert.ErrorIs(t, err, ErrMissingConsumerSecret)

	_, err = Sign(SigningContext{ConsumerKey: "ck", ConsumerSecret: "cs", SignatureMethod: "PLAINTEXT"}, "n", 1)
	assert.ErrorIs(t, err, ErrUnsupportedMethod)
}

func TestNewSignerValidation(t *testing.T) {
	_, err := NewSigner("", "cs")
	assert.ErrorIs(t, err, ErrMissingConsumerKey)
	_, err = NewSigner("ck", "")
	assert.ErrorIs(t, err, ErrMissingConsumerSecret)
	_, err = NewSigner("ck", "cs", WithSignatureMethod("RSA-SHA1"))
	assert.ErrorIs(t, err, ErrUnsupportedMethod)
}

func fixedSigner(t *testing.T, nonce string) *Signer {
	t.Helper()
	s, err := NewSigner("ck", "cs",
		WithNonceSource(func() (string, error) { return nonce, nil }),
		WithClock(func() time.Time { return time.Unix(1700000000, 0) }),
	)
	require.NoError(t, err)
	return s
}

func TestSignerMatchesPureSign(t *testing.T) {
	s := fixedSigner(t, "n1")
	out, err := s.Sign("GET", fatsecretAPI, url.Values{"method": {"foods.search"}, "search_expression": {"chicken soup"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "4IuzfA+894Sgq0Vbehbnzm0lhc8=", out.Get(ParamSignature))

	// Query parameters on the URL take part in the signature.
	out, err = s.Sign("GET", fatsecretAPI+"?method=foods.search", url.Values{"search_expression": {"chicken soup"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "4IuzfA+894Sgq0Vbehbnzm0lhc8=", out.Get(ParamSignature))
}

func TestSignerNonceFailure(t *testing.T) {
	boom := errors.New("entropy unavailable")
	s, err := NewSigner("ck", "cs", WithNonceSource(func() (string, error) { return "", boom }))
	require.NoError(t, err)
	_, err = s.Sign("GET", fatsecretAPI, nil, nil)
	var se *SigningError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "nonce", se.Op)
	assert.ErrorIs(t, err, boom)
}

func TestNewNonce(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		n, err := NewNonce()
		require.NoError(t, err)
		require.Len(t, n, 32)
		if _, dup := seen[n]; dup {
			t.Fatalf("nonce repeated: %s", n)
		}
		seen[n] = struct{}{}
	}
}

func TestNewRequestGET(t *testing.T) {
	s := fixedSigner(t, "n1")
	req, err := s.NewRequest(context.Background(), "get", fatsecretAPI, url.Values{"method": {"foods.search"}, "search_expression": {"chicken soup"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Nil(t, req.Body)
	q := req.URL.Query()
	assert.Equal(t, "chicken soup", q.Get("search_expression"))
	assert.Equal(t, "4IuzfA+894Sgq0Vbehbnzm0lhc8=", q.Get(ParamSignature))
	assert.Contains(t, req.URL.RawQuery, "search_expression=chicken%20soup")
}

func TestNewRequestPOST(t *testing.T) {
	s := fixedSigner(t, "n2")
	tok := &Token{Token: "at", Secret: "ts"}
	req, err := s.NewRequest(context.Background(), http.MethodPost, fatsecretAPI, url.Values{"method": {"food_entries.get.v2"}, "date": {"19700"}}, tok)
	require.NoError(t, err)
	assert.Equal(t, "application/x-www-form-urlencoded", req.Header.Get("Content-Type"))
	assert.Empty(t, req.URL.RawQuery)
	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	form, err := url.ParseQuery(string(body))
	require.NoError(t, err)
	assert.Equal(t, "ge7OcOzhvxgzqkvSTm/i4vhxcH8=", form.Get(ParamSignature))
	assert.Equal(t, "at", form.Get(ParamToken))
	assert.NotContains(t, string(body), ParamTokenSecret)
}

func TestAuthorizationHeader(t *testing.T) {
	params := url.Values{
		ParamConsumerKey: {"ck"},
		ParamSignature:   {"a+b="},
		"method":         {"foods.search"},
	}
	h := AuthorizationHeader(params)
	assert.Equal(t, `OAuth oauth_consumer_key="ck", oauth_signature="a%2Bb%3D"`, h)
	assert.False(t, strings.Contains(h, "method"))
}

func TestParseTokenResponse(t *testing.T) {
	tok, vals, err := ParseTokenResponse("oauth_token=rt&oauth_token_secret=rs&oauth_callback_confirmed=true\n")
	require.NoError(t, err)
	assert.Equal(t, Token{Token: "rt", Secret: "rs"}, tok)
	assert.Equal(t, "true", vals.Get("oauth_callback_confirmed"))

	_, _, err = ParseTokenResponse("oauth_token=rt")
	assert.ErrorIs(t, err, ErrMalformedTokenResponse)
	_, _, err = ParseTokenResponse("%zz")
	assert.ErrorIs(t, err, ErrMalformedTokenResponse)
}
