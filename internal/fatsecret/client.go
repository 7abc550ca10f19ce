// Package fatsecret is a client for the FatSecret Platform REST API.
//
// Every call is signed with OAuth 1.0a. Public data (foods, recipes) uses
// 2-legged signing with the consumer credentials only; diary and profile
// calls are 3-legged and need a user access token.
package fatsecret

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/haukened/mealplanner/internal/domain"
	"github.com/haukened/mealplanner/internal/oauth1"
)

const (
	DefaultAPIHost  = "platform.fatsecret.com"
	DefaultAuthHost = "authentication.fatsecret.com"

	apiPath          = "/rest/server.api"
	requestTokenPath = "/oauth/request_token"
	accessTokenPath  = "/oauth/access_token"
	authorizePath    = "/authorize"

	maxBody = 4 << 20
)

// Config holds consumer credentials and endpoints.
type Config struct {
	ConsumerKey    string
	ConsumerSecret string
	APIHost        string
	AuthHost       string
	// APIURL and AuthURL override the https endpoints derived from the hosts.
	APIURL  string
	AuthURL string
}

// Validate reports missing consumer credentials before any network call.
func (c Config) Validate() error {
	if c.ConsumerKey == "" {
		return oauth1.ErrMissingConsumerKey
	}
	if c.ConsumerSecret == "" {
		return oauth1.ErrMissingConsumerSecret
	}
	return nil
}

func (c Config) apiURL() string {
	if c.APIURL != "" {
		return c.APIURL
	}
	host := c.APIHost
	if host == "" {
		host = DefaultAPIHost
	}
	return "https://" + host + apiPath
}

func (c Config) authBase() string {
	if c.AuthURL != "" {
		return strings.TrimRight(c.AuthURL, "/")
	}
	host := c.AuthHost
	if host == "" {
		host = DefaultAuthHost
	}
	return "https://" + host
}

// Client calls the FatSecret API. It is safe for concurrent use.
type Client struct {
	cfg    Config
	signer *oauth1.Signer
	http   *http.Client
	log    *slog.Logger
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	http       *http.Client
	signerOpts []oauth1.Option
	logger     *slog.Logger
}

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(c *http.Client) Option { return func(o *clientOptions) { o.http = c } }

// WithSignerOptions forwards options to the OAuth signer.
func WithSignerOptions(opts ...oauth1.Option) Option {
	return func(o *clientOptions) { o.signerOpts = append(o.signerOpts, opts...) }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *slog.Logger) Option { return func(o *clientOptions) { o.logger = l } }

// New validates cfg and returns a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := clientOptions{}
	for _, fn := range opts {
		fn(&o)
	}
	if o.http == nil {
		o.http = &http.Client{Timeout: 30 * time.Second}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	signer, err := oauth1.NewSigner(cfg.ConsumerKey, cfg.ConsumerSecret, o.signerOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{cfg: cfg, signer: signer, http: o.http, log: o.logger.With("domain", "fatsecret")}, nil
}

// Call invokes an API method with 2-legged signing and decodes the JSON
// response into out.
func (c *Client) Call(ctx context.Context, method string, params url.Values, out any) error {
	return c.call(ctx, method, params, nil, out)
}

// CallAuthorized invokes an API method on behalf of the user owning tok.
func (c *Client) CallAuthorized(ctx context.Context, tok domain.AccessToken, method string, params url.Values, out any) error {
	return c.call(ctx, method, params, &oauth1.Token{Token: tok.Token, Secret: tok.Secret}, out)
}

func (c *Client) call(ctx context.Context, method string, params url.Values, tok *oauth1.Token, out any) error {
	p := make(url.Values, len(params)+2)
	for k, vs := range params {
		p[k] = vs
	}
	p.Set("method", method)
	p.Set("format", "json")
	body, err := c.do(ctx, http.MethodPost, c.cfg.apiURL(), p, tok)
	if err != nil {
		return err
	}
	if apiErr := parseAPIError(body); apiErr != nil {
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDecode, method, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, rawURL string, params url.Values, tok *oauth1.Token) ([]byte, error) {
	req, err := c.signer.NewRequest(ctx, method, rawURL, params, tok)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}
	c.log.Debug("request", "api_method", params.Get("method"), "status", resp.StatusCode, "ms", time.Since(start).Milliseconds())
	if resp.StatusCode >= 300 {
		if apiErr := parseAPIError(body); apiErr != nil {
			return nil, apiErr
		}
		return nil, &HTTPError{Status: resp.StatusCode, Body: truncate(string(body), 200)}
	}
	return body, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
