// Package tandoor is a small client for the Tandoor Recipes REST API.
package tandoor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

var (
	ErrConfiguration = errors.New("tandoor: base_url and api_token are required")
	ErrAuth          = errors.New("tandoor: authentication failed")
	ErrNotFound      = errors.New("tandoor: not found")
	ErrTransport     = errors.New("tandoor: request failed")
	ErrDecode        = errors.New("tandoor: unexpected response")
)

// HTTPError is any other non-2xx response.
type HTTPError struct {
	Status int
	Detail string
}

func (e *HTTPError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("tandoor: http %d", e.Status)
	}
	return fmt.Sprintf("tandoor: http %d: %s", e.Status, e.Detail)
}

// Config points the client at one Tandoor instance.
type Config struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration
}

// Validate checks that BaseURL is an absolute http(s) URL and a token is set.
func (c Config) Validate() error {
	if c.APIToken == "" || c.BaseURL == "" {
		return ErrConfiguration
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: invalid base_url %q", ErrConfiguration, c.BaseURL)
	}
	return nil
}

// Client talks to Tandoor with a static bearer token.
type Client struct {
	base *url.URL
	http *http.Client
	log  *slog.Logger
}

// New builds a Client. base may be nil to use http.DefaultTransport.
func New(cfg Config, base http.RoundTripper) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	u, _ := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if base == nil {
		base = http.DefaultTransport
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIToken, TokenType: "Bearer"})
	return &Client{
		base: u,
		http: &http.Client{Transport: &oauth2.Transport{Source: ts, Base: base}, Timeout: timeout},
		log:  slog.Default().With("domain", "tandoor"),
	}, nil
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, q), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}
	c.log.Debug("request", "method", method, "path", path, "status", resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrAuth, detail(data))
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.StatusCode >= 300:
		return &HTTPError{Status: resp.StatusCode, Detail: detail(data)}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	return nil
}

// detail extracts the DRF error message from a response body.
func detail(body []byte) string {
	var e struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Detail != "" {
			return e.Detail
		}
		if e.Error != "" {
			return e.Error
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

// Page is a DRF paginated list.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// UnmarshalJSON also accepts a bare array, which some list endpoints return
// when pagination is disabled.
func (p *Page[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var items []T
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		*p = Page[T]{Count: len(items), Results: items}
		return nil
	}
	var r struct {
		Count    int     `json:"count"`
		Next     *string `json:"next"`
		Previous *string `json:"previous"`
		Results  []T     `json:"results"`
	}
	if err := json.Unmarshal(b, &r); err != nil {
		return err
	}
	*p = Page[T]{Count: r.Count, Next: r.Next, Previous: r.Previous, Results: r.Results}
	if p.Results == nil {
		p.Results = []T{}
	}
	return nil
}

// ListOptions controls paging and filtering of list endpoints.
type ListOptions struct {
	Page     int
	PageSize int
	Query    string
}

func (o ListOptions) values() url.Values {
	q := url.Values{}
	if o.Page > 0 {
		q.Set("page", fmt.Sprint(o.Page))
	}
	if o.PageSize > 0 {
		q.Set("page_size", fmt.Sprint(o.PageSize))
	}
	if o.Query != "" {
		q.Set("query", o.Query)
	}
	return q
}
