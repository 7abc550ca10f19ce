package fatsecret

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/haukened/mealplanner/internal/app"
	"github.com/haukened/mealplanner/internal/domain"
	"github.com/haukened/mealplanner/internal/oauth1"
)

var _ app.Handshaker = (*Client)(nil)

// RequestToken performs step one of the 3-legged flow. callbackURL may be
// "oob" for out-of-band verification.
func (c *Client) RequestToken(ctx context.Context, callbackURL string) (domain.RequestToken, error) {
	params := url.Values{oauth1.ParamCallback: {callbackURL}}
	body, err := c.do(ctx, http.MethodPost, c.cfg.authBase()+requestTokenPath, params, nil)
	if err != nil {
		return domain.RequestToken{}, err
	}
	tok, _, err := oauth1.ParseTokenResponse(string(body))
	if err != nil {
		return domain.RequestToken{}, fmt.Errorf("request token: %w", err)
	}
	return domain.RequestToken{Token: tok.Token, Secret: tok.Secret}, nil
}

// AccessToken exchanges an authorized request token and its verifier for
// an access token.
func (c *Client) AccessToken(ctx context.Context, rt domain.RequestToken, verifier string) (domain.AccessToken, error) {
	params := url.Values{oauth1.ParamVerifier: {verifier}}
	body, err := c.do(ctx, http.MethodGet, c.cfg.authBase()+accessTokenPath, params, &oauth1.Token{Token: rt.Token, Secret: rt.Secret})
	if err != nil {
		return domain.AccessToken{}, err
	}
	tok, _, err := oauth1.ParseTokenResponse(string(body))
	if err != nil {
		return domain.AccessToken{}, fmt.Errorf("access token: %w", err)
	}
	return domain.AccessToken{Token: tok.Token, Secret: tok.Secret}, nil
}

// AuthorizationURL is where the user grants access for a request token.
func (c *Client) AuthorizationURL(token string) string {
	return c.cfg.authBase() + authorizePath + "?" + oauth1.ParamToken + "=" + url.QueryEscape(token)
}
