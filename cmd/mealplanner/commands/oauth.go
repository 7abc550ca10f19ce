package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/haukened/mealplanner/internal/app"
	"github.com/haukened/mealplanner/internal/domain"
	"github.com/haukened/mealplanner/internal/httpx"
	"github.com/haukened/mealplanner/internal/janitor"
	"github.com/haukened/mealplanner/internal/lambda"
	"github.com/haukened/mealplanner/internal/metrics"
	"github.com/haukened/mealplanner/web"
)

type oauthStartInput struct {
	FatSecret   *FatSecretResource `json:"fatsecret"`
	CallbackURL string             `json:"callback_url" validate:"omitempty,url|eq=oob"`
	UserID      string             `json:"user_id"`
}

func oauthStart(ctx context.Context, rt *runtime, in oauthStartInput) (lambda.Fields, error) {
	user, err := rt.user(in.UserID)
	if err != nil {
		return nil, err
	}
	svc, _, err := rt.oauthService(in.FatSecret, true)
	if err != nil {
		return nil, err
	}
	res, err := svc.Start(ctx, user, in.CallbackURL)
	if err != nil {
		return nil, err
	}
	rt.log.Info("authorization started", "user", user)
	return lambda.Fields{"auth_url": res.AuthURL, "oauth_token": res.Token}, nil
}

type oauthCompleteInput struct {
	FatSecret  *FatSecretResource `json:"fatsecret"`
	Verifier   string             `json:"oauth_verifier" validate:"required"`
	OAuthToken string             `json:"oauth_token"`
	UserID     string             `json:"user_id"`
}

func oauthComplete(ctx context.Context, rt *runtime, in oauthCompleteInput) (lambda.Fields, error) {
	user, err := rt.user(in.UserID)
	if err != nil {
		return nil, err
	}
	svc, _, err := rt.oauthService(in.FatSecret, true)
	if err != nil {
		return nil, err
	}
	if err := svc.Complete(ctx, user, in.OAuthToken, in.Verifier); err != nil {
		return nil, err
	}
	return lambda.Fields{"message": "FatSecret account connected"}, nil
}

type oauthCallbackInput struct {
	FatSecret   *FatSecretResource `json:"fatsecret"`
	Addr        string             `json:"addr" validate:"omitempty,hostname_port"`
	TimeoutSecs int                `json:"timeout_secs" validate:"gte=0"`
	UserID      string             `json:"user_id"`
}

// oauthCallback serves /oauth/callback until the first authorization
// redirect has been handled or the timeout passes. The janitor and the
// metrics flush loop run alongside the server.
func oauthCallback(ctx context.Context, rt *runtime, in oauthCallbackInput) (lambda.Fields, error) {
	user, err := rt.user(in.UserID)
	if err != nil {
		return nil, err
	}
	svc, idx, err := rt.oauthService(in.FatSecret, true)
	if err != nil {
		return nil, err
	}
	tmpl, err := web.CallbackTemplate()
	if err != nil {
		return nil, err
	}

	addr := in.Addr
	if addr == "" {
		addr = rt.cfg.Callback.Addr
	}
	timeout := rt.cfg.Callback.Timeout
	if in.TimeoutSecs > 0 {
		timeout = time.Duration(in.TimeoutSecs) * time.Second
	}

	done := make(chan error, 1)
	h := httpx.New(svc, user, idx.Ping)
	h.Page = tmpl
	h.Assets = web.Assets
	h.Logger = rt.log
	h.Done = func(err error) { done <- err }
	if rt.mx != nil {
		h.Metrics = metrics.Handler(rt.mx, "")
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	g, gctx := errgroup.WithContext(waitCtx)

	srv := httpx.NewServer(h)
	errCh, err := srv.Start(gctx, addr)
	if err != nil {
		return nil, err
	}
	rt.log.Info("waiting for oauth callback", "url", "http://"+srv.Addr()+httpx.CallbackPath, "timeout", timeout)

	jan := janitor.New(svc.Store, janitorSink(rt.mx), janitor.Config{Interval: rt.cfg.Janitor.Interval, Logger: rt.log})
	g.Go(func() error { return jan.Run(gctx) })
	if rt.mx != nil {
		rt.mx.Start(gctx)
	}

	var outcome error
	g.Go(func() error {
		defer cancel()
		select {
		case outcome = <-done:
			return nil
		case err, ok := <-errCh:
			if ok {
				return err
			}
			return errors.New("callback server stopped")
		case <-gctx.Done():
			return fmt.Errorf("no authorization callback received: %w", context.Cause(gctx))
		}
	})
	werr := g.Wait()

	shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		rt.log.Warn("callback server shutdown", "err", err)
	}
	if rt.mx != nil {
		if err := rt.mx.Stop(shutdownCtx); err != nil {
			rt.log.Warn("metrics stop", "err", err)
		}
	}

	if werr != nil {
		return nil, werr
	}
	if outcome != nil {
		return nil, outcome
	}
	return lambda.Fields{"message": "FatSecret account connected"}, nil
}

// janitorSink avoids handing the janitor a typed nil.
func janitorSink(mx *metrics.Manager) janitor.Sink {
	if mx == nil {
		return nil
	}
	return mx
}

type tokenStatusInput struct {
	CheckOnly bool   `json:"check_only"`
	UserID    string `json:"user_id"`
}

// tokenStatus reports the local connection state. Unless check_only is set
// the token is also decrypted, which proves the key still matches, and its
// last-used time is refreshed. The token secret is never printed.
func tokenStatus(ctx context.Context, rt *runtime, in tokenStatusInput) (lambda.Fields, error) {
	user, err := rt.user(in.UserID)
	if err != nil {
		return nil, err
	}
	svc, _, err := rt.oauthService(nil, false)
	if err != nil {
		return nil, err
	}
	st, err := svc.Status(ctx, user)
	if err != nil {
		return nil, err
	}
	out := lambda.Fields{
		"status":    string(st.Validity),
		"connected": st.Connected(),
	}
	if !st.Connected() {
		return out, nil
	}
	out["connected_at"] = st.ConnectedAt.Format(time.RFC3339)
	out["last_used_at"] = st.LastUsedAt.Format(time.RFC3339)
	if st.Validity == domain.ValidityOld {
		out["days_since_connected"] = st.DaysSinceConnected
	}
	if !in.CheckOnly {
		at, err := svc.Credentials(ctx, user)
		if err != nil {
			return nil, err
		}
		out["oauth_token"] = at.Token
	}
	return out, nil
}

type userInput struct {
	UserID string `json:"user_id"`
}

func disconnect(ctx context.Context, rt *runtime, in userInput) (lambda.Fields, error) {
	user, err := rt.user(in.UserID)
	if err != nil {
		return nil, err
	}
	svc, _, err := rt.oauthService(nil, false)
	if err != nil {
		return nil, err
	}
	existed, err := svc.Disconnect(ctx, user)
	if err != nil {
		return nil, err
	}
	if !existed {
		return lambda.Fields{"message": "no FatSecret account was connected", "disconnected": false}, nil
	}
	return lambda.Fields{"message": "FatSecret account disconnected", "disconnected": true}, nil
}

type emptyInput struct{}

func cleanup(ctx context.Context, rt *runtime, _ emptyInput) (lambda.Fields, error) {
	svc, _, err := rt.oauthService(nil, false)
	if err != nil {
		return nil, err
	}
	n, err := svc.Cleanup(ctx)
	if err != nil {
		return nil, err
	}
	return lambda.Fields{"deleted": n}, nil
}

// credentials loads the stored access token for a 3-legged call.
func credentials(ctx context.Context, rt *runtime, userID string) (domain.AccessToken, error) {
	user, err := rt.user(userID)
	if err != nil {
		return domain.AccessToken{}, err
	}
	svc, _, err := rt.oauthService(nil, false)
	if err != nil {
		return domain.AccessToken{}, err
	}
	at, err := svc.Credentials(ctx, user)
	if errors.Is(err, app.ErrNotFound) {
		return domain.AccessToken{}, fmt.Errorf("FatSecret account not connected, run `mealplanner fatsecret oauth-start`: %w", err)
	}
	return at, err
}
