package commands

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/haukened/mealplanner/internal/app"
	"github.com/haukened/mealplanner/internal/config"
	"github.com/haukened/mealplanner/internal/crypt"
	"github.com/haukened/mealplanner/internal/domain"
	"github.com/haukened/mealplanner/internal/fatsecret"
	"github.com/haukened/mealplanner/internal/lambda"
	"github.com/haukened/mealplanner/internal/metrics"
	"github.com/haukened/mealplanner/internal/observability"
	"github.com/haukened/mealplanner/internal/store"
	"github.com/haukened/mealplanner/internal/store/sqlite"
	"github.com/haukened/mealplanner/internal/tandoor"
)

// realClock implements app.Clock using time.Now.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// needs describes what an invocation requires before its handler runs.
type needs int

const (
	needNothing needs = iota
	// needStore runs the encryption key guard and fails if the database
	// cannot be opened.
	needStore
)

// runtime is the per-invocation state shared by the handlers.
type runtime struct {
	cfg     *config.Config
	log     *slog.Logger
	command string
	env     lambda.Env
	key     crypt.Key
	db      *sql.DB
	mx      *metrics.Manager
}

// action adapts a typed handler into a cli action: configuration, logging,
// the key guard and the database are set up first, then the lambda runs.
func action[T any](a *cliApp, command string, n needs, fn func(context.Context, *runtime, T) (lambda.Fields, error)) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		jq := cmd.String("jq")
		rt, err := a.boot(ctx, cmd, command, n)
		if err != nil {
			if werr := lambda.WriteError(ctx, a.streams.Stdout, jq, err); werr != nil {
				_ = lambda.WriteError(ctx, a.streams.Stdout, "", err)
			}
			return lambda.ErrFailed
		}
		defer rt.close(context.WithoutCancel(ctx))
		return lambda.Run(ctx, rt.env, command, func(ctx context.Context, in T) (lambda.Fields, error) {
			return fn(ctx, rt, in)
		})
	}
}

func (a *cliApp) boot(ctx context.Context, cmd *cli.Command, command string, n needs) (*runtime, error) {
	cfg, err := config.LoadWith(config.Sources{
		File:    cmd.String("config"),
		Flags:   extractAndTransformFlags(cmd),
		Environ: a.streams.Environ,
	})
	if err != nil {
		slog.Error("configuration error", "command", command, "err", err)
		return nil, fmt.Errorf("%w: %v", lambda.ErrConfiguration, err)
	}
	logger, err := observability.Instrument(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", lambda.ErrConfiguration, err)
	}
	log := logger.With("command", command)

	rt := &runtime{cfg: cfg, log: log, command: command}
	if n == needStore {
		if rt.key, err = rt.loadKey(ctx); err != nil {
			log.Error("encryption key check failed", "err", err, "hint", "run `mealplanner generate-key` and export "+crypt.EnvKey)
			return nil, err
		}
	}

	if err := rt.openDB(ctx); err != nil {
		if n == needStore {
			log.Error("open database", "path", cfg.DatabaseDir(), "err", err)
			return nil, err
		}
		log.Warn("metrics disabled", "err", err)
	}

	rt.env = lambda.Env{
		Args:     cmd.Args().Slice(),
		Stdin:    a.streams.Stdin,
		Stdout:   a.streams.Stdout,
		JQ:       cmd.String("jq"),
		Logger:   log,
		MaxInput: int64(cfg.MaxInput),
		Observe:  rt.observe,
	}
	return rt, nil
}

func (rt *runtime) loadKey(ctx context.Context) (crypt.Key, error) {
	raw, err := crypt.ResolveKey(ctx, rt.cfg.Encryption.Key, rt.cfg.Encryption.KeyringUser)
	if err != nil {
		return crypt.Key{}, fmt.Errorf("%w: %v", crypt.ErrKeyMissing, err)
	}
	return crypt.ValidateEncryptionAtStartup(raw)
}

func (rt *runtime) openDB(ctx context.Context) error {
	if err := os.MkdirAll(rt.cfg.DatabaseDir(), 0o700); err != nil {
		return fmt.Errorf("%w: create data dir: %v", app.ErrConnectionFailed, err)
	}
	db, err := sqlite.Open(ctx, rt.cfg.SQLiteDSN())
	if err != nil {
		return err
	}
	rt.db = db
	mx := metrics.New(db, metrics.Config{Logger: rt.log})
	if err := mx.InitSchema(ctx); err != nil {
		rt.log.Warn("metrics schema", "err", err)
		return nil
	}
	rt.mx = mx
	return nil
}

func (rt *runtime) observe(command string, ok bool, d time.Duration) {
	if rt.mx != nil {
		rt.mx.ObserveInvocation(command, ok, d)
	}
}

// sink returns the metrics manager as an app.MetricsSink, or nil.
func (rt *runtime) sink() app.MetricsSink {
	if rt.mx == nil {
		return nil
	}
	return rt.mx
}

func (rt *runtime) close(ctx context.Context) {
	if rt.mx != nil {
		if err := rt.mx.Flush(ctx); err != nil {
			rt.log.Warn("metrics flush", "err", err)
		}
	}
	if rt.db != nil {
		_ = rt.db.Close()
	}
}

func (rt *runtime) user(s string) (domain.UserID, error) {
	return domain.UserIDOrDefault(s, domain.UserID(rt.cfg.UserID))
}

func (rt *runtime) tokenStore() (*store.Store, *sqlite.Index, error) {
	if rt.db == nil {
		return nil, nil, app.ErrConnectionFailed
	}
	idx, err := sqlite.New(rt.db)
	if err != nil {
		return nil, nil, err
	}
	st := store.New(idx, rt.key, realClock{}, store.Options{
		PendingTTL:   rt.cfg.OAuth.PendingTTL,
		AccessMaxAge: rt.cfg.OAuth.AccessMaxAge,
	})
	return st, idx, nil
}

// FatSecretResource overrides the configured consumer credentials.
type FatSecretResource struct {
	ConsumerKey    string `json:"consumer_key"`
	ConsumerSecret string `json:"consumer_secret"`
}

// TandoorResource overrides the configured Tandoor instance.
type TandoorResource struct {
	BaseURL  string `json:"base_url"`
	APIToken string `json:"api_token"`
}

func (rt *runtime) fatsecret(res *FatSecretResource) (*fatsecret.Client, error) {
	c := rt.cfg.FatSecret
	cfg := fatsecret.Config{
		ConsumerKey:    c.ConsumerKey,
		ConsumerSecret: c.ConsumerSecret,
		APIHost:        c.APIHost,
		AuthHost:       c.AuthHost,
		APIURL:         c.APIURL,
		AuthURL:        c.AuthURL,
	}
	if res != nil {
		cfg.ConsumerKey = cmp.Or(res.ConsumerKey, cfg.ConsumerKey)
		cfg.ConsumerSecret = cmp.Or(res.ConsumerSecret, cfg.ConsumerSecret)
	}
	return fatsecret.New(cfg,
		fatsecret.WithHTTPClient(&http.Client{Timeout: rt.cfg.HTTPTimeout}),
		fatsecret.WithLogger(rt.log),
	)
}

func (rt *runtime) tandoor(res *TandoorResource) (*tandoor.Client, error) {
	cfg := tandoor.Config{
		BaseURL:  rt.cfg.Tandoor.BaseURL,
		APIToken: rt.cfg.Tandoor.APIToken,
		Timeout:  rt.cfg.HTTPTimeout,
	}
	if res != nil {
		cfg.BaseURL = cmp.Or(res.BaseURL, cfg.BaseURL)
		cfg.APIToken = cmp.Or(res.APIToken, cfg.APIToken)
	}
	return tandoor.New(cfg, nil)
}

// oauthService wires the token store and, when withRemote is set, the
// FatSecret client. Status, disconnect and cleanup never call the API and
// work without consumer credentials.
func (rt *runtime) oauthService(res *FatSecretResource, withRemote bool) (*app.OAuthService, *sqlite.Index, error) {
	st, idx, err := rt.tokenStore()
	if err != nil {
		return nil, nil, err
	}
	svc := &app.OAuthService{Store: st, Clock: realClock{}, Metrics: rt.sink(), Logger: rt.log}
	if withRemote {
		c, err := rt.fatsecret(res)
		if err != nil {
			return nil, nil, err
		}
		svc.Handshaker = c
	}
	return svc, idx, nil
}
