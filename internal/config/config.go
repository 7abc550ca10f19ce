// Package config provides layered configuration loading for mealplanner.
// It merges Defaults -> Config file -> Environment Variables -> CLI Flags,
// then validates the result.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/haukened/mealplanner/internal/domain"
)

// EnvPrefix marks mealplanner environment variables. A double underscore
// nests: MEALPLANNER_OAUTH__PENDING_TTL -> oauth.pending_ttl.
const EnvPrefix = "MEALPLANNER_"

// EnvConfigFile names an optional TOML file when --config is not given.
const EnvConfigFile = EnvPrefix + "CONFIG"

const dbName = "mealplanner.db"

// legacyEnv maps the unprefixed variable names used by existing deployments.
var legacyEnv = map[string]string{
	"OAUTH_ENCRYPTION_KEY":      "encryption.key",
	"FATSECRET_CONSUMER_KEY":    "fatsecret.consumer_key",
	"FATSECRET_CONSUMER_SECRET": "fatsecret.consumer_secret",
	"FATSECRET_API_HOST":        "fatsecret.api_host",
	"FATSECRET_AUTH_HOST":       "fatsecret.auth_host",
	"TANDOOR_BASE_URL":          "tandoor.base_url",
	"TANDOOR_API_TOKEN":         "tandoor.api_token",
	"DATABASE_PATH":             "database_path",
}

// Config is the merged runtime configuration.
type Config struct {
	LogLevel     slog.Level     `koanf:"log_level"`
	LogFormat    string         `koanf:"log_format" validate:"oneof=text json"`
	DataDir      string         `koanf:"data_dir" validate:"safepath"`
	DatabasePath string         `koanf:"database_path"`
	UserID       string         `koanf:"user_id" validate:"required"`
	HTTPTimeout  time.Duration  `koanf:"http_timeout" validate:"gt=0"`
	MaxInput     ByteSize       `koanf:"max_input" validate:"gt=0"`
	OAuth        OAuthConfig    `koanf:"oauth"`
	Encryption   EncryptionConf `koanf:"encryption"`
	FatSecret    FatSecretConf  `koanf:"fatsecret"`
	Tandoor      TandoorConf    `koanf:"tandoor"`
	Callback     CallbackConf   `koanf:"callback"`
	Janitor      JanitorConf    `koanf:"janitor"`
}

type OAuthConfig struct {
	PendingTTL   time.Duration `koanf:"pending_ttl" validate:"gt=0"`
	AccessMaxAge time.Duration `koanf:"access_max_age" validate:"gt=0"`
}

type EncryptionConf struct {
	// Key is the 64 hex character AES-256 key. It is never logged.
	Key string `koanf:"key"`
	// KeyringUser, when set and Key is empty, reads the key from the OS keyring.
	KeyringUser string `koanf:"keyring_user"`
}

type FatSecretConf struct {
	ConsumerKey    string `koanf:"consumer_key"`
	ConsumerSecret string `koanf:"consumer_secret"`
	APIHost        string `koanf:"api_host" validate:"required,hostname_port|hostname"`
	AuthHost       string `koanf:"auth_host" validate:"required,hostname_port|hostname"`
	// APIURL and AuthURL replace the https endpoints derived from the hosts.
	APIURL  string `koanf:"api_url" validate:"omitempty,http_url"`
	AuthURL string `koanf:"auth_url" validate:"omitempty,http_url"`
}

type TandoorConf struct {
	BaseURL     string `koanf:"base_url" validate:"omitempty,http_url"`
	APIToken    string `koanf:"api_token"`
	Concurrency int    `koanf:"concurrency" validate:"gte=1,lte=32"`
}

type CallbackConf struct {
	Addr    string        `koanf:"addr" validate:"ip_port"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

type JanitorConf struct {
	Interval time.Duration `koanf:"interval" validate:"gt=0"`
}

// DefaultAppConfig holds the built-in defaults.
var DefaultAppConfig = Config{
	LogLevel:    slog.LevelInfo,
	LogFormat:   "text",
	DataDir:     "data",
	UserID:      "default",
	HTTPTimeout: 30 * time.Second,
	MaxInput:    1 << 20,
	OAuth: OAuthConfig{
		PendingTTL:   domain.DefaultPendingTTL,
		AccessMaxAge: domain.DefaultAccessMaxAge,
	},
	FatSecret: FatSecretConf{
		APIHost:  "platform.fatsecret.com",
		AuthHost: "authentication.fatsecret.com",
	},
	Tandoor: TandoorConf{
		Concurrency: 4,
	},
	Callback: CallbackConf{
		Addr:    "127.0.0.1:8765",
		Timeout: 5 * time.Minute,
	},
	Janitor: JanitorConf{
		Interval: time.Minute,
	},
}

// Sources selects the optional layers above defaults.
type Sources struct {
	// File is a TOML file path. Empty falls back to $MEALPLANNER_CONFIG.
	File string
	// Flags are already-set CLI flag values keyed by config path.
	Flags map[string]any
	// Environ replaces os.Environ. Used by tests.
	Environ func() []string
}

var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DefaultAppConfig, "koanf"), nil)
}

var envLoader = func(k *koanf.Koanf) error {
	return loadEnv(k, nil)
}

var registerValidators = func(v *validator.Validate) error {
	if err := v.RegisterValidation("ip_port", validIPPort); err != nil {
		return err
	}
	return v.RegisterValidation("safepath", validSafePath)
}

// Load reads defaults and the process environment.
func Load() (*Config, error) {
	return LoadWith(Sources{})
}

// LoadWith layers defaults, the TOML file, the environment and flags.
func LoadWith(src Sources) (*Config, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	path := src.File
	if path == "" {
		path = lookupEnv(src.Environ, EnvConfigFile)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	var err error
	if src.Environ != nil {
		err = loadEnv(k, src.Environ)
	} else {
		err = envLoader(k)
	}
	if err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	if len(src.Flags) > 0 {
		if err := k.Load(confmap.Provider(src.Flags, "."), nil); err != nil {
			return nil, fmt.Errorf("loading CLI flags: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				StringToLogLevel(),
				StringToByteSize(),
				mapstructure.StringToTimeDurationHookFunc(),
			),
			Result:           &cfg,
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("koanf")
	})
	if err := registerValidators(v); err != nil {
		return nil, fmt.Errorf("registering validators: %w", err)
	}
	if err := v.Struct(&cfg); err != nil {
		return nil, validationError(err)
	}
	if cfg.OAuth.PendingTTL >= cfg.OAuth.AccessMaxAge {
		return nil, errors.New("pending_ttl must be less than access_max_age")
	}
	return &cfg, nil
}

func loadEnv(k *koanf.Koanf, environ func() []string) error {
	return k.Load(env.Provider(".", env.Opt{
		TransformFunc: transformEnv,
		EnvironFunc:   environ,
	}), nil)
}

// transformEnv maps legacy names and MEALPLANNER_* variables to config keys.
// Everything else is dropped.
func transformEnv(key, value string) (string, any) {
	if mapped, ok := legacyEnv[key]; ok {
		return mapped, value
	}
	if !strings.HasPrefix(key, EnvPrefix) || key == EnvConfigFile {
		return "", nil
	}
	stripped := strings.TrimPrefix(key, EnvPrefix)
	return strings.ToLower(strings.ReplaceAll(stripped, "__", ".")), value
}

func lookupEnv(environ func() []string, name string) string {
	if environ == nil {
		return os.Getenv(name)
	}
	for _, kv := range environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k == name {
			return v
		}
	}
	return ""
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if i := strings.IndexByte(ns, '.'); i >= 0 {
			ns = ns[i+1:]
		}
		msgs = append(msgs, fmt.Sprintf("%s: invalid value %q (%s)", ns, fmt.Sprint(fe.Value()), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// SQLiteDSN returns the go-sqlite3 DSN for the token and metrics database.
// DatabasePath, when set, overrides DataDir.
func (c *Config) SQLiteDSN() string {
	path := c.DatabasePath
	if path == "" {
		path = filepath.Join(c.DataDir, dbName)
	}
	return "file:" + path + "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_synchronous=FULL"
}

// DatabaseDir is the directory that must exist before the database opens.
func (c *Config) DatabaseDir() string {
	if c.DatabasePath != "" {
		return filepath.Dir(c.DatabasePath)
	}
	return c.DataDir
}

// validIPPort accepts "ip:port" or ":port" with a literal IP and a port in
// 1..65535. Hostnames are rejected.
func validIPPort(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" || strings.ContainsAny(s, " \t") {
		return false
	}
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return false
	}
	if host != "" && net.ParseIP(host) == nil {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// validSafePath rejects empty paths, the filesystem root, the current
// directory and anything with a ".." element.
func validSafePath(fl validator.FieldLevel) bool {
	p := fl.Field().String()
	if strings.TrimSpace(p) == "" {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(p), "/") {
		if part == ".." {
			return false
		}
	}
	clean := filepath.Clean(p)
	return clean != "." && clean != string(filepath.Separator)
}

// ByteSize is a size in bytes that decodes from "128KiB"-style strings.
type ByteSize int64

// ParseSize converts a human-friendly size string into a byte count.
// Accepts plain integers (bytes) or IEC/human suffixes: KiB/MiB/GiB (case-insensitive) or K/M/G.
func ParseSize(s string) (int64, error) {
	orig := s
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}
	upper := strings.ToUpper(s)
	units := []struct {
		suffix string
		mult   int64
	}{
		{"KIB", 1 << 10}, {"MIB", 1 << 20}, {"GIB", 1 << 30},
		{"K", 1 << 10}, {"M", 1 << 20}, {"G", 1 << 30},
	}
	mult := int64(1)
	for _, u := range units {
		if strings.HasSuffix(upper, u.suffix) {
			upper = strings.TrimSpace(strings.TrimSuffix(upper, u.suffix))
			mult = u.mult
			break
		}
	}
	if upper == "" {
		return 0, fmt.Errorf("parse size %q: missing number", orig)
	}
	n, err := strconv.ParseInt(upper, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse size %q: %w", orig, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("parse size %q: negative not allowed", orig)
	}
	return n * mult, nil
}
