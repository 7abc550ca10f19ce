package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func environ(kv ...string) func() []string {
	return func() []string { return kv }
}

func TestDefaultConfig(t *testing.T) {
	cfg, err := LoadWith(Sources{Environ: environ()})
	if err != nil {
		t.Fatalf("LoadWith() error: %v", err)
	}
	assert.EqualValues(t, DefaultAppConfig, *cfg)
}

func TestValidPaths(t *testing.T) {
	valid := []string{
		"data",
		"/var/lib/mealplanner",
		"./data",
		"relative/path/to/data",
		"nested/dir/structure",
	}
	for _, p := range valid {
		t.Setenv("MEALPLANNER_DATA_DIR", p)
		cfg, err := Load()
		if err != nil {
			t.Errorf("expected valid path %q, got error: %v", p, err)
			continue
		}
		if cfg.DataDir != p {
			t.Errorf("expected DataDir %q, got %q", p, cfg.DataDir)
		}
	}
}

func TestInvalidPaths(t *testing.T) {
	invalid := []string{
		"",
		".",
		"/",
		"//",
		"../data",
		"data/..",
		"data/../../../etc",
	}
	for _, p := range invalid {
		t.Setenv("MEALPLANNER_DATA_DIR", p)
		_, err := Load()
		if err == nil {
			t.Errorf("expected error for invalid path %q, got nil", p)
			continue
		}
		assert.Contains(t, err.Error(), "data_dir")
	}
}

func TestValidIPPort(t *testing.T) {
	type sample struct {
		Addr string `validate:"ip_port"`
	}

	v := validator.New()
	if err := v.RegisterValidation("ip_port", validIPPort); err != nil {
		t.Fatalf("register validation: %v", err)
	}

	tests := []struct {
		name  string
		addr  string
		valid bool
	}{
		{name: "empty", addr: "", valid: false},
		{name: "missing_port", addr: "127.0.0.1", valid: false},
		{name: "missing_port_after_colon", addr: "127.0.0.1:", valid: false},
		{name: "just_colon_port", addr: ":8765", valid: true},
		{name: "loopback_ipv4", addr: "127.0.0.1:8765", valid: true},
		{name: "any_ipv4_low_port", addr: "0.0.0.0:1", valid: true},
		{name: "ipv6_loopback", addr: "[::1]:8765", valid: true},
		{name: "unbracketed_ipv6", addr: "::1:8765", valid: false},
		{name: "hostname_not_ip", addr: "localhost:8765", valid: false},
		{name: "non_numeric_port", addr: "127.0.0.1:http", valid: false},
		{name: "port_zero", addr: "127.0.0.1:0", valid: false},
		{name: "port_max_valid", addr: "127.0.0.1:65535", valid: true},
		{name: "port_overflow", addr: "127.0.0.1:65536", valid: false},
		{name: "negative_port", addr: "127.0.0.1:-1", valid: false},
		{name: "leading_zero_port", addr: "127.0.0.1:00080", valid: true},
		{name: "trailing_space", addr: "127.0.0.1:8765 ", valid: false},
		{name: "embedded_space", addr: "127.0. 0.1:8765", valid: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Struct(&sample{Addr: tc.addr})
			if tc.valid && err != nil {
				t.Fatalf("expected valid, got error: %v", err)
			}
			if !tc.valid && err == nil {
				t.Fatalf("expected error, got nil")
			}
		})
	}
}

func TestSQLiteDSN(t *testing.T) {
	params := "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_synchronous=FULL"

	tests := []struct {
		name    string
		dataDir string
		dbPath  string
		want    string
	}{
		{name: "default_config", dataDir: DefaultAppConfig.DataDir, want: "data/mealplanner.db"},
		{name: "relative_trailing_slash", dataDir: "data/", want: "data/mealplanner.db"},
		{name: "absolute", dataDir: "/var/lib/mealplanner", want: "/var/lib/mealplanner/mealplanner.db"},
		{name: "explicit_path", dataDir: "data", dbPath: "/srv/tokens.db", want: "/srv/tokens.db"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{DataDir: tt.dataDir, DatabasePath: tt.dbPath}
			got := c.SQLiteDSN()
			assert.Equal(t, "file:"+tt.want+params, got)
			assert.Equal(t, 1, strings.Count(got, "?"), "expected exactly one '?' in DSN")
		})
	}

	c := &Config{DataDir: "data", DatabasePath: "/srv/db/tokens.db"}
	assert.Equal(t, "/srv/db", c.DatabaseDir())
	c.DatabasePath = ""
	assert.Equal(t, "data", c.DatabaseDir())
}

func TestLegacyAndNestedEnv(t *testing.T) {
	cfg, err := LoadWith(Sources{Environ: environ(
		"OAUTH_ENCRYPTION_KEY=abc",
		"FATSECRET_CONSUMER_KEY=ck",
		"FATSECRET_CONSUMER_SECRET=cs",
		"TANDOOR_BASE_URL=https://recipes.example.com",
		"TANDOOR_API_TOKEN=tda_x",
		"DATABASE_PATH=/tmp/mp.db",
		"MEALPLANNER_OAUTH__PENDING_TTL=30m",
		"MEALPLANNER_LOG_LEVEL=debug",
		"MEALPLANNER_MAX_INPUT=64KiB",
		"MEALPLANNER_TANDOOR__CONCURRENCY=8",
		"HOME=/root",
	)})
	require.NoError(t, err)
	assert.Equal(t, "abc", cfg.Encryption.Key)
	assert.Equal(t, "ck", cfg.FatSecret.ConsumerKey)
	assert.Equal(t, "cs", cfg.FatSecret.ConsumerSecret)
	assert.Equal(t, "https://recipes.example.com", cfg.Tandoor.BaseURL)
	assert.Equal(t, "tda_x", cfg.Tandoor.APIToken)
	assert.Equal(t, "/tmp/mp.db", cfg.DatabasePath)
	assert.Equal(t, 30*time.Minute, cfg.OAuth.PendingTTL)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, ByteSize(64<<10), cfg.MaxInput)
	assert.Equal(t, 8, cfg.Tandoor.Concurrency)
}

func TestFileThenEnvThenFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mealplanner.toml")
	toml := `
log_format = "json"
user_id = "from-file"

[callback]
addr = "127.0.0.1:9000"

[fatsecret]
consumer_key = "file-ck"
`
	require.NoError(t, os.WriteFile(path, []byte(toml), 0o600))

	cfg, err := LoadWith(Sources{
		Environ: environ(
			EnvConfigFile+"="+path,
			"MEALPLANNER_USER_ID=from-env",
		),
		Flags: map[string]any{"log_level": "warn"},
	})
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "from-env", cfg.UserID)
	assert.Equal(t, "127.0.0.1:9000", cfg.Callback.Addr)
	assert.Equal(t, "file-ck", cfg.FatSecret.ConsumerKey)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)

	_, err = LoadWith(Sources{File: filepath.Join(t.TempDir(), "missing.toml"), Environ: environ()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config file")
}

func TestInvalidValues(t *testing.T) {
	tests := map[string]string{
		"MEALPLANNER_LOG_FORMAT":           "xml",
		"MEALPLANNER_CALLBACK__ADDR":       "localhost:8765",
		"MEALPLANNER_TANDOOR__CONCURRENCY": "0",
		"TANDOOR_BASE_URL":                 "not a url",
		"MEALPLANNER_HTTP_TIMEOUT":         "0s",
	}
	for name, value := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadWith(Sources{Environ: environ(name + "=" + value)})
			assert.Error(t, err)
		})
	}

	_, err := LoadWith(Sources{Environ: environ("MEALPLANNER_MAX_INPUT=lots")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshaling config")
}

func TestLoadDefaultError(t *testing.T) {
	orig := defaultLoader
	t.Cleanup(func() { defaultLoader = orig })
	defaultLoader = func(k *koanf.Koanf) error {
		assert.NotNil(t, k)
		return assert.AnError
	}
	_, err := Load()
	if !errors.Is(err, assert.AnError) {
		t.Fatalf("expected assert.AnError, got: %v", err)
	}
}

func TestLoadEnvError(t *testing.T) {
	orig := envLoader
	t.Cleanup(func() { envLoader = orig })
	envLoader = func(k *koanf.Koanf) error {
		assert.NotNil(t, k)
		return assert.AnError
	}
	_, err := Load()
	if !errors.Is(err, assert.AnError) {
		t.Fatalf("expected assert.AnError, got: %v", err)
	}
}

func TestRegisterValidationFails(t *testing.T) {
	orig := registerValidators
	t.Cleanup(func() { registerValidators = orig })
	registerValidators = func(v *validator.Validate) error {
		assert.NotNil(t, v)
		return assert.AnError
	}
	_, err := Load()
	if !errors.Is(err, assert.AnError) {
		t.Fatalf("expected assert.AnError, got: %v", err)
	}
}

func TestBadTTL(t *testing.T) {
	_, err := LoadWith(Sources{Environ: environ(
		"MEALPLANNER_OAUTH__PENDING_TTL=48h",
		"MEALPLANNER_OAUTH__ACCESS_MAX_AGE=24h",
	)})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if err.Error() != "pending_ttl must be less than access_max_age" {
		t.Fatalf("expected ttl ordering error, got: %v", err)
	}
}

func TestNonPositivePendingTTL(t *testing.T) {
	for _, v := range []string{"0s", "-1m"} {
		_, err := LoadWith(Sources{Environ: environ("MEALPLANNER_OAUTH__PENDING_TTL=" + v)})
		if err == nil {
			t.Fatalf("pending_ttl %s: expected validation error", v)
		}
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		err  bool
	}{
		{"131072", 131072, false},
		{"128KiB", 131072, false},
		{"1mib", 1 << 20, false},
		{"2G", 2 << 30, false},
		{" 4 K ", 4096, false},
		{"", 0, true},
		{"KiB", 0, true},
		{"-1", 0, true},
		{"1.5M", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
