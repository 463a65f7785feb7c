// Package config loads process configuration from DASHQUERY_* environment
// variables. Credentials may be secret references resolved through the
// secret package.
package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jonwraymond/dashquery/observe"
	"github.com/jonwraymond/dashquery/secret"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config is the process configuration.
type Config struct {
	ListenAddr string
	Version    string

	// LocalDev accepts unauthenticated requests as the local developer.
	LocalDev bool

	API     APIConfig
	Query   QueryConfig
	Docs    DocsConfig
	Auth    AuthConfig
	Redis   RedisConfig
	Observe observe.Config
	Secrets SecretsConfig
}

// APIConfig configures the upstream dashboard API client.
type APIConfig struct {
	BaseURL         string
	Token           string
	CurrentUserPath string
	RateLimit       float64
	Burst           int
	MaxFailures     int
}

// QueryConfig configures the query client.
type QueryConfig struct {
	LoadTimeout        time.Duration
	MaxConcurrentLoads int
	DocsStaleAfter     time.Duration
	RetryOnRead        bool
}

// DocsConfig selects where the built-in API server reads documentation:
// S3 when Bucket is set, else Dir.
type DocsConfig struct {
	Dir       string
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// AuthConfig configures request authentication.
type AuthConfig struct {
	JWKSURL        string
	JWTSecret      string
	Issuer         string
	Audience       string
	TenantClaim    string
	AllowAnonymous bool
}

// Enabled reports whether token validation is configured.
func (a AuthConfig) Enabled() bool {
	return a.JWKSURL != "" || a.JWTSecret != ""
}

// RedisConfig configures the cross-process invalidation bus. Empty Addr
// disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// SecretsConfig configures secret providers.
type SecretsConfig struct {
	// Dir enables secretref:file:<name> lookups below it.
	Dir string
}

// Load reads the environment, resolves secret references and validates
// the result.
func Load(ctx context.Context) (Config, error) {
	return load(ctx, os.LookupEnv)
}

func load(ctx context.Context, lookup func(string) (string, bool)) (Config, error) {
	e := env{lookup: lookup}
	cfg := Config{
		ListenAddr: e.str("DASHQUERY_LISTEN_ADDR", ":8000"),
		Version:    e.str("DASHQUERY_VERSION", "dev"),
		LocalDev:   e.bool("DASHQUERY_LOCAL_DEV", false),
		API: APIConfig{
			BaseURL:         e.str("DASHQUERY_API_BASE_URL", "http://localhost:8000"),
			Token:           e.str("DASHQUERY_API_TOKEN", ""),
			CurrentUserPath: e.str("DASHQUERY_CURRENT_USER_PATH", "/api/current-user"),
			RateLimit:       e.float("DASHQUERY_API_RATE_LIMIT", 50),
			Burst:           e.int("DASHQUERY_API_BURST", 20),
			MaxFailures:     e.int("DASHQUERY_API_MAX_FAILURES", 5),
		},
		Query: QueryConfig{
			LoadTimeout:        e.duration("DASHQUERY_LOAD_TIMEOUT", 30*time.Second),
			MaxConcurrentLoads: e.int("DASHQUERY_MAX_CONCURRENT_LOADS", 0),
			DocsStaleAfter:     e.duration("DASHQUERY_DOCS_STALE_AFTER", 5*time.Minute),
			RetryOnRead:        e.bool("DASHQUERY_RETRY_ON_READ", false),
		},
		Docs: DocsConfig{
			Dir:       e.str("DASHQUERY_DOCS_DIR", "docs/projects"),
			Bucket:    e.str("DASHQUERY_DOCS_S3_BUCKET", ""),
			Prefix:    e.str("DASHQUERY_DOCS_S3_PREFIX", "docs/projects/"),
			Region:    e.str("DASHQUERY_DOCS_S3_REGION", ""),
			Endpoint:  e.str("DASHQUERY_DOCS_S3_ENDPOINT", ""),
			AccessKey: e.str("DASHQUERY_DOCS_S3_ACCESS_KEY", ""),
			SecretKey: e.str("DASHQUERY_DOCS_S3_SECRET_KEY", ""),
		},
		Auth: AuthConfig{
			JWKSURL:        e.str("DASHQUERY_JWKS_URL", ""),
			JWTSecret:      e.str("DASHQUERY_JWT_SECRET", ""),
			Issuer:         e.str("DASHQUERY_JWT_ISSUER", ""),
			Audience:       e.str("DASHQUERY_JWT_AUDIENCE", ""),
			TenantClaim:    e.str("DASHQUERY_JWT_TENANT_CLAIM", ""),
			AllowAnonymous: e.bool("DASHQUERY_ALLOW_ANONYMOUS", false),
		},
		Redis: RedisConfig{
			Addr:     e.str("DASHQUERY_REDIS_ADDR", ""),
			Password: e.str("DASHQUERY_REDIS_PASSWORD", ""),
			DB:       e.int("DASHQUERY_REDIS_DB", 0),
			Channel:  e.str("DASHQUERY_REDIS_CHANNEL", "dashquery:invalidate"),
		},
		Observe: observe.Config{
			ServiceName: e.str("DASHQUERY_SERVICE_NAME", "dashquery"),
			Tracing: observe.TracingConfig{
				Enabled:   e.bool("DASHQUERY_TRACING_ENABLED", false),
				Exporter:  e.str("DASHQUERY_TRACING_EXPORTER", "otlp"),
				SamplePct: e.float("DASHQUERY_TRACING_SAMPLE_PCT", 1.0),
				Endpoint:  e.str("DASHQUERY_TRACING_ENDPOINT", ""),
				Insecure:  e.bool("DASHQUERY_TRACING_INSECURE", false),
			},
			Metrics: observe.MetricsConfig{
				Enabled:  e.bool("DASHQUERY_METRICS_ENABLED", true),
				Exporter: e.str("DASHQUERY_METRICS_EXPORTER", "prometheus"),
				Endpoint: e.str("DASHQUERY_METRICS_ENDPOINT", ""),
				Insecure: e.bool("DASHQUERY_METRICS_INSECURE", false),
			},
			Logging: observe.LoggingConfig{
				Enabled: true,
				Level:   e.str("DASHQUERY_LOG_LEVEL", "info"),
			},
		},
		Secrets: SecretsConfig{
			Dir: e.str("DASHQUERY_SECRETS_DIR", ""),
		},
	}
	cfg.Observe.Version = cfg.Version

	if len(e.errs) > 0 {
		return cfg, errors.Join(e.errs...)
	}
	if err := cfg.resolveSecrets(ctx); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Resolver builds the secret resolver for this configuration.
func (c Config) Resolver() (*secret.Resolver, error) {
	r := secret.NewResolver(true, secret.NewEnvProvider())
	if c.Secrets.Dir != "" {
		fp, err := secret.NewFileProvider(c.Secrets.Dir)
		if err != nil {
			return nil, err
		}
		r.Register(fp)
	}
	return r, nil
}

func (c *Config) resolveSecrets(ctx context.Context) error {
	r, err := c.Resolver()
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	fields := []struct {
		name  string
		value *string
	}{
		{"DASHQUERY_API_TOKEN", &c.API.Token},
		{"DASHQUERY_JWT_SECRET", &c.Auth.JWTSecret},
		{"DASHQUERY_REDIS_PASSWORD", &c.Redis.Password},
		{"DASHQUERY_DOCS_S3_SECRET_KEY", &c.Docs.SecretKey},
	}
	for _, f := range fields {
		if *f.value == "" {
			continue
		}
		v, err := r.ResolveValue(ctx, *f.value)
		if err != nil {
			return fmt.Errorf("config: resolve %s: %w", f.name, err)
		}
		*f.value = v
	}
	return nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error
	if c.ListenAddr == "" {
		errs = append(errs, fmt.Errorf("%w: DASHQUERY_LISTEN_ADDR is required", ErrInvalid))
	}
	if u, err := url.Parse(c.API.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("%w: DASHQUERY_API_BASE_URL %q is not an http(s) URL", ErrInvalid, c.API.BaseURL))
	}
	if !strings.HasPrefix(c.API.CurrentUserPath, "/") {
		errs = append(errs, fmt.Errorf("%w: DASHQUERY_CURRENT_USER_PATH must start with /", ErrInvalid))
	}
	if c.Query.LoadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: DASHQUERY_LOAD_TIMEOUT must be positive", ErrInvalid))
	}
	if c.Query.MaxConcurrentLoads < 0 {
		errs = append(errs, fmt.Errorf("%w: DASHQUERY_MAX_CONCURRENT_LOADS must not be negative", ErrInvalid))
	}
	if c.Docs.Bucket != "" && (c.Docs.AccessKey == "") != (c.Docs.SecretKey == "") {
		errs = append(errs, fmt.Errorf("%w: S3 access key and secret key must be set together", ErrInvalid))
	}
	if c.Auth.JWKSURL != "" && c.Auth.JWTSecret != "" {
		errs = append(errs, fmt.Errorf("%w: set either DASHQUERY_JWKS_URL or DASHQUERY_JWT_SECRET", ErrInvalid))
	}
	if err := c.Observe.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalid, err))
	}
	return errors.Join(errs...)
}

type env struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *env) str(key, def string) string {
	if v, ok := e.lookup(key); ok && v != "" {
		return v
	}
	return def
}

func (e *env) int(key string, def int) int {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalid, key, v))
		return def
	}
	return n
}

func (e *env) float(key string, def float64) float64 {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%w: %s=%q is not a number", ErrInvalid, key, v))
		return def
	}
	return f
}

func (e *env) bool(key string, def bool) bool {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalid, key, v))
		return def
	}
	return b
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%w: %s=%q is not a duration", ErrInvalid, key, v))
		return def
	}
	return d
}
