// Command dashquery serves the dashboard API, the JSON dashboard views
// built on the query cache, health probes and Prometheus metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonwraymond/dashquery/api"
	"github.com/jonwraymond/dashquery/apiserver"
	"github.com/jonwraymond/dashquery/auth"
	"github.com/jonwraymond/dashquery/config"
	"github.com/jonwraymond/dashquery/dashboard"
	"github.com/jonwraymond/dashquery/health"
	"github.com/jonwraymond/dashquery/invalidate"
	"github.com/jonwraymond/dashquery/observe"
	"github.com/jonwraymond/dashquery/query"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "dashquery:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	obs, err := observe.NewObserver(ctx, cfg.Observe)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = obs.Shutdown(sctx)
	}()
	logger := obs.Logger()

	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		return err
	}
	queries, backend := newQueryClients(cfg.Query, mw)
	defer queries.Close()
	defer backend.Close()

	client, err := api.NewClient(api.Config{
		BaseURL:         cfg.API.BaseURL,
		Token:           cfg.API.Token,
		CurrentUserPath: cfg.API.CurrentUserPath,
		Guard:           api.NewGuard(cfg.API.RateLimit, cfg.API.Burst, cfg.API.MaxFailures),
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	docs, err := docsSource(ctx, cfg.Docs)
	if err != nil {
		return err
	}

	agg := health.NewAggregator()
	agg.Register("query", health.NewQueryChecker(queries))
	agg.Register("query.backend", health.NewQueryChecker(backend))
	agg.Register("upstream", health.NewUpstreamChecker(func(ctx context.Context) error {
		_, err := client.Version(ctx)
		return err
	}, client.Guard()))

	targets := invalidate.Targets{queries, backend}
	var publisher invalidate.Publisher = invalidate.Local{Target: targets}
	if cfg.Redis.Addr != "" {
		rc := invalidate.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer rc.Close()
		bus, err := invalidate.NewRedisBus(rc, targets, invalidate.Config{Channel: cfg.Redis.Channel, Logger: logger})
		if err != nil {
			return err
		}
		go func() {
			if err := bus.Run(ctx); err != nil {
				logger.Error(ctx, "invalidation bus stopped", observe.F("error", err))
			}
		}()
		publisher = bus
		agg.Register("redis", health.NewPingChecker("redis", bus.Ping))
	}

	protect := authMiddleware(cfg, backend, logger)

	mux := http.NewServeMux()
	health.RegisterHandlers(mux, agg, cfg.Version)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("/api/", protect(apiserver.NewHandler(apiserver.Config{
		Docs:            apiserver.NewCachedSource(docs, backend, cfg.Query.DocsStaleAfter),
		Version:         cfg.Version,
		CurrentUserPath: cfg.API.CurrentUserPath,
		LocalDev:        cfg.LocalDev,
		Logger:          logger,
	})))
	mux.Handle("/views/", protect(dashboard.NewHandler(queries, client, logger,
		dashboard.WithDocsStaleAfter(cfg.Query.DocsStaleAfter))))
	mux.Handle("/admin/invalidate", protect(invalidate.Handler(publisher)))

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Query.LoadTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "listening", observe.F("addr", cfg.ListenAddr), observe.F("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(sctx)
}

// newQueryClients builds the client the dashboard views read through and
// a backend client for the built-in API and the auth key set. The views
// reach the built-in API over HTTP, so a view load can wait on a backend
// load. The backend client has no load bulkhead, which keeps those nested
// loads from queueing behind the view loads holding every slot.
func newQueryClients(cfg config.QueryConfig, mw *observe.Middleware) (views, backend *query.Client) {
	backendCfg := cfg
	backendCfg.MaxConcurrentLoads = 0
	return newQueries(cfg, mw), newQueries(backendCfg, mw)
}

func newQueries(cfg config.QueryConfig, mw *observe.Middleware) *query.Client {
	opts := []query.Option{
		query.WithMiddleware(mw),
		query.WithLoadTimeout(cfg.LoadTimeout),
		query.WithMaxConcurrentLoads(cfg.MaxConcurrentLoads),
	}
	if cfg.RetryOnRead {
		opts = append(opts, query.WithRetryOnRead())
	}
	return query.NewClient(opts...)
}

// docsSource reads documentation from S3 when a bucket is configured and
// from the local directory otherwise.
func docsSource(ctx context.Context, cfg config.DocsConfig) (apiserver.Source, error) {
	if cfg.Bucket == "" {
		return apiserver.NewDirSource(cfg.Dir), nil
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.UsePathStyle = true
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return apiserver.NewS3Source(client, cfg.Bucket, cfg.Prefix), nil
}

// authMiddleware validates bearer and forwarded access tokens when a key
// source is configured. Without one, requests only carry their headers
// and resolve to the anonymous identity.
func authMiddleware(cfg config.Config, queries *query.Client, logger observe.Logger) func(http.Handler) http.Handler {
	if !cfg.Auth.Enabled() {
		return auth.WithAuthHeaders
	}

	var keys auth.KeyProvider
	if cfg.Auth.JWKSURL != "" {
		keys = auth.NewJWKSKeyProvider(auth.JWKSConfig{URL: cfg.Auth.JWKSURL, Queries: queries})
	} else {
		keys = auth.NewStaticKeyProvider([]byte(cfg.Auth.JWTSecret))
	}

	jwtConfig := auth.JWTConfig{
		Issuer:      cfg.Auth.Issuer,
		Audience:    cfg.Auth.Audience,
		TenantClaim: cfg.Auth.TenantClaim,
	}
	forwarded := jwtConfig
	forwarded.HeaderName = auth.ForwardedTokenHeader
	forwarded.RawToken = true

	return auth.Middleware(auth.MiddlewareConfig{
		Authenticator: auth.NewCompositeAuthenticator(
			auth.NewJWTAuthenticator(forwarded, keys),
			auth.NewJWTAuthenticator(jwtConfig, keys),
		),
		AllowAnonymous: cfg.Auth.AllowAnonymous || cfg.LocalDev,
		Logger:         logger,
	})
}
