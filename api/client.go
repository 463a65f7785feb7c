package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonwraymond/dashquery/auth"
	"github.com/jonwraymond/dashquery/observe"
	"github.com/jonwraymond/dashquery/resilience"
)

// DefaultCurrentUserPath is the current-user endpoint.
const DefaultCurrentUserPath = "/api/current-user"

// maxErrorBody bounds how much of an error response is read for its detail.
const maxErrorBody = 64 << 10

// Config configures a Client.
type Config struct {
	// BaseURL is the backend origin, e.g. "http://localhost:8000". Required.
	BaseURL string

	// Token is the service credential sent when the request context
	// carries no caller token.
	Token string

	// CurrentUserPath overrides DefaultCurrentUserPath.
	CurrentUserPath string

	// HTTPClient is used for requests. Default: 30s timeout.
	HTTPClient *http.Client

	// Guard wraps every request. Default: DefaultGuard().
	Guard *resilience.Executor

	// Logger receives request diagnostics. Default: no-op.
	Logger observe.Logger
}

// Client calls the dashboard backend.
type Client struct {
	base        string
	token       string
	currentUser string
	http        *http.Client
	guard       *resilience.Executor
	logger      observe.Logger
}

// DefaultGuard returns the executor used when Config.Guard is nil: a
// circuit breaker that opens after five upstream failures and a rate
// limiter of 50 requests per second with a burst of 20.
func DefaultGuard() *resilience.Executor {
	return NewGuard(50, 20, 5)
}

// NewGuard returns an executor that waits for a rate-limit token and
// opens its circuit after maxFailures consecutive upstream failures, as
// classified by IsUpstreamFailure. The circuit probes again after 30s.
func NewGuard(rate float64, burst, maxFailures int) *resilience.Executor {
	return resilience.NewExecutor(
		resilience.WithRateLimiter(resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Rate:        rate,
			Burst:       burst,
			WaitOnLimit: true,
		})),
		resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			MaxFailures:  maxFailures,
			ResetTimeout: 30 * time.Second,
			IsFailure:    IsUpstreamFailure,
		})),
	)
}

// NewClient creates a client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("%w: base URL is required", ErrInvalidConfig)
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("%w: base URL: %w", ErrInvalidConfig, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: base URL scheme %q", ErrInvalidConfig, u.Scheme)
	}

	c := &Client{
		base:        base,
		token:       cfg.Token,
		currentUser: cfg.CurrentUserPath,
		http:        cfg.HTTPClient,
		guard:       cfg.Guard,
		logger:      cfg.Logger,
	}
	if c.currentUser == "" {
		c.currentUser = DefaultCurrentUserPath
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	if c.guard == nil {
		c.guard = DefaultGuard()
	}
	if c.logger == nil {
		c.logger = observe.NopLogger()
	}
	return c, nil
}

// ListProjectDocs returns the documented project slugs.
func (c *Client) ListProjectDocs(ctx context.Context) (DocList, error) {
	var out DocList
	if err := c.get(ctx, "/api/docs/projects", &out); err != nil {
		return DocList{}, err
	}
	if out.Slugs == nil {
		out.Slugs = []string{}
	}
	return out, nil
}

// GetProjectDoc returns the documentation for slug.
func (c *Client) GetProjectDoc(ctx context.Context, slug string) (Doc, error) {
	if strings.TrimSpace(slug) == "" {
		return Doc{}, ErrInvalidSlug
	}
	var out Doc
	if err := c.get(ctx, "/api/docs/projects/"+url.PathEscape(slug), &out); err != nil {
		return Doc{}, err
	}
	return out, nil
}

// CurrentUser returns the user the request is made for.
func (c *Client) CurrentUser(ctx context.Context) (User, error) {
	var out User
	if err := c.get(ctx, c.currentUser, &out); err != nil {
		return User{}, err
	}
	return out, nil
}

// Version returns the backend version.
func (c *Client) Version(ctx context.Context) (Version, error) {
	var out Version
	if err := c.get(ctx, "/api/version", &out); err != nil {
		return Version{}, err
	}
	return out, nil
}

// Guard returns the executor requests run through.
func (c *Client) Guard() *resilience.Executor {
	return c.guard
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.guard.Execute(ctx, func(ctx context.Context) error {
		return c.do(ctx, path, out)
	})
}

func (c *Client) do(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(ctx, req)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := abandoned(ctx, path); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: GET %s: %w", ErrTransport, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug(ctx, "api request",
		observe.F("path", path),
		observe.F("status", resp.StatusCode),
		observe.F("duration_ms", time.Since(start).Milliseconds()),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{
			Method:     http.MethodGet,
			Path:       path,
			StatusCode: resp.StatusCode,
			Detail:     readDetail(resp.Body),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctxErr := abandoned(ctx, path); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: GET %s: %w", ErrDecode, path, err)
	}
	return nil
}

// abandoned reports a request cut short by ctx. The caller's own
// cancellation is returned as is. An expired deadline means the upstream
// did not answer in time, which is a transport failure.
func abandoned(ctx context.Context, path string) error {
	err := ctx.Err()
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: GET %s: %w", ErrTransport, path, err)
}

// authorize forwards the caller's token when there is one, else the
// service token.
func (c *Client) authorize(ctx context.Context, req *http.Request) {
	if tok := auth.TokenFromContext(ctx); tok != "" {
		req.Header.Set(auth.ForwardedTokenHeader, tok)
		req.Header.Set("Authorization", "Bearer "+tok)
		return
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func readDetail(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}
	var body struct {
		Detail any `json:"detail"`
	}
	if json.Unmarshal(data, &body) == nil {
		if s, ok := body.Detail.(string); ok {
			return s
		}
	}
	return strings.TrimSpace(string(data))
}
