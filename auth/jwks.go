package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/jonwraymond/dashquery/cache"
	"github.com/jonwraymond/dashquery/query"
)

// JWKSConfig configures the JWKS key provider.
type JWKSConfig struct {
	// URL is the JWKS endpoint URL.
	URL string

	// CacheTTL is how long fetched keys stay fresh. Older keys are still
	// served while a background refresh runs.
	// Default: 1 hour
	CacheTTL time.Duration

	// MinRefreshInterval throttles refreshes forced by an unknown key ID.
	// Default: 1 minute
	MinRefreshInterval time.Duration

	// HTTPClient is the HTTP client to use for requests.
	// If nil, a client with a 30s timeout is used.
	HTTPClient *http.Client

	// Queries is the cache the key set is stored in. If nil a private
	// client is created.
	Queries *query.Client
}

type keySet map[string]*rsa.PublicKey

// JWKSKeyProvider retrieves signing keys from a JWKS endpoint.
//
// The key set is a query like any other: concurrent validations share one
// fetch, stale keys keep validating during a refresh, and a failed refresh
// keeps the previous keys.
type JWKSKeyProvider struct {
	config  JWKSConfig
	queries *query.Client
	key     cache.Key
}

// NewJWKSKeyProvider creates a new JWKS key provider.
func NewJWKSKeyProvider(config JWKSConfig) *JWKSKeyProvider {
	if config.CacheTTL <= 0 {
		config.CacheTTL = time.Hour
	}
	if config.MinRefreshInterval <= 0 {
		config.MinRefreshInterval = time.Minute
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	queries := config.Queries
	if queries == nil {
		queries = query.NewClient()
	}

	return &JWKSKeyProvider{
		config:  config,
		queries: queries,
		key:     cache.MustKey("auth", "jwks", config.URL),
	}
}

// GetKey returns the key for the given key ID.
// If keyID is empty, any key of the set is returned.
func (p *JWKSKeyProvider) GetKey(ctx context.Context, keyID string) (any, error) {
	keys, err := p.read(ctx)
	if err != nil {
		return nil, err
	}
	if key := lookupKey(keys, keyID); key != nil {
		return key, nil
	}

	// An unknown key ID usually means the issuer rotated keys.
	entry, ok := p.queries.Peek(p.key)
	if !ok || entry.Status != cache.StatusSuccess || time.Since(entry.FetchedAt) < p.config.MinRefreshInterval {
		return nil, ErrKeyNotFound
	}
	p.queries.Invalidate(p.key)
	if keys, err = p.read(ctx); err != nil {
		return nil, err
	}
	if key := lookupKey(keys, keyID); key != nil {
		return key, nil
	}
	return nil, ErrKeyNotFound
}

func (p *JWKSKeyProvider) read(ctx context.Context) (keySet, error) {
	keys, err := query.Fetch(ctx, p.queries, p.key, p.fetch,
		query.WithStaleAfter(p.config.CacheTTL),
		query.WithKind("auth.jwks"),
	)
	if err != nil {
		if _, ok := query.IsLoadError(err); ok {
			p.queries.Reset(p.key)
		}
		return nil, fmt.Errorf("%w: %w", ErrJWKSFetch, err)
	}
	return keys, nil
}

func lookupKey(keys keySet, keyID string) *rsa.PublicKey {
	if keyID == "" {
		for _, key := range keys {
			return key
		}
		return nil
	}
	return keys[keyID]
}

// fetch loads the key set from the JWKS endpoint.
func (p *JWKSKeyProvider) fetch(ctx context.Context) (keySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := p.config.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch JWKS: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var jwks jwksResponse
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, fmt.Errorf("decode JWKS: %w", err)
	}

	keys := make(keySet)
	for _, jwk := range jwks.Keys {
		if jwk.Kty != "RSA" {
			continue
		}
		pubKey, err := parseRSAPublicKey(jwk)
		if err != nil {
			continue
		}
		keys[jwk.Kid] = pubKey
	}
	if len(keys) == 0 {
		return nil, errors.New("JWKS contains no usable RSA keys")
	}
	return keys, nil
}

type jwksResponse struct {
	Keys []jwkKey `json:"keys"`
}

type jwkKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func parseRSAPublicKey(jwk jwkKey) (*rsa.PublicKey, error) {
	if jwk.N == "" {
		return nil, errors.New("missing n parameter")
	}
	if jwk.E == "" {
		return nil, errors.New("missing e parameter")
	}

	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("decode n: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("decode e: %w", err)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}

var _ KeyProvider = (*JWKSKeyProvider)(nil)
