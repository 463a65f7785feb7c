package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// jwksServer serves a mutable key set and counts fetches.
type jwksServer struct {
	*httptest.Server
	mu      sync.Mutex
	keys    map[string]*rsa.PublicKey
	failing bool
	fetches atomic.Int32
}

func newJWKSServer(t *testing.T) *jwksServer {
	t.Helper()
	s := &jwksServer{keys: make(map[string]*rsa.PublicKey)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.fetches.Add(1)
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.failing {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		var resp jwksResponse
		for kid, key := range s.keys {
			resp.Keys = append(resp.Keys, jwkKey{
				Kty: "RSA",
				Kid: kid,
				Use: "sig",
				Alg: "RS256",
				N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *jwksServer) publish(kid string, key *rsa.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[kid] = key
}

func (s *jwksServer) setFailing(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = v
}

func newRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	return key
}

func signRS256(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	s, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return s
}

func TestJWKSKeyProvider_GetKey(t *testing.T) {
	srv := newJWKSServer(t)
	priv := newRSAKey(t)
	srv.publish("k1", &priv.PublicKey)

	p := NewJWKSKeyProvider(JWKSConfig{URL: srv.URL})
	ctx := context.Background()

	key, err := p.GetKey(ctx, "k1")
	if err != nil {
		t.Fatalf("GetKey() error = %v", err)
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok || pub.N.Cmp(priv.N) != 0 || pub.E != priv.E {
		t.Fatalf("GetKey() returned a different key")
	}

	if _, err := p.GetKey(ctx, ""); err != nil {
		t.Errorf("GetKey(\"\") error = %v", err)
	}
	if _, err := p.GetKey(ctx, "k1"); err != nil {
		t.Errorf("second GetKey() error = %v", err)
	}
	if n := srv.fetches.Load(); n != 1 {
		t.Errorf("fetches = %d, want 1 (cached)", n)
	}
}

func TestJWKSKeyProvider_UnknownKeyThrottled(t *testing.T) {
	srv := newJWKSServer(t)
	srv.publish("k1", &newRSAKey(t).PublicKey)

	p := NewJWKSKeyProvider(JWKSConfig{URL: srv.URL, MinRefreshInterval: time.Hour})
	if _, err := p.GetKey(context.Background(), "missing"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("error = %v, want ErrKeyNotFound", err)
	}
	if n := srv.fetches.Load(); n != 1 {
		t.Errorf("fetches = %d, want 1", n)
	}
}

func TestJWKSKeyProvider_Rotation(t *testing.T) {
	srv := newJWKSServer(t)
	srv.publish("old", &newRSAKey(t).PublicKey)

	p := NewJWKSKeyProvider(JWKSConfig{URL: srv.URL, MinRefreshInterval: time.Nanosecond})
	ctx := context.Background()
	if _, err := p.GetKey(ctx, "old"); err != nil {
		t.Fatal(err)
	}

	srv.publish("new", &newRSAKey(t).PublicKey)
	time.Sleep(time.Millisecond)

	if _, err := p.GetKey(ctx, "new"); err != nil {
		t.Fatalf("GetKey(new) error = %v", err)
	}
	if n := srv.fetches.Load(); n != 2 {
		t.Errorf("fetches = %d, want 2", n)
	}
}

func TestJWKSKeyProvider_FetchFailureRetries(t *testing.T) {
	srv := newJWKSServer(t)
	srv.publish("k1", &newRSAKey(t).PublicKey)
	srv.setFailing(true)

	p := NewJWKSKeyProvider(JWKSConfig{URL: srv.URL})
	ctx := context.Background()

	if _, err := p.GetKey(ctx, "k1"); !errors.Is(err, ErrJWKSFetch) {
		t.Fatalf("error = %v, want ErrJWKSFetch", err)
	}

	srv.setFailing(false)
	if _, err := p.GetKey(ctx, "k1"); err != nil {
		t.Fatalf("GetKey() after recovery error = %v", err)
	}
}

func TestJWTAuthenticator_WithJWKS(t *testing.T) {
	srv := newJWKSServer(t)
	priv := newRSAKey(t)
	srv.publish("k1", &priv.PublicKey)

	auth := NewJWTAuthenticator(JWTConfig{}, NewJWKSKeyProvider(JWKSConfig{URL: srv.URL}))
	token := signRS256(t, priv, "k1", jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(time.Hour).Unix()})

	result, err := auth.Authenticate(context.Background(), bearerRequest(token))
	if err != nil {
		t.Fatal(err)
	}
	if !result.Authenticated || result.Identity.Principal != "user-1" {
		t.Errorf("result = %+v", result)
	}
}

func TestParseRSAPublicKey_Errors(t *testing.T) {
	tests := []struct {
		name string
		jwk  jwkKey
	}{
		{name: "missing n", jwk: jwkKey{E: "AQAB"}},
		{name: "missing e", jwk: jwkKey{N: "AQAB"}},
		{name: "bad n", jwk: jwkKey{N: "!!", E: "AQAB"}},
		{name: "bad e", jwk: jwkKey{N: "AQAB", E: "!!"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseRSAPublicKey(tt.jwk); err == nil {
				t.Error("expected error")
			}
		})
	}
}
