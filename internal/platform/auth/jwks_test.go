package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func rsaPublicKeyToJWK(privateKey *rsa.PrivateKey, kid string) JWKSKey {
	pub := &privateKey.PublicKey
	return JWKSKey{
		Kty: "RSA",
		Kid: kid,
		Use: "sig",
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

func generateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}
	return key
}

func jwksServer(keys func() []JWKSKey, hits *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(JWKSResponse{Keys: keys()})
	}))
}

func TestJWKSCache_FetchAndCache(t *testing.T) {
	key := generateKey(t)
	var hits int32
	server := jwksServer(func() []JWKSKey { return []JWKSKey{rsaPublicKeyToJWK(key, "k1")} }, &hits)
	defer server.Close()

	cache := NewJWKSCache(server.URL, 5*time.Minute)
	got, err := cache.GetKey("k1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.N.Cmp(key.PublicKey.N) != 0 || got.E != key.PublicKey.E {
		t.Error("fetched key does not match")
	}
	if _, err := cache.GetKey("k1"); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("expected a single fetch, got %d", hits)
	}
}

func TestJWKSCache_KeyRotation(t *testing.T) {
	key1, key2 := generateKey(t), generateKey(t)
	var rotated atomic.Bool
	server := jwksServer(func() []JWKSKey {
		if rotated.Load() {
			return []JWKSKey{rsaPublicKeyToJWK(key2, "k2")}
		}
		return []JWKSKey{rsaPublicKeyToJWK(key1, "k1")}
	}, nil)
	defer server.Close()

	cache := NewJWKSCache(server.URL, 5*time.Minute)
	if _, err := cache.GetKey("k1"); err != nil {
		t.Fatal(err)
	}
	rotated.Store(true)
	got, err := cache.GetKey("k2")
	if err != nil {
		t.Fatalf("unknown kid should trigger a refetch: %v", err)
	}
	if got.N.Cmp(key2.PublicKey.N) != 0 {
		t.Error("expected rotated key")
	}
}

func TestJWKSCache_Errors(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	if _, err := NewJWKSCache(failing.URL, time.Minute).GetKey("k"); err == nil {
		t.Error("expected error for failing endpoint")
	}
	if _, err := NewJWKSCache("", time.Minute).GetKey("k"); err == nil {
		t.Error("expected error without JWKS URL")
	}

	server := jwksServer(func() []JWKSKey { return nil }, nil)
	defer server.Close()
	if _, err := NewJWKSCache(server.URL, time.Minute).GetKey("missing"); err == nil {
		t.Error("expected error for unknown kid")
	}
}

func TestParseRSAPublicKey_Invalid(t *testing.T) {
	if _, err := parseRSAPublicKey(JWKSKey{N: "!!!", E: "AQAB"}); err == nil {
		t.Error("expected modulus error")
	}
	if _, err := parseRSAPublicKey(JWKSKey{N: "AQAB", E: "!!!"}); err == nil {
		t.Error("expected exponent error")
	}
}

func TestJWTMiddleware_RS256ViaOIDCDiscovery(t *testing.T) {
	key := generateKey(t)
	keys := jwksServer(func() []JWKSKey { return []JWKSKey{rsaPublicKeyToJWK(key, "rs-1")} }, nil)
	defer keys.Close()

	discovery := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"issuer": "idp", "jwks_uri": keys.URL})
	}))
	defer discovery.Close()

	claims := validClaims("rsa-user")
	claims.Issuer = discovery.URL
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "rs-1"
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	uid, err := runMiddleware(t, JWTMiddleware(JWTConfig{Issuer: discovery.URL}), req, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uid != "rsa-user" {
		t.Errorf("expected rsa-user, got %q", uid)
	}
}

func TestOIDCProvider_Errors(t *testing.T) {
	notFound := httptest.NewServer(http.NotFoundHandler())
	defer notFound.Close()
	if _, err := NewOIDCProvider(notFound.URL); err == nil {
		t.Error("expected error for missing discovery document")
	}

	noJWKS := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"issuer": "idp"})
	}))
	defer noJWKS.Close()
	if _, err := NewOIDCProvider(noJWKS.URL); err == nil {
		t.Error("expected error for missing jwks_uri")
	}
}
