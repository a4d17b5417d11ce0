package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func jwksServer(t *testing.T, kid string, pub *rsa.PublicKey) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		time.Sleep(50 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": kid,
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func TestKeySet_FetchesOnceForConcurrentMisses(t *testing.T) {
	priv := newRSAKey(t)
	srv, hits := jwksServer(t, "k1", &priv.PublicKey)
	ks := NewKeySet(srv.URL, time.Minute)

	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := ks.Key(context.Background(), "k1"); err != nil {
				t.Errorf("Key: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := atomic.LoadInt32(hits); got < 1 || got > 2 {
		t.Errorf("expected one shared fetch, got %d", got)
	}
	key, err := ks.Key(context.Background(), "k1")
	if err != nil {
		t.Fatal(err)
	}
	if key.N.Cmp(priv.PublicKey.N) != 0 {
		t.Error("returned key does not match published key")
	}
}

func TestKeySet_UnknownKidIsThrottled(t *testing.T) {
	priv := newRSAKey(t)
	srv, hits := jwksServer(t, "k1", &priv.PublicKey)
	ks := NewKeySet(srv.URL, time.Minute)

	if _, err := ks.Key(context.Background(), "k1"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if _, err := ks.Key(context.Background(), "rotated"); err == nil {
			t.Fatal("expected error for unknown kid")
		}
	}
	if got := atomic.LoadInt32(hits); got != 1 {
		t.Errorf("expected a single fetch inside the refresh window, got %d", got)
	}
}

func TestKeySet_NoURL(t *testing.T) {
	ks := NewKeySet("", time.Minute)
	ks.minRefresh = 0
	if _, err := ks.Key(context.Background(), "k1"); err == nil {
		t.Error("expected error without a JWKS url")
	}
}

func TestJWTMiddleware_RS256FromJWKS(t *testing.T) {
	priv := newRSAKey(t)
	srv, _ := jwksServer(t, "k1", &priv.PublicKey)

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "nurse-7",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		TenantID: "acme",
		Roles:    []string{RoleNurse},
	})
	token.Header["kid"] = "k1"
	signed, err := token.SignedString(priv)
	if err != nil {
		t.Fatal(err)
	}

	c, err := runMiddleware(t, JWTMiddleware(JWTConfig{JWKSURL: srv.URL}), "Bearer "+signed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := UserIDFromContext(c.Request().Context()); got != "nurse-7" {
		t.Errorf("expected user nurse-7, got %q", got)
	}
}
