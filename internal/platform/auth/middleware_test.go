package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func createTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func runMiddleware(t *testing.T, mw echo.MiddlewareFunc, header string) (echo.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	var seen echo.Context
	err := mw(func(c echo.Context) error {
		seen = c
		return c.String(http.StatusOK, "ok")
	})(c)
	return seen, err
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	_, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "")
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", httpErr.Code)
	}
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), tt.header)
			httpErr, ok := err.(*echo.HTTPError)
			if !ok || httpErr.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %v", err)
			}
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "carer-42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		TenantID: "north",
		Roles:    []string{RoleCarer},
	}
	token := createTestToken(t, claims, testSigningKey)

	c, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := UserIDFromContext(c.Request().Context()); got != "carer-42" {
		t.Errorf("expected user carer-42, got %q", got)
	}
	if got := c.Get(EchoTenantClaimKey); got != "north" {
		t.Errorf("expected tenant north, got %v", got)
	}
	roles := RolesFromContext(c.Request().Context())
	if len(roles) != 1 || roles[0] != RoleCarer {
		t.Errorf("unexpected roles %v", roles)
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "carer-42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	token := createTestToken(t, claims, testSigningKey)

	_, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+token)
	if err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestJWTMiddleware_WrongKey(t *testing.T) {
	token := createTestToken(t, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "x"}}, []byte("another-key"))
	_, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+token)
	if err == nil {
		t.Fatal("expected error for token signed with a different key")
	}
}

func TestJWTMiddleware_IssuerMismatch(t *testing.T) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "x", Issuer: "https://other"}}
	token := createTestToken(t, claims, testSigningKey)
	cfg := JWTConfig{SigningKey: testSigningKey, Issuer: "https://auth.carehub.test"}
	if _, err := runMiddleware(t, JWTMiddleware(cfg), "Bearer "+token); err == nil {
		t.Fatal("expected error for issuer mismatch")
	}
}

func TestDevAuthMiddleware_Defaults(t *testing.T) {
	c, err := runMiddleware(t, DevAuthMiddleware(nil), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, err := PrincipalFrom(c)
	if err != nil {
		t.Fatalf("PrincipalFrom: %v", err)
	}
	if p.UserID != "dev-user" || p.TenantID != "default" || !p.IsAdmin() {
		t.Errorf("unexpected dev principal %+v", p)
	}
}

func TestDevAuthMiddleware_ValidatesProvidedToken(t *testing.T) {
	_, err := runMiddleware(t, DevAuthMiddleware(testSigningKey), "Bearer not-a-jwt")
	if err == nil {
		t.Fatal("expected provided token to be validated")
	}
}
