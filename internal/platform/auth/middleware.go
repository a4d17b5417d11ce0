package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserRolesKey contextKey = "user_roles"
)

// EchoTenantClaimKey is read by the tenant middleware to pick the schema.
const EchoTenantClaimKey = "jwt_tenant_id"

type Claims struct {
	jwt.RegisteredClaims
	TenantID string   `json:"tenant_id"`
	Roles    []string `json:"roles"`
}

type JWTConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string
	// SigningKey enables HS256 validation for local setups and tests.
	SigningKey []byte
}

const keySetTTL = 5 * time.Minute

// JWTMiddleware authenticates bearer tokens. HS256 with SigningKey is
// accepted for local setups; otherwise RS256 keys come from JWKSURL or
// the issuer's discovery document.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	var keyFunc jwt.Keyfunc
	if len(cfg.SigningKey) > 0 {
		keyFunc = func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %s", token.Method.Alg())
			}
			return cfg.SigningKey, nil
		}
	} else {
		jwksURL := cfg.JWKSURL
		if jwksURL == "" && cfg.Issuer != "" {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if u, err := DiscoverJWKS(ctx, cfg.Issuer); err == nil {
				jwksURL = u
			}
			cancel()
		}
		keys := NewKeySet(jwksURL, keySetTTL)
		keyFunc = func(token *jwt.Token) (interface{}, error) {
			kid, _ := token.Header["kid"].(string)
			if kid == "" {
				return nil, fmt.Errorf("token has no kid header")
			}
			return keys.Key(context.Background(), kid)
		}
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"RS256", "HS256"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, keyFunc, opts...)
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			setIdentity(c, claims.Subject, claims.TenantID, claims.Roles)
			return next(c)
		}
	}
}

// DevAuthMiddleware accepts unauthenticated requests as an admin of the
// default tenant. A bearer token, when present, is still parsed so that
// local testing with real tokens behaves like production.
func DevAuthMiddleware(signingKey []byte) echo.MiddlewareFunc {
	strict := JWTMiddleware(JWTConfig{SigningKey: signingKey})
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		validated := strict(next)
		return func(c echo.Context) error {
			if c.Request().Header.Get("Authorization") == "" || len(signingKey) == 0 {
				setIdentity(c, "dev-user", "default", []string{RoleAdmin})
				return next(c)
			}
			return validated(c)
		}
	}
}

func setIdentity(c echo.Context, userID, tenantID string, roles []string) {
	c.Set(EchoTenantClaimKey, tenantID)
	ctx := c.Request().Context()
	ctx = context.WithValue(ctx, UserIDKey, userID)
	ctx = context.WithValue(ctx, UserRolesKey, roles)
	c.SetRequest(c.Request().WithContext(ctx))
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(UserRolesKey).([]string)
	return roles
}
