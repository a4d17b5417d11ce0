package db

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	TenantIDKey contextKey = "tenant_id"
	DBConnKey   contextKey = "db_conn"
	DBTxKey     contextKey = "db_tx"
)

// EchoTenantKey is shared with the auth package, which reads the resolved
// tenant when building a Principal.
const EchoTenantKey = "tenant_id"

// TenantHeader lets callers without a tenant claim (dev mode, service
// accounts) pick a tenant.
const TenantHeader = "X-Tenant-ID"

var (
	tenantIDPattern = regexp.MustCompile(`^[a-z0-9_]{1,48}$`)

	errTenantMismatch = errors.New("tenant header does not match token")
)

// SchemaName returns the Postgres schema holding a tenant's tables.
func SchemaName(tenantID string) string {
	return "tenant_" + tenantID
}

// ValidTenantID reports whether id is safe to use in a schema name.
func ValidTenantID(id string) bool {
	return tenantIDPattern.MatchString(id)
}

// resolveTenant prefers the token claim. A header naming a different
// tenant than the token is refused rather than ignored.
func resolveTenant(c echo.Context, defaultTenant string) (string, error) {
	claim, _ := c.Get("jwt_tenant_id").(string)
	header := c.Request().Header.Get(TenantHeader)
	switch {
	case claim != "" && header != "" && header != claim:
		return "", errTenantMismatch
	case claim != "":
		return claim, nil
	case header != "":
		return header, nil
	}
	return defaultTenant, nil
}

// TenantMiddleware resolves the tenant for the request, acquires a pooled
// connection pinned to that tenant's schema and stores both on the request
// context. Repositories pick the connection up through Conn.
func TenantMiddleware(pool *pgxpool.Pool, defaultTenant string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tenantID, err := resolveTenant(c, defaultTenant)
			if err != nil {
				return echo.NewHTTPError(http.StatusForbidden, err.Error())
			}
			if !ValidTenantID(tenantID) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid tenant identifier")
			}

			ctx := c.Request().Context()
			conn, err := pool.Acquire(ctx)
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable").SetInternal(err)
			}
			defer conn.Release()

			schema := pgx.Identifier{SchemaName(tenantID)}.Sanitize()
			if _, err := conn.Exec(ctx, "SET search_path TO "+schema+", public"); err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "tenant resolution failed").SetInternal(err)
			}

			ctx = withTenant(ctx, tenantID)
			ctx = context.WithValue(ctx, DBConnKey, conn)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set(EchoTenantKey, tenantID)

			return next(c)
		}
	}
}

// withTenant records the tenant on ctx and tags the request logger with it.
func withTenant(ctx context.Context, tenantID string) context.Context {
	ctx = context.WithValue(ctx, TenantIDKey, tenantID)
	l := zerolog.Ctx(ctx).With().Str("tenant_id", tenantID).Logger()
	return l.WithContext(ctx)
}

// ConnFromContext retrieves the tenant-scoped database connection from context.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

// TenantFromContext retrieves the tenant ID set by TenantMiddleware. Only the
// infrastructure layer reads it; services receive the tenant explicitly.
func TenantFromContext(ctx context.Context) string {
	tid, _ := ctx.Value(TenantIDKey).(string)
	return tid
}

// CreateTenantSchema creates a tenant schema and, when a migrator is given,
// applies every migration to it.
func CreateTenantSchema(ctx context.Context, pool *pgxpool.Pool, tenantID string, migrator *Migrator) error {
	if !ValidTenantID(tenantID) {
		return fmt.Errorf("invalid tenant identifier: %q", tenantID)
	}
	schema := SchemaName(tenantID)

	if _, err := pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{schema}.Sanitize()); err != nil {
		return fmt.Errorf("create schema %s: %w", schema, err)
	}

	if migrator != nil {
		if _, err := migrator.Up(ctx, schema); err != nil {
			return fmt.Errorf("run migrations for %s: %w", schema, err)
		}
	}
	return nil
}
