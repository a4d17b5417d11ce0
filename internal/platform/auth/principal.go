package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Principal is the caller identity handed to services explicitly.
type Principal struct {
	UserID   string
	TenantID string
	Roles    []string
}

func (p Principal) HasRole(role string) bool {
	return hasAnyRole(p.Roles, []string{role})
}

func (p Principal) IsAdmin() bool {
	for _, r := range p.Roles {
		if r == RoleAdmin {
			return true
		}
	}
	return false
}

// tenantKey mirrors db.EchoTenantKey; auth cannot import db.
const tenantKey = "tenant_id"

// PrincipalFrom builds the principal for the current request. The tenant
// is the one resolved by the tenant middleware, falling back to the token
// claim when the route runs outside it.
func PrincipalFrom(c echo.Context) (Principal, error) {
	ctx := c.Request().Context()
	p := Principal{
		UserID: UserIDFromContext(ctx),
		Roles:  RolesFromContext(ctx),
	}
	if t, ok := c.Get(tenantKey).(string); ok && t != "" {
		p.TenantID = t
	} else if t, ok := c.Get(EchoTenantClaimKey).(string); ok {
		p.TenantID = t
	}
	if p.UserID == "" || p.TenantID == "" {
		return Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
	}
	return p, nil
}

// SetPrincipal stores p on the request the way the auth and tenant
// middleware do.
func SetPrincipal(c echo.Context, p Principal) {
	setIdentity(c, p.UserID, p.TenantID, p.Roles)
	c.Set(tenantKey, p.TenantID)
}
