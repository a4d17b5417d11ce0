package blobstore

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/carehub/carehub/internal/platform/auth"
)

// Handler serves stored attachments. Uploads go through the owning
// domain (events, clients) so that the right policy applies.
type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleCarer, auth.RoleNurse, auth.RoleManager, auth.RoleViewer))
	read.GET("/attachments/:id", h.Download)
	read.GET("/attachments/:id/metadata", h.Stat)

	write := api.Group("", auth.RequireRole(auth.RoleManager))
	write.DELETE("/attachments/:id", h.Delete)
}

func (h *Handler) Download(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	rc, meta, err := h.store.Get(c.Request().Context(), p.TenantID, c.Param("id"))
	if err != nil {
		return storeError(err)
	}
	defer rc.Close()

	c.Response().Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", meta.FileName))
	return c.Stream(http.StatusOK, meta.ContentType, rc)
}

func (h *Handler) Stat(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	meta, err := h.store.Stat(c.Request().Context(), p.TenantID, c.Param("id"))
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, meta)
}

func (h *Handler) Delete(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	if err := h.store.Delete(c.Request().Context(), p.TenantID, c.Param("id")); err != nil {
		return storeError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HTTPStatus maps store and policy errors to response codes.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrBlobNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrInvalidContentType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ErrMissingFileName):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func storeError(err error) error {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		return err
	}
	return echo.NewHTTPError(status, err.Error())
}
