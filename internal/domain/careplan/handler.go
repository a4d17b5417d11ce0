package careplan

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carehub/carehub/internal/platform/auth"
	"github.com/carehub/carehub/internal/platform/validation"
	"github.com/carehub/carehub/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleManager, auth.RoleCarer, auth.RoleNurse, auth.RoleViewer))
	read.GET("/care-plans", h.ListCarePlans)
	read.GET("/care-plans/due-for-review", h.DueForReview)
	read.GET("/care-plans/:id", h.GetCarePlan)
	read.GET("/care-plans/:id/export.pdf", h.ExportPDF)

	write := api.Group("", auth.RequireRole(auth.RoleManager, auth.RoleNurse))
	write.POST("/care-plans", h.CreateCarePlan)
	write.PUT("/care-plans/:id", h.UpdateCarePlan)
	write.POST("/care-plans/:id/review", h.RecordReview)

	manage := api.Group("", auth.RequireRole(auth.RoleManager))
	manage.POST("/care-plans/:id/status", h.SetStatus)
	manage.POST("/care-plans/:id/sign-off", h.SignOff)
	manage.DELETE("/care-plans/:id", h.DeleteCarePlan)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "care plan not found")
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrArchived):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return err
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) CreateCarePlan(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	var cp CarePlan
	if err := c.Bind(&cp); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.CreateCarePlan(c.Request().Context(), p, &cp); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, cp)
}

func (h *Handler) GetCarePlan(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	cp, err := h.svc.GetCarePlan(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cp)
}

func (h *Handler) ListCarePlans(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{Status: Status(c.QueryParam("status"))}
	if v := c.QueryParam("clientId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return validation.Errors{"clientId": "must be a valid UUID"}
		}
		f.ClientID = &id
	}
	items, total, err := h.svc.ListCarePlans(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) DueForReview(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.DueForReview(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateCarePlan(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var cp CarePlan
	if err := c.Bind(&cp); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	cp.ID = id
	if err := h.svc.UpdateCarePlan(c.Request().Context(), p, &cp); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cp)
}

func (h *Handler) DeleteCarePlan(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteCarePlan(c.Request().Context(), p, id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) SetStatus(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var body struct {
		Status Status `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	cp, err := h.svc.SetStatus(c.Request().Context(), p, id, body.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cp)
}

func (h *Handler) RecordReview(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var r Review
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	cp, err := h.svc.RecordReview(c.Request().Context(), p, id, r)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cp)
}

func (h *Handler) SignOff(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	cp, err := h.svc.SignOff(c.Request().Context(), p, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cp)
}

func (h *Handler) ExportPDF(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	out, name, err := h.svc.ExportPDF(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, "application/pdf", out)
}
