package medication

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carehub/carehub/internal/platform/auth"
	"github.com/carehub/carehub/internal/platform/validation"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleManager, auth.RoleCarer, auth.RoleNurse, auth.RoleViewer))
	read.GET("/clients/:id/mar", h.DailyChart)
	read.GET("/clients/:id/medication", h.ListForClient)
	read.GET("/medication/:id", h.GetAdministration)

	write := api.Group("", auth.RequireRole(auth.RoleManager, auth.RoleCarer, auth.RoleNurse))
	write.POST("/medication/:id/record", h.Record)

	prescribe := api.Group("", auth.RequireRole(auth.RoleManager, auth.RoleNurse))
	prescribe.POST("/clients/:id/medication", h.Schedule)
	prescribe.DELETE("/medication/:id", h.Delete)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "medication administration not found")
	case errors.Is(err, ErrAlreadyRecorded):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
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

func (h *Handler) Schedule(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	clientID, err := parseID(c)
	if err != nil {
		return err
	}
	var a Administration
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a.ClientID = clientID
	if err := h.svc.Schedule(c.Request().Context(), p, &a); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAdministration(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListForClient(c echo.Context) error {
	clientID, err := parseID(c)
	if err != nil {
		return err
	}
	errs := validation.Errors{}
	from, err := time.Parse(time.RFC3339, c.QueryParam("from"))
	if err != nil {
		errs.Add("from", "must be an RFC 3339 timestamp")
	}
	to, err := time.Parse(time.RFC3339, c.QueryParam("to"))
	if err != nil {
		errs.Add("to", "must be an RFC 3339 timestamp")
	}
	if err := errs.Err(); err != nil {
		return err
	}
	items, err := h.svc.ListForClient(c.Request().Context(), clientID, from, to)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Record(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var o Outcome
	if err := c.Bind(&o); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.Record(c.Request().Context(), p, id, o)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Delete(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), p, id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// DailyChart serves the MAR for ?date=YYYY-MM-DD (default today) in the
// ?tz time zone (default UTC).
func (h *Handler) DailyChart(c echo.Context) error {
	clientID, err := parseID(c)
	if err != nil {
		return err
	}
	loc := time.UTC
	if tz := c.QueryParam("tz"); tz != "" {
		if loc, err = time.LoadLocation(tz); err != nil {
			return validation.Errors{"tz": "unknown time zone"}
		}
	}
	day := time.Now().In(loc)
	if v := c.QueryParam("date"); v != "" {
		if day, err = time.ParseInLocation("2006-01-02", v, loc); err != nil {
			return validation.Errors{"date": "must be YYYY-MM-DD"}
		}
	}
	chart, err := h.svc.DailyChart(c.Request().Context(), clientID, day, loc)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, chart)
}
