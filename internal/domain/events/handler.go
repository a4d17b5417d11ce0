package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carehub/carehub/internal/platform/auth"
	"github.com/carehub/carehub/internal/platform/validation"
	"github.com/carehub/carehub/pkg/pagination"
)

// maxMultipartMemory is held in memory before spilling to temp files.
const maxMultipartMemory = 32 << 20

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleManager, auth.RoleCarer, auth.RoleNurse, auth.RoleViewer))
	read.GET("/events", h.List)
	read.GET("/events/export.csv", h.ExportCSV)
	read.GET("/events/body-map/:side", h.Diagram)
	read.GET("/events/:id", h.Get)
	read.GET("/events/:id/export.pdf", h.ExportPDF)

	write := api.Group("", auth.RequireRole(auth.RoleManager, auth.RoleCarer, auth.RoleNurse))
	write.POST("/events", h.Create)
	write.PATCH("/events/:id", h.Update)
	write.POST("/events/:id/attachments", h.AddAttachments)
	write.POST("/events/:id/body-map/points", h.AddPoint)
	write.PATCH("/events/:id/body-map/points/:pointId", h.UpdatePoint)
	write.DELETE("/events/:id/body-map/points/:pointId", h.RemovePoint)

	manage := api.Group("", auth.RequireRole(auth.RoleManager))
	manage.POST("/events/:id/status", h.Transition)
	manage.PUT("/events/:id/notifications", h.SetNotifications)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.DELETE("/events/:id", h.Delete)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "event not found")
	case errors.Is(err, ErrPointNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidTransition):
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

func isMultipart(c echo.Context) bool {
	return strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

// Create accepts a JSON event, or multipart with the event JSON in the
// "event" field and files under "attachments".
func (h *Handler) Create(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	var e Event
	var files []*multipart.FileHeader
	if isMultipart(c) {
		if err := c.Request().ParseMultipartForm(maxMultipartMemory); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid multipart body")
		}
		form := c.Request().MultipartForm
		raw := form.Value["event"]
		if len(raw) == 0 {
			return validation.Errors{"event": "is required"}
		}
		if err := json.Unmarshal([]byte(raw[0]), &e); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid event JSON")
		}
		files = form.File["attachments"]
	} else if err := c.Bind(&e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	res, err := h.svc.Create(c.Request().Context(), p, &e, files)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) AddAttachments(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if !isMultipart(c) {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart body required")
	}
	if err := c.Request().ParseMultipartForm(maxMultipartMemory); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid multipart body")
	}
	files := c.Request().MultipartForm.File["attachments"]
	if len(files) == 0 {
		return validation.Errors{"attachments": "is required"}
	}
	res, err := h.svc.AddAttachments(c.Request().Context(), p, id, files)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) Get(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	e, err := h.svc.Get(c.Request().Context(), p, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) List(c echo.Context) error {
	f, err := ParseFilter(c.QueryParams())
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Update(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var patch Patch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	e, err := h.svc.Update(c.Request().Context(), p, id, patch)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) Transition(c echo.Context) error {
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
	e, err := h.svc.Transition(c.Request().Context(), p, id, body.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) SetNotifications(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var u NotificationUpdate
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	e, err := h.svc.SetNotifications(c.Request().Context(), p, id, u)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, e)
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

func (h *Handler) AddPoint(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var pt BodyMapPoint
	if err := c.Bind(&pt); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	_, created, err := h.svc.AddPoint(c.Request().Context(), p, id, pt)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) UpdatePoint(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var patch PointPatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	e, err := h.svc.UpdatePoint(c.Request().Context(), p, id, c.Param("pointId"), patch)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) RemovePoint(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if _, err := h.svc.RemovePoint(c.Request().Context(), p, id, c.Param("pointId")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Diagram(c echo.Context) error {
	d, err := h.svc.Diagram(c.Request().Context(), Side(c.Param("side")))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ExportCSV(c echo.Context) error {
	f, err := ParseFilter(c.QueryParams())
	if err != nil {
		return err
	}
	out, err := h.svc.ExportCSV(c.Request().Context(), f)
	if err != nil {
		return httpError(err)
	}
	hdr := c.Response().Header()
	hdr.Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", out.Filename))
	hdr.Set("X-Total-Count", strconv.Itoa(out.Total))
	if out.Truncated {
		hdr.Set("X-Export-Truncated", "true")
	}
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", out.Data)
}

func (h *Handler) ExportPDF(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	out, name, err := h.svc.ExportPDF(c.Request().Context(), p, id)
	if err != nil {
		return httpError(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, "application/pdf", out)
}
