package forms

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carehub/carehub/internal/platform/auth"
	"github.com/carehub/carehub/internal/platform/blobstore"
	"github.com/carehub/carehub/internal/platform/pdf"
	"github.com/carehub/carehub/pkg/pagination"
)

// maxTemplateSize bounds imported template files.
const maxTemplateSize = 1 << 20

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("")
	read.GET("/forms", h.ListSchemas)
	read.GET("/forms/:id", h.GetSchema)
	read.GET("/forms/:id/render", h.Render)
	read.POST("/forms/:id/preview", h.Preview)
	read.GET("/forms/:id/elements/:elementId/panel", h.Panel)

	fill := api.Group("", auth.RequireRole(auth.RoleManager, auth.RoleCarer, auth.RoleNurse))
	fill.POST("/forms/:id/submissions", h.Submit)
	fill.GET("/forms/:id/submissions", h.ListSubmissions)
	fill.GET("/form-submissions/:id", h.GetSubmission)
	fill.PUT("/form-submissions/:id", h.UpdateDraft)

	design := api.Group("", auth.RequireRole(auth.RoleManager))
	design.POST("/forms", h.CreateSchema)
	design.POST("/forms/import", h.Import)
	design.GET("/forms/:id/export", h.Export)
	design.PUT("/forms/:id", h.UpdateSchema)
	design.DELETE("/forms/:id", h.DeleteSchema)
	design.POST("/forms/:id/publish", h.Publish)
	design.POST("/forms/:id/unpublish", h.Unpublish)
	design.POST("/forms/:id/elements", h.AddElement)
	design.PUT("/forms/:id/elements/order", h.ReorderElements)
	design.PATCH("/forms/:id/elements/:elementId", h.UpdateElement)
	design.DELETE("/forms/:id/elements/:elementId", h.RemoveElement)
	design.POST("/forms/:id/elements/:elementId/duplicate", h.DuplicateElement)
	design.POST("/forms/:id/elements/:elementId/move", h.MoveElement)
	design.POST("/forms/:id/elements/:elementId/options", h.AddOption)
	design.PATCH("/forms/:id/elements/:elementId/options/:optionId", h.UpdateOption)
	design.DELETE("/forms/:id/elements/:elementId/options/:optionId", h.RemoveOption)
}

// httpError maps service errors onto statuses. Validation errors pass
// through to the central error handler.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "form not found")
	case errors.Is(err, ErrSubmissionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "submission not found")
	case errors.Is(err, ErrElementNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotPublished), errors.Is(err, ErrDraftDisabled), errors.Is(err, ErrSubmitted):
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

// -- Schemas --

func (h *Handler) CreateSchema(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	var sc Schema
	if err := c.Bind(&sc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.CreateSchema(c.Request().Context(), p, &sc); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, sc)
}

func (h *Handler) GetSchema(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	sc, err := h.svc.GetSchema(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sc)
}

func (h *Handler) ListSchemas(c echo.Context) error {
	pg := pagination.FromContext(c)
	publishedOnly := c.QueryParam("published") == "true"
	items, total, err := h.svc.ListSchemas(c.Request().Context(), publishedOnly, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateSchema(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var sc Schema
	if err := c.Bind(&sc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sc.ID = id
	if err := h.svc.UpdateSchema(c.Request().Context(), p, &sc); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sc)
}

func (h *Handler) DeleteSchema(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteSchema(c.Request().Context(), p, id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Publish(c echo.Context) error   { return h.setPublished(c, true) }
func (h *Handler) Unpublish(c echo.Context) error { return h.setPublished(c, false) }

func (h *Handler) setPublished(c echo.Context, published bool) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	sc, err := h.svc.SetPublished(c.Request().Context(), p, id, published)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sc)
}

// -- Designer operations --

type addElementRequest struct {
	Type     ElementType `json:"type"`
	ParentID string      `json:"parentId,omitempty"`
}

type elementResponse struct {
	Schema  *Schema  `json:"schema"`
	Element *Element `json:"element,omitempty"`
	Option  *Option  `json:"option,omitempty"`
}

func (h *Handler) AddElement(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req addElementRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sc, added, err := h.svc.AddElement(c.Request().Context(), p, id, req.Type, req.ParentID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, elementResponse{Schema: sc, Element: &added})
}

func (h *Handler) UpdateElement(c echo.Context) error {
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
	sc, err := h.svc.UpdateElement(c.Request().Context(), p, id, c.Param("elementId"), patch)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sc)
}

func (h *Handler) RemoveElement(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	sc, err := h.svc.RemoveElement(c.Request().Context(), p, id, c.Param("elementId"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sc)
}

func (h *Handler) DuplicateElement(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	sc, dup, err := h.svc.DuplicateElement(c.Request().Context(), p, id, c.Param("elementId"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, elementResponse{Schema: sc, Element: &dup})
}

type reorderRequest struct {
	ParentID string   `json:"parentId,omitempty"`
	IDs      []string `json:"ids"`
}

func (h *Handler) ReorderElements(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req reorderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sc, err := h.svc.ReorderElements(c.Request().Context(), p, id, req.ParentID, req.IDs)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sc)
}

type moveRequest struct {
	Index int `json:"index"`
}

func (h *Handler) MoveElement(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req moveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sc, err := h.svc.MoveElement(c.Request().Context(), p, id, c.Param("elementId"), req.Index)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sc)
}

func (h *Handler) AddOption(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	sc, opt, err := h.svc.AddOption(c.Request().Context(), p, id, c.Param("elementId"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, elementResponse{Schema: sc, Option: &opt})
}

func (h *Handler) UpdateOption(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var patch OptionPatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sc, err := h.svc.UpdateOption(c.Request().Context(), p, id, c.Param("elementId"), c.Param("optionId"), patch)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sc)
}

func (h *Handler) RemoveOption(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	sc, err := h.svc.RemoveOption(c.Request().Context(), p, id, c.Param("elementId"), c.Param("optionId"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sc)
}

func (h *Handler) Panel(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	panel, err := h.svc.Panel(c.Request().Context(), id, c.Param("elementId"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, panel)
}

// -- Rendering --

// Render returns the node tree, or HTML with ?format=html. ?mode=preview
// renders enabled inputs without values.
func (h *Handler) Render(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	preview := c.QueryParam("mode") == "preview"
	nodes, err := h.svc.Render(c.Request().Context(), id, preview, nil)
	if err != nil {
		return httpError(err)
	}
	if c.QueryParam("format") == "html" {
		var buf bytes.Buffer
		if err := WriteHTML(&buf, nodes); err != nil {
			return err
		}
		return c.HTMLBlob(http.StatusOK, buf.Bytes())
	}
	return c.JSON(http.StatusOK, nodes)
}

type previewRequest struct {
	Values map[string]interface{} `json:"values"`
}

func (h *Handler) Preview(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req previewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	res, err := h.svc.Preview(c.Request().Context(), id, req.Values)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

// -- Submissions --

func (h *Handler) Submit(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sub, err := h.svc.Submit(c.Request().Context(), p, id, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, sub)
}

func (h *Handler) UpdateDraft(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sub, err := h.svc.UpdateDraft(c.Request().Context(), p, id, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sub)
}

func (h *Handler) GetSubmission(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	sub, err := h.svc.GetSubmission(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sub)
}

func (h *Handler) ListSubmissions(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListSubmissions(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// -- Templates --

// Import accepts a template as a multipart "file" field or as the raw
// request body.
func (h *Handler) Import(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	var r io.Reader = c.Request().Body
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, err := c.FormFile("file")
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "file is required")
		}
		if fh.Size > maxTemplateSize {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, blobstore.ErrFileTooLarge.Error())
		}
		f, err := fh.Open()
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(io.LimitReader(r, maxTemplateSize+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not read template")
	}
	if len(data) > maxTemplateSize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, blobstore.ErrFileTooLarge.Error())
	}
	sc, err := h.svc.Import(c.Request().Context(), p, data)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, sc)
}

func (h *Handler) Export(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	out, sc, err := h.svc.Export(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		`attachment; filename="form-`+pdf.Slug(sc.Title)+`.yaml"`)
	return c.Blob(http.StatusOK, "application/yaml", out)
}
