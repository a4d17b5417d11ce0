package clients

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carehub/carehub/internal/platform/auth"
	"github.com/carehub/carehub/internal/platform/blobstore"
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
	read.GET("/clients", h.ListClients)
	read.GET("/clients/:id", h.GetClient)
	read.GET("/clients/:id/agreements", h.ListAgreements)
	read.GET("/agreements/:id", h.GetAgreement)

	write := api.Group("", auth.RequireRole(auth.RoleManager))
	write.POST("/clients", h.CreateClient)
	write.PUT("/clients/:id", h.UpdateClient)
	write.DELETE("/clients/:id", h.DeleteClient)
	write.POST("/clients/:id/agreements", h.CreateAgreement)
	write.PUT("/agreements/:id", h.UpdateAgreement)
	write.PUT("/agreements/:id/document", h.ReplaceDocument)
	write.DELETE("/agreements/:id", h.DeleteAgreement)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "client not found")
	case errors.Is(err, ErrAgreementNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "agreement not found")
	case errors.Is(err, ErrDuplicateNHS):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, blobstore.ErrFileTooLarge),
		errors.Is(err, blobstore.ErrInvalidContentType),
		errors.Is(err, blobstore.ErrMissingFileName):
		return echo.NewHTTPError(blobstore.HTTPStatus(err), err.Error())
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

// -- Clients --

func (h *Handler) CreateClient(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	var cl Client
	if err := c.Bind(&cl); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.CreateClient(c.Request().Context(), p, &cl); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, cl)
}

func (h *Handler) GetClient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	cl, err := h.svc.GetClient(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) ListClients(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{
		Status:   Status(c.QueryParam("status")),
		BranchID: c.QueryParam("branchId"),
		Search:   c.QueryParam("search"),
	}
	items, total, err := h.svc.ListClients(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateClient(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var cl Client
	if err := c.Bind(&cl); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	cl.ID = id
	if err := h.svc.UpdateClient(c.Request().Context(), p, &cl); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) DeleteClient(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteClient(c.Request().Context(), p, id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Agreements --

// agreementForm reads an agreement from form fields. Dates use
// 2006-01-02.
func agreementForm(c echo.Context) (*Agreement, error) {
	errs := validation.Errors{}
	a := &Agreement{
		Title:  c.FormValue("title"),
		Status: AgreementStatus(c.FormValue("status")),
	}
	if v := c.FormValue("startDate"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			errs.Add("startDate", "must be a date")
		}
		a.StartDate = t
	}
	if v := c.FormValue("endDate"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			errs.Add("endDate", "must be a date")
		}
		a.EndDate = &t
	}
	return a, errs.Err()
}

func isMultipart(c echo.Context) bool {
	return strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

// CreateAgreement takes JSON, or multipart form fields with the signed
// document under "document".
func (h *Handler) CreateAgreement(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	clientID, err := parseID(c)
	if err != nil {
		return err
	}

	var a *Agreement
	var doc *multipart.FileHeader
	if isMultipart(c) {
		if a, err = agreementForm(c); err != nil {
			return err
		}
		if fh, err := c.FormFile("document"); err == nil {
			doc = fh
		}
	} else {
		a = &Agreement{}
		if err := c.Bind(a); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
	}

	if err := h.svc.CreateAgreement(c.Request().Context(), p, clientID, a, doc); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAgreement(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.GetAgreement(c.Request().Context(), p, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAgreements(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	clientID, err := parseID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListAgreements(c.Request().Context(), p, clientID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateAgreement(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var a Agreement
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a.ID = id
	if err := h.svc.UpdateAgreement(c.Request().Context(), p, &a); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ReplaceDocument(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	fh, err := c.FormFile("document")
	if err != nil {
		return validation.Errors{"document": "is required"}
	}
	a, err := h.svc.ReplaceDocument(c.Request().Context(), p, id, fh)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) DeleteAgreement(c echo.Context) error {
	p, err := auth.PrincipalFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteAgreement(c.Request().Context(), p, id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
