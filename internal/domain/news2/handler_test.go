package news2

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/carehub/carehub/internal/platform/auth"
)

func newContext(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	auth.SetPrincipal(c, testPrincipal)
	return c, rec
}

func statusOf(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return 0
}

func TestHandler_RecordObservation(t *testing.T) {
	svc, _, _ := newTestService()
	h, e := NewHandler(svc), echo.New()

	body := `{"respiratoryRate":16,"spo2":97,"systolicBp":120,"pulseRate":70,"temperature":37.0}`
	c, rec := newContext(e, http.MethodPost, "/", body)
	c.SetParamNames("id")
	c.SetParamValues(annID.String())
	if err := h.RecordObservation(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var o Observation
	json.Unmarshal(rec.Body.Bytes(), &o)
	if o.TotalScore == nil || *o.TotalScore != 0 || o.RiskTier != TierLow {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_RecordObservation_Mismatch(t *testing.T) {
	svc, _, _ := newTestService()
	h, e := NewHandler(svc), echo.New()

	body := `{"respiratoryRate":16,"spo2":97,"systolicBp":120,"pulseRate":70,"temperature":37.0,"totalScore":9}`
	c, _ := newContext(e, http.MethodPost, "/", body)
	c.SetParamNames("id")
	c.SetParamValues(annID.String())
	if err := h.RecordObservation(c); statusOf(err) != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %v", err)
	}
}

func TestHandler_Dashboard(t *testing.T) {
	svc, _, _ := newTestService()
	h, e := NewHandler(svc), echo.New()

	c, rec := newContext(e, http.MethodGet, "/news2/dashboard", "")
	if err := h.Dashboard(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var d Dashboard
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(d.Counts) != 3 || d.Counts[TierHigh] != 0 {
		t.Errorf("expected zeroed counts for every tier, got %v", d.Counts)
	}
}

func TestHandler_GetObservation_NotFound(t *testing.T) {
	svc, _, _ := newTestService()
	h, e := NewHandler(svc), echo.New()

	c, _ := newContext(e, http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues(bobID.String())
	if err := h.GetObservation(c); statusOf(err) != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}
