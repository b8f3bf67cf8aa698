package emr

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc, _ := newTestService(nil)
	return NewHandler(svc), echo.New()
}

func patientRequest(e *echo.Echo, method, body string, patientID uuid.UUID) (echo.Context, *httptest.ResponseRecorder) {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, "/", reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(patientID.String())
	return c, rec
}

func TestHandler_Upload(t *testing.T) {
	h, e := newTestHandler()
	patientID := uuid.New()

	body := fmt.Sprintf(`{"ehr":{"filename":"chart.txt","content":%q}}`, sampleText)
	c, rec := patientRequest(e, http.MethodPost, body, patientID)

	if err := h.Upload(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var got ParsedRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Demographics.Name != "Robert Chen" {
		t.Errorf("name = %q", got.Demographics.Name)
	}
}

func TestHandler_UploadRequiresFile(t *testing.T) {
	h, e := newTestHandler()
	c, _ := patientRequest(e, http.MethodPost, `{}`, uuid.New())

	err := h.Upload(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_UploadInvalidPatientID(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	err := h.Upload(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_RecordAndSummaryFlow(t *testing.T) {
	svc, _ := newTestService(nil)
	h := NewHandler(svc)
	e := echo.New()
	patientID := uuid.New()

	body := fmt.Sprintf(`{"notes":{"filename":"notes.txt","content":%q}}`, sampleText)
	c, _ := patientRequest(e, http.MethodPost, body, patientID)
	if err := h.Upload(c); err != nil {
		t.Fatal(err)
	}

	c, rec := patientRequest(e, http.MethodGet, "", patientID)
	if err := h.Record(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("record status = %d", rec.Code)
	}
	var page struct {
		Documents []Document    `json:"documents"`
		Record    *ParsedRecord `json:"record"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatal(err)
	}
	if len(page.Documents) != 1 || page.Record == nil {
		t.Fatalf("documents = %d, record = %v", len(page.Documents), page.Record)
	}

	c, rec = patientRequest(e, http.MethodPost, "", patientID)
	if err := h.GenerateSummary(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("summary status = %d", rec.Code)
	}

	c, rec = patientRequest(e, http.MethodGet, "", patientID)
	if err := h.LatestSummary(c); err != nil {
		t.Fatal(err)
	}
	var sum VisitSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &sum); err != nil {
		t.Fatal(err)
	}
	if sum.Source != SourceTemplate {
		t.Errorf("source = %q", sum.Source)
	}
}

func TestHandler_LatestSummaryNotFound(t *testing.T) {
	h, e := newTestHandler()
	c, _ := patientRequest(e, http.MethodGet, "", uuid.New())

	err := h.LatestSummary(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}
