package emr

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/careexit/careexit/internal/platform/auth"
)

// Handler provides HTTP handlers for EMR ingestion and visit summaries.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers all EMR routes.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole("clinician", "nurse"))
	g.POST("/patients/:id/emr/upload", h.Upload)
	g.POST("/patients/:id/emr/epic-import", h.EpicImport)
	g.GET("/patients/:id/emr", h.Record)
	g.POST("/patients/:id/visit-summary", h.GenerateSummary)
	g.GET("/patients/:id/visit-summary", h.LatestSummary)
}

type uploadRequest struct {
	EHR     *uploadFileBody `json:"ehr"`
	Notes   *uploadFileBody `json:"notes"`
	Summary *uploadFileBody `json:"summary"`
}

type uploadFileBody struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

func (h *Handler) Upload(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var req uploadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var files []UploadFile
	for _, part := range []struct {
		kind string
		body *uploadFileBody
	}{
		{KindEHR, req.EHR}, {KindNotes, req.Notes}, {KindSummary, req.Summary},
	} {
		if part.body == nil {
			continue
		}
		files = append(files, UploadFile{
			Kind:     part.kind,
			Filename: part.body.Filename,
			Content:  part.body.Content,
		})
	}

	rec, err := h.svc.Upload(c.Request().Context(), patientID, files)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) EpicImport(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var req struct {
		EpicPatientID string `json:"epic_patient_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	rec, err := h.svc.ImportFromEpic(c.Request().Context(), patientID, req.EpicPatientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) Record(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	docs, rec, err := h.svc.Record(c.Request().Context(), patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"documents": docs,
		"record":    rec,
	})
}

func (h *Handler) GenerateSummary(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	sum, err := h.svc.GenerateVisitSummary(c.Request().Context(), patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusCreated, sum)
}

func (h *Handler) LatestSummary(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	sum, err := h.svc.LatestVisitSummary(c.Request().Context(), patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if sum == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no visit summary")
	}
	return c.JSON(http.StatusOK, sum)
}
