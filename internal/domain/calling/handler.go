package calling

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/careexit/careexit/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers clinic directory and call simulator routes.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/clinics", h.Clinics)

	g := api.Group("", auth.RequireRole("clinician", "nurse"))
	g.POST("/patients/:id/calls", h.StartCall)
	g.GET("/patients/:id/calls", h.History)
	g.GET("/calls/:id", h.GetCall)
	g.POST("/calls/:id/end", h.EndCall)
}

func (h *Handler) Clinics(c echo.Context) error {
	clinics, err := h.svc.Clinics(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"clinics": clinics})
}

type startCallRequest struct {
	ClinicID    string `json:"clinic_id"`
	PatientName string `json:"patient_name"`
	Reason      string `json:"reason"`
}

func (h *Handler) StartCall(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var req startCallRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	call, err := h.svc.StartCall(c.Request().Context(), patientID, req.ClinicID, req.PatientName, req.Reason)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusAccepted, call)
}

func (h *Handler) GetCall(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid call id")
	}
	call, err := h.svc.GetCall(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if call == nil {
		return echo.NewHTTPError(http.StatusNotFound, "call not found")
	}
	return c.JSON(http.StatusOK, call)
}

func (h *Handler) EndCall(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid call id")
	}
	call, err := h.svc.EndCall(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if call == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no active call with that id")
	}
	return c.JSON(http.StatusOK, call)
}

func (h *Handler) History(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	calls, err := h.svc.History(c.Request().Context(), patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"calls": calls})
}
