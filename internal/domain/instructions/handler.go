package instructions

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

// RegisterRoutes registers instruction routes. The language list is public
// to authenticated users regardless of role.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/instructions/languages", h.ListLanguages)

	g := api.Group("", auth.RequireRole("clinician", "nurse"))
	g.POST("/patients/:id/instructions", h.Generate)
	g.GET("/patients/:id/instructions", h.Latest)
	g.GET("/patients/:id/instructions/history", h.History)
}

func (h *Handler) ListLanguages(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"languages": Languages})
}

func (h *Handler) Generate(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var req struct {
		LiteracyLevel string `json:"literacy_level"`
		Language      string `json:"language"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ins, err := h.svc.Generate(c.Request().Context(), patientID, req.LiteracyLevel, req.Language)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, ins)
}

func (h *Handler) Latest(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	ins, err := h.svc.Latest(c.Request().Context(), patientID, c.QueryParam("language"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "no instructions generated")
	}
	return c.JSON(http.StatusOK, ins)
}

func (h *Handler) History(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	list, err := h.svc.History(c.Request().Context(), patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"instructions": list})
}
