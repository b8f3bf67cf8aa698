package chat

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/careexit/careexit/internal/platform/auth"
	"github.com/careexit/careexit/internal/platform/websocket"
)

// Handler exposes the chat history REST endpoint and the WebSocket entry
// point.
type Handler struct {
	svc *Service
	ws  *websocket.Handler
}

func NewHandler(svc *Service, hub *websocket.Hub) *Handler {
	return &Handler{
		svc: svc,
		ws:  websocket.NewHandler(hub, svc.HandleConnect, svc.HandleMessage),
	}
}

// RegisterRoutes registers the REST chat routes.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole("clinician", "nurse"))
	g.GET("/patients/:id/chat", h.History)
}

// RegisterWS registers the WebSocket route on the root router. The socket
// carries its own client type; JWT auth happens during the upgrade request.
func (h *Handler) RegisterWS(e *echo.Echo) {
	e.GET("/ws/:patient_id/:client_type", h.Connect)
}

var validClientTypes = map[string]bool{RolePatient: true, RoleDoctor: true}

func (h *Handler) Connect(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	clientType := c.Param("client_type")
	if !validClientTypes[clientType] {
		return echo.NewHTTPError(http.StatusBadRequest, "client_type must be patient or doctor")
	}
	return h.ws.Serve(c, patientID.String(), clientType)
}

func (h *Handler) History(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	messages, err := h.svc.History(c.Request().Context(), patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"messages": messages})
}
