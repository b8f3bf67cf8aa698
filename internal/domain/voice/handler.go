package voice

import (
	"io"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/careexit/careexit/internal/platform/auth"
	"github.com/careexit/careexit/internal/platform/tts"
)

// Handler serves speech synthesis for the patient-facing UI.
type Handler struct {
	tts    *tts.Service
	logger zerolog.Logger
}

func NewHandler(svc *tts.Service, logger zerolog.Logger) *Handler {
	return &Handler{tts: svc, logger: logger.With().Str("component", "voice").Logger()}
}

// RegisterRoutes registers TTS routes.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/tts", h.Speak)
	api.GET("/tts/cache", h.CacheStats, auth.RequireRole("admin"))
}

type speakRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id"`
}

func (h *Handler) Speak(c echo.Context) error {
	var req speakRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}

	path, hit, err := h.tts.Synthesize(c.Request().Context(), req.Text, req.VoiceID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	f, err := os.Open(path)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "open cached audio")
	}
	defer f.Close()

	h.logger.Debug().Bool("cache_hit", hit).Int("text_len", len(req.Text)).Msg("serving tts audio")

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "audio/mpeg")
	res.WriteHeader(http.StatusOK)

	// Stream in fixed-size chunks so large clips never buffer whole.
	buf := make([]byte, 8*1024)
	if _, err := io.CopyBuffer(res.Writer, f, buf); err != nil {
		h.logger.Warn().Err(err).Msg("tts stream interrupted")
	}
	return nil
}

func (h *Handler) CacheStats(c echo.Context) error {
	stats, err := h.tts.CacheStats()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}
