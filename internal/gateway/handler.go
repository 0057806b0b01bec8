package gateway

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/harithebeast/multimodal-ai/internal/detector"
	"github.com/harithebeast/multimodal-ai/internal/shared"
	"github.com/labstack/echo/v4"
)

type TokenResponse struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

type QuotaResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	RetryAfter string `json:"retry_after,omitempty"`
}

type DetectResponse struct {
	Analysis        string                  `json:"analysis"`
	Detections      []detector.Detection    `json:"detections"`
	AnnotatedImage  *string                 `json:"annotated_image"`
	TotalComponents int                     `json:"total_components"`
	ComponentFound  bool                    `json:"component_detected"`
	ModelUsed       string                  `json:"model_used"`
	StructuredData  detector.StructuredData `json:"structured_data"`
}

type ModelInfoResponse struct {
	ModelType        string          `json:"model_type"`
	ModelName        string          `json:"model_name"`
	GeminiModel      string          `json:"gemini_model"`
	ModelsLoaded     map[string]bool `json:"models_loaded"`
	APIKeyConfigured bool            `json:"api_key_configured"`
	QuotaInfo        string          `json:"quota_info"`
	Capabilities     []string        `json:"capabilities"`
}

// Vision is the slice of the detector the HTTP surface needs.
type Vision interface {
	Detect(ctx context.Context, imageData []byte) (detector.Result, error)
	DetailedAnalysis(ctx context.Context, imageData []byte, detections []detector.Detection) (string, error)
	Enabled() bool
	ModelName() string
}

// Handler exposes the HTTP API: join tokens, one-shot component detection,
// and model status.
type Handler struct {
	tokens   *TokenService
	rooms    *RoomStore
	detector Vision
	log      *slog.Logger
}

type HandlerConfig struct {
	Tokens   *TokenService
	Rooms    *RoomStore
	Detector Vision
	Log      *slog.Logger
}

func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Handler{
		tokens:   cfg.Tokens,
		rooms:    cfg.Rooms,
		detector: cfg.Detector,
		log:      cfg.Log.With("component", "gateway"),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api")
	api.GET("/get-token", h.GetToken)
	api.POST("/detect-component", h.DetectComponent)
	api.GET("/model-info", h.ModelInfo)
}

func (h *Handler) GetToken(c echo.Context) error {
	participant := c.QueryParam("participant")
	if participant == "" {
		return shared.BadRequest("missing_participant", "participant query parameter is required")
	}
	if !h.tokens.Configured() {
		return shared.InternalError("credentials_missing", "media server API credentials not configured")
	}

	room := h.tokens.GenerateRoomName()
	if err := h.rooms.Create(c.Request().Context(), &Room{Name: room, Participant: participant}); err != nil {
		h.log.Warn("room registry write failed", "room", room, "error", err)
	}

	token, err := h.tokens.GenerateToken(participant, room)
	if err != nil {
		h.log.Error("token mint failed", "error", err)
		return shared.InternalError("token_failed", "could not generate access token")
	}

	h.log.Info("issued join token", "room", room, "participant", participant)
	return c.JSON(http.StatusOK, TokenResponse{Token: token, URL: h.tokens.URL()})
}

func (h *Handler) DetectComponent(c echo.Context) error {
	file, err := c.FormFile("image")
	if err != nil {
		return shared.BadRequest("missing_image", "multipart field 'image' is required")
	}
	src, err := file.Open()
	if err != nil {
		return shared.BadRequest("unreadable_image", "could not open uploaded image")
	}
	defer src.Close()
	imageData, err := io.ReadAll(src)
	if err != nil {
		return shared.BadRequest("unreadable_image", "could not read uploaded image")
	}

	ctx := c.Request().Context()
	result, err := h.detector.Detect(ctx, imageData)
	if err != nil {
		if detector.IsQuotaError(err) {
			return shared.TooManyRequests(QuotaResponse{
				Error:      "API Quota Exceeded",
				Message:    "You've reached the daily limit for Gemini API requests. Please wait or upgrade your API plan.",
				Details:    err.Error(),
				RetryAfter: "Please try again in a few hours or tomorrow.",
			})
		}
		h.log.Error("component detection failed", "error", err)
		return shared.InternalError("detection_failed", fmt.Sprintf("error analyzing image: %v", err))
	}

	description := detector.Describe(result.Detections)
	analysis := description
	if h.detector.Enabled() {
		detailed, derr := h.detector.DetailedAnalysis(ctx, imageData, result.Detections)
		switch {
		case derr == nil:
		case detector.IsQuotaError(derr):
			detailed = "Detailed analysis unavailable due to API quota limits. Basic component detection still works!"
		default:
			detailed = fmt.Sprintf("Detailed analysis unavailable: %v", derr)
		}
		if detailed != "" {
			analysis = fmt.Sprintf("%s\n\nDetailed Analysis:\n%s", description, detailed)
		}
	}

	var annotated *string
	if len(result.AnnotatedImage) > 0 {
		url := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(result.AnnotatedImage)
		annotated = &url
	}

	return c.JSON(http.StatusOK, DetectResponse{
		Analysis:        analysis,
		Detections:      result.Detections,
		AnnotatedImage:  annotated,
		TotalComponents: result.TotalComponents,
		ComponentFound:  len(result.Detections) > 0,
		ModelUsed:       result.ModelUsed,
		StructuredData:  detector.StructuredInstructions(result.Detections),
	})
}

func (h *Handler) ModelInfo(c echo.Context) error {
	loaded := h.detector.Enabled()
	geminiModel := "Not loaded"
	if loaded {
		geminiModel = h.detector.ModelName()
	}

	return c.JSON(http.StatusOK, ModelInfoResponse{
		ModelType:        "Gemini Vision Detection",
		ModelName:        "Gemini Vision Detection (" + h.detector.ModelName() + ")",
		GeminiModel:      geminiModel,
		ModelsLoaded:     map[string]bool{"gemini_loaded": loaded},
		APIKeyConfigured: loaded,
		QuotaInfo:        "Gemini 2.0 Flash: 200 requests/day, 15 RPM, 1M tokens/min",
		Capabilities: []string{
			"Text-based component detection",
			"Component description generation",
			"Detailed component analysis",
			"Multi-component detection",
		},
	})
}
