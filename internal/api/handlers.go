package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"promptmaster/internal/models"
	"promptmaster/internal/prompt"
	"promptmaster/internal/ratelimit"
	"promptmaster/internal/service/ai"
	"promptmaster/internal/service/assistant"
	"promptmaster/internal/worker"
)

// Generator is the single-shot response dispatcher.
type Generator interface {
	Dispatch(ctx context.Context, input string, mode models.Mode, style models.Style) ai.Result
}

// WorkerManager runs chat turns in per-session order.
type WorkerManager interface {
	Turn(worker.TurnRequest) (*worker.TurnResult, error)
	Purge(sessionID string)
}

// Handler wires HTTP routes to the conversation log, the dispatcher and the
// turn workers.
type Handler struct {
	assistant  *assistant.Service
	catalog    *prompt.Catalog
	generator  Generator
	workers    WorkerManager
	limiter    ratelimit.Limiter
	corsOrigin string
}

// NewHandler constructs a Handler instance. limiter may be nil to disable
// rate limiting.
func NewHandler(service *assistant.Service, generator Generator, workers WorkerManager, limiter ratelimit.Limiter, corsOrigin string) *Handler {
	return &Handler{
		assistant:  service,
		catalog:    service.Catalog(),
		generator:  generator,
		workers:    workers,
		limiter:    limiter,
		corsOrigin: corsOrigin,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestID(), accessLog(), cors(h.corsOrigin))
	router.GET("/healthz", h.health)

	api := router.Group("/api")
	api.GET("/modes", h.listModes)
	api.POST("/generate", h.rateLimit(), h.generate)

	sessions := api.Group("/sessions")
	sessions.POST("", h.createSession)
	sessions.GET("/:id", h.getSession)
	sessions.DELETE("/:id", h.deleteSession)
	sessions.PUT("/:id/mode", h.switchMode)
	sessions.PUT("/:id/style", h.setStyle)
	sessions.POST("/:id/messages", h.rateLimit(), h.sendMessage)
	sessions.DELETE("/:id/messages", h.clearHistory)
	sessions.POST("/:id/messages/:message_id/feedback", h.setFeedback)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type styleView struct {
	Style       models.Style `json:"style"`
	Label       string       `json:"label"`
	Description string       `json:"description"`
}

type modeView struct {
	Mode        models.Mode `json:"mode"`
	Label       string      `json:"label"`
	Description string      `json:"description"`
	Greeting    string      `json:"greeting"`
	Styles      []styleView `json:"styles"`
}

func (h *Handler) listModes(c *gin.Context) {
	modes := h.catalog.Modes()
	out := make([]modeView, 0, len(modes))
	for _, mode := range modes {
		label, desc := h.catalog.ModeLabel(mode)
		view := modeView{
			Mode:        mode,
			Label:       label,
			Description: desc,
			Greeting:    h.catalog.Greeting(mode),
		}
		for _, style := range h.catalog.StylesFor(mode) {
			cfg, err := h.catalog.Lookup(mode, style)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			view.Styles = append(view.Styles, styleView{Style: style, Label: cfg.Label, Description: cfg.Description})
		}
		out = append(out, view)
	}
	c.JSON(http.StatusOK, gin.H{"modes": out})
}

type generateRequest struct {
	Content string `json:"content"`
	Mode    string `json:"mode"`
	Style   string `json:"style"`
}

// generate is the stateless single-shot entry point.
func (h *Handler) generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}
	mode, style, err := h.parsePair(req.Mode, req.Style)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res := h.generator.Dispatch(c.Request.Context(), req.Content, mode, style)
	c.JSON(http.StatusOK, gin.H{
		"text":  res.Text,
		"mode":  mode,
		"style": style,
	})
}

// parsePair resolves wire names and checks that the style belongs to the
// mode. An empty style selects the mode default.
func (h *Handler) parsePair(rawMode, rawStyle string) (models.Mode, models.Style, error) {
	mode, err := prompt.ParseMode(rawMode)
	if err != nil {
		return "", "", err
	}
	if strings.TrimSpace(rawStyle) == "" {
		style, err := h.catalog.DefaultStyle(mode)
		return mode, style, err
	}
	style, err := prompt.ParseStyle(rawStyle)
	if err != nil {
		return "", "", err
	}
	if _, err := h.catalog.Lookup(mode, style); err != nil {
		return "", "", err
	}
	return mode, style, nil
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, assistant.ErrSessionNotFound), errors.Is(err, assistant.ErrMessageNotFound):
		return http.StatusNotFound
	case errors.Is(err, prompt.ErrConfigNotFound),
		errors.Is(err, assistant.ErrEmptyContent),
		errors.Is(err, assistant.ErrInvalidFeedback),
		errors.Is(err, worker.ErrEmptyContent):
		return http.StatusBadRequest
	case errors.Is(err, assistant.ErrFeedbackNotAllowed), errors.Is(err, worker.ErrTurnCanceled):
		return http.StatusConflict
	case errors.Is(err, worker.ErrDispatcherBusy):
		return http.StatusTooManyRequests
	case errors.Is(err, worker.ErrDispatcherClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
