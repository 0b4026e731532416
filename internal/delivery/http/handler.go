package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pricewatch/crawler/internal/domain"
	"github.com/pricewatch/crawler/internal/usecase"
	"go.uber.org/zap"
)

// CheckService is the part of the orchestrator the handlers drive
type CheckService interface {
	Start(ctx context.Context, productName string) (string, error)
	Snapshot() usecase.Snapshot
	Close()
	SubmitOverride(storeName, url string)
}

// AdapterLister lists the module ids that have an adapter
type AdapterLister interface {
	Modules() []string
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	checks   CheckService
	adapters AdapterLister
	hub      *Hub
	logger   *zap.Logger
}

// StartCheckRequest is the body of POST /api/v1/checks
type StartCheckRequest struct {
	ProductName string `json:"productName" binding:"required"`
}

// OverrideRequest is the body of POST /api/v1/checks/overrides
type OverrideRequest struct {
	Store string `json:"store" binding:"required"`
	URL   string `json:"url"`
}

// NewHandler creates a new HTTP handler. checks may be nil, in which case the
// check endpoints answer 503.
func NewHandler(checks CheckService, adapters AdapterLister, hub *Hub, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		checks:   checks,
		adapters: adapters,
		hub:      hub,
		logger:   logger.Named("http"),
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "pricewatch-crawler",
		"version": "1.0.0",
	})
}

// StartCheck tears down the running check and starts one for the posted product name
func (h *Handler) StartCheck(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	var req StartCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "productName is required"})
		return
	}

	sessionID, err := h.checks.Start(c.Request.Context(), req.ProductName)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"sessionId": sessionID})
}

// GetCheck returns the current session snapshot
func (h *Handler) GetCheck(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	c.JSON(http.StatusOK, h.checks.Snapshot())
}

// CloseCheck tears the current session down
func (h *Handler) CloseCheck(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	h.checks.Close()
	c.Status(http.StatusNoContent)
}

// SubmitOverride records an operator URL for one store and prices it in the background
func (h *Handler) SubmitOverride(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	var req OverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "store is required"})
		return
	}

	if h.checks.Snapshot().SessionID == "" {
		h.respondError(c, domain.ErrNoSession)
		return
	}

	h.checks.SubmitOverride(req.Store, req.URL)
	c.JSON(http.StatusAccepted, gin.H{"store": req.Store, "url": req.URL})
}

// StreamEvents re-emits orchestrator events as server-sent events. The first
// event is a snapshot of the current session.
func (h *Handler) StreamEvents(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	if h.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream not configured"})
		return
	}

	events, unsubscribe := h.hub.Subscribe()
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("snapshot", h.checks.Snapshot())
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case event, ok := <-events:
			if !ok {
				h.logger.Debug("event subscriber dropped")
				return false
			}
			c.SSEvent(string(event.Type), event)
			return true
		}
	})
}

// ListAdapters returns the module ids the crawler can resolve itself
func (h *Handler) ListAdapters(c *gin.Context) {
	modules := []string{}
	if h.adapters != nil {
		modules = h.adapters.Modules()
	}
	c.JSON(http.StatusOK, gin.H{"modules": modules})
}

func (h *Handler) ready(c *gin.Context) bool {
	if h.checks == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "check engine not configured"})
		return false
	}
	return true
}

// respondError maps domain errors to status codes
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNoSession):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
