package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ToolChecker reports the version of an external binary
type ToolChecker interface {
	Version(ctx context.Context) (string, error)
}

// HealthHandler handles health check requests
type HealthHandler struct {
	sessions SessionService
	ytdlp    ToolChecker
	version  string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(sessions SessionService, ytdlp ToolChecker, version string) *HealthHandler {
	return &HealthHandler{
		sessions: sessions,
		ytdlp:    ytdlp,
		version:  version,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	ActiveSessions int    `json:"active_sessions"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:         "ok",
		Version:        h.version,
		ActiveSessions: len(h.sessions.List()),
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	version, err := h.ytdlp.Version(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "yt-dlp unavailable: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready", "ytdlp": version})
}
