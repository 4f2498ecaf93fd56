package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/vidsplit-go/internal/app"
	"github.com/yourusername/vidsplit-go/internal/domain"
	"go.uber.org/zap"
)

// SessionService is the part of the coordinator exposed over HTTP
type SessionService interface {
	Submit(ctx context.Context, req app.SubmitRequest) (*app.SessionHandle, error)
	Cancel(requesterID string) error
	Get(requesterID string) (*domain.Session, error)
	List() []domain.Session
	Plan(ctx context.Context, url string) (*app.PlanResult, error)
}

// SessionHandler handles session-related HTTP requests
type SessionHandler struct {
	sessions SessionService
	logger   *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions SessionService, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// SubmitSessionRequest represents a request to start a session
type SubmitSessionRequest struct {
	RequesterID string `json:"requester_id" binding:"required"`
	URL         string `json:"url" binding:"required"`
	Wait        bool   `json:"wait,omitempty"`
}

// SubmitSessionResponse is returned when a session is accepted
type SubmitSessionResponse struct {
	SessionID   string          `json:"session_id"`
	RequesterID string          `json:"requester_id"`
	Outcome     *domain.Outcome `json:"outcome,omitempty"`
}

// PlanRequest represents a dry-run request
type PlanRequest struct {
	URL string `json:"url" binding:"required"`
}

// Submit handles POST /api/v1/sessions
func (h *SessionHandler) Submit(c *gin.Context) {
	var req SubmitSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	handle, err := h.sessions.Submit(c.Request.Context(), app.SubmitRequest{
		RequesterID: req.RequesterID,
		URL:         req.URL,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := SubmitSessionResponse{
		SessionID:   handle.SessionID,
		RequesterID: handle.RequesterID,
	}

	if !req.Wait {
		c.JSON(http.StatusAccepted, resp)
		return
	}

	outcome, err := handle.Wait(c.Request.Context())
	if err != nil {
		// client went away; the session keeps running
		c.JSON(http.StatusAccepted, resp)
		return
	}
	resp.Outcome = outcome
	c.JSON(http.StatusOK, resp)
}

// List handles GET /api/v1/sessions
func (h *SessionHandler) List(c *gin.Context) {
	sessions := h.sessions.List()
	c.JSON(http.StatusOK, gin.H{
		"count":    len(sessions),
		"sessions": sessions,
	})
}

// Get handles GET /api/v1/sessions/:requester
func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.sessions.Get(c.Param("requester"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// Cancel handles POST /api/v1/sessions/:requester/cancel
func (h *SessionHandler) Cancel(c *gin.Context) {
	requesterID := c.Param("requester")
	if err := h.sessions.Cancel(requesterID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "cancellation requested"})
}

// Plan handles POST /api/v1/plan
func (h *SessionHandler) Plan(c *gin.Context) {
	var req PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plan, err := h.sessions.Plan(c.Request.Context(), req.URL)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *SessionHandler) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Session request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{
		"error":   err.Error(),
		"message": domain.UserMessage(err),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnsupportedSource):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrAlreadyActive):
		return http.StatusConflict
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrMetadataProbeFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
