package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/vidsplit-go/api/handlers"
	"github.com/yourusername/vidsplit-go/api/middleware"
	"github.com/yourusername/vidsplit-go/pkg/logger"
	"go.uber.org/zap"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// RouterDeps holds what the HTTP layer needs
type RouterDeps struct {
	Sessions    handlers.SessionService
	YTDLP       handlers.ToolChecker
	MultiLogger *logger.MultiLogger
	Logger      *zap.Logger
}

// SetupRouter sets up the HTTP router
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(deps.Logger))
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.CORS())
	if deps.MultiLogger != nil {
		router.Use(middleware.ErrorLogger(deps.MultiLogger))
	}

	healthHandler := handlers.NewHealthHandler(deps.Sessions, deps.YTDLP, Version)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	{
		sessionHandler := handlers.NewSessionHandler(deps.Sessions, deps.Logger)
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", sessionHandler.Submit)
			sessions.GET("", sessionHandler.List)
			sessions.GET("/:requester", sessionHandler.Get)
			sessions.POST("/:requester/cancel", sessionHandler.Cancel)
		}
		v1.POST("/plan", sessionHandler.Plan)

		if deps.MultiLogger != nil {
			logHandler := handlers.NewLogHandler(deps.MultiLogger.GetLogsDir())
			streamHandler := handlers.NewLogWebSocketHandler(deps.MultiLogger.GetLogsDir(), deps.Logger)
			logs := v1.Group("/logs")
			{
				logs.GET("/categories", logHandler.GetCategories)
				logs.GET("/:category", logHandler.GetLogs)
				logs.GET("/:category/search", logHandler.SearchLogs)
				logs.GET("/:category/export", logHandler.ExportLogs)
				logs.GET("/:category/stream", streamHandler.Stream)
			}
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
