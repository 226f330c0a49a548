package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/huddle-backend/internal/http/handlers"
	httpMW "github.com/yungbote/huddle-backend/internal/http/middleware"
	"github.com/yungbote/huddle-backend/internal/observability"
	"github.com/yungbote/huddle-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	ServiceName string
	Metrics     *observability.Metrics
	CORSOrigins []string

	AuthMiddleware    *httpMW.AuthMiddleware
	AssistantHandler  *httpH.AssistantHandler
	RoomEventsHandler *httpH.RoomEventsHandler
	HealthHandler     *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.RequireAuth())
	}
	{
		if cfg.AssistantHandler != nil {
			api.POST("/ai/chat", cfg.AssistantHandler.Chat)
		}
		if cfg.RoomEventsHandler != nil {
			api.GET("/rooms/:id/events", cfg.RoomEventsHandler.Stream)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "route not found", "code": "not_found"}})
	})
	return r
}
