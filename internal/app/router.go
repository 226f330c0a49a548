package app

import (
	apphttp "github.com/yungbote/huddle-backend/internal/http"
	"github.com/yungbote/huddle-backend/internal/observability"
	"github.com/yungbote/huddle-backend/internal/platform/logger"
)

func wireServer(log *logger.Logger, cfg Config, h Handlers, metrics *observability.Metrics) *apphttp.Server {
	log.Info("Wiring router...")
	return apphttp.NewServer(apphttp.RouterConfig{
		Log:               log,
		ServiceName:       cfg.ServiceName,
		Metrics:           metrics,
		CORSOrigins:       cfg.CORSOrigins,
		AuthMiddleware:    h.Auth,
		AssistantHandler:  h.Assistant,
		RoomEventsHandler: h.RoomEvents,
		HealthHandler:     h.Health,
	})
}
