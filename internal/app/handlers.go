package app

import (
	"context"

	"gorm.io/gorm"

	httpH "github.com/yungbote/huddle-backend/internal/http/handlers"
	httpMW "github.com/yungbote/huddle-backend/internal/http/middleware"
	"github.com/yungbote/huddle-backend/internal/platform/logger"
)

type Handlers struct {
	Auth       *httpMW.AuthMiddleware
	Assistant  *httpH.AssistantHandler
	RoomEvents *httpH.RoomEventsHandler
	Health     *httpH.HealthHandler
}

func wireHandlers(log *logger.Logger, cfg Config, db *gorm.DB, r Repos, s Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Auth:       httpMW.NewAuthMiddleware(log, cfg.JWTSecretKey, cfg.JWTIssuer),
		Assistant:  httpH.NewAssistantHandler(log, s.Assistant),
		RoomEvents: httpH.NewRoomEventsHandler(log, s.Hub, r.Room, r.Member),
		Health: httpH.NewHealthHandler(map[string]httpH.Pinger{
			"postgres": func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
		}),
	}
}
