package bootstrap

import (
	"log/slog"

	"github.com/harithebeast/multimodal-ai/internal/agentsession"
	"github.com/harithebeast/multimodal-ai/internal/detector"
	"github.com/harithebeast/multimodal-ai/internal/gateway"
	"github.com/harithebeast/multimodal-ai/internal/health"
	"github.com/harithebeast/multimodal-ai/internal/realtime"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

func ProvideTokenService(cfg *Config) *gateway.TokenService {
	return gateway.NewTokenService(cfg.LiveKitAPIKey, cfg.LiveKitAPISecret, cfg.LiveKitURL)
}

func ProvideRoomStore(redisClient *redis.Client) *gateway.RoomStore {
	return gateway.NewRoomStore(redisClient)
}

func ProvideGatewayHandler(
	tokens *gateway.TokenService,
	rooms *gateway.RoomStore,
	det *detector.Detector,
	log *slog.Logger,
) *gateway.Handler {
	return gateway.NewHandler(gateway.HandlerConfig{
		Tokens:   tokens,
		Rooms:    rooms,
		Detector: det,
		Log:      log,
	})
}

func ProvideHealthHandler(cfg *Config, redisClient *redis.Client, sessions *agentsession.Manager) *health.Handler {
	return health.NewHandler(redisClient, sessions, cfg.Version)
}

func RegisterRoutes(
	e *echo.Echo,
	gatewayHandler *gateway.Handler,
	healthHandler *health.Handler,
	realtimeHandler *realtime.Handler,
) {
	gatewayHandler.RegisterRoutes(e)
	healthHandler.RegisterRoutes(e)
	realtimeHandler.RegisterRoutes(e.Group(""))
}

var HandlersModule = fx.Options(
	fx.Provide(
		ProvideTokenService,
		ProvideRoomStore,
		ProvideGatewayHandler,
		ProvideHealthHandler,
	),
	fx.Invoke(RegisterRoutes),
)
