package routes

import (
	"context"

	"lifeline/config"
	"lifeline/controllers"
	"lifeline/database"
	"lifeline/middleware"
	"lifeline/models"
	"lifeline/repositories"
	"lifeline/services"
	"lifeline/utils"
	"lifeline/websocket"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
)

const geocoderUserAgent = "lifeline-emergency/1.0"

// Controllers groups every HTTP handler set
type Controllers struct {
	Emergency *controllers.EmergencyController
	Contact   *controllers.ContactController
	WebSocket *controllers.WebSocketController
	Health    *controllers.HealthController
}

// SetupRoutes wires repositories, services and controllers and returns the
// router together with the coordinator registry the caller must shut down.
func SetupRoutes(cfg *config.Config, db *mongo.Database, redisClient *redis.Client, hub *websocket.Hub) (*gin.Engine, *services.CoordinatorRegistry, error) {
	router := gin.New()

	// Repositories
	contactRepo := repositories.NewContactRepository(db)
	emergencyRepo := repositories.NewEmergencyRepository(db)

	// Services
	directory := services.NewContactDirectory(contactRepo, cfg.ContactCacheTTL)
	dispatcher := services.NewNotificationDispatcher(config.InitializeChannelSenders(cfg))

	metricsSink, err := services.NewMetricsSink(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, nil, err
	}
	sink := services.MultiSink{
		services.NewLogSink(logrus.StandardLogger()),
		metricsSink,
		services.NewRedisSink(redisClient),
		hub,
	}

	geocoder, err := initializeGeocoder(cfg)
	if err != nil {
		return nil, nil, err
	}

	registry := services.NewCoordinatorRegistry(coordinatorFactory(cfg, hub, geocoder, directory, dispatcher, sink, emergencyRepo))

	// Controllers
	jwtService := utils.NewJWTService(cfg.JWTSecret, "lifeline")
	authMiddleware := middleware.NewAuthMiddleware(jwtService)

	ctrls := &Controllers{
		Emergency: controllers.NewEmergencyController(registry, emergencyRepo),
		Contact:   controllers.NewContactController(directory),
		WebSocket: controllers.NewWebSocketController(hub, authMiddleware),
		Health: controllers.NewHealthController(map[string]controllers.HealthChecker{
			"mongodb": database.HealthCheck,
			"redis": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		}, registry),
	}

	setupGlobalMiddleware(router, cfg)
	setupPublicRoutes(router, ctrls)
	setupAuthenticatedRoutes(router, ctrls, authMiddleware, cfg, redisClient)
	SetupWebSocketRoutes(router, ctrls.WebSocket, redisClient)

	return router, registry, nil
}

func coordinatorFactory(
	cfg *config.Config,
	hub *websocket.Hub,
	geocoder services.ReverseGeocoder,
	directory *services.ContactDirectory,
	dispatcher services.Dispatcher,
	sink services.EventSink,
	history services.HistoryRecorder,
) services.CoordinatorFactory {
	coordinatorConfig := services.DefaultCoordinatorConfig()
	coordinatorConfig.LocationTimeout = cfg.LocationTimeout
	coordinatorConfig.LocationFreshness = cfg.LocationFreshness
	coordinatorConfig.DirectoryTimeout = cfg.DirectoryTimeout
	coordinatorConfig.DefaultChannels = cfg.DefaultChannels
	coordinatorConfig.AutoResetAfter = cfg.AutoResetAfter

	locationConfig := services.DefaultLocationProviderConfig()
	locationConfig.FreshnessWindow = cfg.LocationFreshness
	locationConfig.HistorySize = cfg.LocationHistory

	return func(principal models.Principal) *services.EmergencyCoordinator {
		return services.NewEmergencyCoordinator(principal, services.CoordinatorDeps{
			Locator:    services.NewLocationProvider(principal.UserID, hub, geocoder, locationConfig, nil),
			Contacts:   directory.ForUser(principal.UserID),
			Dispatcher: dispatcher,
			Sink:       sink,
			History:    history,
		}, coordinatorConfig)
	}
}

func initializeGeocoder(cfg *config.Config) (services.ReverseGeocoder, error) {
	if cfg.GeocoderURL == "" {
		logrus.Info("Reverse geocoding disabled, addresses fall back to coordinates")
		return nil, nil
	}
	return services.NewCachedGeocoder(services.NewNominatimGeocoder(cfg.GeocoderURL, geocoderUserAgent), cfg.GeocodeCacheSize)
}

func setupGlobalMiddleware(router *gin.Engine, cfg *config.Config) {
	router.Use(middleware.NewErrorHandler(cfg.Environment, logrus.StandardLogger()).Handle())
	router.Use(middleware.DefaultLoggerMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.Environment))
	router.NoRoute(middleware.NoRoute)
}

// Public routes (no authentication required)
func setupPublicRoutes(router *gin.Engine, ctrls *Controllers) {
	router.GET("/health", ctrls.Health.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Authenticated routes (requires valid JWT token)
func setupAuthenticatedRoutes(router *gin.Engine, ctrls *Controllers, auth *middleware.AuthMiddleware, cfg *config.Config, redisClient *redis.Client) {
	api := router.Group("/api/v1")
	api.Use(auth.RequireAuth())
	api.Use(middleware.DefaultRateLimit(redisClient))

	SetupEmergencyRoutes(api, ctrls.Emergency, ctrls.Contact, redisClient, cfg.EmergencyRateLimit)
	SetupResponderRoutes(api, ctrls.Emergency, auth)
}
