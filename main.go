package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lifeline/config"
	"lifeline/database"
	"lifeline/routes"
	"lifeline/websocket"
	"lifeline/workers"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := config.Load()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	setupLogger(cfg)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logrus.Fatal("Failed to connect to database: ", err)
	}
	defer database.Disconnect()

	redis := config.InitRedis(cfg)
	defer redis.Close()

	// Device connections double as the position source
	hub := websocket.NewHub()
	go hub.Run()

	router, registry, err := routes.SetupRoutes(cfg, db, redis, hub)
	if err != nil {
		logrus.Fatal("Failed to set up routes: ", err)
	}

	cleanupWorker := workers.NewCleanupWorker(registry, workers.CleanupWorkerConfig{
		CoordinatorIdleTTL: cfg.CoordinatorIdleTTL,
		EvictionSchedule:   cfg.CoordinatorCleanupSched,
		EnableStatsLogging: true,
	})
	if err := cleanupWorker.Start(); err != nil {
		logrus.Fatal("Failed to start cleanup worker: ", err)
	}

	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		logrus.Info("🚀 Lifeline emergency coordinator starting on port ", cfg.Port)
		logrus.Info("📱 Device WebSocket endpoint: /ws")
		logrus.Info("📈 Metrics: /metrics")
		logrus.Info("💖 Health Check: /health")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatal("Failed to start server: ", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Error("Server forced to shutdown: ", err)
	}

	cleanupWorker.Stop()
	registry.Shutdown()
	hub.Shutdown()

	logrus.Info("✅ Server shutdown complete")
}

func setupLogger(cfg *config.Config) {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	if cfg.Environment == "development" {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}
