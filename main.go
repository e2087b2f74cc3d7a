package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"poselink/config"
	"poselink/handlers"
	"poselink/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found")
	}

	// Initialize structured logger
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(logHandler))

	// Load configuration
	cfg := config.LoadConfig()

	// Wire up services. Everything is in-memory; state is lost on restart.
	metrics := services.NewConnectionMetrics()
	hub := services.NewConnectionHub()
	registry := services.NewSessionRegistry(cfg.SessionRetention, metrics)
	relay := services.NewSignalRelay(registry, hub, metrics)
	logBuffer := services.NewLogIngestionBuffer(0)
	notifier := services.NewNotificationDispatcher(
		cfg.NotifyMinInterval,
		services.NewTelegramSender(cfg.TelegramBotToken, cfg.TelegramChatID),
		metrics,
	)
	tokenClient := services.NewTokenClient(cfg.TokenProviderURL, cfg.TokenProviderKey)

	// Start background sweep for stale waiting sessions
	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	defer cancelSweep()
	registry.StartSweep(sweepCtx, cfg.SweepInterval)

	// Handlers
	realtime := handlers.NewRealtimeHandler(hub, registry, relay, logBuffer, notifier, metrics)
	logsHandler := handlers.NewLogsHandler(logBuffer)
	healthHandler := handlers.NewHealthHandler(registry, hub, metrics)
	tokenHandler := handlers.NewTokenHandler(tokenClient)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			slog.Error("Request error", "error", err, "status", code)
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(recover.New())

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path}\n",
	}))

	// Realtime channel
	app.Get("/ws", handlers.WebSocketUpgrade, websocket.New(realtime.Handle))

	// Token issuance
	app.Post("/token-issue", tokenHandler.Issue)

	// Observability
	app.Get("/health", healthHandler.Health)
	app.Get("/metrics", healthHandler.Metrics)
	app.Get("/api/logs", logsHandler.Query)
	app.Delete("/api/logs", logsHandler.Clear)

	// Start server
	port := cfg.Port
	slog.Info("Server starting", "port", port)
	if err := app.Listen(":" + port); err != nil {
		slog.Error("Server failed to start", "error", err)
		os.Exit(1)
	}
}
