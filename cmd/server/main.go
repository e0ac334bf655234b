package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/universalmedia/api/internal/client"
	"github.com/universalmedia/api/internal/config"
	"github.com/universalmedia/api/internal/handler"
	"github.com/universalmedia/api/internal/service"
	"github.com/universalmedia/api/internal/store"
	"github.com/universalmedia/api/internal/worker"
	ws "github.com/universalmedia/api/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize validator
	validate := validator.New()

	// Initialize engine client
	engine := client.NewYtDlpClient(cfg)

	// Initialize task store and WebSocket hub
	taskStore := store.New()
	hub := ws.NewHub()
	go hub.Run()

	// Initialize worker pool
	pollInterval := time.Duration(cfg.Downloads.PollIntervalMS) * time.Millisecond
	downloadWorker := worker.New(taskStore, engine, hub, cfg.Downloads.MaxConcurrent, pollInterval)

	// Initialize services
	downloadService := service.NewDownloadService(taskStore, downloadWorker, &cfg.Downloads)
	mediaService := service.NewMediaService(engine, &cfg.Downloads)

	// Initialize handlers
	downloadsHandler := handler.NewDownloadsHandler(downloadService, validate)
	mediaHandler := handler.NewMediaHandler(mediaService, validate)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// API routes
	api := app.Group("/api")

	// Synchronous media tools
	media := api.Group("/media")
	media.Post("/check-support", mediaHandler.CheckSupport)
	media.Post("/metadata", mediaHandler.Metadata)
	media.Post("/download/video", mediaHandler.DownloadVideo)
	media.Post("/download/audio", mediaHandler.DownloadAudio)
	media.Post("/subtitles", mediaHandler.Subtitles)

	// Background download tasks
	downloads := api.Group("/downloads")
	downloads.Post("/start", downloadsHandler.Start)
	downloads.Get("/status/:taskId", downloadsHandler.Status)
	downloads.Get("/", downloadsHandler.List)
	downloads.Post("/cancel/:taskId", downloadsHandler.Cancel)
	downloads.Post("/check", downloadsHandler.Check)
	downloads.Post("/wait", downloadsHandler.Wait)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/tasks/:taskId", websocket.New(func(c *websocket.Conn) {
		taskID := c.Params("taskId")
		hub.HandleConnection(c, taskID)
	}))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
