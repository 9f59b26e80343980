package main

import (
	"context"
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
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/whazzaudio/api/internal/auth"
	"github.com/whazzaudio/api/internal/config"
	"github.com/whazzaudio/api/internal/enhance"
	"github.com/whazzaudio/api/internal/handler"
	"github.com/whazzaudio/api/internal/middleware"
	"github.com/whazzaudio/api/internal/service"
	"github.com/whazzaudio/api/internal/store"
	ws "github.com/whazzaudio/api/internal/websocket"
	"github.com/whazzaudio/api/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize stores
	jobStore := store.NewJobStore(redisClient)
	userStore := store.NewUserStore(redisClient)
	guestStore := store.NewGuestStore(redisClient)
	usageStore := store.NewUsageStore(redisClient)

	// Initialize workers
	issuer := auth.NewTokenIssuer(cfg.JWT.Secret)
	runner := &enhance.CommandRunner{
		Command:     cfg.Processing.Command,
		ModelName:   cfg.Processing.ModelName,
		SoftTimeout: cfg.Processing.SoftTimeout,
	}
	processWorker := worker.NewProcessWorker(cfg, jobStore, usageStore, runner, hub)
	cleanupWorker := worker.NewCleanupWorker(jobStore, guestStore)

	// Initialize services
	audioService := service.NewAudioService(cfg, jobStore, guestStore, usageStore, asynqClient)
	usageService := service.NewUsageService(cfg, usageStore)
	guestService := service.NewGuestService(cfg, guestStore, jobStore, usageStore, issuer)
	authService := service.NewAuthService(cfg, userStore, guestStore, issuer)
	adminService := service.NewAdminService(userStore, guestStore, jobStore, usageStore, usageService, cleanupWorker)

	// Initialize handlers
	audioHandler := handler.NewAudioHandler(audioService)
	usageHandler := handler.NewUsageHandler(usageService)
	guestHandler := handler.NewGuestHandler(guestService)
	authHandler := handler.NewAuthHandler(authService, validate)
	adminHandler := handler.NewAdminHandler(adminService)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(issuer, userStore, guestStore, usageStore)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    int(cfg.Upload.MaxFileSizeMB+1) * 1024 * 1024,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization," + middleware.HeaderGuestID,
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// API routes
	api := app.Group("/api", authMiddleware.Resolve())

	// Auth routes
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)
	authGroup.Post("/refresh", authHandler.Refresh)
	authGroup.Get("/me", authMiddleware.RequireUser(), authHandler.Me)

	// Guest session routes
	guest := api.Group("/guest")
	guest.Post("/session", guestHandler.CreateSession)
	guest.Get("/session", guestHandler.GetSession)
	guest.Delete("/session", guestHandler.DeleteSession)

	// Audio routes
	audio := api.Group("/audio")
	audio.Post("/upload", rateLimiter.UploadLimit(cfg.RateLimit.UploadsPerHour), audioHandler.Upload)
	audio.Get("/status/:jobId", audioHandler.Status)
	audio.Get("/download/:jobId", audioHandler.Download)

	// Usage routes
	usage := api.Group("/usage", authMiddleware.RequireAuthenticated())
	usage.Get("/summary", usageHandler.Summary)
	usage.Get("/limits", usageHandler.Limits)

	// Admin routes
	admin := api.Group("/admin", authMiddleware.RequireAdmin())
	admin.Get("/users", adminHandler.ListUsers)
	admin.Get("/users/:id", adminHandler.GetUser)
	admin.Patch("/users/:id/active", adminHandler.SetUserActive)
	admin.Delete("/users/:id", adminHandler.DeleteUser)
	admin.Get("/guests", adminHandler.ListGuests)
	admin.Get("/jobs", adminHandler.ListJobs)
	admin.Get("/stats", adminHandler.Stats)
	admin.Post("/cleanup", adminHandler.RunCleanup)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID)
	}))

	// Start Asynq worker server and cleanup scheduler
	go startWorkerServer(cfg, redisOpt, processWorker, cleanupWorker)
	go startScheduler(cfg, redisOpt)

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

func startWorkerServer(cfg *config.Config, redisOpt asynq.RedisClientOpt, processWorker *worker.ProcessWorker, cleanupWorker *worker.CleanupWorker) {
	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Processing.Concurrency,
			Queues: map[string]int{
				worker.QueueAudio:       8,
				worker.QueueMaintenance: 2,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(worker.TaskTypeProcessAudio, processWorker.ProcessTask)
	mux.HandleFunc(worker.TaskTypeCleanup, cleanupWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func startScheduler(cfg *config.Config, redisOpt asynq.RedisClientOpt) {
	scheduler := asynq.NewScheduler(redisOpt, nil)

	task := worker.NewCleanupTask()
	if _, err := scheduler.Register(cfg.Cleanup.Schedule, task, asynq.Queue(worker.QueueMaintenance)); err != nil {
		log.Printf("Failed to register cleanup schedule: %v", err)
		return
	}

	if err := scheduler.Run(); err != nil {
		log.Printf("Asynq scheduler error: %v", err)
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
