package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron"

	config "github.com/postpilot/dispatch/configs"
	"github.com/postpilot/dispatch/internal/api/handlers"
	"github.com/postpilot/dispatch/internal/api/middleware"
	"github.com/postpilot/dispatch/internal/gate"
	"github.com/postpilot/dispatch/internal/guardrail"
	"github.com/postpilot/dispatch/internal/idempotency"
	"github.com/postpilot/dispatch/internal/publisher"
	"github.com/postpilot/dispatch/internal/ratelimit"
	"github.com/postpilot/dispatch/internal/repository"
	"github.com/postpilot/dispatch/internal/service"
	"github.com/postpilot/dispatch/internal/telemetry"
	"github.com/postpilot/dispatch/internal/trace"
	"github.com/postpilot/dispatch/internal/transport"
	"github.com/postpilot/dispatch/internal/worker"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	var ledger idempotency.Store
	if cfg.RedisURI != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisURI})
		defer redisClient.Close()
		ledger = idempotency.NewRedisStore(redisClient)
	} else {
		log.Println("Warning: REDIS_URI not set, using in-process idempotency ledger")
		ledger = idempotency.NewMemoryStore()
	}

	loc, err := time.LoadLocation(cfg.PostingTimezone)
	if err != nil {
		log.Fatalf("Invalid posting timezone: %v", err)
	}

	postingGate, err := gate.New(cfg.PostingWindowStart, cfg.PostingWindowEnd, loc, cfg.DailyLimits, cfg.DefaultDailyLimit)
	if err != nil {
		log.Fatalf("Invalid posting window: %v", err)
	}

	engine := guardrail.NewEngine(cfg.BannedWords, cfg.BannedTags, cfg.RiskLevel)
	limiters := ratelimit.NewRegistry(cfg.RateBudgets, cfg.DefaultRateBudget)

	jobRepo := repository.NewJobStore(db)
	contentRepo := repository.NewContentStore(db)
	accountRepo := repository.NewAccountDirectory(db)
	historyRepo := repository.NewPostingHistoryRepository(db)

	transports := transport.NewRegistry(transport.RegistryConfig{
		Limiters:  limiters,
		Directory: accountRepo,
		SecretKey: []byte(cfg.SecretKey),
		DryRun:    cfg.DryRun,
	})

	sink := trace.NewSlogSink()

	orchOpts := []publisher.Option{publisher.WithHistory(historyRepo)}
	var mediaService service.MediaService
	if cfg.R2.BucketName != "" {
		mediaService, err = service.NewMediaService(context.Background(), service.R2Settings{
			AccountID:  cfg.R2.AccountID,
			AccessKey:  cfg.R2.AccessKey,
			SecretKey:  cfg.R2.SecretKey,
			BucketName: cfg.R2.BucketName,
		})
		if err != nil {
			log.Fatalf("Failed to configure media storage: %v", err)
		}
		orchOpts = append(orchOpts, publisher.WithMediaResolver(mediaService))
	}

	orchestrator := publisher.New(contentRepo, engine, postingGate, ledger, transports, sink, orchOpts...)
	w := worker.New(jobRepo, orchestrator, worker.WithSink(sink))

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		MaxAge:       3600,
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/metrics", adaptor.HTTPHandler(telemetry.Handler()))

	authMiddleware := middleware.NewAuthMiddleware(cfg)
	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	job := handlers.NewJobHandler(w, postingGate, limiters, historyRepo)
	api.Post("/jobs", job.Enqueue)
	api.Get("/jobs", job.ListJobs)
	api.Post("/jobs/:id/run", job.RunNow)
	api.Post("/jobs/:id/reschedule", job.Reschedule)
	api.Post("/jobs/:id/cancel", job.Cancel)
	api.Post("/tick", job.Tick)
	api.Get("/stats", job.GetUsageStats)
	api.Get("/history", job.GetHistory)

	if mediaService != nil {
		media := handlers.NewMediaHandler(mediaService)
		api.Post("/media/upload", media.Upload)
	}

	c := cron.New()
	c.AddFunc(fmt.Sprintf("@every %s", cfg.TickInterval), func() {
		if _, err := w.Tick(context.Background()); err != nil {
			log.Printf("Tick failed: %v", err)
		}
	})
	c.Start()

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("Server is running on http://localhost:%s", cfg.Port)

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	log.Println("Server shutdown complete.")
}
