package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/soundforge/studio/internal/client"
	"github.com/soundforge/studio/internal/config"
	"github.com/soundforge/studio/internal/generator"
	"github.com/soundforge/studio/internal/handler"
	"github.com/soundforge/studio/internal/history"
	"github.com/soundforge/studio/internal/intake"
	"github.com/soundforge/studio/internal/middleware"
	"github.com/soundforge/studio/internal/service"
	"github.com/soundforge/studio/internal/tracker"
	ws "github.com/soundforge/studio/internal/websocket"
	"github.com/soundforge/studio/internal/worker"
	"github.com/soundforge/studio/pkg/response"
)

// @title          SoundForge Studio API
// @version        1.0
// @description    Backend API for AI music generation: submit prompts, follow job progress, browse history.
// @host           localhost:8000
// @BasePath       /
// @schemes        http https
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis is only needed by the components configured to use it
	var redisClient *redis.Client
	if cfg.NeedsRedis() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("Warning: Redis not available: %v", err)
		}
	}

	// History
	store, closer, err := history.OpenStore(ctx, cfg.History, redisClient, isDebug)
	if err != nil {
		log.Fatalf("Failed to open history store: %v", err)
	}
	defer closer.Close()

	var historyOpts []history.Option
	if cfg.History.SeedDefaults {
		historyOpts = append(historyOpts, history.WithSeed(history.DefaultSeed(time.Now())))
	}
	musicHistory := history.New(store, historyOpts...)
	if err := musicHistory.Load(ctx); err != nil {
		log.Fatalf("Failed to load history: %v", err)
	}
	log.Printf("History loaded from %s backend: %d tracks", cfg.History.Backend, musicHistory.Len())

	// External clients
	sunoClient := client.NewSunoClient(&cfg.Suno)

	// R2 client (optional - continues if not configured)
	var storage client.StorageClient
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		r2Client, err := client.NewR2Client(&cfg.R2)
		if err != nil {
			log.Printf("Warning: R2 client not initialized: %v", err)
		} else {
			storage = r2Client
		}
	} else {
		log.Println("Info: R2 storage not configured, audio stays at its source URL")
	}

	gen := buildGenerator(cfg, sunoClient, storage)

	// Tracker and dispatch
	trackerOpts := []tracker.Option{
		tracker.WithConcurrency(cfg.Jobs.Concurrency),
		tracker.WithTimeout(cfg.Jobs.Timeout),
	}
	var asynqClient *asynq.Client
	if cfg.Jobs.Dispatcher == "asynq" {
		asynqClient = asynq.NewClient(redisOpt(cfg))
		defer asynqClient.Close()
		trackerOpts = append(trackerOpts, tracker.WithDispatcher(worker.NewAsynqDispatcher(asynqClient)))
	}
	jobTracker := tracker.New(gen, musicHistory, trackerOpts...)

	var records service.JobRecords
	if cfg.Jobs.Records == "redis" && redisClient != nil {
		records = service.NewRedisJobRecords(redisClient, cfg.Jobs.RecordTTL)
	} else {
		records = service.NewMemoryJobRecords(cfg.Jobs.RecordTTL)
	}

	// Initialize validator
	validate := validator.New()
	jobIntake, err := intake.New(validate)
	if err != nil {
		log.Fatalf("Failed to initialize intake: %v", err)
	}

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run(ctx)

	// Services and handlers
	generationService := service.NewGenerationService(jobIntake, jobTracker, musicHistory, records, hub, storage)

	routes := &handler.Routes{
		Generation: handler.NewGenerationHandler(generationService, validate),
		History:    handler.NewHistoryHandler(generationService, validate),
		Stream:     handler.NewStreamHandler(generationService, hub),
	}
	if cfg.RateLimit.Enabled && redisClient != nil {
		routes.SubmitLimit = middleware.NewRateLimiter(redisClient).GenerateLimit(cfg.RateLimit.GeneratePerHour)
	}

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    1 * 1024 * 1024,
	})

	// Global middleware
	app.Use(recover.New())
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body} ${reqHeaders}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"generator": cfg.Generator.Backend,
				"suno":      sunoClient.IsConfigured(),
				"r2":        storage != nil,
				"history":   cfg.History.Backend,
				"busy":      jobTracker.IsBusy(),
			},
		})
	})

	routes.Register(app)

	// Start Asynq worker server
	var workerSrv *asynq.Server
	if asynqClient != nil {
		workerSrv = startWorkerServer(cfg, jobTracker)
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Printf("Server error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if workerSrv != nil {
		workerSrv.Shutdown()
	}
	if err := jobTracker.Shutdown(shutdownCtx); err != nil {
		log.Printf("Tracker shutdown error: %v", err)
	}
	if err := musicHistory.Flush(shutdownCtx); err != nil {
		log.Printf("Failed to flush history: %v", err)
	}
}

func buildGenerator(cfg *config.Config, sunoClient *client.SunoClient, storage client.StorageClient) tracker.Generator {
	var gen tracker.Generator
	switch cfg.Generator.Backend {
	case "suno":
		if !sunoClient.IsConfigured() {
			log.Fatalf("Generator backend suno requires SUNO_API_KEY")
		}
		gen = generator.NewSuno(sunoClient, cfg.Suno.PollInterval, cfg.Suno.MaxWait)
	case "simulated", "":
		gen = generator.NewSimulated(cfg.Generator.Interval, cfg.Generator.Step, cfg.Generator.AudioURL)
		// Simulated audio is a public sample; nothing to mirror.
		return gen
	default:
		log.Fatalf("Unknown generator backend: %s", cfg.Generator.Backend)
	}

	if storage != nil {
		gen = generator.NewMirrored(gen, storage, &http.Client{Timeout: 5 * time.Minute})
	}
	return gen
}

func redisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}

func startWorkerServer(cfg *config.Config, jobTracker *tracker.Tracker) *asynq.Server {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		redisOpt(cfg),
		asynq.Config{
			Concurrency: cfg.Jobs.Concurrency,
			Queues: map[string]int{
				worker.QueueGeneration: 1,
			},
			LogLevel: asynqLogLevel,
		},
	)

	generationWorker := worker.NewGenerationWorker(jobTracker)

	mux := asynq.NewServeMux()
	mux.HandleFunc(worker.TaskTypeGenerate, generationWorker.ProcessTask)

	// Jobs dispatched to asynq would never run without the worker.
	if err := srv.Start(mux); err != nil {
		log.Fatalf("Failed to start asynq worker: %v", err)
	}
	return srv
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return response.Error(c, code, response.CodeServiceError, message, nil)
}
