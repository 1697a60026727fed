package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/makeasinger/songprompt/internal/auth"
	"github.com/makeasinger/songprompt/internal/client"
	"github.com/makeasinger/songprompt/internal/config"
	"github.com/makeasinger/songprompt/internal/handler"
	"github.com/makeasinger/songprompt/internal/logger"
	"github.com/makeasinger/songprompt/internal/middleware"
	"github.com/makeasinger/songprompt/internal/model"
	"github.com/makeasinger/songprompt/internal/research"
	"github.com/makeasinger/songprompt/internal/service"
	ws "github.com/makeasinger/songprompt/internal/websocket"
	"github.com/makeasinger/songprompt/internal/worker"
	"github.com/makeasinger/songprompt/pkg/response"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	lg, err := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer lg.Sync()

	ctx := context.Background()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		lg.Warn("redis not available", "addr", cfg.Redis.Addr, "error", err)
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()
	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	validate := model.NewValidator()
	hub := ws.NewHub(lg)

	backend, err := client.NewBackend(ctx, cfg)
	if err != nil {
		lg.Fatal("failed to build text backend", "error", err)
	}
	if !backend.IsConfigured() {
		lg.Warn("text backend has no credential, generation will fail until it is set", "backend", backend.Name())
	}

	researcher := research.NewResearcher(research.NewSearcher(&cfg.Research, redisClient, lg), cfg.Research.MaxChars, lg)

	// store stays an untyped nil unless R2 is configured
	var store client.ExportStore
	r2Store, err := client.NewR2Store(ctx, &cfg.R2)
	switch {
	case err != nil:
		lg.Warn("R2 storage not initialized", "error", err)
	case r2Store != nil:
		store = r2Store
	default:
		lg.Info("R2 storage not configured, exports are returned inline")
	}

	verifier := buildVerifier(ctx, cfg, lg)

	defaults := model.RequestDefaults{
		Language:  cfg.Defaults.Language,
		VocalType: model.VocalType(cfg.Defaults.VocalType),
		BPM:       cfg.Defaults.BPM,
		Duration:  cfg.Defaults.Duration,
	}
	promptService := service.NewPromptService(backend, researcher, defaults, lg)
	jobService := service.NewJobService(redisClient, asynqClient, inspector)
	exportService := service.NewExportService(store)

	promptHandler := handler.NewPromptHandler(promptService, validate)
	jobHandler := handler.NewJobHandler(jobService, validate)
	exportHandler := handler.NewExportHandler(exportService, validate)
	healthHandler := handler.NewHealthHandler(promptService, exportService, verifier != nil)

	authMiddleware := middleware.NewAuthMiddleware(verifier)
	rateLimiter := middleware.NewRateLimiter(redisClient, lg)

	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
		BodyLimit:    1 * 1024 * 1024,
	})

	app.Use(recover.New())
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body}\n"
	}
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.Health)

	api := app.Group("/api", authMiddleware.Authenticate())

	prompts := api.Group("/prompts")
	prompts.Post("/generate", rateLimiter.PromptLimit(cfg.RateLimit.PromptsPerMin), promptHandler.Generate)
	prompts.Post("/jobs", rateLimiter.PromptLimit(cfg.RateLimit.PromptsPerMin), jobHandler.Start)
	prompts.Get("/jobs/:jobId", jobHandler.Status)
	prompts.Delete("/jobs/:jobId", jobHandler.Cancel)
	prompts.Post("/export", rateLimiter.ExportLimit(cfg.RateLimit.ExportPerHour), exportHandler.Text)

	app.Use("/ws", handler.RequireUpgrade)
	app.Get("/ws/jobs/:jobId", handler.JobEvents(hub))

	srv := newWorkerServer(cfg, redisOpt, lg)
	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeGenerate, worker.NewPromptWorker(promptService, jobService, hub, lg).ProcessTask)
	go func() {
		if err := srv.Run(mux); err != nil {
			lg.Error("asynq worker stopped", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		lg.Info("shutting down")
		srv.Shutdown()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			lg.Error("server shutdown failed", "error", err)
		}
	}()

	addr := ":" + cfg.Server.Port
	lg.Info("server starting", "addr", addr, "backend", backend.Name(), "research", researcher.Provider())
	if err := app.Listen(addr); err != nil {
		lg.Fatal("server error", "error", err)
	}
}

// buildVerifier prefers OIDC JWKS and keeps the shared secret as a fallback.
// It returns nil when neither is configured.
func buildVerifier(ctx context.Context, cfg *config.Config, lg *logger.Logger) auth.Verifier {
	var chain auth.Chain
	if cfg.OIDC.Issuer != "" {
		jwks, err := auth.NewJWKSVerifier(ctx, &cfg.OIDC)
		if err != nil {
			lg.Warn("JWKS verifier not initialized", "issuer", cfg.OIDC.Issuer, "error", err)
		} else {
			chain = append(chain, jwks)
		}
	}
	if cfg.JWT.Secret != "" {
		chain = append(chain, auth.NewHMACVerifier(cfg.JWT.Secret))
	}
	if len(chain) == 0 {
		lg.Warn("no auth configured, API routes will reject every request")
		return nil
	}
	return chain
}

func newWorkerServer(cfg *config.Config, redisOpt asynq.RedisClientOpt, lg *logger.Logger) *asynq.Server {
	level := asynq.InfoLevel
	switch strings.ToLower(cfg.Server.LogLevel) {
	case "debug":
		level = asynq.DebugLevel
	case "warn":
		level = asynq.WarnLevel
	case "error":
		level = asynq.ErrorLevel
	}

	return asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			service.QueueGenerate: 1,
		},
		Logger:   lg.SugaredLogger,
		LogLevel: level,
	})
}

func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		if fe.Code == fiber.StatusNotFound {
			return response.NotFound(c, fe.Message)
		}
		return response.Error(c, fe.Code, response.CodeServiceError, fe.Message, nil)
	}
	return response.ServiceError(c, err.Error())
}
