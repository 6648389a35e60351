package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"github.com/sashabaranov/go-openai"
	"github.com/yukikurage/todo-api/internal/auth"
	"github.com/yukikurage/todo-api/internal/cache"
	"github.com/yukikurage/todo-api/internal/config"
	"github.com/yukikurage/todo-api/internal/database"
	"github.com/yukikurage/todo-api/internal/handlers"
	"github.com/yukikurage/todo-api/internal/middleware"
	"github.com/yukikurage/todo-api/internal/repository"
	"github.com/yukikurage/todo-api/internal/services"
	"github.com/yukikurage/todo-api/internal/validation"
)

const defaultJWTSecret = "default-secret-key-change-me"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if cfg.IsProduction() && cfg.JWTSecret == defaultJWTSecret {
		slog.Error("JWT_SECRET must be set in release mode")
		os.Exit(1)
	}

	// Set Gin mode
	gin.SetMode(cfg.GinMode)
	validation.Register()

	// Connect to database
	db, err := database.Open(cfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	// Run migrations
	if err := database.Migrate(db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Optional stats cache
	var statsCache services.StatsCache
	var redisCache *cache.Cache
	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := cache.NewClient(ctx, cache.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		cancel()
		if err != nil {
			slog.Warn("stats cache disabled", "error", err)
		} else {
			redisCache = cache.New(client, "todo-api:", cfg.StatsCacheTTL)
			statsCache = redisCache
			slog.Info("stats cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.StatsCacheTTL)
		}
	}

	// Initialize AI service
	var suggester services.TaskSuggester
	if cfg.OpenAIAPIKey != "" {
		suggester = services.NewAIService(openai.DefaultConfig(cfg.OpenAIAPIKey))
	}

	tokens := auth.NewManager(auth.Config{
		SecretKey:            cfg.JWTSecret,
		Issuer:               cfg.JWTIssuer,
		AccessTokenDuration:  cfg.AccessTokenTTL,
		RefreshTokenDuration: cfg.RefreshTokenTTL,
	}, nil)

	taskRepo := repository.NewTaskRepository(db)
	userRepo := repository.NewUserRepository(db)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger))
	handlers.RegisterRoutes(r, handlers.Dependencies{
		AuthService:  services.NewAuthService(userRepo, tokens, auth.NewPasswordHasher(0), statsCache),
		TaskService:  services.NewTaskService(taskRepo, statsCache, suggester, nil),
		StatsService: services.NewStatsService(taskRepo, statsCache, nil),
		Verifier:     tokens,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			// the database and cache close only after in-flight requests have drained
			"http-server": func(ctx context.Context) error {
				slog.Info("shutting down http server")
				err := srv.Shutdown(ctx)

				if sqlDB, dbErr := db.DB(); dbErr == nil {
					err = errors.Join(err, sqlDB.Close())
				}
				if redisCache != nil {
					err = errors.Join(err, redisCache.Close())
				}
				return err
			},
		},
	)

	exitCode := <-wait
	slog.Info("server exited", "code", exitCode)
	os.Exit(exitCode)
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
