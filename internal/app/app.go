package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"go-freelance/internal/config"
	"go-freelance/internal/database"
	"go-freelance/internal/event"
	"go-freelance/internal/handler"
	"go-freelance/internal/metrics"
	"go-freelance/internal/middleware"
	"go-freelance/internal/ratelimit"
	"go-freelance/internal/repository"
	"go-freelance/internal/router"
	"go-freelance/internal/service"
	"go-freelance/internal/websocket"
)

type App struct {
	server       *http.Server
	scheduler    *cron.Cron
	cleanupFuncs []func()
}

func New(cfg *config.Config) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{cleanupFuncs: []func(){cancel}}

	store, health, err := a.openStore(ctx, cfg)
	if err != nil {
		a.cleanup()
		return nil, err
	}

	m := metrics.New()
	bus := event.NewBus()
	a.cleanupFuncs = append(a.cleanupFuncs, bus.Close)
	hasher := service.NewPasswordHasher(cfg.BcryptCost, cfg.HashConcurrency)

	tokenService, err := service.NewTokenService(service.TokenConfig{
		AccessSecret:    cfg.JWTAccessSecret,
		RefreshSecret:   cfg.JWTRefreshSecret,
		Issuer:          cfg.JWTIssuer,
		Audience:        cfg.JWTAudience,
		AccessTTL:       cfg.JWTAccessTTL,
		RefreshTTL:      cfg.JWTRefreshTTL,
		RefreshStoreTTL: cfg.RefreshTokenStoreTTL,
		ResetTTL:        cfg.PasswordResetTTL,
	}, hasher, store, m)
	if err != nil {
		a.cleanup()
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	notificationService := service.NewNotificationService(store, bus)
	authService := service.NewAuthService(store, tokenService, notificationService, m)

	hub := websocket.NewHub(bus, func(userID string, online bool) {
		presenceCtx, done := context.WithTimeout(ctx, 5*time.Second)
		defer done()
		if err := authService.SetPresence(presenceCtx, userID, online); err != nil {
			slog.Warn("failed to update presence", "user_id", userID, "online", online, "error", err)
		}
	}, m)
	go hub.Run(ctx)

	counters, err := a.openCounters(ctx, cfg)
	if err != nil {
		a.cleanup()
		return nil, err
	}

	a.scheduler = cron.New()
	if err := scheduleCleanup(ctx, a.scheduler, cfg.TokenCleanupSchedule, tokenService); err != nil {
		a.cleanup()
		return nil, err
	}

	appRouter := router.New(cfg, middleware.NewAuthMiddleware(authService), counters, m, router.Handlers{
		Auth:         handler.NewAuthHandler(authService, !cfg.IsProduction()),
		User:         handler.NewUserHandler(authService),
		Notification: handler.NewNotificationHandler(notificationService),
		Admin:        handler.NewAdminHandler(tokenService),
		Health:       health,
		Docs:         handler.NewDocsHandler(),
		Socket:       websocket.NewHandler(hub, authService, cfg.WSAllowedOrigins),
	})

	a.server = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg *config.Config) (repository.Store, *handler.HealthHandler, error) {
	if cfg.UsesMemoryStore() {
		slog.Warn("DATABASE_URL not set, running on the in-memory store")
		return repository.NewMemoryStore(), handler.NewHealthHandler(nil), nil
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, database.Options{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.cleanupFuncs = append(a.cleanupFuncs, db.Close)

	if err := db.EnsureSchema(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}
	slog.Info("database ready")

	return repository.NewPostgresStore(db.Pool), handler.NewHealthHandler(db), nil
}

func (a *App) openCounters(ctx context.Context, cfg *config.Config) (ratelimit.Store, error) {
	if cfg.RedisURL == "" {
		return ratelimit.NewMemoryStore(), nil
	}

	client, err := ratelimit.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.cleanupFuncs = append(a.cleanupFuncs, func() {
		if err := client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			slog.Warn("failed to close redis client", "error", err)
		}
	})
	slog.Info("rate limit counters on redis")

	return ratelimit.NewRedisStore(client, ""), nil
}

func (a *App) cleanup() {
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		a.cleanupFuncs[i]()
	}
	a.cleanupFuncs = nil
}

func (a *App) Run() error {
	a.scheduler.Start()

	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	<-a.scheduler.Stop().Done()

	shutdownErr := a.server.Shutdown(ctx)
	a.cleanup()
	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}
