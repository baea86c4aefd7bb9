package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/farmiq/farmiq-backend/internal/api"
	"github.com/farmiq/farmiq-backend/internal/api/middleware"
	"github.com/farmiq/farmiq-backend/internal/core/service"
	"github.com/farmiq/farmiq-backend/internal/infrastructure/config"
	"github.com/farmiq/farmiq-backend/internal/infrastructure/db/mongo"
	"github.com/farmiq/farmiq-backend/internal/infrastructure/db/redis"
	"github.com/farmiq/farmiq-backend/internal/infrastructure/db/sqldb"
	httpserver "github.com/farmiq/farmiq-backend/internal/infrastructure/http"
	"github.com/farmiq/farmiq-backend/internal/infrastructure/http/handlers"
	"github.com/farmiq/farmiq-backend/internal/infrastructure/queue"
	"github.com/farmiq/farmiq-backend/pkg/logger"
)

const (
	serviceName     = "farmiq-api"
	shutdownTimeout = 10 * time.Second
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		bootLog := logger.Init(logger.Options{})
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: serviceName,
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// --- Relational store: users and sessions ---
	conn, err := sqldb.Connect(ctx, sqldb.Config{
		Driver:  cfg.Database.Driver,
		DSN:     cfg.Database.DSN,
		Timeout: cfg.Database.Timeout,
	})
	if err != nil {
		return err
	}
	defer func() { _ = sqldb.Close(conn) }()
	if err := sqldb.Migrate(conn); err != nil {
		return err
	}

	// --- MongoDB: installation workflow ---
	store, err := mongo.Connect(ctx, mongo.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		AppName:  serviceName,
		Timeout:  cfg.Mongo.Timeout,
	})
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	installations := mongo.NewInstallationRepository(store.Database())
	technicians := mongo.NewTechnicianRepository(store.Database())
	if err := store.Bootstrap(ctx, installations, technicians, mongo.DefaultTechnicians); err != nil {
		return err
	}

	// --- Redis: idempotency claims ---
	rdb, err := redis.Connect(ctx, redis.Config{
		Addr:       cfg.Redis.Addr,
		DB:         cfg.Redis.DB,
		ClientName: serviceName,
		Timeout:    cfg.Redis.Timeout,
	})
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	// --- Workers ---
	pool := queue.NewHashPool(cfg.Hash.Workers, queue.HashCost, cfg.Hash.Timeout, logger.Component("hash_pool"))
	pool.Start(ctx)
	defer pool.Stop()

	// --- Services ---
	dbTimeout := cfg.Database.Timeout
	authService, err := service.NewAuthService(ctx, sqldb.NewCredentialStore(conn, dbTimeout), pool, logger.Component("auth"))
	if err != nil {
		return err
	}
	sessionService := service.NewSessionService(
		sqldb.NewSessionStore(conn, dbTimeout),
		authService,
		cfg.Session.Secret,
		cfg.Session.TTL,
		logger.Component("session"),
	)
	installationService := service.NewInstallationService(
		installations,
		technicians,
		redis.NewIdempotencyGuard(rdb, 0),
		logger.Component("installation"),
	)

	go queue.NewSweeper(sessionService, cfg.Session.SweepInterval, logger.Component("sweeper")).Run(ctx)

	// --- HTTP ---
	e := httpserver.NewRouter(httpserver.Options{
		Environment:    cfg.Env,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Logger:         logger.Component("http"),
		Dependencies: map[string]handlers.PingFunc{
			"sql":     sqldb.NewPinger(conn).Ping,
			"mongodb": store.Ping,
			"redis":   func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
	})
	api.RegisterRoutes(e, api.Dependencies{
		Auth:          authService,
		Sessions:      sessionService,
		Installations: installationService,
		Cookie:        middleware.NewSessionCookie(cfg.Session.CookieSecure),
		Logger:        logger.Component("api"),
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(sctx)
}
