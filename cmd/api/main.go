package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/pharmastock/stock-system/internal/api"
	"github.com/pharmastock/stock-system/internal/api/handler"
	"github.com/pharmastock/stock-system/internal/core/ports"
	"github.com/pharmastock/stock-system/internal/core/service"
	"github.com/pharmastock/stock-system/internal/infrastructure/db/memory"
	redisstore "github.com/pharmastock/stock-system/internal/infrastructure/db/redis"
	"github.com/pharmastock/stock-system/internal/infrastructure/storage"
	"github.com/pharmastock/stock-system/internal/pkg/config"
	"github.com/pharmastock/stock-system/pkg/logger"
)

// @title        Pharmastock Inventory API
// @version      1.0
// @description  Pharmaceutical stock control: medications, expiry tracking and stock movements.
// @BasePath     /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		boot := logger.Init(logger.Options{})
		boot.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "pharmastock-api",
	})

	stores, err := storage.Open(ctx, cfg.Storage, cfg.Mongo, logger.Component("storage"), log.GetLevel() <= zerolog.DebugLevel)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("failed to open storage")
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := stores.Close(closeCtx); err != nil {
			log.Error().Err(err).Msg("failed to close storage")
		}
	}()

	checks := map[string]handler.Check{"database": stores.Ping}

	var idempotency ports.IdempotencyStore = memory.NewIdempotencyStore()
	if cfg.Redis.Addr != "" {
		rdb, err := redisstore.Connect(ctx, redisstore.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rdb.Close()
		idempotency = redisstore.NewIdempotencyStore(rdb)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	authService := service.NewAuthService(stores.Users, cfg.JWTSecret, cfg.TokenTTL, logger.Component("auth"))
	if _, err := authService.EnsureDefaultAdmin(ctx, cfg.Admin.Username, cfg.Admin.Password); err != nil {
		log.Fatal().Err(err).Msg("failed to seed default admin")
	}
	inventoryService := service.NewInventoryService(stores.Medications, logger.Component("inventory"))

	e := api.NewRouter(api.Dependencies{
		Inventory:   inventoryService,
		Auth:        authService,
		Idempotency: idempotency,
		JWTSecret:   cfg.JWTSecret,
		Checks:      checks,
		Logger:      logger.Component("http"),
	})

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Str("storage", cfg.Storage.Driver).Msg("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	log.Info().Msg("server stopped gracefully")
}
