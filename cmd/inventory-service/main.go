package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bagtrack/bagtrack-backend/internal/inventory/consumers"
	"github.com/bagtrack/bagtrack-backend/internal/inventory/events"
	"github.com/bagtrack/bagtrack-backend/internal/inventory/handler"
	"github.com/bagtrack/bagtrack-backend/internal/inventory/pending"
	"github.com/bagtrack/bagtrack-backend/internal/inventory/repository"
	"github.com/bagtrack/bagtrack-backend/internal/inventory/service"
	"github.com/bagtrack/bagtrack-backend/pkg/clock"
	"github.com/bagtrack/bagtrack-backend/pkg/config"
	"github.com/bagtrack/bagtrack-backend/pkg/database"
	"github.com/bagtrack/bagtrack-backend/pkg/logger"
	"github.com/bagtrack/bagtrack-backend/pkg/messaging"
)

const serviceName = "inventory-service"

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().Msg("starting Inventory Service")

	loc, err := cfg.Barcode.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid barcode timezone")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx, repository.Migrations(db.Driver())); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}
	}

	health := map[string]handler.HealthCheck{
		"database": db.Health,
	}

	clk := clock.System{}

	// Repositories
	unitRepo := repository.NewUnitRepository(db)
	importRepo := repository.NewImportRepository(db)
	stockRepo := repository.NewStockRepository(db)

	stockService := service.NewStockService(db, stockRepo, clk, log)
	stockConsumer := consumers.NewStockEventConsumer(stockService, log)

	// Unit events go to RabbitMQ when enabled, otherwise straight to the stock consumer
	var publisher *events.UnitEventPublisher
	if cfg.RabbitMQ.Enabled {
		rmq, err := messaging.New(&cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()

		if err := rmq.DeclareDeadLetterQueue(serviceName); err != nil {
			log.Fatal().Err(err).Msg("failed to declare dead letter queue")
		}

		publisher, err = events.NewRabbitMQPublisher(rmq, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}

		if err := stockConsumer.StartRabbitMQ(ctx, rmq); err != nil {
			log.Fatal().Err(err).Msg("failed to start stock consumer")
		}
		rmq.Watch(ctx)

		health["rabbitmq"] = func(context.Context) map[string]string { return rmq.Health() }
	} else {
		dispatcher := events.NewLocalDispatcher(serviceName)
		stockConsumer.Register(dispatcher)
		publisher = events.NewUnitEventPublisher(dispatcher, log)
	}

	// Pending scan confirmations
	var store pending.Store
	if cfg.Redis.Enabled {
		client, err := pending.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer client.Close()

		redisStore := pending.NewRedisStore(client, cfg.Redis.Prefix)
		store = redisStore
		health["redis"] = redisStore.Health
	} else {
		store = pending.NewMemoryStore(clk)
	}

	// Services
	sequencer := service.NewSequencer(db, unitRepo, clk, loc, log)
	lifecycleService := service.NewLifecycleService(db, unitRepo, importRepo, sequencer, publisher, clk, service.LifecycleConfig{
		MaxCreateRetries: cfg.Barcode.MaxRetries,
		MaxStatusRetries: cfg.Scan.MaxStatusRetries,
	}, log)
	scanService := service.NewScanService(lifecycleService, store, clk, cfg.Scan.ConfirmationTTL, log)

	router := handler.NewRouter(handler.RouterConfig{
		Service:        serviceName,
		Units:          handler.NewUnitHandler(lifecycleService, sequencer, log),
		Scan:           handler.NewScanHandler(scanService, log),
		Stock:          handler.NewStockHandler(stockService, log),
		Auth:           cfg.Auth,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Health:         health,
		Logger:         log,
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Str("timezone", loc.String()).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Cancel context to stop consumers
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
