package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/example/catering-cart/internal/api"
	"github.com/example/catering-cart/internal/auth"
	"github.com/example/catering-cart/internal/config"
	"github.com/example/catering-cart/internal/domain/draftorder"
	"github.com/example/catering-cart/internal/infrastructure/kafka"
	"github.com/example/catering-cart/internal/infrastructure/store"
	"github.com/example/catering-cart/internal/logging"
)

type repositories interface {
	store.DraftOrderRepository
	store.CatalogReader
	store.UserRepository
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("[draftd] Failed to load .env: %v", err)
	}
	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatalf("[draftd] %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		log.Fatalf("[draftd] %v", err)
	}
	defer logger.Sync()
	logger = logger.Named("draftd")

	logger.Info("starting draft-order backend",
		zap.String("addr", cfg.Addr),
		zap.Bool("postgres", cfg.DatabaseURL != ""),
		zap.Strings("kafka_brokers", cfg.KafkaBrokers),
		zap.String("kafka_topic", cfg.KafkaTopic))

	// Initialize stores
	var repos repositories
	if cfg.DatabaseURL != "" {
		db, err := store.ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("failed to connect to PostgreSQL", zap.Error(err))
		}
		defer db.Close()

		pg := store.NewPostgresStore(db)
		if err := pg.Migrate(ctx); err != nil {
			logger.Fatal("failed to migrate schema", zap.Error(err))
		}
		if err := seedPostgres(ctx, pg, logger); err != nil {
			logger.Fatal("failed to seed demo data", zap.Error(err))
		}
		repos = pg
		logger.Info("connected to PostgreSQL")
	} else {
		mem := store.NewMemoryStore()
		if err := seedMemory(mem, logger); err != nil {
			logger.Fatal("failed to seed demo data", zap.Error(err))
		}
		repos = mem
		logger.Warn("DATABASE_URL not set, drafts are kept in memory")
	}

	// Initialize Kafka producer
	var publisher draftorder.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		publisher = producer
	} else {
		logger.Info("KAFKA_BROKERS not set, draft-order events are not published")
	}

	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.TokenExpiry)
	service := draftorder.NewService(repos, repos, publisher, logger.Named("draftorder"))

	router := api.NewRouter(api.RouterConfig{
		Drafts:     api.NewDraftOrderHandlers(service, logger.Named("api")),
		Auth:       api.NewAuthHandlers(repos, jwtService, logger.Named("auth")),
		JWTService: jwtService,
		Logger:     logger.Named("http"),
	})

	// Start HTTP server
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown did not complete", zap.Error(err))
	}
}
