package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/example/catering-cart/internal/audit"
	"github.com/example/catering-cart/internal/config"
	"github.com/example/catering-cart/internal/infrastructure/kafka"
	"github.com/example/catering-cart/internal/logging"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("[auditor] Failed to load .env: %v", err)
	}
	cfg := config.LoadAuditor()

	logger, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		log.Fatalf("[auditor] %v", err)
	}
	defer logger.Sync()
	logger = logger.Named("auditor")

	logger.Info("starting draft-order auditor",
		zap.Strings("kafka_brokers", cfg.KafkaBrokers),
		zap.String("topic", cfg.KafkaTopic),
		zap.String("group", cfg.GroupID))

	handler := audit.NewHandler(logger.Named("audit"))

	// Initialize Kafka consumer
	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.GroupID, logger.Named("consumer"))
	defer consumer.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("listening for draft-order events")
		if err := consumer.Consume(ctx, handler.HandleEvent); err != nil && ctx.Err() == nil {
			logger.Error("consumer error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-done:
	}

	logger.Info("shutting down")
	cancel()
	<-done

	stats := handler.Stats()
	logger.Info("audit summary",
		zap.Int("upserted", stats.Upserted),
		zap.Int("deleted", stats.Deleted),
		zap.Int("ignored", stats.Ignored),
		zap.Int("malformed", stats.Malformed))
}
