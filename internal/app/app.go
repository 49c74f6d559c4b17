package app

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	healthcheck "github.com/railfleet/sms/internal/health"
	"github.com/railfleet/sms/internal/messaging/kafka"
	"github.com/railfleet/sms/internal/service/lifecycle"
	"github.com/railfleet/sms/internal/service/outbox"
	"github.com/railfleet/sms/internal/version"
)

// Run собирает и запускает сервис до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	storage, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStorage(storage, logger)

	deps := NewDependencies(logger)
	orchestrator := createOrchestrator(storage, deps)

	// Kafka — опциональный транспорт аналитики; без брокера события
	// остаются в outbox до следующего запуска с Kafka.
	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafkaProducer(kafkaProducer, logger)

	var (
		outboxCancel func()
		outboxDone   chan struct{}
	)
	if kafkaProducer != nil {
		worker := outbox.NewWorker(
			storage.outboxRepo,
			kafka.NewOutboxPublisher(kafkaProducer, kafka.TopicLifecycleEvents),
			outbox.WithLogger(logger.WithField("component", "outbox-worker")),
			outbox.WithDLQPublisher(kafka.NewOutboxPublisher(kafkaProducer, kafka.TopicDeadLetterQueue)),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)

		workerCtx, cancel := context.WithCancel(context.Background())
		outboxCancel = cancel
		outboxDone = make(chan struct{})
		go func() {
			defer close(outboxDone)
			worker.Run(workerCtx)
		}()
		logger.Info("outbox worker started")
	}

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	if storage.storageChecker != nil {
		healthHandler.RegisterChecker("storage", storage.storageChecker)
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	logger.WithFields(log.Fields{
		"storage": cfg.StorageDriver,
		"metrics": cfg.MetricsAddr,
	}).Info("shop management service started")

	<-ctx.Done()
	logger.Info("получен сигнал остановки, останавливаем сервис")

	shutdownOutboxWorker(outboxCancel, outboxDone, logger)
	shutdownOrchestrator(orchestrator, logger)
	shutdownHTTP(metricsSrv, logger)

	return ctx.Err()
}

// shutdownOrchestrator дожидается завершения фоновых side effects.
func shutdownOrchestrator(orchestrator lifecycle.Orchestrator, logger *log.Entry) {
	if orchestrator == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		orchestrator.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logger.Warn("side effects did not finish before shutdown timeout")
	}
}

// shutdownOutboxWorker останавливает outbox worker и ждёт завершения цикла.
func shutdownOutboxWorker(cancel func(), done chan struct{}, logger *log.Entry) {
	if cancel == nil {
		return
	}
	cancel()

	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info("outbox worker stopped")
	case <-time.After(5 * time.Second):
		logger.Warn("outbox worker did not stop before shutdown timeout")
	}
}

func closeStorage(storage runtimeDependencies, logger *log.Entry) {
	if storage.closeFn == nil {
		return
	}
	if err := storage.closeFn(); err != nil {
		logger.WithError(err).Warn("failed to close storage")
	}
}
