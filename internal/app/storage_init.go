package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/railfleet/sms/internal/domain"
	healthcheck "github.com/railfleet/sms/internal/health"
	"github.com/railfleet/sms/internal/storage/memory"
	"github.com/railfleet/sms/internal/storage/postgres"
)

// runtimeDependencies — репозитории, выбранные по storage driver.
type runtimeDependencies struct {
	events     domain.EventRepository
	sequences  domain.SequenceAllocator
	estimates  domain.EstimateRepository
	translog   domain.TransitionLogRepository
	outboxRepo domain.OutboxRepository

	storageChecker healthcheck.Checker
	closeFn        func() error
}

// initRuntimeDependencies создаёт хранилище по cfg.StorageDriver.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (runtimeDependencies, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		return runtimeDependencies{
			events:     memory.NewEventRepository(),
			sequences:  memory.NewSequenceAllocator(),
			estimates:  memory.NewEstimateRepository(),
			translog:   memory.NewTransitionLogRepository(),
			outboxRepo: memory.NewOutboxRepository(),
		}, nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return runtimeDependencies{}, fmt.Errorf("postgres storage driver requires SMS_POSTGRES_DSN")
		}

		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return runtimeDependencies{}, fmt.Errorf("open postgres storage: %w", err)
		}

		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return runtimeDependencies{}, fmt.Errorf("apply postgres migrations: %w", err)
			}
			logger.Info("postgres migrations applied")
		}

		return runtimeDependencies{
			events:     postgres.NewEventRepository(store),
			sequences:  postgres.NewSequenceAllocator(store),
			estimates:  postgres.NewEstimateRepository(store),
			translog:   postgres.NewTransitionLogRepository(store),
			outboxRepo: postgres.NewOutboxRepository(store),
			storageChecker: healthcheck.NewSimpleChecker("storage", func() error {
				return store.Ping(context.Background())
			}),
			closeFn: store.Close,
		}, nil

	default:
		return runtimeDependencies{}, fmt.Errorf("unsupported storage driver: %s", cfg.StorageDriver)
	}
}
