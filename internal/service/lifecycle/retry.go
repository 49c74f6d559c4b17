package lifecycle

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/railfleet/sms/internal/domain"
)

// RetryConfig конфигурация для retry при конфликте версий.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig возвращает конфигурацию по умолчанию.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
	}
}

// RetryableOrchestrator оборачивает orchestrator повтором мутаций при
// ErrVersionConflict. Ядро сознательно не повторяет проигранную запись:
// повторная попытка с повторным чтением — ответственность вызывающей
// стороны, и эта обёртка реализует её для вызывающих, которым не нужен
// собственный цикл. Каждая повторная попытка перечитывает событие,
// поэтому решение принимается по актуальному состоянию.
type RetryableOrchestrator struct {
	Orchestrator
	config RetryConfig
	logger *log.Entry
}

// NewRetryableOrchestrator создаёт обёртку с retry поверх orchestrator.
func NewRetryableOrchestrator(orchestrator Orchestrator, config RetryConfig, logger *log.Entry) *RetryableOrchestrator {
	if logger == nil {
		logger = log.WithField("component", "retryable-orchestrator")
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultRetryConfig().MaxAttempts
	}
	if config.InitialDelay < 0 {
		config.InitialDelay = 0
	}
	if config.BackoffFactor < 1 {
		config.BackoffFactor = 1
	}

	return &RetryableOrchestrator{
		Orchestrator: orchestrator,
		config:       config,
		logger:       logger,
	}
}

// Transition повторяет переход при конфликте версий.
func (ro *RetryableOrchestrator) Transition(eventID string, target domain.EventState, actor string, meta *TransitionMetadata) (domain.ShoppingEvent, error) {
	var (
		event domain.ShoppingEvent
		err   error
	)
	ro.executeWithRetry("Transition", eventID, func() error {
		event, err = ro.Orchestrator.Transition(eventID, target, actor, meta)
		return err
	})
	return event, err
}

// SetDisposition повторяет назначение disposition при конфликте версий.
func (ro *RetryableOrchestrator) SetDisposition(eventID string, dispo domain.Disposition, actor string, opts *DispositionOptions) (DispositionResult, error) {
	var (
		result DispositionResult
		err    error
	)
	ro.executeWithRetry("SetDisposition", eventID, func() error {
		result, err = ro.Orchestrator.SetDisposition(eventID, dispo, actor, opts)
		return err
	})
	return result, err
}

// Cancel повторяет отмену при конфликте версий.
func (ro *RetryableOrchestrator) Cancel(eventID, reason, actor string) (domain.ShoppingEvent, error) {
	var (
		event domain.ShoppingEvent
		err   error
	)
	ro.executeWithRetry("Cancel", eventID, func() error {
		event, err = ro.Orchestrator.Cancel(eventID, reason, actor)
		return err
	})
	return event, err
}

func (ro *RetryableOrchestrator) executeWithRetry(operation, eventID string, fn func() error) {
	delay := ro.config.InitialDelay

	for attempt := 1; attempt <= ro.config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				ro.logger.WithFields(log.Fields{
					"operation": operation,
					"event_id":  eventID,
					"attempt":   attempt,
				}).Info("operation succeeded after retry")
			}
			return
		}

		// Повторяем только проигранную конкурентную запись; бизнес-ошибки
		// не изменятся от повторного чтения.
		if !domain.IsVersionConflict(err) {
			return
		}
		if attempt == ro.config.MaxAttempts {
			ro.logger.WithFields(log.Fields{
				"operation":    operation,
				"event_id":     eventID,
				"max_attempts": ro.config.MaxAttempts,
			}).Warn("operation lost concurrent writes on every attempt")
			return
		}

		ro.logger.WithFields(log.Fields{
			"operation": operation,
			"event_id":  eventID,
			"attempt":   attempt,
			"delay":     delay,
		}).Warn("version conflict, retrying with fresh read")

		time.Sleep(delay)

		delay = time.Duration(float64(delay) * ro.config.BackoffFactor)
		if delay > ro.config.MaxDelay && ro.config.MaxDelay > 0 {
			delay = ro.config.MaxDelay
		}
	}
}

var _ Orchestrator = (*RetryableOrchestrator)(nil)
