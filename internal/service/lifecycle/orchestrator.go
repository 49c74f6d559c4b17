package lifecycle

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/railfleet/sms/internal/domain"
	"github.com/railfleet/sms/internal/metrics"
)

// CreateAttributes — необязательные атрибуты нового shopping-события.
type CreateAttributes struct {
	ShopCode   string
	TargetDate time.Time
	Priority   domain.Priority
	Actor      string
	Note       string
}

// TransitionMetadata — сопровождающие данные перехода. Поля стоимости
// записываются в событие только через переход: вне переходов строка
// события не меняется.
type TransitionMetadata struct {
	Disposition     domain.Disposition
	DispositionRef  string
	DispositionNote string
	CancelReason    string
	EstimatedMinor  *int64
	ApprovedMinor   *int64
	InvoicedMinor   *int64
	Notes           string
}

// DispositionOptions — параметры установки disposition.
type DispositionOptions struct {
	// NextShopCode включает chain shopping для disposition "to another shop".
	NextShopCode string
	Reference    string
	Note         string
}

// DispositionResult возвращается из SetDisposition: при chain shopping
// Successor содержит созданное событие-преемник.
type DispositionResult struct {
	Event     domain.ShoppingEvent
	Successor *domain.ShoppingEvent
}

// Orchestrator описывает операционную поверхность жизненного цикла
// shopping-события.
type Orchestrator interface {
	Create(assetID string, source domain.EventSource, attrs CreateAttributes) (domain.ShoppingEvent, error)
	Transition(eventID string, target domain.EventState, actor string, meta *TransitionMetadata) (domain.ShoppingEvent, error)
	SetDisposition(eventID string, dispo domain.Disposition, actor string, opts *DispositionOptions) (DispositionResult, error)
	Cancel(eventID, reason, actor string) (domain.ShoppingEvent, error)
	SubmitEstimate(eventID string, totalMinor int64, lineItems []domain.EstimateLineItem, notes string) (domain.EstimateSubmission, error)

	Get(eventID string) (domain.ShoppingEvent, error)
	GetActiveForAsset(assetID string) (domain.ShoppingEvent, error)
	ListForAsset(assetID string, limit int) ([]domain.ShoppingEvent, error)
	List(filter domain.EventFilter) ([]domain.ShoppingEvent, error)

	// Wait дожидается завершения всех фоновых side effects
	// (graceful shutdown и детерминированные тесты).
	Wait()
}

// Deps собирает зависимости оркестратора.
type Deps struct {
	Events    domain.EventRepository
	Sequences domain.SequenceAllocator
	Estimates domain.EstimateRepository
	Log       domain.TransitionLogRepository
	Outbox    domain.OutboxRepository
	Assets    domain.AssetRegistry
	Idle      domain.IdleTracker
	Triage    domain.TriageQueue
	Limits    domain.RepairLimitCalculator
	Logger    *log.Entry
}

type orchestrator struct {
	deps    Deps
	metrics *metrics.LifecycleMetrics
	wg      sync.WaitGroup
}

// NewOrchestrator создаёт рабочий экземпляр оркестратора.
func NewOrchestrator(deps Deps) Orchestrator {
	if deps.Logger == nil {
		deps.Logger = log.New().WithField("component", "lifecycle")
	}
	return &orchestrator{deps: deps, metrics: metrics.NewLifecycleMetrics()}
}

// NewOrchestratorWithoutMetrics создаёт оркестратор без метрик (для тестов).
func NewOrchestratorWithoutMetrics(deps Deps) Orchestrator {
	if deps.Logger == nil {
		deps.Logger = log.New().WithField("component", "lifecycle")
	}
	return &orchestrator{deps: deps, metrics: nil}
}

// Create открывает новое shopping-событие для вагона.
func (o *orchestrator) Create(assetID string, source domain.EventSource, attrs CreateAttributes) (domain.ShoppingEvent, error) {
	if assetID == "" {
		return domain.ShoppingEvent{}, domain.ErrAssetRequired
	}
	if !source.Valid() {
		return domain.ShoppingEvent{}, fmt.Errorf("%w: %q", domain.ErrSourceInvalid, source)
	}
	if attrs.Priority == "" {
		attrs.Priority = domain.PriorityNormal
	}
	if !attrs.Priority.Valid() {
		return domain.ShoppingEvent{}, fmt.Errorf("%w: %q", domain.ErrPriorityInvalid, attrs.Priority)
	}

	exists, err := o.deps.Assets.Exists(assetID)
	if err != nil {
		return domain.ShoppingEvent{}, fmt.Errorf("asset registry lookup: %w", err)
	}
	if !exists {
		return domain.ShoppingEvent{}, fmt.Errorf("%w: %s", domain.ErrAssetNotFound, assetID)
	}
	fleet, err := o.deps.Assets.FleetStatus(assetID)
	if err != nil {
		return domain.ShoppingEvent{}, fmt.Errorf("asset fleet status lookup: %w", err)
	}
	if fleet.OutOfFleet() {
		return domain.ShoppingEvent{}, fmt.Errorf("%w: %s (%s)", domain.ErrAssetDisposed, assetID, fleet)
	}

	event, err := o.newEvent(assetID, source, attrs)
	if err != nil {
		return domain.ShoppingEvent{}, err
	}
	if err := o.deps.Events.Create(event); err != nil {
		return domain.ShoppingEvent{}, err
	}
	if o.metrics != nil {
		o.metrics.RecordEventCreated(string(source))
	}
	o.afterCreate(event, attrs.Actor, attrs.Note)
	return event, nil
}

// newEvent собирает новую запись события в исходном статусе EVENT.
func (o *orchestrator) newEvent(assetID string, source domain.EventSource, attrs CreateAttributes) (domain.ShoppingEvent, error) {
	now := time.Now().UTC()
	number, err := o.deps.Sequences.NextEventNumber(now)
	if err != nil {
		return domain.ShoppingEvent{}, fmt.Errorf("allocate event number: %w", err)
	}
	return domain.ShoppingEvent{
		ID:         uuid.NewString(),
		Number:     number,
		AssetID:    assetID,
		State:      domain.StateEvent,
		Source:     source,
		ShopCode:   attrs.ShopCode,
		TargetDate: attrs.TargetDate,
		Priority:   attrs.Priority,
		Version:    0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// afterCreate запускает best-effort side effects создания: запись в журнал
// переходов, закрытие окна простоя, разрешение triage-записи, событие
// аналитики.
func (o *orchestrator) afterCreate(event domain.ShoppingEvent, actor, note string) {
	o.recordTransition(event, "", domain.StateEvent, false, actor, note)
	o.dispatch("idle_close", event, func() error {
		return o.deps.Idle.Close(event.AssetID)
	})
	o.dispatch("triage_resolve", event, func() error {
		return o.deps.Triage.ResolveActive(event.AssetID, "shopping_started", actor, note, event.ID)
	})
	o.emitEvent(event, "lifecycle.event.created", map[string]interface{}{
		"asset_id": event.AssetID,
		"number":   event.Number,
		"source":   string(event.Source),
	})
}

// Transition переводит событие в целевой статус с учётом таблицы переходов
// и optimistic locking. Конфликт версий не ретраится: вызывающий обязан
// перечитать событие и повторить операцию сам.
func (o *orchestrator) Transition(eventID string, target domain.EventState, actor string, meta *TransitionMetadata) (domain.ShoppingEvent, error) {
	start := time.Now()
	defer func() {
		if o.metrics != nil {
			o.metrics.RecordTransitionDuration(time.Since(start))
		}
	}()

	event, err := o.deps.Events.Get(eventID)
	if err != nil {
		return domain.ShoppingEvent{}, err
	}
	return o.applyTransition(event, target, actor, meta)
}

// applyTransition выполняет единственную условную запись нового статуса
// и сопутствующих полей.
func (o *orchestrator) applyTransition(event domain.ShoppingEvent, target domain.EventState, actor string, meta *TransitionMetadata) (domain.ShoppingEvent, error) {
	rule, err := domain.CheckTransition(event.State, target, event.Source)
	if err != nil {
		if o.metrics != nil {
			o.metrics.RecordTransitionRejected()
		}
		return domain.ShoppingEvent{}, err
	}
	if rule.RequiresDisposition {
		if meta == nil || meta.Disposition == "" {
			return domain.ShoppingEvent{}, domain.ErrDispositionRequired
		}
		if !meta.Disposition.Valid() {
			return domain.ShoppingEvent{}, fmt.Errorf("%w: %q", domain.ErrDispositionInvalid, meta.Disposition)
		}
	}
	if target == domain.StateCancelled && (meta == nil || meta.CancelReason == "") {
		return domain.ShoppingEvent{}, domain.ErrCancelReasonRequired
	}

	from := event.State
	event.State = target
	event.UpdatedAt = time.Now().UTC()
	applyMetadata(&event, target, actor, meta)

	prevVersion := event.Version
	if err := o.deps.Events.Save(event); err != nil {
		if domain.IsVersionConflict(err) {
			o.deps.Logger.WithFields(log.Fields{
				"event_id": event.ID,
				"from":     from,
				"to":       target,
				"version":  prevVersion,
			}).Warn("stale transition rejected")
		}
		return domain.ShoppingEvent{}, err
	}
	event.Version = prevVersion + 1

	if o.metrics != nil {
		o.metrics.RecordTransition(string(from), string(target))
	}
	var notes string
	if meta != nil {
		notes = meta.Notes
	}
	o.recordTransition(event, from, target, rule.Reversible, actor, notes)
	o.emitEvent(event, "lifecycle.state.changed", map[string]interface{}{
		"from":  string(from),
		"to":    string(target),
		"actor": actor,
	})

	switch target {
	case domain.StateClosed:
		o.afterClose(event, actor)
	case domain.StateCancelled:
		if o.metrics != nil {
			o.metrics.RecordEventCancelled()
		}
		o.emitEvent(event, "lifecycle.event.cancelled", map[string]interface{}{
			"reason": event.CancelReason,
			"actor":  actor,
		})
	}
	return event, nil
}

// applyMetadata переносит сопровождающие данные перехода в запись события.
func applyMetadata(event *domain.ShoppingEvent, target domain.EventState, actor string, meta *TransitionMetadata) {
	if target == domain.StateCancelled {
		event.CancelledAt = time.Now().UTC()
		event.CancelledBy = actor
		if meta != nil {
			event.CancelReason = meta.CancelReason
		}
	}
	if meta == nil {
		return
	}
	if target == domain.StateDispoToDestination {
		event.Disposition = meta.Disposition
		event.DispositionRef = meta.DispositionRef
		event.DispositionNote = meta.DispositionNote
	}
	if meta.EstimatedMinor != nil {
		event.Cost.EstimatedMinor = *meta.EstimatedMinor
	}
	if meta.ApprovedMinor != nil {
		event.Cost.ApprovedMinor = *meta.ApprovedMinor
	}
	if meta.InvoicedMinor != nil {
		event.Cost.InvoicedMinor = *meta.InvoicedMinor
	}
}

// afterClose запускает closure-процедуру: side effects зависят от
// disposition, аналитическое событие закрытия уходит всегда.
func (o *orchestrator) afterClose(event domain.ShoppingEvent, actor string) {
	if o.metrics != nil {
		o.metrics.RecordEventClosed(string(event.Disposition))
	}

	switch event.Disposition {
	case domain.DispositionToStorage:
		o.dispatch("idle_open", event, func() error {
			return o.deps.Idle.Open(event.AssetID, "post_shop_storage")
		})
		o.dispatch("triage_create", event, func() error {
			return o.deps.Triage.CreateEntry(event.AssetID, "return_from_shop", event.Priority, "shopping event closed to storage", actor, event.ID)
		})
	case domain.DispositionToAnotherShop:
		// Непрерывность обеспечивает уже созданное событие-преемник.
	case domain.DispositionToScrap:
		// Списанием владеет отдельный workflow.
	case domain.DispositionToCustomer:
		// Вагон возвращается в коммерческую работу без отстоя и triage.
	}

	o.emitEvent(event, "lifecycle.event.closed", map[string]interface{}{
		"asset_id":        event.AssetID,
		"disposition":     string(event.Disposition),
		"disposition_ref": event.DispositionRef,
		"estimated_minor": event.Cost.EstimatedMinor,
		"approved_minor":  event.Cost.ApprovedMinor,
		"invoiced_minor":  event.Cost.InvoicedMinor,
		"variance_minor":  event.Cost.VarianceMinor(),
	})
}

// SetDisposition — обёртка над переходом в DISPO_TO_DESTINATION. Для
// disposition "to another shop" с указанным депо дополнительно запускает
// chain shopping: преемник создаётся до условной записи предшественника,
// и ссылка на него пишется той же записью, что и сам переход.
func (o *orchestrator) SetDisposition(eventID string, dispo domain.Disposition, actor string, opts *DispositionOptions) (DispositionResult, error) {
	if !dispo.Valid() {
		return DispositionResult{}, fmt.Errorf("%w: %q", domain.ErrDispositionInvalid, dispo)
	}
	if opts == nil {
		opts = &DispositionOptions{}
	}

	event, err := o.deps.Events.Get(eventID)
	if err != nil {
		return DispositionResult{}, err
	}

	if dispo == domain.DispositionToAnotherShop && opts.NextShopCode != "" {
		return o.chainToShop(event, actor, opts)
	}

	updated, err := o.applyTransition(event, domain.StateDispoToDestination, actor, &TransitionMetadata{
		Disposition:     dispo,
		DispositionRef:  opts.Reference,
		DispositionNote: opts.Note,
	})
	if err != nil {
		return DispositionResult{}, err
	}
	return DispositionResult{Event: updated}, nil
}

// chainToShop реализует chain shopping: у вагона ни в один момент не должно
// оказаться "нет активного события" между двумя заходами, поэтому преемник
// создаётся первым, а при конфликте версий предшественника компенсируется
// отменой.
func (o *orchestrator) chainToShop(event domain.ShoppingEvent, actor string, opts *DispositionOptions) (DispositionResult, error) {
	if _, err := domain.CheckTransition(event.State, domain.StateDispoToDestination, event.Source); err != nil {
		if o.metrics != nil {
			o.metrics.RecordTransitionRejected()
		}
		return DispositionResult{}, err
	}

	successor, err := o.newEvent(event.AssetID, event.Source, CreateAttributes{
		ShopCode: opts.NextShopCode,
		Priority: event.Priority,
		Actor:    actor,
	})
	if err != nil {
		return DispositionResult{}, err
	}
	if err := o.deps.Events.CreateChained(successor, event.ID); err != nil {
		return DispositionResult{}, fmt.Errorf("create chained successor: %w", err)
	}

	from := event.State
	event.State = domain.StateDispoToDestination
	event.Disposition = domain.DispositionToAnotherShop
	event.DispositionRef = successor.ID
	event.DispositionNote = opts.Note
	event.UpdatedAt = time.Now().UTC()

	prevVersion := event.Version
	if err := o.deps.Events.Save(event); err != nil {
		o.compensateSuccessor(successor, event.ID, actor)
		return DispositionResult{}, err
	}
	event.Version = prevVersion + 1

	if o.metrics != nil {
		o.metrics.RecordTransition(string(from), string(domain.StateDispoToDestination))
		o.metrics.RecordEventChained()
	}
	o.recordTransition(event, from, domain.StateDispoToDestination, false, actor, opts.Note)
	o.afterCreate(successor, actor, "chained from "+event.Number)
	o.emitEvent(event, "lifecycle.chained", map[string]interface{}{
		"successor_id":   successor.ID,
		"successor_shop": successor.ShopCode,
		"actor":          actor,
	})

	return DispositionResult{Event: event, Successor: &successor}, nil
}

// compensateSuccessor отменяет только что созданного преемника, если
// условная запись предшественника не прошла. Отмена проходит через журнал
// переходов, как любой другой переход.
func (o *orchestrator) compensateSuccessor(successor domain.ShoppingEvent, predecessorID, actor string) {
	from := successor.State
	now := time.Now().UTC()
	successor.State = domain.StateCancelled
	successor.CancelReason = "chain predecessor write conflict"
	successor.CancelledBy = actor
	successor.CancelledAt = now
	successor.UpdatedAt = now
	if err := o.deps.Events.Save(successor); err != nil {
		o.deps.Logger.WithError(err).WithFields(log.Fields{
			"event_id":       successor.ID,
			"predecessor_id": predecessorID,
		}).Error("compensation of chained successor failed")
		return
	}
	o.recordTransition(successor, from, domain.StateCancelled, false, actor, successor.CancelReason)
}

// Cancel — обёртка над переходом в CANCELLED, причина обязательна.
func (o *orchestrator) Cancel(eventID, reason, actor string) (domain.ShoppingEvent, error) {
	if reason == "" {
		return domain.ShoppingEvent{}, domain.ErrCancelReasonRequired
	}
	return o.Transition(eventID, domain.StateCancelled, actor, &TransitionMetadata{CancelReason: reason})
}

// SubmitEstimate фиксирует снапшот поданной сметы рядом с внешне
// рассчитанным потолком стоимости ремонта. Флаг превышения информационный:
// он не блокирует ни подачу, ни дальнейшие переходы, а строка события
// не меняется вовсе.
func (o *orchestrator) SubmitEstimate(eventID string, totalMinor int64, lineItems []domain.EstimateLineItem, notes string) (domain.EstimateSubmission, error) {
	if totalMinor <= 0 {
		return domain.EstimateSubmission{}, fmt.Errorf("%w: %d", domain.ErrEstimateAmountInvalid, totalMinor)
	}
	event, err := o.deps.Events.Get(eventID)
	if err != nil {
		return domain.EstimateSubmission{}, err
	}

	var limit domain.RepairLimit
	if computed, err := o.deps.Limits.ComputeCeiling(event.AssetID); err != nil {
		// Потолок советующий: подача фиксируется и без него.
		o.deps.Logger.WithError(err).WithFields(log.Fields{
			"event_id": event.ID,
			"asset_id": event.AssetID,
		}).Warn("repair limit calculator unavailable")
		if o.metrics != nil {
			o.metrics.RecordSideEffectFailure("repair_limit")
		}
	} else {
		limit = computed
	}

	sub := domain.EstimateSubmission{
		ID:             uuid.NewString(),
		EventID:        event.ID,
		SubmittedMinor: totalMinor,
		BookValueMinor: limit.BookValueMinor,
		CeilingMinor:   limit.CeilingMinor,
		ExceedsLimit:   limit.CeilingMinor > 0 && totalMinor > limit.CeilingMinor,
		LineItems:      lineItems,
		Notes:          notes,
		CreatedAt:      time.Now().UTC(),
	}
	if err := o.deps.Estimates.Create(sub); err != nil {
		return domain.EstimateSubmission{}, fmt.Errorf("persist estimate submission: %w", err)
	}
	if o.metrics != nil {
		o.metrics.RecordEstimateSubmission(sub.ExceedsLimit)
	}
	o.emitEvent(event, "estimate.submitted", map[string]interface{}{
		"submission_id":   sub.ID,
		"submitted_minor": sub.SubmittedMinor,
		"ceiling_minor":   sub.CeilingMinor,
		"exceeds_limit":   sub.ExceedsLimit,
	})
	return sub, nil
}

// Get возвращает событие по идентификатору.
func (o *orchestrator) Get(eventID string) (domain.ShoppingEvent, error) {
	return o.deps.Events.Get(eventID)
}

// GetActiveForAsset возвращает незавершённое событие вагона.
func (o *orchestrator) GetActiveForAsset(assetID string) (domain.ShoppingEvent, error) {
	return o.deps.Events.GetActiveForAsset(assetID)
}

// ListForAsset возвращает события вагона, новые первыми.
func (o *orchestrator) ListForAsset(assetID string, limit int) ([]domain.ShoppingEvent, error) {
	return o.deps.Events.ListForAsset(assetID, limit)
}

// List возвращает события по фильтру.
func (o *orchestrator) List(filter domain.EventFilter) ([]domain.ShoppingEvent, error) {
	return o.deps.Events.List(filter)
}

// Wait дожидается завершения всех запущенных side effects.
func (o *orchestrator) Wait() {
	o.wg.Wait()
}

// recordTransition пишет запись в журнал переходов (best-effort).
func (o *orchestrator) recordTransition(event domain.ShoppingEvent, from, to domain.EventState, reversible bool, actor, notes string) {
	rec := domain.TransitionRecord{
		ProcessType:  domain.ProcessTypeShopping,
		EntityID:     event.ID,
		EntityNumber: event.Number,
		FromState:    from,
		ToState:      to,
		Reversible:   reversible,
		Actor:        actor,
		Notes:        notes,
		Occurred:     time.Now().UTC(),
	}
	o.dispatch("transition_log", event, func() error {
		return o.deps.Log.Record(rec)
	})
}

// dispatch запускает side effect в фоне. Ошибка логируется и считается
// в метриках, но никогда не отменяет уже зафиксированный переход.
func (o *orchestrator) dispatch(effect string, event domain.ShoppingEvent, fn func() error) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := fn(); err != nil {
			o.deps.Logger.WithError(err).WithFields(log.Fields{
				"effect":   effect,
				"event_id": event.ID,
				"asset_id": event.AssetID,
			}).Warn("side effect failed")
			if o.metrics != nil {
				o.metrics.RecordSideEffectFailure(effect)
			}
		}
	}()
}

// emitEvent сохраняет аналитическое событие в transactional outbox.
func (o *orchestrator) emitEvent(event domain.ShoppingEvent, eventType string, payload map[string]interface{}) {
	if o.deps.Outbox == nil {
		return
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["event_id"] = event.ID
	payload["event_number"] = event.Number
	payload["ts"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(payload)
	if err != nil {
		o.deps.Logger.WithError(err).WithFields(log.Fields{
			"event_id":   event.ID,
			"event_type": eventType,
		}).Error("marshal analytics event failed")
		return
	}
	msg := domain.OutboxMessage{
		AggregateType: "shopping_event",
		AggregateID:   event.ID,
		EventType:     eventType,
		Payload:       data,
	}
	if _, err := o.deps.Outbox.Enqueue(msg); err != nil {
		o.deps.Logger.WithError(err).WithFields(log.Fields{
			"event_id":   event.ID,
			"event_type": eventType,
		}).Error("enqueue analytics event failed")
		if o.metrics != nil {
			o.metrics.RecordSideEffectFailure("outbox")
		}
	} else if o.metrics != nil {
		o.metrics.RecordOutboxEvent()
	}
}

var _ Orchestrator = (*orchestrator)(nil)
