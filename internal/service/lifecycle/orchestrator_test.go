package lifecycle

import (
	"encoding/json"
	"fmt"
	"io"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/railfleet/sms/internal/domain"
	"github.com/railfleet/sms/internal/service/assets"
	"github.com/railfleet/sms/internal/service/idle"
	"github.com/railfleet/sms/internal/service/repairlimit"
	"github.com/railfleet/sms/internal/service/triage"
	"github.com/railfleet/sms/internal/storage/memory"
)

type testEnv struct {
	orch      Orchestrator
	events    domain.EventRepository
	estimates domain.EstimateRepository
	translog  domain.TransitionLogRepository
	outbox    domain.OutboxRepository
	registry  *assets.MockRegistry
	idle      *idle.MockTracker
	triage    *triage.MockQueue
	limits    *repairlimit.MockCalculator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := log.New()
	logger.SetOutput(io.Discard)

	env := &testEnv{
		events:    memory.NewEventRepository(),
		estimates: memory.NewEstimateRepository(),
		translog:  memory.NewTransitionLogRepository(),
		outbox:    memory.NewOutboxRepository(),
		registry:  assets.NewMockRegistry(),
		idle:      idle.NewMockTracker(),
		triage:    triage.NewMockQueue(),
		limits:    repairlimit.NewMockCalculator(9000000, 3800000),
	}
	env.orch = NewOrchestratorWithoutMetrics(Deps{
		Events:    env.events,
		Sequences: memory.NewSequenceAllocator(),
		Estimates: env.estimates,
		Log:       env.translog,
		Outbox:    env.outbox,
		Assets:    env.registry,
		Idle:      env.idle,
		Triage:    env.triage,
		Limits:    env.limits,
		Logger:    logger.WithField("component", "lifecycle-test"),
	})
	return env
}

func (e *testEnv) create(t *testing.T, assetID string, source domain.EventSource) domain.ShoppingEvent {
	t.Helper()
	event, err := e.orch.Create(assetID, source, CreateAttributes{Actor: "operator-1"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	return event
}

func (e *testEnv) advance(t *testing.T, eventID string, states ...domain.EventState) domain.ShoppingEvent {
	t.Helper()
	var event domain.ShoppingEvent
	var err error
	for _, state := range states {
		event, err = e.orch.Transition(eventID, state, "operator-1", nil)
		if err != nil {
			t.Fatalf("transition to %s failed: %v", state, err)
		}
	}
	return event
}

func (e *testEnv) outboxEventTypes(t *testing.T) []string {
	t.Helper()
	msgs, err := e.outbox.PullPending(0)
	if err != nil {
		t.Fatalf("pull pending failed: %v", err)
	}
	types := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		types = append(types, msg.EventType)
	}
	return types
}

// pathToFinalApproved перечисляет полный прямой маршрут от EVENT
// до FINAL_APPROVED.
var pathToFinalApproved = []domain.EventState{
	domain.StatePacket,
	domain.StateSOW,
	domain.StateShopAssigned,
	domain.StateDispoToShop,
	domain.StateEnroute,
	domain.StateArrived,
	domain.StateEstimateReceived,
	domain.StateEstimateApproved,
	domain.StateWorkInProgress,
	domain.StateFinalEstimateReceived,
	domain.StateFinalApproved,
}

func TestCreate_FirstOfDay(t *testing.T) {
	env := newTestEnv(t)

	event := env.create(t, "ABCD123456", domain.SourceQuickShop)

	if event.State != domain.StateEvent {
		t.Fatalf("expected state EVENT, got %s", event.State)
	}
	want := fmt.Sprintf("SE-%s-00001", time.Now().UTC().Format("20060102"))
	if event.Number != want {
		t.Fatalf("expected number %s, got %s", want, event.Number)
	}
	if event.Version != 0 {
		t.Fatalf("expected version 0, got %d", event.Version)
	}

	env.orch.Wait()

	closed := env.idle.Closed()
	if len(closed) != 1 || closed[0] != "ABCD123456" {
		t.Fatalf("expected idle window closed for asset, got %+v", closed)
	}
	resolutions := env.triage.Resolutions()
	if len(resolutions) != 1 || resolutions[0].LinkedEventID != event.ID {
		t.Fatalf("expected triage resolution linked to event, got %+v", resolutions)
	}
	records, err := env.translog.List(event.ID)
	if err != nil || len(records) != 1 {
		t.Fatalf("expected 1 transition record, got %d (err=%v)", len(records), err)
	}
	if records[0].ToState != domain.StateEvent || records[0].FromState != "" {
		t.Fatalf("unexpected creation record: %+v", records[0])
	}

	types := env.outboxEventTypes(t)
	if len(types) != 1 || types[0] != "lifecycle.event.created" {
		t.Fatalf("expected created analytics event, got %v", types)
	}
}

func TestCreate_Validation(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.orch.Create("", domain.SourceManual, CreateAttributes{}); err != domain.ErrAssetRequired {
		t.Fatalf("expected ErrAssetRequired, got %v", err)
	}
	if _, err := env.orch.Create("ABCD123456", "unknown", CreateAttributes{}); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for source, got %v", err)
	}

	env.registry.Missing["GONE000001"] = true
	if _, err := env.orch.Create("GONE000001", domain.SourceManual, CreateAttributes{}); !domain.IsNotFound(err) {
		t.Fatalf("expected not found error, got %v", err)
	}

	env.registry.Statuses["SCRP000001"] = domain.FleetStatusDisposed
	_, err := env.orch.Create("SCRP000001", domain.SourceManual, CreateAttributes{})
	if !domain.IsAssetDisposed(err) {
		t.Fatalf("expected asset disposed error, got %v", err)
	}
}

func TestCreate_ActiveEventExists(t *testing.T) {
	env := newTestEnv(t)

	first := env.create(t, "ABCD123456", domain.SourceManual)
	if _, err := env.orch.Create("ABCD123456", domain.SourceManual, CreateAttributes{}); err != domain.ErrActiveEventExists {
		t.Fatalf("expected ErrActiveEventExists, got %v", err)
	}

	if _, err := env.orch.Cancel(first.ID, "duplicate request", "operator-1"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	// После терминального статуса новое событие для вагона открывается.
	second := env.create(t, "ABCD123456", domain.SourceManual)
	if second.ID == first.ID {
		t.Fatal("expected a new event after terminal predecessor")
	}
}

func TestTransition_ForwardWalkAndIllegalJumps(t *testing.T) {
	env := newTestEnv(t)
	event := env.create(t, "ABCD123456", domain.SourceManual)

	if _, err := env.orch.Transition(event.ID, domain.StateArrived, "operator-1", nil); !domain.IsInvalidTransition(err) {
		t.Fatalf("expected InvalidTransition for jump, got %v", err)
	}

	updated := env.advance(t, event.ID, pathToFinalApproved...)
	if updated.State != domain.StateFinalApproved {
		t.Fatalf("expected FINAL_APPROVED, got %s", updated.State)
	}
	if updated.Version != int64(len(pathToFinalApproved)) {
		t.Fatalf("expected version %d, got %d", len(pathToFinalApproved), updated.Version)
	}
}

func TestTransition_NotFound(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.orch.Transition("missing", domain.StatePacket, "operator-1", nil); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTransition_DispositionGate(t *testing.T) {
	env := newTestEnv(t)
	event := env.create(t, "ABCD123456", domain.SourceManual)
	env.advance(t, event.ID, pathToFinalApproved...)

	if _, err := env.orch.Transition(event.ID, domain.StateDispoToDestination, "operator-1", nil); err != domain.ErrDispositionRequired {
		t.Fatalf("expected ErrDispositionRequired, got %v", err)
	}
	if _, err := env.orch.Transition(event.ID, domain.StateDispoToDestination, "operator-1", &TransitionMetadata{Disposition: "somewhere"}); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for bad disposition, got %v", err)
	}

	updated, err := env.orch.Transition(event.ID, domain.StateDispoToDestination, "operator-1", &TransitionMetadata{
		Disposition:     domain.DispositionToCustomer,
		DispositionNote: "lease resumes",
	})
	if err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if updated.Disposition != domain.DispositionToCustomer || updated.DispositionNote != "lease resumes" {
		t.Fatalf("disposition fields not persisted: %+v", updated)
	}
}

func TestTransition_TerminalImmutability(t *testing.T) {
	env := newTestEnv(t)
	event := env.create(t, "ABCD123456", domain.SourceManual)

	if _, err := env.orch.Cancel(event.ID, "ordered by mistake", "operator-1"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	if _, err := env.orch.Transition(event.ID, domain.StatePacket, "operator-1", nil); !domain.IsInvalidTransition(err) {
		t.Fatalf("expected InvalidTransition from CANCELLED, got %v", err)
	}
	// Повторная отмена тоже нелегальна.
	if _, err := env.orch.Cancel(event.ID, "again", "operator-1"); !domain.IsInvalidTransition(err) {
		t.Fatalf("expected InvalidTransition for re-cancel, got %v", err)
	}
}

func TestTransition_ShortCycleShortcut(t *testing.T) {
	env := newTestEnv(t)

	quick := env.create(t, "ABCD123456", domain.SourceQuickShop)
	env.advance(t, quick.ID, pathToFinalApproved...)
	closed, err := env.orch.Transition(quick.ID, domain.StateClosed, "operator-1", nil)
	if err != nil {
		t.Fatalf("short-cycle close failed: %v", err)
	}
	if closed.State != domain.StateClosed {
		t.Fatalf("expected CLOSED, got %s", closed.State)
	}

	regular := env.create(t, "WXYZ987654", domain.SourceManual)
	env.advance(t, regular.ID, pathToFinalApproved...)
	if _, err := env.orch.Transition(regular.ID, domain.StateClosed, "operator-1", nil); !domain.IsInvalidTransition(err) {
		t.Fatalf("expected InvalidTransition for non-short-cycle shortcut, got %v", err)
	}
}

func TestTransition_ReviewLoops(t *testing.T) {
	env := newTestEnv(t)
	event := env.create(t, "ABCD123456", domain.SourceManual)
	env.advance(t, event.ID,
		domain.StatePacket,
		domain.StateSOW,
		domain.StateShopAssigned,
		domain.StateDispoToShop,
		domain.StateEnroute,
		domain.StateArrived,
		domain.StateEstimateReceived,
		domain.StateEstimateApproved,
	)

	// Смета возвращается на доработку.
	looped := env.advance(t, event.ID, domain.StateEstimateReceived)
	if looped.State != domain.StateEstimateReceived {
		t.Fatalf("expected loop back to ESTIMATE_RECEIVED, got %s", looped.State)
	}

	// Из ESTIMATE_RECEIVED прыжок в FINAL_APPROVED нелегален.
	if _, err := env.orch.Transition(event.ID, domain.StateFinalApproved, "operator-1", nil); !domain.IsInvalidTransition(err) {
		t.Fatalf("expected InvalidTransition, got %v", err)
	}
}

// staleReadRepo подсовывает оркестратору устаревший снапшот события,
// моделируя второго оператора с несвежим чтением.
type staleReadRepo struct {
	domain.EventRepository
	stale domain.ShoppingEvent
}

func (s *staleReadRepo) Get(id string) (domain.ShoppingEvent, error) {
	return s.stale, nil
}

func TestTransition_StaleVersionRejectedWithoutRetry(t *testing.T) {
	env := newTestEnv(t)
	event := env.create(t, "ABCD123456", domain.SourceManual)

	stale, err := env.events.Get(event.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	// Первый оператор успевает раньше.
	env.advance(t, event.ID, domain.StatePacket)

	logger := log.New()
	logger.SetOutput(io.Discard)
	staleOrch := NewOrchestratorWithoutMetrics(Deps{
		Events:    &staleReadRepo{EventRepository: env.events, stale: stale},
		Sequences: memory.NewSequenceAllocator(),
		Estimates: env.estimates,
		Log:       env.translog,
		Outbox:    env.outbox,
		Assets:    env.registry,
		Idle:      env.idle,
		Triage:    env.triage,
		Limits:    env.limits,
		Logger:    logger.WithField("component", "lifecycle-test"),
	})

	// Второй оператор со stale-версией получает конфликт, без auto-retry.
	if _, err := staleOrch.Transition(event.ID, domain.StatePacket, "operator-2", nil); !domain.IsVersionConflict(err) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	current, err := env.events.Get(event.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if current.Version != 1 || current.State != domain.StatePacket {
		t.Fatalf("stale write must not overwrite: %+v", current)
	}
}

func TestSetDisposition_ChainToAnotherShop(t *testing.T) {
	env := newTestEnv(t)
	event := env.create(t, "ABCD123456", domain.SourceManual)
	env.advance(t, event.ID, pathToFinalApproved...)

	result, err := env.orch.SetDisposition(event.ID, domain.DispositionToAnotherShop, "operator-1", &DispositionOptions{NextShopCode: "SHOPX"})
	if err != nil {
		t.Fatalf("set disposition failed: %v", err)
	}
	if result.Successor == nil {
		t.Fatal("expected successor event")
	}
	if result.Successor.AssetID != event.AssetID {
		t.Fatalf("successor asset mismatch: %s", result.Successor.AssetID)
	}
	if result.Successor.ShopCode != "SHOPX" {
		t.Fatalf("successor shop mismatch: %s", result.Successor.ShopCode)
	}
	if result.Successor.State != domain.StateEvent {
		t.Fatalf("successor must start in EVENT, got %s", result.Successor.State)
	}
	if result.Successor.Source != event.Source {
		t.Fatalf("successor source mismatch: %s", result.Successor.Source)
	}

	if result.Event.State != domain.StateDispoToDestination {
		t.Fatalf("expected DISPO_TO_DESTINATION, got %s", result.Event.State)
	}
	if result.Event.Disposition != domain.DispositionToAnotherShop {
		t.Fatalf("unexpected disposition: %s", result.Event.Disposition)
	}
	if result.Event.DispositionRef != result.Successor.ID {
		t.Fatalf("disposition reference must point at successor, got %q", result.Event.DispositionRef)
	}

	// Наблюдатель хранилища видит ссылку сразу после возврата.
	stored, err := env.events.Get(event.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.DispositionRef != result.Successor.ID {
		t.Fatalf("stored disposition reference mismatch: %q", stored.DispositionRef)
	}

	env.orch.Wait()
	found := false
	for _, eventType := range env.outboxEventTypes(t) {
		if eventType == "lifecycle.chained" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected chained analytics event")
	}
}

func TestSetDisposition_ChainConflictCompensatesSuccessor(t *testing.T) {
	env := newTestEnv(t)
	event := env.create(t, "ABCD123456", domain.SourceManual)
	env.advance(t, event.ID, pathToFinalApproved...)

	stale, err := env.events.Get(event.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	// Конкурирующий переход: loop назад и обратно, версия уходит вперёд.
	env.advance(t, event.ID, domain.StateFinalEstimateReceived, domain.StateFinalApproved)

	logger := log.New()
	logger.SetOutput(io.Discard)
	staleOrch := NewOrchestratorWithoutMetrics(Deps{
		Events:    &staleReadRepo{EventRepository: env.events, stale: stale},
		Sequences: memory.NewSequenceAllocator(),
		Estimates: env.estimates,
		Log:       env.translog,
		Outbox:    env.outbox,
		Assets:    env.registry,
		Idle:      env.idle,
		Triage:    env.triage,
		Limits:    env.limits,
		Logger:    logger.WithField("component", "lifecycle-test"),
	})

	_, err = staleOrch.SetDisposition(event.ID, domain.DispositionToAnotherShop, "operator-2", &DispositionOptions{NextShopCode: "SHOPX"})
	if !domain.IsVersionConflict(err) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	// Компенсация: преемник отменён, вагон не зажат двумя активными событиями.
	all, err := env.events.ListForAsset("ABCD123456", 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected predecessor and compensated successor, got %d events", len(all))
	}
	staleOrch.Wait()
	for _, stored := range all {
		if stored.ID == event.ID {
			continue
		}
		if stored.State != domain.StateCancelled {
			t.Fatalf("expected compensated successor to be CANCELLED, got %s", stored.State)
		}
		if stored.CancelledBy != "operator-2" {
			t.Fatalf("expected compensation actor operator-2, got %q", stored.CancelledBy)
		}
		if stored.CancelReason == "" {
			t.Fatal("expected compensation cancel reason")
		}

		// Компенсация видна в журнале переходов, как обычная отмена.
		records, err := env.translog.List(stored.ID)
		if err != nil {
			t.Fatalf("list transition log failed: %v", err)
		}
		var cancelled bool
		for _, rec := range records {
			if rec.ToState == domain.StateCancelled {
				cancelled = true
			}
		}
		if !cancelled {
			t.Fatal("expected cancellation record for compensated successor")
		}
	}
}

func TestSetDisposition_WithoutChain(t *testing.T) {
	env := newTestEnv(t)
	event := env.create(t, "ABCD123456", domain.SourceManual)
	env.advance(t, event.ID, pathToFinalApproved...)

	result, err := env.orch.SetDisposition(event.ID, domain.DispositionToStorage, "operator-1", nil)
	if err != nil {
		t.Fatalf("set disposition failed: %v", err)
	}
	if result.Successor != nil {
		t.Fatal("expected no successor for storage disposition")
	}
	if result.Event.Disposition != domain.DispositionToStorage {
		t.Fatalf("unexpected disposition: %s", result.Event.Disposition)
	}
}

func TestCancel_RequiresReason(t *testing.T) {
	env := newTestEnv(t)
	event := env.create(t, "ABCD123456", domain.SourceManual)

	if _, err := env.orch.Cancel(event.ID, "", "operator-1"); err != domain.ErrCancelReasonRequired {
		t.Fatalf("expected ErrCancelReasonRequired, got %v", err)
	}

	cancelled, err := env.orch.Cancel(event.ID, "asset sold", "operator-1")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.State != domain.StateCancelled {
		t.Fatalf("expected CANCELLED, got %s", cancelled.State)
	}
	if cancelled.CancelReason != "asset sold" || cancelled.CancelledBy != "operator-1" || cancelled.CancelledAt.IsZero() {
		t.Fatalf("cancellation metadata not persisted: %+v", cancelled)
	}
}

func TestSubmitEstimate_AdvisoryFlag(t *testing.T) {
	env := newTestEnv(t)
	event := env.create(t, "ABCD123456", domain.SourceManual)
	env.advance(t, event.ID,
		domain.StatePacket,
		domain.StateSOW,
		domain.StateShopAssigned,
		domain.StateDispoToShop,
		domain.StateEnroute,
		domain.StateArrived,
		domain.StateEstimateReceived,
	)

	sub, err := env.orch.SubmitEstimate(event.ID, 4200000, []domain.EstimateLineItem{
		{Code: "VALVE", Description: "valve replacement", AmountMinor: 4200000},
	}, "")
	if err != nil {
		t.Fatalf("submit estimate failed: %v", err)
	}
	if !sub.ExceedsLimit {
		t.Fatal("expected exceeds-limit flag for 42000 over ceiling 38000")
	}
	if sub.BookValueMinor != 9000000 || sub.CeilingMinor != 3800000 {
		t.Fatalf("limit snapshot not captured: %+v", sub)
	}

	stored, err := env.estimates.ListForEvent(event.ID)
	if err != nil || len(stored) != 1 {
		t.Fatalf("expected persisted submission, got %d (err=%v)", len(stored), err)
	}

	// Флаг советующий: утверждение сметы проходит.
	approved := env.advance(t, event.ID, domain.StateEstimateApproved)
	if approved.State != domain.StateEstimateApproved {
		t.Fatalf("expected ESTIMATE_APPROVED, got %s", approved.State)
	}

	// Подача не трогает строку события.
	current, err := env.events.Get(event.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if current.Version != approved.Version {
		t.Fatalf("estimate submission must not bump event version")
	}
}

func TestSubmitEstimate_CalculatorUnavailable(t *testing.T) {
	env := newTestEnv(t)
	event := env.create(t, "ABCD123456", domain.SourceManual)

	env.limits.Err = fmt.Errorf("calculator down")
	sub, err := env.orch.SubmitEstimate(event.ID, 1000000, nil, "no ceiling available")
	if err != nil {
		t.Fatalf("submit estimate failed: %v", err)
	}
	if sub.ExceedsLimit || sub.CeilingMinor != 0 || sub.BookValueMinor != 0 {
		t.Fatalf("expected zero limit snapshot, got %+v", sub)
	}
}

func TestSubmitEstimate_Validation(t *testing.T) {
	env := newTestEnv(t)
	event := env.create(t, "ABCD123456", domain.SourceManual)

	if _, err := env.orch.SubmitEstimate(event.ID, 0, nil, ""); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := env.orch.SubmitEstimate("missing", 100, nil, ""); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestClosure_ToStorageSideEffects(t *testing.T) {
	env := newTestEnv(t)
	event := env.create(t, "ABCD123456", domain.SourceManual)
	env.advance(t, event.ID, pathToFinalApproved...)

	if _, err := env.orch.SetDisposition(event.ID, domain.DispositionToStorage, "operator-1", nil); err != nil {
		t.Fatalf("set disposition failed: %v", err)
	}
	if _, err := env.orch.Transition(event.ID, domain.StateClosed, "operator-1", nil); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	env.orch.Wait()

	opened := env.idle.Opened()
	if len(opened) != 1 || opened[0].AssetID != "ABCD123456" {
		t.Fatalf("expected exactly one idle period, got %+v", opened)
	}
	entries := env.triage.Entries()
	if len(entries) != 1 || entries[0].LinkedEventID != event.ID {
		t.Fatalf("expected exactly one triage entry referencing event, got %+v", entries)
	}

	found := false
	msgs, err := env.outbox.PullPending(0)
	if err != nil {
		t.Fatalf("pull pending failed: %v", err)
	}
	for _, msg := range msgs {
		if msg.EventType != "lifecycle.event.closed" {
			continue
		}
		found = true
		var payload map[string]interface{}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			t.Fatalf("unmarshal closure payload: %v", err)
		}
		if payload["disposition"] != string(domain.DispositionToStorage) {
			t.Fatalf("unexpected closure disposition: %v", payload["disposition"])
		}
	}
	if !found {
		t.Fatal("expected closure analytics event")
	}
}

func TestClosure_ToCustomerNoSideEffects(t *testing.T) {
	env := newTestEnv(t)
	event := env.create(t, "ABCD123456", domain.SourceManual)
	env.advance(t, event.ID, pathToFinalApproved...)

	if _, err := env.orch.SetDisposition(event.ID, domain.DispositionToCustomer, "operator-1", nil); err != nil {
		t.Fatalf("set disposition failed: %v", err)
	}
	if _, err := env.orch.Transition(event.ID, domain.StateClosed, "operator-1", nil); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	env.orch.Wait()

	if opened := env.idle.Opened(); len(opened) != 0 {
		t.Fatalf("expected no idle periods, got %+v", opened)
	}
	if entries := env.triage.Entries(); len(entries) != 0 {
		t.Fatalf("expected no triage entries, got %+v", entries)
	}

	found := false
	for _, eventType := range env.outboxEventTypes(t) {
		if eventType == "lifecycle.event.closed" {
			found = true
		}
	}
	if !found {
		t.Fatal("closure analytics event must be emitted regardless of disposition")
	}
}

func TestClosure_SideEffectFailureDoesNotUnwind(t *testing.T) {
	env := newTestEnv(t)
	env.idle.OpenErr = fmt.Errorf("tracker down")
	env.triage.CreateErr = fmt.Errorf("queue down")

	event := env.create(t, "ABCD123456", domain.SourceManual)
	env.advance(t, event.ID, pathToFinalApproved...)
	if _, err := env.orch.SetDisposition(event.ID, domain.DispositionToStorage, "operator-1", nil); err != nil {
		t.Fatalf("set disposition failed: %v", err)
	}
	closed, err := env.orch.Transition(event.ID, domain.StateClosed, "operator-1", nil)
	if err != nil {
		t.Fatalf("close must succeed despite side effect failures: %v", err)
	}
	env.orch.Wait()

	if closed.State != domain.StateClosed {
		t.Fatalf("expected CLOSED, got %s", closed.State)
	}
	stored, err := env.events.Get(event.ID)
	if err != nil || stored.State != domain.StateClosed {
		t.Fatalf("committed transition must stand: %+v (err=%v)", stored, err)
	}
}

func TestQueries(t *testing.T) {
	env := newTestEnv(t)
	event := env.create(t, "ABCD123456", domain.SourceManual)

	got, err := env.orch.Get(event.ID)
	if err != nil || got.ID != event.ID {
		t.Fatalf("unexpected get result: %+v (err=%v)", got, err)
	}
	active, err := env.orch.GetActiveForAsset("ABCD123456")
	if err != nil || active.ID != event.ID {
		t.Fatalf("unexpected active event: %+v (err=%v)", active, err)
	}
	list, err := env.orch.ListForAsset("ABCD123456", 0)
	if err != nil || len(list) != 1 {
		t.Fatalf("unexpected asset list: %d (err=%v)", len(list), err)
	}
	filtered, err := env.orch.List(domain.EventFilter{Source: domain.SourceManual})
	if err != nil || len(filtered) != 1 {
		t.Fatalf("unexpected filtered list: %d (err=%v)", len(filtered), err)
	}
}
