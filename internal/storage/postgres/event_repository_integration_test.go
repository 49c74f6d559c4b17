package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/railfleet/sms/internal/domain"
)

func TestEventRepository_PostgresCreateGetListAndSave(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewEventRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	event1 := sampleEvent("event-1", "RAIL000001", 1, now.Add(-2*time.Minute))
	event2 := sampleEvent("event-2", "RAIL000002", 2, now.Add(-time.Minute))

	if err := repo.Create(event1); err != nil {
		t.Fatalf("create event1: %v", err)
	}
	if err := repo.Create(event2); err != nil {
		t.Fatalf("create event2: %v", err)
	}

	got, err := repo.Get(event1.ID)
	if err != nil {
		t.Fatalf("get event1: %v", err)
	}
	if got.ID != event1.ID || got.AssetID != event1.AssetID || got.State != event1.State {
		t.Fatalf("unexpected event payload: %+v", got)
	}
	if got.Number != event1.Number || got.Source != event1.Source || got.Priority != event1.Priority {
		t.Fatalf("unexpected event attributes: %+v", got)
	}
	if !got.TargetDate.IsZero() {
		t.Fatalf("expected zero target date, got %v", got.TargetDate)
	}

	active, err := repo.GetActiveForAsset(event1.AssetID)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if active.ID != event1.ID {
		t.Fatalf("unexpected active event: %s", active.ID)
	}

	listed, err := repo.List(domain.EventFilter{Limit: 1})
	if err != nil {
		t.Fatalf("list with limit: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != event2.ID {
		t.Fatalf("unexpected list result with limit: %+v", listed)
	}

	byAsset, err := repo.ListForAsset(event1.AssetID, 0)
	if err != nil {
		t.Fatalf("list for asset: %v", err)
	}
	if len(byAsset) != 1 || byAsset[0].ID != event1.ID {
		t.Fatalf("unexpected list for asset: %+v", byAsset)
	}

	byState, err := repo.List(domain.EventFilter{States: []domain.EventState{domain.StateEvent}})
	if err != nil {
		t.Fatalf("list by state: %v", err)
	}
	if len(byState) != 2 {
		t.Fatalf("expected 2 events in state EVENT, got %d", len(byState))
	}

	got.State = domain.StatePacket
	got.UpdatedAt = now.Add(time.Minute)
	if err := repo.Save(got); err != nil {
		t.Fatalf("save event: %v", err)
	}

	updated, err := repo.Get(event1.ID)
	if err != nil {
		t.Fatalf("get updated event: %v", err)
	}
	if updated.State != domain.StatePacket {
		t.Fatalf("unexpected state after save: %s", updated.State)
	}
	if updated.Version != got.Version+1 {
		t.Fatalf("unexpected version after save: got=%d want=%d", updated.Version, got.Version+1)
	}
}

func TestEventRepository_PostgresActiveEventConflict(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewEventRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	first := sampleEvent("conflict-1", "RAIL000010", 10, now)

	if err := repo.Create(first); err != nil {
		t.Fatalf("create first event: %v", err)
	}

	second := sampleEvent("conflict-2", "RAIL000010", 11, now.Add(time.Second))
	if err := repo.Create(second); !errors.Is(err, domain.ErrActiveEventExists) {
		t.Fatalf("expected ErrActiveEventExists, got %v", err)
	}

	// После отмены первого события новое создаётся без конфликта.
	first.State = domain.StateCancelled
	first.CancelReason = "created by mistake"
	first.CancelledBy = "operator"
	first.CancelledAt = now.Add(time.Minute)
	if err := repo.Save(first); err != nil {
		t.Fatalf("cancel first event: %v", err)
	}
	if err := repo.Create(second); err != nil {
		t.Fatalf("create after cancel: %v", err)
	}
}

func TestEventRepository_PostgresCreateChained(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewEventRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	predecessor := sampleEvent("chain-pred", "RAIL000020", 20, now)
	predecessor.State = domain.StateFinalApproved
	if err := repo.Create(predecessor); err != nil {
		t.Fatalf("create predecessor: %v", err)
	}

	successor := sampleEvent("chain-succ", "RAIL000020", 21, now.Add(time.Second))
	if err := repo.Create(successor); !errors.Is(err, domain.ErrActiveEventExists) {
		t.Fatalf("plain create must conflict, got %v", err)
	}
	if err := repo.CreateChained(successor, predecessor.ID); err != nil {
		t.Fatalf("create chained successor: %v", err)
	}

	// Два активных события допустимы только в chain-окне; активным
	// считается более новое.
	active, err := repo.GetActiveForAsset("RAIL000020")
	if err != nil {
		t.Fatalf("get active during chain: %v", err)
	}
	if active.ID != successor.ID {
		t.Fatalf("expected successor as active, got %s", active.ID)
	}

	third := sampleEvent("chain-third", "RAIL000020", 22, now.Add(2*time.Second))
	if err := repo.CreateChained(third, predecessor.ID); !errors.Is(err, domain.ErrActiveEventExists) {
		t.Fatalf("second chained create must conflict, got %v", err)
	}
}

func TestEventRepository_PostgresErrors(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewEventRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	base := sampleEvent("event-errors", "RAIL000030", 30, now)

	if _, err := repo.Get("missing-event"); !errors.Is(err, domain.ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
	if _, err := repo.GetActiveForAsset("RAIL000030"); !errors.Is(err, domain.ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound for active, got %v", err)
	}

	if err := repo.Save(base); !errors.Is(err, domain.ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound on save missing, got %v", err)
	}

	if err := repo.Create(base); err != nil {
		t.Fatalf("create base event: %v", err)
	}

	stale := base
	stale.State = domain.StatePacket
	stale.UpdatedAt = now.Add(time.Minute)
	stale.Version = 42
	if err := repo.Save(stale); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict on stale save, got %v", err)
	}
}

func TestEventRepository_PostgresDispositionRoundTrip(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewEventRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	event := sampleEvent("event-dispo", "RAIL000040", 40, now)
	event.TargetDate = now.Add(72 * time.Hour)
	if err := repo.Create(event); err != nil {
		t.Fatalf("create event: %v", err)
	}

	event.State = domain.StateDispoToDestination
	event.Disposition = domain.DispositionToStorage
	event.DispositionNote = "post repair storage"
	event.Cost = domain.CostSummary{EstimatedMinor: 420000, ApprovedMinor: 400000, InvoicedMinor: 410000}
	event.UpdatedAt = now.Add(time.Minute)
	if err := repo.Save(event); err != nil {
		t.Fatalf("save disposition: %v", err)
	}

	got, err := repo.Get(event.ID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if got.Disposition != domain.DispositionToStorage || got.DispositionNote != "post repair storage" {
		t.Fatalf("unexpected disposition payload: %+v", got)
	}
	if got.Cost.VarianceMinor() != 10000 {
		t.Fatalf("unexpected cost variance: %d", got.Cost.VarianceMinor())
	}
	if !got.TargetDate.Equal(event.TargetDate) {
		t.Fatalf("unexpected target date: got=%v want=%v", got.TargetDate, event.TargetDate)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("expected unique violation for code 23505")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "22001"}) {
		t.Fatal("unexpected unique violation for non-unique code")
	}
	if isUniqueViolation(errors.New("plain error")) {
		t.Fatal("plain error must not be unique violation")
	}
}

func sampleEvent(id, assetID string, seq int, createdAt time.Time) domain.ShoppingEvent {
	return domain.ShoppingEvent{
		ID:        id,
		Number:    domain.FormatEventNumber(createdAt, seq),
		AssetID:   assetID,
		State:     domain.StateEvent,
		Source:    domain.SourceTriage,
		Priority:  domain.PriorityNormal,
		Version:   0,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}
