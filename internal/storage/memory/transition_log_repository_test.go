package memory_test

import (
	"testing"
	"time"

	"github.com/railfleet/sms/internal/domain"
	"github.com/railfleet/sms/internal/storage/memory"
)

func TestTransitionLogRepository_RecordAndList(t *testing.T) {
	repo := memory.NewTransitionLogRepository()
	now := time.Now().UTC()

	second := domain.TransitionRecord{
		ProcessType:  domain.ProcessTypeShopping,
		EntityID:     "event-1",
		EntityNumber: "SE-20260212-00001",
		FromState:    domain.StatePacket,
		ToState:      domain.StateSOW,
		Actor:        "operator-1",
		Occurred:     now.Add(time.Minute),
	}
	first := domain.TransitionRecord{
		ProcessType:  domain.ProcessTypeShopping,
		EntityID:     "event-1",
		EntityNumber: "SE-20260212-00001",
		FromState:    domain.StateEvent,
		ToState:      domain.StatePacket,
		Reversible:   true,
		Actor:        "operator-1",
		Occurred:     now,
	}

	// Записываем в обратном порядке: List обязан вернуть хронологию.
	if err := repo.Record(second); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if err := repo.Record(first); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	records, err := repo.List("event-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ToState != domain.StatePacket || records[1].ToState != domain.StateSOW {
		t.Fatalf("expected chronological order, got %s then %s", records[0].ToState, records[1].ToState)
	}
	if !records[0].Reversible {
		t.Error("first forward edge must keep reversible tag")
	}
}
