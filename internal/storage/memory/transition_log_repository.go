package memory

import (
	"sort"
	"sync"

	"github.com/railfleet/sms/internal/domain"
)

// transitionLogInMemory хранит журнал переходов в памяти (для разработки/тестов).
type transitionLogInMemory struct {
	mu      sync.RWMutex
	records map[string][]domain.TransitionRecord
}

// NewTransitionLogRepository создаёт in-memory реализацию TransitionLogRepository.
func NewTransitionLogRepository() domain.TransitionLogRepository {
	return &transitionLogInMemory{records: make(map[string][]domain.TransitionRecord)}
}

// Record добавляет запись в журнал.
func (r *transitionLogInMemory) Record(rec domain.TransitionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[rec.EntityID] = append(r.records[rec.EntityID], rec)

	sort.Slice(r.records[rec.EntityID], func(i, j int) bool {
		return r.records[rec.EntityID][i].Occurred.Before(r.records[rec.EntityID][j].Occurred)
	})

	return nil
}

// List возвращает записи по сущности в хронологическом порядке.
func (r *transitionLogInMemory) List(entityID string) ([]domain.TransitionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := r.records[entityID]
	result := make([]domain.TransitionRecord, len(records))
	copy(result, records)
	return result, nil
}

var _ domain.TransitionLogRepository = (*transitionLogInMemory)(nil)
