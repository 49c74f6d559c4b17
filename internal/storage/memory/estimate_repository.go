package memory

import (
	"sort"
	"sync"

	"github.com/railfleet/sms/internal/domain"
)

// estimateRepositoryInMemory хранит снапшоты смет в памяти.
type estimateRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string][]domain.EstimateSubmission
}

// NewEstimateRepository создаёт in-memory реализацию EstimateRepository.
func NewEstimateRepository() domain.EstimateRepository {
	return &estimateRepositoryInMemory{items: make(map[string][]domain.EstimateSubmission)}
}

// Create добавляет снапшот; записи неизменяемы после сохранения.
func (r *estimateRepositoryInMemory) Create(sub domain.EstimateSubmission) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := append([]domain.EstimateLineItem(nil), sub.LineItems...)
	sub.LineItems = items
	r.items[sub.EventID] = append(r.items[sub.EventID], sub)
	return nil
}

// ListForEvent возвращает подачи по событию в порядке создания.
func (r *estimateRepositoryInMemory) ListForEvent(eventID string) ([]domain.EstimateSubmission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.items[eventID]
	result := make([]domain.EstimateSubmission, len(subs))
	copy(result, subs)

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

var _ domain.EstimateRepository = (*estimateRepositoryInMemory)(nil)
