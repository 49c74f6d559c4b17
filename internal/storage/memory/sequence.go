package memory

import (
	"sync"
	"time"

	"github.com/railfleet/sms/internal/domain"
)

// sequenceAllocatorInMemory выдаёт дневные номера событий из памяти.
type sequenceAllocatorInMemory struct {
	mu   sync.Mutex
	last map[string]int
}

// NewSequenceAllocator возвращает in-memory генератор номеров событий.
func NewSequenceAllocator() domain.SequenceAllocator {
	return &sequenceAllocatorInMemory{last: make(map[string]int)}
}

// NextEventNumber атомарно инкрементирует дневной счётчик и возвращает
// отформатированный номер. При переполнении суток — ErrSequenceExhausted.
func (a *sequenceAllocatorInMemory) NextEventNumber(day time.Time) (string, error) {
	key := day.UTC().Format("20060102")

	a.mu.Lock()
	defer a.mu.Unlock()

	next := a.last[key] + 1
	if next > domain.MaxDailySequence {
		return "", domain.ErrSequenceExhausted
	}
	a.last[key] = next
	return domain.FormatEventNumber(day, next), nil
}

var _ domain.SequenceAllocator = (*sequenceAllocatorInMemory)(nil)
