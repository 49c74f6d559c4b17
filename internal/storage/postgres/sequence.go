package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/railfleet/sms/internal/domain"
)

type sequenceAllocator struct {
	db *sql.DB
}

// NewSequenceAllocator создаёт PostgreSQL-реализацию SequenceAllocator.
func NewSequenceAllocator(store *Store) domain.SequenceAllocator {
	return &sequenceAllocator{db: store.DB()}
}

// NextEventNumber атомарно инкрементирует дневной счётчик через
// INSERT ... ON CONFLICT: два конкурентных вызова получают разные номера
// без advisory-lock. Когда счётчик исчерпан, условие WHERE не пропускает
// UPDATE и запрос не возвращает строк.
func (a *sequenceAllocator) NextEventNumber(day time.Time) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	dayKey := day.UTC().Format("20060102")

	var seq int
	err := a.db.QueryRowContext(ctx, `
		INSERT INTO shopping_event_sequences (day_key, last_value)
		VALUES ($1, 1)
		ON CONFLICT (day_key) DO UPDATE
		SET last_value = shopping_event_sequences.last_value + 1
		WHERE shopping_event_sequences.last_value < $2
		RETURNING last_value
	`, dayKey, domain.MaxDailySequence).Scan(&seq)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrSequenceExhausted
		}
		return "", fmt.Errorf("allocate event number: %w", err)
	}

	return domain.FormatEventNumber(day, seq), nil
}

var _ domain.SequenceAllocator = (*sequenceAllocator)(nil)
