package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/railfleet/sms/internal/domain"
)

type transitionLogRepository struct {
	db *sql.DB
}

// NewTransitionLogRepository создаёт PostgreSQL-реализацию TransitionLogRepository.
func NewTransitionLogRepository(store *Store) domain.TransitionLogRepository {
	return &transitionLogRepository{db: store.DB()}
}

func (r *transitionLogRepository) Record(rec domain.TransitionRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if rec.Occurred.IsZero() {
		rec.Occurred = time.Now().UTC()
	}

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO transition_log (
			process_type, entity_id, entity_number, from_state, to_state,
			reversible, actor, notes, occurred
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		rec.ProcessType, rec.EntityID, rec.EntityNumber,
		string(rec.FromState), string(rec.ToState),
		rec.Reversible, rec.Actor, rec.Notes, rec.Occurred,
	); err != nil {
		return fmt.Errorf("record transition: %w", err)
	}

	return nil
}

func (r *transitionLogRepository) List(entityID string) ([]domain.TransitionRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT process_type, entity_id, entity_number, from_state, to_state,
		       reversible, actor, notes, occurred
		FROM transition_log
		WHERE entity_id = $1
		ORDER BY occurred ASC, id ASC
	`, entityID)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	records := make([]domain.TransitionRecord, 0)
	for rows.Next() {
		var (
			rec  domain.TransitionRecord
			from string
			to   string
		)
		if err := rows.Scan(
			&rec.ProcessType, &rec.EntityID, &rec.EntityNumber, &from, &to,
			&rec.Reversible, &rec.Actor, &rec.Notes, &rec.Occurred,
		); err != nil {
			return nil, fmt.Errorf("scan transition record: %w", err)
		}
		rec.FromState = domain.EventState(from)
		rec.ToState = domain.EventState(to)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transition records: %w", err)
	}

	return records, nil
}

var _ domain.TransitionLogRepository = (*transitionLogRepository)(nil)
