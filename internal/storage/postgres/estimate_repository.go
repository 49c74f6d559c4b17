package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/railfleet/sms/internal/domain"
)

type estimateRepository struct {
	db *sql.DB
}

// NewEstimateRepository создаёт PostgreSQL-реализацию EstimateRepository.
func NewEstimateRepository(store *Store) domain.EstimateRepository {
	return &estimateRepository{db: store.DB()}
}

func (r *estimateRepository) Create(sub domain.EstimateSubmission) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO estimate_submissions (
			id, event_id, submitted_minor, book_value_minor, ceiling_minor,
			exceeds_limit, notes, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		sub.ID, sub.EventID, sub.SubmittedMinor, sub.BookValueMinor, sub.CeilingMinor,
		sub.ExceedsLimit, sub.Notes, sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert estimate submission: %w", err)
	}

	for position, item := range sub.LineItems {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO estimate_line_items (
				submission_id, position, code, description, amount_minor
			) VALUES ($1,$2,$3,$4,$5)
		`,
			sub.ID, position, item.Code, item.Description, item.AmountMinor,
		); err != nil {
			return fmt.Errorf("insert estimate line item: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create estimate submission: %w", err)
	}

	return nil
}

func (r *estimateRepository) ListForEvent(eventID string) ([]domain.EstimateSubmission, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, event_id, submitted_minor, book_value_minor, ceiling_minor,
		       exceeds_limit, notes, created_at
		FROM estimate_submissions
		WHERE event_id = $1
		ORDER BY created_at ASC, id ASC
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list estimate submissions: %w", err)
	}
	defer rows.Close()

	subs := make([]domain.EstimateSubmission, 0)
	for rows.Next() {
		var sub domain.EstimateSubmission
		if err := rows.Scan(
			&sub.ID, &sub.EventID, &sub.SubmittedMinor, &sub.BookValueMinor,
			&sub.CeilingMinor, &sub.ExceedsLimit, &sub.Notes, &sub.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan estimate submission: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate estimate submissions: %w", err)
	}

	for i := range subs {
		items, err := r.loadLineItems(ctx, subs[i].ID)
		if err != nil {
			return nil, err
		}
		subs[i].LineItems = items
	}

	return subs, nil
}

func (r *estimateRepository) loadLineItems(ctx context.Context, submissionID string) ([]domain.EstimateLineItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT code, description, amount_minor
		FROM estimate_line_items
		WHERE submission_id = $1
		ORDER BY position ASC
	`, submissionID)
	if err != nil {
		return nil, fmt.Errorf("load estimate line items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.EstimateLineItem, 0)
	for rows.Next() {
		var item domain.EstimateLineItem
		if err := rows.Scan(&item.Code, &item.Description, &item.AmountMinor); err != nil {
			return nil, fmt.Errorf("scan estimate line item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate estimate line items: %w", err)
	}

	return items, nil
}

var _ domain.EstimateRepository = (*estimateRepository)(nil)
