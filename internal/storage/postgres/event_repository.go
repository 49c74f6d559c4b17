package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/railfleet/sms/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

type eventRepository struct {
	db *sql.DB
}

// NewEventRepository создаёт PostgreSQL-реализацию EventRepository.
func NewEventRepository(store *Store) domain.EventRepository {
	return &eventRepository{db: store.DB()}
}

func (r *eventRepository) Create(event domain.ShoppingEvent) error {
	return r.create(event, "")
}

func (r *eventRepository) CreateChained(event domain.ShoppingEvent, predecessorID string) error {
	return r.create(event, predecessorID)
}

// create вставляет событие внутри транзакции, удерживая advisory-lock по
// asset_id: проверка единственности активного события и запись атомарны
// относительно конкурентных Create по тому же вагону.
func (r *eventRepository) create(event domain.ShoppingEvent, excludeID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, event.AssetID); err != nil {
		return fmt.Errorf("lock asset for create: %w", err)
	}

	var activeID string
	err = tx.QueryRowContext(ctx, `
		SELECT id
		FROM shopping_events
		WHERE asset_id = $1
		  AND state NOT IN ($2, $3)
		  AND id <> $4
		LIMIT 1
	`, event.AssetID, string(domain.StateClosed), string(domain.StateCancelled), excludeID).Scan(&activeID)
	if err == nil {
		err = domain.ErrActiveEventExists
		return err
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check active event: %w", err)
	}
	err = nil

	_, err = tx.ExecContext(ctx, `
		INSERT INTO shopping_events (
			id, number, asset_id, state, source, shop_code, target_date, priority,
			estimated_minor, approved_minor, invoiced_minor,
			disposition, disposition_ref, disposition_note,
			cancel_reason, cancelled_by, cancelled_at,
			version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
	`,
		event.ID, event.Number, event.AssetID, string(event.State), string(event.Source),
		event.ShopCode, nullTime(event.TargetDate), string(event.Priority),
		event.Cost.EstimatedMinor, event.Cost.ApprovedMinor, event.Cost.InvoicedMinor,
		string(event.Disposition), event.DispositionRef, event.DispositionNote,
		event.CancelReason, event.CancelledBy, nullTime(event.CancelledAt),
		event.Version, event.CreatedAt, event.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			err = domain.ErrVersionConflict
			return err
		}
		return fmt.Errorf("insert shopping event: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create shopping event: %w", err)
	}

	return nil
}

func (r *eventRepository) Get(id string) (domain.ShoppingEvent, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	event, err := scanEvent(r.db.QueryRowContext(ctx, selectEventColumns+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ShoppingEvent{}, domain.ErrEventNotFound
		}
		return domain.ShoppingEvent{}, fmt.Errorf("select shopping event: %w", err)
	}

	return event, nil
}

// GetActiveForAsset возвращает незавершённое событие вагона.
// При chain shopping активных событий может быть временно два;
// возвращается более новое.
func (r *eventRepository) GetActiveForAsset(assetID string) (domain.ShoppingEvent, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	event, err := scanEvent(r.db.QueryRowContext(ctx, selectEventColumns+`
		WHERE asset_id = $1
		  AND state NOT IN ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, assetID, string(domain.StateClosed), string(domain.StateCancelled)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ShoppingEvent{}, domain.ErrEventNotFound
		}
		return domain.ShoppingEvent{}, fmt.Errorf("select active shopping event: %w", err)
	}

	return event, nil
}

func (r *eventRepository) ListForAsset(assetID string, limit int) ([]domain.ShoppingEvent, error) {
	return r.List(domain.EventFilter{AssetID: assetID, Limit: limit})
}

func (r *eventRepository) List(filter domain.EventFilter) ([]domain.ShoppingEvent, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	query := selectEventColumns + ` WHERE 1=1`
	args := make([]any, 0, 6)

	if filter.AssetID != "" {
		args = append(args, filter.AssetID)
		query += fmt.Sprintf(" AND asset_id = $%d", len(args))
	}
	if filter.Source != "" {
		args = append(args, string(filter.Source))
		query += fmt.Sprintf(" AND source = $%d", len(args))
	}
	if filter.ShopCode != "" {
		args = append(args, filter.ShopCode)
		query += fmt.Sprintf(" AND shop_code = $%d", len(args))
	}
	if len(filter.States) > 0 {
		states := make([]string, 0, len(filter.States))
		for _, state := range filter.States {
			states = append(states, string(state))
		}
		args = append(args, states)
		query += fmt.Sprintf(" AND state = ANY($%d)", len(args))
	}

	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list shopping events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.ShoppingEvent, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shopping event row: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shopping event rows: %w", err)
	}

	return events, nil
}

func (r *eventRepository) Save(event domain.ShoppingEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		UPDATE shopping_events
		SET state = $1,
		    shop_code = $2,
		    target_date = $3,
		    priority = $4,
		    estimated_minor = $5,
		    approved_minor = $6,
		    invoiced_minor = $7,
		    disposition = $8,
		    disposition_ref = $9,
		    disposition_note = $10,
		    cancel_reason = $11,
		    cancelled_by = $12,
		    cancelled_at = $13,
		    version = version + 1,
		    updated_at = $14
		WHERE id = $15
		  AND version = $16
	`,
		string(event.State),
		event.ShopCode,
		nullTime(event.TargetDate),
		string(event.Priority),
		event.Cost.EstimatedMinor,
		event.Cost.ApprovedMinor,
		event.Cost.InvoicedMinor,
		string(event.Disposition),
		event.DispositionRef,
		event.DispositionNote,
		event.CancelReason,
		event.CancelledBy,
		nullTime(event.CancelledAt),
		event.UpdatedAt,
		event.ID,
		event.Version,
	)
	if err != nil {
		return fmt.Errorf("update shopping event: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, existsErr := r.eventExistsTx(ctx, tx, event.ID)
		if existsErr != nil {
			err = existsErr
			return err
		}
		if !exists {
			err = domain.ErrEventNotFound
			return err
		}
		err = domain.ErrVersionConflict
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save shopping event: %w", err)
	}

	return nil
}

const selectEventColumns = `
	SELECT id, number, asset_id, state, source, shop_code, target_date, priority,
	       estimated_minor, approved_minor, invoiced_minor,
	       disposition, disposition_ref, disposition_note,
	       cancel_reason, cancelled_by, cancelled_at,
	       version, created_at, updated_at
	FROM shopping_events
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (domain.ShoppingEvent, error) {
	var (
		event       domain.ShoppingEvent
		state       string
		source      string
		priority    string
		disposition string
		targetDate  sql.NullTime
		cancelledAt sql.NullTime
	)

	if err := row.Scan(
		&event.ID, &event.Number, &event.AssetID, &state, &source,
		&event.ShopCode, &targetDate, &priority,
		&event.Cost.EstimatedMinor, &event.Cost.ApprovedMinor, &event.Cost.InvoicedMinor,
		&disposition, &event.DispositionRef, &event.DispositionNote,
		&event.CancelReason, &event.CancelledBy, &cancelledAt,
		&event.Version, &event.CreatedAt, &event.UpdatedAt,
	); err != nil {
		return domain.ShoppingEvent{}, err
	}

	event.State = domain.EventState(state)
	event.Source = domain.EventSource(source)
	event.Priority = domain.Priority(priority)
	event.Disposition = domain.Disposition(disposition)
	if targetDate.Valid {
		event.TargetDate = targetDate.Time.UTC()
	}
	if cancelledAt.Valid {
		event.CancelledAt = cancelledAt.Time.UTC()
	}

	return event, nil
}

func (r *eventRepository) eventExistsTx(ctx context.Context, tx *sql.Tx, eventID string) (bool, error) {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM shopping_events WHERE id = $1`, eventID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check shopping event exists: %w", err)
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.EventRepository = (*eventRepository)(nil)
