package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/m04kA/SMC-SettlementService/internal/domain"
	"github.com/m04kA/SMC-SettlementService/pkg/dbmetrics"
	"github.com/m04kA/SMC-SettlementService/pkg/psqlbuilder"
)

const table = "outbox_events"

// Repository репозиторий outbox событий
type Repository struct {
	db DBExecutor
}

// NewRepository создает новый экземпляр репозитория outbox
func NewRepository(db DBExecutor) *Repository {
	return &Repository{db: db}
}

// Enqueue записывает событие; вызывается в транзакции изменения состояния
func (r *Repository) Enqueue(ctx context.Context, event *domain.OutboxEvent) error {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Insert(table).
		Columns("id", "aggregate_type", "aggregate_id", "event_type", "payload").
		Values(event.ID, event.AggregateType, event.AggregateID, event.EventType, string(event.Payload)).
		Suffix("RETURNING created_at").
		ToSql()

	if err != nil {
		return fmt.Errorf("%w: Enqueue - build insert query: %v", ErrBuildQuery, err)
	}

	var createdAt sql.NullTime
	if err := executor.QueryRowContext(ctx, query, args...).Scan(&createdAt); err != nil {
		return fmt.Errorf("%w: Enqueue - execute insert: %v", ErrExecQuery, err)
	}
	event.CreatedAt = createdAt.Time

	return nil
}

// FetchUnpublished выбирает пачку неопубликованных событий
// В транзакции строки блокируются с SKIP LOCKED, несколько реплик не берут одно событие
func (r *Repository) FetchUnpublished(ctx context.Context, limit uint64, maxAttempts int) ([]*domain.OutboxEvent, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := fetchUnpublishedQuery(limit, maxAttempts, dbmetrics.IsInTransaction(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: FetchUnpublished - build select query: %v", ErrBuildQuery, err)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: FetchUnpublished - execute query: %v", ErrExecQuery, err)
	}
	defer rows.Close()

	events := make([]*domain.OutboxEvent, 0)
	for rows.Next() {
		var e domain.OutboxEvent
		var payload []byte
		var createdAt sql.NullTime
		if err := rows.Scan(
			&e.ID,
			&e.AggregateType,
			&e.AggregateID,
			&e.EventType,
			&payload,
			&e.Attempts,
			&e.LastError,
			&createdAt,
			&e.PublishedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: FetchUnpublished - scan event: %v", ErrScanRow, err)
		}
		e.Payload = payload
		e.CreatedAt = createdAt.Time
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: FetchUnpublished - rows error: %v", ErrScanRow, err)
	}

	return events, nil
}

func fetchUnpublishedQuery(limit uint64, maxAttempts int, lock bool) (string, []interface{}, error) {
	b := psqlbuilder.Select(
		"id",
		"aggregate_type",
		"aggregate_id",
		"event_type",
		"payload",
		"attempts",
		"last_error",
		"created_at",
		"published_at",
	).
		From(table).
		Where(squirrel.Eq{"published_at": nil}).
		Where(squirrel.Lt{"attempts": maxAttempts}).
		OrderBy("created_at ASC").
		Limit(limit)

	if lock {
		b = b.Suffix("FOR UPDATE SKIP LOCKED")
	}

	return b.ToSql()
}

// MarkPublished отмечает событие опубликованным
func (r *Repository) MarkPublished(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, "MarkPublished", psqlbuilder.Update(table).
		Set("published_at", at).
		Where(squirrel.Eq{"id": id}))
}

// MarkFailed увеличивает счётчик попыток и сохраняет последнюю ошибку
func (r *Repository) MarkFailed(ctx context.Context, id string, reason string) error {
	return r.update(ctx, "MarkFailed", psqlbuilder.Update(table).
		Set("attempts", squirrel.Expr("attempts + 1")).
		Set("last_error", reason).
		Where(squirrel.Eq{"id": id}))
}

func (r *Repository) update(ctx context.Context, op string, b squirrel.UpdateBuilder) error {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("%w: %s - build update query: %v", ErrBuildQuery, op, err)
	}

	result, err := executor.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: %s - execute update: %v", ErrExecQuery, op, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %s - get rows affected: %v", ErrExecQuery, op, err)
	}

	if rowsAffected == 0 {
		return ErrEventNotFound
	}

	return nil
}
