package commission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/m04kA/SMC-SettlementService/internal/domain"
	"github.com/m04kA/SMC-SettlementService/pkg/dbmetrics"
	"github.com/m04kA/SMC-SettlementService/pkg/pgerr"
	"github.com/m04kA/SMC-SettlementService/pkg/psqlbuilder"
)

const table = "commission_records"

// Repository репозиторий записей комиссии
type Repository struct {
	db DBExecutor
}

// NewRepository создает новый экземпляр репозитория комиссий
func NewRepository(db DBExecutor) *Repository {
	return &Repository{db: db}
}

// Create создает запись комиссии для платежа
// Уникальность payment_id гарантирует одну запись на платёж
func (r *Repository) Create(ctx context.Context, rec *domain.CommissionRecord) (*domain.CommissionRecord, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Insert(table).
		Columns("payment_id", "booking_id", "business_id", "amount", "percentage_applied", "status").
		Values(rec.PaymentID, rec.BookingID, rec.BusinessID, rec.Amount, rec.PercentageApplied, rec.Status).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()

	if err != nil {
		return nil, fmt.Errorf("%w: Create - build insert query: %v", ErrBuildQuery, err)
	}

	var createdAt, updatedAt sql.NullTime
	err = executor.QueryRowContext(ctx, query, args...).Scan(&rec.ID, &createdAt, &updatedAt)
	if err != nil {
		if pgerr.IsUniqueViolation(err, "") {
			return nil, fmt.Errorf("%w: payment id=%d", ErrRecordExists, rec.PaymentID)
		}
		return nil, fmt.Errorf("%w: Create - execute insert: %v", ErrExecQuery, err)
	}

	rec.CreatedAt = createdAt.Time
	rec.UpdatedAt = updatedAt.Time

	return rec, nil
}

// Upsert создает запись или выравнивает её статус по платежу (джоба сверки)
func (r *Repository) Upsert(ctx context.Context, rec *domain.CommissionRecord) (*domain.CommissionRecord, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := upsertQuery(rec)
	if err != nil {
		return nil, fmt.Errorf("%w: Upsert - build query: %v", ErrBuildQuery, err)
	}

	var createdAt, updatedAt sql.NullTime
	err = executor.QueryRowContext(ctx, query, args...).Scan(&rec.ID, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: Upsert - execute: %v", ErrExecQuery, err)
	}

	rec.CreatedAt = createdAt.Time
	rec.UpdatedAt = updatedAt.Time

	return rec, nil
}

func upsertQuery(rec *domain.CommissionRecord) (string, []interface{}, error) {
	return psqlbuilder.Insert(table).
		Columns("payment_id", "booking_id", "business_id", "amount", "percentage_applied", "status").
		Values(rec.PaymentID, rec.BookingID, rec.BusinessID, rec.Amount, rec.PercentageApplied, rec.Status).
		Suffix("ON CONFLICT (payment_id) DO UPDATE SET status = EXCLUDED.status, updated_at = NOW() " +
			"RETURNING id, created_at, updated_at").
		ToSql()
}

// GetByPaymentID получает запись комиссии платежа
func (r *Repository) GetByPaymentID(ctx context.Context, paymentID int64) (*domain.CommissionRecord, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Select(
		"id",
		"payment_id",
		"booking_id",
		"business_id",
		"amount",
		"percentage_applied",
		"status",
		"created_at",
		"updated_at",
	).
		From(table).
		Where(squirrel.Eq{"payment_id": paymentID}).
		ToSql()

	if err != nil {
		return nil, fmt.Errorf("%w: GetByPaymentID - build select query: %v", ErrBuildQuery, err)
	}

	var rec domain.CommissionRecord
	var createdAt, updatedAt sql.NullTime
	err = executor.QueryRowContext(ctx, query, args...).Scan(
		&rec.ID,
		&rec.PaymentID,
		&rec.BookingID,
		&rec.BusinessID,
		&rec.Amount,
		&rec.PercentageApplied,
		&rec.Status,
		&createdAt,
		&updatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: GetByPaymentID - scan record: %v", ErrScanRow, err)
	}

	rec.CreatedAt = createdAt.Time
	rec.UpdatedAt = updatedAt.Time

	return &rec, nil
}

// UpdateStatus выравнивает статус записи по статусу платежа
func (r *Repository) UpdateStatus(ctx context.Context, paymentID int64, status domain.PaymentStatus) error {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Update(table).
		Set("status", status).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"payment_id": paymentID}).
		ToSql()

	if err != nil {
		return fmt.Errorf("%w: UpdateStatus - build update query: %v", ErrBuildQuery, err)
	}

	result, err := executor.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: UpdateStatus - execute update: %v", ErrExecQuery, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: UpdateStatus - get rows affected: %v", ErrExecQuery, err)
	}

	if rowsAffected == 0 {
		return ErrRecordNotFound
	}

	return nil
}
