package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/m04kA/SMC-SettlementService/internal/domain"
	"github.com/m04kA/SMC-SettlementService/pkg/dbmetrics"
	"github.com/m04kA/SMC-SettlementService/pkg/pgerr"
	"github.com/m04kA/SMC-SettlementService/pkg/psqlbuilder"
)

const table = "payments"

// Имена ограничений из migrations/001_init.sql
const (
	constraintOpenPerBooking = "payments_one_open_per_booking"
	constraintTransactionID  = "payments_transaction_id_key"
)

var columns = []string{
	"id",
	"booking_id",
	"amount",
	"commission_amount",
	"method",
	"status",
	"transaction_id",
	"gateway_payload",
	"created_at",
	"updated_at",
}

// Repository репозиторий платежей
type Repository struct {
	db DBExecutor
}

// NewRepository создает новый экземпляр репозитория платежей
func NewRepository(db DBExecutor) *Repository {
	return &Repository{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var p domain.Payment
	var payload []byte
	var createdAt, updatedAt sql.NullTime

	err := row.Scan(
		&p.ID,
		&p.BookingID,
		&p.Amount,
		&p.CommissionAmount,
		&p.Method,
		&p.Status,
		&p.TransactionID,
		&payload,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(payload) > 0 {
		p.GatewayPayload = payload
	}
	p.CreatedAt = createdAt.Time
	p.UpdatedAt = updatedAt.Time

	return &p, nil
}

// jsonArg jsonb передаём строкой: lib/pq отправляет []byte как bytea
func jsonArg(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// Create сохраняет новую попытку оплаты
// Частичный уникальный индекс не даёт открыть вторую незавершённую попытку для бронирования
func (r *Repository) Create(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Insert(table).
		Columns(
			"booking_id",
			"amount",
			"commission_amount",
			"method",
			"status",
			"transaction_id",
			"gateway_payload",
		).
		Values(
			payment.BookingID,
			payment.Amount,
			payment.CommissionAmount,
			payment.Method,
			payment.Status,
			payment.TransactionID,
			jsonArg(payment.GatewayPayload),
		).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()

	if err != nil {
		return nil, fmt.Errorf("%w: Create - build insert query: %v", ErrBuildQuery, err)
	}

	var createdAt, updatedAt sql.NullTime
	err = executor.QueryRowContext(ctx, query, args...).Scan(&payment.ID, &createdAt, &updatedAt)
	if err != nil {
		switch {
		case pgerr.IsUniqueViolation(err, constraintOpenPerBooking):
			return nil, fmt.Errorf("%w: booking id=%d", ErrOpenPaymentExists, payment.BookingID)
		case pgerr.IsUniqueViolation(err, constraintTransactionID):
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTransaction, payment.TransactionID)
		}
		return nil, fmt.Errorf("%w: Create - execute insert: %v", ErrExecQuery, err)
	}

	payment.CreatedAt = createdAt.Time
	payment.UpdatedAt = updatedAt.Time

	return payment, nil
}

// GetByTransactionID получает платёж по transaction_id
func (r *Repository) GetByTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Select(columns...).
		From(table).
		Where(squirrel.Eq{"transaction_id": transactionID}).
		ToSql()

	if err != nil {
		return nil, fmt.Errorf("%w: GetByTransactionID - build select query: %v", ErrBuildQuery, err)
	}

	p, err := scanPayment(executor.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: GetByTransactionID - scan payment: %v", ErrScanRow, err)
	}

	return p, nil
}

// ListByBookingID все попытки оплаты бронирования, старые первыми
func (r *Repository) ListByBookingID(ctx context.Context, bookingID int64) ([]*domain.Payment, error) {
	query, args, err := psqlbuilder.Select(columns...).
		From(table).
		Where(squirrel.Eq{"booking_id": bookingID}).
		OrderBy("id ASC").
		ToSql()

	if err != nil {
		return nil, fmt.Errorf("%w: ListByBookingID - build select query: %v", ErrBuildQuery, err)
	}

	return r.list(ctx, "ListByBookingID", query, args)
}

// GetOpenByBookingID незавершённая или успешная попытка оплаты бронирования
func (r *Repository) GetOpenByBookingID(ctx context.Context, bookingID int64) (*domain.Payment, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := openByBookingQuery(bookingID)
	if err != nil {
		return nil, fmt.Errorf("%w: GetOpenByBookingID - build select query: %v", ErrBuildQuery, err)
	}

	p, err := scanPayment(executor.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: GetOpenByBookingID - scan payment: %v", ErrScanRow, err)
	}

	return p, nil
}

func openByBookingQuery(bookingID int64) (string, []interface{}, error) {
	return psqlbuilder.Select(columns...).
		From(table).
		Where(squirrel.Eq{"booking_id": bookingID}).
		Where(squirrel.NotEq{"status": string(domain.PaymentStatusFailed)}).
		OrderBy("id DESC").
		Limit(1).
		ToSql()
}

// UpdateStatus compare-and-swap по (transaction_id, status)
// Из N одинаковых конкурентных вызовов строку обновит ровно один, остальные получат ErrStatusConflict
func (r *Repository) UpdateStatus(ctx context.Context, t domain.PaymentTransition) (*domain.Payment, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := updateStatusQuery(t)
	if err != nil {
		return nil, fmt.Errorf("%w: UpdateStatus - build update query: %v", ErrBuildQuery, err)
	}

	p, err := scanPayment(executor.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.GetByTransactionID(ctx, t.TransactionID); getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("%w: transaction=%s is not %s", ErrStatusConflict, t.TransactionID, t.From)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: UpdateStatus - execute update: %v", ErrExecQuery, err)
	}

	return p, nil
}

func updateStatusQuery(t domain.PaymentTransition) (string, []interface{}, error) {
	b := psqlbuilder.Update(table).
		Set("status", t.To).
		Set("updated_at", squirrel.Expr("NOW()"))

	if len(t.GatewayPayload) > 0 {
		b = b.Set("gateway_payload", jsonArg(t.GatewayPayload))
	}

	return b.Where(squirrel.Eq{"transaction_id": t.TransactionID}).
		Where(squirrel.Eq{"status": t.From}).
		Suffix("RETURNING " + strings.Join(columns, ", ")).
		ToSql()
}

// ListSettledWithCommissionDrift settled платежи без записи комиссии или с расхождением статуса
func (r *Repository) ListSettledWithCommissionDrift(ctx context.Context, limit uint64) ([]*domain.Payment, error) {
	query, args, err := commissionDriftQuery(limit)
	if err != nil {
		return nil, fmt.Errorf("%w: ListSettledWithCommissionDrift - build select query: %v", ErrBuildQuery, err)
	}

	return r.list(ctx, "ListSettledWithCommissionDrift", query, args)
}

func commissionDriftQuery(limit uint64) (string, []interface{}, error) {
	qualified := make([]string, len(columns))
	for i, c := range columns {
		qualified[i] = "p." + c
	}

	return psqlbuilder.Select(qualified...).
		From(table + " p").
		LeftJoin("commission_records c ON c.payment_id = p.id").
		Where(squirrel.Eq{"p.status": []string{
			string(domain.PaymentStatusPendingCash),
			string(domain.PaymentStatusCompleted),
			string(domain.PaymentStatusRefunded),
		}}).
		Where("(c.id IS NULL OR c.status <> p.status)").
		OrderBy("p.id ASC").
		Limit(limit).
		ToSql()
}

// ListStalePending платежи в pending, созданные не позже before, старые первыми
func (r *Repository) ListStalePending(ctx context.Context, before time.Time, limit uint64) ([]*domain.Payment, error) {
	query, args, err := stalePendingQuery(before, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: ListStalePending - build select query: %v", ErrBuildQuery, err)
	}

	return r.list(ctx, "ListStalePending", query, args)
}

func stalePendingQuery(before time.Time, limit uint64) (string, []interface{}, error) {
	return psqlbuilder.Select(columns...).
		From(table).
		Where(squirrel.Eq{"status": string(domain.PaymentStatusPending)}).
		Where(squirrel.LtOrEq{"created_at": before}).
		OrderBy("created_at ASC", "id ASC").
		Limit(limit).
		ToSql()
}

func (r *Repository) list(ctx context.Context, op, query string, args []interface{}) ([]*domain.Payment, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s - execute query: %v", ErrExecQuery, op, err)
	}
	defer rows.Close()

	payments := make([]*domain.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %s - scan payment: %v", ErrScanRow, op, err)
		}
		payments = append(payments, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s - rows error: %v", ErrScanRow, op, err)
	}

	return payments, nil
}
