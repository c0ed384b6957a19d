package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/m04kA/SMC-SettlementService/internal/domain"
	"github.com/m04kA/SMC-SettlementService/pkg/dbmetrics"
	"github.com/m04kA/SMC-SettlementService/pkg/psqlbuilder"
)

const table = "bookings"

var columns = []string{
	"id",
	"customer_id",
	"business_id",
	"service_id",
	"scheduled_at",
	"total_amount",
	"commission_amount",
	"status",
	"cancelled_by",
	"cancellation_reason",
	"cancelled_at",
	"created_at",
	"updated_at",
}

// Repository репозиторий для работы с бронированиями
type Repository struct {
	db DBExecutor
}

// NewRepository создает новый экземпляр репозитория бронирований
func NewRepository(db DBExecutor) *Repository {
	return &Repository{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*domain.Booking, error) {
	var b domain.Booking
	var cancelledBy sql.NullString
	var createdAt, updatedAt sql.NullTime

	err := row.Scan(
		&b.ID,
		&b.CustomerID,
		&b.BusinessID,
		&b.ServiceID,
		&b.ScheduledAt,
		&b.TotalAmount,
		&b.CommissionAmount,
		&b.Status,
		&cancelledBy,
		&b.CancellationReason,
		&b.CancelledAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if cancelledBy.Valid {
		by := domain.CancelledBy(cancelledBy.String)
		b.CancelledBy = &by
	}
	b.CreatedAt = createdAt.Time
	b.UpdatedAt = updatedAt.Time

	return &b, nil
}

// Create создает новое бронирование
// Если в контексте передана активная транзакция, запрос выполняется в ней
func (r *Repository) Create(ctx context.Context, booking *domain.Booking) (*domain.Booking, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Insert(table).
		Columns(
			"customer_id",
			"business_id",
			"service_id",
			"scheduled_at",
			"total_amount",
			"commission_amount",
			"status",
		).
		Values(
			booking.CustomerID,
			booking.BusinessID,
			booking.ServiceID,
			booking.ScheduledAt,
			booking.TotalAmount,
			booking.CommissionAmount,
			booking.Status,
		).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()

	if err != nil {
		return nil, fmt.Errorf("%w: Create - build insert query: %v", ErrBuildQuery, err)
	}

	var createdAt, updatedAt sql.NullTime
	err = executor.QueryRowContext(ctx, query, args...).Scan(
		&booking.ID,
		&createdAt,
		&updatedAt,
	)

	if err != nil {
		return nil, fmt.Errorf("%w: Create - execute insert: %v", ErrExecQuery, err)
	}

	booking.CreatedAt = createdAt.Time
	booking.UpdatedAt = updatedAt.Time

	return booking, nil
}

// GetByID получает бронирование по ID
func (r *Repository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	return r.get(ctx, id, false)
}

// GetByIDForUpdate получает бронирование и блокирует строку до конца транзакции
// Вне транзакции работает как GetByID
func (r *Repository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Booking, error) {
	return r.get(ctx, id, dbmetrics.IsInTransaction(ctx))
}

func (r *Repository) get(ctx context.Context, id int64, lock bool) (*domain.Booking, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := selectByIDQuery(id, lock)
	if err != nil {
		return nil, fmt.Errorf("%w: GetByID - build select query: %v", ErrBuildQuery, err)
	}

	booking, err := scanBooking(executor.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: GetByID - scan booking: %v", ErrScanRow, err)
	}

	return booking, nil
}

func selectByIDQuery(id int64, lock bool) (string, []interface{}, error) {
	b := psqlbuilder.Select(columns...).
		From(table).
		Where(squirrel.Eq{"id": id})
	if lock {
		b = b.Suffix("FOR UPDATE")
	}
	return b.ToSql()
}

// UpdateStatus переводит бронирование в новый статус, только если текущий статус один из t.From
// Проигравший гонку получает ErrStatusConflict и должен перечитать состояние
func (r *Repository) UpdateStatus(ctx context.Context, t domain.BookingTransition) (*domain.Booking, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := updateStatusQuery(t)
	if err != nil {
		return nil, fmt.Errorf("%w: UpdateStatus - build update query: %v", ErrBuildQuery, err)
	}

	booking, err := scanBooking(executor.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		// Строку не обновили: либо её нет, либо статус уже другой
		if _, getErr := r.GetByID(ctx, t.BookingID); getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("%w: booking id=%d is not in %v", ErrStatusConflict, t.BookingID, t.From)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: UpdateStatus - execute update: %v", ErrExecQuery, err)
	}

	return booking, nil
}

func updateStatusQuery(t domain.BookingTransition) (string, []interface{}, error) {
	from := make([]string, len(t.From))
	for i, s := range t.From {
		from[i] = string(s)
	}

	b := psqlbuilder.Update(table).
		Set("status", t.To).
		Set("updated_at", squirrel.Expr("NOW()"))

	if t.To == domain.BookingStatusCancelled {
		b = b.Set("cancelled_by", t.CancelledBy).
			Set("cancellation_reason", t.CancellationReason).
			Set("cancelled_at", t.CancelledAt)
	}

	return b.Where(squirrel.Eq{"id": t.BookingID}).
		Where(squirrel.Eq{"status": from}).
		Suffix("RETURNING " + joinColumns()).
		ToSql()
}

// ListPendingWithSettledPayment бронирования в pending, у которых уже есть оплата в settled статусе
// Используется джобой сверки
func (r *Repository) ListPendingWithSettledPayment(ctx context.Context, limit uint64) ([]*domain.Booking, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := pendingWithSettledPaymentQuery(limit)
	if err != nil {
		return nil, fmt.Errorf("%w: ListPendingWithSettledPayment - build select query: %v", ErrBuildQuery, err)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: ListPendingWithSettledPayment - execute query: %v", ErrExecQuery, err)
	}
	defer rows.Close()

	bookings := make([]*domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: ListPendingWithSettledPayment - scan booking: %v", ErrScanRow, err)
		}
		bookings = append(bookings, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: ListPendingWithSettledPayment - rows error: %v", ErrScanRow, err)
	}

	return bookings, nil
}

func pendingWithSettledPaymentQuery(limit uint64) (string, []interface{}, error) {
	qualified := make([]string, len(columns))
	for i, c := range columns {
		qualified[i] = "b." + c
	}

	return psqlbuilder.Select(qualified...).
		From(table + " b").
		Where(squirrel.Eq{"b.status": string(domain.BookingStatusPending)}).
		Where(squirrel.Expr(
			"EXISTS (SELECT 1 FROM payments p WHERE p.booking_id = b.id AND p.status IN (?, ?))",
			string(domain.PaymentStatusCompleted), string(domain.PaymentStatusPendingCash),
		)).
		OrderBy("b.id ASC").
		Limit(limit).
		ToSql()
}

// List бронирования по фильтру, новые первыми
func (r *Repository) List(ctx context.Context, filter domain.BookingFilter) ([]*domain.Booking, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := listQuery(filter)
	if err != nil {
		return nil, fmt.Errorf("%w: List - build select query: %v", ErrBuildQuery, err)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: List - execute query: %v", ErrExecQuery, err)
	}
	defer rows.Close()

	bookings := make([]*domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: List - scan booking: %v", ErrScanRow, err)
		}
		bookings = append(bookings, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: List - rows error: %v", ErrScanRow, err)
	}

	return bookings, nil
}

func listQuery(filter domain.BookingFilter) (string, []interface{}, error) {
	b := psqlbuilder.Select(columns...).From(table)

	if filter.CustomerID > 0 {
		b = b.Where(squirrel.Eq{"customer_id": filter.CustomerID})
	}
	if filter.BusinessID > 0 {
		b = b.Where(squirrel.Eq{"business_id": filter.BusinessID})
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		b = b.Where(squirrel.Eq{"status": statuses})
	}

	b = b.OrderBy("scheduled_at DESC", "id DESC")
	if filter.Limit > 0 {
		b = b.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		b = b.Offset(filter.Offset)
	}
	return b.ToSql()
}

func joinColumns() string {
	return strings.Join(columns, ", ")
}
