package payments

import (
	"context"
	"time"

	"github.com/m04kA/SMC-SettlementService/internal/domain"
	"github.com/m04kA/SMC-SettlementService/internal/service/gateway"
	"github.com/shopspring/decimal"
)

// PaymentRepository интерфейс репозитория платежей
type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) (*domain.Payment, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error)
	ListByBookingID(ctx context.Context, bookingID int64) ([]*domain.Payment, error)
	GetOpenByBookingID(ctx context.Context, bookingID int64) (*domain.Payment, error)
	UpdateStatus(ctx context.Context, t domain.PaymentTransition) (*domain.Payment, error)
	ListSettledWithCommissionDrift(ctx context.Context, limit uint64) ([]*domain.Payment, error)
	ListStalePending(ctx context.Context, before time.Time, limit uint64) ([]*domain.Payment, error)
}

// CommissionRepository интерфейс репозитория записей комиссии
type CommissionRepository interface {
	Create(ctx context.Context, rec *domain.CommissionRecord) (*domain.CommissionRecord, error)
	Upsert(ctx context.Context, rec *domain.CommissionRecord) (*domain.CommissionRecord, error)
	UpdateStatus(ctx context.Context, paymentID int64, status domain.PaymentStatus) error
}

// BookingReader чтение бронирования с блокировкой строки
type BookingReader interface {
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Booking, error)
}

// OutboxWriter запись событий в outbox
type OutboxWriter interface {
	Enqueue(ctx context.Context, event *domain.OutboxEvent) error
}

// AdapterRegistry поиск платёжного шлюза по способу оплаты
type AdapterRegistry interface {
	Get(method domain.PaymentMethod) (gateway.Adapter, error)
}

// CommissionCalculator расчёт комиссии платформы
type CommissionCalculator interface {
	Commission(amount decimal.Decimal) (decimal.Decimal, error)
	Rate() decimal.Decimal
}

// TransactionManager интерфейс для управления транзакциями
type TransactionManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Metrics учёт переходов статусов
type Metrics interface {
	RecordPaymentTransition(method, from, to string)
}

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
