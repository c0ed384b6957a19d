package bookings

import (
	"context"
	"time"

	"github.com/m04kA/SMC-SettlementService/internal/domain"
	"github.com/shopspring/decimal"
)

// BookingRepository интерфейс репозитория бронирований
type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) (*domain.Booking, error)
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Booking, error)
	UpdateStatus(ctx context.Context, t domain.BookingTransition) (*domain.Booking, error)
	List(ctx context.Context, filter domain.BookingFilter) ([]*domain.Booking, error)
}

// PaymentReader чтение попыток оплаты бронирования
type PaymentReader interface {
	ListByBookingID(ctx context.Context, bookingID int64) ([]*domain.Payment, error)
}

// OutboxWriter запись событий в outbox
type OutboxWriter interface {
	Enqueue(ctx context.Context, event *domain.OutboxEvent) error
}

// CommissionCalculator расчёт комиссии платформы
type CommissionCalculator interface {
	Commission(amount decimal.Decimal) (decimal.Decimal, error)
}

// TransactionManager интерфейс для управления транзакциями
type TransactionManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// TimeProvider интерфейс для получения текущего времени (для тестирования)
type TimeProvider interface {
	Now() time.Time
}

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}

// RealTimeProvider реальный провайдер времени для production
type RealTimeProvider struct{}

// Now возвращает текущее время
func (p *RealTimeProvider) Now() time.Time {
	return time.Now()
}
