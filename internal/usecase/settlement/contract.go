package settlement

import (
	"context"
	"time"

	"github.com/m04kA/SMC-SettlementService/internal/domain"
	"github.com/m04kA/SMC-SettlementService/internal/integrations/catalogservice"
	bookingModels "github.com/m04kA/SMC-SettlementService/internal/service/bookings/models"
	"github.com/m04kA/SMC-SettlementService/internal/service/gateway"
	"github.com/m04kA/SMC-SettlementService/internal/service/payments"
)

// BookingService конечный автомат бронирования
type BookingService interface {
	Create(ctx context.Context, req *bookingModels.CreateBookingRequest) (*domain.Booking, error)
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	Confirm(ctx context.Context, id int64) (*domain.Booking, error)
	Cancel(ctx context.Context, id int64, req *bookingModels.CancelBookingRequest) (*domain.Booking, error)
	Complete(ctx context.Context, id int64) (*domain.Booking, error)
}

// PaymentLedger журнал платежей
type PaymentLedger interface {
	Create(ctx context.Context, req *payments.CreateRequest, hook payments.SettlementHook) (*payments.CreateResult, error)
	Open(ctx context.Context, req *payments.CreateRequest, hook payments.SettlementHook) (*payments.Attempt, error)
	Start(ctx context.Context, attempt *payments.Attempt, hook payments.SettlementHook) (*payments.CreateResult, error)
	ApplyCallback(ctx context.Context, fields map[string]string, hook payments.SettlementHook) (*payments.CallbackResult, error)
	ConfirmCash(ctx context.Context, bookingID int64, hook payments.SettlementHook) (*domain.Payment, error)
	VoidOpenCash(ctx context.Context, bookingID int64) (*domain.Payment, error)
	ListByBooking(ctx context.Context, bookingID int64) ([]*domain.Payment, error)
	RepairCommissions(ctx context.Context, limit uint64) (int, error)
	ResolveStale(ctx context.Context, olderThan time.Duration, limit uint64, hook payments.SettlementHook) (*payments.ResolveResult, error)
}

// PendingBookingLister бронирования pending, у которых оплата уже settled
type PendingBookingLister interface {
	ListPendingWithSettledPayment(ctx context.Context, limit uint64) ([]*domain.Booking, error)
}

// AdapterRegistry проверка способа оплаты до создания бронирования
type AdapterRegistry interface {
	Get(method domain.PaymentMethod) (gateway.Adapter, error)
}

// CatalogClient интерфейс клиента каталога услуг
type CatalogClient interface {
	GetServiceWithGracefulDegradation(ctx context.Context, businessID, serviceID int64) (*catalogservice.Service, error)
}

// OutboxWriter запись событий в outbox
type OutboxWriter interface {
	Enqueue(ctx context.Context, event *domain.OutboxEvent) error
}

// TransactionManager интерфейс для управления транзакциями
type TransactionManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Metrics счётчики исходов
type Metrics interface {
	RecordCallbackOutcome(method, outcome string)
	RecordReconciled(kind string, n int)
}

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
