package settlement

import (
	"time"

	"github.com/m04kA/SMC-SettlementService/internal/domain"
	bookingModels "github.com/m04kA/SMC-SettlementService/internal/service/bookings/models"
	"github.com/shopspring/decimal"
)

// CallbackAck фиксированный ответ на любой обратный вызов шлюза
const CallbackAck = "OK"

// Исходы обработки обратного вызова для логов и метрик
const (
	OutcomeAccepted = "accepted"
	OutcomeIgnored  = "ignored"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// CreateBookingRequest запрос на создание бронирования
// PaymentMethod пустой - бронирование без оплаты
type CreateBookingRequest struct {
	CustomerID    int64
	BusinessID    int64
	ServiceID     int64
	ScheduledAt   time.Time
	TotalAmount   decimal.Decimal
	PaymentMethod domain.PaymentMethod
	Customer      domain.CustomerInfo
}

func (r *CreateBookingRequest) toBooking() *bookingModels.CreateBookingRequest {
	return &bookingModels.CreateBookingRequest{
		CustomerID:  r.CustomerID,
		BusinessID:  r.BusinessID,
		ServiceID:   r.ServiceID,
		ScheduledAt: r.ScheduledAt,
		TotalAmount: r.TotalAmount,
	}
}

// PaymentRequest запрос на оплату существующего бронирования
type PaymentRequest struct {
	BookingID int64
	Amount    decimal.Decimal
	Method    domain.PaymentMethod
	Customer  domain.CustomerInfo
}

// BookingResult бронирование и, если была запрошена, попытка оплаты
type BookingResult struct {
	Booking        *domain.Booking
	Payment        *domain.Payment
	RedirectTarget string
	Degraded       bool
}

// PaymentResult результат создания попытки оплаты
type PaymentResult struct {
	Payment        *domain.Payment
	RedirectTarget string
	Degraded       bool
}

// BookingDetails бронирование со всеми попытками оплаты
type BookingDetails struct {
	Booking  *domain.Booking
	Payments []*domain.Payment
}

// ReconcileReport итог прохода сверки
type ReconcileReport struct {
	CommissionsRepaired int
	BookingsConfirmed   int
	PaymentsResolved    int
	// PaymentsUnresolved - pending платежи, исход которых всё ещё неизвестен
	PaymentsUnresolved int
}
