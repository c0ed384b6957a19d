package models

import (
	"time"

	"github.com/m04kA/SMC-SettlementService/internal/domain"
	"github.com/shopspring/decimal"
)

// CreateBookingRequest запрос на создание бронирования
type CreateBookingRequest struct {
	CustomerID  int64
	BusinessID  int64
	ServiceID   int64
	ScheduledAt time.Time
	TotalAmount decimal.Decimal
}

// CancelBookingRequest запрос на отмену бронирования
type CancelBookingRequest struct {
	CancelledBy        domain.CancelledBy
	CancellationReason string
}

// ToDomain собирает новое бронирование в статусе pending
func (r *CreateBookingRequest) ToDomain(commission decimal.Decimal) *domain.Booking {
	return &domain.Booking{
		CustomerID:       r.CustomerID,
		BusinessID:       r.BusinessID,
		ServiceID:        r.ServiceID,
		ScheduledAt:      r.ScheduledAt.UTC(),
		TotalAmount:      r.TotalAmount.Round(domain.AmountScale),
		CommissionAmount: commission,
		Status:           domain.BookingStatusPending,
	}
}
