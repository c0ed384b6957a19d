package list_business_bookings

import (
	"context"

	"github.com/m04kA/SMC-SettlementService/internal/domain"
)

type BookingService interface {
	List(ctx context.Context, filter domain.BookingFilter) ([]*domain.Booking, error)
}

type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
