package cancel_booking

import (
	"context"

	"github.com/m04kA/SMC-SettlementService/internal/service/bookings/models"
	"github.com/m04kA/SMC-SettlementService/internal/usecase/settlement"
)

type BookingUseCase interface {
	CancelBooking(ctx context.Context, id int64, req *models.CancelBookingRequest) (*settlement.BookingDetails, error)
}

type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
