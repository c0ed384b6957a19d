package create_booking

import (
	"context"

	"github.com/m04kA/SMC-SettlementService/internal/usecase/settlement"
)

type CreateBookingUseCase interface {
	CreateBooking(ctx context.Context, req *settlement.CreateBookingRequest) (*settlement.BookingResult, error)
}

type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
