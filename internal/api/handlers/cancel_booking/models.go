package cancel_booking

import (
	"github.com/m04kA/SMC-SettlementService/internal/domain"
	"github.com/m04kA/SMC-SettlementService/internal/service/bookings/models"
)

// CancelBookingRequest HTTP request model
type CancelBookingRequest struct {
	CancelledBy        string  `json:"cancelledBy" validate:"required,oneof=customer business"`
	CancellationReason *string `json:"cancellationReason,omitempty"`
}

// ToServiceRequest конвертирует HTTP request в модель сервиса
func (r *CancelBookingRequest) ToServiceRequest() *models.CancelBookingRequest {
	reason := ""
	if r.CancellationReason != nil {
		reason = *r.CancellationReason
	}

	return &models.CancelBookingRequest{
		CancelledBy:        domain.CancelledBy(r.CancelledBy),
		CancellationReason: reason,
	}
}
