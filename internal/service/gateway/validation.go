package gateway

import (
	"github.com/m04kA/SMC-SettlementService/internal/domain"
)

// validateInitiate общие проверки перед стартом оплаты любым способом
func validateInitiate(req InitiateRequest) error {
	if req.Booking == nil {
		return domain.WrapError(domain.ErrValidation, ErrInvalidPaymentData, "booking is required")
	}
	if req.TransactionID == "" {
		return domain.WrapError(domain.ErrValidation, ErrInvalidPaymentData, "transactionId is required")
	}
	if !req.Amount.IsPositive() {
		return domain.WrapError(domain.ErrValidation, ErrInvalidPaymentData, "amount must be positive")
	}
	if req.Booking.Status != domain.BookingStatusPending {
		return domain.WrapError(domain.ErrValidation, ErrInvalidPaymentData,
			"booking %d is %s, payment requires a pending booking", req.Booking.ID, req.Booking.Status)
	}
	return nil
}
