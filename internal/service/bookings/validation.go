package bookings

import (
	"time"
	"unicode/utf8"

	"github.com/m04kA/SMC-SettlementService/internal/domain"
	"github.com/m04kA/SMC-SettlementService/internal/service/bookings/models"
)

func invalid(format string, args ...interface{}) error {
	return domain.WrapError(domain.ErrValidation, ErrInvalidInput, format, args...)
}

// validateCreate валидирует входные данные создания бронирования
func validateCreate(req *models.CreateBookingRequest, now time.Time) error {
	if req.CustomerID <= 0 {
		return invalid("customerId must be positive")
	}

	if req.BusinessID <= 0 {
		return invalid("businessId must be positive")
	}

	if req.ServiceID <= 0 {
		return invalid("serviceId must be positive")
	}

	if req.ScheduledAt.IsZero() {
		return invalid("scheduledAt is required")
	}

	// Бронирование в прошлом не имеет смысла
	if req.ScheduledAt.Before(now) {
		return invalid("scheduledAt must be in the future")
	}

	if !req.TotalAmount.IsPositive() {
		return invalid("totalAmount must be positive")
	}

	// Не больше двух знаков после запятой
	if !req.TotalAmount.Equal(req.TotalAmount.Round(domain.AmountScale)) {
		return invalid("totalAmount must have at most %d decimal places", domain.AmountScale)
	}

	return nil
}

// validateCancel валидирует запрос на отмену
func validateCancel(req *models.CancelBookingRequest) error {
	switch req.CancelledBy {
	case domain.CancelledByCustomer, domain.CancelledByBusiness:
	default:
		return invalid("cancelledBy must be %q or %q", domain.CancelledByCustomer, domain.CancelledByBusiness)
	}

	if utf8.RuneCountInString(req.CancellationReason) > domain.MaxCancellationReasonLength {
		return invalid("cancellationReason must be at most %d characters", domain.MaxCancellationReasonLength)
	}

	return nil
}

// validateFilter требует владельца выборки и подставляет лимит по умолчанию
func validateFilter(f *domain.BookingFilter) error {
	if f.CustomerID <= 0 && f.BusinessID <= 0 {
		return invalid("customerId or businessId is required")
	}

	for _, st := range f.Statuses {
		if !st.IsValid() {
			return invalid("unknown booking status %q", st)
		}
	}

	switch {
	case f.Limit == 0:
		f.Limit = domain.DefaultListLimit
	case f.Limit > domain.MaxListLimit:
		return invalid("limit must be at most %d", domain.MaxListLimit)
	}

	return nil
}
