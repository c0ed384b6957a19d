package create_booking

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/m04kA/SMC-SettlementService/internal/api/handlers"
	"github.com/m04kA/SMC-SettlementService/internal/domain"
	"github.com/m04kA/SMC-SettlementService/internal/usecase/settlement"
)

// CreateBookingRequest HTTP request model
type CreateBookingRequest struct {
	CustomerID    int64                         `json:"customerId" validate:"omitempty,gt=0"`
	BusinessID    int64                         `json:"businessId" validate:"required,gt=0"`
	ServiceID     int64                         `json:"serviceId" validate:"required,gt=0"`
	ScheduledAt   string                        `json:"scheduledAt" validate:"required"` // RFC3339
	TotalAmount   string                        `json:"totalAmount" validate:"required,numeric"`
	PaymentMethod string                        `json:"paymentMethod,omitempty" validate:"omitempty,oneof=redirect_gateway cash direct_charge"`
	CustomerInfo  *handlers.CustomerInfoRequest `json:"customerInfo,omitempty"`
}

// CreateBookingResponse HTTP response model
type CreateBookingResponse struct {
	Booking        *handlers.BookingResponse `json:"booking"`
	Payment        *handlers.PaymentResponse `json:"payment,omitempty"`
	RedirectTarget string                    `json:"redirectTarget,omitempty"`
	Degraded       bool                      `json:"degraded,omitempty"`
}

// ToUseCaseRequest конвертирует HTTP запрос в модель use case
// customerID из заголовка используется, если в теле клиент не указан
func (r *CreateBookingRequest) ToUseCaseRequest(customerID int64) (*settlement.CreateBookingRequest, error) {
	scheduledAt, err := time.Parse(time.RFC3339, r.ScheduledAt)
	if err != nil {
		return nil, fmt.Errorf("scheduledAt: %w", err)
	}

	amount, err := decimal.NewFromString(r.TotalAmount)
	if err != nil {
		return nil, fmt.Errorf("totalAmount: %w", err)
	}

	if r.CustomerID != 0 {
		customerID = r.CustomerID
	}

	return &settlement.CreateBookingRequest{
		CustomerID:    customerID,
		BusinessID:    r.BusinessID,
		ServiceID:     r.ServiceID,
		ScheduledAt:   scheduledAt,
		TotalAmount:   amount,
		PaymentMethod: domain.PaymentMethod(r.PaymentMethod),
		Customer:      r.CustomerInfo.ToDomain(),
	}, nil
}

// FromUseCaseResponse конвертирует результат use case в HTTP ответ
func FromUseCaseResponse(res *settlement.BookingResult) *CreateBookingResponse {
	return &CreateBookingResponse{
		Booking:        handlers.FromBooking(res.Booking),
		Payment:        handlers.FromPayment(res.Payment),
		RedirectTarget: res.RedirectTarget,
		Degraded:       res.Degraded,
	}
}
