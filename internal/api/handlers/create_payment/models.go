package create_payment

import (
	"github.com/shopspring/decimal"

	"github.com/m04kA/SMC-SettlementService/internal/api/handlers"
	"github.com/m04kA/SMC-SettlementService/internal/domain"
	"github.com/m04kA/SMC-SettlementService/internal/usecase/settlement"
)

// CreatePaymentRequest HTTP request model
type CreatePaymentRequest struct {
	BookingID    int64                         `json:"bookingId" validate:"required,gt=0"`
	Amount       string                        `json:"amount" validate:"required,numeric"`
	Method       string                        `json:"method" validate:"required,oneof=redirect_gateway cash direct_charge"`
	CustomerInfo *handlers.CustomerInfoRequest `json:"customerInfo,omitempty"`
}

// CreatePaymentResponse HTTP response model
type CreatePaymentResponse struct {
	Payment        *handlers.PaymentResponse `json:"payment"`
	RedirectTarget string                    `json:"redirectTarget,omitempty"`
	Degraded       bool                      `json:"degraded,omitempty"`
}

func (r *CreatePaymentRequest) ToUseCaseRequest() (*settlement.PaymentRequest, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return nil, err
	}
	return &settlement.PaymentRequest{
		BookingID: r.BookingID,
		Amount:    amount,
		Method:    domain.PaymentMethod(r.Method),
		Customer:  r.CustomerInfo.ToDomain(),
	}, nil
}

func FromUseCaseResponse(res *settlement.PaymentResult) *CreatePaymentResponse {
	return &CreatePaymentResponse{
		Payment:        handlers.FromPayment(res.Payment),
		RedirectTarget: res.RedirectTarget,
		Degraded:       res.Degraded,
	}
}
