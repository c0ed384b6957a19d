package handlers

import (
	"encoding/json"
	"time"

	"github.com/m04kA/SMC-SettlementService/internal/domain"
)

// BookingResponse бронирование в ответах API
type BookingResponse struct {
	ID                 int64   `json:"id"`
	CustomerID         int64   `json:"customerId"`
	BusinessID         int64   `json:"businessId"`
	ServiceID          int64   `json:"serviceId"`
	ScheduledAt        string  `json:"scheduledAt"`
	TotalAmount        string  `json:"totalAmount"`
	CommissionAmount   string  `json:"commissionAmount"`
	Status             string  `json:"status"`
	CancelledBy        *string `json:"cancelledBy,omitempty"`
	CancellationReason *string `json:"cancellationReason,omitempty"`
	CancelledAt        *string `json:"cancelledAt,omitempty"`
	CreatedAt          string  `json:"createdAt"`
	UpdatedAt          string  `json:"updatedAt"`
}

// PaymentResponse попытка оплаты в ответах API
type PaymentResponse struct {
	ID               int64           `json:"id"`
	BookingID        int64           `json:"bookingId"`
	Amount           string          `json:"amount"`
	CommissionAmount string          `json:"commissionAmount"`
	Method           string          `json:"method"`
	Status           string          `json:"status"`
	TransactionID    string          `json:"transactionId"`
	GatewayPayload   json.RawMessage `json:"gatewayPayload,omitempty"`
	CreatedAt        string          `json:"createdAt"`
	UpdatedAt        string          `json:"updatedAt"`
}

// CustomerInfoRequest данные покупателя в запросах
type CustomerInfoRequest struct {
	FirstName string `json:"firstName" validate:"max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone" validate:"max=32"`
}

func (c *CustomerInfoRequest) ToDomain() domain.CustomerInfo {
	if c == nil {
		return domain.CustomerInfo{}
	}
	return domain.CustomerInfo{
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     c.Email,
		Phone:     c.Phone,
	}
}

func FromBooking(b *domain.Booking) *BookingResponse {
	if b == nil {
		return nil
	}
	resp := &BookingResponse{
		ID:                 b.ID,
		CustomerID:         b.CustomerID,
		BusinessID:         b.BusinessID,
		ServiceID:          b.ServiceID,
		ScheduledAt:        formatTime(b.ScheduledAt),
		TotalAmount:        b.TotalAmount.StringFixed(domain.AmountScale),
		CommissionAmount:   b.CommissionAmount.StringFixed(domain.AmountScale),
		Status:             string(b.Status),
		CancellationReason: b.CancellationReason,
		CreatedAt:          formatTime(b.CreatedAt),
		UpdatedAt:          formatTime(b.UpdatedAt),
	}
	if b.CancelledBy != nil {
		by := string(*b.CancelledBy)
		resp.CancelledBy = &by
	}
	if b.CancelledAt != nil {
		at := formatTime(*b.CancelledAt)
		resp.CancelledAt = &at
	}
	return resp
}

func FromPayment(p *domain.Payment) *PaymentResponse {
	if p == nil {
		return nil
	}
	return &PaymentResponse{
		ID:               p.ID,
		BookingID:        p.BookingID,
		Amount:           p.Amount.StringFixed(domain.AmountScale),
		CommissionAmount: p.CommissionAmount.StringFixed(domain.AmountScale),
		Method:           string(p.Method),
		Status:           string(p.Status),
		TransactionID:    p.TransactionID,
		GatewayPayload:   p.GatewayPayload,
		CreatedAt:        formatTime(p.CreatedAt),
		UpdatedAt:        formatTime(p.UpdatedAt),
	}
}

func FromPayments(list []*domain.Payment) []*PaymentResponse {
	resp := make([]*PaymentResponse, 0, len(list))
	for _, p := range list {
		resp = append(resp, FromPayment(p))
	}
	return resp
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// BookingDetailsResponse бронирование со всеми попытками оплаты
type BookingDetailsResponse struct {
	Booking  *BookingResponse   `json:"booking"`
	Payments []*PaymentResponse `json:"payments"`
}

func FromBookingDetails(b *domain.Booking, payments []*domain.Payment) *BookingDetailsResponse {
	return &BookingDetailsResponse{
		Booking:  FromBooking(b),
		Payments: FromPayments(payments),
	}
}
