package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType тип события для внешних потребителей (уведомления, бухгалтерия)
type EventType string

const (
	EventPaymentCompleted EventType = "payment.completed"
	EventPaymentFailed    EventType = "payment.failed"
	EventBookingConfirmed EventType = "booking.confirmed"
	EventBookingCancelled EventType = "booking.cancelled"
	EventBookingCompleted EventType = "booking.completed"
	EventRefundRequired   EventType = "refund.required"
)

// Aggregate types
const (
	AggregateBooking = "booking"
	AggregatePayment = "payment"
)

// OutboxEvent событие, записанное в той же транзакции, что и изменение состояния
// Публикуется воркером с доставкой at-least-once
type OutboxEvent struct {
	ID            string
	AggregateType string
	AggregateID   int64
	EventType     EventType
	Payload       json.RawMessage
	Attempts      int
	LastError     *string
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

// BookingEventPayload тело событий booking.*
type BookingEventPayload struct {
	BookingID   int64         `json:"bookingId"`
	CustomerID  int64         `json:"customerId"`
	BusinessID  int64         `json:"businessId"`
	ServiceID   int64         `json:"serviceId"`
	Status      BookingStatus `json:"status"`
	ScheduledAt time.Time     `json:"scheduledAt"`
	Reason      *string       `json:"reason,omitempty"`
}

// PaymentEventPayload тело событий payment.* и refund.required
type PaymentEventPayload struct {
	PaymentID        int64         `json:"paymentId"`
	BookingID        int64         `json:"bookingId"`
	TransactionID    string        `json:"transactionId"`
	Method           PaymentMethod `json:"method"`
	Status           PaymentStatus `json:"status"`
	Amount           string        `json:"amount"`
	CommissionAmount string        `json:"commissionAmount"`
}

// NewBookingEventPayload собирает payload события по бронированию
func NewBookingEventPayload(b *Booking) BookingEventPayload {
	return BookingEventPayload{
		BookingID:   b.ID,
		CustomerID:  b.CustomerID,
		BusinessID:  b.BusinessID,
		ServiceID:   b.ServiceID,
		Status:      b.Status,
		ScheduledAt: b.ScheduledAt,
		Reason:      b.CancellationReason,
	}
}

// NewPaymentEventPayload собирает payload события по платежу
func NewPaymentEventPayload(p *Payment) PaymentEventPayload {
	return PaymentEventPayload{
		PaymentID:        p.ID,
		BookingID:        p.BookingID,
		TransactionID:    p.TransactionID,
		Method:           p.Method,
		Status:           p.Status,
		Amount:           p.Amount.StringFixed(2),
		CommissionAmount: p.CommissionAmount.StringFixed(2),
	}
}

// NewOutboxEvent собирает событие с новым идентификатором
func NewOutboxEvent(aggregateType string, aggregateID int64, eventType EventType, payload interface{}) (*OutboxEvent, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return &OutboxEvent{
		ID:            uuid.NewString(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       body,
	}, nil
}
