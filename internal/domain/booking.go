package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookingStatus статус бронирования
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// CancelledBy инициатор отмены бронирования
type CancelledBy string

const (
	CancelledByCustomer CancelledBy = "customer"
	CancelledByBusiness CancelledBy = "business"
)

// bookingTransitions допустимые переходы статусов бронирования
// completed и cancelled терминальные
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed: {BookingStatusCompleted, BookingStatusCancelled},
}

// Booking запись клиента на услугу бизнеса
type Booking struct {
	ID               int64
	CustomerID       int64
	BusinessID       int64
	ServiceID        int64
	ScheduledAt      time.Time
	TotalAmount      decimal.Decimal
	CommissionAmount decimal.Decimal // всегда вычисляется, клиент не передаёт
	Status           BookingStatus

	CancelledBy        *CancelledBy
	CancellationReason *string
	CancelledAt        *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsValid статус известен
func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCompleted, BookingStatusCancelled:
		return true
	}
	return false
}

// IsTerminal из статуса нет переходов
func (s BookingStatus) IsTerminal() bool {
	return len(bookingTransitions[s]) == 0
}

// CanTransitionTo переход s -> to разрешён
func (s BookingStatus) CanTransitionTo(to BookingStatus) bool {
	for _, next := range bookingTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// BookingSourcesFor возвращает статусы, из которых разрешён переход в to
// Используется как условие в conditional update
func BookingSourcesFor(to BookingStatus) []BookingStatus {
	var sources []BookingStatus
	for _, from := range []BookingStatus{BookingStatusPending, BookingStatusConfirmed, BookingStatusCompleted, BookingStatusCancelled} {
		if from.CanTransitionTo(to) {
			sources = append(sources, from)
		}
	}
	return sources
}

// CanBeCancelled бронирование можно отменить
func (b *Booking) CanBeCancelled() bool {
	return b.Status.CanTransitionTo(BookingStatusCancelled)
}

// IsCancelled бронирование отменено
func (b *Booking) IsCancelled() bool {
	return b.Status == BookingStatusCancelled
}

// BookingTransition описывает conditional update статуса бронирования
type BookingTransition struct {
	BookingID int64
	From      []BookingStatus
	To        BookingStatus

	// Заполняются только при отмене
	CancelledBy        *CancelledBy
	CancellationReason *string
	CancelledAt        *time.Time
}

// BookingFilter выборка бронирований клиента или бизнеса
type BookingFilter struct {
	CustomerID int64
	BusinessID int64
	Statuses   []BookingStatus
	Limit      uint64
	Offset     uint64
}
