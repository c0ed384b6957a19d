package bookings

import "errors"

var (
	// ErrBookingNotFound возвращается, когда бронирование не найдено
	ErrBookingNotFound = errors.New("bookings: booking not found")

	// ErrInvalidInput возвращается при некорректных входных данных
	ErrInvalidInput = errors.New("bookings: invalid input data")

	// ErrInvalidTransition возвращается при недопустимом переходе статуса
	ErrInvalidTransition = errors.New("bookings: invalid status transition")

	// ErrRefundRequired возвращается при отмене бронирования с успешной безналичной оплатой
	ErrRefundRequired = errors.New("bookings: cancellation requires refund")

	// ErrConcurrentUpdate возвращается, когда статус изменился между чтением и записью
	ErrConcurrentUpdate = errors.New("bookings: booking changed concurrently")

	// ErrInternal возвращается при внутренних ошибках сервиса
	ErrInternal = errors.New("bookings: internal error")
)
