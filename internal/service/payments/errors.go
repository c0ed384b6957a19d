package payments

import "errors"

var (
	// ErrPaymentNotFound возвращается, когда платёж не найден
	ErrPaymentNotFound = errors.New("payments: payment not found")

	// ErrInvalidPaymentData возвращается при некорректных данных оплаты
	ErrInvalidPaymentData = errors.New("payments: invalid payment data")

	// ErrOpenPaymentExists возвращается, когда у бронирования уже есть открытая попытка оплаты
	ErrOpenPaymentExists = errors.New("payments: booking already has an open payment")

	// ErrConcurrentUpdate возвращается, когда статус платежа изменился между чтением и записью
	ErrConcurrentUpdate = errors.New("payments: payment changed concurrently")

	// ErrMissingCorrelation возвращается, когда в обратном вызове нет идентификатора транзакции
	ErrMissingCorrelation = errors.New("payments: callback has no transaction id")

	// ErrCallbackNotAccepted возвращается на обратный вызов для способа оплаты, который проводится только внутри сервиса
	ErrCallbackNotAccepted = errors.New("payments: payment method does not accept gateway callbacks")

	// ErrInternal возвращается при внутренних ошибках сервиса
	ErrInternal = errors.New("payments: internal error")
)
