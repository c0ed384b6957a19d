package gateway

import "errors"

var (
	// ErrInvalidPaymentData возвращается при некорректных данных оплаты
	ErrInvalidPaymentData = errors.New("gateway: invalid payment data")

	// ErrUnsupportedMethod возвращается для неизвестного способа оплаты
	ErrUnsupportedMethod = errors.New("gateway: unsupported payment method")

	// ErrMisconfigured возвращается при неполной конфигурации шлюза
	ErrMisconfigured = errors.New("gateway: misconfigured")
)
