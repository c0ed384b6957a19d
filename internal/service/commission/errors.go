package commission

import "errors"

var (
	// ErrInvalidAmount возвращается, когда сумма не положительная
	ErrInvalidAmount = errors.New("commission: amount must be positive")

	// ErrInvalidRate возвращается, когда ставка вне диапазона [0, 1)
	ErrInvalidRate = errors.New("commission: rate must be in [0, 1)")
)
