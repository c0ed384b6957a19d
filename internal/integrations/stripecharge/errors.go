package stripecharge

import "errors"

var (
	// ErrInternal возвращается при ошибках построения запроса
	ErrInternal = errors.New("stripecharge: internal error")

	// ErrUnavailable возвращается, когда исход списания неизвестен (сеть, 5xx, rate limit)
	ErrUnavailable = errors.New("stripecharge: processor unavailable")
)
