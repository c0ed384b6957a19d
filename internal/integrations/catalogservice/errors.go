package catalogservice

import "errors"

var (
	// ErrServiceNotFound возвращается, когда у бизнеса нет такой услуги
	ErrServiceNotFound = errors.New("catalog: service not found")

	// ErrInternal возвращается при внутренних ошибках клиента
	ErrInternal = errors.New("catalogservice client: internal error")

	// ErrInvalidResponse возвращается при некорректном ответе от сервиса
	ErrInvalidResponse = errors.New("catalogservice client: invalid response")

	// ErrServiceDegraded возвращается при применении graceful degradation
	// Каталог недоступен, проверка услуги пропускается
	ErrServiceDegraded = errors.New("catalogservice unavailable: graceful degradation applied")
)
