package settlement

import "errors"

var (
	// ErrServiceNotFound возвращается, когда услуги нет в каталоге бизнеса
	ErrServiceNotFound = errors.New("settlement: service not found in catalog")

	// ErrServiceInactive возвращается, когда услуга снята с продажи
	ErrServiceInactive = errors.New("settlement: service is not active")
)
