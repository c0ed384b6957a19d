package domain

import (
	"errors"
	"fmt"
)

// Виды ошибок, видимые снаружи. Сравнение через errors.Is
var (
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("not found")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrRefundRequired     = errors.New("refund required")
	ErrSignatureRejected  = errors.New("signature rejected")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrGatewayUnavailable = errors.New("gateway unavailable")
	ErrInternal           = errors.New("internal error")
)

var kinds = []error{
	ErrValidation,
	ErrNotFound,
	ErrInvalidTransition,
	ErrRefundRequired,
	ErrSignatureRejected,
	ErrPreconditionFailed,
	ErrGatewayUnavailable,
	ErrInternal,
}

// Error структурированная ошибка: вид + сообщение для человека + причина
type Error struct {
	Kind    error
	Message string
	Err     error
}

// NewError создает ошибку указанного вида
func NewError(kind error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError создает ошибку указанного вида с причиной
func WrapError(kind error, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is сравнивает вид ошибки, причина проверяется через Unwrap
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

// KindOf возвращает вид ошибки, ErrInternal для неизвестных
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) && de.Kind != nil {
		return de.Kind
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrInternal
}

// MessageOf возвращает сообщение для клиента без внутренних деталей
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		if de.Message != "" {
			return de.Message
		}
		return de.Kind.Error()
	}
	return KindOf(err).Error()
}
