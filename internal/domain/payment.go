package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod способ оплаты
type PaymentMethod string

const (
	PaymentMethodRedirect PaymentMethod = "redirect_gateway"
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodDirect   PaymentMethod = "direct_charge"
)

// PaymentStatus статус попытки оплаты
type PaymentStatus string

const (
	PaymentStatusPending     PaymentStatus = "pending"
	PaymentStatusPendingCash PaymentStatus = "pending_cash"
	PaymentStatusCompleted   PaymentStatus = "completed"
	PaymentStatusFailed      PaymentStatus = "failed"
	PaymentStatusRefunded    PaymentStatus = "refunded"
)

// paymentTransitions переходы статусов для каждого способа оплаты
// Из failed и refunded переходов нет
var paymentTransitions = map[PaymentMethod]map[PaymentStatus][]PaymentStatus{
	PaymentMethodRedirect: {
		PaymentStatusPending:   {PaymentStatusCompleted, PaymentStatusFailed},
		PaymentStatusCompleted: {PaymentStatusRefunded},
	},
	PaymentMethodCash: {
		PaymentStatusPendingCash: {PaymentStatusCompleted, PaymentStatusFailed},
		PaymentStatusCompleted:   {PaymentStatusRefunded},
	},
	PaymentMethodDirect: {
		PaymentStatusPending:   {PaymentStatusCompleted, PaymentStatusFailed},
		PaymentStatusCompleted: {PaymentStatusRefunded},
	},
}

// Payment попытка оплаты полной суммы бронирования
type Payment struct {
	ID               int64
	BookingID        int64
	Amount           decimal.Decimal
	CommissionAmount decimal.Decimal
	Method           PaymentMethod
	Status           PaymentStatus
	TransactionID    string // выдаётся при создании, не переиспользуется
	GatewayPayload   json.RawMessage
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsValid способ оплаты известен
func (m PaymentMethod) IsValid() bool {
	_, ok := paymentTransitions[m]
	return ok
}

// CanTransition переход from -> to разрешён для способа оплаты
func (m PaymentMethod) CanTransition(from, to PaymentStatus) bool {
	for _, next := range paymentTransitions[m][from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal completed, failed и refunded
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// IsSettled статуса достаточно для подтверждения бронирования
// Наличные подтверждают бронирование сразу при создании записи оплаты
func (s PaymentStatus) IsSettled() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusPendingCash
}

// IsOpen попытка занимает единственный слот оплаты бронирования
func (s PaymentStatus) IsOpen() bool {
	return s != PaymentStatusFailed
}

// RequiresRefund отмена бронирования идет через возврат
func (p *Payment) RequiresRefund() bool {
	return p.Status == PaymentStatusCompleted && p.Method != PaymentMethodCash
}

// PaymentTransition описывает conditional update статуса платежа
type PaymentTransition struct {
	TransactionID  string
	From           PaymentStatus
	To             PaymentStatus
	GatewayPayload json.RawMessage // nil - не менять
}

// CustomerInfo данные покупателя для платёжного шлюза
type CustomerInfo struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// FullName "имя фамилия" без лишних пробелов
func (c CustomerInfo) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	default:
		return c.FirstName + " " + c.LastName
	}
}
