package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AmountScale точность денежных сумм (минорные единицы валюты)
const AmountScale = 2

// DefaultCommissionRate комиссия платформы по умолчанию
var DefaultCommissionRate = decimal.RequireFromString("0.05")

// Business validation constants
const (
	MaxCancellationReasonLength = 500
	MaxCustomerNameLength       = 100

	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Поля обратного вызова платёжного шлюза
const (
	CallbackFieldTransactionID = "m_payment_id"
	CallbackFieldStatus        = "payment_status"
	CallbackFieldAmountGross   = "amount_gross"
	CallbackFieldGatewayRef    = "pf_payment_id"
	CallbackFieldMerchantID    = "merchant_id"
	CallbackFieldEvent         = "event"
)

// Значения полей обратного вызова
const (
	GatewayStatusComplete = "COMPLETE"
	EventServiceRendered  = "service_rendered"
)

// DefaultStalePaymentAge возраст pending платежа, после которого сверка выясняет его исход
const DefaultStalePaymentAge = 15 * time.Minute

// TimeFormat формат времени в API
const TimeFormat = "2006-01-02T15:04:05Z07:00"

// OpenPaymentStatuses статусы, занимающие единственный слот оплаты бронирования
var OpenPaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusPendingCash,
	PaymentStatusCompleted,
	PaymentStatusRefunded,
}
