package gateway

import (
	"encoding/json"

	"github.com/m04kA/SMC-SettlementService/internal/domain"
	"github.com/shopspring/decimal"
)

// Verdict итог обработки обратного вызова
type Verdict string

const (
	VerdictAccepted Verdict = "accepted"
	VerdictIgnored  Verdict = "ignored"
	VerdictRejected Verdict = "rejected"
)

// InitiateRequest данные для старта оплаты
type InitiateRequest struct {
	Booking       *domain.Booking
	TransactionID string
	Amount        decimal.Decimal
	Commission    decimal.Decimal
	Customer      domain.CustomerInfo
}

// InitiationResult результат старта оплаты
type InitiationResult struct {
	TransactionID  string
	Status         domain.PaymentStatus
	RedirectTarget string
	GatewayPayload json.RawMessage

	// Degraded - шлюз не ответил вовремя, платёж остаётся pending
	Degraded       bool
	DegradedReason string
}

// Callback поля уведомления от шлюза или внутреннего триггера
type Callback struct {
	Fields map[string]string
}

// NewCallback создает обратный вызов из плоских полей
func NewCallback(fields map[string]string) Callback {
	return Callback{Fields: fields}
}

// Get возвращает значение поля или пустую строку
func (c Callback) Get(key string) string {
	if c.Fields == nil {
		return ""
	}
	return c.Fields[key]
}

// TransactionID поле корреляции с платежом
func (c Callback) TransactionID() string {
	return c.Get(domain.CallbackFieldTransactionID)
}

// ReconciliationOutcome результат сверки обратного вызова с платежом
type ReconciliationOutcome struct {
	TransactionID  string
	NewStatus      domain.PaymentStatus
	Verdict        Verdict
	Reason         string
	GatewayPayload json.RawMessage
}

// Changes исход выводит платёж из текущего статуса
func (o *ReconciliationOutcome) Changes(current domain.PaymentStatus) bool {
	return o.Verdict == VerdictAccepted && o.NewStatus != current
}

// ChargeRequest запрос на синхронное списание
type ChargeRequest struct {
	IdempotencyKey string
	Amount         decimal.Decimal
	Description    string
	CustomerEmail  string
	Metadata       map[string]string
}

// ChargeResult ответ процессора
type ChargeResult struct {
	Reference     string
	Succeeded     bool
	DeclineReason string
}

func ignored(payment *domain.Payment, reason string) *ReconciliationOutcome {
	return &ReconciliationOutcome{
		TransactionID: payment.TransactionID,
		NewStatus:     payment.Status,
		Verdict:       VerdictIgnored,
		Reason:        reason,
	}
}

func rejected(payment *domain.Payment, reason string) *ReconciliationOutcome {
	return &ReconciliationOutcome{
		TransactionID: payment.TransactionID,
		NewStatus:     payment.Status,
		Verdict:       VerdictRejected,
		Reason:        reason,
	}
}

func accepted(payment *domain.Payment, to domain.PaymentStatus, payload json.RawMessage) *ReconciliationOutcome {
	return &ReconciliationOutcome{
		TransactionID:  payment.TransactionID,
		NewStatus:      to,
		Verdict:        VerdictAccepted,
		GatewayPayload: payload,
	}
}
