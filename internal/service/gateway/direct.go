package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/m04kA/SMC-SettlementService/internal/domain"
	"github.com/shopspring/decimal"
)

// DefaultChargeTimeout ограничение на синхронное списание
const DefaultChargeTimeout = 10 * time.Second

// DirectChargeGateway синхронное списание, обратного вызова нет
type DirectChargeGateway struct {
	charger Charger
	timeout time.Duration
	logger  Logger
}

// NewDirectChargeGateway создает шлюз прямого списания
func NewDirectChargeGateway(charger Charger, timeout time.Duration, logger Logger) *DirectChargeGateway {
	if timeout <= 0 {
		timeout = DefaultChargeTimeout
	}
	return &DirectChargeGateway{charger: charger, timeout: timeout, logger: logger}
}

func (g *DirectChargeGateway) Method() domain.PaymentMethod {
	return domain.PaymentMethodDirect
}

func (g *DirectChargeGateway) InitialStatus() domain.PaymentStatus {
	return domain.PaymentStatusPending
}

// AcceptsCallbacks исход известен из ответа процессора, обратного вызова нет
func (g *DirectChargeGateway) AcceptsCallbacks() bool {
	return false
}

// chargePayload сохраняется в gateway_payload
// ReceiptEmail нужен повторному списанию: Stripe сверяет параметры запроса с ключом идемпотентности
type chargePayload struct {
	Reference     string `json:"reference,omitempty"`
	DeclineReason string `json:"declineReason,omitempty"`
	Error         string `json:"error,omitempty"`
	ReceiptEmail  string `json:"receiptEmail,omitempty"`
}

// chargeParams то, из чего строится ChargeRequest; при повторе должно совпадать с первым запросом
type chargeParams struct {
	transactionID string
	bookingID     int64
	amount        decimal.Decimal
	commission    decimal.Decimal
	email         string
}

// Initiate списывает сумму в пределах таймаута
// Таймаут или ошибка транспорта оставляют платёж pending (Degraded), исход не угадывается
func (g *DirectChargeGateway) Initiate(ctx context.Context, req InitiateRequest) (*InitiationResult, error) {
	if err := validateInitiate(req); err != nil {
		return nil, err
	}

	params := chargeParams{
		transactionID: req.TransactionID,
		bookingID:     req.Booking.ID,
		amount:        req.Amount,
		commission:    req.Commission,
		email:         req.Customer.Email,
	}

	res, err := g.charge(ctx, params)
	if err != nil {
		g.logger.Warn("DirectChargeGateway: charge for transaction=%s left pending: %v", req.TransactionID, err)
		payload, _ := json.Marshal(chargePayload{Error: err.Error(), ReceiptEmail: params.email})
		return &InitiationResult{
			TransactionID:  req.TransactionID,
			Status:         domain.PaymentStatusPending,
			GatewayPayload: payload,
			Degraded:       true,
			DegradedReason: domain.ErrGatewayUnavailable.Error(),
		}, nil
	}

	status, payload, err := g.settle(req.TransactionID, res)
	if err != nil {
		return nil, err
	}

	return &InitiationResult{
		TransactionID:  req.TransactionID,
		Status:         status,
		GatewayPayload: payload,
	}, nil
}

// Reconcile у прямого списания нет обратного вызова
func (g *DirectChargeGateway) Reconcile(_ context.Context, payment *domain.Payment, _ Callback) (*ReconciliationOutcome, error) {
	return ignored(payment, "direct charge has no callback step"), nil
}

// Resolve повторяет списание зависшего pending платежа с тем же ключом идемпотентности
// Процессор не списывает второй раз, а возвращает исход первого запроса
func (g *DirectChargeGateway) Resolve(ctx context.Context, payment *domain.Payment) (*ReconciliationOutcome, error) {
	if payment.Status != domain.PaymentStatusPending {
		return ignored(payment, fmt.Sprintf("payment is %s", payment.Status)), nil
	}

	var prev chargePayload
	if len(payment.GatewayPayload) > 0 {
		if err := json.Unmarshal(payment.GatewayPayload, &prev); err != nil {
			g.logger.Warn("DirectChargeGateway: unreadable payload for transaction=%s: %v", payment.TransactionID, err)
		}
	}

	res, err := g.charge(ctx, chargeParams{
		transactionID: payment.TransactionID,
		bookingID:     payment.BookingID,
		amount:        payment.Amount,
		commission:    payment.CommissionAmount,
		email:         prev.ReceiptEmail,
	})
	if err != nil {
		g.logger.Warn("DirectChargeGateway: transaction=%s still unresolved: %v", payment.TransactionID, err)
		return ignored(payment, fmt.Sprintf("processor unavailable: %v", err)), nil
	}

	status, payload, err := g.settle(payment.TransactionID, res)
	if err != nil {
		return nil, err
	}
	return accepted(payment, status, payload), nil
}

func (g *DirectChargeGateway) charge(ctx context.Context, p chargeParams) (*ChargeResult, error) {
	chargeCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	return g.charger.Charge(chargeCtx, ChargeRequest{
		IdempotencyKey: p.transactionID,
		Amount:         p.amount,
		Description:    fmt.Sprintf("Booking #%d", p.bookingID),
		CustomerEmail:  p.email,
		Metadata: map[string]string{
			"transaction_id": p.transactionID,
			"booking_id":     strconv.FormatInt(p.bookingID, 10),
			"commission":     p.commission.StringFixed(2),
		},
	})
}

// settle статус и payload по ответу процессора
func (g *DirectChargeGateway) settle(transactionID string, res *ChargeResult) (domain.PaymentStatus, json.RawMessage, error) {
	payload, err := json.Marshal(chargePayload{Reference: res.Reference, DeclineReason: res.DeclineReason})
	if err != nil {
		return "", nil, domain.WrapError(domain.ErrInternal, err, "encode charge payload")
	}

	if !res.Succeeded {
		g.logger.Info("DirectChargeGateway: charge declined transaction=%s reason=%s", transactionID, res.DeclineReason)
		return domain.PaymentStatusFailed, payload, nil
	}

	g.logger.Info("DirectChargeGateway: charge succeeded transaction=%s reference=%s", transactionID, res.Reference)
	return domain.PaymentStatusCompleted, payload, nil
}
