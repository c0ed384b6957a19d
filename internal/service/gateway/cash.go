package gateway

import (
	"context"
	"fmt"

	"github.com/m04kA/SMC-SettlementService/internal/domain"
)

// CashGateway оплата наличными при оказании услуги
type CashGateway struct {
	logger Logger
}

func NewCashGateway(logger Logger) *CashGateway {
	return &CashGateway{logger: logger}
}

func (g *CashGateway) Method() domain.PaymentMethod {
	return domain.PaymentMethodCash
}

func (g *CashGateway) InitialStatus() domain.PaymentStatus {
	return domain.PaymentStatusPendingCash
}

// AcceptsCallbacks наличные проводит только внутренний сигнал "услуга оказана"
func (g *CashGateway) AcceptsCallbacks() bool {
	return false
}

// Initiate сразу возвращает pending_cash, внешнего вызова нет
func (g *CashGateway) Initiate(_ context.Context, req InitiateRequest) (*InitiationResult, error) {
	if err := validateInitiate(req); err != nil {
		return nil, err
	}

	g.logger.Info("CashGateway: cash payment registered transaction=%s booking=%d amount=%s",
		req.TransactionID, req.Booking.ID, req.Amount.StringFixed(2))

	return &InitiationResult{
		TransactionID: req.TransactionID,
		Status:        domain.PaymentStatusPendingCash,
	}, nil
}

// Reconcile принимает только внутреннее подтверждение service_rendered
func (g *CashGateway) Reconcile(_ context.Context, payment *domain.Payment, cb Callback) (*ReconciliationOutcome, error) {
	if event := cb.Get(domain.CallbackFieldEvent); event != domain.EventServiceRendered {
		return ignored(payment, fmt.Sprintf("cash payments settle only on %s, got %q", domain.EventServiceRendered, event)), nil
	}
	if payment.Status != domain.PaymentStatusPendingCash {
		return ignored(payment, fmt.Sprintf("payment is %s", payment.Status)), nil
	}
	return accepted(payment, domain.PaymentStatusCompleted, nil), nil
}
