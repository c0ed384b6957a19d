package gateway

import (
	"context"

	"github.com/m04kA/SMC-SettlementService/internal/domain"
)

// Adapter платёжный шлюз конкретного способа оплаты
type Adapter interface {
	Method() domain.PaymentMethod
	// InitialStatus статус, с которым запись оплаты создаётся до обращения к шлюзу
	InitialStatus() domain.PaymentStatus
	// AcceptsCallbacks исход приходит обратным вызовом на публичный адрес
	AcceptsCallbacks() bool
	Initiate(ctx context.Context, req InitiateRequest) (*InitiationResult, error)
	Reconcile(ctx context.Context, payment *domain.Payment, cb Callback) (*ReconciliationOutcome, error)
}

// Resolver шлюз, который сам выясняет исход зависшего pending платежа
type Resolver interface {
	Resolve(ctx context.Context, payment *domain.Payment) (*ReconciliationOutcome, error)
}

// Verifier подпись канонической строки полей (см. pkg/signature)
type Verifier interface {
	Sign(payload map[string]string, secret string) string
	Verify(payload map[string]string, provided, secret string) bool
}

// Charger синхронное списание у внешнего процессора
type Charger interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
