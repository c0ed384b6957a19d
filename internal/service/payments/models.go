package payments

import (
	"context"

	"github.com/m04kA/SMC-SettlementService/internal/domain"
	"github.com/m04kA/SMC-SettlementService/internal/service/gateway"
	"github.com/shopspring/decimal"
)

// SettlementHook вызывается в транзакции перехода, когда платёж впервые становится settled
// Ошибка хука откатывает переход платежа
type SettlementHook func(ctx context.Context, payment *domain.Payment) error

// CreateRequest запрос на создание попытки оплаты
type CreateRequest struct {
	BookingID int64
	Amount    decimal.Decimal
	Method    domain.PaymentMethod
	Customer  domain.CustomerInfo
}

// Attempt попытка оплаты, записанная в БД, но ещё не запущенная в шлюзе
type Attempt struct {
	Payment  *domain.Payment
	Booking  *domain.Booking
	Customer domain.CustomerInfo
}

// CreateResult результат создания попытки оплаты
type CreateResult struct {
	Payment        *domain.Payment
	RedirectTarget string
	Degraded       bool
}

// CallbackResult результат обработки обратного вызова
type CallbackResult struct {
	Payment *domain.Payment
	Verdict gateway.Verdict
	Reason  string
	// Replayed - платёж уже был в итоговом статусе, повторная доставка
	Replayed bool
}

// ResolveResult итог прохода по зависшим pending платежам
type ResolveResult struct {
	Resolved int
	// Unresolved - исход по-прежнему неизвестен, платёж ждёт обратного вызова или ручного разбора
	Unresolved int
}
