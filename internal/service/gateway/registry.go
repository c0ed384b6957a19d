package gateway

import (
	"sort"

	"github.com/m04kA/SMC-SettlementService/internal/domain"
)

// Registry сопоставляет способ оплаты и шлюз
type Registry struct {
	adapters map[domain.PaymentMethod]Adapter
}

// NewRegistry регистрирует шлюзы; повторный способ оплаты заменяет предыдущий
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[domain.PaymentMethod]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Method()] = a
	}
	return r
}

// Get возвращает шлюз для способа оплаты
func (r *Registry) Get(method domain.PaymentMethod) (Adapter, error) {
	a, ok := r.adapters[method]
	if !ok {
		return nil, domain.WrapError(domain.ErrValidation, ErrUnsupportedMethod, "unsupported payment method %q", method)
	}
	return a, nil
}

// Methods зарегистрированные способы оплаты в стабильном порядке
func (r *Registry) Methods() []domain.PaymentMethod {
	methods := make([]domain.PaymentMethod, 0, len(r.adapters))
	for m := range r.adapters {
		methods = append(methods, m)
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i] < methods[j] })
	return methods
}
