package commission

import (
	"fmt"

	"github.com/m04kA/SMC-SettlementService/internal/domain"
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// Calculator считает комиссию платформы по фиксированной ставке
type Calculator struct {
	rate decimal.Decimal
}

// NewCalculator создает калькулятор с проверкой ставки
func NewCalculator(rate decimal.Decimal) (*Calculator, error) {
	if err := validateRate(rate); err != nil {
		return nil, err
	}
	return &Calculator{rate: rate}, nil
}

// Rate ставка, применяемая калькулятором
func (c *Calculator) Rate() decimal.Decimal {
	return c.rate
}

// Commission комиссия по ставке калькулятора
func (c *Calculator) Commission(amount decimal.Decimal) (decimal.Decimal, error) {
	return Calculate(amount, c.rate)
}

// Calculate возвращает amount*rate, округлённое до копеек банковским округлением (half-even)
func Calculate(amount, rate decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: got %s", ErrInvalidAmount, amount.String())
	}
	if err := validateRate(rate); err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(rate).RoundBank(domain.AmountScale), nil
}

func validateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThanOrEqual(one) {
		return fmt.Errorf("%w: got %s", ErrInvalidRate, rate.String())
	}
	return nil
}
