package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommissionRecord запись комиссии платформы для бухгалтерии
// Одна запись на платёж, статус повторяет статус платежа и отдельно не меняется
type CommissionRecord struct {
	ID                int64
	PaymentID         int64
	BookingID         int64
	BusinessID        int64
	Amount            decimal.Decimal
	PercentageApplied decimal.Decimal
	Status            PaymentStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
