package commission

import (
	"testing"

	"github.com/m04kA/SMC-SettlementService/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertQuery(t *testing.T) {
	query, args, err := upsertQuery(&domain.CommissionRecord{
		PaymentID:         11,
		BookingID:         5,
		BusinessID:        2,
		Amount:            decimal.RequireFromString("50.00"),
		PercentageApplied: decimal.RequireFromString("0.05"),
		Status:            domain.PaymentStatusCompleted,
	})
	require.NoError(t, err)

	assert.Equal(t,
		"INSERT INTO commission_records (payment_id,booking_id,business_id,amount,percentage_applied,status) "+
			"VALUES ($1,$2,$3,$4,$5,$6) ON CONFLICT (payment_id) DO UPDATE SET status = EXCLUDED.status, "+
			"updated_at = NOW() RETURNING id, created_at, updated_at",
		query)
	assert.Len(t, args, 6)
	assert.Equal(t, int64(11), args[0])
}
