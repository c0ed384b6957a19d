package payment

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/m04kA/SMC-SettlementService/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateStatusQuery_IsConditionalOnSourceStatus(t *testing.T) {
	query, args, err := updateStatusQuery(domain.PaymentTransition{
		TransactionID: "tx-1",
		From:          domain.PaymentStatusPending,
		To:            domain.PaymentStatusCompleted,
	})
	require.NoError(t, err)

	assert.Contains(t, query, "UPDATE payments SET status = $1, updated_at = NOW() WHERE transaction_id = $2 AND status = $3")
	assert.Contains(t, query, "RETURNING id, booking_id")
	assert.Equal(t, []interface{}{domain.PaymentStatusCompleted, "tx-1", domain.PaymentStatusPending}, args)
}

func TestUpdateStatusQuery_WithPayload(t *testing.T) {
	query, args, err := updateStatusQuery(domain.PaymentTransition{
		TransactionID:  "tx-1",
		From:           domain.PaymentStatusPending,
		To:             domain.PaymentStatusCompleted,
		GatewayPayload: json.RawMessage(`{"pf_payment_id":"1089250"}`),
	})
	require.NoError(t, err)

	assert.Contains(t, query, "gateway_payload = $2")
	assert.Equal(t, `{"pf_payment_id":"1089250"}`, args[1])
}

func TestOpenByBookingQuery(t *testing.T) {
	query, args, err := openByBookingQuery(3)
	require.NoError(t, err)

	assert.Contains(t, query, "WHERE booking_id = $1 AND status <> $2 ORDER BY id DESC LIMIT 1")
	assert.Equal(t, []interface{}{int64(3), "failed"}, args)
}

func TestCommissionDriftQuery(t *testing.T) {
	query, args, err := commissionDriftQuery(50)
	require.NoError(t, err)

	assert.Contains(t, query, "LEFT JOIN commission_records c ON c.payment_id = p.id")
	assert.Contains(t, query, "p.status IN ($1,$2,$3)")
	assert.Contains(t, query, "(c.id IS NULL OR c.status <> p.status)")
	assert.Len(t, args, 3)
}

func TestStalePendingQuery(t *testing.T) {
	before := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	query, args, err := stalePendingQuery(before, 25)
	require.NoError(t, err)

	assert.Contains(t, query, "WHERE status = $1 AND created_at <= $2 ORDER BY created_at ASC, id ASC LIMIT 25")
	assert.Equal(t, []interface{}{"pending", before}, args)
}

func TestJSONArg(t *testing.T) {
	assert.Nil(t, jsonArg(nil))
	assert.Equal(t, `{}`, jsonArg([]byte(`{}`)))
}
