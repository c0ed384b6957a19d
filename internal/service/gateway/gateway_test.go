package gateway

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/m04kA/SMC-SettlementService/internal/domain"
	"github.com/m04kA/SMC-SettlementService/pkg/signature"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testPassphrase = "jt7NOE43FZPn"

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

type mockCharger struct {
	mock.Mock
}

func (m *mockCharger) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	args := m.Called(ctx, req)
	if res := args.Get(0); res != nil {
		return res.(*ChargeResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func pendingBooking() *domain.Booking {
	return &domain.Booking{
		ID:          42,
		CustomerID:  1,
		BusinessID:  2,
		ServiceID:   3,
		TotalAmount: decimal.RequireFromString("1000.00"),
		Status:      domain.BookingStatusPending,
	}
}

func initiateRequest() InitiateRequest {
	return InitiateRequest{
		Booking:       pendingBooking(),
		TransactionID: "7d3f6c1e-2b7a-4a53-9a8e-5f0c2d1b9e44",
		Amount:        decimal.RequireFromString("1000.00"),
		Commission:    decimal.RequireFromString("50.00"),
		Customer:      domain.CustomerInfo{FirstName: "Anna", LastName: "Smirnova", Email: "anna@example.com"},
	}
}

func newRedirect(t *testing.T) (*RedirectGateway, *signature.Verifier) {
	t.Helper()
	v, err := signature.New(signature.MD5)
	require.NoError(t, err)

	g, err := NewRedirectGateway(RedirectConfig{
		MerchantID:  "10000100",
		MerchantKey: "46f0cd694581a",
		Passphrase:  testPassphrase,
		ProcessURL:  "https://sandbox.gateway.test/eng/process",
		ReturnURL:   "https://app.test/return",
		CancelURL:   "https://app.test/cancel",
		NotifyURL:   "https://api.test/api/v1/payments/callback",
	}, v, nopLogger{})
	require.NoError(t, err)
	return g, v
}

func signedCallback(v *signature.Verifier, fields map[string]string) Callback {
	fields[signature.FieldName] = v.Sign(fields, testPassphrase)
	return NewCallback(fields)
}

func redirectPayment() *domain.Payment {
	return &domain.Payment{
		ID:            9,
		BookingID:     42,
		Amount:        decimal.RequireFromString("1000.00"),
		Method:        domain.PaymentMethodRedirect,
		Status:        domain.PaymentStatusPending,
		TransactionID: "7d3f6c1e-2b7a-4a53-9a8e-5f0c2d1b9e44",
	}
}

func completeFields() map[string]string {
	return map[string]string{
		"m_payment_id":   "7d3f6c1e-2b7a-4a53-9a8e-5f0c2d1b9e44",
		"pf_payment_id":  "1089250",
		"payment_status": "COMPLETE",
		"item_name":      "Booking #42",
		"amount_gross":   "1000.00",
		"amount_fee":     "-23.00",
		"amount_net":     "977.00",
		"merchant_id":    "10000100",
	}
}

func TestRedirectGateway_Initiate(t *testing.T) {
	g, v := newRedirect(t)

	res, err := g.Initiate(context.Background(), initiateRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusPending, res.Status)
	assert.Equal(t, "7d3f6c1e-2b7a-4a53-9a8e-5f0c2d1b9e44", res.TransactionID)
	assert.False(t, res.Degraded)
	assert.NotContains(t, string(res.GatewayPayload), "merchant_key")

	u, err := url.Parse(res.RedirectTarget)
	require.NoError(t, err)
	assert.Equal(t, "sandbox.gateway.test", u.Host)

	q := u.Query()
	assert.Equal(t, "1000.00", q.Get("amount"))
	assert.Equal(t, "7d3f6c1e-2b7a-4a53-9a8e-5f0c2d1b9e44", q.Get("m_payment_id"))
	assert.Equal(t, "50.00", q.Get("custom_str1"))
	assert.Equal(t, "Booking #42", q.Get("item_name"))

	fields := make(map[string]string, len(q))
	for k := range q {
		fields[k] = q.Get(k)
	}
	assert.True(t, v.Verify(fields, q.Get(signature.FieldName), testPassphrase))
}

func TestRedirectGateway_Initiate_InvalidPaymentData(t *testing.T) {
	g, _ := newRedirect(t)

	tests := []struct {
		name   string
		mutate func(*InitiateRequest)
	}{
		{"zero amount", func(r *InitiateRequest) { r.Amount = decimal.Zero }},
		{"negative amount", func(r *InitiateRequest) { r.Amount = decimal.RequireFromString("-1") }},
		{"booking not pending", func(r *InitiateRequest) { r.Booking.Status = domain.BookingStatusConfirmed }},
		{"missing booking", func(r *InitiateRequest) { r.Booking = nil }},
		{"missing transaction", func(r *InitiateRequest) { r.TransactionID = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := initiateRequest()
			tt.mutate(&req)

			_, err := g.Initiate(context.Background(), req)
			assert.ErrorIs(t, err, ErrInvalidPaymentData)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestRedirectGateway_Reconcile(t *testing.T) {
	g, v := newRedirect(t)

	t.Run("complete code moves to completed", func(t *testing.T) {
		out, err := g.Reconcile(context.Background(), redirectPayment(), signedCallback(v, completeFields()))
		require.NoError(t, err)
		assert.Equal(t, VerdictAccepted, out.Verdict)
		assert.Equal(t, domain.PaymentStatusCompleted, out.NewStatus)
		assert.Contains(t, string(out.GatewayPayload), "1089250")
		assert.True(t, out.Changes(domain.PaymentStatusPending))
	})

	t.Run("intermediate code is ignored", func(t *testing.T) {
		f := completeFields()
		f["payment_status"] = "PENDING"
		out, err := g.Reconcile(context.Background(), redirectPayment(), signedCallback(v, f))
		require.NoError(t, err)
		assert.Equal(t, VerdictIgnored, out.Verdict)
		assert.Equal(t, domain.PaymentStatusPending, out.NewStatus)
		assert.False(t, out.Changes(domain.PaymentStatusPending))
	})

	t.Run("tampered field is rejected", func(t *testing.T) {
		cb := signedCallback(v, completeFields())
		cb.Fields["amount_gross"] = "1.00"
		out, err := g.Reconcile(context.Background(), redirectPayment(), cb)
		require.NoError(t, err)
		assert.Equal(t, VerdictRejected, out.Verdict)
		assert.Equal(t, domain.PaymentStatusPending, out.NewStatus)
	})

	t.Run("missing signature is rejected", func(t *testing.T) {
		out, err := g.Reconcile(context.Background(), redirectPayment(), NewCallback(completeFields()))
		require.NoError(t, err)
		assert.Equal(t, VerdictRejected, out.Verdict)
	})

	t.Run("signed amount mismatch is rejected", func(t *testing.T) {
		f := completeFields()
		f["amount_gross"] = "999.99"
		out, err := g.Reconcile(context.Background(), redirectPayment(), signedCallback(v, f))
		require.NoError(t, err)
		assert.Equal(t, VerdictRejected, out.Verdict)
		assert.Equal(t, "amount mismatch", out.Reason)
	})

	t.Run("foreign merchant is rejected", func(t *testing.T) {
		f := completeFields()
		f["merchant_id"] = "99999"
		out, err := g.Reconcile(context.Background(), redirectPayment(), signedCallback(v, f))
		require.NoError(t, err)
		assert.Equal(t, VerdictRejected, out.Verdict)
	})

	t.Run("already completed is ignored", func(t *testing.T) {
		p := redirectPayment()
		p.Status = domain.PaymentStatusCompleted
		out, err := g.Reconcile(context.Background(), p, signedCallback(v, completeFields()))
		require.NoError(t, err)
		assert.Equal(t, VerdictIgnored, out.Verdict)
		assert.Equal(t, domain.PaymentStatusCompleted, out.NewStatus)
	})
}

func TestNewRedirectGateway_Misconfigured(t *testing.T) {
	v, _ := signature.New(signature.MD5)
	_, err := NewRedirectGateway(RedirectConfig{MerchantID: "1"}, v, nopLogger{})
	assert.ErrorIs(t, err, ErrMisconfigured)
}

func TestCashGateway(t *testing.T) {
	g := NewCashGateway(nopLogger{})
	assert.Equal(t, domain.PaymentStatusPendingCash, g.InitialStatus())

	res, err := g.Initiate(context.Background(), initiateRequest())
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPendingCash, res.Status)
	assert.Empty(t, res.RedirectTarget)

	p := &domain.Payment{TransactionID: "tx", Method: domain.PaymentMethodCash, Status: domain.PaymentStatusPendingCash}

	out, err := g.Reconcile(context.Background(), p, NewCallback(map[string]string{"event": "service_rendered"}))
	require.NoError(t, err)
	assert.Equal(t, VerdictAccepted, out.Verdict)
	assert.Equal(t, domain.PaymentStatusCompleted, out.NewStatus)

	out, err = g.Reconcile(context.Background(), p, NewCallback(map[string]string{"payment_status": "COMPLETE"}))
	require.NoError(t, err)
	assert.Equal(t, VerdictIgnored, out.Verdict)

	p.Status = domain.PaymentStatusCompleted
	out, err = g.Reconcile(context.Background(), p, NewCallback(map[string]string{"event": "service_rendered"}))
	require.NoError(t, err)
	assert.Equal(t, VerdictIgnored, out.Verdict)
}

func TestDirectChargeGateway_Initiate(t *testing.T) {
	tests := []struct {
		name         string
		result       *ChargeResult
		err          error
		wantStatus   domain.PaymentStatus
		wantDegraded bool
	}{
		{"charge succeeded", &ChargeResult{Reference: "pi_123", Succeeded: true}, nil, domain.PaymentStatusCompleted, false},
		{"charge declined", &ChargeResult{Reference: "pi_124", DeclineReason: "card_declined"}, nil, domain.PaymentStatusFailed, false},
		{"processor unavailable", nil, errors.New("connection reset"), domain.PaymentStatusPending, true},
		{"processor timeout", nil, context.DeadlineExceeded, domain.PaymentStatusPending, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			charger := &mockCharger{}
			charger.On("Charge", mock.Anything, mock.MatchedBy(func(req ChargeRequest) bool {
				return req.IdempotencyKey == "7d3f6c1e-2b7a-4a53-9a8e-5f0c2d1b9e44" && req.Amount.Equal(decimal.RequireFromString("1000"))
			})).Return(tt.result, tt.err)

			g := NewDirectChargeGateway(charger, time.Second, nopLogger{})
			res, err := g.Initiate(context.Background(), initiateRequest())
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, res.Status)
			assert.Equal(t, tt.wantDegraded, res.Degraded)
			charger.AssertExpectations(t)
		})
	}
}

type slowCharger struct{}

func (slowCharger) Charge(ctx context.Context, _ ChargeRequest) (*ChargeResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestDirectChargeGateway_TimeoutLeavesPending(t *testing.T) {
	g := NewDirectChargeGateway(slowCharger{}, 20*time.Millisecond, nopLogger{})

	start := time.Now()
	res, err := g.Initiate(context.Background(), initiateRequest())
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, domain.PaymentStatusPending, res.Status)
	assert.True(t, res.Degraded)
}

func TestDirectChargeGateway_ReconcileIgnored(t *testing.T) {
	g := NewDirectChargeGateway(&mockCharger{}, 0, nopLogger{})
	p := &domain.Payment{TransactionID: "tx", Method: domain.PaymentMethodDirect, Status: domain.PaymentStatusPending}

	out, err := g.Reconcile(context.Background(), p, NewCallback(completeFields()))
	require.NoError(t, err)
	assert.Equal(t, VerdictIgnored, out.Verdict)
}

func TestDirectChargeGateway_DegradedPayloadKeepsReceiptEmail(t *testing.T) {
	charger := &mockCharger{}
	charger.On("Charge", mock.Anything, mock.Anything).Return(nil, context.DeadlineExceeded)

	g := NewDirectChargeGateway(charger, time.Second, nopLogger{})
	res, err := g.Initiate(context.Background(), initiateRequest())
	require.NoError(t, err)

	assert.True(t, res.Degraded)
	assert.JSONEq(t, `{"error":"context deadline exceeded","receiptEmail":"anna@example.com"}`, string(res.GatewayPayload))
}

func TestDirectChargeGateway_Resolve(t *testing.T) {
	stuck := func() *domain.Payment {
		return &domain.Payment{
			ID:               9,
			BookingID:        42,
			Amount:           decimal.RequireFromString("1000.00"),
			CommissionAmount: decimal.RequireFromString("50.00"),
			Method:           domain.PaymentMethodDirect,
			Status:           domain.PaymentStatusPending,
			TransactionID:    "7d3f6c1e-2b7a-4a53-9a8e-5f0c2d1b9e44",
			GatewayPayload:   []byte(`{"error":"context deadline exceeded","receiptEmail":"anna@example.com"}`),
		}
	}

	tests := []struct {
		name        string
		result      *ChargeResult
		err         error
		wantVerdict Verdict
		wantStatus  domain.PaymentStatus
	}{
		{"original charge succeeded", &ChargeResult{Reference: "pi_123", Succeeded: true}, nil, VerdictAccepted, domain.PaymentStatusCompleted},
		{"original charge declined", &ChargeResult{Reference: "pi_124", DeclineReason: "card_declined"}, nil, VerdictAccepted, domain.PaymentStatusFailed},
		{"processor still unavailable", nil, errors.New("connection reset"), VerdictIgnored, domain.PaymentStatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			charger := &mockCharger{}
			charger.On("Charge", mock.Anything, mock.MatchedBy(func(req ChargeRequest) bool {
				// повтор обязан совпасть с первым запросом
				return req.IdempotencyKey == "7d3f6c1e-2b7a-4a53-9a8e-5f0c2d1b9e44" &&
					req.Amount.Equal(decimal.RequireFromString("1000")) &&
					req.CustomerEmail == "anna@example.com" &&
					req.Description == "Booking #42" &&
					req.Metadata["commission"] == "50.00" &&
					req.Metadata["booking_id"] == "42"
			})).Return(tt.result, tt.err)

			g := NewDirectChargeGateway(charger, time.Second, nopLogger{})
			out, err := g.Resolve(context.Background(), stuck())
			require.NoError(t, err)

			assert.Equal(t, tt.wantVerdict, out.Verdict)
			assert.Equal(t, tt.wantStatus, out.NewStatus)
			charger.AssertExpectations(t)
		})
	}

	t.Run("settled payment is not charged again", func(t *testing.T) {
		charger := &mockCharger{}
		g := NewDirectChargeGateway(charger, time.Second, nopLogger{})

		p := stuck()
		p.Status = domain.PaymentStatusCompleted
		out, err := g.Resolve(context.Background(), p)
		require.NoError(t, err)

		assert.Equal(t, VerdictIgnored, out.Verdict)
		charger.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)
	})
}

func TestAcceptsCallbacks(t *testing.T) {
	redirect, _ := newRedirect(t)

	assert.True(t, redirect.AcceptsCallbacks())
	assert.False(t, NewCashGateway(nopLogger{}).AcceptsCallbacks())
	assert.False(t, NewDirectChargeGateway(&mockCharger{}, 0, nopLogger{}).AcceptsCallbacks())

	var _ Resolver = (*DirectChargeGateway)(nil)
}

func TestRegistry(t *testing.T) {
	g, _ := newRedirect(t)
	r := NewRegistry(g, NewCashGateway(nopLogger{}))

	a, err := r.Get(domain.PaymentMethodCash)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentMethodCash, a.Method())

	_, err = r.Get(domain.PaymentMethodDirect)
	assert.ErrorIs(t, err, ErrUnsupportedMethod)
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.Equal(t, []domain.PaymentMethod{domain.PaymentMethodCash, domain.PaymentMethodRedirect}, r.Methods())
}
