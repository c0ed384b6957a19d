package bookings

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m04kA/SMC-SettlementService/internal/domain"
	"github.com/m04kA/SMC-SettlementService/internal/service/bookings/models"
	"github.com/m04kA/SMC-SettlementService/internal/service/commission"
	"github.com/m04kA/SMC-SettlementService/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *testutil.Store) {
	t.Helper()

	calc, err := commission.NewCalculator(domain.DefaultCommissionRate)
	require.NoError(t, err)

	store := testutil.NewStore()
	svc := NewService(
		testutil.NewBookingRepository(store),
		testutil.NewPaymentRepository(store),
		testutil.NewOutboxRepository(store),
		calc,
		testutil.NewTxManager(store),
		testutil.NopLogger{},
	).WithTimeProvider(testutil.NewFixedClock(testNow))

	return svc, store
}

func validCreate(amount string) *models.CreateBookingRequest {
	return &models.CreateBookingRequest{
		CustomerID:  10,
		BusinessID:  20,
		ServiceID:   30,
		ScheduledAt: testNow.Add(48 * time.Hour),
		TotalAmount: decimal.RequireFromString(amount),
	}
}

func TestCreate(t *testing.T) {
	svc, store := newTestService(t)

	b, err := svc.Create(context.Background(), validCreate("1000.00"))
	require.NoError(t, err)

	assert.NotZero(t, b.ID)
	assert.Equal(t, domain.BookingStatusPending, b.Status)
	assert.Equal(t, "50.00", b.CommissionAmount.StringFixed(2))
	assert.Equal(t, "1000.00", b.TotalAmount.StringFixed(2))

	stored, ok := store.Booking(b.ID)
	require.True(t, ok)
	assert.Equal(t, domain.BookingStatusPending, stored.Status)
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		name   string
		mutate func(r *models.CreateBookingRequest)
	}{
		{"customer", func(r *models.CreateBookingRequest) { r.CustomerID = 0 }},
		{"business", func(r *models.CreateBookingRequest) { r.BusinessID = -1 }},
		{"service", func(r *models.CreateBookingRequest) { r.ServiceID = 0 }},
		{"scheduled missing", func(r *models.CreateBookingRequest) { r.ScheduledAt = time.Time{} }},
		{"scheduled in past", func(r *models.CreateBookingRequest) { r.ScheduledAt = testNow.Add(-time.Minute) }},
		{"zero amount", func(r *models.CreateBookingRequest) { r.TotalAmount = decimal.Zero }},
		{"negative amount", func(r *models.CreateBookingRequest) { r.TotalAmount = decimal.RequireFromString("-5") }},
		{"sub-cent amount", func(r *models.CreateBookingRequest) { r.TotalAmount = decimal.RequireFromString("10.001") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreate("100.00")
			tt.mutate(req)

			_, err := svc.Create(context.Background(), req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrValidation))
			assert.True(t, errors.Is(err, ErrInvalidInput))
		})
	}
}

func TestGetByID_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetByID(context.Background(), 404)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.True(t, errors.Is(err, ErrBookingNotFound))
}

func TestConfirm(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	b, err := svc.Create(ctx, validCreate("100.00"))
	require.NoError(t, err)

	confirmed, err := svc.Confirm(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, confirmed.Status)

	// повторное подтверждение не ошибка и не порождает событие
	again, err := svc.Confirm(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, again.Status)
	assert.Equal(t, 1, store.CountEvents(domain.EventBookingConfirmed))
}

func TestConfirm_CancelledBookingRejected(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	b, err := svc.Create(ctx, validCreate("100.00"))
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, b.ID, &models.CancelBookingRequest{CancelledBy: domain.CancelledByCustomer})
	require.NoError(t, err)

	_, err = svc.Confirm(ctx, b.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
	assert.Equal(t, 0, store.CountEvents(domain.EventBookingConfirmed))
}

func TestConfirm_Concurrent(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	b, err := svc.Create(ctx, validCreate("100.00"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Confirm(ctx, b.ID); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
	assert.Equal(t, 1, store.CountEvents(domain.EventBookingConfirmed))
}

func TestCancel(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	b, err := svc.Create(ctx, validCreate("100.00"))
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, b.ID, &models.CancelBookingRequest{
		CancelledBy:        domain.CancelledByBusiness,
		CancellationReason: "master is sick",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.BookingStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledBy)
	assert.Equal(t, domain.CancelledByBusiness, *cancelled.CancelledBy)
	require.NotNil(t, cancelled.CancellationReason)
	assert.Equal(t, "master is sick", *cancelled.CancellationReason)
	require.NotNil(t, cancelled.CancelledAt)
	assert.True(t, cancelled.CancelledAt.Equal(testNow))
	assert.Equal(t, 1, store.CountEvents(domain.EventBookingCancelled))

	_, err = svc.Cancel(ctx, b.ID, &models.CancelBookingRequest{CancelledBy: domain.CancelledByCustomer})
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
}

func TestCancel_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	b, err := svc.Create(ctx, validCreate("100.00"))
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, b.ID, &models.CancelBookingRequest{CancelledBy: "admin"})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = svc.Cancel(ctx, b.ID, &models.CancelBookingRequest{
		CancelledBy:        domain.CancelledByCustomer,
		CancellationReason: strings.Repeat("я", domain.MaxCancellationReasonLength+1),
	})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = svc.Cancel(ctx, 999, &models.CancelBookingRequest{CancelledBy: domain.CancelledByCustomer})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestCancel_RefundRequired(t *testing.T) {
	tests := []struct {
		name    string
		method  domain.PaymentMethod
		status  domain.PaymentStatus
		blocked bool
	}{
		{"completed redirect", domain.PaymentMethodRedirect, domain.PaymentStatusCompleted, true},
		{"completed direct", domain.PaymentMethodDirect, domain.PaymentStatusCompleted, true},
		{"completed cash", domain.PaymentMethodCash, domain.PaymentStatusCompleted, false},
		{"pending redirect", domain.PaymentMethodRedirect, domain.PaymentStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService(t)
			ctx := context.Background()

			b, err := svc.Create(ctx, validCreate("100.00"))
			require.NoError(t, err)
			_, err = svc.Confirm(ctx, b.ID)
			require.NoError(t, err)

			_, err = testutil.NewPaymentRepository(store).Create(ctx, &domain.Payment{
				BookingID:     b.ID,
				Amount:        b.TotalAmount,
				Method:        tt.method,
				Status:        tt.status,
				TransactionID: tt.name,
			})
			require.NoError(t, err)

			_, err = svc.Cancel(ctx, b.ID, &models.CancelBookingRequest{CancelledBy: domain.CancelledByCustomer})
			if !tt.blocked {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrRefundRequired))

			stored, _ := store.Booking(b.ID)
			assert.Equal(t, domain.BookingStatusConfirmed, stored.Status)
			assert.Equal(t, 0, store.CountEvents(domain.EventBookingCancelled))
		})
	}
}

func TestComplete(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	b, err := svc.Create(ctx, validCreate("100.00"))
	require.NoError(t, err)

	_, err = svc.Complete(ctx, b.ID)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))

	_, err = svc.Confirm(ctx, b.ID)
	require.NoError(t, err)

	completed, err := svc.Complete(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCompleted, completed.Status)
	assert.Equal(t, 1, store.CountEvents(domain.EventBookingCompleted))

	_, err = svc.Cancel(ctx, b.ID, &models.CancelBookingRequest{CancelledBy: domain.CancelledByCustomer})
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
}

func TestList(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i, customer := range []int64{10, 10, 11} {
		req := validCreate("100.00")
		req.CustomerID = customer
		req.ScheduledAt = testNow.Add(time.Duration(i+1) * time.Hour)
		_, err := svc.Create(ctx, req)
		require.NoError(t, err)
	}

	list, err := svc.List(ctx, domain.BookingFilter{CustomerID: 10})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].ScheduledAt.After(list[1].ScheduledAt), "ближайшие в конце")

	_, err = svc.Confirm(ctx, list[0].ID)
	require.NoError(t, err)

	confirmed, err := svc.List(ctx, domain.BookingFilter{
		BusinessID: 20,
		Statuses:   []domain.BookingStatus{domain.BookingStatusConfirmed},
	})
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	assert.Equal(t, list[0].ID, confirmed[0].ID)

	page, err := svc.List(ctx, domain.BookingFilter{BusinessID: 20, Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestList_Validation(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []domain.BookingFilter{
		{},
		{CustomerID: 10, Statuses: []domain.BookingStatus{"archived"}},
		{CustomerID: 10, Limit: domain.MaxListLimit + 1},
	}

	for _, f := range tests {
		_, err := svc.List(context.Background(), f)
		assert.True(t, errors.Is(err, domain.ErrValidation), "%+v", f)
	}
}
