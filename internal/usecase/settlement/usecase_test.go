package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/m04kA/SMC-SettlementService/internal/domain"
	"github.com/m04kA/SMC-SettlementService/internal/integrations/catalogservice"
	"github.com/m04kA/SMC-SettlementService/internal/service/bookings"
	bookingModels "github.com/m04kA/SMC-SettlementService/internal/service/bookings/models"
	"github.com/m04kA/SMC-SettlementService/internal/service/commission"
	"github.com/m04kA/SMC-SettlementService/internal/service/gateway"
	"github.com/m04kA/SMC-SettlementService/internal/service/payments"
	"github.com/m04kA/SMC-SettlementService/internal/testutil"
	"github.com/m04kA/SMC-SettlementService/pkg/signature"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	merchantID = "10000100"
	passphrase = "jt7NOE43FZPn"
)

type fakeCharger struct {
	succeed bool
}

func (c fakeCharger) Charge(_ context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error) {
	if !c.succeed {
		return &gateway.ChargeResult{Reference: "pi_" + req.IdempotencyKey, DeclineReason: "insufficient_funds"}, nil
	}
	return &gateway.ChargeResult{Reference: "pi_" + req.IdempotencyKey, Succeeded: true}, nil
}

// flakyCharger первые failures вызовов не отвечает, затем возвращает исход первого списания
type flakyCharger struct {
	mu       sync.Mutex
	failures int
	keys     []string
}

func (c *flakyCharger) Charge(_ context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.keys = append(c.keys, req.IdempotencyKey)
	if len(c.keys) <= c.failures {
		return nil, context.DeadlineExceeded
	}
	return &gateway.ChargeResult{Reference: "pi_" + req.IdempotencyKey, Succeeded: true}, nil
}

func (c *flakyCharger) idempotencyKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.keys...)
}

// brokenPaymentRepo не может записать платёж
type brokenPaymentRepo struct {
	*testutil.PaymentRepository
}

func (brokenPaymentRepo) Create(context.Context, *domain.Payment) (*domain.Payment, error) {
	return nil, errors.New("connection reset by peer")
}

type fakeCatalog struct {
	services map[int64]*catalogservice.Service
	down     bool
}

func (c *fakeCatalog) GetServiceWithGracefulDegradation(_ context.Context, businessID, serviceID int64) (*catalogservice.Service, error) {
	if c.down {
		return nil, fmt.Errorf("%w: connection refused", catalogservice.ErrServiceDegraded)
	}
	s, ok := c.services[serviceID]
	if !ok || s.BusinessID != businessID {
		return nil, catalogservice.ErrServiceNotFound
	}
	return s, nil
}

type env struct {
	uc       *UseCase
	store    *testutil.Store
	verifier *signature.Verifier
	metrics  *testutil.TransitionRecorder
}

// envConfig подмены зависимостей окружения; нулевые значения - рабочие реализации
type envConfig struct {
	catalog      CatalogClient
	charger      gateway.Charger
	wrapPayments func(*testutil.PaymentRepository) payments.PaymentRepository
}

func newEnv(t *testing.T, catalog CatalogClient) *env {
	return newEnvWith(t, envConfig{catalog: catalog})
}

func newEnvWith(t *testing.T, cfg envConfig) *env {
	t.Helper()

	verifier, err := signature.New(signature.MD5)
	require.NoError(t, err)

	redirect, err := gateway.NewRedirectGateway(gateway.RedirectConfig{
		MerchantID:  merchantID,
		MerchantKey: "46f0cd694581a",
		Passphrase:  passphrase,
		ProcessURL:  "https://sandbox.gateway.test/eng/process",
	}, verifier, testutil.NopLogger{})
	require.NoError(t, err)

	charger := cfg.charger
	if charger == nil {
		charger = fakeCharger{succeed: true}
	}

	registry := gateway.NewRegistry(
		redirect,
		gateway.NewCashGateway(testutil.NopLogger{}),
		gateway.NewDirectChargeGateway(charger, time.Second, testutil.NopLogger{}),
	)

	calc, err := commission.NewCalculator(domain.DefaultCommissionRate)
	require.NoError(t, err)

	store := testutil.NewStore()
	bookingRepo := testutil.NewBookingRepository(store)
	memPayments := testutil.NewPaymentRepository(store)
	outbox := testutil.NewOutboxRepository(store)
	txManager := testutil.NewTxManager(store)
	recorder := &testutil.TransitionRecorder{}

	var paymentRepo payments.PaymentRepository = memPayments
	if cfg.wrapPayments != nil {
		paymentRepo = cfg.wrapPayments(memPayments)
	}

	bookingSvc := bookings.NewService(bookingRepo, memPayments, outbox, calc, txManager, testutil.NopLogger{})
	ledger := payments.NewService(
		paymentRepo,
		testutil.NewCommissionRepository(store),
		bookingRepo,
		outbox,
		registry,
		calc,
		txManager,
		recorder,
		testutil.NopLogger{},
	)

	uc := NewUseCase(bookingSvc, ledger, bookingRepo, registry, cfg.catalog, outbox, txManager, recorder, testutil.NopLogger{})

	return &env{uc: uc, store: store, verifier: verifier, metrics: recorder}
}

func bookingRequest(amount string, method domain.PaymentMethod) *CreateBookingRequest {
	return &CreateBookingRequest{
		CustomerID:    11,
		BusinessID:    22,
		ServiceID:     33,
		ScheduledAt:   time.Now().Add(72 * time.Hour),
		TotalAmount:   decimal.RequireFromString(amount),
		PaymentMethod: method,
		Customer:      domain.CustomerInfo{FirstName: "Anna", LastName: "Smirnova", Email: "anna@example.com"},
	}
}

func (e *env) callback(p *domain.Payment, status string) map[string]string {
	fields := map[string]string{
		domain.CallbackFieldTransactionID: p.TransactionID,
		domain.CallbackFieldStatus:        status,
		domain.CallbackFieldAmountGross:   p.Amount.StringFixed(2),
		domain.CallbackFieldMerchantID:    merchantID,
		domain.CallbackFieldGatewayRef:    "1089250",
	}
	fields[signature.FieldName] = e.verifier.Sign(fields, passphrase)
	return fields
}

func (e *env) bookingStatus(t *testing.T, id int64) domain.BookingStatus {
	t.Helper()
	b, ok := e.store.Booking(id)
	require.True(t, ok)
	return b.Status
}

func TestCreateBooking_Cash(t *testing.T) {
	e := newEnv(t, nil)

	res, err := e.uc.CreateBooking(context.Background(), bookingRequest("1000.00", domain.PaymentMethodCash))
	require.NoError(t, err)

	assert.Equal(t, domain.BookingStatusConfirmed, res.Booking.Status)
	assert.Equal(t, "50.00", res.Booking.CommissionAmount.StringFixed(2))
	require.NotNil(t, res.Payment)
	assert.Equal(t, domain.PaymentStatusPendingCash, res.Payment.Status)
	assert.Equal(t, "50.00", res.Payment.CommissionAmount.StringFixed(2))
	assert.Empty(t, res.RedirectTarget)

	rec, ok := e.store.Commission(res.Payment.ID)
	require.True(t, ok)
	assert.Equal(t, "50.00", rec.Amount.StringFixed(2))
	assert.Equal(t, domain.PaymentStatusPendingCash, rec.Status)

	assert.Equal(t, 1, e.store.CountEvents(domain.EventBookingConfirmed))
}

func TestCreateBooking_WithoutPayment(t *testing.T) {
	e := newEnv(t, nil)

	res, err := e.uc.CreateBooking(context.Background(), bookingRequest("70.00", ""))
	require.NoError(t, err)

	assert.Equal(t, domain.BookingStatusPending, res.Booking.Status)
	assert.Equal(t, "3.50", res.Booking.CommissionAmount.StringFixed(2))
	assert.Nil(t, res.Payment)
}

func TestCreateBooking_DirectCharge(t *testing.T) {
	e := newEnv(t, nil)

	res, err := e.uc.CreateBooking(context.Background(), bookingRequest("120.00", domain.PaymentMethodDirect))
	require.NoError(t, err)

	assert.Equal(t, domain.BookingStatusConfirmed, res.Booking.Status)
	assert.Equal(t, domain.PaymentStatusCompleted, res.Payment.Status)
	assert.False(t, res.Degraded)
	assert.Equal(t, 1, e.store.CountEvents(domain.EventPaymentCompleted))
}

func TestCreateBooking_UnknownMethodCreatesNothing(t *testing.T) {
	e := newEnv(t, nil)

	_, err := e.uc.CreateBooking(context.Background(), bookingRequest("100.00", domain.PaymentMethod("crypto")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, ok := e.store.Booking(1)
	assert.False(t, ok)
}

func TestCreateBooking_Catalog(t *testing.T) {
	catalog := &fakeCatalog{services: map[int64]*catalogservice.Service{
		33: {ID: 33, BusinessID: 22, Name: "Haircut", IsActive: true},
		34: {ID: 34, BusinessID: 22, Name: "Retired", IsActive: false},
	}}
	e := newEnv(t, catalog)
	ctx := context.Background()

	_, err := e.uc.CreateBooking(ctx, bookingRequest("100.00", ""))
	require.NoError(t, err)

	req := bookingRequest("100.00", "")
	req.ServiceID = 99
	_, err = e.uc.CreateBooking(ctx, req)
	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.True(t, errors.Is(err, ErrServiceNotFound))

	req = bookingRequest("100.00", "")
	req.ServiceID = 34
	_, err = e.uc.CreateBooking(ctx, req)
	assert.True(t, errors.Is(err, ErrServiceInactive))

	// недоступный каталог не блокирует бронирование
	catalog.down = true
	req = bookingRequest("100.00", "")
	req.ServiceID = 99
	_, err = e.uc.CreateBooking(ctx, req)
	assert.NoError(t, err)
}

func TestRedirectFlow_CallbackAndRedelivery(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	res, err := e.uc.CreateBooking(ctx, bookingRequest("500.00", domain.PaymentMethodRedirect))
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusPending, res.Booking.Status)
	assert.Equal(t, domain.PaymentStatusPending, res.Payment.Status)
	assert.NotEmpty(t, res.RedirectTarget)

	fields := e.callback(res.Payment, domain.GatewayStatusComplete)

	assert.Equal(t, CallbackAck, e.uc.HandleGatewayCallback(ctx, fields))
	assert.Equal(t, domain.BookingStatusConfirmed, e.bookingStatus(t, res.Booking.ID))

	assert.Equal(t, CallbackAck, e.uc.HandleGatewayCallback(ctx, fields))
	assert.Equal(t, domain.BookingStatusConfirmed, e.bookingStatus(t, res.Booking.ID))

	assert.Equal(t, 1, e.store.CountEvents(domain.EventPaymentCompleted))
	assert.Equal(t, 1, e.store.CountEvents(domain.EventBookingConfirmed))
	assert.Equal(t, []string{"redirect_gateway:accepted", "redirect_gateway:ignored"}, e.metrics.CallbackOutcomes())
}

func TestRedirectFlow_ParallelCallbacks(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	res, err := e.uc.CreateBooking(ctx, bookingRequest("500.00", domain.PaymentMethodRedirect))
	require.NoError(t, err)
	fields := e.callback(res.Payment, domain.GatewayStatusComplete)

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, CallbackAck, e.uc.HandleGatewayCallback(ctx, fields))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, e.store.CountEvents(domain.EventPaymentCompleted))
	assert.Equal(t, 1, e.store.CountEvents(domain.EventBookingConfirmed))
	assert.Equal(t, 1, e.metrics.Count("pending->completed"))
	assert.Equal(t, domain.BookingStatusConfirmed, e.bookingStatus(t, res.Booking.ID))
}

func TestHandleGatewayCallback_AlwaysAcks(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	res, err := e.uc.CreateBooking(ctx, bookingRequest("500.00", domain.PaymentMethodRedirect))
	require.NoError(t, err)

	forged := e.callback(res.Payment, domain.GatewayStatusComplete)
	forged[signature.FieldName] = "00000000000000000000000000000000"

	assert.Equal(t, CallbackAck, e.uc.HandleGatewayCallback(ctx, forged))
	assert.Equal(t, CallbackAck, e.uc.HandleGatewayCallback(ctx, map[string]string{}))
	assert.Equal(t, CallbackAck, e.uc.HandleGatewayCallback(ctx, map[string]string{domain.CallbackFieldTransactionID: "unknown"}))

	assert.Equal(t, domain.BookingStatusPending, e.bookingStatus(t, res.Booking.ID))
	assert.Equal(t, 0, e.store.CountEvents(domain.EventPaymentCompleted))
	assert.Equal(t, []string{"unknown:rejected", "unknown:rejected", "unknown:rejected"}, e.metrics.CallbackOutcomes())
}

func TestCancelBooking_RefundRequired(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	res, err := e.uc.CreateBooking(ctx, bookingRequest("500.00", domain.PaymentMethodRedirect))
	require.NoError(t, err)
	e.uc.HandleGatewayCallback(ctx, e.callback(res.Payment, domain.GatewayStatusComplete))

	_, err = e.uc.CancelBooking(ctx, res.Booking.ID, &bookingModels.CancelBookingRequest{CancelledBy: domain.CancelledByCustomer})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRefundRequired))
	assert.Equal(t, domain.BookingStatusConfirmed, e.bookingStatus(t, res.Booking.ID))
}

func TestCancelBooking_VoidsCash(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	res, err := e.uc.CreateBooking(ctx, bookingRequest("1000.00", domain.PaymentMethodCash))
	require.NoError(t, err)

	details, err := e.uc.CancelBooking(ctx, res.Booking.ID, &bookingModels.CancelBookingRequest{
		CancelledBy:        domain.CancelledByBusiness,
		CancellationReason: "closed for holiday",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.BookingStatusCancelled, details.Booking.Status)
	require.Len(t, details.Payments, 1)
	assert.Equal(t, domain.PaymentStatusFailed, details.Payments[0].Status)
	assert.Equal(t, 1, e.store.CountEvents(domain.EventBookingCancelled))
	assert.Equal(t, 1, e.store.CountEvents(domain.EventPaymentFailed))
}

func TestCancelBooking_CallbackAfterCancelRequestsRefund(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	res, err := e.uc.CreateBooking(ctx, bookingRequest("500.00", domain.PaymentMethodRedirect))
	require.NoError(t, err)

	_, err = e.uc.CancelBooking(ctx, res.Booking.ID, &bookingModels.CancelBookingRequest{CancelledBy: domain.CancelledByCustomer})
	require.NoError(t, err)

	assert.Equal(t, CallbackAck, e.uc.HandleGatewayCallback(ctx, e.callback(res.Payment, domain.GatewayStatusComplete)))

	assert.Equal(t, domain.BookingStatusCancelled, e.bookingStatus(t, res.Booking.ID))
	payments := e.store.Payments(res.Booking.ID)
	require.Len(t, payments, 1)
	assert.Equal(t, domain.PaymentStatusCompleted, payments[0].Status)
	assert.Equal(t, 1, e.store.CountEvents(domain.EventRefundRequired))
	assert.Equal(t, 0, e.store.CountEvents(domain.EventBookingConfirmed))
}

func TestCompleteBooking_SettlesCash(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	res, err := e.uc.CreateBooking(ctx, bookingRequest("1000.00", domain.PaymentMethodCash))
	require.NoError(t, err)

	details, err := e.uc.CompleteBooking(ctx, res.Booking.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.BookingStatusCompleted, details.Booking.Status)
	require.Len(t, details.Payments, 1)
	assert.Equal(t, domain.PaymentStatusCompleted, details.Payments[0].Status)

	rec, ok := e.store.Commission(details.Payments[0].ID)
	require.True(t, ok)
	assert.Equal(t, domain.PaymentStatusCompleted, rec.Status)

	_, err = e.uc.CompleteBooking(ctx, res.Booking.ID)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
}

func TestInitiatePayment(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	created, err := e.uc.CreateBooking(ctx, bookingRequest("300.00", ""))
	require.NoError(t, err)

	_, err = e.uc.InitiatePayment(ctx, &PaymentRequest{
		BookingID: created.Booking.ID,
		Amount:    decimal.RequireFromString("299.99"),
		Method:    domain.PaymentMethodRedirect,
	})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	res, err := e.uc.InitiatePayment(ctx, &PaymentRequest{
		BookingID: created.Booking.ID,
		Amount:    decimal.RequireFromString("300.00"),
		Method:    domain.PaymentMethodRedirect,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, res.Payment.Status)
	assert.NotEmpty(t, res.RedirectTarget)

	details, err := e.uc.GetBooking(ctx, created.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusPending, details.Booking.Status)
	assert.Len(t, details.Payments, 1)
}

func TestReconcileSettlements(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	created, err := e.uc.CreateBooking(ctx, bookingRequest("200.00", ""))
	require.NoError(t, err)

	// платёж settled, но бронирование и запись комиссии отстали (сбой между шагами)
	p, err := testutil.NewPaymentRepository(e.store).Create(ctx, &domain.Payment{
		BookingID:        created.Booking.ID,
		Amount:           created.Booking.TotalAmount,
		CommissionAmount: created.Booking.CommissionAmount,
		Method:           domain.PaymentMethodRedirect,
		Status:           domain.PaymentStatusCompleted,
		TransactionID:    "drifted",
	})
	require.NoError(t, err)

	report, err := e.uc.ReconcileSettlements(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, report.CommissionsRepaired)
	assert.Equal(t, 1, report.BookingsConfirmed)

	assert.Equal(t, domain.BookingStatusConfirmed, e.bookingStatus(t, created.Booking.ID))
	rec, ok := e.store.Commission(p.ID)
	require.True(t, ok)
	assert.Equal(t, domain.PaymentStatusCompleted, rec.Status)
	assert.Equal(t, "10.00", rec.Amount.StringFixed(2))

	again, err := e.uc.ReconcileSettlements(ctx, 50)
	require.NoError(t, err)
	assert.Zero(t, again.CommissionsRepaired)
	assert.Zero(t, again.BookingsConfirmed)
	assert.Equal(t, map[string]int{"commission": 1, "booking": 1, "payment": 0}, e.metrics.Reconciled)
}

func TestCreateBooking_PaymentOpenFailureLeavesNoBooking(t *testing.T) {
	e := newEnvWith(t, envConfig{
		wrapPayments: func(r *testutil.PaymentRepository) payments.PaymentRepository {
			return brokenPaymentRepo{r}
		},
	})
	ctx := context.Background()

	_, err := e.uc.CreateBooking(ctx, bookingRequest("1000.00", domain.PaymentMethodCash))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInternal))

	_, ok := e.store.Booking(1)
	assert.False(t, ok)
	assert.Equal(t, 0, e.store.CountEvents(domain.EventBookingConfirmed))

	// без способа оплаты бронирование создаётся как раньше
	res, err := e.uc.CreateBooking(ctx, bookingRequest("1000.00", ""))
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusPending, res.Booking.Status)
}

func TestHandleGatewayCallback_CashIsNotSettledByCallback(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	res, err := e.uc.CreateBooking(ctx, bookingRequest("1000.00", domain.PaymentMethodCash))
	require.NoError(t, err)

	fields := map[string]string{
		domain.CallbackFieldTransactionID: res.Payment.TransactionID,
		domain.CallbackFieldEvent:         domain.EventServiceRendered,
	}
	assert.Equal(t, CallbackAck, e.uc.HandleGatewayCallback(ctx, fields))

	list := e.store.Payments(res.Booking.ID)
	require.Len(t, list, 1)
	assert.Equal(t, domain.PaymentStatusPendingCash, list[0].Status)

	rec, ok := e.store.Commission(list[0].ID)
	require.True(t, ok)
	assert.Equal(t, domain.PaymentStatusPendingCash, rec.Status)
	assert.Equal(t, 0, e.store.CountEvents(domain.EventPaymentCompleted))
	assert.Equal(t, []string{"unknown:rejected"}, e.metrics.CallbackOutcomes())

	// внутренний сигнал "услуга оказана" по-прежнему проводит оплату
	details, err := e.uc.CompleteBooking(ctx, res.Booking.ID)
	require.NoError(t, err)
	require.Len(t, details.Payments, 1)
	assert.Equal(t, domain.PaymentStatusCompleted, details.Payments[0].Status)
	assert.Equal(t, 1, e.store.CountEvents(domain.EventPaymentCompleted))
}

func TestReconcileSettlements_ResolvesDegradedDirectCharge(t *testing.T) {
	charger := &flakyCharger{failures: 1}
	e := newEnvWith(t, envConfig{charger: charger})
	e.uc.WithStalePaymentAge(0)
	ctx := context.Background()

	res, err := e.uc.CreateBooking(ctx, bookingRequest("120.00", domain.PaymentMethodDirect))
	require.NoError(t, err)
	require.True(t, res.Degraded)
	assert.Equal(t, domain.PaymentStatusPending, res.Payment.Status)
	assert.Equal(t, domain.BookingStatusPending, res.Booking.Status)

	// слот оплаты занят зависшей попыткой
	_, err = e.uc.InitiatePayment(ctx, &PaymentRequest{
		BookingID: res.Booking.ID,
		Amount:    res.Booking.TotalAmount,
		Method:    domain.PaymentMethodDirect,
	})
	assert.True(t, errors.Is(err, domain.ErrPreconditionFailed))

	report, err := e.uc.ReconcileSettlements(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, report.PaymentsResolved)
	assert.Zero(t, report.PaymentsUnresolved)

	list := e.store.Payments(res.Booking.ID)
	require.Len(t, list, 1)
	assert.Equal(t, domain.PaymentStatusCompleted, list[0].Status)
	assert.Equal(t, domain.BookingStatusConfirmed, e.bookingStatus(t, res.Booking.ID))
	assert.Equal(t, 1, e.store.CountEvents(domain.EventPaymentCompleted))
	assert.Equal(t, 1, e.store.CountEvents(domain.EventBookingConfirmed))

	// повтор с тем же ключом идемпотентности
	tx := res.Payment.TransactionID
	assert.Equal(t, []string{tx, tx}, charger.idempotencyKeys())

	again, err := e.uc.ReconcileSettlements(ctx, 50)
	require.NoError(t, err)
	assert.Zero(t, again.PaymentsResolved)
	assert.Len(t, charger.idempotencyKeys(), 2)
}

func TestReconcileSettlements_AbandonedRedirectReported(t *testing.T) {
	e := newEnv(t, nil)
	e.uc.WithStalePaymentAge(0)
	ctx := context.Background()

	res, err := e.uc.CreateBooking(ctx, bookingRequest("500.00", domain.PaymentMethodRedirect))
	require.NoError(t, err)

	report, err := e.uc.ReconcileSettlements(ctx, 50)
	require.NoError(t, err)
	assert.Zero(t, report.PaymentsResolved)
	assert.Equal(t, 1, report.PaymentsUnresolved)

	// поздний обратный вызов всё ещё применяется
	assert.Equal(t, CallbackAck, e.uc.HandleGatewayCallback(ctx, e.callback(res.Payment, domain.GatewayStatusComplete)))
	assert.Equal(t, domain.BookingStatusConfirmed, e.bookingStatus(t, res.Booking.ID))
}

func TestCancelBooking_RacesWithConfirmingCallback(t *testing.T) {
	for i := 0; i < 25; i++ {
		e := newEnv(t, nil)
		ctx := context.Background()

		res, err := e.uc.CreateBooking(ctx, bookingRequest("500.00", domain.PaymentMethodRedirect))
		require.NoError(t, err)
		fields := e.callback(res.Payment, domain.GatewayStatusComplete)

		var wg sync.WaitGroup
		var cancelErr error
		start := make(chan struct{})

		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			_, cancelErr = e.uc.CancelBooking(ctx, res.Booking.ID, &bookingModels.CancelBookingRequest{CancelledBy: domain.CancelledByCustomer})
		}()
		go func() {
			defer wg.Done()
			<-start
			e.uc.HandleGatewayCallback(ctx, fields)
		}()
		close(start)
		wg.Wait()

		list := e.store.Payments(res.Booking.ID)
		require.Len(t, list, 1)
		assert.Equal(t, domain.PaymentStatusCompleted, list[0].Status)

		status := e.bookingStatus(t, res.Booking.ID)
		if cancelErr == nil {
			// отмена первой: деньги пришли на отменённое бронирование
			assert.Equal(t, domain.BookingStatusCancelled, status)
			assert.Equal(t, 1, e.store.CountEvents(domain.EventRefundRequired))
			assert.Equal(t, 0, e.store.CountEvents(domain.EventBookingConfirmed))
		} else {
			// оплата первой: отмена требует возврата
			assert.True(t, errors.Is(cancelErr, domain.ErrRefundRequired), "got %v", cancelErr)
			assert.Equal(t, domain.BookingStatusConfirmed, status)
			assert.Equal(t, 0, e.store.CountEvents(domain.EventRefundRequired))
			assert.Equal(t, 1, e.store.CountEvents(domain.EventBookingConfirmed))
		}
		assert.Equal(t, 1, e.store.CountEvents(domain.EventPaymentCompleted))
	}
}
