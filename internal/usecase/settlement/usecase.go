package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/m04kA/SMC-SettlementService/internal/domain"
	"github.com/m04kA/SMC-SettlementService/internal/integrations/catalogservice"
	bookingModels "github.com/m04kA/SMC-SettlementService/internal/service/bookings/models"
	"github.com/m04kA/SMC-SettlementService/internal/service/payments"
)

// UseCase координатор расчётов: связывает бронирование и его оплату
// Собственного состояния не хранит, всё состояние в БД
type UseCase struct {
	bookings  BookingService
	ledger    PaymentLedger
	pending   PendingBookingLister
	registry  AdapterRegistry
	catalog   CatalogClient
	outbox    OutboxWriter
	txManager TransactionManager
	metrics   Metrics
	logger    Logger

	stalePaymentAge time.Duration
}

// NewUseCase создает новый экземпляр координатора
// catalog может быть nil: проверка услуги в каталоге выключена
func NewUseCase(
	bookings BookingService,
	ledger PaymentLedger,
	pending PendingBookingLister,
	registry AdapterRegistry,
	catalog CatalogClient,
	outbox OutboxWriter,
	txManager TransactionManager,
	metrics Metrics,
	logger Logger,
) *UseCase {
	return &UseCase{
		bookings:  bookings,
		ledger:    ledger,
		pending:   pending,
		registry:  registry,
		catalog:   catalog,
		outbox:    outbox,
		txManager: txManager,
		metrics:   metrics,
		logger:    logger,

		stalePaymentAge: domain.DefaultStalePaymentAge,
	}
}

// WithStalePaymentAge возраст pending платежа, с которого сверка выясняет его исход
func (uc *UseCase) WithStalePaymentAge(d time.Duration) *UseCase {
	uc.stalePaymentAge = d
	return uc
}

// CreateBooking создает бронирование; при указанном способе оплаты сразу открывает оплату
//
// Наличные подтверждают бронирование в транзакции открытия оплаты,
// прямое списание - при успешном ответе процессора, редирект остаётся pending до обратного вызова.
func (uc *UseCase) CreateBooking(ctx context.Context, req *CreateBookingRequest) (*BookingResult, error) {
	uc.logger.Info("CreateBooking: customer=%d, business=%d, service=%d, method=%q",
		req.CustomerID, req.BusinessID, req.ServiceID, req.PaymentMethod)

	if req.PaymentMethod != "" {
		if _, err := uc.registry.Get(req.PaymentMethod); err != nil {
			uc.logger.Warn("CreateBooking: %v", err)
			return nil, err
		}
	}

	if err := uc.checkCatalog(ctx, req.BusinessID, req.ServiceID); err != nil {
		return nil, err
	}

	// Бронирование и запись оплаты фиксируются вместе: при ошибке открытия оплаты бронирования не остаётся
	var booking *domain.Booking
	var attempt *payments.Attempt

	err := uc.txManager.Do(ctx, func(txCtx context.Context) error {
		created, err := uc.bookings.Create(txCtx, req.toBooking())
		if err != nil {
			return err
		}
		booking = created

		if req.PaymentMethod == "" {
			return nil
		}

		attempt, err = uc.ledger.Open(txCtx, &payments.CreateRequest{
			BookingID: created.ID,
			Amount:    created.TotalAmount,
			Method:    req.PaymentMethod,
			Customer:  req.Customer,
		}, uc.confirmOnSettlement)
		if err != nil {
			uc.logger.Error("CreateBooking: payment for new booking not opened, booking rolled back: %v", err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	if attempt == nil {
		return &BookingResult{Booking: booking}, nil
	}

	// Обращение к шлюзу вне транзакции
	res, err := uc.ledger.Start(ctx, attempt, uc.confirmOnSettlement)
	if err != nil {
		uc.logger.Error("CreateBooking: payment for booking id=%d not started: %v", booking.ID, err)
		return nil, err
	}

	// Статус мог измениться в транзакции оплаты
	current, err := uc.bookings.GetByID(ctx, booking.ID)
	if err != nil {
		return nil, err
	}

	return &BookingResult{
		Booking:        current,
		Payment:        res.Payment,
		RedirectTarget: res.RedirectTarget,
		Degraded:       res.Degraded,
	}, nil
}

// InitiatePayment открывает оплату существующего бронирования
func (uc *UseCase) InitiatePayment(ctx context.Context, req *PaymentRequest) (*PaymentResult, error) {
	uc.logger.Info("InitiatePayment: booking=%d, method=%s", req.BookingID, req.Method)

	res, err := uc.ledger.Create(ctx, &payments.CreateRequest{
		BookingID: req.BookingID,
		Amount:    req.Amount,
		Method:    req.Method,
		Customer:  req.Customer,
	}, uc.confirmOnSettlement)
	if err != nil {
		return nil, err
	}

	return &PaymentResult{
		Payment:        res.Payment,
		RedirectTarget: res.RedirectTarget,
		Degraded:       res.Degraded,
	}, nil
}

// HandleGatewayCallback обрабатывает уведомление шлюза
// Всегда возвращает CallbackAck: исход виден только в логах и метриках
func (uc *UseCase) HandleGatewayCallback(ctx context.Context, fields map[string]string) string {
	transactionID := fields[domain.CallbackFieldTransactionID]

	res, err := uc.ledger.ApplyCallback(ctx, fields, uc.confirmOnSettlement)

	method := "unknown"
	outcome := OutcomeError
	switch {
	case err == nil:
		method = string(res.Payment.Method)
		outcome = string(res.Verdict)
		uc.logger.Info("HandleGatewayCallback: transaction=%s outcome=%s status=%s replayed=%t",
			transactionID, outcome, res.Payment.Status, res.Replayed)
	case errors.Is(err, domain.ErrSignatureRejected):
		outcome = OutcomeRejected
		uc.logger.Warn("SECURITY: HandleGatewayCallback - rejected callback for transaction=%s: %v", transactionID, err)
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrNotFound):
		outcome = OutcomeRejected
		uc.logger.Warn("HandleGatewayCallback: callback for transaction=%q not applied: %v", transactionID, err)
	default:
		// Платёж остаётся pending, шлюз доставит уведомление повторно или его поправит сверка
		uc.logger.Error("HandleGatewayCallback: failed to apply callback for transaction=%s: %v", transactionID, err)
	}

	uc.metrics.RecordCallbackOutcome(method, outcome)
	return CallbackAck
}

// GetBooking бронирование с попытками оплаты
func (uc *UseCase) GetBooking(ctx context.Context, id int64) (*BookingDetails, error) {
	booking, err := uc.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	list, err := uc.ledger.ListByBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	return &BookingDetails{Booking: booking, Payments: list}, nil
}

// CancelBooking отменяет бронирование и аннулирует открытую оплату наличными в одной транзакции
func (uc *UseCase) CancelBooking(ctx context.Context, id int64, req *bookingModels.CancelBookingRequest) (*BookingDetails, error) {
	var details BookingDetails

	err := uc.txManager.Do(ctx, func(txCtx context.Context) error {
		booking, err := uc.bookings.Cancel(txCtx, id, req)
		if err != nil {
			return err
		}

		if _, err := uc.ledger.VoidOpenCash(txCtx, id); err != nil {
			return err
		}

		details.Booking = booking
		return nil
	})
	if err != nil {
		return nil, err
	}

	details.Payments, err = uc.ledger.ListByBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	return &details, nil
}

// CompleteBooking сигнал "услуга оказана": confirmed -> completed, наличные pending_cash -> completed
func (uc *UseCase) CompleteBooking(ctx context.Context, id int64) (*BookingDetails, error) {
	var details BookingDetails

	err := uc.txManager.Do(ctx, func(txCtx context.Context) error {
		booking, err := uc.bookings.Complete(txCtx, id)
		if err != nil {
			return err
		}

		if _, err := uc.ledger.ConfirmCash(txCtx, id, nil); err != nil {
			return err
		}

		details.Booking = booking
		return nil
	})
	if err != nil {
		return nil, err
	}

	details.Payments, err = uc.ledger.ListByBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	return &details, nil
}

// ReconcileSettlements чинит расхождения, которые могли остаться после сбоев:
// записи комиссии, отстающие от платежа, pending бронирования с уже settled оплатой
// и зависшие pending платежи (прямое списание повторяется с тем же ключом идемпотентности)
func (uc *UseCase) ReconcileSettlements(ctx context.Context, limit uint64) (*ReconcileReport, error) {
	var report ReconcileReport

	repaired, err := uc.ledger.RepairCommissions(ctx, limit)
	if err != nil {
		return nil, err
	}
	report.CommissionsRepaired = repaired

	stuck, err := uc.pending.ListPendingWithSettledPayment(ctx, limit)
	if err != nil {
		uc.logger.Error("ReconcileSettlements: failed to list pending bookings: %v", err)
		return nil, domain.WrapError(domain.ErrInternal, err, "failed to list pending bookings")
	}

	for _, b := range stuck {
		if _, err := uc.bookings.Confirm(ctx, b.ID); err != nil {
			uc.logger.Error("ReconcileSettlements: failed to confirm booking id=%d: %v", b.ID, err)
			continue
		}
		uc.logger.Warn("ReconcileSettlements: confirmed booking id=%d with settled payment", b.ID)
		report.BookingsConfirmed++
	}

	resolved, err := uc.ledger.ResolveStale(ctx, uc.stalePaymentAge, limit, uc.confirmOnSettlement)
	if err != nil {
		uc.logger.Error("ReconcileSettlements: failed to resolve stale payments: %v", err)
		return nil, err
	}
	report.PaymentsResolved = resolved.Resolved
	report.PaymentsUnresolved = resolved.Unresolved

	uc.metrics.RecordReconciled("commission", report.CommissionsRepaired)
	uc.metrics.RecordReconciled("booking", report.BookingsConfirmed)
	uc.metrics.RecordReconciled("payment", report.PaymentsResolved)

	return &report, nil
}

// confirmOnSettlement хук журнала: платёж стал settled, подтверждаем бронирование
// Выполняется в транзакции перехода платежа
func (uc *UseCase) confirmOnSettlement(ctx context.Context, p *domain.Payment) error {
	_, err := uc.bookings.Confirm(ctx, p.BookingID)
	if err == nil || !errors.Is(err, domain.ErrInvalidTransition) {
		return err
	}

	booking, getErr := uc.bookings.GetByID(ctx, p.BookingID)
	if getErr != nil {
		return getErr
	}

	if !booking.IsCancelled() {
		// Бронирование уже завершено, подтверждать нечего
		uc.logger.Warn("confirmOnSettlement: booking id=%d is %s, transaction=%s settled without confirmation",
			booking.ID, booking.Status, p.TransactionID)
		return nil
	}

	if p.Method == domain.PaymentMethodCash {
		uc.logger.Warn("confirmOnSettlement: cash transaction=%s settled on cancelled booking id=%d", p.TransactionID, booking.ID)
		return nil
	}

	// Деньги пришли на отменённое бронирование: платёж фиксируем, возврат отдаём наружу
	event, err := domain.NewOutboxEvent(domain.AggregatePayment, p.ID, domain.EventRefundRequired, domain.NewPaymentEventPayload(p))
	if err != nil {
		return domain.WrapError(domain.ErrInternal, err, "failed to build refund event")
	}
	if err := uc.outbox.Enqueue(ctx, event); err != nil {
		uc.logger.Error("confirmOnSettlement: failed to store refund.required for transaction=%s: %v", p.TransactionID, err)
		return domain.WrapError(domain.ErrInternal, err, "failed to store refund event")
	}

	uc.logger.Warn("confirmOnSettlement: transaction=%s settled on cancelled booking id=%d, refund required",
		p.TransactionID, booking.ID)
	return nil
}

// checkCatalog проверяет услугу в каталоге; недоступный каталог не блокирует бронирование
func (uc *UseCase) checkCatalog(ctx context.Context, businessID, serviceID int64) error {
	if uc.catalog == nil || businessID <= 0 || serviceID <= 0 {
		return nil
	}

	service, err := uc.catalog.GetServiceWithGracefulDegradation(ctx, businessID, serviceID)
	switch {
	case errors.Is(err, catalogservice.ErrServiceNotFound):
		uc.logger.Warn("CreateBooking: service id=%d not found for business id=%d", serviceID, businessID)
		return domain.WrapError(domain.ErrValidation, ErrServiceNotFound,
			"service %d is not offered by business %d", serviceID, businessID)
	case err != nil:
		uc.logger.Warn("CreateBooking: catalog check skipped: %v", err)
		return nil
	}

	if !service.IsActive {
		uc.logger.Warn("CreateBooking: service id=%d is inactive", serviceID)
		return domain.WrapError(domain.ErrValidation, ErrServiceInactive, "service %d is not available for booking", serviceID)
	}
	return nil
}
