package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/m04kA/SMC-SettlementService/internal/domain"
	bookingRepo "github.com/m04kA/SMC-SettlementService/internal/infra/storage/booking"
	commissionRepo "github.com/m04kA/SMC-SettlementService/internal/infra/storage/commission"
	paymentRepo "github.com/m04kA/SMC-SettlementService/internal/infra/storage/payment"
	"github.com/m04kA/SMC-SettlementService/internal/service/gateway"
	"github.com/shopspring/decimal"
)

// Service журнал платежей: владеет попытками оплаты и их переходами
//
// Переход статуса платежа всегда выполняется одной транзакцией:
// conditional update платежа, статус записи комиссии, событие outbox и хук подтверждения бронирования.
// Вызов внешнего шлюза выполняется вне транзакции.
type Service struct {
	paymentRepo    PaymentRepository
	commissionRepo CommissionRepository
	bookingRepo    BookingReader
	outbox         OutboxWriter
	registry       AdapterRegistry
	calculator     CommissionCalculator
	txManager      TransactionManager
	metrics        Metrics
	logger         Logger
	newID          func() string
	now            func() time.Time
}

// NewService создает новый экземпляр журнала платежей
func NewService(
	paymentRepo PaymentRepository,
	commissionRepo CommissionRepository,
	bookingRepo BookingReader,
	outbox OutboxWriter,
	registry AdapterRegistry,
	calculator CommissionCalculator,
	txManager TransactionManager,
	metrics Metrics,
	logger Logger,
) *Service {
	return &Service{
		paymentRepo:    paymentRepo,
		commissionRepo: commissionRepo,
		bookingRepo:    bookingRepo,
		outbox:         outbox,
		registry:       registry,
		calculator:     calculator,
		txManager:      txManager,
		metrics:        metrics,
		logger:         logger,
		newID:          uuid.NewString,
		now:            time.Now,
	}
}

// Create открывает попытку оплаты и запускает её в шлюзе (Open, затем Start)
func (s *Service) Create(ctx context.Context, req *CreateRequest, hook SettlementHook) (*CreateResult, error) {
	attempt, err := s.Open(ctx, req, hook)
	if err != nil {
		return nil, err
	}
	return s.Start(ctx, attempt, hook)
}

// Open в транзакции блокирует бронирование, проверяет его и записывает платёж с комиссией
// Для наличных (pending_cash) здесь же вызывается hook.
// Внутри внешней транзакции запись фиксируется вместе с ней.
func (s *Service) Open(ctx context.Context, req *CreateRequest, hook SettlementHook) (*Attempt, error) {
	s.logger.Info("Open: booking=%d, method=%s, amount=%s", req.BookingID, req.Method, req.Amount.String())

	if !req.Amount.IsPositive() {
		return nil, invalidPaymentData("amount must be positive")
	}

	adapter, err := s.registry.Get(req.Method)
	if err != nil {
		s.logger.Warn("Open: %v", err)
		return nil, err
	}

	payment, booking, err := s.open(ctx, req, adapter, hook)
	if err != nil {
		return nil, err
	}

	return &Attempt{Payment: payment, Booking: booking, Customer: req.Customer}, nil
}

// Start запускает открытую попытку в шлюзе, вызывается вне транзакции
// Если шлюз сразу изменил статус, переход применяется conditional update.
func (s *Service) Start(ctx context.Context, attempt *Attempt, hook SettlementHook) (*CreateResult, error) {
	payment := attempt.Payment

	adapter, err := s.registry.Get(payment.Method)
	if err != nil {
		return nil, err
	}

	result, err := adapter.Initiate(ctx, gateway.InitiateRequest{
		Booking:       attempt.Booking,
		TransactionID: payment.TransactionID,
		Amount:        payment.Amount,
		Commission:    payment.CommissionAmount,
		Customer:      attempt.Customer,
	})
	if err != nil {
		// Шлюз отказал до какого-либо списания: освобождаем слот оплаты
		s.logger.Error("Start: initiate failed for transaction=%s: %v", payment.TransactionID, err)
		if _, failErr := s.transition(ctx, payment, domain.PaymentStatusFailed, nil, nil); failErr != nil {
			s.logger.Error("Start: failed to mark transaction=%s as failed: %v", payment.TransactionID, failErr)
		}
		return nil, err
	}

	if result.Status != payment.Status || len(result.GatewayPayload) > 0 {
		updated, err := s.transition(ctx, payment, result.Status, result.GatewayPayload, hook)
		switch {
		case errors.Is(err, ErrConcurrentUpdate):
			// Обратный вызов успел раньше: отдаём актуальное состояние
			latest, getErr := s.GetByTransactionID(ctx, payment.TransactionID)
			if getErr != nil {
				return nil, getErr
			}
			updated = latest
		case err != nil:
			return nil, err
		}
		payment = updated
	}

	if result.Degraded {
		s.logger.Warn("Start: transaction=%s left %s, gateway degraded: %s", payment.TransactionID, payment.Status, result.DegradedReason)
	}

	s.logger.Info("Start: transaction=%s for booking=%d is %s", payment.TransactionID, payment.BookingID, payment.Status)

	return &CreateResult{
		Payment:        payment,
		RedirectTarget: result.RedirectTarget,
		Degraded:       result.Degraded,
	}, nil
}

// open создает платёж и запись комиссии в одной транзакции
func (s *Service) open(ctx context.Context, req *CreateRequest, adapter gateway.Adapter, hook SettlementHook) (*domain.Payment, *domain.Booking, error) {
	var payment *domain.Payment
	var booking *domain.Booking

	err := s.txManager.Do(ctx, func(txCtx context.Context) error {
		b, err := s.bookingRepo.GetByIDForUpdate(txCtx, req.BookingID)
		if errors.Is(err, bookingRepo.ErrBookingNotFound) {
			return invalidPaymentData("booking %d does not exist", req.BookingID)
		}
		if err != nil {
			return s.internal("Create", fmt.Errorf("get booking: %w", err))
		}

		if b.Status != domain.BookingStatusPending {
			return invalidPaymentData("booking %d is %s, payment requires a pending booking", b.ID, b.Status)
		}
		if !req.Amount.Equal(b.TotalAmount) {
			return invalidPaymentData("amount %s does not match booking total %s",
				req.Amount.StringFixed(2), b.TotalAmount.StringFixed(2))
		}

		commission, err := s.calculator.Commission(req.Amount)
		if err != nil {
			return domain.WrapError(domain.ErrValidation, err, "amount is invalid")
		}

		p, err := s.paymentRepo.Create(txCtx, &domain.Payment{
			BookingID:        b.ID,
			Amount:           req.Amount,
			CommissionAmount: commission,
			Method:           req.Method,
			Status:           adapter.InitialStatus(),
			TransactionID:    s.newID(),
		})
		if errors.Is(err, paymentRepo.ErrOpenPaymentExists) {
			s.logger.Warn("Create: booking=%d already has an open payment", b.ID)
			return domain.WrapError(domain.ErrPreconditionFailed, ErrOpenPaymentExists,
				"booking %d already has an open payment attempt", b.ID)
		}
		if err != nil {
			return s.internal("Create", fmt.Errorf("insert payment: %w", err))
		}

		if _, err := s.commissionRepo.Create(txCtx, s.commissionRecord(p, b)); err != nil {
			return s.internal("Create", fmt.Errorf("insert commission record: %w", err))
		}

		if p.Status.IsSettled() && hook != nil {
			if err := hook(txCtx, p); err != nil {
				return err
			}
		}

		payment, booking = p, b
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.metrics.RecordPaymentTransition(string(payment.Method), "", string(payment.Status))
	return payment, booking, nil
}

// ApplyCallback применяет обратный вызов шлюза
// Повторная доставка того же вызова не меняет состояние и не повторяет побочные эффекты
func (s *Service) ApplyCallback(ctx context.Context, fields map[string]string, hook SettlementHook) (*CallbackResult, error) {
	cb := gateway.NewCallback(fields)

	transactionID := cb.TransactionID()
	if transactionID == "" {
		return nil, domain.WrapError(domain.ErrValidation, ErrMissingCorrelation, "callback has no %s", domain.CallbackFieldTransactionID)
	}

	payment, err := s.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	adapter, err := s.registry.Get(payment.Method)
	if err != nil {
		return nil, err
	}
	if !adapter.AcceptsCallbacks() {
		s.logger.Warn("SECURITY: ApplyCallback - callback for %s transaction=%s refused", payment.Method, transactionID)
		return nil, domain.WrapError(domain.ErrSignatureRejected, ErrCallbackNotAccepted,
			"%s payments are not settled by gateway callbacks", payment.Method)
	}

	return s.reconcile(ctx, payment, cb, hook)
}

// ConfirmCash внутренний сигнал "услуга оказана": pending_cash -> completed
// Возвращает nil, если у бронирования нет открытой оплаты наличными
func (s *Service) ConfirmCash(ctx context.Context, bookingID int64, hook SettlementHook) (*domain.Payment, error) {
	payment, err := s.paymentRepo.GetOpenByBookingID(ctx, bookingID)
	if errors.Is(err, paymentRepo.ErrPaymentNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.internal("ConfirmCash", err)
	}
	if payment.Method != domain.PaymentMethodCash {
		return nil, nil
	}

	res, err := s.reconcile(ctx, payment, gateway.NewCallback(map[string]string{
		domain.CallbackFieldTransactionID: payment.TransactionID,
		domain.CallbackFieldEvent:         domain.EventServiceRendered,
	}), hook)
	if err != nil {
		return nil, err
	}
	return res.Payment, nil
}

// VoidOpenCash переводит открытую оплату наличными в failed при отмене бронирования
// Возвращает nil, если отменять нечего
func (s *Service) VoidOpenCash(ctx context.Context, bookingID int64) (*domain.Payment, error) {
	payment, err := s.paymentRepo.GetOpenByBookingID(ctx, bookingID)
	if errors.Is(err, paymentRepo.ErrPaymentNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.internal("VoidOpenCash", err)
	}
	if payment.Method != domain.PaymentMethodCash || payment.Status != domain.PaymentStatusPendingCash {
		return nil, nil
	}

	updated, err := s.transition(ctx, payment, domain.PaymentStatusFailed, nil, nil)
	if err != nil {
		return nil, err
	}

	s.logger.Info("VoidOpenCash: cash transaction=%s for booking=%d voided", payment.TransactionID, bookingID)
	return updated, nil
}

// ListByBooking все попытки оплаты бронирования
func (s *Service) ListByBooking(ctx context.Context, bookingID int64) ([]*domain.Payment, error) {
	payments, err := s.paymentRepo.ListByBookingID(ctx, bookingID)
	if err != nil {
		return nil, s.internal("ListByBooking", err)
	}
	return payments, nil
}

// GetByTransactionID получает платёж по идентификатору транзакции
func (s *Service) GetByTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error) {
	payment, err := s.paymentRepo.GetByTransactionID(ctx, transactionID)
	if errors.Is(err, paymentRepo.ErrPaymentNotFound) {
		s.logger.Warn("GetByTransactionID: transaction=%s not found", transactionID)
		return nil, domain.WrapError(domain.ErrNotFound, ErrPaymentNotFound, "payment %s not found", transactionID)
	}
	if err != nil {
		return nil, s.internal("GetByTransactionID", err)
	}
	return payment, nil
}

// RepairCommissions создает недостающие записи комиссии и выравнивает их статус по платежам
func (s *Service) RepairCommissions(ctx context.Context, limit uint64) (int, error) {
	payments, err := s.paymentRepo.ListSettledWithCommissionDrift(ctx, limit)
	if err != nil {
		return 0, s.internal("RepairCommissions", err)
	}

	repaired := 0
	for _, p := range payments {
		rec := &domain.CommissionRecord{
			PaymentID:         p.ID,
			BookingID:         p.BookingID,
			Amount:            p.CommissionAmount,
			PercentageApplied: appliedRate(p),
			Status:            p.Status,
		}
		if b, err := s.bookingRepo.GetByIDForUpdate(ctx, p.BookingID); err == nil {
			rec.BusinessID = b.BusinessID
		}

		if _, err := s.commissionRepo.Upsert(ctx, rec); err != nil {
			s.logger.Error("RepairCommissions: failed to repair commission for transaction=%s: %v", p.TransactionID, err)
			continue
		}
		s.logger.Warn("RepairCommissions: repaired commission record for transaction=%s status=%s", p.TransactionID, p.Status)
		repaired++
	}

	return repaired, nil
}

// ResolveStale выясняет исход pending платежей старше olderThan
// Шлюзы с Resolver (прямое списание) повторяют запрос с тем же ключом идемпотентности,
// исход применяется обычным переходом. Остальные ждут обратного вызова и попадают в Unresolved.
func (s *Service) ResolveStale(ctx context.Context, olderThan time.Duration, limit uint64, hook SettlementHook) (*ResolveResult, error) {
	stale, err := s.paymentRepo.ListStalePending(ctx, s.now().Add(-olderThan), limit)
	if err != nil {
		return nil, s.internal("ResolveStale", err)
	}

	var result ResolveResult
	for _, p := range stale {
		adapter, err := s.registry.Get(p.Method)
		if err != nil {
			s.logger.Error("ResolveStale: transaction=%s: %v", p.TransactionID, err)
			result.Unresolved++
			continue
		}

		resolver, ok := adapter.(gateway.Resolver)
		if !ok {
			s.logger.Warn("ResolveStale: %s transaction=%s pending since %s, awaiting callback or manual review",
				p.Method, p.TransactionID, p.CreatedAt.Format(time.RFC3339))
			result.Unresolved++
			continue
		}

		outcome, err := resolver.Resolve(ctx, p)
		if err != nil {
			s.logger.Error("ResolveStale: failed to resolve transaction=%s: %v", p.TransactionID, err)
			result.Unresolved++
			continue
		}
		if !outcome.Changes(p.Status) {
			result.Unresolved++
			continue
		}

		_, err = s.transition(ctx, p, outcome.NewStatus, outcome.GatewayPayload, hook)
		switch {
		case errors.Is(err, ErrConcurrentUpdate):
			s.logger.Info("ResolveStale: transaction=%s moved concurrently", p.TransactionID)
		case err != nil:
			s.logger.Error("ResolveStale: failed to apply %s to transaction=%s: %v", outcome.NewStatus, p.TransactionID, err)
			result.Unresolved++
		default:
			s.logger.Warn("ResolveStale: transaction=%s resolved as %s", p.TransactionID, outcome.NewStatus)
			result.Resolved++
		}
	}

	return &result, nil
}

// reconcile сверка через шлюз и условный переход
// Порядок: проверка подлинности, затем повторная доставка, затем conditional update
func (s *Service) reconcile(ctx context.Context, payment *domain.Payment, cb gateway.Callback, hook SettlementHook) (*CallbackResult, error) {
	adapter, err := s.registry.Get(payment.Method)
	if err != nil {
		return nil, err
	}

	outcome, err := adapter.Reconcile(ctx, payment, cb)
	if err != nil {
		return nil, err
	}

	if outcome.Verdict == gateway.VerdictRejected {
		return nil, domain.NewError(domain.ErrSignatureRejected,
			"callback for transaction %s rejected: %s", payment.TransactionID, outcome.Reason)
	}

	if payment.Status.IsTerminal() {
		s.logger.Info("reconcile: transaction=%s already %s, replay ignored", payment.TransactionID, payment.Status)
		return &CallbackResult{Payment: payment, Verdict: gateway.VerdictIgnored, Reason: "already settled", Replayed: true}, nil
	}

	if !outcome.Changes(payment.Status) {
		s.logger.Info("reconcile: transaction=%s ignored: %s", payment.TransactionID, outcome.Reason)
		return &CallbackResult{Payment: payment, Verdict: gateway.VerdictIgnored, Reason: outcome.Reason}, nil
	}

	updated, err := s.transition(ctx, payment, outcome.NewStatus, outcome.GatewayPayload, hook)
	if errors.Is(err, ErrConcurrentUpdate) {
		// Конкурентная доставка того же вызова уже применила переход
		latest, getErr := s.GetByTransactionID(ctx, payment.TransactionID)
		if getErr != nil {
			return nil, getErr
		}
		if latest.Status == outcome.NewStatus || latest.Status.IsTerminal() {
			s.logger.Info("reconcile: transaction=%s moved concurrently to %s, replay ignored", payment.TransactionID, latest.Status)
			return &CallbackResult{Payment: latest, Verdict: gateway.VerdictIgnored, Reason: "applied concurrently", Replayed: true}, nil
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	return &CallbackResult{Payment: updated, Verdict: gateway.VerdictAccepted}, nil
}

// transition conditional update платежа из текущего статуса в to
// Запись комиссии, событие и хук выполняются в той же транзакции
func (s *Service) transition(
	ctx context.Context,
	payment *domain.Payment,
	to domain.PaymentStatus,
	payload json.RawMessage,
	hook SettlementHook,
) (*domain.Payment, error) {
	from := payment.Status
	if from != to && !payment.Method.CanTransition(from, to) {
		return nil, domain.NewError(domain.ErrInvalidTransition,
			"payment %s cannot move from %s to %s", payment.TransactionID, from, to)
	}

	var updated *domain.Payment

	err := s.txManager.Do(ctx, func(txCtx context.Context) error {
		p, err := s.paymentRepo.UpdateStatus(txCtx, domain.PaymentTransition{
			TransactionID:  payment.TransactionID,
			From:           from,
			To:             to,
			GatewayPayload: payload,
		})
		if errors.Is(err, paymentRepo.ErrStatusConflict) {
			return domain.WrapError(domain.ErrPreconditionFailed, ErrConcurrentUpdate,
				"payment %s is no longer %s", payment.TransactionID, from)
		}
		if errors.Is(err, paymentRepo.ErrPaymentNotFound) {
			return domain.WrapError(domain.ErrNotFound, ErrPaymentNotFound, "payment %s not found", payment.TransactionID)
		}
		if err != nil {
			return s.internal("transition", fmt.Errorf("update payment: %w", err))
		}

		if from == to {
			updated = p
			return nil
		}

		if err := s.mirrorCommission(txCtx, p); err != nil {
			return err
		}

		if eventType, ok := paymentEvent(to); ok {
			if err := s.enqueue(txCtx, p, eventType); err != nil {
				return err
			}
		}

		if hook != nil && to.IsSettled() && !from.IsSettled() {
			if err := hook(txCtx, p); err != nil {
				return err
			}
		}

		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if from != to {
		s.metrics.RecordPaymentTransition(string(payment.Method), string(from), string(to))
		s.logger.Info("transition: transaction=%s %s -> %s", payment.TransactionID, from, to)
	}

	return updated, nil
}

// mirrorCommission статус записи комиссии повторяет статус платежа
// Отсутствующая запись создаётся здесь же, не полагаясь на джобу сверки
func (s *Service) mirrorCommission(ctx context.Context, p *domain.Payment) error {
	err := s.commissionRepo.UpdateStatus(ctx, p.ID, p.Status)
	if errors.Is(err, commissionRepo.ErrRecordNotFound) {
		rec := &domain.CommissionRecord{
			PaymentID:         p.ID,
			BookingID:         p.BookingID,
			Amount:            p.CommissionAmount,
			PercentageApplied: appliedRate(p),
			Status:            p.Status,
		}
		if b, getErr := s.bookingRepo.GetByIDForUpdate(ctx, p.BookingID); getErr == nil {
			rec.BusinessID = b.BusinessID
		}
		_, err = s.commissionRepo.Upsert(ctx, rec)
	}
	if err != nil {
		return s.internal("transition", fmt.Errorf("mirror commission status: %w", err))
	}
	return nil
}

func (s *Service) commissionRecord(p *domain.Payment, b *domain.Booking) *domain.CommissionRecord {
	return &domain.CommissionRecord{
		PaymentID:         p.ID,
		BookingID:         b.ID,
		BusinessID:        b.BusinessID,
		Amount:            p.CommissionAmount,
		PercentageApplied: s.calculator.Rate(),
		Status:            p.Status,
	}
}

func (s *Service) enqueue(ctx context.Context, p *domain.Payment, eventType domain.EventType) error {
	event, err := domain.NewOutboxEvent(domain.AggregatePayment, p.ID, eventType, domain.NewPaymentEventPayload(p))
	if err != nil {
		return s.internal("enqueue", err)
	}
	if err := s.outbox.Enqueue(ctx, event); err != nil {
		return s.internal("enqueue", fmt.Errorf("store %s: %w", eventType, err))
	}
	return nil
}

func (s *Service) internal(op string, err error) error {
	s.logger.Error("%s: %v", op, err)
	return domain.WrapError(domain.ErrInternal, fmt.Errorf("%w: %s - %v", ErrInternal, op, err), "internal error")
}

func paymentEvent(status domain.PaymentStatus) (domain.EventType, bool) {
	switch status {
	case domain.PaymentStatusCompleted:
		return domain.EventPaymentCompleted, true
	case domain.PaymentStatusFailed:
		return domain.EventPaymentFailed, true
	}
	return "", false
}

// appliedRate фактическая ставка по сумме платежа и комиссии
func appliedRate(p *domain.Payment) decimal.Decimal {
	if !p.Amount.IsPositive() {
		return decimal.Zero
	}
	return p.CommissionAmount.Div(p.Amount).Round(4)
}

func invalidPaymentData(format string, args ...interface{}) error {
	return domain.WrapError(domain.ErrValidation, ErrInvalidPaymentData, format, args...)
}
