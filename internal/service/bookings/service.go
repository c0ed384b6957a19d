package bookings

import (
	"context"
	"errors"
	"fmt"

	"github.com/m04kA/SMC-SettlementService/internal/domain"
	bookingRepo "github.com/m04kA/SMC-SettlementService/internal/infra/storage/booking"
	"github.com/m04kA/SMC-SettlementService/internal/service/bookings/models"
)

// Service конечный автомат бронирования
// Каждая запись статуса условная: обновляется только строка в ожидаемом исходном статусе
type Service struct {
	bookingRepo  BookingRepository
	paymentRepo  PaymentReader
	outbox       OutboxWriter
	calculator   CommissionCalculator
	txManager    TransactionManager
	timeProvider TimeProvider
	logger       Logger
}

// NewService создает новый экземпляр сервиса бронирований
func NewService(
	bookingRepo BookingRepository,
	paymentRepo PaymentReader,
	outbox OutboxWriter,
	calculator CommissionCalculator,
	txManager TransactionManager,
	logger Logger,
) *Service {
	return &Service{
		bookingRepo:  bookingRepo,
		paymentRepo:  paymentRepo,
		outbox:       outbox,
		calculator:   calculator,
		txManager:    txManager,
		timeProvider: &RealTimeProvider{},
		logger:       logger,
	}
}

// WithTimeProvider подменяет источник времени (для тестов)
func (s *Service) WithTimeProvider(tp TimeProvider) *Service {
	s.timeProvider = tp
	return s
}

// Create создает бронирование в статусе pending
// Комиссия всегда вычисляется здесь, клиент её не передаёт
func (s *Service) Create(ctx context.Context, req *models.CreateBookingRequest) (*domain.Booking, error) {
	s.logger.Info("Create: customer=%d, business=%d, service=%d, amount=%s",
		req.CustomerID, req.BusinessID, req.ServiceID, req.TotalAmount.String())

	if err := validateCreate(req, s.timeProvider.Now()); err != nil {
		s.logger.Warn("Create: validation failed: %v", err)
		return nil, err
	}

	commission, err := s.calculator.Commission(req.TotalAmount)
	if err != nil {
		s.logger.Warn("Create: commission rejected amount=%s: %v", req.TotalAmount.String(), err)
		return nil, domain.WrapError(domain.ErrValidation, err, "totalAmount is invalid")
	}

	created, err := s.bookingRepo.Create(ctx, req.ToDomain(commission))
	if err != nil {
		s.logger.Error("Create: repository error: %v", err)
		return nil, domain.WrapError(domain.ErrInternal, fmt.Errorf("%w: Create - repository error: %v", ErrInternal, err), "failed to create booking")
	}

	s.logger.Info("Create: created booking id=%d, commission=%s", created.ID, created.CommissionAmount.StringFixed(2))
	return created, nil
}

// GetByID получает бронирование по ID
func (s *Service) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	booking, err := s.bookingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, s.repoError("GetByID", id, err)
	}
	return booking, nil
}

// List бронирования клиента или бизнеса
func (s *Service) List(ctx context.Context, filter domain.BookingFilter) ([]*domain.Booking, error) {
	if err := validateFilter(&filter); err != nil {
		s.logger.Warn("List: %v", err)
		return nil, err
	}

	list, err := s.bookingRepo.List(ctx, filter)
	if err != nil {
		s.logger.Error("List: failed to list bookings: customer=%d, business=%d, error=%v",
			filter.CustomerID, filter.BusinessID, err)
		return nil, domain.WrapError(domain.ErrInternal, fmt.Errorf("%w: List - repository error: %v", ErrInternal, err), "internal error")
	}
	return list, nil
}

// Confirm pending -> confirmed
// Повторное подтверждение уже подтверждённого бронирования не ошибка
func (s *Service) Confirm(ctx context.Context, id int64) (*domain.Booking, error) {
	var result *domain.Booking

	err := s.txManager.Do(ctx, func(txCtx context.Context) error {
		current, err := s.bookingRepo.GetByID(txCtx, id)
		if err != nil {
			return s.repoError("Confirm", id, err)
		}

		if current.Status == domain.BookingStatusConfirmed {
			result = current
			return nil
		}
		if !current.Status.CanTransitionTo(domain.BookingStatusConfirmed) {
			s.logger.Warn("Confirm: booking id=%d cannot be confirmed, status=%s", id, current.Status)
			return invalidTransition(current, domain.BookingStatusConfirmed)
		}

		updated, err := s.bookingRepo.UpdateStatus(txCtx, domain.BookingTransition{
			BookingID: id,
			From:      []domain.BookingStatus{current.Status},
			To:        domain.BookingStatusConfirmed,
		})
		if errors.Is(err, bookingRepo.ErrStatusConflict) {
			// Проиграли гонку: перечитываем и решаем по фактическому статусу
			latest, getErr := s.bookingRepo.GetByID(txCtx, id)
			if getErr != nil {
				return s.repoError("Confirm", id, getErr)
			}
			if latest.Status == domain.BookingStatusConfirmed {
				result = latest
				return nil
			}
			if !latest.Status.CanTransitionTo(domain.BookingStatusConfirmed) {
				return invalidTransition(latest, domain.BookingStatusConfirmed)
			}
			return s.repoError("Confirm", id, err)
		}
		if err != nil {
			return s.repoError("Confirm", id, err)
		}

		if err := s.enqueue(txCtx, updated, domain.EventBookingConfirmed); err != nil {
			return err
		}

		result = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Confirm: booking id=%d is confirmed", id)
	return result, nil
}

// Cancel отменяет бронирование из pending или confirmed
// При успешной безналичной оплате простая отмена запрещена (RefundRequired)
func (s *Service) Cancel(ctx context.Context, id int64, req *models.CancelBookingRequest) (*domain.Booking, error) {
	s.logger.Info("Cancel: cancelling booking id=%d by %s", id, req.CancelledBy)

	if err := validateCancel(req); err != nil {
		s.logger.Warn("Cancel: validation failed for booking id=%d: %v", id, err)
		return nil, err
	}

	var result *domain.Booking

	err := s.txManager.Do(ctx, func(txCtx context.Context) error {
		current, err := s.bookingRepo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return s.repoError("Cancel", id, err)
		}

		if !current.CanBeCancelled() {
			s.logger.Warn("Cancel: booking id=%d cannot be cancelled, status=%s", id, current.Status)
			return invalidTransition(current, domain.BookingStatusCancelled)
		}

		payments, err := s.paymentRepo.ListByBookingID(txCtx, id)
		if err != nil {
			s.logger.Error("Cancel: failed to list payments for booking id=%d: %v", id, err)
			return domain.WrapError(domain.ErrInternal, fmt.Errorf("%w: Cancel - list payments: %v", ErrInternal, err), "failed to cancel booking")
		}
		for _, p := range payments {
			if p.RequiresRefund() {
				s.logger.Warn("Cancel: booking id=%d has completed %s payment transaction=%s, refund required",
					id, p.Method, p.TransactionID)
				return domain.WrapError(domain.ErrRefundRequired, ErrRefundRequired,
					"booking %d has a completed %s payment and must be refunded instead", id, p.Method)
			}
		}

		by := req.CancelledBy
		now := s.timeProvider.Now().UTC()
		var reason *string
		if req.CancellationReason != "" {
			reason = &req.CancellationReason
		}

		updated, err := s.bookingRepo.UpdateStatus(txCtx, domain.BookingTransition{
			BookingID:          id,
			From:               []domain.BookingStatus{current.Status},
			To:                 domain.BookingStatusCancelled,
			CancelledBy:        &by,
			CancellationReason: reason,
			CancelledAt:        &now,
		})
		if err != nil {
			return s.repoError("Cancel", id, err)
		}

		if err := s.enqueue(txCtx, updated, domain.EventBookingCancelled); err != nil {
			return err
		}

		result = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Cancel: booking id=%d cancelled by %s", id, req.CancelledBy)
	return result, nil
}

// Complete confirmed -> completed, сигнал об оказанной услуге
func (s *Service) Complete(ctx context.Context, id int64) (*domain.Booking, error) {
	var result *domain.Booking

	err := s.txManager.Do(ctx, func(txCtx context.Context) error {
		current, err := s.bookingRepo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return s.repoError("Complete", id, err)
		}

		if !current.Status.CanTransitionTo(domain.BookingStatusCompleted) {
			s.logger.Warn("Complete: booking id=%d cannot be completed, status=%s", id, current.Status)
			return invalidTransition(current, domain.BookingStatusCompleted)
		}

		updated, err := s.bookingRepo.UpdateStatus(txCtx, domain.BookingTransition{
			BookingID: id,
			From:      []domain.BookingStatus{current.Status},
			To:        domain.BookingStatusCompleted,
		})
		if err != nil {
			return s.repoError("Complete", id, err)
		}

		if err := s.enqueue(txCtx, updated, domain.EventBookingCompleted); err != nil {
			return err
		}

		result = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Complete: booking id=%d completed", id)
	return result, nil
}

func (s *Service) enqueue(ctx context.Context, b *domain.Booking, eventType domain.EventType) error {
	event, err := domain.NewOutboxEvent(domain.AggregateBooking, b.ID, eventType, domain.NewBookingEventPayload(b))
	if err != nil {
		return domain.WrapError(domain.ErrInternal, err, "failed to build %s event", eventType)
	}
	if err := s.outbox.Enqueue(ctx, event); err != nil {
		s.logger.Error("enqueue: failed to store %s for booking id=%d: %v", eventType, b.ID, err)
		return domain.WrapError(domain.ErrInternal, err, "failed to store %s event", eventType)
	}
	return nil
}

// repoError переводит ошибки репозитория в виды ошибок домена
func (s *Service) repoError(op string, id int64, err error) error {
	var de *domain.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, bookingRepo.ErrBookingNotFound):
		s.logger.Warn("%s: booking id=%d not found", op, id)
		return domain.WrapError(domain.ErrNotFound, ErrBookingNotFound, "booking %d not found", id)
	case errors.Is(err, bookingRepo.ErrStatusConflict):
		s.logger.Warn("%s: booking id=%d changed concurrently", op, id)
		return domain.WrapError(domain.ErrPreconditionFailed, ErrConcurrentUpdate, "booking %d changed concurrently, re-read and retry", id)
	default:
		s.logger.Error("%s: repository error for booking id=%d: %v", op, id, err)
		return domain.WrapError(domain.ErrInternal, fmt.Errorf("%w: %s - repository error: %v", ErrInternal, op, err), "internal error")
	}
}

func invalidTransition(b *domain.Booking, to domain.BookingStatus) error {
	return domain.WrapError(domain.ErrInvalidTransition, ErrInvalidTransition,
		"booking %d cannot move from %s to %s", b.ID, b.Status, to)
}
