// Package testutil in-memory реализации хранилищ для тестов сервисов
// Повторяет контракт postgres-репозиториев: те же sentinel-ошибки и conditional update
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m04kA/SMC-SettlementService/internal/domain"
	bookingRepo "github.com/m04kA/SMC-SettlementService/internal/infra/storage/booking"
	commissionRepo "github.com/m04kA/SMC-SettlementService/internal/infra/storage/commission"
	outboxRepo "github.com/m04kA/SMC-SettlementService/internal/infra/storage/outbox"
	paymentRepo "github.com/m04kA/SMC-SettlementService/internal/infra/storage/payment"
)

// Store общее состояние всех репозиториев
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex

	seq         int64
	bookings    map[int64]domain.Booking
	payments    map[int64]domain.Payment
	commissions map[int64]domain.CommissionRecord // по payment_id
	outbox      []domain.OutboxEvent

	now func() time.Time
}

// NewStore создает пустое хранилище
func NewStore() *Store {
	return &Store{
		bookings:    make(map[int64]domain.Booking),
		payments:    make(map[int64]domain.Payment),
		commissions: make(map[int64]domain.CommissionRecord),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

type snapshot struct {
	seq         int64
	bookings    map[int64]domain.Booking
	payments    map[int64]domain.Payment
	commissions map[int64]domain.CommissionRecord
	outbox      []domain.OutboxEvent
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := snapshot{
		seq:         s.seq,
		bookings:    make(map[int64]domain.Booking, len(s.bookings)),
		payments:    make(map[int64]domain.Payment, len(s.payments)),
		commissions: make(map[int64]domain.CommissionRecord, len(s.commissions)),
		outbox:      append([]domain.OutboxEvent(nil), s.outbox...),
	}
	for k, v := range s.bookings {
		snap.bookings[k] = v
	}
	for k, v := range s.payments {
		snap.payments[k] = v
	}
	for k, v := range s.commissions {
		snap.commissions[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq = snap.seq
	s.bookings = snap.bookings
	s.payments = snap.payments
	s.commissions = snap.commissions
	s.outbox = snap.outbox
}

// TxManager сериализует транзакции и откатывает состояние при ошибке
type TxManager struct {
	store *Store
}

type txKey struct{}

// NewTxManager создает менеджер транзакций поверх хранилища
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// Do выполняет fn; вложенный вызов переиспользует внешнюю транзакцию
func (m *TxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	m.store.txMu.Lock()
	defer m.store.txMu.Unlock()

	snap := m.store.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

// BookingRepository in-memory репозиторий бронирований
type BookingRepository struct {
	store *Store
}

func NewBookingRepository(store *Store) *BookingRepository {
	return &BookingRepository{store: store}
}

func (r *BookingRepository) Create(_ context.Context, b *domain.Booking) (*domain.Booking, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	created := *b
	created.ID = s.nextID()
	created.CreatedAt = s.now()
	created.UpdatedAt = created.CreatedAt
	s.bookings[created.ID] = created

	out := created
	return &out, nil
}

func (r *BookingRepository) GetByID(_ context.Context, id int64) (*domain.Booking, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, bookingRepo.ErrBookingNotFound
	}
	return &b, nil
}

// GetByIDForUpdate блокировку заменяет сериализация транзакций в TxManager
func (r *BookingRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Booking, error) {
	return r.GetByID(ctx, id)
}

func (r *BookingRepository) UpdateStatus(_ context.Context, t domain.BookingTransition) (*domain.Booking, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[t.BookingID]
	if !ok {
		return nil, bookingRepo.ErrBookingNotFound
	}
	if !containsBookingStatus(t.From, b.Status) {
		return nil, bookingRepo.ErrStatusConflict
	}

	b.Status = t.To
	b.UpdatedAt = s.now()
	if t.To == domain.BookingStatusCancelled {
		b.CancelledBy = t.CancelledBy
		b.CancellationReason = t.CancellationReason
		b.CancelledAt = t.CancelledAt
	}
	s.bookings[b.ID] = b

	out := b
	return &out, nil
}

func (r *BookingRepository) ListPendingWithSettledPayment(_ context.Context, limit uint64) ([]*domain.Booking, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*domain.Booking
	for _, b := range s.bookings {
		if b.Status != domain.BookingStatusPending {
			continue
		}
		for _, p := range s.payments {
			if p.BookingID == b.ID && p.Status.IsSettled() {
				bb := b
				result = append(result, &bb)
				break
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if limit > 0 && uint64(len(result)) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *BookingRepository) List(_ context.Context, filter domain.BookingFilter) ([]*domain.Booking, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*domain.Booking, 0)
	for _, b := range s.bookings {
		if filter.CustomerID > 0 && b.CustomerID != filter.CustomerID {
			continue
		}
		if filter.BusinessID > 0 && b.BusinessID != filter.BusinessID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsBookingStatus(filter.Statuses, b.Status) {
			continue
		}
		bb := b
		result = append(result, &bb)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].ScheduledAt.Equal(result[j].ScheduledAt) {
			return result[i].ScheduledAt.After(result[j].ScheduledAt)
		}
		return result[i].ID > result[j].ID
	})

	if filter.Offset >= uint64(len(result)) {
		return []*domain.Booking{}, nil
	}
	result = result[filter.Offset:]
	if filter.Limit > 0 && uint64(len(result)) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// PaymentRepository in-memory репозиторий платежей
type PaymentRepository struct {
	store *Store
}

func NewPaymentRepository(store *Store) *PaymentRepository {
	return &PaymentRepository{store: store}
}

func (r *PaymentRepository) Create(_ context.Context, p *domain.Payment) (*domain.Payment, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.payments {
		if existing.TransactionID == p.TransactionID {
			return nil, paymentRepo.ErrDuplicateTransaction
		}
		if existing.BookingID == p.BookingID && existing.Status.IsOpen() && p.Status.IsOpen() {
			return nil, paymentRepo.ErrOpenPaymentExists
		}
	}

	created := *p
	created.ID = s.nextID()
	created.CreatedAt = s.now()
	created.UpdatedAt = created.CreatedAt
	s.payments[created.ID] = created

	out := created
	return &out, nil
}

func (r *PaymentRepository) GetByTransactionID(_ context.Context, transactionID string) (*domain.Payment, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.paymentByTransaction(transactionID)
	if !ok {
		return nil, paymentRepo.ErrPaymentNotFound
	}
	return &p, nil
}

func (r *PaymentRepository) ListByBookingID(_ context.Context, bookingID int64) ([]*domain.Payment, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*domain.Payment
	for _, p := range s.payments {
		if p.BookingID == bookingID {
			pp := p
			result = append(result, &pp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *PaymentRepository) GetOpenByBookingID(_ context.Context, bookingID int64) (*domain.Payment, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var found *domain.Payment
	for _, p := range s.payments {
		if p.BookingID == bookingID && p.Status.IsOpen() && (found == nil || p.ID > found.ID) {
			pp := p
			found = &pp
		}
	}
	if found == nil {
		return nil, paymentRepo.ErrPaymentNotFound
	}
	return found, nil
}

func (r *PaymentRepository) UpdateStatus(_ context.Context, t domain.PaymentTransition) (*domain.Payment, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.paymentByTransaction(t.TransactionID)
	if !ok {
		return nil, paymentRepo.ErrPaymentNotFound
	}
	if p.Status != t.From {
		return nil, paymentRepo.ErrStatusConflict
	}

	p.Status = t.To
	p.UpdatedAt = s.now()
	if t.GatewayPayload != nil {
		p.GatewayPayload = append([]byte(nil), t.GatewayPayload...)
	}
	s.payments[p.ID] = p

	out := p
	return &out, nil
}

func (r *PaymentRepository) ListSettledWithCommissionDrift(_ context.Context, limit uint64) ([]*domain.Payment, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*domain.Payment
	for _, p := range s.payments {
		switch p.Status {
		case domain.PaymentStatusPendingCash, domain.PaymentStatusCompleted, domain.PaymentStatusRefunded:
		default:
			continue
		}
		rec, ok := s.commissions[p.ID]
		if ok && rec.Status == p.Status {
			continue
		}
		pp := p
		result = append(result, &pp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if limit > 0 && uint64(len(result)) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *PaymentRepository) ListStalePending(_ context.Context, before time.Time, limit uint64) ([]*domain.Payment, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*domain.Payment
	for _, p := range s.payments {
		if p.Status != domain.PaymentStatusPending || p.CreatedAt.After(before) {
			continue
		}
		pp := p
		result = append(result, &pp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if limit > 0 && uint64(len(result)) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) paymentByTransaction(transactionID string) (domain.Payment, bool) {
	for _, p := range s.payments {
		if p.TransactionID == transactionID {
			return p, true
		}
	}
	return domain.Payment{}, false
}

// CommissionRepository in-memory репозиторий записей комиссии
type CommissionRepository struct {
	store *Store
}

func NewCommissionRepository(store *Store) *CommissionRepository {
	return &CommissionRepository{store: store}
}

func (r *CommissionRepository) Create(_ context.Context, rec *domain.CommissionRecord) (*domain.CommissionRecord, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.commissions[rec.PaymentID]; ok {
		return nil, commissionRepo.ErrRecordExists
	}

	created := *rec
	created.ID = s.nextID()
	created.CreatedAt = s.now()
	created.UpdatedAt = created.CreatedAt
	s.commissions[created.PaymentID] = created

	out := created
	return &out, nil
}

func (r *CommissionRepository) Upsert(_ context.Context, rec *domain.CommissionRecord) (*domain.CommissionRecord, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.commissions[rec.PaymentID]
	if ok {
		existing.Status = rec.Status
		existing.UpdatedAt = s.now()
		s.commissions[rec.PaymentID] = existing
		out := existing
		return &out, nil
	}

	created := *rec
	created.ID = s.nextID()
	created.CreatedAt = s.now()
	created.UpdatedAt = created.CreatedAt
	s.commissions[created.PaymentID] = created

	out := created
	return &out, nil
}

func (r *CommissionRepository) GetByPaymentID(_ context.Context, paymentID int64) (*domain.CommissionRecord, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.commissions[paymentID]
	if !ok {
		return nil, commissionRepo.ErrRecordNotFound
	}
	return &rec, nil
}

func (r *CommissionRepository) UpdateStatus(_ context.Context, paymentID int64, status domain.PaymentStatus) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.commissions[paymentID]
	if !ok {
		return commissionRepo.ErrRecordNotFound
	}
	rec.Status = status
	rec.UpdatedAt = s.now()
	s.commissions[paymentID] = rec
	return nil
}

// DeleteCommission удаляет запись комиссии (имитация расхождения для тестов сверки)
func (s *Store) DeleteCommission(paymentID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.commissions, paymentID)
}

// OutboxRepository in-memory outbox
type OutboxRepository struct {
	store *Store
}

func NewOutboxRepository(store *Store) *OutboxRepository {
	return &OutboxRepository{store: store}
}

func (r *OutboxRepository) Enqueue(_ context.Context, event *domain.OutboxEvent) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	e := *event
	e.CreatedAt = s.now()
	s.outbox = append(s.outbox, e)
	event.CreatedAt = e.CreatedAt
	return nil
}

func (r *OutboxRepository) FetchUnpublished(_ context.Context, limit uint64, maxAttempts int) ([]*domain.OutboxEvent, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*domain.OutboxEvent
	for _, e := range s.outbox {
		if e.PublishedAt != nil || e.Attempts >= maxAttempts {
			continue
		}
		ee := e
		result = append(result, &ee)
		if limit > 0 && uint64(len(result)) == limit {
			break
		}
	}
	return result, nil
}

func (r *OutboxRepository) MarkPublished(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(e *domain.OutboxEvent) {
		published := at
		e.PublishedAt = &published
	})
}

func (r *OutboxRepository) MarkFailed(_ context.Context, id string, reason string) error {
	return r.update(id, func(e *domain.OutboxEvent) {
		e.Attempts++
		msg := reason
		e.LastError = &msg
	})
}

func (r *OutboxRepository) update(id string, fn func(e *domain.OutboxEvent)) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.outbox {
		if s.outbox[i].ID == id {
			fn(&s.outbox[i])
			return nil
		}
	}
	return outboxRepo.ErrEventNotFound
}

// Events события outbox указанного типа в порядке записи
func (s *Store) Events(eventType domain.EventType) []domain.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []domain.OutboxEvent
	for _, e := range s.outbox {
		if e.EventType == eventType {
			result = append(result, e)
		}
	}
	return result
}

// CountEvents количество событий указанного типа
func (s *Store) CountEvents(eventType domain.EventType) int {
	return len(s.Events(eventType))
}

// Payments все платежи бронирования
func (s *Store) Payments(bookingID int64) []domain.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []domain.Payment
	for _, p := range s.payments {
		if p.BookingID == bookingID {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Commission запись комиссии платежа
func (s *Store) Commission(paymentID int64) (domain.CommissionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.commissions[paymentID]
	return rec, ok
}

// Booking текущее состояние бронирования
func (s *Store) Booking(id int64) (domain.Booking, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	return b, ok
}

// PutBooking записывает бронирование как есть (подготовка состояния в тестах)
func (s *Store) PutBooking(b domain.Booking) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == 0 {
		b.ID = s.nextID()
	}
	s.bookings[b.ID] = b
	return b.ID
}

func containsBookingStatus(list []domain.BookingStatus, s domain.BookingStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
