// Package outbox публикует события из таблицы outbox_events с доставкой at-least-once
package outbox

import (
	"context"
	"time"

	"github.com/m04kA/SMC-SettlementService/pkg/messaging"
)

// Config параметры релея
type Config struct {
	Interval    time.Duration
	BatchSize   uint64
	MaxAttempts int
}

// Relay периодически забирает неопубликованные события и отдаёт их брокеру
type Relay struct {
	repo      Repository
	publisher Publisher
	txManager TransactionManager
	metrics   Metrics
	logger    Logger
	cfg       Config
	now       func() time.Time
}

// NewRelay создает релей outbox
func NewRelay(repo Repository, publisher Publisher, txManager TransactionManager, metrics Metrics, logger Logger, cfg Config) *Relay {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	return &Relay{
		repo:      repo,
		publisher: publisher,
		txManager: txManager,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Run крутит цикл до отмены контекста
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.logger.Info("OutboxRelay: started, interval=%s batch=%d", r.cfg.Interval, r.cfg.BatchSize)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("OutboxRelay: stopped")
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.logger.Error("OutboxRelay: %v", err)
			}
		}
	}
}

// RunOnce публикует одну пачку событий и возвращает число опубликованных
// Пачка выбирается FOR UPDATE SKIP LOCKED, поэтому несколько экземпляров сервиса не дублируют работу
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	published := 0

	err := r.txManager.Do(ctx, func(txCtx context.Context) error {
		events, err := r.repo.FetchUnpublished(txCtx, r.cfg.BatchSize, r.cfg.MaxAttempts)
		if err != nil {
			return err
		}

		for _, e := range events {
			msg := messaging.Message{
				ID:         e.ID,
				Key:        string(e.EventType),
				OccurredAt: e.CreatedAt,
				Payload:    e.Payload,
			}

			if err := r.publisher.Publish(txCtx, msg); err != nil {
				r.metrics.RecordOutboxPublish(string(e.EventType), false)
				r.logger.Warn("OutboxRelay: publish event id=%s type=%s attempt=%d failed: %v",
					e.ID, e.EventType, e.Attempts+1, err)
				if markErr := r.repo.MarkFailed(txCtx, e.ID, err.Error()); markErr != nil {
					return markErr
				}
				if e.Attempts+1 >= r.cfg.MaxAttempts {
					r.logger.Error("OutboxRelay: event id=%s type=%s gave up after %d attempts", e.ID, e.EventType, e.Attempts+1)
				}
				continue
			}

			if err := r.repo.MarkPublished(txCtx, e.ID, r.now().UTC()); err != nil {
				return err
			}
			r.metrics.RecordOutboxPublish(string(e.EventType), true)
			published++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return published, nil
}
