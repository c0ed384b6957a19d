package outbox

import (
	"context"
	"time"

	"github.com/m04kA/SMC-SettlementService/internal/domain"
	"github.com/m04kA/SMC-SettlementService/pkg/messaging"
)

// Repository хранилище outbox
type Repository interface {
	FetchUnpublished(ctx context.Context, limit uint64, maxAttempts int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, reason string) error
}

// Publisher брокер сообщений (pkg/messaging)
type Publisher interface {
	Publish(ctx context.Context, msg messaging.Message) error
}

// TransactionManager интерфейс для управления транзакциями
type TransactionManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Metrics учёт публикаций
type Metrics interface {
	RecordOutboxPublish(eventType string, ok bool)
}

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
