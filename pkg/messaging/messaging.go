package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrConnect возвращается при ошибке подключения к брокеру
	ErrConnect = errors.New("messaging: connect failed")

	// ErrPublish возвращается при ошибке публикации
	ErrPublish = errors.New("messaging: publish failed")

	// ErrUnknownTransport возвращается для неизвестного транспорта в конфиге
	ErrUnknownTransport = errors.New("messaging: unknown transport")
)

// Transport тип брокера
const (
	TransportRabbitMQ = "rabbitmq"
	TransportRedis    = "redis"
	TransportLog      = "log"
)

// Message событие для публикации
type Message struct {
	ID         string
	Key        string // тип события, он же routing key
	OccurredAt time.Time
	Payload    []byte
}

// Publisher общий интерфейс брокеров
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
}

// LogPublisher пишет события в лог вместо брокера (локальная разработка)
type LogPublisher struct {
	log Logger
}

func NewLogPublisher(log Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, msg Message) error {
	p.log.Info("messaging: event id=%s type=%s payload=%s", msg.ID, msg.Key, string(msg.Payload))
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}

// Options параметры подключения к брокеру
type Options struct {
	Transport string

	RabbitURL      string
	RabbitExchange string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string
}

// NewPublisher создает publisher по типу транспорта
func NewPublisher(opts Options, log Logger) (Publisher, error) {
	switch opts.Transport {
	case TransportRabbitMQ:
		return NewRabbitPublisher(opts.RabbitURL, opts.RabbitExchange)
	case TransportRedis:
		return NewRedisPublisher(opts.RedisAddr, opts.RedisPassword, opts.RedisDB, opts.RedisChannel)
	case TransportLog, "":
		return NewLogPublisher(log), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, opts.Transport)
	}
}
