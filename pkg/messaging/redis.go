package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisPublisher публикует события в Redis pub/sub канал
// Используется там, где RabbitMQ не развёрнут
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// envelope формат сообщения в канале Redis (в pub/sub нет заголовков)
type envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

// NewRedisPublisher создает клиента и проверяет соединение
func NewRedisPublisher(addr, password string, db int, channel string) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: redis ping: %v", ErrConnect, err)
	}

	return &RedisPublisher{client: client, channel: channel}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, msg Message) error {
	body, err := encodeEnvelope(msg)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, body).Err(); err != nil {
		return fmt.Errorf("%w: redis publish %s: %v", ErrPublish, msg.Key, err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

func encodeEnvelope(msg Message) ([]byte, error) {
	payload := json.RawMessage(msg.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	body, err := json.Marshal(envelope{
		ID:         msg.ID,
		Type:       msg.Key,
		OccurredAt: msg.OccurredAt,
		Payload:    payload,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode envelope: %v", ErrPublish, err)
	}
	return body, nil
}
