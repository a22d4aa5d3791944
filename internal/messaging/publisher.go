package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Krisp140/sebi/internal/domain"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// DefaultComicEventsExchange имя fanout exchange для событий генерации комиксов.
const DefaultComicEventsExchange = "comic_events"

// Channel подмножество *amqp.Channel, которое использует издатель.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// ComicEventPublisher публикует события жизненного цикла комикса в RabbitMQ.
type ComicEventPublisher struct {
	ch       Channel
	exchange string
	logger   *zap.Logger
}

// NewComicEventPublisher объявляет durable fanout exchange и возвращает издателя.
func NewComicEventPublisher(ch Channel, exchange string, logger *zap.Logger) (*ComicEventPublisher, error) {
	if ch == nil {
		return nil, fmt.Errorf("rabbitmq channel is nil")
	}
	if exchange == "" {
		exchange = DefaultComicEventsExchange
	}
	log := logger.Named("ComicEventPublisher").With(zap.String("exchange", exchange))

	err := ch.ExchangeDeclare(
		exchange, // name
		"fanout", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		_ = ch.Close()
		log.Error("Failed to declare exchange", zap.Error(err))
		return nil, fmt.Errorf("failed to declare exchange '%s': %w", exchange, err)
	}
	log.Info("Comic events exchange declared")

	return &ComicEventPublisher{ch: ch, exchange: exchange, logger: log}, nil
}

// Emit публикует событие как JSON.
func (p *ComicEventPublisher) Emit(ctx context.Context, event domain.ComicEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal comic event: %w", err)
	}

	err = p.ch.PublishWithContext(ctx,
		p.exchange,
		"",    // routing key не используется для fanout
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now(),
			Type:         string(event.Type),
			Body:         body,
		},
	)
	if err != nil {
		p.logger.Error("Failed to publish comic event",
			zap.String("session_id", event.SessionID),
			zap.String("type", string(event.Type)),
			zap.Error(err),
		)
		return fmt.Errorf("failed to publish comic event: %w", err)
	}

	p.logger.Debug("Comic event published", zap.String("session_id", event.SessionID), zap.String("type", string(event.Type)))
	return nil
}

// Close закрывает канал RabbitMQ.
func (p *ComicEventPublisher) Close() error {
	return p.ch.Close()
}
