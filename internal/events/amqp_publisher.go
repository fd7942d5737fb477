package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/workhub/backend/internal/lifecycle"
)

const (
	exchangeName   = "lifecycle.events"
	publishTimeout = 5 * time.Second
)

// AMQPPublisher публикует события жизненного цикла в RabbitMQ для
// внешних потребителей. Routing key совпадает с типом события,
// например "proposal.accepted".
type AMQPPublisher struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewAMQPPublisher подключается к брокеру и объявляет topic-exchange.
func NewAMQPPublisher(url string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("events: не удалось подключиться к amqp: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("events: не удалось открыть канал: %w", err)
	}

	if err := channel.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("events: не удалось объявить exchange: %w", err)
	}

	return &AMQPPublisher{conn: conn, channel: channel}, nil
}

// Publish отправляет событие в exchange.
func (p *AMQPPublisher) Publish(ctx context.Context, event lifecycle.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: не удалось сериализовать событие: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.channel.PublishWithContext(ctx, exchangeName, event.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.OccurredAt,
		Body:         body,
	})
}

// Close закрывает канал и соединение.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
