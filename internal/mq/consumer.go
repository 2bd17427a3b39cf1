package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler обрабатывает сообщение. Ошибка возвращает сообщение в очередь.
type Handler func(ctx context.Context, msg *Message) error

// SetupFunc объявляет очередь и возвращает её имя.
type SetupFunc func(conn *Connection) (string, error)

// ConsumerConfig — конфигурация Consumer.
type ConsumerConfig struct {
	Queue    string
	Handler  Handler
	Prefetch int // по умолчанию 16

	// Setup вызывается перед каждой подпиской, в том числе после
	// переподключения. Временные очереди удаляются вместе с
	// соединением или каналом, Setup объявляет их заново.
	Setup SetupFunc
}

// deliverySource — часть amqp.Channel, нужная Consumer.
type deliverySource interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// Consumer читает сообщения из очереди событий.
type Consumer struct {
	conn   *Connection
	logger *slog.Logger
	cfg    ConsumerConfig

	// source возвращает текущий канал или nil.
	source func() deliverySource
}

// NewConsumer создаёт Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 16
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		conn:   conn,
		logger: logger,
		cfg:    cfg,
		source: func() deliverySource {
			if ch := conn.Channel(); ch != nil {
				return ch
			}
			return nil
		},
	}
}

// errDeliveriesClosed — брокер закрыл канал доставки.
var errDeliveriesClosed = errors.New("deliveries channel closed")

// Run потребляет сообщения до отмены ctx, переживая переподключения.
// Ошибка первой подписки возвращается сразу.
func (c *Consumer) Run(ctx context.Context) error {
	for first := true; ; first = false {
		deliveries, err := c.subscribe()
		if err != nil && first {
			return err
		}
		if err == nil {
			c.logger.Debug("consumer started", "queue", c.cfg.Queue)
			err = c.drain(ctx, deliveries)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Warn("consumer interrupted, waiting for reconnect", "queue", c.cfg.Queue, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.Reconnected():
		}
	}
}

func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	if c.cfg.Setup != nil {
		queue, err := c.cfg.Setup(c.conn)
		if err != nil {
			return nil, fmt.Errorf("setup queue: %w", err)
		}
		c.cfg.Queue = queue
	}

	ch := c.source()
	if ch == nil {
		return nil, ErrNoChannel
	}

	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.cfg.Queue, err)
	}
	return deliveries, nil
}

func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			c.handle(ctx, raw)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, raw amqp.Delivery) {
	msg, err := DecodeMessage(raw.Body)
	if err != nil {
		c.logger.Error("dropping malformed message", "queue", c.cfg.Queue, "error", err)
		_ = raw.Nack(false, false)
		return
	}

	if err := c.cfg.Handler(ctx, msg); err != nil {
		c.logger.Error("handler failed", "message_id", msg.ID, "type", msg.Type, "error", err)
		_ = raw.Nack(false, !raw.Redelivered)
		return
	}
	_ = raw.Ack(false)
}

// DecodeMessage разбирает тело сообщения.
func DecodeMessage(body []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	return &msg, nil
}

// ParsePayload приводит payload сообщения к типу T.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}
	return result, nil
}
