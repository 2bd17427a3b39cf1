package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Autorun/internal/runner"
)

// MessageType — тип сообщения.
type MessageType string

// Типы сообщений совпадают с типами событий запуска.
const (
	MessageTypeRunStarted  MessageType = MessageType(runner.EventRunStarted)
	MessageTypeTaskChanged MessageType = MessageType(runner.EventTaskChanged)
	MessageTypeRunFinished MessageType = MessageType(runner.EventRunFinished)
)

// Message — сообщение в обменнике событий.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// RunPayload — payload для run.started и run.finished.
type RunPayload struct {
	RunID    uuid.UUID `json:"run_id"`
	Workflow string    `json:"workflow"`
	Status   string    `json:"status,omitempty"`
	Error    string    `json:"error,omitempty"`
	Failed   []string  `json:"failed,omitempty"` // ID упавших задач
}

// TaskPayload — payload для task.changed.
type TaskPayload struct {
	RunID    uuid.UUID `json:"run_id"`
	StepID   string    `json:"step_id"`
	Workflow string    `json:"workflow"`
	Kind     string    `json:"kind"`
	Args     string    `json:"args,omitempty"`
	Status   string    `json:"status"`
	ExitCode int       `json:"exit_code"`
	Port     int       `json:"port,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// publishTimeout ограничивает публикацию одного события.
const publishTimeout = 5 * time.Second

// Publisher публикует события запусков в ExchangeEvents.
// Реализует runner.Observer: ошибки публикации логируются и не
// влияют на выполнение.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, logger: logger}
}

// Notify реализует runner.Observer.
func (p *Publisher) Notify(ctx context.Context, ev runner.Event) {
	key, msg := NewMessage(ev)

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.Publish(ctx, key, msg); err != nil {
		p.logger.Warn("failed to publish event", "type", ev.Type, "run_id", ev.RunID, "error", err)
	}
}

// Publish публикует сообщение с ключом key.
func (p *Publisher) Publish(ctx context.Context, key RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(ctx, string(ExchangeEvents), string(key), false, false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Transient,
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Type:         string(msg.Type),
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish %s: %w", key, err)
		}

		p.logger.Debug("published event", "routing_key", key, "message_id", msg.ID)
		return nil
	})
}

// NewMessage переводит событие запуска в сообщение и ключ маршрутизации.
func NewMessage(ev runner.Event) (RoutingKey, *Message) {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageType(ev.Type),
		Timestamp: ev.Time,
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	switch ev.Type {
	case runner.EventTaskChanged:
		t := ev.Task
		payload := TaskPayload{
			RunID:    ev.RunID,
			StepID:   t.ID,
			Workflow: t.Workflow,
			Kind:     string(t.Kind),
			Args:     t.Args,
			Status:   string(t.Status),
			ExitCode: t.ExitCode,
			Port:     t.WaitForPort,
		}
		if t.Err != nil {
			payload.Error = t.Err.Error()
		}
		msg.Payload = payload
		return taskKey(string(t.Status)), msg

	case runner.EventRunFinished:
		payload := RunPayload{RunID: ev.RunID, Workflow: ev.Workflow}
		if r := ev.Result; r != nil {
			payload.Status = string(r.Status)
			if r.Err != nil {
				payload.Error = r.Err.Error()
			}
			for _, t := range r.Failed() {
				payload.Failed = append(payload.Failed, t.ID)
			}
		}
		msg.Payload = payload
		return runFinishedKey(payload.Status), msg

	default:
		msg.Payload = RunPayload{RunID: ev.RunID, Workflow: ev.Workflow}
		return RoutingKeyRunStarted, msg
	}
}
