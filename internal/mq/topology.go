package mq

import (
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя обменника.
type Exchange string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

// ExchangeEvents — topic-обменник событий запусков.
const ExchangeEvents Exchange = "autorun.events"

// Ключи маршрутизации:
//
//	run.started
//	run.finished.<status>     (completed | failed)
//	task.<status>             (running | awaiting_port | completed | failed)
const (
	RoutingKeyRunStarted RoutingKey = "run.started"
	RoutingKeyAll        RoutingKey = "#"
)

// runFinishedKey возвращает ключ для завершения запуска.
func runFinishedKey(status string) RoutingKey {
	return RoutingKey("run.finished." + strings.ToLower(status))
}

// taskKey возвращает ключ для смены статуса задачи.
func taskKey(status string) RoutingKey {
	return RoutingKey("task." + strings.ToLower(status))
}

// SetupTopology объявляет обменник событий.
func SetupTopology(conn *Connection) error {
	return conn.WithChannel(func(ch *amqp.Channel) error {
		err := ch.ExchangeDeclare(
			string(ExchangeEvents), // name
			amqp.ExchangeTopic,     // type
			true,                   // durable
			false,                  // auto-deleted
			false,                  // internal
			false,                  // no-wait
			nil,                    // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ExchangeEvents, err)
		}
		return nil
	})
}

// DeclareTailQueue создаёт временную очередь, привязанную к обменнику
// по шаблону pattern, и возвращает её имя. Очередь удаляется вместе
// с соединением.
func DeclareTailQueue(conn *Connection, pattern RoutingKey) (string, error) {
	if pattern == "" {
		pattern = RoutingKeyAll
	}

	var name string
	err := conn.WithChannel(func(ch *amqp.Channel) error {
		q, err := ch.QueueDeclare(
			"",    // name (генерирует брокер)
			false, // durable
			true,  // delete when unused
			true,  // exclusive
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			return fmt.Errorf("declare tail queue: %w", err)
		}

		if err := ch.QueueBind(q.Name, string(pattern), string(ExchangeEvents), false, nil); err != nil {
			return fmt.Errorf("bind %s to %s: %w", q.Name, ExchangeEvents, err)
		}

		name = q.Name
		return nil
	})
	return name, err
}
