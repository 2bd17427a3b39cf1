// Package mq публикует события запусков в RabbitMQ и читает их обратно.
//
// Все события идут в topic-обменник autorun.events:
//   - run.started
//   - run.finished.completed, run.finished.failed
//   - task.running, task.awaiting_port, task.completed, task.failed
//
// Publisher реализует runner.Observer, поэтому подключается к движку
// наравне с логированием и метриками. Команда events создаёт временную
// очередь через DeclareTailQueue и читает её Consumer'ом.
package mq
