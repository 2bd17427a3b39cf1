// Package runner выполняет планы workflows.
//
// Включает:
//   - engine.go   — Engine: sequential/parallel выполнение, машина состояний задач
//   - executor.go — интерфейс Executor и реестр по типу задачи
//   - shell.go    — shell.exec через sh -c в отдельной группе процессов
//   - packager.go — packager.installForAll по языкам из modules
//   - probe.go    — ожидание порта с ограниченным экспоненциальным backoff
//   - run.go      — Run: результат запуска и фоновые сервисы
//   - observer.go — события запуска для логов, метрик, истории и MQ
//
// Машина состояний задачи:
//
//	PENDING → RUNNING → COMPLETED | FAILED
//	RUNNING → AWAITING_PORT → COMPLETED | FAILED
//
// В sequential workflow задача N+1 не стартует до терминального статуса
// задачи N, ошибка останавливает оставшиеся задачи. В parallel workflow
// все задачи стартуют сразу, ошибка одной не отменяет остальные.
package runner
