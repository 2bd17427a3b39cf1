package runner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Autorun/internal/domain"
	"github.com/shaiso/Autorun/internal/telemetry"
)

// EventType — тип события запуска.
type EventType string

const (
	EventRunStarted  EventType = "run.started"
	EventTaskChanged EventType = "task.changed"
	EventRunFinished EventType = "run.finished"
)

// Event — событие запуска.
type Event struct {
	Type     EventType
	RunID    uuid.UUID
	Workflow string // корневой workflow
	Time     time.Time

	// Task — снимок задачи (для EventTaskChanged).
	Task *TaskResult

	// Result — дерево результатов: все задачи в PENDING для
	// EventRunStarted, итог плана для EventRunFinished.
	Result *WorkflowResult
}

// Observer получает события запуска.
//
// События одного запуска доставляются последовательно,
// переходы одной задачи — в порядке их совершения.
type Observer interface {
	Notify(ctx context.Context, ev Event)
}

// ObserverFunc — адаптер функции к Observer.
type ObserverFunc func(ctx context.Context, ev Event)

// Notify вызывает f.
func (f ObserverFunc) Notify(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// Observers рассылает событие всем наблюдателям по порядку.
type Observers []Observer

// Notify реализует Observer.
func (o Observers) Notify(ctx context.Context, ev Event) {
	for _, obs := range o {
		if obs != nil {
			obs.Notify(ctx, ev)
		}
	}
}

// LogObserver пишет переходы задач в лог.
type LogObserver struct {
	Logger *slog.Logger
}

// Notify реализует Observer.
func (l LogObserver) Notify(_ context.Context, ev Event) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = telemetry.WithRunID(logger, ev.RunID.String())

	switch ev.Type {
	case EventRunStarted:
		logger.Info("run started", "workflow", ev.Workflow)

	case EventTaskChanged:
		t := ev.Task
		taskLogger := telemetry.WithTask(telemetry.WithWorkflow(logger, t.Workflow), t.ID)
		switch t.Status {
		case domain.TaskStatusFailed:
			taskLogger.Error("task failed", "kind", t.Kind, "exit_code", t.ExitCode, "error", t.Err)
		case domain.TaskStatusAwaitingPort:
			taskLogger.Info("waiting for port", "port", t.WaitForPort)
		case domain.TaskStatusCompleted:
			taskLogger.Info("task completed", "kind", t.Kind, "duration", t.Duration())
		default:
			taskLogger.Debug("task status changed", "status", t.Status, "args", t.Args)
		}

	case EventRunFinished:
		if ev.Result.Status == domain.WorkflowStatusFailed {
			logger.Error("run failed", "workflow", ev.Workflow, "error", ev.Result.Err)
		} else {
			logger.Info("run completed", "workflow", ev.Workflow)
		}
	}
}

// MetricsObserver переводит события в Prometheus метрики.
type MetricsObserver struct {
	Metrics *telemetry.Metrics
}

// Notify реализует Observer.
func (m MetricsObserver) Notify(_ context.Context, ev Event) {
	switch ev.Type {
	case EventTaskChanged:
		t := ev.Task
		if !t.Status.IsTerminal() {
			return
		}
		m.Metrics.TaskFinished(string(t.Kind), string(t.Status), t.Duration())
		if t.WaitForPort != 0 && !t.StartedAt.IsZero() {
			m.Metrics.PortWaited(portOutcome(t), t.PortWait)
		}

	case EventRunFinished:
		m.Metrics.RunFinished(string(ev.Result.Status))
	}
}

// portOutcome классифицирует итог ожидания порта.
func portOutcome(t *TaskResult) string {
	switch {
	case t.Status == domain.TaskStatusCompleted:
		return "ready"
	case errors.Is(t.Err, ErrPortTimeout):
		return "timeout"
	case errors.Is(t.Err, ErrCancelled):
		return "cancelled"
	default:
		return "exited"
	}
}
