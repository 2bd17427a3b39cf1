package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Autorun/internal/domain"
	"github.com/shaiso/Autorun/internal/engine"
	"github.com/shaiso/Autorun/internal/telemetry"
)

// Engine выполняет планы.
//
// Engine не хранит состояния между запусками: всё состояние запуска
// принадлежит Run.
type Engine struct {
	executors *Registry
	probe     *PortProbe
	observer  Observer
	logger    *slog.Logger
}

// Config — конфигурация Engine.
type Config struct {
	// Executors — реестр executor'ов (обязателен).
	Executors *Registry

	// Gate — политика ожидания портов.
	Gate GateConfig

	// Observer — получатель событий (опционально).
	Observer Observer

	// Logger
	Logger *slog.Logger
}

// New создаёт Engine.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	executors := cfg.Executors
	if executors == nil {
		executors = DefaultRegistry(&ShellExecutor{Logger: logger})
	}

	return &Engine{
		executors: executors,
		probe:     NewPortProbe(cfg.Gate),
		observer:  cfg.Observer,
		logger:    logger,
	}
}

// Execute выполняет план и возвращает Run.
//
// Возвращает управление, когда каждая задача дошла до терминального
// статуса или не была запущена из-за остановки sequential workflow.
// Задачи с readiness gate, дождавшиеся порта, продолжают работать как
// фоновые сервисы Run (см. Run.Wait, Run.Shutdown).
//
// При отмене ctx все незавершённые задачи, включая ещё не запущенные,
// переводятся в FAILED с ErrCancelled, их процессы останавливаются.
func (e *Engine) Execute(ctx context.Context, reg *domain.Registry, plan *engine.Plan) *Run {
	run := newRun(plan, e.observer, telemetry.WithWorkflow(e.logger, plan.Workflow))

	x := &execution{
		engine:    e,
		run:       run,
		languages: reg.Languages(),
	}

	run.notify(ctx, Event{Type: EventRunStarted, Result: run.Result})

	x.runPlan(ctx, plan, run.Result)

	if ctx.Err() != nil {
		x.cancelRemaining(ctx, run.Result)
	}

	run.FinishedAt = time.Now()
	run.notify(ctx, Event{Type: EventRunFinished, Result: run.Result})

	return run
}

// execution — состояние одного вызова Execute.
type execution struct {
	engine    *Engine
	run       *Run
	languages []string
}

// runPlan выполняет шаги плана согласно его режиму.
func (x *execution) runPlan(ctx context.Context, plan *engine.Plan, res *WorkflowResult) {
	res.Status = domain.WorkflowStatusRunning
	res.StartedAt = time.Now()

	switch plan.Mode {
	case domain.ModeParallel:
		var wg sync.WaitGroup
		for i := range plan.Steps {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				x.runStep(ctx, plan, plan.Steps[i], res.Steps[i])
			}(i)
		}
		wg.Wait()

	default:
		for i, step := range plan.Steps {
			if ctx.Err() != nil {
				break
			}
			x.runStep(ctx, plan, step, res.Steps[i])

			// Ошибка останавливает оставшиеся задачи, они остаются PENDING
			if res.Steps[i].failed() {
				break
			}
		}
	}

	res.finish()
}

func (x *execution) runStep(ctx context.Context, plan *engine.Plan, step engine.Step, res StepResult) {
	if step.Plan != nil {
		x.runPlan(ctx, step.Plan, res.Workflow)
		return
	}
	x.runTask(ctx, plan.Workflow, step, res.Task)
}

// runTask проводит листовую задачу через машину состояний.
func (x *execution) runTask(ctx context.Context, workflow string, step engine.Step, tr *TaskResult) {
	if ctx.Err() != nil {
		x.fail(ctx, tr, cancelled(tr))
		return
	}

	executor, err := x.engine.executors.Get(step.Task.Kind)
	if err != nil {
		x.fail(ctx, tr, x.execError(tr, err))
		return
	}

	x.set(ctx, tr, domain.TaskStatusRunning)

	proc, err := executor.Start(ctx, &Invocation{
		RunID:     x.run.ID,
		StepID:    step.ID,
		Workflow:  workflow,
		Task:      step.Task,
		Languages: x.languages,
	})
	if err != nil {
		x.fail(ctx, tr, x.execError(tr, err))
		return
	}

	if !step.Task.HasPortGate() {
		x.awaitExit(ctx, tr, proc)
		return
	}

	x.set(ctx, tr, domain.TaskStatusAwaitingPort)

	res := x.engine.probe.Await(ctx, step.Task.WaitForPort, proc.Done())
	tr.PortWait = res.elapsed

	switch {
	case res.err == nil:
		x.run.addService(tr.ID, step.Task.WaitForPort, proc)
		x.set(ctx, tr, domain.TaskStatusCompleted)

	case errors.Is(res.err, ErrProcessExited):
		tr.ExitCode = proc.ExitCode()
		cause := ErrProcessExited
		if perr := proc.Err(); perr != nil {
			cause = fmt.Errorf("%w: %w", ErrProcessExited, perr)
		}
		x.fail(ctx, tr, x.execError(tr, cause))

	case errors.Is(res.err, ErrPortTimeout):
		proc.Terminate()
		tr.ExitCode = proc.ExitCode()
		x.fail(ctx, tr, &PortTimeoutError{
			Workflow: tr.Workflow,
			Task:     tr.ID,
			Port:     step.Task.WaitForPort,
			Attempts: res.attempts,
			Elapsed:  res.elapsed,
		})

	default:
		proc.Terminate()
		tr.ExitCode = proc.ExitCode()
		x.fail(ctx, tr, cancelled(tr))
	}
}

// awaitExit ждёт завершения процесса без readiness gate.
func (x *execution) awaitExit(ctx context.Context, tr *TaskResult, proc Process) {
	select {
	case <-proc.Done():
	case <-ctx.Done():
		proc.Terminate()
		tr.ExitCode = proc.ExitCode()
		x.fail(ctx, tr, cancelled(tr))
		return
	}

	tr.ExitCode = proc.ExitCode()
	if err := proc.Err(); err != nil {
		x.fail(ctx, tr, x.execError(tr, err))
		return
	}

	x.set(ctx, tr, domain.TaskStatusCompleted)
}

// cancelRemaining переводит всё незавершённое в FAILED с ErrCancelled.
func (x *execution) cancelRemaining(ctx context.Context, res *WorkflowResult) {
	for _, s := range res.Steps {
		if s.Task != nil {
			if !s.Task.Status.IsTerminal() {
				x.fail(ctx, s.Task, cancelled(s.Task))
			}
			continue
		}
		x.cancelRemaining(ctx, s.Workflow)
	}

	switch {
	case res.Status == domain.WorkflowStatusPending && len(res.Steps) == 0:
		res.Status = domain.WorkflowStatusFailed
		res.Err = fmt.Errorf("workflow %s: %w", res.Workflow, ErrCancelled)
		res.FinishedAt = time.Now()
	case res.Status != domain.WorkflowStatusCompleted:
		// Пересчёт после отмены оставшихся задач
		res.finish()
	}
}

// set выполняет переход и публикует событие.
func (x *execution) set(ctx context.Context, tr *TaskResult, to domain.TaskStatus) {
	if err := tr.transition(to); err != nil {
		x.engine.logger.Error("status transition rejected", "error", err)
		return
	}
	x.publish(ctx, tr)
}

// fail переводит задачу в FAILED и публикует событие.
func (x *execution) fail(ctx context.Context, tr *TaskResult, cause error) {
	if err := tr.markFailed(cause); err != nil {
		x.engine.logger.Error("status transition rejected", "error", err)
		return
	}
	x.publish(ctx, tr)
}

func (x *execution) publish(ctx context.Context, tr *TaskResult) {
	snapshot := *tr
	x.run.notify(ctx, Event{Type: EventTaskChanged, Task: &snapshot})
}

func (x *execution) execError(tr *TaskResult, err error) *TaskExecutionError {
	return &TaskExecutionError{
		Workflow: tr.Workflow,
		Task:     tr.ID,
		Command:  tr.Args,
		ExitCode: tr.ExitCode,
		Err:      err,
	}
}

func cancelled(tr *TaskResult) error {
	return fmt.Errorf("task %s: %w", tr.ID, ErrCancelled)
}
