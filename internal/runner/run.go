package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Autorun/internal/domain"
	"github.com/shaiso/Autorun/internal/engine"
	"github.com/shaiso/Autorun/internal/telemetry"
)

// Run — один запуск плана.
type Run struct {
	// ID — идентификатор запуска.
	ID uuid.UUID

	// Plan — выполняемый план.
	Plan *engine.Plan

	// Result — дерево результатов, повторяющее Plan.
	Result *WorkflowResult

	StartedAt  time.Time
	FinishedAt time.Time

	observer Observer
	logger   *slog.Logger
	notifyMu sync.Mutex

	mu       sync.Mutex
	services []*service
}

// service — процесс, дождавшийся порта и продолжающий работать.
type service struct {
	taskID string
	port   int
	proc   Process
}

func newRun(plan *engine.Plan, observer Observer, logger *slog.Logger) *Run {
	id := uuid.New()
	return &Run{
		ID:        id,
		Plan:      plan,
		Result:    newWorkflowResult(plan),
		StartedAt: time.Now(),
		observer:  observer,
		logger:    telemetry.WithRunID(logger, id.String()),
	}
}

// notify доставляет событие наблюдателю. События сериализуются.
// Наблюдатели получают контекст без отмены: итоги отменённого
// запуска тоже должны быть записаны.
func (r *Run) notify(ctx context.Context, ev Event) {
	if r.observer == nil {
		return
	}
	ev.RunID = r.ID
	ev.Workflow = r.Plan.Workflow
	ev.Time = time.Now()

	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	r.observer.Notify(context.WithoutCancel(ctx), ev)
}

func (r *Run) addService(taskID string, port int, proc Process) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services = append(r.services, &service{taskID: taskID, port: port, proc: proc})
}

// Err возвращает ошибку запуска: nil, если workflow COMPLETED.
func (r *Run) Err() error {
	if r.Result.Status == domain.WorkflowStatusCompleted {
		return nil
	}
	if r.Result.Err != nil {
		return r.Result.Err
	}
	return fmt.Errorf("workflow %s: %s", r.Result.Workflow, r.Result.Status)
}

// Services возвращает ID задач, процессы которых работают в фоне.
func (r *Run) Services() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.services))
	for _, s := range r.services {
		ids = append(ids, s.taskID)
	}
	return ids
}

// Wait блокирует до завершения всех фоновых процессов.
//
// При отмене ctx процессы останавливаются через Shutdown и Wait
// возвращает nil. Иначе возвращаются ошибки процессов, завершившихся
// неуспешно.
func (r *Run) Wait(ctx context.Context) error {
	r.mu.Lock()
	services := append([]*service(nil), r.services...)
	r.mu.Unlock()

	if len(services) == 0 {
		return nil
	}

	done := make(chan struct{})
	go func() {
		for _, s := range services {
			<-s.proc.Done()
			r.logger.Info("service exited", "task", s.taskID, "port", s.port, "exit_code", s.proc.ExitCode())
		}
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		r.Shutdown()
		return nil
	}

	var errs []error
	for _, s := range services {
		if err := s.proc.Err(); err != nil {
			errs = append(errs, fmt.Errorf("service %s: %w", s.taskID, err))
		}
	}
	return errors.Join(errs...)
}

// Shutdown останавливает все фоновые процессы и ждёт их завершения.
func (r *Run) Shutdown() {
	r.mu.Lock()
	services := append([]*service(nil), r.services...)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range services {
		wg.Add(1)
		go func(s *service) {
			defer wg.Done()
			s.proc.Terminate()
		}(s)
	}
	wg.Wait()

	if len(services) > 0 {
		r.logger.Info("services stopped", "count", len(services))
	}
}
