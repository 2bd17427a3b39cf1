package runner

import (
	"fmt"
	"time"

	"github.com/shaiso/Autorun/internal/domain"
	"github.com/shaiso/Autorun/internal/engine"
)

// TaskResult — состояние и итог одной листовой задачи.
type TaskResult struct {
	ID          string            // ID шага плана
	Workflow    string            // имя workflow
	Index       int               // номер задачи в workflow
	Kind        domain.TaskKind   // тип задачи
	Args        string            // аргумент задачи
	WaitForPort int               // порт readiness gate (0 — нет)
	Status      domain.TaskStatus // текущий статус
	Err         error             // причина FAILED
	ExitCode    int               // код выхода процесса (-1 — неизвестен)
	PortWait    time.Duration     // время ожидания порта
	StartedAt   time.Time
	FinishedAt  time.Time
}

func newTaskResult(workflow string, step engine.Step) *TaskResult {
	return &TaskResult{
		ID:          step.ID,
		Workflow:    workflow,
		Index:       step.Index,
		Kind:        step.Task.Kind,
		Args:        step.Task.Args,
		WaitForPort: step.Task.WaitForPort,
		Status:      domain.TaskStatusPending,
		ExitCode:    -1,
	}
}

// transition переводит задачу в статус to.
func (t *TaskResult) transition(to domain.TaskStatus) error {
	if !t.Status.CanTransition(to) {
		return fmt.Errorf("%w: %s → %s (task %s)", ErrInvalidTransition, t.Status, to, t.ID)
	}

	now := time.Now()
	switch to {
	case domain.TaskStatusRunning:
		t.StartedAt = now
	case domain.TaskStatusCompleted, domain.TaskStatusFailed:
		t.FinishedAt = now
	}
	t.Status = to
	return nil
}

// markFailed переводит задачу в FAILED с причиной err.
func (t *TaskResult) markFailed(err error) error {
	if terr := t.transition(domain.TaskStatusFailed); terr != nil {
		return terr
	}
	t.Err = err
	return nil
}

// Duration возвращает длительность выполнения.
func (t *TaskResult) Duration() time.Duration {
	if t.StartedAt.IsZero() || t.FinishedAt.IsZero() {
		return 0
	}
	return t.FinishedAt.Sub(t.StartedAt)
}

// StepResult — результат позиции плана: задача или вложенный workflow.
type StepResult struct {
	Task     *TaskResult
	Workflow *WorkflowResult
}

// failed сообщает, что шаг завершился неуспешно.
func (s StepResult) failed() bool {
	if s.Task != nil {
		return s.Task.Status == domain.TaskStatusFailed
	}
	return s.Workflow.Status == domain.WorkflowStatusFailed
}

func (s StepResult) err() error {
	if s.Task != nil {
		return s.Task.Err
	}
	return s.Workflow.Err
}

// WorkflowResult — результат плана; дерево повторяет engine.Plan.
type WorkflowResult struct {
	Workflow   string
	Path       string
	Mode       domain.Mode
	Status     domain.WorkflowStatus
	Err        error // первая ошибка в порядке объявления
	Steps      []StepResult
	StartedAt  time.Time
	FinishedAt time.Time
}

func newWorkflowResult(plan *engine.Plan) *WorkflowResult {
	res := &WorkflowResult{
		Workflow: plan.Workflow,
		Path:     plan.Path,
		Mode:     plan.Mode,
		Status:   domain.WorkflowStatusPending,
		Steps:    make([]StepResult, len(plan.Steps)),
	}
	for i, step := range plan.Steps {
		if step.IsLeaf() {
			res.Steps[i].Task = newTaskResult(plan.Workflow, step)
		} else {
			res.Steps[i].Workflow = newWorkflowResult(step.Plan)
		}
	}
	return res
}

// finish выставляет итоговый статус по результатам шагов.
// Итог не зависит от порядка завершения параллельных шагов.
func (w *WorkflowResult) finish() {
	w.Status = domain.WorkflowStatusCompleted
	w.Err = nil
	for _, s := range w.Steps {
		if s.failed() {
			w.Status = domain.WorkflowStatusFailed
			w.Err = fmt.Errorf("workflow %s: %w", w.Workflow, s.err())
			break
		}
	}
	if w.Status == domain.WorkflowStatusCompleted {
		for _, s := range w.Steps {
			// Задачи, не дошедшие до терминального статуса, тоже неуспех
			if s.Task != nil && !s.Task.Status.IsTerminal() {
				w.Status = domain.WorkflowStatusFailed
				w.Err = fmt.Errorf("workflow %s: task %s did not finish", w.Workflow, s.Task.ID)
				break
			}
		}
	}
	w.FinishedAt = time.Now()
}

// Tasks возвращает все листовые задачи в порядке обхода плана.
func (w *WorkflowResult) Tasks() []*TaskResult {
	var tasks []*TaskResult
	for _, s := range w.Steps {
		if s.Task != nil {
			tasks = append(tasks, s.Task)
		} else {
			tasks = append(tasks, s.Workflow.Tasks()...)
		}
	}
	return tasks
}

// Failed возвращает упавшие задачи.
func (w *WorkflowResult) Failed() []*TaskResult {
	var failed []*TaskResult
	for _, t := range w.Tasks() {
		if t.Status == domain.TaskStatusFailed {
			failed = append(failed, t)
		}
	}
	return failed
}

// Find возвращает задачу по ID шага.
func (w *WorkflowResult) Find(id string) (*TaskResult, bool) {
	for _, t := range w.Tasks() {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}
