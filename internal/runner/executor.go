package runner

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/shaiso/Autorun/internal/domain"
)

// Invocation — всё, что executor знает о запускаемой задаче.
type Invocation struct {
	// RunID — ID запуска.
	RunID uuid.UUID

	// StepID — ID шага плана, например "Project/Streamlit Server[1]".
	StepID string

	// Workflow — имя workflow, которому принадлежит задача.
	Workflow string

	// Task — задача из конфигурации.
	Task domain.Task

	// Languages — языки проекта из modules (для packager.installForAll).
	Languages []string
}

// Process — запущенная задача.
//
// Процесс непрозрачен для движка: важны только момент и код завершения.
type Process interface {
	// Done закрывается, когда процесс завершился.
	Done() <-chan struct{}

	// Err возвращает ошибку завершения. Вызывать после Done.
	Err() error

	// ExitCode возвращает код выхода (-1, если неизвестен). Вызывать после Done.
	ExitCode() int

	// Terminate останавливает процесс: SIGTERM, затем SIGKILL после grace.
	// Блокирует до завершения процесса.
	Terminate()
}

// Executor — запуск задачи конкретного типа.
//
// Реализации: ShellExecutor, PackagerExecutor.
// workflow.run обрабатывается движком, executor получает только листовые задачи.
type Executor interface {
	Start(ctx context.Context, inv *Invocation) (Process, error)
}

// Registry — реестр executor'ов по типу задачи.
type Registry struct {
	executors map[domain.TaskKind]Executor
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[domain.TaskKind]Executor)}
}

// DefaultRegistry создаёт реестр с shell.exec и packager.installForAll.
func DefaultRegistry(shell *ShellExecutor) *Registry {
	r := NewRegistry()
	r.Register(domain.TaskKindShellExec, shell)
	r.Register(domain.TaskKindPackagerInstall, NewPackagerExecutor(shell))
	return r
}

// Register добавляет executor для типа задачи.
func (r *Registry) Register(kind domain.TaskKind, executor Executor) {
	r.executors[kind] = executor
}

// Get возвращает executor для типа задачи.
func (r *Registry) Get(kind domain.TaskKind) (Executor, error) {
	executor, ok := r.executors[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskKind, kind)
	}
	return executor, nil
}

// finishedProcess — процесс, который уже завершился (например, нечего устанавливать).
type finishedProcess struct {
	done chan struct{}
	err  error
	code int
}

func newFinishedProcess(code int, err error) *finishedProcess {
	p := &finishedProcess{done: make(chan struct{}), err: err, code: code}
	close(p.done)
	return p
}

func (p *finishedProcess) Done() <-chan struct{} { return p.done }
func (p *finishedProcess) Err() error            { return p.err }
func (p *finishedProcess) ExitCode() int         { return p.code }
func (p *finishedProcess) Terminate()            {}
