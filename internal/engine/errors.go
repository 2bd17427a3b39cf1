package engine

import (
	"errors"
	"strings"
)

// Ошибки разрешения плана.
var (
	// ErrCyclicReference — workflow транзитивно вызывает сам себя.
	ErrCyclicReference = errors.New("cyclic workflow reference")

	// ErrWorkflowNotFound — запрошенный workflow не объявлен.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrNoDefaultWorkflow — имя не указано, а workflow по умолчанию нет.
	ErrNoDefaultWorkflow = errors.New("no default workflow")
)

// CycleError — цикл ссылок workflow.run.
type CycleError struct {
	// Path — цепочка имён, первое и последнее совпадают: [A B A].
	Path []string
}

// Error реализует интерфейс error.
func (e *CycleError) Error() string {
	return "cyclic workflow reference: " + strings.Join(e.Path, " -> ")
}

// Unwrap возвращает ErrCyclicReference.
func (e *CycleError) Unwrap() error {
	return ErrCyclicReference
}
