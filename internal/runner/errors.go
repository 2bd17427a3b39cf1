package runner

import (
	"errors"
	"fmt"
	"time"
)

// Ошибки выполнения.
var (
	// ErrUnknownTaskKind — нет executor'а для типа задачи.
	ErrUnknownTaskKind = errors.New("unknown task kind")

	// ErrInvalidTransition — недопустимый переход статуса задачи.
	ErrInvalidTransition = errors.New("invalid task status transition")

	// ErrTaskFailed — внешняя команда завершилась с ошибкой.
	ErrTaskFailed = errors.New("task failed")

	// ErrPortTimeout — порт не открылся за отведённое время или число попыток.
	ErrPortTimeout = errors.New("timed out waiting for port")

	// ErrProcessExited — процесс завершился раньше, чем открылся порт.
	ErrProcessExited = errors.New("process exited before port opened")

	// ErrCancelled — запуск отменён внешним сигналом.
	ErrCancelled = errors.New("run cancelled")
)

// TaskExecutionError — ненулевой код выхода или ошибка запуска внешней команды.
type TaskExecutionError struct {
	Workflow string // имя workflow
	Task     string // ID шага плана
	Command  string // команда (args задачи)
	ExitCode int    // код выхода, -1 если процесс не запустился или убит сигналом
	Err      error  // причина
}

// Error реализует интерфейс error.
func (e *TaskExecutionError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("task %s: %q exited with code %d", e.Task, e.Command, e.ExitCode)
	}
	return fmt.Sprintf("task %s: %q: %v", e.Task, e.Command, e.Err)
}

// Unwrap позволяет errors.Is находить ErrTaskFailed и причину.
func (e *TaskExecutionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTaskFailed}
	}
	return []error{ErrTaskFailed, e.Err}
}

// PortTimeoutError — readiness gate не выполнен в пределах бюджета.
type PortTimeoutError struct {
	Workflow string        // имя workflow
	Task     string        // ID шага плана
	Port     int           // ожидаемый локальный порт
	Attempts int           // сделано попыток подключения
	Elapsed  time.Duration // прошло времени
}

// Error реализует интерфейс error.
func (e *PortTimeoutError) Error() string {
	return fmt.Sprintf("task %s: port %d not open after %d attempts (%s)",
		e.Task, e.Port, e.Attempts, e.Elapsed.Round(time.Millisecond))
}

// Unwrap возвращает ErrPortTimeout.
func (e *PortTimeoutError) Unwrap() error {
	return ErrPortTimeout
}
