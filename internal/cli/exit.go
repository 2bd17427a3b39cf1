package cli

import (
	"errors"

	"github.com/shaiso/Autorun/internal/deploy"
	"github.com/shaiso/Autorun/internal/runner"
)

// Коды выхода.
const (
	ExitOK          = 0
	ExitConfig      = 1   // конфигурация, валидация, цикл, использование
	ExitTaskFailed  = 2   // задача упала или запуск отменён
	ExitPortTimeout = 124 // хотя бы одна задача не дождалась порта
)

// RunError — неуспешный запуск workflow.
//
// Unwrap отдаёт итоговую ошибку и ошибки всех упавших задач, поэтому
// errors.Is находит таймаут порта, даже если первой упала другая задача.
type RunError struct {
	Err    error
	Failed []*runner.TaskResult
}

// Error реализует интерфейс error.
func (e *RunError) Error() string {
	return e.Err.Error()
}

// Unwrap возвращает ошибку запуска и ошибки задач.
func (e *RunError) Unwrap() []error {
	errs := []error{e.Err}
	for _, t := range e.Failed {
		if t.Err != nil {
			errs = append(errs, t.Err)
		}
	}
	return errs
}

// ExitCode переводит ошибку команды в код выхода процесса.
func ExitCode(err error) int {
	var runErr *RunError
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, runner.ErrPortTimeout):
		return ExitPortTimeout
	case errors.As(err, &runErr),
		errors.Is(err, runner.ErrTaskFailed),
		errors.Is(err, runner.ErrCancelled),
		errors.Is(err, deploy.ErrCommandFailed),
		errors.Is(err, deploy.ErrCancelled):
		return ExitTaskFailed
	default:
		return ExitConfig
	}
}
