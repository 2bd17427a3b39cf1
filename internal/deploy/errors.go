package deploy

import (
	"errors"
	"fmt"
	"strings"
)

// Ошибки публикации.
var (
	// ErrNoDeployment — в конфигурации нет секции deployment.
	ErrNoDeployment = errors.New("deployment is not configured")

	// ErrCommandFailed — команда сборки или запуска завершилась с ошибкой.
	ErrCommandFailed = errors.New("deployment command failed")

	// ErrCancelled — публикация прервана до завершения команды.
	ErrCancelled = errors.New("deployment cancelled")
)

// CommandError — ошибка одной фазы публикации.
type CommandError struct {
	Phase    string   // build или run
	Argv     []string // команда
	ExitCode int      // код выхода, -1 если неизвестен
	Err      error    // причина
}

// Error реализует интерфейс error.
func (e *CommandError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Phase, strings.Join(e.Argv, " "), e.Err)
}

// Unwrap позволяет errors.Is находить ErrCommandFailed и причину.
func (e *CommandError) Unwrap() []error {
	return []error{ErrCommandFailed, e.Err}
}
