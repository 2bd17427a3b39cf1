package manifest

import (
	"errors"
	"fmt"
	"strings"
)

// Ошибки валидации документа.
var (
	// ErrSyntax — документ не разбирается или не соответствует схеме.
	ErrSyntax = errors.New("malformed document")

	// ErrEmptyName — workflow без имени.
	ErrEmptyName = errors.New("workflow has empty name")

	// ErrDuplicateWorkflow — несколько workflows с одинаковым именем.
	ErrDuplicateWorkflow = errors.New("duplicate workflow name")

	// ErrUnknownMode — неизвестный режим выполнения.
	ErrUnknownMode = errors.New("unknown workflow mode")

	// ErrUnknownTaskKind — неизвестный тип задачи.
	ErrUnknownTaskKind = errors.New("unknown task kind")

	// ErrEmptyArgs — задаче не хватает аргумента.
	ErrEmptyArgs = errors.New("task has empty args")

	// ErrUnresolvedReference — ссылка на несуществующий workflow.
	ErrUnresolvedReference = errors.New("reference to unknown workflow")

	// ErrAmbiguousDefault — несколько кандидатов на workflow по умолчанию.
	ErrAmbiguousDefault = errors.New("ambiguous default workflow")

	// ErrPortRange — номер порта вне диапазона 1..65535.
	ErrPortRange = errors.New("port out of range")

	// ErrDuplicatePort — порт встречается в таблице портов более одного раза.
	ErrDuplicatePort = errors.New("duplicate port mapping")

	// ErrUnmappedPort — waitForPort не объявлен в таблице портов.
	ErrUnmappedPort = errors.New("port is not declared in ports")

	// ErrUnknownTarget — неизвестный режим развёртывания.
	ErrUnknownTarget = errors.New("unknown deployment target")

	// ErrEmptyCommand — пустая команда или пустой токен команды.
	ErrEmptyCommand = errors.New("empty command")

	// ErrInvalidAuthor — author не строка и не целое число.
	ErrInvalidAuthor = errors.New("author must be a string or an integer")
)

// ValidationError — ошибка валидации с путём до поля.
type ValidationError struct {
	Path    string // путь до поля, например workflows.workflow[0].tasks[1].args
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return e.Path + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(path, message string, err error) *ValidationError {
	return &ValidationError{
		Path:    path,
		Message: message,
		Err:     err,
	}
}

// ValidationErrors — набор ошибок валидации одного документа.
type ValidationErrors []*ValidationError

// Error реализует интерфейс error.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return "invalid configuration: " + e[0].Error()
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid configuration (%d errors):\n  - %s", len(e), strings.Join(msgs, "\n  - "))
}

// Unwrap позволяет errors.Is/As находить отдельные ошибки.
func (e ValidationErrors) Unwrap() []error {
	errs := make([]error, len(e))
	for i, err := range e {
		errs[i] = err
	}
	return errs
}

// errorList накапливает ошибки валидации.
type errorList struct {
	errs ValidationErrors
}

func (l *errorList) add(path string, err error, format string, args ...any) {
	l.errs = append(l.errs, NewValidationError(path, fmt.Sprintf(format, args...), err))
}

func (l *errorList) err() error {
	if len(l.errs) == 0 {
		return nil
	}
	return l.errs
}
