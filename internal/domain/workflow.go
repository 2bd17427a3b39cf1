package domain

import (
	"strconv"
)

// TaskKind — тип задачи в workflow.
type TaskKind string

const (
	// TaskKindShellExec — выполнение shell-команды.
	TaskKindShellExec TaskKind = "shell.exec"

	// TaskKindPackagerInstall — установка зависимостей для всех объявленных языков.
	TaskKindPackagerInstall TaskKind = "packager.installForAll"

	// TaskKindWorkflowRun — запуск другого workflow по имени.
	TaskKindWorkflowRun TaskKind = "workflow.run"
)

// IsValid проверяет, что тип задачи известен.
func (k TaskKind) IsValid() bool {
	switch k {
	case TaskKindShellExec, TaskKindPackagerInstall, TaskKindWorkflowRun:
		return true
	default:
		return false
	}
}

// Mode — режим выполнения задач внутри workflow.
type Mode string

const (
	// ModeSequential — задачи выполняются строго по порядку объявления.
	ModeSequential Mode = "sequential"

	// ModeParallel — все задачи стартуют одновременно.
	ModeParallel Mode = "parallel"
)

// IsValid проверяет, что режим известен.
func (m Mode) IsValid() bool {
	return m == ModeSequential || m == ModeParallel
}

// Известные флаги metadata.
const (
	// MetaRestartOnSave — перезапуск workflow при сохранении файлов.
	MetaRestartOnSave = "agentRequireRestartOnSave"

	// MetaRestartOnSaveShort — альтернативное написание того же флага.
	MetaRestartOnSaveShort = "requireRestartOnSave"

	// MetaRunButton — workflow претендует на роль точки входа по умолчанию.
	MetaRunButton = "runButton"
)

// Task — одна исполняемая единица внутри workflow.
//
// Task неизменяем после парсинга и принадлежит своему Workflow.
type Task struct {
	// Kind — тип задачи.
	Kind TaskKind

	// Args — аргумент задачи: shell-команда или имя workflow для workflow.run.
	Args string

	// WaitForPort — локальный порт, открытие которого завершает задачу.
	// 0 — gate отсутствует.
	WaitForPort int
}

// HasPortGate возвращает true, если задача ждёт открытия порта.
func (t Task) HasPortGate() bool {
	return t.WaitForPort != 0
}

// Author — автор workflow. В документе может быть строкой или числом.
type Author string

// ID возвращает числовое представление автора, если оно есть.
func (a Author) ID() (int64, bool) {
	if a == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(string(a), 10, 64)
	if err != nil || strconv.FormatInt(id, 10) != string(a) {
		return 0, false
	}
	return id, true
}

// Workflow — именованный упорядоченный набор задач с режимом выполнения.
type Workflow struct {
	// Name — уникальное имя workflow в рамках Registry.
	Name string

	// Mode — режим выполнения задач.
	Mode Mode

	// Author — автор workflow (строка или число).
	Author Author

	// Tasks — задачи в порядке объявления.
	Tasks []Task

	// Metadata — флаги workflow (например, agentRequireRestartOnSave).
	Metadata map[string]bool
}

// RequireRestartOnSave возвращает политику перезапуска при сохранении.
func (w *Workflow) RequireRestartOnSave() bool {
	return w.Metadata[MetaRestartOnSave] || w.Metadata[MetaRestartOnSaveShort]
}

// IsRunButtonCandidate возвращает true, если workflow помечен флагом runButton.
func (w *Workflow) IsRunButtonCandidate() bool {
	return w.Metadata[MetaRunButton]
}

// References возвращает имена workflow, на которые ссылаются задачи workflow.run.
func (w *Workflow) References() []string {
	var refs []string
	for _, t := range w.Tasks {
		if t.Kind == TaskKindWorkflowRun {
			refs = append(refs, t.Args)
		}
	}
	return refs
}
