package runner

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// InstallRule — команда установки зависимостей для языка.
//
// Правило применяется, если в рабочей директории есть файл File.
type InstallRule struct {
	Language string
	File     string
	Command  string
}

// DefaultInstallRules — правила по умолчанию. Для языка срабатывает
// первое правило, чей файл найден.
var DefaultInstallRules = []InstallRule{
	{Language: "python", File: "uv.lock", Command: "uv sync"},
	{Language: "python", File: "poetry.lock", Command: "poetry install --no-root"},
	{Language: "python", File: "requirements.txt", Command: "pip install -r requirements.txt"},
	{Language: "python", File: "pyproject.toml", Command: "pip install ."},
	{Language: "nodejs", File: "pnpm-lock.yaml", Command: "pnpm install --frozen-lockfile"},
	{Language: "nodejs", File: "yarn.lock", Command: "yarn install --frozen-lockfile"},
	{Language: "nodejs", File: "package-lock.json", Command: "npm ci"},
	{Language: "nodejs", File: "package.json", Command: "npm install"},
	{Language: "go", File: "go.mod", Command: "go mod download"},
	{Language: "rust", File: "Cargo.toml", Command: "cargo fetch"},
	{Language: "ruby", File: "Gemfile", Command: "bundle install"},
}

// PackagerExecutor выполняет packager.installForAll: устанавливает
// зависимости для каждого языка из modules.
//
// Языки без подходящего файла пропускаются. Команды выполняются
// последовательно одним shell-процессом и останавливаются на первой ошибке.
type PackagerExecutor struct {
	shell *ShellExecutor
	rules []InstallRule
}

// NewPackagerExecutor создаёт executor с DefaultInstallRules.
func NewPackagerExecutor(shell *ShellExecutor) *PackagerExecutor {
	return &PackagerExecutor{shell: shell, rules: DefaultInstallRules}
}

// WithRules заменяет таблицу правил.
func (e *PackagerExecutor) WithRules(rules []InstallRule) *PackagerExecutor {
	e.rules = rules
	return e
}

// Commands возвращает команды установки для языков в порядке их объявления.
func (e *PackagerExecutor) Commands(languages []string) []string {
	var commands []string
	for _, lang := range languages {
		for _, rule := range e.rules {
			if rule.Language != lang {
				continue
			}
			if _, err := os.Stat(filepath.Join(e.shell.Dir, rule.File)); err == nil {
				commands = append(commands, rule.Command)
				break
			}
		}
	}
	return commands
}

// Start запускает установку.
func (e *PackagerExecutor) Start(ctx context.Context, inv *Invocation) (Process, error) {
	commands := e.Commands(inv.Languages)
	if len(commands) == 0 {
		logger := e.shell.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Info("nothing to install", "task", inv.StepID, "languages", inv.Languages)
		return newFinishedProcess(0, nil), nil
	}

	return e.shell.start(ctx, inv, strings.Join(commands, " && "))
}
