package manifest

import (
	"fmt"
	"strings"

	"github.com/shaiso/Autorun/internal/domain"
)

const (
	minPort = 1
	maxPort = 65535
)

// Validate выполняет полную валидацию Registry.
//
// Проверяет:
//   - Уникальность и непустоту имён workflows
//   - Режимы выполнения и типы задач
//   - Разрешимость ссылок workflow.run и runButton
//   - Однозначность workflow по умолчанию
//   - Диапазоны и уникальность портов, наличие waitForPort в ports
//   - Дескриптор развёртывания
//
// Циклы ссылок между workflows проверяет engine при разрешении плана.
// Возвращает ValidationErrors со всеми найденными ошибками.
func Validate(reg *domain.Registry) error {
	var errs errorList
	validate(reg, &errs)
	return errs.err()
}

func validate(reg *domain.Registry, errs *errorList) {
	names := validateWorkflowNames(reg, errs)
	mapped := validatePorts(reg, errs)

	for i := range reg.Workflows {
		validateWorkflow(&reg.Workflows[i], fmt.Sprintf("workflows.workflow[%d]", i), names, mapped, errs)
	}

	validateDefault(reg, names, errs)
	validateDeployment(reg.Deployment, errs)
}

// validateWorkflowNames проверяет имена и возвращает множество объявленных имён.
func validateWorkflowNames(reg *domain.Registry, errs *errorList) map[string]bool {
	names := make(map[string]bool, len(reg.Workflows))

	for i := range reg.Workflows {
		name := reg.Workflows[i].Name
		path := fmt.Sprintf("workflows.workflow[%d].name", i)

		if strings.TrimSpace(name) == "" {
			errs.add(path, ErrEmptyName, "workflow has empty name")
			continue
		}
		if names[name] {
			errs.add(path, ErrDuplicateWorkflow, "duplicate workflow name: %s", name)
			continue
		}
		names[name] = true
	}

	return names
}

// validateWorkflow проверяет режим и задачи одного workflow.
func validateWorkflow(wf *domain.Workflow, path string, names map[string]bool, mapped map[int]bool, errs *errorList) {
	if !wf.Mode.IsValid() {
		errs.add(path+".mode", ErrUnknownMode, "unknown mode: %q", wf.Mode)
	}

	for j, task := range wf.Tasks {
		taskPath := fmt.Sprintf("%s.tasks[%d]", path, j)

		if !task.Kind.IsValid() {
			errs.add(taskPath+".task", ErrUnknownTaskKind, "unknown task kind: %q", task.Kind)
			continue
		}

		switch task.Kind {
		case domain.TaskKindShellExec:
			if strings.TrimSpace(task.Args) == "" {
				errs.add(taskPath+".args", ErrEmptyArgs, "shell.exec requires a command")
			}
		case domain.TaskKindWorkflowRun:
			if task.Args == "" {
				errs.add(taskPath+".args", ErrEmptyArgs, "workflow.run requires a workflow name")
			} else if !names[task.Args] {
				errs.add(taskPath+".args", ErrUnresolvedReference, "workflow %q is not declared", task.Args)
			}
		}

		if task.WaitForPort != 0 {
			portPath := taskPath + ".waitForPort"
			switch {
			case task.Kind == domain.TaskKindWorkflowRun:
				errs.add(portPath, ErrPortRange, "workflow.run tasks cannot wait for a port")
			case !inRange(task.WaitForPort):
				errs.add(portPath, ErrPortRange, "waitForPort must be in range %d..%d, got %d", minPort, maxPort, task.WaitForPort)
			case !mapped[task.WaitForPort]:
				errs.add(portPath, ErrUnmappedPort, "port %d is not declared in ports", task.WaitForPort)
			}
		}
	}
}

// validatePorts проверяет таблицу портов и возвращает множество локальных портов.
// Ненулевой externalPort тоже должен быть уникален.
func validatePorts(reg *domain.Registry, errs *errorList) map[int]bool {
	local := make(map[int]bool, len(reg.Ports))
	external := make(map[int]bool, len(reg.Ports))

	for i, p := range reg.Ports {
		path := fmt.Sprintf("ports[%d]", i)

		if !inRange(p.LocalPort) {
			errs.add(path+".localPort", ErrPortRange, "localPort must be in range %d..%d, got %d", minPort, maxPort, p.LocalPort)
		} else if local[p.LocalPort] {
			errs.add(path+".localPort", ErrDuplicatePort, "localPort %d is mapped more than once", p.LocalPort)
		} else {
			local[p.LocalPort] = true
		}

		if p.ExternalPort == 0 {
			continue
		}
		if !inRange(p.ExternalPort) {
			errs.add(path+".externalPort", ErrPortRange, "externalPort must be in range %d..%d, got %d", minPort, maxPort, p.ExternalPort)
		} else if external[p.ExternalPort] {
			errs.add(path+".externalPort", ErrDuplicatePort, "externalPort %d is used by more than one mapping", p.ExternalPort)
		} else {
			external[p.ExternalPort] = true
		}
	}

	return local
}

// validateDefault проверяет runButton и однозначность точки входа.
func validateDefault(reg *domain.Registry, names map[string]bool, errs *errorList) {
	if reg.RunButton != "" && !names[reg.RunButton] {
		errs.add("workflows.runButton", ErrUnresolvedReference, "workflow %q is not declared", reg.RunButton)
	}

	candidates := reg.DefaultCandidates()
	if len(candidates) > 1 {
		errs.add("workflows.runButton", ErrAmbiguousDefault,
			"default workflow is ambiguous, candidates: %s", strings.Join(candidates, ", "))
		return
	}

	// Дубликат имени точки входа тоже делает её неоднозначной
	if len(candidates) == 1 {
		count := 0
		for i := range reg.Workflows {
			if reg.Workflows[i].Name == candidates[0] {
				count++
			}
		}
		if count > 1 {
			errs.add("workflows.runButton", ErrAmbiguousDefault,
				"default workflow %q is declared %d times", candidates[0], count)
		}
	}
}

// validateDeployment проверяет дескриптор развёртывания.
func validateDeployment(d *domain.DeploymentDescriptor, errs *errorList) {
	if d == nil {
		return
	}

	if !d.Target.IsValid() {
		errs.add("deployment.deploymentTarget", ErrUnknownTarget, "unknown deployment target: %q", d.Target)
	}

	if len(d.Run) == 0 {
		errs.add("deployment.run", ErrEmptyCommand, "run command is required")
	}
	validateCommand("deployment.run", d.Run, errs)
	validateCommand("deployment.build", d.Build, errs)
}

func validateCommand(path string, argv []string, errs *errorList) {
	for i, token := range argv {
		if strings.TrimSpace(token) == "" {
			errs.add(fmt.Sprintf("%s[%d]", path, i), ErrEmptyCommand, "command token is empty")
		}
	}
}

func inRange(port int) bool {
	return port >= minPort && port <= maxPort
}
