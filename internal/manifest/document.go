package manifest

import (
	"fmt"
	"strconv"

	"github.com/shaiso/Autorun/internal/domain"
)

// document — представление файла конфигурации на диске.
//
// Одни и те же теги используются для TOML и YAML.
type document struct {
	Modules    []string       `toml:"modules,omitempty" yaml:"modules,omitempty"`
	Nix        *nixDoc        `toml:"nix,omitempty" yaml:"nix,omitempty"`
	Deployment *deploymentDoc `toml:"deployment,omitempty" yaml:"deployment,omitempty"`
	Workflows  *workflowsDoc  `toml:"workflows,omitempty" yaml:"workflows,omitempty"`
	Ports      []portDoc      `toml:"ports,omitempty" yaml:"ports,omitempty"`
}

type nixDoc struct {
	Channel string `toml:"channel,omitempty" yaml:"channel,omitempty"`
}

type deploymentDoc struct {
	DeploymentTarget string   `toml:"deploymentTarget" yaml:"deploymentTarget"`
	Run              []string `toml:"run,omitempty" yaml:"run,omitempty"`
	Build            []string `toml:"build,omitempty" yaml:"build,omitempty"`
}

type workflowsDoc struct {
	RunButton string        `toml:"runButton,omitempty" yaml:"runButton,omitempty"`
	Workflow  []workflowDoc `toml:"workflow,omitempty" yaml:"workflow,omitempty"`
}

type workflowDoc struct {
	Name     string          `toml:"name" yaml:"name"`
	Mode     string          `toml:"mode,omitempty" yaml:"mode,omitempty"`
	Author   any             `toml:"author,omitempty" yaml:"author,omitempty"`
	Metadata map[string]bool `toml:"metadata,omitempty" yaml:"metadata,omitempty"`
	Tasks    []taskDoc       `toml:"tasks,omitempty" yaml:"tasks,omitempty"`
}

type taskDoc struct {
	Task        string `toml:"task" yaml:"task"`
	Args        string `toml:"args,omitempty" yaml:"args,omitempty"`
	WaitForPort *int   `toml:"waitForPort,omitempty" yaml:"waitForPort,omitempty"`
}

type portDoc struct {
	LocalPort    int `toml:"localPort" yaml:"localPort"`
	ExternalPort int `toml:"externalPort,omitempty" yaml:"externalPort,omitempty"`
}

// toRegistry переводит документ в Registry.
//
// Здесь ловятся только ошибки, которые теряются при переводе
// (тип author, явный waitForPort = 0). Остальное проверяет Validate.
func (d *document) toRegistry(errs *errorList) *domain.Registry {
	reg := &domain.Registry{
		Modules: nonEmpty(d.Modules),
	}

	if d.Nix != nil {
		reg.NixChannel = d.Nix.Channel
	}

	if d.Deployment != nil {
		reg.Deployment = &domain.DeploymentDescriptor{
			Target: domain.DeploymentTarget(d.Deployment.DeploymentTarget),
			Run:    nonEmpty(d.Deployment.Run),
			Build:  nonEmpty(d.Deployment.Build),
		}
	}

	if d.Workflows != nil {
		reg.RunButton = d.Workflows.RunButton

		for i, wd := range d.Workflows.Workflow {
			path := fmt.Sprintf("workflows.workflow[%d]", i)
			reg.Workflows = append(reg.Workflows, wd.toWorkflow(path, errs))
		}
	}

	for _, p := range d.Ports {
		reg.Ports = append(reg.Ports, domain.PortMapping{
			LocalPort:    p.LocalPort,
			ExternalPort: p.ExternalPort,
		})
	}

	return reg
}

func (wd *workflowDoc) toWorkflow(path string, errs *errorList) domain.Workflow {
	wf := domain.Workflow{
		Name: wd.Name,
		Mode: domain.Mode(wd.Mode),
	}
	if wf.Mode == "" {
		wf.Mode = domain.ModeSequential
	}

	author, err := parseAuthor(wd.Author)
	if err != nil {
		errs.add(path+".author", ErrInvalidAuthor, "author has type %T", wd.Author)
	}
	wf.Author = author

	if len(wd.Metadata) > 0 {
		wf.Metadata = make(map[string]bool, len(wd.Metadata))
		for k, v := range wd.Metadata {
			wf.Metadata[k] = v
		}
	}

	for j, td := range wd.Tasks {
		task := domain.Task{
			Kind: domain.TaskKind(td.Task),
			Args: td.Args,
		}
		if td.WaitForPort != nil {
			if *td.WaitForPort == 0 {
				errs.add(fmt.Sprintf("%s.tasks[%d].waitForPort", path, j), ErrPortRange,
					"waitForPort must be in range 1..65535, got 0")
			}
			task.WaitForPort = *td.WaitForPort
		}
		wf.Tasks = append(wf.Tasks, task)
	}

	return wf
}

// parseAuthor приводит author (строка или целое число) к domain.Author.
func parseAuthor(v any) (domain.Author, error) {
	switch a := v.(type) {
	case nil:
		return "", nil
	case string:
		return domain.Author(a), nil
	case int:
		return domain.Author(strconv.Itoa(a)), nil
	case int64:
		return domain.Author(strconv.FormatInt(a, 10)), nil
	case uint64:
		return domain.Author(strconv.FormatUint(a, 10)), nil
	default:
		return "", ErrInvalidAuthor
	}
}

// fromRegistry строит документ из Registry для сериализации.
func fromRegistry(reg *domain.Registry) *document {
	d := &document{
		Modules: reg.Modules,
	}

	if reg.NixChannel != "" {
		d.Nix = &nixDoc{Channel: reg.NixChannel}
	}

	if reg.Deployment != nil {
		d.Deployment = &deploymentDoc{
			DeploymentTarget: string(reg.Deployment.Target),
			Run:              reg.Deployment.Run,
			Build:            reg.Deployment.Build,
		}
	}

	if reg.RunButton != "" || len(reg.Workflows) > 0 {
		d.Workflows = &workflowsDoc{RunButton: reg.RunButton}

		for _, wf := range reg.Workflows {
			wd := workflowDoc{
				Name:     wf.Name,
				Mode:     string(wf.Mode),
				Metadata: wf.Metadata,
			}
			if id, ok := wf.Author.ID(); ok {
				wd.Author = id
			} else if wf.Author != "" {
				wd.Author = string(wf.Author)
			}

			for _, t := range wf.Tasks {
				td := taskDoc{Task: string(t.Kind), Args: t.Args}
				if t.WaitForPort != 0 {
					port := t.WaitForPort
					td.WaitForPort = &port
				}
				wd.Tasks = append(wd.Tasks, td)
			}

			d.Workflows.Workflow = append(d.Workflows.Workflow, wd)
		}
	}

	for _, p := range reg.Ports {
		d.Ports = append(d.Ports, portDoc{LocalPort: p.LocalPort, ExternalPort: p.ExternalPort})
	}

	return d
}

// nonEmpty возвращает nil для пустых срезов: пустая секция и отсутствующая секция равны.
func nonEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
