package domain

import "strings"

// PortMapping — соответствие локального порта процесса внешнему порту.
type PortMapping struct {
	// LocalPort — порт, который слушает процесс.
	LocalPort int

	// ExternalPort — внешний порт. 0 — порт не публикуется наружу.
	ExternalPort int
}

// DeploymentTarget — режим развёртывания.
type DeploymentTarget string

const (
	DeploymentAutoscale DeploymentTarget = "autoscale"
	DeploymentStatic    DeploymentTarget = "static"
	DeploymentReserved  DeploymentTarget = "reservedvm"
	DeploymentScheduled DeploymentTarget = "scheduled"
	DeploymentGCE       DeploymentTarget = "gce"
	DeploymentCloudRun  DeploymentTarget = "cloudrun"
)

// IsValid проверяет, что режим развёртывания известен.
func (t DeploymentTarget) IsValid() bool {
	switch t {
	case DeploymentAutoscale, DeploymentStatic, DeploymentReserved,
		DeploymentScheduled, DeploymentGCE, DeploymentCloudRun:
		return true
	default:
		return false
	}
}

// DeploymentDescriptor — команда и режим для постоянного развёртывания.
type DeploymentDescriptor struct {
	// Target — режим развёртывания.
	Target DeploymentTarget

	// Run — команда запуска в argv-форме.
	Run []string

	// Build — необязательная команда сборки, выполняется перед Run.
	Build []string
}

// Registry — загруженная конфигурация: все workflows, порты и deployment.
//
// Registry неизменяем после загрузки. Изменение конфигурации требует
// повторной загрузки, а не модификации на месте.
type Registry struct {
	// Modules — идентификаторы языков/рантаймов (например, "python-3.11").
	Modules []string

	// NixChannel — канал nix, передаётся без изменений.
	NixChannel string

	// Workflows — workflows в порядке объявления.
	Workflows []Workflow

	// RunButton — имя workflow по умолчанию (workflows.runButton).
	RunButton string

	// Ports — таблица портов.
	Ports []PortMapping

	// Deployment — дескриптор развёртывания (nil, если секции нет).
	Deployment *DeploymentDescriptor
}

// Workflow возвращает workflow по имени.
func (r *Registry) Workflow(name string) (*Workflow, bool) {
	for i := range r.Workflows {
		if r.Workflows[i].Name == name {
			return &r.Workflows[i], true
		}
	}
	return nil, false
}

// DefaultCandidates возвращает имена workflows, претендующих на роль точки входа.
//
// Кандидаты: workflow из workflows.runButton и все workflows с metadata runButton = true.
// Порядок — порядок объявления, без повторов.
func (r *Registry) DefaultCandidates() []string {
	var names []string
	seen := make(map[string]bool)

	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	if r.RunButton != "" {
		add(r.RunButton)
	}
	for i := range r.Workflows {
		if r.Workflows[i].IsRunButtonCandidate() {
			add(r.Workflows[i].Name)
		}
	}
	return names
}

// DefaultWorkflow возвращает workflow по умолчанию.
//
// Возвращает false, если точка входа не определена или неоднозначна.
func (r *Registry) DefaultWorkflow() (*Workflow, bool) {
	candidates := r.DefaultCandidates()
	switch {
	case len(candidates) == 1:
		return r.Workflow(candidates[0])
	case len(candidates) == 0 && len(r.Workflows) == 1:
		return &r.Workflows[0], true
	default:
		return nil, false
	}
}

// Port возвращает маппинг для локального порта.
func (r *Registry) Port(local int) (PortMapping, bool) {
	for _, p := range r.Ports {
		if p.LocalPort == local {
			return p, true
		}
	}
	return PortMapping{}, false
}

// PrimaryPort возвращает локальный порт, опубликованный на внешний 80,
// либо первый объявленный порт.
func (r *Registry) PrimaryPort() (int, bool) {
	for _, p := range r.Ports {
		if p.ExternalPort == 80 {
			return p.LocalPort, true
		}
	}
	if len(r.Ports) > 0 {
		return r.Ports[0].LocalPort, true
	}
	return 0, false
}

// Languages возвращает языки из Modules без версии ("python-3.11" → "python").
func (r *Registry) Languages() []string {
	langs := make([]string, 0, len(r.Modules))
	seen := make(map[string]bool)
	for _, m := range r.Modules {
		lang := m
		if i := strings.IndexByte(m, '-'); i > 0 {
			lang = m[:i]
		}
		if !seen[lang] {
			seen[lang] = true
			langs = append(langs, lang)
		}
	}
	return langs
}
