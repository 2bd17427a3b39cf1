package engine

import (
	"fmt"

	"github.com/shaiso/Autorun/internal/domain"
)

// Plan — раскрытый workflow.
//
// Задачи workflow.run заменены вложенными планами, каждый из которых
// сохраняет собственный режим и занимает одну позицию в родителе.
type Plan struct {
	// Workflow — имя workflow.
	Workflow string

	// Mode — режим выполнения шагов этого плана.
	Mode domain.Mode

	// Path — цепочка имён от корня, например "Project/Streamlit Server".
	Path string

	// Steps — шаги в порядке объявления задач.
	Steps []Step
}

// Step — позиция в плане: листовая задача или вложенный план.
type Step struct {
	// ID — уникальный в пределах плана идентификатор, например "Project/Streamlit Server[1]".
	ID string

	// Index — порядковый номер задачи в workflow.
	Index int

	// Task — исходная задача.
	Task domain.Task

	// Plan — раскрытие workflow.run. nil для листовой задачи.
	Plan *Plan
}

// IsLeaf возвращает true для задач, исполняемых напрямую.
func (s Step) IsLeaf() bool {
	return s.Plan == nil
}

// Walk обходит план в глубину в порядке объявления.
// fn вызывается для каждого шага вместе с планом, которому он принадлежит.
func (p *Plan) Walk(fn func(parent *Plan, step Step)) {
	for _, step := range p.Steps {
		fn(p, step)
		if step.Plan != nil {
			step.Plan.Walk(fn)
		}
	}
}

// Leaves возвращает листовые задачи в порядке обхода.
func (p *Plan) Leaves() []Step {
	var leaves []Step
	p.Walk(func(_ *Plan, step Step) {
		if step.IsLeaf() {
			leaves = append(leaves, step)
		}
	})
	return leaves
}

// Depth возвращает глубину вложенности: 1 для плана без workflow.run.
func (p *Plan) Depth() int {
	depth := 0
	for _, step := range p.Steps {
		if step.Plan != nil {
			if d := step.Plan.Depth(); d > depth {
				depth = d
			}
		}
	}
	return depth + 1
}

// Resolver раскрывает workflows в планы.
type Resolver struct {
	reg   *domain.Registry
	graph *Graph
}

// NewResolver строит граф ссылок и проверяет его на циклы.
//
// Цикл в любом workflow registry — ошибка, даже если запрошенный
// workflow его не затрагивает.
func NewResolver(reg *domain.Registry) (*Resolver, error) {
	graph := BuildGraph(reg)
	if err := graph.DetectCycle(); err != nil {
		return nil, err
	}
	return &Resolver{reg: reg, graph: graph}, nil
}

// Graph возвращает граф ссылок.
func (r *Resolver) Graph() *Graph {
	return r.graph
}

// Resolve возвращает план для workflow name.
// Пустое имя — workflow по умолчанию.
func (r *Resolver) Resolve(name string) (*Plan, error) {
	var root *domain.Workflow
	if name == "" {
		wf, ok := r.reg.DefaultWorkflow()
		if !ok {
			return nil, ErrNoDefaultWorkflow
		}
		root = wf
	} else {
		wf, ok := r.reg.Workflow(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, name)
		}
		root = wf
	}

	plan := newPlan(root, root.Name)

	// Раскрытие через очередь: каждый план заполняется ровно один раз,
	// граф уже проверен на циклы.
	type pending struct {
		plan *Plan
		wf   *domain.Workflow
	}
	queue := []pending{{plan: plan, wf: root}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for i, task := range cur.wf.Tasks {
			step := Step{
				ID:    fmt.Sprintf("%s[%d]", cur.plan.Path, i),
				Index: i,
				Task:  task,
			}

			if task.Kind == domain.TaskKindWorkflowRun {
				child, ok := r.reg.Workflow(task.Args)
				if !ok {
					return nil, fmt.Errorf("%w: %s (referenced from %s)", ErrWorkflowNotFound, task.Args, step.ID)
				}
				step.Plan = newPlan(child, cur.plan.Path+"/"+child.Name)
				queue = append(queue, pending{plan: step.Plan, wf: child})
			}

			cur.plan.Steps = append(cur.plan.Steps, step)
		}
	}

	return plan, nil
}

func newPlan(wf *domain.Workflow, path string) *Plan {
	mode := wf.Mode
	if mode == "" {
		mode = domain.ModeSequential
	}
	return &Plan{
		Workflow: wf.Name,
		Mode:     mode,
		Path:     path,
		Steps:    make([]Step, 0, len(wf.Tasks)),
	}
}
