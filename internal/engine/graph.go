package engine

import (
	"github.com/shaiso/Autorun/internal/domain"
)

// Graph — ориентированный граф ссылок между workflows.
//
// Ребро A → B означает, что A содержит задачу workflow.run с args = B.
type Graph struct {
	// order — имена в порядке объявления, обход детерминирован.
	order []string

	// edges — name → имена, на которые ссылается workflow (в порядке задач).
	edges map[string][]string
}

// BuildGraph строит граф ссылок по Registry.
//
// Ссылки на необъявленные workflows сохраняются как рёбра в узлы без
// исходящих рёбер: их отсутствие обнаруживается в Resolve.
func BuildGraph(reg *domain.Registry) *Graph {
	g := &Graph{
		order: make([]string, 0, len(reg.Workflows)),
		edges: make(map[string][]string, len(reg.Workflows)),
	}

	for i := range reg.Workflows {
		wf := &reg.Workflows[i]
		if _, seen := g.edges[wf.Name]; seen {
			continue
		}
		g.order = append(g.order, wf.Name)
		g.edges[wf.Name] = wf.References()
	}

	return g
}

// References возвращает имена workflows, которые вызывает name.
func (g *Graph) References(name string) []string {
	return g.edges[name]
}

// Size возвращает количество узлов графа.
func (g *Graph) Size() int {
	return len(g.order)
}

// Цвета вершин при обходе в глубину.
const (
	white = iota // не посещена
	grey         // на текущем пути (visiting)
	black        // полностью обработана
)

// frame — кадр явного стека обхода.
type frame struct {
	name string
	next int // индекс следующего ребра
}

// DetectCycle ищет цикл обходом в глубину с множеством посещаемых вершин.
//
// Обход итеративный (явный стек), глубина ссылок не ограничена стеком
// горутины. Возвращает *CycleError с путём первого найденного цикла.
func (g *Graph) DetectCycle() error {
	color := make(map[string]int, len(g.order))

	for _, root := range g.order {
		if color[root] != white {
			continue
		}

		stack := []frame{{name: root}}
		color[root] = grey

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			refs := g.edges[top.name]

			if top.next == len(refs) {
				color[top.name] = black
				stack = stack[:len(stack)-1]
				continue
			}

			ref := refs[top.next]
			top.next++

			switch color[ref] {
			case grey:
				return &CycleError{Path: cyclePath(stack, ref)}
			case white:
				color[ref] = grey
				stack = append(stack, frame{name: ref})
			}
		}
	}

	return nil
}

// cyclePath вырезает цикл из стека: от первого вхождения ref до вершины и обратно в ref.
func cyclePath(stack []frame, ref string) []string {
	start := 0
	for i := range stack {
		if stack[i].name == ref {
			start = i
			break
		}
	}

	path := make([]string, 0, len(stack)-start+1)
	for _, f := range stack[start:] {
		path = append(path, f.name)
	}
	return append(path, ref)
}
