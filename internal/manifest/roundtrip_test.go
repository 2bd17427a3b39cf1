package manifest

import (
	"reflect"
	"strconv"
	"testing"

	"pgregory.net/rapid"

	"github.com/shaiso/Autorun/internal/domain"
)

// genRegistry генерирует валидный Registry.
func genRegistry() *rapid.Generator[*domain.Registry] {
	return rapid.Custom(func(t *rapid.T) *domain.Registry {
		reg := &domain.Registry{}

		if rapid.Bool().Draw(t, "hasModules") {
			reg.Modules = rapid.SliceOfN(rapid.StringMatching(`[a-z]{2,8}-[0-9]{1,2}`), 1, 3).Draw(t, "modules")
		}
		if rapid.Bool().Draw(t, "hasNix") {
			reg.NixChannel = rapid.StringMatching(`stable-2[0-9]_0[1-9]`).Draw(t, "nix")
		}

		// Порты
		locals := rapid.SliceOfNDistinct(rapid.IntRange(1, 65535), 0, 4, rapid.ID[int]).Draw(t, "locals")
		externals := rapid.SliceOfNDistinct(rapid.IntRange(1, 65535), len(locals), len(locals), rapid.ID[int]).Draw(t, "externals")
		for i, local := range locals {
			p := domain.PortMapping{LocalPort: local}
			if rapid.Bool().Draw(t, "exposed") {
				p.ExternalPort = externals[i]
			}
			reg.Ports = append(reg.Ports, p)
		}

		// Workflows
		names := rapid.SliceOfNDistinct(rapid.StringMatching(`[A-Z][a-zA-Z0-9 ]{0,12}`), 0, 4, rapid.ID[string]).Draw(t, "names")
		for _, name := range names {
			reg.Workflows = append(reg.Workflows, genWorkflow(t, name, names, locals))
		}
		if len(names) > 0 && rapid.Bool().Draw(t, "hasRunButton") {
			reg.RunButton = rapid.SampledFrom(names).Draw(t, "runButton")
		}

		if rapid.Bool().Draw(t, "hasDeployment") {
			d := &domain.DeploymentDescriptor{
				Target: rapid.SampledFrom([]domain.DeploymentTarget{
					domain.DeploymentAutoscale, domain.DeploymentStatic, domain.DeploymentReserved,
					domain.DeploymentScheduled, domain.DeploymentGCE, domain.DeploymentCloudRun,
				}).Draw(t, "target"),
				Run: rapid.SliceOfN(rapid.StringMatching(`[a-z0-9._-]{1,10}`), 1, 5).Draw(t, "run"),
			}
			if rapid.Bool().Draw(t, "hasBuild") {
				d.Build = rapid.SliceOfN(rapid.StringMatching(`[a-z0-9._-]{1,10}`), 1, 3).Draw(t, "build")
			}
			reg.Deployment = d
		}

		return reg
	})
}

func genWorkflow(t *rapid.T, name string, names []string, ports []int) domain.Workflow {
	wf := domain.Workflow{
		Name: name,
		Mode: rapid.SampledFrom([]domain.Mode{domain.ModeSequential, domain.ModeParallel}).Draw(t, "mode"),
	}

	switch rapid.IntRange(0, 2).Draw(t, "authorKind") {
	case 1:
		wf.Author = domain.Author(rapid.StringMatching(`[a-z]{1,8}`).Draw(t, "author"))
	case 2:
		wf.Author = domain.Author(strconv.FormatInt(rapid.Int64Range(0, 1<<40).Draw(t, "authorID"), 10))
	}

	if rapid.Bool().Draw(t, "hasMetadata") {
		wf.Metadata = map[string]bool{
			domain.MetaRestartOnSave: rapid.Bool().Draw(t, "restart"),
		}
	}

	n := rapid.IntRange(0, 4).Draw(t, "tasks")
	for i := 0; i < n; i++ {
		kinds := []domain.TaskKind{domain.TaskKindShellExec, domain.TaskKindPackagerInstall}
		if len(names) > 0 {
			kinds = append(kinds, domain.TaskKindWorkflowRun)
		}

		task := domain.Task{Kind: rapid.SampledFrom(kinds).Draw(t, "kind")}
		switch task.Kind {
		case domain.TaskKindShellExec:
			task.Args = rapid.StringMatching(`[a-z][a-z0-9 ._-]{0,20}`).Draw(t, "command")
		case domain.TaskKindWorkflowRun:
			task.Args = rapid.SampledFrom(names).Draw(t, "ref")
		}
		if task.Kind != domain.TaskKindWorkflowRun && len(ports) > 0 && rapid.Bool().Draw(t, "gated") {
			task.WaitForPort = rapid.SampledFrom(ports).Draw(t, "waitForPort")
		}
		wf.Tasks = append(wf.Tasks, task)
	}

	return wf
}

func TestMarshal_RoundTrip(t *testing.T) {
	for _, format := range []Format{FormatTOML, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			rapid.Check(t, func(t *rapid.T) {
				reg := genRegistry().Draw(t, "registry")

				data, err := Marshal(reg, format)
				if err != nil {
					t.Fatalf("marshal: %v", err)
				}

				got, err := Parse(data, format)
				if err != nil {
					t.Fatalf("parse: %v\n%s", err, data)
				}

				if !reflect.DeepEqual(reg, got) {
					t.Fatalf("round trip mismatch\nwant: %+v\ngot:  %+v\ndocument:\n%s", reg, got, data)
				}
			})
		})
	}
}

func TestMarshal_ReplitDocument(t *testing.T) {
	reg, err := Parse([]byte(replitDoc), FormatTOML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := Marshal(reg, FormatTOML)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	again, err := Parse(data, FormatTOML)
	if err != nil {
		t.Fatalf("parse marshalled document: %v\n%s", err, data)
	}
	if !reflect.DeepEqual(reg, again) {
		t.Errorf("round trip mismatch:\n%s", data)
	}

	// Числовой author остаётся числом
	id, ok := again.Workflows[1].Author.ID()
	if !ok || id != 40193247 {
		t.Errorf("expected numeric author, got %q", again.Workflows[1].Author)
	}
}
