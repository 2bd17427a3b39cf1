package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shaiso/Autorun/internal/domain"
)

const replitDoc = `
modules = ["python-3.11"]

[nix]
channel = "stable-24_05"

[deployment]
deploymentTarget = "autoscale"
run = ["streamlit", "run", "app.py", "--server.port", "5000"]

[workflows]
runButton = "Project"

[[workflows.workflow]]
name = "Project"
mode = "parallel"
author = "agent"

[[workflows.workflow.tasks]]
task = "workflow.run"
args = "Streamlit Server"

[[workflows.workflow]]
name = "Streamlit Server"
author = 40193247

[workflows.workflow.metadata]
agentRequireRestartOnSave = false

[[workflows.workflow.tasks]]
task = "packager.installForAll"

[[workflows.workflow.tasks]]
task = "shell.exec"
args = "streamlit run app.py --server.port 5000"
waitForPort = 5000

[[ports]]
localPort = 5000
externalPort = 80
`

func TestParse_ReplitDocument(t *testing.T) {
	reg, err := Parse([]byte(replitDoc), FormatTOML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(reg.Modules) != 1 || reg.Modules[0] != "python-3.11" {
		t.Errorf("unexpected modules: %v", reg.Modules)
	}
	if reg.NixChannel != "stable-24_05" {
		t.Errorf("unexpected nix channel: %s", reg.NixChannel)
	}

	// Deployment
	if reg.Deployment == nil {
		t.Fatal("deployment should be parsed")
	}
	if reg.Deployment.Target != domain.DeploymentAutoscale {
		t.Errorf("expected autoscale, got %s", reg.Deployment.Target)
	}
	if len(reg.Deployment.Run) != 5 || reg.Deployment.Run[0] != "streamlit" {
		t.Errorf("unexpected run command: %v", reg.Deployment.Run)
	}

	// Workflows
	if len(reg.Workflows) != 2 {
		t.Fatalf("expected 2 workflows, got %d", len(reg.Workflows))
	}

	project, ok := reg.Workflow("Project")
	if !ok {
		t.Fatal("Project should exist")
	}
	if project.Mode != domain.ModeParallel {
		t.Errorf("expected parallel mode, got %s", project.Mode)
	}
	if project.Author != "agent" {
		t.Errorf("expected author agent, got %s", project.Author)
	}
	if len(project.Tasks) != 1 || project.Tasks[0].Kind != domain.TaskKindWorkflowRun {
		t.Errorf("unexpected Project tasks: %+v", project.Tasks)
	}

	server, ok := reg.Workflow("Streamlit Server")
	if !ok {
		t.Fatal("Streamlit Server should exist")
	}
	// mode не указан — sequential по умолчанию
	if server.Mode != domain.ModeSequential {
		t.Errorf("expected sequential mode, got %s", server.Mode)
	}
	if id, ok := server.Author.ID(); !ok || id != 40193247 {
		t.Errorf("expected numeric author, got %s", server.Author)
	}
	if server.RequireRestartOnSave() {
		t.Error("restart on save should be false")
	}
	if len(server.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(server.Tasks))
	}
	if server.Tasks[1].WaitForPort != 5000 {
		t.Errorf("expected waitForPort 5000, got %d", server.Tasks[1].WaitForPort)
	}
	if server.Tasks[0].HasPortGate() {
		t.Error("packager task should not have a port gate")
	}

	// Точка входа
	def, ok := reg.DefaultWorkflow()
	if !ok || def.Name != "Project" {
		t.Errorf("expected default workflow Project, got %v", def)
	}

	// Порты
	if p, ok := reg.Port(5000); !ok || p.ExternalPort != 80 {
		t.Errorf("unexpected port mapping: %+v", p)
	}
}

func TestParse_YAML(t *testing.T) {
	doc := `
modules: [nodejs-20]
workflows:
  runButton: Dev
  workflow:
    - name: Dev
      mode: sequential
      author: 7
      tasks:
        - task: shell.exec
          args: npm run dev
          waitForPort: 3000
ports:
  - localPort: 3000
    externalPort: 80
`
	reg, err := Parse([]byte(doc), FormatYAML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wf, ok := reg.DefaultWorkflow()
	if !ok || wf.Name != "Dev" {
		t.Fatalf("expected default workflow Dev")
	}
	if wf.Author != "7" {
		t.Errorf("expected author 7, got %q", wf.Author)
	}
	if wf.Tasks[0].WaitForPort != 3000 {
		t.Errorf("expected waitForPort 3000, got %d", wf.Tasks[0].WaitForPort)
	}
}

func TestParse_EmptyDocument(t *testing.T) {
	reg, err := Parse(nil, FormatTOML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reg.Workflows) != 0 || reg.Deployment != nil {
		t.Errorf("expected empty registry, got %+v", reg)
	}

	if _, err := Parse([]byte(""), FormatYAML); err != nil {
		t.Fatalf("empty YAML should parse: %v", err)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr error
		path    string
	}{
		{
			name: "duplicate workflow name",
			doc: `
[[workflows.workflow]]
name = "A"
[[workflows.workflow]]
name = "A"
`,
			wantErr: ErrDuplicateWorkflow,
			path:    "workflows.workflow[1].name",
		},
		{
			name: "unresolved reference",
			doc: `
[[workflows.workflow]]
name = "A"
[[workflows.workflow.tasks]]
task = "workflow.run"
args = "Missing"
`,
			wantErr: ErrUnresolvedReference,
			path:    "workflows.workflow[0].tasks[0].args",
		},
		{
			name: "unknown task kind",
			doc: `
[[workflows.workflow]]
name = "A"
[[workflows.workflow.tasks]]
task = "docker.run"
`,
			wantErr: ErrUnknownTaskKind,
			path:    "workflows.workflow[0].tasks[0].task",
		},
		{
			name: "unknown mode",
			doc: `
[[workflows.workflow]]
name = "A"
mode = "random"
`,
			wantErr: ErrUnknownMode,
			path:    "workflows.workflow[0].mode",
		},
		{
			name: "empty shell command",
			doc: `
[[workflows.workflow]]
name = "A"
[[workflows.workflow.tasks]]
task = "shell.exec"
`,
			wantErr: ErrEmptyArgs,
			path:    "workflows.workflow[0].tasks[0].args",
		},
		{
			name: "port out of range",
			doc: `
[[ports]]
localPort = 70000
externalPort = 80
`,
			wantErr: ErrPortRange,
			path:    "ports[0].localPort",
		},
		{
			name: "negative external port",
			doc: `
[[ports]]
localPort = 5000
externalPort = -1
`,
			wantErr: ErrPortRange,
			path:    "ports[0].externalPort",
		},
		{
			name: "duplicate local port",
			doc: `
[[ports]]
localPort = 5000
externalPort = 80
[[ports]]
localPort = 5000
externalPort = 3000
`,
			wantErr: ErrDuplicatePort,
			path:    "ports[1].localPort",
		},
		{
			name: "duplicate external port",
			doc: `
[[ports]]
localPort = 5000
externalPort = 80
[[ports]]
localPort = 8000
externalPort = 80
`,
			wantErr: ErrDuplicatePort,
			path:    "ports[1].externalPort",
		},
		{
			name: "waitForPort not in ports",
			doc: `
[[workflows.workflow]]
name = "A"
[[workflows.workflow.tasks]]
task = "shell.exec"
args = "python app.py"
waitForPort = 8080
`,
			wantErr: ErrUnmappedPort,
			path:    "workflows.workflow[0].tasks[0].waitForPort",
		},
		{
			name: "explicit zero waitForPort",
			doc: `
[[workflows.workflow]]
name = "A"
[[workflows.workflow.tasks]]
task = "shell.exec"
args = "python app.py"
waitForPort = 0
`,
			wantErr: ErrPortRange,
			path:    "workflows.workflow[0].tasks[0].waitForPort",
		},
		{
			name: "two default candidates",
			doc: `
[workflows]
runButton = "A"
[[workflows.workflow]]
name = "A"
[[workflows.workflow]]
name = "B"
[workflows.workflow.metadata]
runButton = true
`,
			wantErr: ErrAmbiguousDefault,
			path:    "workflows.runButton",
		},
		{
			name: "two metadata candidates",
			doc: `
[[workflows.workflow]]
name = "A"
[workflows.workflow.metadata]
runButton = true
[[workflows.workflow]]
name = "B"
[workflows.workflow.metadata]
runButton = true
`,
			wantErr: ErrAmbiguousDefault,
			path:    "workflows.runButton",
		},
		{
			name: "runButton points to missing workflow",
			doc: `
[workflows]
runButton = "Missing"
`,
			wantErr: ErrUnresolvedReference,
			path:    "workflows.runButton",
		},
		{
			name: "empty deployment run",
			doc: `
[deployment]
deploymentTarget = "autoscale"
run = []
`,
			wantErr: ErrEmptyCommand,
			path:    "deployment.run",
		},
		{
			name: "empty deployment token",
			doc: `
[deployment]
deploymentTarget = "autoscale"
run = ["streamlit", ""]
`,
			wantErr: ErrEmptyCommand,
			path:    "deployment.run[1]",
		},
		{
			name: "unknown deployment target",
			doc: `
[deployment]
deploymentTarget = "mainframe"
run = ["./app"]
`,
			wantErr: ErrUnknownTarget,
			path:    "deployment.deploymentTarget",
		},
		{
			name: "author of wrong type",
			doc: `
[[workflows.workflow]]
name = "A"
author = 1.5
`,
			wantErr: ErrInvalidAuthor,
			path:    "workflows.workflow[0].author",
		},
		{
			name: "unknown top-level key",
			doc: `
entrypoint = "main.py"
`,
			wantErr: ErrSyntax,
		},
		{
			name:    "broken syntax",
			doc:     `modules = [`,
			wantErr: ErrSyntax,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), FormatTOML)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}

			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %T", err)
			}
			if tt.path == "" {
				return
			}
			found := false
			for _, ve := range verrs {
				if ve.Path == tt.path && errors.Is(ve, tt.wantErr) {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error at %s, got %v", tt.path, err)
			}
		})
	}
}

func TestParse_CollectsAllErrors(t *testing.T) {
	doc := `
[[workflows.workflow]]
name = "A"
mode = "random"
[[workflows.workflow.tasks]]
task = "workflow.run"
args = "Missing"

[[ports]]
localPort = 0
`
	_, err := Parse([]byte(doc), FormatTOML)

	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	if len(verrs) != 3 {
		t.Errorf("expected 3 errors, got %d: %v", len(verrs), err)
	}
	if !strings.Contains(err.Error(), "3 errors") {
		t.Errorf("error message should mention the count: %s", err)
	}
}

func TestParse_Lenient(t *testing.T) {
	doc := `
entrypoint = "main.py"
hidden = [".pythonlibs"]

[[workflows.workflow]]
name = "A"
`
	if _, err := Parse([]byte(doc), FormatTOML); !errors.Is(err, ErrSyntax) {
		t.Fatalf("strict mode should reject unknown keys, got %v", err)
	}

	reg, err := Parse([]byte(doc), FormatTOML, WithLenient())
	if err != nil {
		t.Fatalf("lenient mode should accept unknown keys: %v", err)
	}
	if len(reg.Workflows) != 1 {
		t.Errorf("expected 1 workflow, got %d", len(reg.Workflows))
	}

	yamlDoc := "entrypoint: main.py\n"
	if _, err := Parse([]byte(yamlDoc), FormatYAML); !errors.Is(err, ErrSyntax) {
		t.Fatalf("strict YAML should reject unknown keys, got %v", err)
	}
	if _, err := Parse([]byte(yamlDoc), FormatYAML, WithLenient()); err != nil {
		t.Fatalf("lenient YAML should accept unknown keys: %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, ".replit")
	if err := os.WriteFile(path, []byte(replitDoc), 0o644); err != nil {
		t.Fatal(err)
	}

	reg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reg.Workflows) != 2 {
		t.Errorf("expected 2 workflows, got %d", len(reg.Workflows))
	}

	if _, err := Load(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]Format{
		".replit":         FormatTOML,
		"project.toml":    FormatTOML,
		"workflows.yaml":  FormatYAML,
		"workflows.YML":   FormatYAML,
		"/etc/autorun/rc": FormatTOML,
	}
	for path, want := range tests {
		if got := FormatFromPath(path); got != want {
			t.Errorf("FormatFromPath(%q) = %s, want %s", path, got, want)
		}
	}
}
