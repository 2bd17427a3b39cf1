package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Autorun/internal/domain"
)

// syncBuffer — bytes.Buffer, безопасный для параллельной записи.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func invocation(args string) *Invocation {
	return &Invocation{
		RunID:    uuid.New(),
		StepID:   "Test[0]",
		Workflow: "Test",
		Task:     domain.Task{Kind: domain.TaskKindShellExec, Args: args},
	}
}

func TestShellExecutor_Output(t *testing.T) {
	var out syncBuffer
	e := &ShellExecutor{Dir: t.TempDir(), Output: &out}

	proc, err := e.Start(context.Background(), invocation("echo hello; echo oops >&2; printf tail"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	<-proc.Done()

	if proc.Err() != nil || proc.ExitCode() != 0 {
		t.Fatalf("expected success, got code %d err %v", proc.ExitCode(), proc.Err())
	}

	got := out.String()
	for _, want := range []string{"[Test[0]] hello\n", "[Test[0]] oops\n", "[Test[0]] tail\n"} {
		if !strings.Contains(got, want) {
			t.Errorf("output should contain %q, got %q", want, got)
		}
	}
}

func TestShellExecutor_ExitCode(t *testing.T) {
	e := &ShellExecutor{Dir: t.TempDir()}

	proc, err := e.Start(context.Background(), invocation("exit 7"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	<-proc.Done()

	if proc.ExitCode() != 7 {
		t.Errorf("expected exit code 7, got %d", proc.ExitCode())
	}
	if proc.Err() == nil {
		t.Error("expected error for non-zero exit")
	}
}

func TestShellExecutor_Env(t *testing.T) {
	dir := t.TempDir()
	e := &ShellExecutor{Dir: dir, Env: []string{"AUTORUN_TEST_VALUE=42"}}

	proc, err := e.Start(context.Background(), invocation("echo $AUTORUN_TEST_VALUE > out.txt"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	<-proc.Done()

	data, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(data)) != "42" {
		t.Errorf("expected 42, got %q", data)
	}
}

func TestShellExecutor_TerminateKillsGroup(t *testing.T) {
	e := &ShellExecutor{Dir: t.TempDir(), Grace: 200 * time.Millisecond}

	// Дочерний sleep в той же группе процессов
	proc, err := e.Start(context.Background(), invocation("sleep 30 & sleep 30; wait"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	start := time.Now()
	proc.Terminate()

	if time.Since(start) > 3*time.Second {
		t.Error("Terminate should stop the whole process group")
	}
	select {
	case <-proc.Done():
	default:
		t.Fatal("process should be done after Terminate")
	}
	if proc.Err() == nil {
		t.Error("terminated process should report an error")
	}
}

func TestPackagerExecutor_Commands(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"requirements.txt", "package.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	e := NewPackagerExecutor(&ShellExecutor{Dir: dir})
	got := e.Commands([]string{"python", "nodejs", "go"})

	want := []string{"pip install -r requirements.txt", "npm install"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestPackagerExecutor_LockfileWins(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"pyproject.toml", "uv.lock"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got := NewPackagerExecutor(&ShellExecutor{Dir: dir}).Commands([]string{"python"})
	if len(got) != 1 || got[0] != "uv sync" {
		t.Errorf("expected [uv sync], got %v", got)
	}
}

func TestPackagerExecutor_RunsRules(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "deps.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	e := NewPackagerExecutor(&ShellExecutor{Dir: dir}).WithRules([]InstallRule{
		{Language: "python", File: "deps.txt", Command: "touch installed"},
	})

	inv := invocation("")
	inv.Task.Kind = domain.TaskKindPackagerInstall
	inv.Languages = []string{"python"}

	proc, err := e.Start(context.Background(), inv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	<-proc.Done()

	if _, err := os.Stat(filepath.Join(dir, "installed")); err != nil {
		t.Errorf("install command should run: %v", err)
	}
}

func TestPackagerExecutor_NothingToInstall(t *testing.T) {
	e := NewPackagerExecutor(&ShellExecutor{Dir: t.TempDir()})

	inv := invocation("")
	inv.Languages = []string{"python"}

	proc, err := e.Start(context.Background(), inv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case <-proc.Done():
	default:
		t.Fatal("process should already be done")
	}
	if proc.Err() != nil || proc.ExitCode() != 0 {
		t.Errorf("expected success, got %d %v", proc.ExitCode(), proc.Err())
	}
}

func TestRegistry_Get(t *testing.T) {
	r := DefaultRegistry(&ShellExecutor{})

	if _, err := r.Get(domain.TaskKindShellExec); err != nil {
		t.Errorf("shell.exec should be registered: %v", err)
	}
	if _, err := r.Get(domain.TaskKindPackagerInstall); err != nil {
		t.Errorf("packager.installForAll should be registered: %v", err)
	}
	if _, err := r.Get(domain.TaskKindWorkflowRun); !errors.Is(err, ErrUnknownTaskKind) {
		t.Errorf("workflow.run is handled by the engine, got %v", err)
	}
}
