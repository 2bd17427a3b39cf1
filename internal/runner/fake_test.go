package runner

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"
)

// fakeProcess — управляемый тестом процесс.
type fakeProcess struct {
	done       chan struct{}
	once       sync.Once
	err        error
	code       int
	terminated bool
	mu         sync.Mutex
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{done: make(chan struct{}), code: -1}
}

func (p *fakeProcess) exit(code int, err error) {
	p.once.Do(func() {
		p.mu.Lock()
		p.code, p.err = code, err
		p.mu.Unlock()
		close(p.done)
	})
}

func (p *fakeProcess) Done() <-chan struct{} { return p.done }

func (p *fakeProcess) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *fakeProcess) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.code
}

func (p *fakeProcess) Terminate() {
	p.mu.Lock()
	p.terminated = true
	p.mu.Unlock()
	p.exit(-1, context.Canceled)
}

func (p *fakeProcess) wasTerminated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminated
}

// fakeExecutor отдаёт процессы, созданные функцией start.
type fakeExecutor struct {
	start func(inv *Invocation) *fakeProcess

	mu      sync.Mutex
	started []string
	procs   map[string]*fakeProcess
}

func (e *fakeExecutor) Start(_ context.Context, inv *Invocation) (Process, error) {
	p := e.start(inv)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.started = append(e.started, inv.StepID)
	if e.procs == nil {
		e.procs = make(map[string]*fakeProcess)
	}
	e.procs[inv.StepID] = p
	return p, nil
}

func (e *fakeExecutor) process(stepID string) *fakeProcess {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.procs[stepID]
}

// freePort возвращает порт, который сейчас никто не слушает.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

// listen открывает порт и закрывает его по окончании теста.
func listen(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port
}

// fastGate — политика ожидания порта для тестов.
var fastGate = GateConfig{
	Timeout:         300 * time.Millisecond,
	InitialInterval: 10 * time.Millisecond,
	MaxInterval:     50 * time.Millisecond,
}
