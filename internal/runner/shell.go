package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

const defaultGrace = 5 * time.Second

// ShellExecutor выполняет shell.exec: sh -c <args>.
//
// Процесс запускается в собственной группе процессов, Terminate
// останавливает всё дерево. stdout/stderr построчно пишутся в лог
// и, если задан Output, в Output с префиксом шага.
type ShellExecutor struct {
	// Shell — интерпретатор (по умолчанию "sh").
	Shell string

	// Dir — рабочая директория (по умолчанию текущая).
	Dir string

	// Env — дополнительные переменные окружения поверх os.Environ().
	Env []string

	// Grace — пауза между SIGTERM и SIGKILL (по умолчанию 5s).
	Grace time.Duration

	// Output — поток для вывода команд. nil — только лог.
	Output io.Writer

	// Logger — логгер (по умолчанию slog.Default()).
	Logger *slog.Logger

	outMu sync.Mutex
}

// Start запускает команду задачи.
func (e *ShellExecutor) Start(ctx context.Context, inv *Invocation) (Process, error) {
	return e.start(ctx, inv, inv.Task.Args)
}

// start запускает произвольную shell-команду от имени задачи inv.
func (e *ShellExecutor) start(_ context.Context, inv *Invocation, script string) (Process, error) {
	shell := e.Shell
	if shell == "" {
		shell = "sh"
	}
	grace := e.Grace
	if grace <= 0 {
		grace = defaultGrace
	}
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("run_id", inv.RunID.String(), "workflow", inv.Workflow, "task", inv.StepID)

	cmd := exec.Command(shell, "-c", script)
	cmd.Dir = e.Dir
	cmd.Env = append(os.Environ(), e.Env...)
	setProcessGroup(cmd)

	stdout := e.newLineWriter(inv.StepID, func(line string) {
		logger.Debug(line, "stream", "stdout")
	})
	stderr := e.newLineWriter(inv.StepID, func(line string) {
		logger.Debug(line, "stream", "stderr")
	})
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	// Потомки, унаследовавшие stdout, не должны держать Wait бесконечно
	cmd.WaitDelay = grace

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", shell, err)
	}

	logger.Debug("process started", "pid", cmd.Process.Pid, "command", script)

	p := &cmdProcess{
		cmd:   cmd,
		grace: grace,
		done:  make(chan struct{}),
		code:  -1,
	}

	go func() {
		err := cmd.Wait()
		stdout.Flush()
		stderr.Flush()

		if cmd.ProcessState != nil {
			p.code = cmd.ProcessState.ExitCode()
		}
		var exitErr *exec.ExitError
		switch {
		case cmd.ProcessState == nil:
			p.err = err
		case err != nil && !errors.As(err, &exitErr) && !errors.Is(err, exec.ErrWaitDelay):
			p.err = err
		case p.code != 0:
			p.err = fmt.Errorf("exit status %d", p.code)
			if p.code < 0 {
				p.err = errors.New(cmd.ProcessState.String())
			}
		}

		logger.Debug("process exited", "exit_code", p.code)
		close(p.done)
	}()

	return p, nil
}

func (e *ShellExecutor) newLineWriter(stepID string, log func(string)) *lineWriter {
	return &lineWriter{emit: func(line string) {
		log(line)
		if e.Output != nil {
			e.outMu.Lock()
			fmt.Fprintf(e.Output, "[%s] %s\n", stepID, line)
			e.outMu.Unlock()
		}
	}}
}

// cmdProcess — запущенный exec.Cmd.
type cmdProcess struct {
	cmd   *exec.Cmd
	grace time.Duration
	done  chan struct{}
	err   error
	code  int

	termOnce sync.Once
}

func (p *cmdProcess) Done() <-chan struct{} { return p.done }
func (p *cmdProcess) Err() error            { return p.err }
func (p *cmdProcess) ExitCode() int         { return p.code }

// Terminate посылает SIGTERM группе процессов и SIGKILL после grace.
func (p *cmdProcess) Terminate() {
	p.termOnce.Do(func() {
		select {
		case <-p.done:
			return
		default:
		}

		signalGroup(p.cmd, false)

		timer := time.NewTimer(p.grace)
		defer timer.Stop()

		select {
		case <-p.done:
		case <-timer.C:
			signalGroup(p.cmd, true)
		}
	})
	<-p.done
}

// lineWriter режет поток на строки.
type lineWriter struct {
	mu   sync.Mutex
	buf  bytes.Buffer
	emit func(string)
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := string(bytes.TrimRight(w.buf.Next(i+1), "\r\n"))
		w.emit(line)
	}
	return len(p), nil
}

// Flush отдаёт остаток без перевода строки.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Len() > 0 {
		w.emit(w.buf.String())
		w.buf.Reset()
	}
}
