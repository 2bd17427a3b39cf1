package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/shaiso/Autorun/internal/domain"
)

const defaultGrace = 10 * time.Second

// Phase — имя фазы публикации.
const (
	PhaseBuild = "build"
	PhaseRun   = "run"
)

// Publisher запускает дескриптор развёртывания.
//
// Publisher не зависит от выполнения workflows: единственный общий
// вход — загруженный Registry.
type Publisher struct {
	// Dir — рабочая директория.
	Dir string

	// Env — дополнительные переменные окружения.
	Env []string

	// Stdout, Stderr — потоки команд (по умолчанию os.Stdout, os.Stderr).
	Stdout io.Writer
	Stderr io.Writer

	// Grace — пауза между сигналом остановки и SIGKILL.
	Grace time.Duration

	// Logger
	Logger *slog.Logger
}

// PhaseResult — итог одной фазы.
type PhaseResult struct {
	Phase    string
	Argv     []string
	ExitCode int
	Duration time.Duration
}

// Result — итог публикации.
type Result struct {
	Target domain.DeploymentTarget
	Port   int
	Phases []PhaseResult
}

// Publish выполняет build (если задан), затем run.
//
// Для target scheduled run должен завершиться сам, отмена ctx — ошибка.
// Для остальных target команда работает до выхода или отмены ctx;
// отмена считается штатной остановкой.
func (p *Publisher) Publish(ctx context.Context, reg *domain.Registry) (*Result, error) {
	d := reg.Deployment
	if d == nil {
		return nil, ErrNoDeployment
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("target", d.Target)

	res := &Result{Target: d.Target}
	env := append(os.Environ(), p.Env...)
	env = append(env, "DEPLOYMENT_TARGET="+string(d.Target))
	if port, ok := reg.PrimaryPort(); ok {
		res.Port = port
		env = append(env, "PORT="+strconv.Itoa(port))
	}

	if len(d.Build) > 0 {
		logger.Info("building", "command", d.Build)
		phase, err := p.exec(ctx, PhaseBuild, d.Build, env)
		res.Phases = append(res.Phases, phase)
		if err != nil {
			return res, err
		}
	}

	logger.Info("starting", "command", d.Run, "port", res.Port)
	phase, err := p.exec(ctx, PhaseRun, d.Run, env)
	res.Phases = append(res.Phases, phase)

	if errors.Is(err, ErrCancelled) && d.Target != domain.DeploymentScheduled {
		logger.Info("stopped")
		return res, nil
	}
	return res, err
}

// exec запускает argv без shell.
func (p *Publisher) exec(ctx context.Context, phase string, argv []string, env []string) (PhaseResult, error) {
	grace := p.Grace
	if grace <= 0 {
		grace = defaultGrace
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = p.Dir
	cmd.Env = env
	cmd.Stdout = p.Stdout
	cmd.Stderr = p.Stderr
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = grace

	start := time.Now()
	err := cmd.Run()

	res := PhaseResult{Phase: phase, Argv: argv, ExitCode: -1, Duration: time.Since(start)}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return res, &CommandError{Phase: phase, Argv: argv, ExitCode: res.ExitCode, Err: fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())}
	}
	return res, &CommandError{Phase: phase, Argv: argv, ExitCode: res.ExitCode, Err: err}
}
