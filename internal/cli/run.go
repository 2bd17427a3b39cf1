package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/shaiso/Autorun/internal/history"
	"github.com/shaiso/Autorun/internal/mq"
	"github.com/shaiso/Autorun/internal/runner"
	"github.com/shaiso/Autorun/internal/telemetry"
)

// runOptions — флаги команды run.
type runOptions struct {
	portTimeout   time.Duration
	exitWhenReady bool
	metricsAddr   string
	record        bool
	dbURL         string
	publish       bool
	amqpURL       string
}

func newRunCmd(g *globals) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [WORKFLOW]",
		Short: "Run a workflow (the default workflow when no name is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return runWorkflow(cmd, g, opts, name)
		},
	}

	cmd.Flags().DurationVar(&opts.portTimeout, "port-timeout", envDuration("AUTORUN_PORT_TIMEOUT", runner.DefaultPortTimeout), "How long a task may take to open its waitForPort")
	cmd.Flags().BoolVar(&opts.exitWhenReady, "exit-when-ready", false, "Stop background services once the workflow is ready")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve /metrics and /healthz on this address (e.g. :9090)")
	cmd.Flags().BoolVar(&opts.record, "record", false, "Record the run in Postgres")
	cmd.Flags().StringVar(&opts.dbURL, "db-url", "", "Postgres DSN (default $DB_URL)")
	cmd.Flags().BoolVar(&opts.publish, "publish", false, "Publish run events to RabbitMQ")
	cmd.Flags().StringVar(&opts.amqpURL, "amqp-url", "", "RabbitMQ URL (default $RABBITMQ_URL)")

	return cmd
}

func runWorkflow(cmd *cobra.Command, g *globals, opts *runOptions, name string) error {
	ctx := cmd.Context()
	logger := g.logger(cmd)
	out := g.output(cmd)

	reg, plan, err := g.resolve(name)
	if err != nil {
		return err
	}

	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
	observers := runner.Observers{
		runner.LogObserver{Logger: logger},
		runner.MetricsObserver{Metrics: metrics},
	}

	if opts.metricsAddr != "" {
		stop := serveMetrics(opts.metricsAddr, metrics, logger)
		defer stop()
	}

	if opts.record {
		pool, err := history.NewPool(ctx, opts.dbURL)
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}
		defer pool.Close()

		if err := history.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("history: %w", err)
		}
		observers = append(observers, history.NewStore(pool, logger))
	}

	if opts.publish {
		conn, err := mq.Dial(amqpURL(opts.amqpURL), logger)
		if err != nil {
			return fmt.Errorf("events: %w", err)
		}
		defer conn.Close()

		if err := mq.SetupTopology(conn); err != nil {
			return fmt.Errorf("events: %w", err)
		}
		observers = append(observers, mq.NewPublisher(conn, logger))
	}

	// В JSON-режиме stdout занят итогом запуска
	taskOutput := cmd.OutOrStdout()
	if out.JSONMode() {
		taskOutput = cmd.ErrOrStderr()
	}

	shell := &runner.ShellExecutor{Dir: g.dir, Output: taskOutput, Logger: logger}
	eng := runner.New(runner.Config{
		Executors: runner.DefaultRegistry(shell),
		Gate:      gateConfig(opts.portTimeout),
		Observer:  observers,
		Logger:    logger,
	})

	run := eng.Execute(ctx, reg, plan)
	printRun(out, run)

	if err := run.Err(); err != nil {
		run.Shutdown()
		return &RunError{Err: err, Failed: run.Result.Failed()}
	}

	services := run.Services()
	if len(services) == 0 {
		return nil
	}
	if opts.exitWhenReady {
		run.Shutdown()
		return nil
	}

	metrics.SetServices(len(services))
	defer metrics.SetServices(0)

	out.Success(fmt.Sprintf("%d service(s) running, press Ctrl+C to stop", len(services)))
	if err := run.Wait(ctx); err != nil {
		return &RunError{Err: err}
	}
	return nil
}

// gateConfig растягивает бюджет попыток под длинный таймаут.
func gateConfig(timeout time.Duration) runner.GateConfig {
	cfg := runner.GateConfig{Timeout: timeout}
	if n := int(timeout/runner.DefaultMaxInterval) + 1; n > runner.DefaultMaxAttempts {
		cfg.MaxAttempts = n
	}
	return cfg
}

// runSummary — итог запуска для --json.
type runSummary struct {
	RunID    string        `json:"run_id"`
	Workflow string        `json:"workflow"`
	Status   string        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration string        `json:"duration"`
	Services []string      `json:"services,omitempty"`
	Tasks    []taskSummary `json:"tasks"`
}

type taskSummary struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Status   string `json:"status"`
	ExitCode int    `json:"exit_code"`
	Duration string `json:"duration,omitempty"`
	Error    string `json:"error,omitempty"`
}

func printRun(out *Output, run *runner.Run) {
	summary := runSummary{
		RunID:    run.ID.String(),
		Workflow: run.Plan.Workflow,
		Status:   string(run.Result.Status),
		Duration: run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String(),
		Services: run.Services(),
	}
	if err := run.Err(); err != nil {
		summary.Error = err.Error()
	}

	headers := []string{"TASK", "KIND", "STATUS", "EXIT", "DURATION", "ERROR"}
	var rows [][]string
	for _, t := range run.Result.Tasks() {
		ts := taskSummary{
			ID:       t.ID,
			Kind:     string(t.Kind),
			Status:   string(t.Status),
			ExitCode: t.ExitCode,
		}
		if d := t.Duration(); d > 0 {
			ts.Duration = d.Round(time.Millisecond).String()
		}
		if t.Err != nil {
			ts.Error = t.Err.Error()
		}
		summary.Tasks = append(summary.Tasks, ts)

		exit := "-"
		if t.ExitCode >= 0 {
			exit = strconv.Itoa(t.ExitCode)
		}
		rows = append(rows, []string{ts.ID, ts.Kind, ts.Status, exit, ts.Duration, ts.Error})
	}

	out.Print(headers, rows, summary)
}

// serveMetrics запускает /metrics и /healthz, возвращает функцию остановки.
func serveMetrics(addr string, metrics *telemetry.Metrics, logger *slog.Logger) func() {
	startTime := time.Now()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime).Round(time.Second))
	})
	mux.Handle("/metrics", metrics.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("metrics listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Warn("metrics shutdown error", "error", err)
		}
	}
}

// envDuration читает длительность из переменной окружения.
func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func amqpURL(flag string) string {
	if flag != "" {
		return flag
	}
	return mq.URL()
}
