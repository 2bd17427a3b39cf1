// Autorun выполняет workflows, объявленные в конфигурации .replit.
//
// Использование:
//
//	autorun [--config .replit] [--dir DIR] [--json] <command> [flags]
//
// Переменные окружения:
//
//	LOG_LEVEL             DEBUG, INFO, WARN, ERROR (по умолчанию INFO)
//	LOG_FORMAT            text или json (по умолчанию text)
//	AUTORUN_PORT_TIMEOUT  таймаут ожидания порта для run (по умолчанию 60s)
//	DB_URL                Postgres для run --record и history
//	RABBITMQ_URL          RabbitMQ для run --publish и events
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaiso/Autorun/internal/cli"
	"github.com/shaiso/Autorun/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	logger := telemetry.SetupLogger(os.Stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	root := cli.NewRootCmd(version)
	err := root.ExecuteContext(telemetry.WithLogger(ctx, logger))
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}

	cancel()
	os.Exit(cli.ExitCode(err))
}
