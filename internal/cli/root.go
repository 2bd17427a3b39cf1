package cli

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/shaiso/Autorun/internal/domain"
	"github.com/shaiso/Autorun/internal/engine"
	"github.com/shaiso/Autorun/internal/manifest"
	"github.com/shaiso/Autorun/internal/telemetry"
)

// DefaultConfig — имя файла конфигурации по умолчанию.
const DefaultConfig = ".replit"

// globals — persistent флаги, общие для всех команд.
type globals struct {
	config  string
	dir     string
	lenient bool
	json    bool
}

// configPath возвращает путь к конфигурации с учётом --dir.
func (g *globals) configPath() string {
	if g.dir == "" || filepath.IsAbs(g.config) {
		return g.config
	}
	return filepath.Join(g.dir, g.config)
}

// load читает и валидирует конфигурацию.
func (g *globals) load() (*domain.Registry, error) {
	var opts []manifest.Option
	if g.lenient {
		opts = append(opts, manifest.WithLenient())
	}
	reg, err := manifest.Load(g.configPath(), opts...)
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// resolve загружает конфигурацию и раскрывает workflow name.
func (g *globals) resolve(name string) (*domain.Registry, *engine.Plan, error) {
	reg, err := g.load()
	if err != nil {
		return nil, nil, err
	}
	resolver, err := engine.NewResolver(reg)
	if err != nil {
		return nil, nil, err
	}
	plan, err := resolver.Resolve(name)
	if err != nil {
		return nil, nil, err
	}
	return reg, plan, nil
}

// logger возвращает логгер из контекста команды.
func (g *globals) logger(cmd *cobra.Command) *slog.Logger {
	return telemetry.FromContext(cmd.Context())
}

func (g *globals) output(cmd *cobra.Command) *Output {
	return NewOutput(g.json, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// NewRootCmd создаёт корневую команду autorun.
// Логгер команды берут из контекста (telemetry.WithLogger).
func NewRootCmd(version string) *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:           "autorun",
		Short:         "Run workflows declared in a .replit configuration",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&g.config, "config", "c", DefaultConfig, "Path to the configuration file (.replit, .yaml)")
	root.PersistentFlags().StringVarP(&g.dir, "dir", "C", "", "Project directory; commands run there")
	root.PersistentFlags().BoolVar(&g.lenient, "lenient", false, "Ignore unknown configuration keys")
	root.PersistentFlags().BoolVar(&g.json, "json", false, "Output in JSON format")

	root.AddCommand(
		newRunCmd(g),
		newPlanCmd(g),
		newValidateCmd(g),
		newListCmd(g),
		newFmtCmd(g),
		newDeployCmd(g),
		newHistoryCmd(g),
		newEventsCmd(g),
	)

	return root
}

// usageError — неверные аргументы команды.
func usageError(format string, args ...any) error {
	return fmt.Errorf("usage: "+format, args...)
}
