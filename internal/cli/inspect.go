package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaiso/Autorun/internal/domain"
	"github.com/shaiso/Autorun/internal/engine"
	"github.com/shaiso/Autorun/internal/manifest"
)

// planNode — план в JSON.
type planNode struct {
	Workflow string     `json:"workflow"`
	Path     string     `json:"path"`
	Mode     string     `json:"mode"`
	Steps    []stepNode `json:"steps"`
}

type stepNode struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Args        string    `json:"args,omitempty"`
	WaitForPort int       `json:"wait_for_port,omitempty"`
	Plan        *planNode `json:"plan,omitempty"`
}

func toPlanNode(p *engine.Plan) *planNode {
	node := &planNode{Workflow: p.Workflow, Path: p.Path, Mode: string(p.Mode)}
	for _, s := range p.Steps {
		step := stepNode{
			ID:          s.ID,
			Kind:        string(s.Task.Kind),
			Args:        s.Task.Args,
			WaitForPort: s.Task.WaitForPort,
		}
		if s.Plan != nil {
			step.Plan = toPlanNode(s.Plan)
		}
		node.Steps = append(node.Steps, step)
	}
	return node
}

func newPlanCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "plan [WORKFLOW]",
		Short: "Show the expanded execution plan without running it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}

			_, plan, err := g.resolve(name)
			if err != nil {
				return err
			}

			out := g.output(cmd)
			if out.JSONMode() {
				out.JSON(toPlanNode(plan))
				return nil
			}
			writePlan(out, plan, 0)
			return nil
		},
	}
}

// writePlan печатает план деревом.
func writePlan(out *Output, plan *engine.Plan, depth int) {
	indent := strings.Repeat("  ", depth)
	if depth == 0 {
		out.Line("%s (%s)", plan.Workflow, plan.Mode)
	}

	for _, s := range plan.Steps {
		if s.Plan != nil {
			out.Line("%s  [%d] %s (%s)", indent, s.Index, s.Plan.Workflow, s.Plan.Mode)
			writePlan(out, s.Plan, depth+1)
			continue
		}

		line := fmt.Sprintf("%s  [%d] %s", indent, s.Index, s.Task.Kind)
		if s.Task.Args != "" {
			line += ": " + s.Task.Args
		}
		if s.Task.WaitForPort != 0 {
			line += fmt.Sprintf(" (waits for :%d)", s.Task.WaitForPort)
		}
		out.Line("%s", line)
	}
}

func newValidateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and the workflow reference graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := g.load()
			if err != nil {
				return err
			}
			if _, err := engine.NewResolver(reg); err != nil {
				return err
			}

			out := g.output(cmd)
			def := "-"
			if wf, ok := reg.DefaultWorkflow(); ok {
				def = wf.Name
			}

			if out.JSONMode() {
				out.JSON(map[string]any{
					"valid":     true,
					"workflows": len(reg.Workflows),
					"default":   def,
				})
				return nil
			}
			out.Success(fmt.Sprintf("%s: ok (%d workflows, default %s)", g.configPath(), len(reg.Workflows), def))
			return nil
		},
	}
}

// workflowInfo — строка списка workflows.
type workflowInfo struct {
	Name          string `json:"name"`
	Mode          string `json:"mode"`
	Tasks         int    `json:"tasks"`
	Default       bool   `json:"default"`
	RestartOnSave bool   `json:"restart_on_save"`
	Ports         []int  `json:"ports,omitempty"`
}

func newListCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List declared workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := g.load()
			if err != nil {
				return err
			}

			def := ""
			if wf, ok := reg.DefaultWorkflow(); ok {
				def = wf.Name
			}

			infos := make([]workflowInfo, 0, len(reg.Workflows))
			rows := make([][]string, 0, len(reg.Workflows))
			for i := range reg.Workflows {
				wf := &reg.Workflows[i]
				info := workflowInfo{
					Name:          wf.Name,
					Mode:          string(wf.Mode),
					Tasks:         len(wf.Tasks),
					Default:       wf.Name == def,
					RestartOnSave: wf.RequireRestartOnSave(),
				}
				if info.Mode == "" {
					info.Mode = string(domain.ModeSequential)
				}
				var ports []string
				for _, t := range wf.Tasks {
					if t.HasPortGate() {
						info.Ports = append(info.Ports, t.WaitForPort)
						ports = append(ports, strconv.Itoa(t.WaitForPort))
					}
				}
				infos = append(infos, info)

				mark := ""
				if info.Default {
					mark = "*"
				}
				rows = append(rows, []string{info.Name, mark, info.Mode, strconv.Itoa(info.Tasks), strings.Join(ports, ",")})
			}

			g.output(cmd).Print([]string{"NAME", "DEFAULT", "MODE", "TASKS", "PORTS"}, rows, infos)
			return nil
		},
	}
}

func newFmtCmd(g *globals) *cobra.Command {
	var write bool
	var to string

	cmd := &cobra.Command{
		Use:   "fmt",
		Short: "Print the configuration in canonical form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := g.configPath()
			reg, err := g.load()
			if err != nil {
				return err
			}

			format := manifest.FormatFromPath(path)
			if to != "" {
				format = manifest.Format(strings.ToLower(to))
				if format != manifest.FormatTOML && format != manifest.FormatYAML {
					return usageError("--to must be toml or yaml, got %q", to)
				}
			}

			data, err := manifest.Marshal(reg, format)
			if err != nil {
				return err
			}

			if !write {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if format != manifest.FormatFromPath(path) {
				return usageError("--write cannot change the file format")
			}

			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, data, info.Mode().Perm()); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			g.output(cmd).Success("formatted " + path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&write, "write", "w", false, "Rewrite the configuration file in place")
	cmd.Flags().StringVar(&to, "to", "", "Output format: toml or yaml")

	return cmd
}
