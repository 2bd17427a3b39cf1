package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Autorun/internal/deploy"
)

func newDeployCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Run the deployment build and run commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := g.load()
			if err != nil {
				return err
			}

			pub := &deploy.Publisher{
				Dir:    g.dir,
				Stdout: cmd.OutOrStdout(),
				Stderr: cmd.ErrOrStderr(),
				Logger: g.logger(cmd),
			}

			res, err := pub.Publish(cmd.Context(), reg)
			if res != nil {
				printDeploy(g.output(cmd), res)
			}
			return err
		},
	}
}

func printDeploy(out *Output, res *deploy.Result) {
	if out.JSONMode() {
		out.JSON(res)
		return
	}

	rows := make([][]string, 0, len(res.Phases))
	for _, p := range res.Phases {
		rows = append(rows, []string{
			p.Phase,
			strings.Join(p.Argv, " "),
			strconv.Itoa(p.ExitCode),
			p.Duration.Round(time.Millisecond).String(),
		})
	}

	out.Success(fmt.Sprintf("deployment target %s, port %d", res.Target, res.Port))
	out.Print([]string{"PHASE", "COMMAND", "EXIT", "DURATION"}, rows, res)
}
