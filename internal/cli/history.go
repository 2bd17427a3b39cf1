package cli

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/Autorun/internal/history"
)

func newHistoryCmd(g *globals) *cobra.Command {
	var (
		dbURL  string
		filter history.RunFilter
	)

	cmd := &cobra.Command{
		Use:   "history [RUN_ID]",
		Short: "Show recorded runs, or the tasks of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			pool, err := history.NewPool(ctx, dbURL)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			defer pool.Close()

			store := history.NewStore(pool, g.logger(cmd))
			out := g.output(cmd)

			if len(args) == 0 {
				runs, err := store.List(ctx, filter)
				if err != nil {
					return err
				}
				rows := make([][]string, len(runs))
				for i, r := range runs {
					rows[i] = []string{r.ID.String(), r.Workflow, r.Status, formatTime(&r.StartedAt), formatTime(r.FinishedAt), r.Error}
				}
				out.Print([]string{"ID", "WORKFLOW", "STATUS", "STARTED", "FINISHED", "ERROR"}, rows, runs)
				return nil
			}

			id, err := uuid.Parse(args[0])
			if err != nil {
				return usageError("invalid run id %q: %v", args[0], err)
			}
			if _, err := store.Get(ctx, id); err != nil {
				return err
			}
			tasks, err := store.Tasks(ctx, id)
			if err != nil {
				return err
			}

			rows := make([][]string, len(tasks))
			for i, t := range tasks {
				exit := "-"
				if t.ExitCode != nil {
					exit = fmt.Sprint(*t.ExitCode)
				}
				rows[i] = []string{t.StepID, t.Kind, t.Status, exit, formatTime(t.StartedAt), t.Error}
			}
			out.Print([]string{"TASK", "KIND", "STATUS", "EXIT", "STARTED", "ERROR"}, rows, tasks)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbURL, "db-url", "", "Postgres DSN (default $DB_URL)")
	cmd.Flags().StringVar(&filter.Workflow, "workflow", "", "Filter by workflow name")
	cmd.Flags().StringVar(&filter.Status, "status", "", "Filter by status (RUNNING, COMPLETED, FAILED)")
	cmd.Flags().IntVar(&filter.Limit, "limit", 20, "Maximum number of runs")

	return cmd
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}
