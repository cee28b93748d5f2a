package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/benvon/smart-todo-capture/internal/database"
	"github.com/benvon/smart-todo-capture/internal/models"
	"github.com/spf13/cobra"
)

// NewListCmd prints the stored middleware settings and the latest agent runs
func NewListCmd() *cobra.Command {
	var runs int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored settings and recent agent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := connect()
			if err != nil {
				return err
			}
			defer closeDB(db)
			ctx := cmd.Context()

			corsCfg, err := database.NewCorsConfigRepository(db).Get(ctx)
			if err != nil {
				return fmt.Errorf("failed to get cors config: %w", err)
			}
			printCors(cmd, corsCfg)

			rateCfg, err := database.NewRatelimitConfigRepository(db).Get(ctx)
			if err != nil {
				return fmt.Errorf("failed to get ratelimit config: %w", err)
			}
			printRatelimit(cmd, rateCfg)

			if runs <= 0 {
				return nil
			}
			recent, err := database.NewAgentRunRepository(db).Recent(ctx, runs)
			if err != nil {
				return fmt.Errorf("failed to list agent runs: %w", err)
			}
			printRuns(cmd, recent)
			return nil
		},
	}
	cmd.Flags().IntVar(&runs, "runs", 10, "Number of recent agent runs to show (0 to skip)")
	return cmd
}

func printRuns(cmd *cobra.Command, runs []*models.AgentRun) {
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "Agent runs: none recorded")
		return
	}
	fmt.Fprintln(out, "Agent runs:")
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  STARTED\tAGENT\tSTATUS\tITEMS\tCREATED\tSKIPPED\tERRORS")
	for _, r := range runs {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			r.StartedAt.Local().Format(time.DateTime), r.AgentName, r.Status,
			r.ItemsProcessed, r.TasksCreated, r.TasksSkipped, r.Errors)
	}
	_ = tw.Flush()
}
