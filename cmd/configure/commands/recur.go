package commands

import (
	"fmt"

	"github.com/benvon/smart-todo-capture/internal/database"
	"github.com/benvon/smart-todo-capture/internal/logger"
	"github.com/benvon/smart-todo-capture/internal/recurrence"
	"github.com/benvon/smart-todo-capture/internal/tasks"
	"github.com/spf13/cobra"
)

// NewRecurCmd runs one recurrence scan
func NewRecurCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recur",
		Short: "Reactivate recurring tasks that are due",
		Long:  "Run a single recurrence scan, moving due done tasks back to todo.",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, _, err := commandLogger(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync(log) }()

			cfg, db, err := connect()
			if err != nil {
				return err
			}
			defer closeDB(db)

			repo := database.NewTaskRepository(db)
			engine := recurrence.NewEngine(repo, tasks.NewService(repo, log), cfg.RecurrenceScanInterval, log)
			result, err := engine.Scan(cmd.Context())
			if err != nil {
				return fmt.Errorf("recurrence scan failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d, reactivated %d, errors %d\n", result.Scanned, result.Reactivated, result.Errors)
			return nil
		},
	}
}
