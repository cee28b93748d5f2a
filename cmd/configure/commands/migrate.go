package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewMigrateCmd applies the database schema
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Long:  "Create missing tables and indexes. Safe to run repeatedly.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := connect()
			if err != nil {
				return err
			}
			defer closeDB(db)

			if err := db.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("failed to apply schema: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
			return nil
		},
	}
}
