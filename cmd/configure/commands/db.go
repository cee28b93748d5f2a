package commands

import (
	"fmt"
	"os"

	"github.com/benvon/smart-todo-capture/internal/config"
	"github.com/benvon/smart-todo-capture/internal/database"
	"github.com/benvon/smart-todo-capture/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// connect loads configuration and opens the database. The caller closes it.
func connect() (*config.Config, *database.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return cfg, db, nil
}

func closeDB(db *database.DB) {
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
	}
}

// commandLogger writes human-readable logs to stderr
func commandLogger(cmd *cobra.Command) (*zap.Logger, bool, error) {
	debug, _ := cmd.Flags().GetBool("debug")
	l, err := logger.NewConsoleLogger(debug)
	if err != nil {
		return nil, false, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return l, debug, nil
}
