package commands

import (
	"fmt"
	"strings"

	"github.com/benvon/smart-todo-capture/internal/database"
	"github.com/benvon/smart-todo-capture/internal/middleware"
	"github.com/benvon/smart-todo-capture/internal/models"
	"github.com/spf13/cobra"
	"github.com/ulule/limiter/v3"
)

// NewRatelimitCmd manages the API rate limit the server reloads from the database
func NewRatelimitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Manage rate limit configuration",
		Long:  "Show or update the per-client API rate, e.g. 5-S, 100-M or 1000-H.",
	}
	cmd.AddCommand(newRatelimitShowCmd())
	cmd.AddCommand(newRatelimitSetCmd())
	return cmd
}

func newRatelimitShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the stored rate limit",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := connect()
			if err != nil {
				return err
			}
			defer closeDB(db)

			c, err := database.NewRatelimitConfigRepository(db).Get(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get ratelimit config: %w", err)
			}
			printRatelimit(cmd, c)
			return nil
		},
	}
}

func printRatelimit(cmd *cobra.Command, c *models.RatelimitConfig) {
	if c == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Rate limit: not configured (default %s)\n", middleware.DefaultRate)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Rate limit: %s\n", c.Rate)
}

// parseRate checks the rate in ulule's "<limit>-<period>" format
func parseRate(raw string) (string, error) {
	rate := strings.ToUpper(strings.TrimSpace(raw))
	if rate == "" {
		return "", fmt.Errorf("--rate is required (e.g. 5-S, 100-M)")
	}
	if _, err := limiter.NewRateFromFormatted(rate); err != nil {
		return "", fmt.Errorf("invalid rate %q: %w", raw, err)
	}
	return rate, nil
}

func newRatelimitSetCmd() *cobra.Command {
	var rate string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set the rate limit",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseRate(rate)
			if err != nil {
				return err
			}

			_, db, err := connect()
			if err != nil {
				return err
			}
			defer closeDB(db)

			if err := database.NewRatelimitConfigRepository(db).Set(cmd.Context(), &models.RatelimitConfig{Rate: parsed}); err != nil {
				return fmt.Errorf("failed to set ratelimit config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Rate limit updated.")
			return nil
		},
	}
	cmd.Flags().StringVar(&rate, "rate", "", "Rate such as 5-S, 100-M or 1000-H (required)")
	return cmd
}
