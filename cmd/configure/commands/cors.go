package commands

import (
	"fmt"
	"strings"

	"github.com/benvon/smart-todo-capture/internal/database"
	"github.com/benvon/smart-todo-capture/internal/models"
	"github.com/spf13/cobra"
)

// NewCorsCmd manages the CORS settings the server reloads from the database
func NewCorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cors",
		Short: "Manage CORS configuration",
		Long:  "Show or update allowed origins. The server picks up changes on its next reload.",
	}
	cmd.AddCommand(newCorsShowCmd())
	cmd.AddCommand(newCorsSetCmd())
	return cmd
}

func newCorsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the stored CORS configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := connect()
			if err != nil {
				return err
			}
			defer closeDB(db)

			c, err := database.NewCorsConfigRepository(db).Get(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get cors config: %w", err)
			}
			printCors(cmd, c)
			return nil
		},
	}
}

func printCors(cmd *cobra.Command, c *models.CorsConfig) {
	out := cmd.OutOrStdout()
	if c == nil {
		fmt.Fprintln(out, "CORS: not configured (server falls back to FRONTEND_URL)")
		return
	}
	fmt.Fprintln(out, "CORS:")
	fmt.Fprintf(out, "  Allowed origins:   %s\n", c.AllowedOrigins)
	fmt.Fprintf(out, "  Allow credentials: %v\n", c.AllowCredentials)
	fmt.Fprintf(out, "  Max-Age:           %ds\n", c.MaxAge)
}

// normalizeOrigins trims a comma-separated origin list and drops empties
func normalizeOrigins(raw string) (string, error) {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "" {
			continue
		}
		if o != "*" && !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			return "", fmt.Errorf("origin %q must start with http:// or https://", o)
		}
		origins = append(origins, o)
	}
	if len(origins) == 0 {
		return "", fmt.Errorf("--origins is required (comma-separated list)")
	}
	return strings.Join(origins, ","), nil
}

func newCorsSetCmd() *cobra.Command {
	var origins string
	var allowCreds bool
	var maxAge int
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set CORS configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			normalized, err := normalizeOrigins(origins)
			if err != nil {
				return err
			}
			if maxAge < 0 {
				return fmt.Errorf("--max-age must not be negative")
			}

			_, db, err := connect()
			if err != nil {
				return err
			}
			defer closeDB(db)

			c := &models.CorsConfig{
				AllowedOrigins:   normalized,
				AllowCredentials: allowCreds,
				MaxAge:           maxAge,
			}
			if err := database.NewCorsConfigRepository(db).Set(cmd.Context(), c); err != nil {
				return fmt.Errorf("failed to set cors config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "CORS configuration updated.")
			return nil
		},
	}
	cmd.Flags().StringVar(&origins, "origins", "", "Comma-separated allowed origins (required)")
	cmd.Flags().BoolVar(&allowCreds, "allow-credentials", true, "Allow credentials")
	cmd.Flags().IntVar(&maxAge, "max-age", 86400, "Access-Control-Max-Age in seconds")
	return cmd
}
