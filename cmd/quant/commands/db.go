package commands

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "PostgreSQL maintenance",
	Long: `Checks the database connection and applies the schema.

Subcommands:
  check    - ping and show pool statistics
  migrate  - create market.daily_bars and trading.plans if missing

Example:
  go run ./cmd/quant db check
  go run ./cmd/quant db migrate`,
}

var (
	dbCheckCmd = &cobra.Command{
		Use:   "check",
		Short: "Test the database connection",
		RunE:  runDBCheck,
	}

	dbMigrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply the schema",
		RunE:  runDBMigrate,
	}
)

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbCheckCmd)
	dbCmd.AddCommand(dbMigrateCmd)
}

var errNoDatabase = errors.New("DATABASE_URL is not set")

func runDBCheck(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()
	if a.db == nil {
		return errNoDatabase
	}

	out := cmd.OutOrStdout()
	PrintHeader(out, "Database connection test")
	PrintKeyValue(out, "URL", maskPassword(a.cfg.Database.URL), 16)

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	status := a.db.HealthCheck(ctx)
	if !status.Healthy {
		return fmt.Errorf("❌ health check failed: %s", status.Error)
	}

	PrintKeyValue(out, "Healthy", fmt.Sprintf("%v", status.Healthy), 16)
	PrintKeyValue(out, "Response time", status.ResponseTime.String(), 16)
	PrintKeyValue(out, "Total conns", fmt.Sprintf("%d", status.TotalConns), 16)
	PrintKeyValue(out, "Idle conns", fmt.Sprintf("%d", status.IdleConns), 16)
	fmt.Fprintln(out, "\n✅ All tests passed!")
	return nil
}

func runDBMigrate(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()
	if a.db == nil {
		return errNoDatabase
	}

	if err := a.db.EnsureSchema(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✅ Schema is up to date")
	return nil
}

// maskPassword hides the password in a database URL for display
func maskPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}
