package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/config"
	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/logging"
)

// cfg is loaded once before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "jobsearch",
	Short:         "jobsearch loads JobTech job ads into a warehouse and serves the HR analytics dashboard.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		level, err := logging.ParseLevel(c.LogLevel)
		if err != nil {
			return fmt.Errorf("config: LOG_LEVEL: %w", err)
		}
		logging.Init(level, c.LogFormat)
		cfg = c
		return nil
	},
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "jobsearch:", err)
		os.Exit(1)
	}
}
