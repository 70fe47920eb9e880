package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/dashboard"
	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/marts"
)

func init() {
	martsShowCmd.Flags().String("occupation-field", "", "only rows of this occupation field label")
	martsShowCmd.Flags().Int("rows", 50, "maximum rows to print, 0 for all")
	martsCmd.AddCommand(martsRefreshCmd, martsShowCmd, martsListCmd)
	rootCmd.AddCommand(martsCmd)
}

var martsCmd = &cobra.Command{
	Use:   "marts",
	Short: "Rebuilds or inspects the analysis marts.",
}

var martsRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Rebuilds every mart from the latest version of each job ad.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		wh, err := openWarehouse(ctx, cfg)
		if err != nil {
			return err
		}
		defer wh.Close()

		bus, closeBus, err := openBus(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeBus()

		if err := refreshMarts(ctx, wh, bus, ""); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "refreshed %s\n", strings.Join(marts.Names(), ", "))
		return nil
	},
}

var martsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists the mart names.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, n := range marts.Names() {
			fmt.Fprintln(cmd.OutOrStdout(), n)
		}
	},
}

var martsShowCmd = &cobra.Command{
	Use:       "show <mart>",
	Short:     "Prints a mart as a table.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: marts.Names(),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if !marts.Known(name) {
			return fmt.Errorf("%w %q, want one of: %s", marts.ErrUnknownMart, name, strings.Join(marts.Names(), ", "))
		}
		field, _ := cmd.Flags().GetString("occupation-field")
		maxRows, _ := cmd.Flags().GetInt("rows")

		ctx := cmd.Context()
		wh, err := openWarehouse(ctx, cfg)
		if err != nil {
			return err
		}
		defer wh.Close()

		t, err := marts.NewBuilder(wh).Query(ctx, name)
		if err != nil {
			return err
		}
		if field != "" && field != dashboard.OptionAll {
			t = t.Filter("occupation_field", field)
		}
		renderTable(cmd.OutOrStdout(), t, maxRows)
		return nil
	},
}
