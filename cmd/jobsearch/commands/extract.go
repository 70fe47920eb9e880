package commands

import (
	"bufio"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/config"
	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/warehouse"
)

func init() {
	addExtractFlags(extractCmd)
	extractCmd.Flags().Bool("table", false, "print a summary table instead of JSON lines")
	rootCmd.AddCommand(extractCmd)
}

// addExtractFlags registers the flags that override JOBSEARCH_* settings.
func addExtractFlags(cmd *cobra.Command) {
	cmd.Flags().String("query", "", "free-text search query (JOBSEARCH_QUERY)")
	cmd.Flags().StringSlice("occupation-field", nil, "occupation-field concept id, repeatable (JOBSEARCH_OCCUPATION_FIELDS)")
	cmd.Flags().Int("limit", 0, "page size (JOBSEARCH_LIMIT)")
	cmd.Flags().Int("offset", 0, "initial offset (JOBSEARCH_OFFSET)")
	cmd.Flags().Int("max-offset", 0, "largest offset requested (JOBSEARCH_MAX_OFFSET)")
}

// jobsearchSettings applies changed flags on top of the environment.
func jobsearchSettings(cmd *cobra.Command, base config.Jobsearch) (config.Jobsearch, error) {
	out := base
	flags := cmd.Flags()
	if flags.Changed("query") {
		out.Query, _ = flags.GetString("query")
	}
	if flags.Changed("occupation-field") {
		fields, _ := flags.GetStringSlice("occupation-field")
		if len(fields) == 0 {
			fields = []string{""}
		}
		out.OccupationFields = fields
	}
	if flags.Changed("limit") {
		out.Limit, _ = flags.GetInt("limit")
		if out.Limit < 1 {
			return out, fmt.Errorf("--limit must be positive, got %d", out.Limit)
		}
	}
	if flags.Changed("offset") {
		out.Offset, _ = flags.GetInt("offset")
		if out.Offset < 0 {
			return out, fmt.Errorf("--offset must not be negative, got %d", out.Offset)
		}
	}
	if flags.Changed("max-offset") {
		out.MaxOffset, _ = flags.GetInt("max-offset")
		if out.MaxOffset < 0 {
			return out, fmt.Errorf("--max-offset must not be negative, got %d", out.MaxOffset)
		}
	}
	return out, nil
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Streams job ads from the search API to stdout, one raw JSON document per line.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := jobsearchSettings(cmd, cfg.Jobsearch)
		if err != nil {
			return err
		}
		ex, err := newExtractor(settings)
		if err != nil {
			return err
		}
		asTable, _ := cmd.Flags().GetBool("table")

		if asTable {
			t := &warehouse.Table{Columns: []string{"id", "headline", "occupation_field", "employer_name", "application_deadline"}}
			for ad, err := range ex.Records(cmd.Context()) {
				if err != nil {
					return err
				}
				r := warehouse.RowFromAd(ad)
				t.Rows = append(t.Rows, []any{r.ID, r.Headline, r.OccupationField, r.EmployerName, r.ApplicationDeadline})
			}
			renderTable(cmd.OutOrStdout(), t, 0)
			return nil
		}

		out := bufio.NewWriter(cmd.OutOrStdout())
		defer out.Flush()
		n := 0
		for ad, err := range ex.Records(cmd.Context()) {
			if err != nil {
				out.Flush()
				return err
			}
			out.Write(ad.Raw)
			out.WriteByte('\n')
			n++
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%d job ads\n", n)
		return nil
	},
}
