package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/config"
	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/events"
	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/marts"
	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/pipeline"
	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/warehouse"
)

func init() {
	addExtractFlags(loadCmd)
	loadCmd.Flags().Bool("dry-run", false, "extract and filter without writing to the warehouse")
	loadCmd.Flags().Bool("show-fields", false, "print the distinct occupation fields in the warehouse after loading")
	loadCmd.Flags().Bool("refresh-marts", false, "rebuild the marts after a successful load")
	loadCmd.Flags().String("disposition", "", "append or merge (WRITE_DISPOSITION)")
	rootCmd.AddCommand(loadCmd)
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Runs the extract/load pipeline once.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		settings, err := jobsearchSettings(cmd, cfg.Jobsearch)
		if err != nil {
			return err
		}
		dispName := cfg.WriteDisposition
		if cmd.Flags().Changed("disposition") {
			dispName, _ = cmd.Flags().GetString("disposition")
		}
		disposition, err := warehouse.ParseDisposition(dispName)
		if err != nil {
			return err
		}
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		showFields, _ := cmd.Flags().GetBool("show-fields")
		refresh, _ := cmd.Flags().GetBool("refresh-marts")

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

		p, err := newPipeline(settings, wh, disposition, bus)
		if err != nil {
			return err
		}
		p.DryRun = dryRun
		slog.Info("pipeline", "chain", p.Describe(), "disposition", disposition)

		info, err := p.Run(ctx)
		if info.LoadID != "" {
			renderLoadInfo(cmd.OutOrStdout(), info)
		}
		if err != nil {
			return err
		}

		if refresh && !dryRun {
			if err := refreshMarts(ctx, wh, bus, info.LoadID); err != nil {
				return err
			}
		}
		if showFields {
			t, err := wh.Query(ctx, fmt.Sprintf(
				`SELECT DISTINCT occupation_field, occupation_field_id FROM %s ORDER BY occupation_field`, wh.RawTable()))
			if err != nil {
				return fmt.Errorf("show fields: %w", err)
			}
			renderTable(cmd.OutOrStdout(), t, 0)
		}
		return nil
	},
}

// newPipeline wires extractor, stages and warehouse sink. Successful loads
// are announced on bus.
func newPipeline(settings config.Jobsearch, wh warehouse.Warehouse, d warehouse.Disposition, bus events.Bus) (*pipeline.Pipeline, error) {
	ex, err := newExtractor(settings)
	if err != nil {
		return nil, err
	}
	return &pipeline.Pipeline{
		Source:   ex,
		Stages:   stages(settings),
		Sink:     pipeline.NewWarehouseSink(wh, d, 0),
		Notifier: events.LoadNotifier{Bus: bus},
	}, nil
}

// refreshMarts rebuilds every mart and announces it on bus.
func refreshMarts(ctx context.Context, wh warehouse.Warehouse, bus events.Bus, loadID string) error {
	if err := marts.NewBuilder(wh).Refresh(ctx); err != nil {
		return fmt.Errorf("refresh marts: %w", err)
	}
	return bus.Publish(ctx, events.Event{Type: events.MartsRefreshed, LoadID: loadID, At: time.Now().UTC()})
}
