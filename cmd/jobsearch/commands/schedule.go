package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/marts"
	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/pipeline"
	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/scheduler"
	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/warehouse"
)

func init() {
	scheduleCmd.Flags().Bool("run-now", false, "also run one load immediately")
	scheduleCmd.Flags().String("cron", "", "five-field cron spec in UTC (SCHEDULE_CRON)")
	rootCmd.AddCommand(scheduleCmd)
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Runs the load pipeline on a cron schedule and rebuilds the marts after each load.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		spec := cfg.ScheduleCron
		if cmd.Flags().Changed("cron") {
			spec, _ = cmd.Flags().GetString("cron")
		}
		runNow, _ := cmd.Flags().GetBool("run-now")

		disposition, err := warehouse.ParseDisposition(cfg.WriteDisposition)
		if err != nil {
			return err
		}

		wh, err := openWarehouse(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer wh.Close()

		bus, closeBus, err := openBus(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeBus()

		p, err := newPipeline(cfg.Jobsearch, wh, disposition, bus)
		if err != nil {
			return err
		}
		slog.Info("pipeline", "chain", p.Describe(), "disposition", disposition)

		var opts []scheduler.Option
		if runNow {
			opts = append(opts, scheduler.RunOnStart())
		}
		sched := scheduler.New(spec, func(ctx context.Context) (pipeline.LoadInfo, error) { return p.Run(ctx) }, opts...)
		sensor := scheduler.NewSensor(bus, marts.NewBuilder(wh).Refresh)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return sensor.Run(ctx) })
		if err := sched.Start(ctx); err != nil {
			cancel()
			_ = g.Wait()
			return fmt.Errorf("scheduler: %w", err)
		}

		<-ctx.Done()
		slog.Info("shutting down")
		sched.Stop()
		return g.Wait()
	},
}
