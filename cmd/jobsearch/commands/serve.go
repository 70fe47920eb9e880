package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/dashboard"
	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/grpcserver"
	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/marts"
	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/scheduler"
)

func init() {
	serveCmd.Flags().Bool("no-sensor", false, "do not rebuild marts on load events")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the dashboard and gRPC health, rebuilding marts after every load.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		noSensor, _ := cmd.Flags().GetBool("no-sensor")

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

		builder := marts.NewBuilder(wh)
		cache := dashboard.NewCachedReader(builder, cfg.MartCacheTTL)
		h := dashboard.NewHandlers(cache, wh)
		srv := dashboard.NewServer(fmt.Sprintf(":%s", cfg.DashboardPort), dashboard.DefaultRoutes(h), h)
		health := grpcserver.NewServer(wh, 0)

		g, ctx := errgroup.WithContext(cmd.Context())
		g.Go(func() error { return srv.Start(ctx) })
		g.Go(func() error { return health.ListenAndServe(ctx, fmt.Sprintf(":%s", cfg.GRPCPort)) })
		g.Go(func() error { return cache.PurgeOnRefresh(ctx, bus) })
		if !noSensor {
			sensor := scheduler.NewSensor(bus, builder.Refresh)
			g.Go(func() error { return sensor.Run(ctx) })
		}

		err = g.Wait()
		slog.Info("shutting down")
		return err
	},
}
