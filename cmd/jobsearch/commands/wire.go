package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/config"
	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/db"
	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/events"
	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/jobsearch"
	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/pipeline"
	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/warehouse"
)

const userAgent = "hr-analytics-jobsearch-cli/1.0"

// openWarehouse connects the configured backend and migrates it.
func openWarehouse(ctx context.Context, c *config.Config) (warehouse.Warehouse, error) {
	var (
		wh  warehouse.Warehouse
		err error
	)
	switch c.WarehouseDriver {
	case config.DriverPostgres:
		slog.Info("connecting to postgres")
		pool, perr := db.NewPostgresPool(ctx, c.DatabaseURL, 10)
		if perr != nil {
			return nil, fmt.Errorf("postgres: %w", perr)
		}
		wh = warehouse.NewPostgres(pool, c.WarehouseSchema)
	default:
		slog.Info("opening sqlite warehouse", "path", c.SQLitePath)
		wh, err = warehouse.OpenSQLite(ctx, c.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
	}

	if err := wh.Migrate(ctx); err != nil {
		wh.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return wh, nil
}

// openBus returns a Redis bus when REDIS_URL is set, otherwise an
// in-process bus. The returned close func is never nil.
func openBus(ctx context.Context, c *config.Config) (events.Bus, func(), error) {
	rdb, err := db.NewRedisClient(ctx, c.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	if rdb == nil {
		slog.Debug("REDIS_URL not set, using in-process event bus")
		return events.NewLocalBus(), func() {}, nil
	}
	slog.Info("redis connected")
	return events.NewRedisBus(rdb), func() { rdb.Close() }, nil
}

// newExtractor builds the paged source from c.
func newExtractor(c config.Jobsearch) (*jobsearch.Extractor, error) {
	client := jobsearch.NewClient(c.BaseURL,
		jobsearch.WithTimeout(c.HTTPTimeout),
		jobsearch.WithRateLimit(c.RequestsPerSecond),
		jobsearch.WithUserAgent(userAgent),
	)
	return jobsearch.NewExtractor(client, jobsearch.Params{
		Query:            c.Query,
		OccupationFields: c.OccupationFields,
		Limit:            c.Limit,
		Offset:           c.Offset,
		MaxOffset:        c.MaxOffset,
	})
}

// stages lists the transforms applied between extract and load.
func stages(c config.Jobsearch) []pipeline.Stage {
	var out []pipeline.Stage
	if len(c.ExcludeTerms) > 0 {
		out = append(out, pipeline.ExcludeTerms(c.ExcludeTerms))
	}
	return out
}
