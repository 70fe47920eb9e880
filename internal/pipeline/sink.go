package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/metrics"
	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/runlog"
	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/warehouse"
)

const defaultBatchSize = 500

// WarehouseSink writes records to a warehouse in batches and keeps the
// load's row in _loads current.
type WarehouseSink struct {
	wh          warehouse.Warehouse
	disposition warehouse.Disposition
	batchSize   int
	now         func() time.Time
	logger      *slog.Logger
}

// NewWarehouseSink returns a sink. batchSize <= 0 selects the default.
func NewWarehouseSink(wh warehouse.Warehouse, d warehouse.Disposition, batchSize int) *WarehouseSink {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &WarehouseSink{
		wh:          wh,
		disposition: d,
		batchSize:   batchSize,
		now:         time.Now,
		logger:      slog.Default().With("component", "sink"),
	}
}

// Load drains in. Records without an id are skipped with a warning. Every
// batch shares the run's load id and timestamp.
func (s *WarehouseSink) Load(ctx context.Context, loadID string, in Records) (LoadInfo, error) {
	loadedAt := s.now()
	run := runlog.New(loadID, loadedAt)
	if err := s.wh.SaveRun(ctx, run); err != nil {
		return LoadInfo{LoadID: loadID, Status: run.Status}, err
	}

	info := LoadInfo{LoadID: loadID}
	batch := make([]warehouse.Row, 0, s.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := run.Transition(runlog.StatusLoading, s.now()); err != nil {
			return err
		}
		n, err := s.wh.Write(ctx, loadID, loadedAt, batch, s.disposition)
		if err != nil {
			return fmt.Errorf("write batch: %w", err)
		}
		info.Records += n
		run.Records = info.Records
		metrics.RecordsLoaded.WithLabelValues(string(s.disposition)).Add(float64(n))
		batch = batch[:0]
		return nil
	}

	fail := func(err error) (LoadInfo, error) {
		if terr := run.Fail(err, s.now()); terr != nil {
			err = errors.Join(err, terr)
		}
		// The run record must survive a cancelled ctx.
		if serr := s.wh.SaveRun(context.WithoutCancel(ctx), run); serr != nil {
			s.logger.Warn("could not record failed load", "load_id", loadID, "err", serr)
		}
		metrics.PipelineRuns.WithLabelValues(string(runlog.StatusFailed)).Inc()
		info.Status = run.Status
		return info, err
	}

	for ad, err := range in {
		if err != nil {
			return fail(err)
		}
		if ad.ID == "" {
			info.Skipped++
			s.logger.Warn("skipping job ad without id", "load_id", loadID)
			continue
		}
		batch = append(batch, warehouse.RowFromAd(ad))
		if len(batch) >= s.batchSize {
			if err := flush(); err != nil {
				return fail(err)
			}
		}
	}
	if err := flush(); err != nil {
		return fail(err)
	}

	if err := run.Transition(runlog.StatusCompleted, s.now()); err != nil {
		return fail(err)
	}
	if err := s.wh.SaveRun(ctx, run); err != nil {
		return info, err
	}
	metrics.PipelineRuns.WithLabelValues(string(runlog.StatusCompleted)).Inc()
	info.Status = run.Status
	return info, nil
}
