package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/runlog"
)

// LoadInfo summarises one run.
type LoadInfo struct {
	LoadID    string        `json:"load_id"`
	Status    runlog.Status `json:"status"`
	Records   int           `json:"records"`
	Skipped   int           `json:"skipped"`
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`
	DryRun    bool          `json:"dry_run,omitempty"`
}

// Notifier is told about every successful load. Failures to notify are
// logged, not returned.
type Notifier interface {
	LoadCompleted(ctx context.Context, info LoadInfo) error
}

// Pipeline runs Source → Stages → Sink.
type Pipeline struct {
	Source   Source
	Stages   []Stage
	Sink     Sink
	Notifier Notifier
	// DryRun drains the source through the stages without writing.
	DryRun bool

	newID func() string
}

// Run executes the pipeline once. Extraction errors abort the run and are
// returned as-is.
func (p *Pipeline) Run(ctx context.Context) (LoadInfo, error) {
	if p.Source == nil {
		return LoadInfo{}, errors.New("pipeline: no source")
	}
	if p.Sink == nil && !p.DryRun {
		return LoadInfo{}, errors.New("pipeline: no sink")
	}

	newID := p.newID
	if newID == nil {
		newID = uuid.NewString
	}
	loadID := newID()
	logger := slog.Default().With("component", "pipeline", "load_id", loadID)

	records := p.Source.Records(ctx)
	for _, st := range p.Stages {
		records = st.Run(ctx, records)
	}

	start := time.Now()
	logger.Info("run started", "stages", len(p.Stages), "dry_run", p.DryRun)

	var (
		info LoadInfo
		err  error
	)
	if p.DryRun {
		info, err = drain(loadID, records)
	} else {
		info, err = p.Sink.Load(ctx, loadID, records)
	}
	info.LoadID = loadID
	info.StartedAt = start
	info.Elapsed = time.Since(start)
	info.DryRun = p.DryRun
	if err != nil {
		logger.Error("run failed", "records", info.Records, "err", err)
		return info, err
	}

	logger.Info("run completed", "records", info.Records, "skipped", info.Skipped, "elapsed", info.Elapsed)
	if p.Notifier != nil && !p.DryRun {
		if nerr := p.Notifier.LoadCompleted(ctx, info); nerr != nil {
			logger.Warn("load notification failed", "err", nerr)
		}
	}
	return info, nil
}

func drain(loadID string, in Records) (LoadInfo, error) {
	info := LoadInfo{LoadID: loadID, Status: runlog.StatusStarted}
	for _, err := range in {
		if err != nil {
			info.Status = runlog.StatusFailed
			return info, err
		}
		info.Records++
	}
	info.Status = runlog.StatusCompleted
	return info, nil
}

// Describe renders the stage chain for logs and the CLI.
func (p *Pipeline) Describe() string {
	s := "source"
	for _, st := range p.Stages {
		s += " → " + st.Name()
	}
	if p.DryRun {
		return s + " → (dry run)"
	}
	return s + fmt.Sprintf(" → sink(%T)", p.Sink)
}
