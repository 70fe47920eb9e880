package jobsearch

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/metrics"
	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/model"
)

// Params configures an extraction. Each entry of OccupationFields gets its
// own sequential run, in order.
type Params struct {
	Query            string
	OccupationFields []string
	Limit            int
	Offset           int
	MaxOffset        int
}

// Extractor turns paged search results into one lazy sequence of job ads.
type Extractor struct {
	fetcher PageFetcher
	params  Params
	logger  *slog.Logger
}

// NewExtractor validates params and returns an Extractor.
func NewExtractor(fetcher PageFetcher, params Params) (*Extractor, error) {
	if params.Limit < 1 {
		return nil, fmt.Errorf("limit must be positive, got %d", params.Limit)
	}
	if params.Offset < 0 {
		return nil, fmt.Errorf("offset must not be negative, got %d", params.Offset)
	}
	if params.MaxOffset < 0 {
		return nil, fmt.Errorf("max offset must not be negative, got %d", params.MaxOffset)
	}
	fields := make([]string, len(params.OccupationFields))
	copy(fields, params.OccupationFields)
	params.OccupationFields = fields

	return &Extractor{
		fetcher: fetcher,
		params:  params,
		logger:  slog.Default().With("component", "extractor"),
	}, nil
}

// Records returns the job ads of every occupation field, concatenated in
// the configured order. Nothing is fetched until the sequence is ranged
// over, and each range starts from the initial offset again. Breaking out
// of the loop stops further requests. The first fetch error is yielded once
// and ends the sequence.
func (e *Extractor) Records(ctx context.Context) iter.Seq2[model.JobAd, error] {
	return func(yield func(model.JobAd, error) bool) {
		for _, field := range e.params.OccupationFields {
			if !e.run(ctx, field, yield) {
				return
			}
		}
	}
}

// run pages through a single occupation field. It returns false when the
// sequence must end.
func (e *Extractor) run(ctx context.Context, field string, yield func(model.JobAd, error) bool) bool {
	cur := Cursor{Offset: e.params.Offset, Limit: e.params.Limit, MaxOffset: e.params.MaxOffset}
	if !cur.InBounds() {
		e.logger.Debug("initial offset past max offset, skipping", "occupation_field", field, "offset", cur.Offset)
		return true
	}

	pages, records := 0, 0
	for {
		page, err := e.fetcher.FetchPage(ctx, model.PageRequest{
			Query:           e.params.Query,
			OccupationField: field,
			Offset:          cur.Offset,
			Limit:           cur.Limit,
		})
		if err != nil {
			e.logger.Error("fetch failed", "occupation_field", field, "offset", cur.Offset, "err", err)
			yield(model.JobAd{}, err)
			return false
		}
		pages++
		metrics.PagesFetched.WithLabelValues(field).Inc()
		if page.Total != nil && pages == 1 {
			e.logger.Debug("search total", "occupation_field", field, "total", *page.Total)
		}

		for _, ad := range page.Hits {
			records++
			metrics.RecordsExtracted.WithLabelValues(field).Inc()
			if !yield(ad, nil) {
				return false
			}
		}

		next, more := cur.Next(len(page.Hits))
		if !more {
			break
		}
		cur = next
	}

	e.logger.Info("occupation field done", "occupation_field", field, "pages", pages, "records", records)
	return true
}
