// Package pipeline wires a source of job ads through transform stages into
// a sink. Components are plain values composed by the caller; nothing
// registers itself.
package pipeline

import (
	"context"
	"iter"

	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/model"
)

// Records is a lazy sequence of job ads. A non-nil error ends it.
type Records = iter.Seq2[model.JobAd, error]

// Source produces the records of one run. *jobsearch.Extractor satisfies it.
type Source interface {
	Records(ctx context.Context) Records
}

// Stage transforms a record sequence. Stages must stay lazy: they may only
// pull from in while they are being pulled from.
type Stage interface {
	Name() string
	Run(ctx context.Context, in Records) Records
}

// Sink consumes a record sequence and reports what it stored.
type Sink interface {
	Load(ctx context.Context, loadID string, in Records) (LoadInfo, error)
}

// StageFunc adapts a per-record function to a Stage. keep=false drops the
// record.
type StageFunc struct {
	StageName string
	Fn        func(ctx context.Context, ad model.JobAd) (out model.JobAd, keep bool, err error)
}

func (s StageFunc) Name() string { return s.StageName }

func (s StageFunc) Run(ctx context.Context, in Records) Records {
	return func(yield func(model.JobAd, error) bool) {
		for ad, err := range in {
			if err != nil {
				yield(model.JobAd{}, err)
				return
			}
			out, keep, err := s.Fn(ctx, ad)
			if err != nil {
				yield(model.JobAd{}, err)
				return
			}
			if !keep {
				continue
			}
			if !yield(out, nil) {
				return
			}
		}
	}
}
