// Package sources fetches postings from adapters and normalizes them.
package sources

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/job-sieve/internal/job"
	"github.com/spigell/job-sieve/internal/normalize"
)

const DefaultTimeout = 2 * time.Minute

// Source produces records from one place. Adapters share no state.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]*job.Record, error)
}

// Failure records an adapter that returned an error or panicked.
type Failure struct {
	Source string
	Err    error
}

// Result holds the merged records in adapter order and the failed adapters.
type Result struct {
	Records  []*job.Record
	Failures []Failure
}

// Options tune Collect.
type Options struct {
	// Timeout bounds each adapter separately.
	Timeout time.Duration
	// MaxPerSource caps the records kept from each adapter. Zero means no cap.
	MaxPerSource int
}

// Collect runs adapters concurrently. A failing or panicking adapter is logged
// and counted and never cancels the others.
func Collect(ctx context.Context, srcs []Source, opts Options, logger *zap.Logger) Result {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	fetched := make([][]*job.Record, len(srcs))
	errs := make([]error, len(srcs))

	var g errgroup.Group
	for i, src := range srcs {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("source panicked: %v", r)
				}
			}()

			fctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			logger.Debug("fetching source", zap.String("source", src.Name()))
			records, err := src.Fetch(fctx)
			if err != nil {
				errs[i] = err
				return nil
			}
			fetched[i] = records
			return nil
		})
	}
	_ = g.Wait()

	var res Result
	for i, src := range srcs {
		if err := errs[i]; err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				logger.Warn("source timed out", zap.String("source", src.Name()), zap.Duration("timeout", timeout))
			} else {
				logger.Warn("source failed", zap.String("source", src.Name()), zap.Error(err))
			}
			res.Failures = append(res.Failures, Failure{Source: src.Name(), Err: err})
			continue
		}

		records := fetched[i]
		if opts.MaxPerSource > 0 && len(records) > opts.MaxPerSource {
			records = records[:opts.MaxPerSource]
		}
		for _, rec := range records {
			if rec == nil {
				continue
			}
			res.Records = append(res.Records, normalize.Record(rec, src.Name()))
		}

		logger.Info("source fetched", zap.String("source", src.Name()), zap.Int("records", len(records)))
	}

	return res
}
