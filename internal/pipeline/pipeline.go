// Package pipeline drives one discovery run: collect, filter, score, rank.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/job-sieve/internal/filtering"
	"github.com/spigell/job-sieve/internal/job"
	"github.com/spigell/job-sieve/internal/sources"
)

// NewRunID returns a fresh identity for log correlation.
func NewRunID() string {
	return uuid.NewString()
}

// Summary reports counts discarded or degraded at each stage.
type Summary struct {
	RunID               string
	Scraped             int
	SourceFailures      int
	Duplicates          int
	Stale               int
	HardFiltered        int
	DescriptionsFilled  int
	DescriptionFailures int
	FallbackExtractions int
	EnrichmentFailures  int
	BelowThreshold      int
	Truncated           int
	Ranked              int
	Duration            time.Duration
}

// Empty reports a successful run that produced no ranked records.
func (s *Summary) Empty() bool {
	return s.Ranked == 0
}

func (s *Summary) Fields() []zap.Field {
	return []zap.Field{
		zap.String("run_id", s.RunID),
		zap.Int("scraped", s.Scraped),
		zap.Int("source_failures", s.SourceFailures),
		zap.Int("duplicates", s.Duplicates),
		zap.Int("stale", s.Stale),
		zap.Int("hard_filtered", s.HardFiltered),
		zap.Int("descriptions_filled", s.DescriptionsFilled),
		zap.Int("description_failures", s.DescriptionFailures),
		zap.Int("fallback_extractions", s.FallbackExtractions),
		zap.Int("enrichment_failures", s.EnrichmentFailures),
		zap.Int("below_threshold", s.BelowThreshold),
		zap.Int("truncated", s.Truncated),
		zap.Int("ranked", s.Ranked),
		zap.Duration("duration", s.Duration),
	}
}

// Pipeline owns the long-lived services of a run.
type Pipeline struct {
	RunID   string
	Sources []sources.Source
	Collect sources.Options
	Steps   []filtering.Filter
	Config  *filtering.Config
	Deps    filtering.Deps
	// Reset hooks clear service caches before each run.
	Reset []func()

	now func() time.Time
}

func New(runID string, deps filtering.Deps, cfg *filtering.Config) *Pipeline {
	if runID == "" {
		runID = NewRunID()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Pipeline{
		RunID:  runID,
		Steps:  filtering.Default(),
		Config: cfg,
		Deps:   deps,
		now:    time.Now,
	}
}

// Run collects records from the sources and passes them through the stages.
// A run that ends with zero records returns an empty list and a nil error.
func (p *Pipeline) Run(ctx context.Context) (*job.Records, *Summary, error) {
	started := p.now()
	for _, reset := range p.Reset {
		reset()
	}

	collected := sources.Collect(ctx, p.Sources, p.Collect, p.Deps.Logger)
	records, summary, err := p.Process(ctx, job.NewRecords(collected.Records...))
	if err != nil {
		return nil, nil, err
	}

	summary.Scraped = len(collected.Records)
	summary.SourceFailures = len(collected.Failures)
	summary.Duration = p.now().Sub(started)

	p.Deps.Logger.Info("run summary", summary.Fields()...)
	if summary.Empty() {
		p.Deps.Logger.Info("no records qualified; consider lowering the minimum score")
	}

	return records, summary, nil
}

// Process runs already collected records through the stages.
func (p *Pipeline) Process(ctx context.Context, records *job.Records) (*job.Records, *Summary, error) {
	scraped := records.Len()
	out, report, err := filtering.Run(ctx, p.Config, p.Deps, p.Steps, records)
	if err != nil {
		return nil, nil, err
	}

	return out, &Summary{
		RunID:               p.RunID,
		Scraped:             scraped,
		Duplicates:          report.Dropped(filtering.NameDedup),
		Stale:               report.Dropped(filtering.NameFreshness),
		HardFiltered:        report.Dropped(filtering.NameHardFilter),
		DescriptionsFilled:  report.Counter(filtering.CounterDescriptionsFilled),
		DescriptionFailures: report.Counter(filtering.CounterDescriptionFailures),
		FallbackExtractions: report.Counter(filtering.CounterFallbackExtractions),
		EnrichmentFailures:  report.Counter(filtering.CounterEnrichmentFailures),
		BelowThreshold:      report.Counter(filtering.CounterBelowThreshold),
		Truncated:           report.Counter(filtering.CounterTruncated),
		Ranked:              out.Len(),
	}, nil
}
