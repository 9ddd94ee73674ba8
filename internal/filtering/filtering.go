// Package filtering runs records through the ordered discovery stages:
// dedup, freshness, description lookup, flag extraction, hard filter,
// enrichment, scoring and ranking.
package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/job-sieve/internal/enrich"
	"github.com/spigell/job-sieve/internal/freshness"
	"github.com/spigell/job-sieve/internal/hardfilter"
	"github.com/spigell/job-sieve/internal/job"
)

// Filter represents a single stage applied to records.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, deps Deps, r *job.Records) (*job.Records, Step, error)
}

// Deduper keeps records not seen in earlier runs.
type Deduper interface {
	FilterNew(records []*job.Record) ([]*job.Record, error)
}

// FlagExtractor never fails; the bool reports fallback use.
type FlagExtractor interface {
	Extract(ctx context.Context, rec *job.Record) (*job.FlagSet, bool)
}

// RecordScorer computes and attaches a score breakdown.
type RecordScorer interface {
	Score(ctx context.Context, rec *job.Record) job.ScoreBreakdown
}

// Deps aggregates dependencies shared across all stages.
type Deps struct {
	Logger     *zap.Logger
	Dedup      Deduper
	Freshness  *freshness.Filter
	Flags      FlagExtractor
	HardFilter *hardfilter.Filter
	Describer  enrich.Describer
	Enricher   enrich.Enricher
	Scorer     RecordScorer
}

// Step describes the result of executing a stage.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Config contains settings consumed by the stages.
type Config struct {
	MinScore float64
	TopN     int
	// MaxEnrich bounds enrichment lookups per run. Zero means no limit.
	MaxEnrich int
	// MaxDescribe bounds description lookups per run. Zero means no limit.
	MaxDescribe int
}

// Status represents runtime information about a stage.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// Report collects per-stage results and counters of a run.
type Report struct {
	Steps    map[string]Step
	Counters map[string]int
}

// Counter names reported by stages.
const (
	CounterFallbackExtractions = "fallback_extractions"
	CounterEnrichmentFailures  = "enrichment_failures"
	CounterDescriptionsFilled  = "descriptions_filled"
	CounterDescriptionFailures = "description_failures"
	CounterBelowThreshold      = "below_threshold"
	CounterTruncated           = "truncated"
)

// statusProvider is implemented by stages that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// counterProvider is implemented by stages that count more than dropped records.
type counterProvider interface {
	Counters() map[string]int
}

// DisableByName marks a stage with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Default returns the stages in pipeline order.
func Default() []Filter {
	return []Filter{
		NewDedup(),
		NewFreshness(),
		NewDescribe(),
		NewExtract(),
		NewHardFilter(),
		NewEnrich(),
		NewScore(),
		NewRank(),
	}
}

// Run executes the supplied stages sequentially. Running out of records is not
// an error; the remaining stages see an empty list.
func Run(ctx context.Context, cfg *Config, deps Deps, steps []Filter, r *job.Records) (*job.Records, *Report, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if r == nil {
		r = job.NewRecords()
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	report := &Report{Steps: make(map[string]Step), Counters: make(map[string]int)}
	for _, step := range steps {
		if !step.IsEnabled() {
			deps.Logger.Info("filter disabled", zap.String("name", step.Name()))
			continue
		}

		next, info, err := step.Apply(ctx, deps, r)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		deps.Logger.Info("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		r = next
		report.Steps[step.Name()] = info

		if collector, ok := step.(counterProvider); ok {
			for name, n := range collector.Counters() {
				report.Counters[name] += n
			}
		}
	}

	return r, report, nil
}

// Dropped returns how many records the named stage discarded.
func (r *Report) Dropped(name string) int {
	if r == nil {
		return 0
	}
	return r.Steps[name].Dropped
}

// Counter returns a named counter.
func (r *Report) Counter(name string) int {
	if r == nil {
		return 0
	}
	return r.Counters[name]
}

// Describe returns status entries for the provided stages.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

func dropStep(initial int, r *job.Records) Step {
	return Step{Initial: initial, Dropped: initial - r.Len(), Left: r.Len()}
}
