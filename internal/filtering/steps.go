package filtering

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/job-sieve/internal/enrich"
	"github.com/spigell/job-sieve/internal/job"
	"github.com/spigell/job-sieve/internal/logger"
	"github.com/spigell/job-sieve/internal/ranking"
)

const (
	NameDedup      = "dedup"
	NameFreshness  = "freshness"
	NameDescribe   = "describe"
	NameExtract    = "extract"
	NameHardFilter = "hard_filter"
	NameEnrich     = "enrich"
	NameScore      = "score"
	NameRank       = "rank"
)

// toggle carries the enabled state shared by all stages.
type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

type dedupFilter struct {
	toggle
}

// NewDedup creates the stage that drops records seen in this or earlier runs.
func NewDedup() Filter {
	return &dedupFilter{}
}

func (f *dedupFilter) Name() string { return NameDedup }

func (f *dedupFilter) Validate(*Config) error { return nil }

func (f *dedupFilter) Apply(_ context.Context, deps Deps, r *job.Records) (*job.Records, Step, error) {
	initial := r.Len()
	if deps.Dedup == nil {
		return r, Step{}, errors.New("dedup store is required")
	}

	fresh, err := deps.Dedup.FilterNew(r.Items)
	if err != nil {
		return r, Step{}, err
	}

	r.Items = fresh
	return r, dropStep(initial, r), nil
}

func (f *dedupFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}

type freshnessFilter struct {
	toggle
}

// NewFreshness creates the stage that drops stale postings.
func NewFreshness() Filter {
	return &freshnessFilter{}
}

func (f *freshnessFilter) Name() string { return NameFreshness }

func (f *freshnessFilter) Validate(*Config) error { return nil }

func (f *freshnessFilter) Apply(_ context.Context, deps Deps, r *job.Records) (*job.Records, Step, error) {
	initial := r.Len()
	if deps.Freshness == nil {
		return r, Step{}, errors.New("freshness filter is required")
	}

	r.Keep(func(rec *job.Record) bool {
		verdict := deps.Freshness.Evaluate(rec)
		if !verdict.Keep {
			deps.Logger.Info("discarding stale record",
				append(logger.RecordFields(rec), zap.String("reason", verdict.Reason))...,
			)
		}
		return verdict.Keep
	})

	return r, dropStep(initial, r), nil
}

func (f *freshnessFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}

type describeFilter struct {
	toggle
	limit    int
	filled   int
	failures int
}

// NewDescribe creates the stage that replaces thin descriptions with the full
// posting text. It never drops records.
func NewDescribe() Filter {
	return &describeFilter{}
}

func (f *describeFilter) Name() string { return NameDescribe }

func (f *describeFilter) Validate(cfg *Config) error {
	f.limit = 0
	if cfg != nil {
		if cfg.MaxDescribe < 0 {
			return fmt.Errorf("max describe must not be negative, got %d", cfg.MaxDescribe)
		}
		f.limit = cfg.MaxDescribe
	}
	return nil
}

func (f *describeFilter) Apply(ctx context.Context, deps Deps, r *job.Records) (*job.Records, Step, error) {
	initial := r.Len()
	f.filled, f.failures = 0, 0
	if deps.Describer == nil {
		deps.Logger.Info("description lookup is not configured; skipping describe stage")
		return r, dropStep(initial, r), nil
	}

	thin := make([]*job.Record, 0)
	for _, rec := range r.Items {
		if f.limit > 0 && len(thin) >= f.limit {
			break
		}
		if rec.URL != "" && enrich.IsThin(rec) {
			thin = append(thin, rec)
		}
	}

	for start := 0; start < len(thin); start += enrich.ExtractBatchSize {
		batch := thin[start:min(start+enrich.ExtractBatchSize, len(thin))]

		urls := make([]string, 0, len(batch))
		for _, rec := range batch {
			urls = append(urls, rec.URL)
		}

		texts, err := deps.Describer.Extract(ctx, urls)
		if err != nil {
			deps.Logger.Warn("page extraction failed; falling back to search",
				zap.Int("urls", len(urls)), zap.Error(err),
			)
		}

		for _, rec := range batch {
			text, ok := texts[rec.URL]
			if !ok {
				text, err = deps.Describer.SearchDescription(ctx, rec)
				if err != nil {
					f.failures++
					deps.Logger.Warn("description lookup failed",
						append(logger.RecordFields(rec), zap.Error(err))...,
					)
					continue
				}
			}

			// Only longer text replaces what the source provided.
			if utf8.RuneCountInString(text) > utf8.RuneCountInString(strings.TrimSpace(rec.Description)) {
				rec.Description = text
				f.filled++
			}
		}
	}

	return r, dropStep(initial, r), nil
}

func (f *describeFilter) Counters() map[string]int {
	return map[string]int{
		CounterDescriptionsFilled:  f.filled,
		CounterDescriptionFailures: f.failures,
	}
}

func (f *describeFilter) Status() Status {
	details := map[string]string{}
	if f.limit > 0 {
		details["max_records"] = strconv.Itoa(f.limit)
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

type extractFilter struct {
	toggle
	fallbacks int
}

// NewExtract creates the stage that attaches flags to every record.
func NewExtract() Filter {
	return &extractFilter{}
}

func (f *extractFilter) Name() string { return NameExtract }

func (f *extractFilter) Validate(*Config) error { return nil }

func (f *extractFilter) Apply(ctx context.Context, deps Deps, r *job.Records) (*job.Records, Step, error) {
	initial := r.Len()
	if deps.Flags == nil {
		return r, Step{}, errors.New("flag extractor is required")
	}

	f.fallbacks = 0
	for _, rec := range r.Items {
		flags, usedFallback := deps.Flags.Extract(ctx, rec)
		rec.Flags = flags
		if usedFallback {
			f.fallbacks++
		}
	}

	if reporter, ok := deps.Flags.(interface{ Report() }); ok {
		reporter.Report()
	}

	return r, dropStep(initial, r), nil
}

func (f *extractFilter) Counters() map[string]int {
	return map[string]int{CounterFallbackExtractions: f.fallbacks}
}

func (f *extractFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}

type hardFilter struct {
	toggle
}

// NewHardFilter creates the stage that applies non-negotiable constraints.
func NewHardFilter() Filter {
	return &hardFilter{}
}

func (f *hardFilter) Name() string { return NameHardFilter }

func (f *hardFilter) Validate(*Config) error { return nil }

func (f *hardFilter) Apply(_ context.Context, deps Deps, r *job.Records) (*job.Records, Step, error) {
	initial := r.Len()
	if deps.HardFilter == nil {
		return r, Step{}, errors.New("hard filter is required")
	}

	r.Keep(func(rec *job.Record) bool {
		keep, reason := deps.HardFilter.Check(rec)
		if !keep {
			deps.Logger.Info("discarding record by hard filter",
				append(logger.RecordFields(rec), zap.String("reason", string(reason)))...,
			)
		}
		return keep
	})

	return r, dropStep(initial, r), nil
}

func (f *hardFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}

type enrichFilter struct {
	toggle
	limit    int
	failures int
}

// NewEnrich creates the stage that attaches company metadata. It never drops
// records.
func NewEnrich() Filter {
	return &enrichFilter{}
}

func (f *enrichFilter) Name() string { return NameEnrich }

func (f *enrichFilter) Validate(cfg *Config) error {
	f.limit = 0
	if cfg != nil {
		if cfg.MaxEnrich < 0 {
			return fmt.Errorf("max enrich must not be negative, got %d", cfg.MaxEnrich)
		}
		f.limit = cfg.MaxEnrich
	}
	return nil
}

func (f *enrichFilter) Apply(ctx context.Context, deps Deps, r *job.Records) (*job.Records, Step, error) {
	initial := r.Len()
	f.failures = 0
	if deps.Enricher == nil {
		deps.Logger.Info("company enrichment is not configured; skipping enrich stage")
		return r, dropStep(initial, r), nil
	}

	for i, rec := range r.Items {
		if f.limit > 0 && i >= f.limit {
			break
		}

		enrichment, err := deps.Enricher.Enrich(ctx, rec.Company)
		if err != nil {
			f.failures++
			deps.Logger.Warn("company enrichment failed",
				append(logger.RecordFields(rec), zap.Error(err))...,
			)
		}
		if enrichment.Useful() {
			rec.Enrichment = enrichment
		}
	}

	return r, dropStep(initial, r), nil
}

func (f *enrichFilter) Counters() map[string]int {
	return map[string]int{CounterEnrichmentFailures: f.failures}
}

func (f *enrichFilter) Status() Status {
	details := map[string]string{}
	if f.limit > 0 {
		details["max_records"] = strconv.Itoa(f.limit)
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

type scoreFilter struct {
	toggle
}

// NewScore creates the stage that scores every record.
func NewScore() Filter {
	return &scoreFilter{}
}

func (f *scoreFilter) Name() string { return NameScore }

func (f *scoreFilter) Validate(*Config) error { return nil }

func (f *scoreFilter) Apply(ctx context.Context, deps Deps, r *job.Records) (*job.Records, Step, error) {
	initial := r.Len()
	if deps.Scorer == nil {
		return r, Step{}, errors.New("scorer is required")
	}

	for _, rec := range r.Items {
		deps.Scorer.Score(ctx, rec)
	}

	return r, dropStep(initial, r), nil
}

func (f *scoreFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}

type rankFilter struct {
	toggle
	minScore       float64
	topN           int
	belowThreshold int
	truncated      int
}

// NewRank creates the final stage that orders and truncates records.
func NewRank() Filter {
	return &rankFilter{}
}

func (f *rankFilter) Name() string { return NameRank }

func (f *rankFilter) Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("rank configuration is required")
	}
	if cfg.TopN < 0 {
		return fmt.Errorf("top-n must not be negative, got %d", cfg.TopN)
	}
	f.minScore = cfg.MinScore
	f.topN = cfg.TopN
	return nil
}

func (f *rankFilter) Apply(_ context.Context, _ Deps, r *job.Records) (*job.Records, Step, error) {
	initial := r.Len()
	if err := ranking.Validate(r.Items); err != nil {
		return r, Step{}, err
	}

	res := ranking.Rank(r.Items, f.minScore, f.topN)
	f.belowThreshold = res.BelowThreshold
	f.truncated = res.Truncated

	r.Items = res.Ranked
	return r, dropStep(initial, r), nil
}

func (f *rankFilter) Counters() map[string]int {
	return map[string]int{
		CounterBelowThreshold: f.belowThreshold,
		CounterTruncated:      f.truncated,
	}
}

func (f *rankFilter) Status() Status {
	details := map[string]string{
		"min_score": strconv.FormatFloat(f.minScore, 'f', 2, 64),
		"top_n":     strconv.Itoa(f.topN),
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
