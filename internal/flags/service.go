// Package flags attaches structured signals to records, preferring a
// model-backed extractor and falling back to keyword rules.
package flags

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-sieve/internal/job"
	"github.com/spigell/job-sieve/internal/logger"
)

const DefaultTimeout = 30 * time.Second

// Extractor turns a record into a FlagSet or fails.
type Extractor interface {
	Extract(ctx context.Context, rec *job.Record) (*job.FlagSet, error)
}

// Stats counts extraction outcomes.
type Stats struct {
	Primary  int
	Fallback int
}

func (s Stats) Total() int { return s.Primary + s.Fallback }

// FallbackRate returns the share of fallback extractions in [0,1].
func (s Stats) FallbackRate() float64 {
	if s.Total() == 0 {
		return 0
	}
	return float64(s.Fallback) / float64(s.Total())
}

// Service never reports failures to its caller. A failed or missing primary
// extractor is replaced by the fallback and counted.
type Service struct {
	primary  Extractor
	fallback Extractor
	timeout  time.Duration
	logger   *zap.Logger
	stats    Stats
}

// NewService builds a service. primary may be nil, in which case every record
// goes through the fallback.
func NewService(primary Extractor, timeout time.Duration, log *zap.Logger) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		primary:  primary,
		fallback: Keywords{},
		timeout:  timeout,
		logger:   log,
	}
}

// Extract returns the flags for rec and whether the fallback was used.
func (s *Service) Extract(ctx context.Context, rec *job.Record) (*job.FlagSet, bool) {
	flags, err := s.extractPrimary(ctx, rec)
	usedFallback := false
	if err != nil {
		usedFallback = true
		logger.WithRecord(s.logger, rec).Warn("flag extraction failed, using keyword fallback", zap.Error(err))
		flags, err = s.fallback.Extract(ctx, rec)
		if err != nil || flags == nil {
			flags = job.DefaultFlags()
		}
	}

	flags.Normalize()
	applyRecordCues(rec, flags)

	if usedFallback {
		s.stats.Fallback++
	} else {
		s.stats.Primary++
	}

	return flags, usedFallback
}

func (s *Service) extractPrimary(ctx context.Context, rec *job.Record) (*job.FlagSet, error) {
	if s.primary == nil {
		return nil, errors.New("no flag extractor configured")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	flags, err := s.primary.Extract(ctx, rec)
	if err != nil {
		return nil, err
	}
	if flags == nil {
		return nil, errors.New("flag extractor returned no flags")
	}
	return flags, nil
}

func (s *Service) Stats() Stats { return s.stats }

// Report logs the primary vs fallback split.
func (s *Service) Report() {
	fields := []zap.Field{
		zap.Int("primary", s.stats.Primary),
		zap.Int("fallback", s.stats.Fallback),
		zap.Float64("fallback_rate", s.stats.FallbackRate()),
	}
	if s.stats.Fallback > 0 {
		s.logger.Warn("extraction report: keyword fallback was used", fields...)
		return
	}
	s.logger.Info("extraction report", fields...)
}

// applyRecordCues folds record-level facts into the flags.
func applyRecordCues(rec *job.Record, flags *job.FlagSet) {
	if !rec.IsPaid() || HasUnpaidCue(rec.Text()) {
		flags.IsUnpaid = true
	}
}
