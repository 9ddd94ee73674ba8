package embedding

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-sieve/internal/job"
	"github.com/spigell/job-sieve/internal/logger"
	"github.com/spigell/job-sieve/internal/utils"
)

const (
	MaxSimilarity    = 40.0
	descriptionRunes = 2000
	defaultEmbedWait = 20 * time.Second
)

// Similarity scores records against a fixed profile text. The profile vector
// is computed once per embedder and kept until Reset.
type Similarity struct {
	primary  Embedder
	fallback Embedder
	profile  string
	timeout  time.Duration
	logger   *zap.Logger

	mu              sync.Mutex
	profiles        map[string][]float32
	primaryDisabled bool
	fallbacks       int
}

// NewSimilarity builds the service. primary may be nil.
func NewSimilarity(primary Embedder, profile string, timeout time.Duration, log *zap.Logger) *Similarity {
	if timeout <= 0 {
		timeout = defaultEmbedWait
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Similarity{
		primary:  primary,
		fallback: NewHashing(DefaultDimensions),
		profile:  profile,
		timeout:  timeout,
		logger:   log,
		profiles: make(map[string][]float32),
	}
}

// Score returns the similarity component in [0, 40], rounded to two decimals.
// It never fails: model errors switch the record to the local embedder for
// both vectors so they stay comparable.
func (s *Similarity) Score(ctx context.Context, rec *job.Record) float64 {
	text := JobText(rec)

	if emb := s.activePrimary(); emb != nil {
		cos, err := s.compare(ctx, emb, text)
		if err == nil {
			return scale(cos)
		}
		s.logger.Warn("embedding failed, using local embedder",
			append(logger.RecordFields(rec), zap.String("embedder", emb.Name()), zap.Error(err))...,
		)
		s.mu.Lock()
		s.fallbacks++
		s.mu.Unlock()
	}

	cos, err := s.compare(ctx, s.fallback, text)
	if err != nil {
		s.logger.Warn("local embedding failed", append(logger.RecordFields(rec), zap.Error(err))...)
		return 0
	}
	return scale(cos)
}

func (s *Similarity) compare(ctx context.Context, emb Embedder, text string) (float64, error) {
	profile, err := s.profileVector(ctx, emb)
	if err != nil {
		return 0, err
	}

	vec, err := s.embed(ctx, emb, text)
	if err != nil {
		return 0, fmt.Errorf("embedding record: %w", err)
	}

	return Cosine(profile, vec), nil
}

func (s *Similarity) profileVector(ctx context.Context, emb Embedder) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if vec, ok := s.profiles[emb.Name()]; ok {
		return vec, nil
	}

	vec, err := s.embed(ctx, emb, s.profile)
	if err != nil {
		if emb == s.primary {
			s.primaryDisabled = true
		}
		return nil, fmt.Errorf("embedding profile: %w", err)
	}

	s.profiles[emb.Name()] = vec
	s.logger.Debug("profile embedded",
		zap.String("embedder", emb.Name()),
		zap.Int("dimensions", len(vec)),
	)
	return vec, nil
}

func (s *Similarity) embed(ctx context.Context, emb Embedder, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return emb.Embed(ctx, text)
}

func (s *Similarity) activePrimary() Embedder {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.primary == nil || s.primaryDisabled {
		return nil
	}
	return s.primary
}

// Fallbacks returns how many records were scored with the local embedder
// after a model failure.
func (s *Similarity) Fallbacks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fallbacks
}

// Reset drops cached profile vectors and re-enables the primary embedder.
func (s *Similarity) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles = make(map[string][]float32)
	s.primaryDisabled = false
	s.fallbacks = 0
}

// JobText is the text embedded for a record.
func JobText(rec *job.Record) string {
	return rec.Title + " " + utils.Preview(rec.Description, descriptionRunes)
}

func scale(cos float64) float64 {
	if math.IsNaN(cos) || cos < 0 {
		cos = 0
	}
	if cos > 1 {
		cos = 1
	}
	return math.Round(cos*MaxSimilarity*100) / 100
}
