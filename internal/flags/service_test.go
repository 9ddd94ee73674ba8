package flags

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/job-sieve/internal/job"
)

type stubExtractor struct {
	flags *job.FlagSet
	err   error
	calls int
	block bool
}

func (s *stubExtractor) Extract(ctx context.Context, _ *job.Record) (*job.FlagSet, error) {
	s.calls++
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.flags, s.err
}

func TestServiceUsesPrimary(t *testing.T) {
	primary := &stubExtractor{flags: &job.FlagSet{HasLLM: true, CompanyType: "Startup"}}
	svc := NewService(primary, time.Second, zap.NewNop())

	flags, usedFallback := svc.Extract(context.Background(), &job.Record{Title: "AI Engineer"})
	if usedFallback {
		t.Fatalf("expected primary extractor to be used")
	}
	if !flags.HasLLM {
		t.Fatalf("expected primary flags, got %+v", flags)
	}
	if flags.CompanyType != job.CompanyStartup || flags.ExperienceLevel != job.LevelUnknown {
		t.Fatalf("expected normalized enums, got %q/%q", flags.CompanyType, flags.ExperienceLevel)
	}
	if got := svc.Stats(); got.Primary != 1 || got.Fallback != 0 {
		t.Fatalf("unexpected stats: %+v", got)
	}
}

func TestServiceFallsBackOnError(t *testing.T) {
	core, observed := observer.New(zapcore.WarnLevel)
	primary := &stubExtractor{err: errors.New("quota exhausted")}
	svc := NewService(primary, time.Second, zap.New(core))

	rec := &job.Record{ID: "r1", Title: "LLM Engineer Intern", Description: "Build RAG with LangChain."}
	flags, usedFallback := svc.Extract(context.Background(), rec)
	if !usedFallback {
		t.Fatalf("expected fallback to be used")
	}
	if !flags.HasLLM || !flags.HasRAG || !flags.HasAgentFramework {
		t.Fatalf("expected keyword flags, got %+v", flags)
	}
	if flags.ExperienceLevel != job.LevelIntern {
		t.Fatalf("expected intern level, got %q", flags.ExperienceLevel)
	}

	if observed.Len() != 1 {
		t.Fatalf("expected 1 warning, got %d", observed.Len())
	}
	if observed.All()[0].ContextMap()["record_id"] != "r1" {
		t.Fatalf("expected record id in warning")
	}

	stats := svc.Stats()
	if stats.Fallback != 1 || stats.FallbackRate() != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestServiceFallsBackOnTimeout(t *testing.T) {
	primary := &stubExtractor{block: true}
	svc := NewService(primary, 10*time.Millisecond, zap.NewNop())

	_, usedFallback := svc.Extract(context.Background(), &job.Record{Title: "AI Engineer"})
	if !usedFallback {
		t.Fatalf("expected fallback after timeout")
	}
}

func TestServiceWithoutPrimary(t *testing.T) {
	svc := NewService(nil, 0, nil)

	_, usedFallback := svc.Extract(context.Background(), &job.Record{Title: "AI Engineer"})
	if !usedFallback {
		t.Fatalf("expected fallback without primary extractor")
	}
}

func TestServiceMarksUnpaidRecords(t *testing.T) {
	paid := false
	svc := NewService(&stubExtractor{flags: job.DefaultFlags()}, time.Second, zap.NewNop())

	flags, _ := svc.Extract(context.Background(), &job.Record{Title: "AI Intern", Paid: &paid})
	if !flags.IsUnpaid {
		t.Fatalf("expected paid=false to mark the record unpaid")
	}

	svc = NewService(&stubExtractor{flags: job.DefaultFlags()}, time.Second, zap.NewNop())
	flags, _ = svc.Extract(context.Background(), &job.Record{Title: "AI Intern", Description: "This is an equity only role."})
	if !flags.IsUnpaid {
		t.Fatalf("expected unpaid cue to mark the record unpaid")
	}
}

func TestFromKeywords(t *testing.T) {
	tests := []struct {
		name  string
		rec   job.Record
		check func(t *testing.T, f *job.FlagSet)
	}{
		{
			name: "senior",
			rec:  job.Record{Title: "Sr. ML Engineer", Description: "7+ years of experience with LLMs."},
			check: func(t *testing.T, f *job.FlagSet) {
				if f.ExperienceLevel != job.LevelSenior {
					t.Fatalf("expected senior, got %q", f.ExperienceLevel)
				}
				if f.YearsRequired == nil || *f.YearsRequired != 7 {
					t.Fatalf("expected 7 years, got %v", f.YearsRequired)
				}
			},
		},
		{
			name: "associate product manager",
			rec:  job.Record{Title: "Associate Product Manager, AI", Description: "Lead agent roadmap."},
			check: func(t *testing.T, f *job.FlagSet) {
				if f.ExperienceLevel != job.LevelJunior {
					t.Fatalf("expected junior, got %q", f.ExperienceLevel)
				}
				if !f.HasAgents {
					t.Fatalf("expected agents flag")
				}
			},
		},
		{
			name: "word boundaries",
			rec:  job.Record{Title: "Storage Engineer", Description: "Leverage drag and drop tooling."},
			check: func(t *testing.T, f *job.FlagSet) {
				if f.HasRAG {
					t.Fatalf("did not expect rag flag from substrings")
				}
			},
		},
		{
			name: "hard constraints",
			rec:  job.Record{Title: "Research Scientist", Description: "PhD required. Computer vision is the primary focus. On-site only. Series A startup."},
			check: func(t *testing.T, f *job.FlagSet) {
				if !f.RequiresDoctorate || !f.ResearchHeavy || !f.NarrowDomainHeavy || !f.OnsiteOnly {
					t.Fatalf("expected hard constraint flags, got %+v", f)
				}
				if f.CompanyType != job.CompanyStartup {
					t.Fatalf("expected startup, got %q", f.CompanyType)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, FromKeywords(&tt.rec))
		})
	}
}
