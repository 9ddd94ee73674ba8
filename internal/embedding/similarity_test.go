package embedding

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-sieve/internal/job"
)

type fakeEmbedder struct {
	name    string
	vectors map[string][]float32
	err     error
	calls   []string
}

func (f *fakeEmbedder) Name() string { return f.name }

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls = append(f.calls, text)
	if f.err != nil {
		return nil, f.err
	}
	if vec, ok := f.vectors[text]; ok {
		return vec, nil
	}
	return []float32{0, 0, 1}, nil
}

func TestHashingIsDeterministic(t *testing.T) {
	h := NewHashing(64)

	a, err := h.Embed(context.Background(), "LLM engineer building RAG agents")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := h.Embed(context.Background(), "LLM engineer building RAG agents")

	if len(a) != 64 {
		t.Fatalf("expected 64 dimensions, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at %d", i)
		}
	}

	if got := Cosine(a, b); math.Abs(got-1) > 1e-6 {
		t.Fatalf("expected identical texts to have cosine 1, got %v", got)
	}
}

func TestHashingRelatedTextsAreCloser(t *testing.T) {
	h := NewHashing(DefaultDimensions)
	profile, _ := h.Embed(context.Background(), "junior llm engineer rag agents python")
	related, _ := h.Embed(context.Background(), "llm engineer working on rag and agents in python")
	unrelated, _ := h.Embed(context.Background(), "warehouse forklift operator night shift")

	if Cosine(profile, related) <= Cosine(profile, unrelated) {
		t.Fatalf("expected related text to score higher")
	}
}

func TestCosineEdgeCases(t *testing.T) {
	if Cosine(nil, nil) != 0 {
		t.Fatalf("expected 0 for empty vectors")
	}
	if Cosine([]float32{1, 0}, []float32{1}) != 0 {
		t.Fatalf("expected 0 for mismatched lengths")
	}
	if Cosine([]float32{0, 0}, []float32{1, 1}) != 0 {
		t.Fatalf("expected 0 for zero vector")
	}
	if got := Cosine([]float32{1, 0}, []float32{-1, 0}); got != -1 {
		t.Fatalf("expected -1, got %v", got)
	}
}

func TestSimilarityScalesAndClamps(t *testing.T) {
	rec := &job.Record{Title: "AI Engineer", Description: "RAG"}
	text := JobText(rec)

	tests := []struct {
		name string
		vec  []float32
		want float64
	}{
		{name: "identical", vec: []float32{1, 0, 0}, want: 40},
		{name: "orthogonal", vec: []float32{0, 1, 0}, want: 0},
		{name: "opposite", vec: []float32{-1, 0, 0}, want: 0},
		{name: "partial", vec: []float32{1, 1, 0}, want: 28.28},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emb := &fakeEmbedder{name: "fake", vectors: map[string][]float32{
				"profile": {1, 0, 0},
				text:      tt.vec,
			}}
			sim := NewSimilarity(emb, "profile", time.Second, zap.NewNop())

			if got := sim.Score(context.Background(), rec); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSimilarityCachesProfile(t *testing.T) {
	emb := &fakeEmbedder{name: "fake"}
	sim := NewSimilarity(emb, "profile", time.Second, zap.NewNop())

	sim.Score(context.Background(), &job.Record{Title: "a"})
	sim.Score(context.Background(), &job.Record{Title: "b"})

	profileCalls := 0
	for _, call := range emb.calls {
		if call == "profile" {
			profileCalls++
		}
	}
	if profileCalls != 1 {
		t.Fatalf("expected profile to be embedded once, got %d", profileCalls)
	}

	sim.Reset()
	sim.Score(context.Background(), &job.Record{Title: "c"})
	if emb.calls[len(emb.calls)-2] != "profile" {
		t.Fatalf("expected profile to be embedded again after reset")
	}
}

func TestSimilarityFallsBackToLocalEmbedder(t *testing.T) {
	emb := &fakeEmbedder{name: "fake", err: errors.New("quota")}
	sim := NewSimilarity(emb, "junior llm engineer rag", time.Second, zap.NewNop())

	rec := &job.Record{Title: "LLM Engineer", Description: "rag junior"}
	got := sim.Score(context.Background(), rec)
	if got <= 0 || got > MaxSimilarity {
		t.Fatalf("expected local similarity in (0, 40], got %v", got)
	}
	if sim.Fallbacks() != 1 {
		t.Fatalf("expected 1 fallback, got %d", sim.Fallbacks())
	}

	// The primary is not retried once the profile could not be embedded.
	sim.Score(context.Background(), rec)
	if len(emb.calls) != 1 {
		t.Fatalf("expected primary to be called once, got %d", len(emb.calls))
	}
}

func TestJobTextTruncatesDescription(t *testing.T) {
	rec := &job.Record{Title: "AI", Description: strings.Repeat("é", 3000)}
	text := JobText(rec)
	if got := len([]rune(text)); got != len([]rune("AI "))+descriptionRunes {
		t.Fatalf("unexpected text length %d", got)
	}
}

func TestProfileText(t *testing.T) {
	p := Profile{
		Summary:        "  Applied AI engineer shipping LLM products. ",
		PrioritySkills: []string{"LLM", "RAG"},
		TargetRoles:    []string{"AI Engineer"},
	}

	want := "Applied AI engineer shipping LLM products.\n\nCore skills: LLM, RAG\n\nTarget roles: AI Engineer"
	if got := p.Text(); got != want {
		t.Fatalf("unexpected profile text:\n%q\nwant\n%q", got, want)
	}

	if got := (Profile{PrioritySkills: []string{"Go"}}).Text(); got != "Core skills: Go" {
		t.Fatalf("expected leading separators trimmed, got %q", got)
	}
}
