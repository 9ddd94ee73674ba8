package freshness

import (
	"testing"
	"time"

	"github.com/spigell/job-sieve/internal/job"
)

var fixedNow = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func TestDetectPostedDate(t *testing.T) {
	tests := []struct {
		name string
		text string
		want *time.Time
	}{
		{name: "days", text: "Posted 3 days ago", want: ptr(fixedNow.Add(-72 * time.Hour))},
		{name: "hours", text: "posted 5 hours ago", want: ptr(fixedNow.Add(-5 * time.Hour))},
		{name: "weeks", text: "Posted 2 weeks ago", want: ptr(fixedNow.Add(-14 * 24 * time.Hour))},
		{name: "months", text: "posted 1 month ago", want: ptr(fixedNow.Add(-30 * 24 * time.Hour))},
		{name: "month day year", text: "Published January 15, 2026", want: ptr(time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC))},
		{name: "short month", text: "since Feb 2 2026", want: ptr(time.Date(2026, time.February, 2, 0, 0, 0, 0, time.UTC))},
		{name: "iso", text: "date: 2025-12-24", want: ptr(time.Date(2025, time.December, 24, 0, 0, 0, 0, time.UTC))},
		{name: "relative wins over explicit", text: "2020-01-01 repost, posted 1 day ago", want: ptr(fixedNow.Add(-24 * time.Hour))},
		{name: "invalid calendar date", text: "2026-02-31", want: nil},
		{name: "explicit year out of range", text: "March 3, 2019", want: nil},
		{name: "iso year out of range", text: "Acme was incorporated on 2015-03-01. We build RAG systems.", want: nil},
		{name: "nothing", text: "Great team, remote friendly", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectPostedDate("", tt.text, fixedNow)
			switch {
			case tt.want == nil && got != nil:
				t.Fatalf("expected no date, got %v", *got)
			case tt.want != nil && got == nil:
				t.Fatalf("expected %v, got nil", *tt.want)
			case tt.want != nil && !got.Equal(*tt.want):
				t.Fatalf("expected %v, got %v", *tt.want, *got)
			}
		})
	}
}

func TestIsLikelyStale(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{text: "Summer 2023 internship in NLP", want: true},
		{text: "2024 Intern - LLM Platform", want: true},
		{text: "Class of 2022 new grad", want: true},
		{text: "Summer 2025 internship", want: false},
		{text: "Fall 2026 cohort", want: false},
		{text: "This position has been filled", want: true},
		{text: "We are no longer accepting applications", want: true},
		{text: "Founded in 2015, we build agents", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := IsLikelyStale("", tt.text, fixedNow); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestEvaluateKeepsUndatedRecord(t *testing.T) {
	f := New(0, clock)
	rec := &job.Record{Title: "AI Engineer", Description: "Build RAG pipelines."}

	verdict := f.Evaluate(rec)
	if !verdict.Keep {
		t.Fatalf("expected record to be kept, got %q", verdict.Reason)
	}
	if rec.PostedDate != nil {
		t.Fatalf("expected posted date to stay nil, got %v", rec.PostedDate)
	}
	if rec.ScrapedDate == nil || !rec.ScrapedDate.Equal(fixedNow) {
		t.Fatalf("expected scraped date to be stamped")
	}
}

func TestEvaluateIgnoresImplausibleISODate(t *testing.T) {
	f := New(45, clock)
	rec := &job.Record{Title: "AI Engineer", Description: "Acme was incorporated on 2015-03-01. We build RAG systems."}

	if verdict := f.Evaluate(rec); !verdict.Keep {
		t.Fatalf("expected record to be kept, got %q", verdict.Reason)
	}
	if rec.PostedDate != nil {
		t.Fatalf("expected founding date to be ignored, got %v", rec.PostedDate)
	}
}

func TestEvaluateDropsStaleCohortRegardlessOfDate(t *testing.T) {
	f := New(45, clock)
	rec := &job.Record{
		Title:       "ML Intern",
		Description: "Summer 2023 internship. Posted 1 day ago.",
	}

	verdict := f.Evaluate(rec)
	if verdict.Keep {
		t.Fatalf("expected stale cohort posting to be dropped")
	}
	if rec.PostedDate == nil {
		t.Fatalf("expected posted date to be inferred")
	}
}

func TestEvaluateAgeThreshold(t *testing.T) {
	f := New(45, clock)

	old := &job.Record{Title: "AI Engineer", Description: "posted 2 months ago"}
	if f.Evaluate(old).Keep {
		t.Fatalf("expected 60 day old posting to be dropped")
	}

	boundary := &job.Record{Title: "AI Engineer", Description: "posted 45 days ago"}
	if !f.Evaluate(boundary).Keep {
		t.Fatalf("expected 45 day old posting to be kept")
	}
}

func TestEvaluateFallsBackToAdapterDate(t *testing.T) {
	f := New(45, clock)
	posted := fixedNow.AddDate(0, 0, -90)
	rec := &job.Record{Title: "AI Engineer", PostedDate: &posted}

	if f.Evaluate(rec).Keep {
		t.Fatalf("expected adapter supplied date to be honoured")
	}
}

func ptr(t time.Time) *time.Time { return &t }
