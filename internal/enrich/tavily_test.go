package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
)

func newTestTavily(t *testing.T, handler http.HandlerFunc) (*Tavily, *int32) {
	t.Helper()

	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	tv, err := NewTavily("tvly-test", zap.NewNop(), WithEndpoint(server.URL), WithInterval(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tv, &hits
}

func TestTavilyEnrich(t *testing.T) {
	tv, hits := newTestTavily(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tvly-test" {
			t.Errorf("unexpected authorization header %q", got)
		}

		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if !strings.HasPrefix(req.Query, "Acme company") {
			t.Errorf("unexpected query %q", req.Query)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(searchResponse{Results: []searchResult{
			{Title: "Acme raises Series A", Content: "Acme is a generative AI platform with 1,200 employees."},
			{Title: "Acme reviews", Content: "Employees give Acme 4.3 stars overall."},
		}})
	})

	e, err := tv.Enrich(context.Background(), "Acme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if e.EmployeeCount != 1200 {
		t.Fatalf("expected 1200 employees, got %d", e.EmployeeCount)
	}
	if e.FundingStage != "Series A" {
		t.Fatalf("expected Series A, got %q", e.FundingStage)
	}
	if !e.AINative {
		t.Fatalf("expected ai native")
	}
	if e.Rating != 4.3 {
		t.Fatalf("expected rating 4.3, got %v", e.Rating)
	}

	// Cached by normalized name.
	if _, err := tv.Enrich(context.Background(), "  ACME "); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(hits) != 1 || tv.Calls() != 1 {
		t.Fatalf("expected a single api call, got %d hits and %d calls", *hits, tv.Calls())
	}

	tv.Clear()
	if tv.Calls() != 0 {
		t.Fatalf("expected call counter reset")
	}
	if _, err := tv.Enrich(context.Background(), "Acme"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(hits) != 2 {
		t.Fatalf("expected cache to be cleared")
	}
}

func TestTavilyFailureIsTypedAndCached(t *testing.T) {
	tv, hits := newTestTavily(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	})

	e, err := tv.Enrich(context.Background(), "Globex")
	var enrichErr *Error
	if !errors.As(err, &enrichErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if enrichErr.Company != "Globex" {
		t.Fatalf("unexpected company %q", enrichErr.Company)
	}
	if e == nil || e.Useful() {
		t.Fatalf("expected empty enrichment, got %+v", e)
	}

	if _, err := tv.Enrich(context.Background(), "Globex"); err != nil {
		t.Fatalf("expected cached empty result without error, got %v", err)
	}
	if atomic.LoadInt32(hits) != 1 {
		t.Fatalf("expected failure to be cached, got %d hits", *hits)
	}
}

func TestTavilyEmptyCompany(t *testing.T) {
	tv, hits := newTestTavily(t, func(http.ResponseWriter, *http.Request) {})

	_, err := tv.Enrich(context.Background(), "  ")
	if !errors.Is(err, ErrEmptyCompany) {
		t.Fatalf("expected ErrEmptyCompany, got %v", err)
	}
	if atomic.LoadInt32(hits) != 0 {
		t.Fatalf("expected no api call")
	}
}

func TestNewTavilyRequiresKey(t *testing.T) {
	if _, err := NewTavily(" ", nil); err == nil {
		t.Fatalf("expected error without api key")
	}
}

func TestParseResults(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		employees int
		stage     string
	}{
		{name: "plain count", content: "a team of 45 employees", employees: 45},
		{name: "plus count", content: "over 300+ people worldwide", employees: 300},
		{name: "seed", content: "closed a seed round", stage: "Seed"},
		{name: "no signal", content: "makes furniture"},
		{name: "seed as substring", content: "seeded database"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := parseResults([]searchResult{{Content: tt.content}})
			if e.EmployeeCount != tt.employees {
				t.Fatalf("expected %d employees, got %d", tt.employees, e.EmployeeCount)
			}
			if e.FundingStage != tt.stage {
				t.Fatalf("expected stage %q, got %q", tt.stage, e.FundingStage)
			}
		})
	}
}
