package enrich

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spigell/job-sieve/internal/job"
	"github.com/spigell/job-sieve/internal/utils"
)

const (
	DefaultEndpoint        = "https://api.tavily.com/search"
	DefaultExtractEndpoint = "https://api.tavily.com/extract"
	// DefaultInterval spaces out search calls.
	DefaultInterval = 1500 * time.Millisecond

	descriptionLimit = 500
	contentType      = "application/json"
	contentEncoding  = "gzip"
)

var defaultDomains = []string{"linkedin.com", "crunchbase.com", "techcrunch.com", "pitchbook.com", "glassdoor.com"}

type searchRequest struct {
	Query          string   `json:"query"`
	SearchDepth    string   `json:"search_depth"`
	MaxResults     int      `json:"max_results"`
	IncludeDomains []string `json:"include_domains,omitempty"`
}

type searchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

// Tavily enriches companies through the Tavily search API. Results, including
// empty ones from failed lookups, are cached per normalized company name until
// Clear.
type Tavily struct {
	apiKey          string
	endpoint        string
	extractEndpoint string
	maxResults      int
	HTTPClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger

	mu    sync.Mutex
	cache map[string]*job.Enrichment
	calls int
}

type Option func(*Tavily)

func WithEndpoint(endpoint string) Option {
	return func(t *Tavily) { t.endpoint = endpoint }
}

func WithExtractEndpoint(endpoint string) Option {
	return func(t *Tavily) { t.extractEndpoint = endpoint }
}

func WithHTTPClient(c *http.Client) Option {
	return func(t *Tavily) { t.HTTPClient = c }
}

// WithInterval sets the minimum spacing between search calls. Zero disables
// rate limiting.
func WithInterval(d time.Duration) Option {
	return func(t *Tavily) {
		if d <= 0 {
			t.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		t.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

func NewTavily(apiKey string, logger *zap.Logger, opts ...Option) (*Tavily, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("tavily api key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &Tavily{
		apiKey:          apiKey,
		endpoint:        DefaultEndpoint,
		extractEndpoint: DefaultExtractEndpoint,
		maxResults:      5,
		HTTPClient:      &http.Client{Timeout: 30 * time.Second},
		limiter:         rate.NewLimiter(rate.Every(DefaultInterval), 1),
		logger:          logger,
		cache:           make(map[string]*job.Enrichment),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *Tavily) Enrich(ctx context.Context, company string) (*job.Enrichment, error) {
	key := strings.ToLower(strings.TrimSpace(company))
	if key == "" {
		return nil, &Error{Company: company, Err: ErrEmptyCompany}
	}

	t.mu.Lock()
	cached, ok := t.cache[key]
	t.mu.Unlock()
	if ok {
		t.logger.Debug("using cached company enrichment", zap.String("company", company))
		return cached, nil
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return nil, &Error{Company: company, Err: err}
	}

	t.countCall()

	query := fmt.Sprintf("%s company AI machine learning funding employees rating", strings.TrimSpace(company))
	results, err := t.search(ctx, query, defaultDomains)
	if err != nil {
		empty := &job.Enrichment{}
		t.store(key, empty)
		return empty, &Error{Company: company, Err: err}
	}

	enrichment := parseResults(results)
	t.store(key, enrichment)

	t.logger.Debug("company enriched",
		zap.String("company", company),
		zap.Int("results", len(results)),
		zap.Int("employee_count", enrichment.EmployeeCount),
		zap.String("funding_stage", enrichment.FundingStage),
		zap.Bool("ai_native", enrichment.AINative),
	)

	return enrichment, nil
}

func (t *Tavily) store(key string, e *job.Enrichment) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cache[key] = e
}

// Calls returns the number of API requests made since the last Clear.
func (t *Tavily) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// Clear drops cached results and resets the call counter.
func (t *Tavily) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cache = make(map[string]*job.Enrichment)
	t.calls = 0
}

func (t *Tavily) search(ctx context.Context, query string, domains []string) ([]searchResult, error) {
	var parsed searchResponse
	err := t.post(ctx, t.endpoint, searchRequest{
		Query:          query,
		SearchDepth:    "basic",
		MaxResults:     t.maxResults,
		IncludeDomains: domains,
	}, &parsed)
	if err != nil {
		return nil, err
	}
	return parsed.Results, nil
}

// post sends body as JSON to endpoint and decodes the response into out.
func (t *Tavily) post(ctx context.Context, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", t.apiKey))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept-Encoding", contentEncoding)

	t.logger.Debug("make request", zap.String("url", endpoint), zap.ByteString("body", payload))
	resp, err := t.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return err
		}
		defer gz.Close()
		reader = gz
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s: %s", resp.Status, utils.TruncateForLog(string(data), 200))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

var (
	employeePattern = regexp.MustCompile(`(\d{1,3}(?:[.,]\d{3})+|\d+)\s*\+?\s*(?:employees?|people|staff)\b`)
	ratingPattern   = regexp.MustCompile(`\b([0-5]\.\d)\s*(?:stars?|rating|out of 5)`)
	fundingStages   = []struct {
		re    *regexp.Regexp
		stage string
	}{
		{regexp.MustCompile(`\bseries a\b`), "Series A"},
		{regexp.MustCompile(`\bseries b\b`), "Series B"},
		{regexp.MustCompile(`\bseries c\b`), "Series C"},
		{regexp.MustCompile(`\bseries d\b`), "Series D"},
		{regexp.MustCompile(`\bseed\b`), "Seed"},
	}
	aiIndicators = []string{
		"artificial intelligence", "machine learning", "deep learning",
		"llm", "large language model", "generative ai", "ai platform",
		"ai-first", "ai company", "ai solutions",
	}
)

// parseResults folds search results into an enrichment. The first result that
// yields a value wins for each field.
func parseResults(results []searchResult) *job.Enrichment {
	e := &job.Enrichment{}

	for _, r := range results {
		combined := strings.ToLower(r.Title + " " + r.Content)

		if e.EmployeeCount == 0 {
			if m := employeePattern.FindStringSubmatch(combined); m != nil {
				digits := strings.NewReplacer(",", "", ".", "").Replace(m[1])
				if n, err := strconv.Atoi(digits); err == nil {
					e.EmployeeCount = n
				}
			}
		}

		if e.FundingStage == "" {
			for _, f := range fundingStages {
				if f.re.MatchString(combined) {
					e.FundingStage = f.stage
					break
				}
			}
		}

		if !e.AINative {
			for _, indicator := range aiIndicators {
				if strings.Contains(combined, indicator) {
					e.AINative = true
					break
				}
			}
		}

		if e.Rating == 0 {
			if m := ratingPattern.FindStringSubmatch(combined); m != nil {
				if v, err := strconv.ParseFloat(m[1], 64); err == nil {
					e.Rating = v
				}
			}
		}

		if e.Description == "" && len([]rune(r.Content)) > 100 {
			e.Description = utils.Preview(r.Content, descriptionLimit)
		}
	}

	return e
}
