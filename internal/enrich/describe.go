package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/job-sieve/internal/job"
	"github.com/spigell/job-sieve/internal/utils"
)

const (
	// ThinDescriptionLength is the length below which a description is
	// worth replacing with the full posting text.
	ThinDescriptionLength = 200
	// ExtractBatchSize bounds how many URLs a single extract call carries.
	ExtractBatchSize = 10

	fullDescriptionLimit = 5000
	minSnippetLength     = 50
)

// ErrNoDescription is returned when neither extraction nor search produced
// any text for a posting.
var ErrNoDescription = errors.New("no description found")

// Describer fetches the full text of postings whose descriptions are thin.
type Describer interface {
	// Extract returns page text keyed by URL. URLs the service could not
	// read are absent from the map.
	Extract(ctx context.Context, urls []string) (map[string]string, error)
	// SearchDescription assembles a description from search snippets.
	SearchDescription(ctx context.Context, rec *job.Record) (string, error)
}

// IsThin reports whether the description is short or repeats the title.
func IsThin(rec *job.Record) bool {
	desc := strings.TrimSpace(rec.Description)
	if utf8.RuneCountInString(desc) < ThinDescriptionLength {
		return true
	}
	return strings.EqualFold(desc, strings.TrimSpace(rec.Title))
}

type extractRequest struct {
	URLs []string `json:"urls"`
}

type extractResult struct {
	URL        string `json:"url"`
	RawContent string `json:"raw_content"`
}

type extractResponse struct {
	Results       []extractResult `json:"results"`
	FailedResults []struct {
		URL   string `json:"url"`
		Error string `json:"error"`
	} `json:"failed_results"`
}

// Extract reads the pages behind urls through the Tavily extract API.
func (t *Tavily) Extract(ctx context.Context, urls []string) (map[string]string, error) {
	if len(urls) == 0 {
		return map[string]string{}, nil
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	t.countCall()

	var parsed extractResponse
	if err := t.post(ctx, t.extractEndpoint, extractRequest{URLs: urls}, &parsed); err != nil {
		return nil, fmt.Errorf("extracting %d urls: %w", len(urls), err)
	}

	for _, failed := range parsed.FailedResults {
		t.logger.Debug("page extraction failed", zap.String("url", failed.URL), zap.String("error", failed.Error))
	}

	texts := make(map[string]string, len(parsed.Results))
	for _, r := range parsed.Results {
		text := strings.TrimSpace(utils.Preview(r.RawContent, fullDescriptionLimit))
		if r.URL == "" || text == "" {
			continue
		}
		texts[r.URL] = text
	}
	return texts, nil
}

// SearchDescription joins the substantial search snippets about a posting.
// Failures are returned as *Error.
func (t *Tavily) SearchDescription(ctx context.Context, rec *job.Record) (string, error) {
	if strings.TrimSpace(rec.Company) == "" {
		return "", &Error{Company: rec.Company, Err: ErrEmptyCompany}
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return "", &Error{Company: rec.Company, Err: err}
	}
	t.countCall()

	query := fmt.Sprintf("%q %q job description requirements", strings.TrimSpace(rec.Title), strings.TrimSpace(rec.Company))
	results, err := t.search(ctx, query, nil)
	if err != nil {
		return "", &Error{Company: rec.Company, Err: err}
	}

	snippets := make([]string, 0, len(results))
	for _, r := range results {
		content := strings.TrimSpace(r.Content)
		if utf8.RuneCountInString(content) > minSnippetLength {
			snippets = append(snippets, content)
		}
	}
	if len(snippets) == 0 {
		return "", &Error{Company: rec.Company, Err: ErrNoDescription}
	}

	return utils.Preview(strings.Join(snippets, "\n\n"), fullDescriptionLimit), nil
}

func (t *Tavily) countCall() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
}
