package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-sieve/internal/job"
)

const (
	remotiveName     = "remotive"
	remotiveEndpoint = "https://remotive.com/api/remote-jobs"
	remotiveDate     = "2006-01-02T15:04:05"
)

type remotiveJob struct {
	ID              int      `json:"id"`
	URL             string   `json:"url"`
	Title           string   `json:"title"`
	CompanyName     string   `json:"company_name"`
	Category        string   `json:"category"`
	JobType         string   `json:"job_type"`
	PublicationDate string   `json:"publication_date"`
	Location        string   `json:"candidate_required_location"`
	Salary          string   `json:"salary"`
	Description     string   `json:"description"`
	Tags            []string `json:"tags"`
}

type remotiveResponse struct {
	Jobs []remotiveJob `json:"jobs"`
}

// RemotiveConfig selects the listings to fetch.
type RemotiveConfig struct {
	Category string `mapstructure:"category"`
	Search   string `mapstructure:"search"`
	Limit    int    `mapstructure:"limit" validate:"gte=0"`
}

// Remotive reads the public Remotive remote-jobs feed.
type Remotive struct {
	client
	cfg      RemotiveConfig
	Endpoint string
}

func NewRemotive(cfg RemotiveConfig, logger *zap.Logger) *Remotive {
	return &Remotive{
		client:   newClient(logger),
		cfg:      cfg,
		Endpoint: remotiveEndpoint,
	}
}

func (r *Remotive) Name() string { return remotiveName }

func (r *Remotive) Fetch(ctx context.Context) ([]*job.Record, error) {
	q := url.Values{}
	if r.cfg.Category != "" {
		q.Set("category", r.cfg.Category)
	}
	if r.cfg.Search != "" {
		q.Set("search", r.cfg.Search)
	}
	if r.cfg.Limit > 0 {
		q.Set("limit", strconv.Itoa(r.cfg.Limit))
	}

	var response remotiveResponse
	if err := r.getJSON(ctx, r.Endpoint, q, &response); err != nil {
		return nil, fmt.Errorf("fetching remotive jobs: %w", err)
	}

	r.logger.Debug("got response from remotive", zap.Int("jobs", len(response.Jobs)))

	records := make([]*job.Record, 0, len(response.Jobs))
	for _, j := range response.Jobs {
		if strings.TrimSpace(j.URL) == "" || strings.TrimSpace(j.Title) == "" {
			continue
		}
		records = append(records, j.record())
	}
	return records, nil
}

func (j remotiveJob) record() *job.Record {
	rec := &job.Record{
		Title:        j.Title,
		Company:      j.CompanyName,
		URL:          j.URL,
		Source:       remotiveName,
		Location:     j.Location,
		Remote:       true,
		Description:  j.Description,
		Requirements: j.Tags,
	}
	if posted, err := time.Parse(remotiveDate, j.PublicationDate); err == nil {
		rec.PostedDate = &posted
	}
	return rec
}
