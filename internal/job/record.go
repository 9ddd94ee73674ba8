package job

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MaxWhyMatched bounds the number of reasons surfaced per record.
const MaxWhyMatched = 3

// ErrMissingURL is returned when a record without an identity anchor reaches the core.
var ErrMissingURL = errors.New("record has no url")

// Record is a normalized job posting flowing through the pipeline.
type Record struct {
	ID           string   `json:"record_id,omitempty"`
	Title        string   `json:"title"`
	Company      string   `json:"company"`
	URL          string   `json:"url"`
	Source       string   `json:"source"`
	Location     string   `json:"location,omitempty"`
	Remote       bool     `json:"remote,omitempty"`
	Hybrid       bool     `json:"hybrid,omitempty"`
	Paid         *bool    `json:"paid,omitempty"`
	Description  string   `json:"description,omitempty"`
	Requirements []string `json:"requirements,omitempty"`

	Flags      *FlagSet    `json:"flags,omitempty"`
	Enrichment *Enrichment `json:"company_enrichment,omitempty"`

	Score          *float64        `json:"score,omitempty"`
	ScoreBreakdown *ScoreBreakdown `json:"score_breakdown,omitempty"`
	WhyMatched     []string        `json:"why_matched,omitempty"`

	PostedDate  *time.Time `json:"posted_date,omitempty"`
	ScrapedDate *time.Time `json:"scraped_date,omitempty"`
}

// Enrichment is externally sourced company metadata.
type Enrichment struct {
	EmployeeCount int     `json:"employee_count,omitempty"`
	FundingStage  string  `json:"funding_stage,omitempty"`
	AINative      bool    `json:"ai_native,omitempty"`
	Rating        float64 `json:"rating,omitempty"`
	Description   string  `json:"description,omitempty"`
}

// Useful reports whether the enrichment carries any signal the scorer consumes.
func (e *Enrichment) Useful() bool {
	return e != nil && (e.EmployeeCount > 0 || e.AINative)
}

// ScoreBreakdown holds the five bounded score components.
type ScoreBreakdown struct {
	Similarity    float64 `json:"similarity"`
	SkillMatch    float64 `json:"skill_match"`
	ExperienceFit float64 `json:"experience_fit"`
	CompanySignal float64 `json:"company_signal"`
	Adjustments   float64 `json:"penalties_and_bonuses"`
}

// Total sums the components without clamping.
func (b ScoreBreakdown) Total() float64 {
	return b.Similarity + b.SkillMatch + b.ExperienceFit + b.CompanySignal + b.Adjustments
}

// IsPaid reports the paid flag, defaulting to true when unset.
func (r *Record) IsPaid() bool {
	return r.Paid == nil || *r.Paid
}

// Text returns title and description joined, the text most stages inspect.
func (r *Record) Text() string {
	return r.Title + " " + r.Description
}

// Identity derives the stable record identity from url, title and company.
// Comparison is case-insensitive.
func Identity(url, title, company string) string {
	content := strings.ToLower(fmt.Sprintf("%s|%s|%s",
		strings.TrimSpace(url),
		strings.TrimSpace(title),
		strings.TrimSpace(company),
	))
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

// EnsureID sets ID from url, title and company, replacing any value supplied
// by a source. A record without url violates the pipeline contract and yields
// ErrMissingURL.
func (r *Record) EnsureID() (string, error) {
	if strings.TrimSpace(r.URL) == "" {
		return "", fmt.Errorf("%w: %q at %q", ErrMissingURL, r.Title, r.Company)
	}
	r.ID = Identity(r.URL, r.Title, r.Company)
	return r.ID, nil
}

// SetScore stores the breakdown, its total and the reasons.
func (r *Record) SetScore(b ScoreBreakdown, why []string) {
	total := b.Total()
	r.ScoreBreakdown = &b
	r.Score = &total
	if len(why) > MaxWhyMatched {
		why = why[:MaxWhyMatched]
	}
	r.WhyMatched = why
}
