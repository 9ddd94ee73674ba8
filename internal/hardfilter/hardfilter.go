// Package hardfilter drops records that violate non-negotiable constraints.
package hardfilter

import (
	"regexp"
	"strings"

	"github.com/spigell/job-sieve/internal/job"
)

// DefaultKeywords is the AI-domain vocabulary a record must mention unless a
// domain flag is already set. Keywords match at a word start.
var DefaultKeywords = []string{
	"llm", "large language model", "gpt", "genai", "generative ai",
	"rag", "retrieval augmented", "agentic", "agent", "langchain",
	"machine learning", "ml engineer", "ai engineer", "applied ai",
	"transformer", "embedding", "prompt engineering", "fine-tuning",
	"vector database", "nlp", "natural language",
}

// Reason names why a record was discarded.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonUnpaid    Reason = "unpaid"
	ReasonDoctorate Reason = "doctorate required"
	ReasonSenior    Reason = "senior role"
	ReasonOffDomain Reason = "no domain signal"
)

type Filter struct {
	domain *regexp.Regexp
}

// New compiles the keyword list. An empty list falls back to DefaultKeywords.
func New(keywords []string) *Filter {
	quoted := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			quoted = append(quoted, regexp.QuoteMeta(kw))
		}
	}
	if len(quoted) == 0 {
		return New(DefaultKeywords)
	}
	return &Filter{domain: regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)`)}
}

// Check reports whether rec is kept. A record without flags is always kept so
// the decision can be deferred until extraction has run.
func (f *Filter) Check(rec *job.Record) (bool, Reason) {
	flags := rec.Flags
	if flags == nil {
		return true, ReasonNone
	}

	switch {
	case flags.IsUnpaid:
		return false, ReasonUnpaid
	case flags.RequiresDoctorate:
		return false, ReasonDoctorate
	case flags.ExperienceLevel.IsSenior():
		return false, ReasonSenior
	case !flags.HasDomainSignal() && !f.HasDomainKeyword(rec.Text()):
		return false, ReasonOffDomain
	}

	return true, ReasonNone
}

// HasDomainKeyword reports whether text mentions the domain vocabulary.
func (f *Filter) HasDomainKeyword(text string) bool {
	return f.domain.MatchString(strings.ToLower(text))
}
