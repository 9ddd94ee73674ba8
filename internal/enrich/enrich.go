// Package enrich looks up company metadata used by the company signal and the
// full text of postings with thin descriptions.
package enrich

import (
	"context"
	"errors"
	"fmt"

	"github.com/spigell/job-sieve/internal/job"
)

// ErrEmptyCompany is returned for records without a company name.
var ErrEmptyCompany = errors.New("company name is empty")

// Enricher returns metadata for a company. A nil enrichment with a nil error
// means nothing was found.
type Enricher interface {
	Enrich(ctx context.Context, company string) (*job.Enrichment, error)
}

// Error carries the company an enrichment failed for. Callers decide whether
// to continue with whatever partial data they have.
type Error struct {
	Company string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("enriching %q: %v", e.Company, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
