// Package normalize cleans adapter output into the canonical record shape.
package normalize

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/spigell/job-sieve/internal/job"
)

const blockElements = "br, p, div, li, ul, ol, tr, h1, h2, h3, h4, h5, h6"

// CleanHTML returns the visible text of an HTML fragment with whitespace
// collapsed to single spaces. Plain text passes through with entities decoded.
func CleanHTML(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return collapse(s)
	}

	doc.Find("script, style, noscript").Remove()
	doc.Find(blockElements).AfterHtml(" ")

	return collapse(doc.Text())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Record trims identity fields, cleans the description and drops empty
// requirements. The source tag defaults to source when unset.
func Record(rec *job.Record, source string) *job.Record {
	rec.Title = collapse(rec.Title)
	rec.Company = collapse(rec.Company)
	rec.URL = strings.TrimSpace(rec.URL)
	rec.Location = collapse(rec.Location)
	rec.Description = CleanHTML(rec.Description)

	requirements := rec.Requirements[:0]
	for _, req := range rec.Requirements {
		if req = CleanHTML(req); req != "" {
			requirements = append(requirements, req)
		}
	}
	rec.Requirements = requirements
	if len(rec.Requirements) == 0 {
		rec.Requirements = nil
	}

	if strings.TrimSpace(rec.Source) == "" {
		rec.Source = source
	}

	// Identity always derives from the cleaned fields, never from the source.
	rec.ID = ""
	if rec.URL != "" {
		rec.ID = job.Identity(rec.URL, rec.Title, rec.Company)
	}
	return rec
}
