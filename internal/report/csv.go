// Package report exports ranked records for review.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spigell/job-sieve/internal/job"
	"github.com/spigell/job-sieve/internal/utils"
)

const (
	DefaultDir     = "data"
	previewRunes   = 200
	reasonJoiner   = " | "
	dateLayout     = "2006-01-02"
	fileNameLayout = "jobs_%s.csv"
)

var header = []string{
	"rank", "score",
	"similarity", "skill_match", "experience_fit", "company_signal", "penalties_and_bonuses",
	"title", "company", "location", "remote",
	"url", "source", "posted_date",
	"why_matched", "description_preview",
}

// FileName returns the dated export name for now.
func FileName(now time.Time) string {
	return fmt.Sprintf(fileNameLayout, now.Format(dateLayout))
}

// ExportCSV writes records in rank order to dir/jobs_YYYY-MM-DD.csv and returns
// the path. An existing export for the same day is replaced.
func ExportCSV(records []*job.Record, dir string, now time.Time) (string, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(dir, FileName(now))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}

	if err := WriteCSV(f, records); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	return path, nil
}

// WriteCSV writes the header and one row per record.
func WriteCSV(w io.Writer, records []*job.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}

	for i, rec := range records {
		if err := cw.Write(row(i+1, rec)); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func row(rank int, rec *job.Record) []string {
	var b job.ScoreBreakdown
	if rec.ScoreBreakdown != nil {
		b = *rec.ScoreBreakdown
	}

	score := 0.0
	if rec.Score != nil {
		score = *rec.Score
	}

	posted := ""
	if rec.PostedDate != nil {
		posted = rec.PostedDate.Format(dateLayout)
	}

	return []string{
		strconv.Itoa(rank),
		formatFloat(score),
		formatFloat(b.Similarity),
		formatFloat(b.SkillMatch),
		formatFloat(b.ExperienceFit),
		formatFloat(b.CompanySignal),
		formatFloat(b.Adjustments),
		rec.Title,
		rec.Company,
		rec.Location,
		strconv.FormatBool(rec.Remote),
		rec.URL,
		rec.Source,
		posted,
		strings.Join(rec.WhyMatched, reasonJoiner),
		strings.ReplaceAll(utils.Preview(rec.Description, previewRunes), "\n", " "),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// Top writes a short numbered preview of the first n records.
func Top(w io.Writer, records []*job.Record, n int) {
	for i, rec := range records {
		if i >= n {
			return
		}
		score := 0.0
		if rec.Score != nil {
			score = *rec.Score
		}
		fmt.Fprintf(w, "  %d. %s: %s (Score: %.1f)\n", i+1, rec.Company, rec.Title, score)
	}
}
