// Package freshness decides whether a posting is too old to surface.
package freshness

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spigell/job-sieve/internal/job"
)

const DefaultMaxAgeDays = 45

// Verdict explains a freshness decision.
type Verdict struct {
	Keep   bool
	Reason string
}

var (
	relativePatterns = []struct {
		re   *regexp.Regexp
		unit func(n int) time.Duration
	}{
		{regexp.MustCompile(`posted\s+(\d+)\s+days?\s+ago`), func(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }},
		{regexp.MustCompile(`posted\s+(\d+)\s+hours?\s+ago`), func(n int) time.Duration { return time.Duration(n) * time.Hour }},
		{regexp.MustCompile(`posted\s+(\d+)\s+weeks?\s+ago`), func(n int) time.Duration { return time.Duration(n) * 7 * 24 * time.Hour }},
		{regexp.MustCompile(`posted\s+(\d+)\s+months?\s+ago`), func(n int) time.Duration { return time.Duration(n) * 30 * 24 * time.Hour }},
	}

	monthDayYear = regexp.MustCompile(`(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|` +
		`jul(?:y)?|aug(?:ust)?|sep(?:tember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\s+(\d{1,2}),?\s*(\d{4})`)
	isoDate = regexp.MustCompile(`(20\d{2})-(\d{2})-(\d{2})`)

	cohortYear = regexp.MustCompile(`\b(?:summer|fall|spring|winter|intern|class of|cohort)\s+(20\d{2})\b`)
	yearIntern = regexp.MustCompile(`\b(20\d{2})\s+intern`)

	closurePhrases = []string{
		"position filled",
		"no longer accepting",
		"this position has been filled",
		"job closed",
		"application closed",
		"posting expired",
		"position closed",
	}
)

// Filter evaluates both freshness checks against an injected clock.
type Filter struct {
	maxAgeDays int
	now        func() time.Time
}

func New(maxAgeDays int, now func() time.Time) *Filter {
	if maxAgeDays <= 0 {
		maxAgeDays = DefaultMaxAgeDays
	}
	if now == nil {
		now = time.Now
	}
	return &Filter{maxAgeDays: maxAgeDays, now: now}
}

// Evaluate stamps ScrapedDate and PostedDate on the record and reports whether
// it should be kept. A record with no date evidence is kept.
func (f *Filter) Evaluate(rec *job.Record) Verdict {
	now := f.now()
	rec.ScrapedDate = &now

	if posted := DetectPostedDate(rec.Title, rec.Description, now); posted != nil {
		rec.PostedDate = posted
	}

	if f.IsTooOld(rec.PostedDate) {
		return Verdict{Reason: fmt.Sprintf("posted %s", rec.PostedDate.Format(time.DateOnly))}
	}

	if IsLikelyStale(rec.Title, rec.Description, now) {
		return Verdict{Reason: "old year or closed posting"}
	}

	return Verdict{Keep: true}
}

// IsTooOld reports whether posted is more than the configured number of whole
// days in the past. A nil date is never too old.
func (f *Filter) IsTooOld(posted *time.Time) bool {
	if posted == nil {
		return false
	}
	days := int(f.now().Sub(*posted).Hours() / 24)
	return days > f.maxAgeDays
}

// DetectPostedDate infers a posting date from title and description. Relative
// phrases win over explicit dates; the first matching pattern class is used.
func DetectPostedDate(title, description string, now time.Time) *time.Time {
	text := strings.ToLower(title + " " + description)

	for _, p := range relativePatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		posted := now.Add(-p.unit(n))
		return &posted
	}

	if m := monthDayYear.FindStringSubmatch(text); m != nil {
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if plausibleYear(year, now) {
			if posted, ok := date(year, monthNumber(m[1]), day, now.Location()); ok {
				return &posted
			}
		}
	}

	if m := isoDate.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if plausibleYear(year, now) {
			if posted, ok := date(year, time.Month(month), day, now.Location()); ok {
				return &posted
			}
		}
	}

	return nil
}

// plausibleYear rejects explicit dates that cannot be a posting date, such as
// founding or copyright years.
func plausibleYear(year int, now time.Time) bool {
	return year >= now.Year()-2 && year <= now.Year()+1
}

// IsLikelyStale looks for cohort references more than one year old and for
// closure phrases.
func IsLikelyStale(title, description string, now time.Time) bool {
	text := strings.ToLower(title + " " + description)
	cutoff := now.Year() - 1

	for _, re := range []*regexp.Regexp{cohortYear, yearIntern} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			year, err := strconv.Atoi(m[1])
			if err == nil && year < cutoff {
				return true
			}
		}
	}

	for _, phrase := range closurePhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}

	return false
}

func monthNumber(name string) time.Month {
	if len(name) < 3 {
		return 0
	}
	switch name[:3] {
	case "jan":
		return time.January
	case "feb":
		return time.February
	case "mar":
		return time.March
	case "apr":
		return time.April
	case "may":
		return time.May
	case "jun":
		return time.June
	case "jul":
		return time.July
	case "aug":
		return time.August
	case "sep":
		return time.September
	case "oct":
		return time.October
	case "nov":
		return time.November
	case "dec":
		return time.December
	}
	return 0
}

// date builds a calendar date, rejecting values time.Date would normalize.
func date(year int, month time.Month, day int, loc *time.Location) (time.Time, bool) {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, loc)
	if t.Month() != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}
