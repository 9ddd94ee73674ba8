// Package ranking orders scored records and selects the top of the list.
package ranking

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spigell/job-sieve/internal/job"
)

// ErrUnscored marks a record that reached ranking without a score.
var ErrUnscored = errors.New("record reached ranking without a score")

// Result describes what Rank discarded.
type Result struct {
	Ranked         []*job.Record
	Unscored       int
	BelowThreshold int
	Truncated      int
}

// Validate returns ErrUnscored for the first record without a score.
func Validate(records []*job.Record) error {
	for _, rec := range records {
		if rec.Score == nil {
			return fmt.Errorf("%w: %s %q", ErrUnscored, rec.ID, rec.Title)
		}
	}
	return nil
}

// Rank keeps records scoring at least minScore, orders them by descending
// score keeping arrival order among ties and truncates to topN. Records
// without a score are excluded. The output never exceeds topN, so a
// non-positive topN yields an empty list.
func Rank(records []*job.Record, minScore float64, topN int) Result {
	var res Result

	qualified := make([]*job.Record, 0, len(records))
	for _, rec := range records {
		switch {
		case rec.Score == nil:
			res.Unscored++
		case *rec.Score < minScore:
			res.BelowThreshold++
		default:
			qualified = append(qualified, rec)
		}
	}

	slices.SortStableFunc(qualified, func(a, b *job.Record) int {
		switch {
		case *a.Score > *b.Score:
			return -1
		case *a.Score < *b.Score:
			return 1
		default:
			return 0
		}
	})

	topN = max(topN, 0)
	if len(qualified) > topN {
		res.Truncated = len(qualified) - topN
		qualified = qualified[:topN]
	}

	res.Ranked = qualified
	return res
}
