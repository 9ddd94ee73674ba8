package ranking

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/job-sieve/internal/job"
)

func scored(scores ...float64) []*job.Record {
	records := make([]*job.Record, len(scores))
	for i, s := range scores {
		score := s
		records[i] = &job.Record{ID: fmt.Sprintf("r%d", i), Score: &score}
	}
	return records
}

func ids(records []*job.Record) []string {
	out := make([]string, len(records))
	for i, rec := range records {
		out[i] = rec.ID
	}
	return out
}

func TestRankSelectsTopStable(t *testing.T) {
	records := scored(95, 40, 95, 10, -5, 60, 60, 99, 0, 30)

	res := Rank(records, 50, 3)

	assert.Equal(t, []string{"r7", "r0", "r2"}, ids(res.Ranked))
	assert.Equal(t, 5, res.BelowThreshold)
	assert.Equal(t, 2, res.Truncated)
}

func TestRankKeepsArrivalOrderForTies(t *testing.T) {
	records := scored(60, 70, 60, 60)

	res := Rank(records, 0, 4)

	assert.Equal(t, []string{"r1", "r0", "r2", "r3"}, ids(res.Ranked))
	assert.Zero(t, res.Truncated)
}

func TestRankExcludesUnscored(t *testing.T) {
	records := scored(80, 90)
	records = append(records, &job.Record{ID: "nil"})

	res := Rank(records, 0, 10)

	assert.Equal(t, []string{"r1", "r0"}, ids(res.Ranked))
	assert.Equal(t, 1, res.Unscored)
	require.ErrorIs(t, Validate(records), ErrUnscored)
	require.NoError(t, Validate(records[:2]))
}

func TestRankEmpty(t *testing.T) {
	res := Rank(nil, 50, 3)
	assert.Empty(t, res.Ranked)
}

func TestRankInvariants(t *testing.T) {
	records := scored(12, 88, 45, 45, 99, 3, 67, 50, 50, 71, 20, 88)

	for _, tc := range []struct {
		min  float64
		topN int
	}{{0, 5}, {50, 3}, {50, 100}, {100, 1}, {-10, 12}, {0, 0}} {
		res := Rank(records, tc.min, tc.topN)

		assert.LessOrEqual(t, len(res.Ranked), tc.topN)
		for i, rec := range res.Ranked {
			assert.GreaterOrEqual(t, *rec.Score, tc.min)
			if i > 0 {
				assert.LessOrEqual(t, *rec.Score, *res.Ranked[i-1].Score)
			}
		}

		again := Rank(records, tc.min, tc.topN)
		assert.Equal(t, ids(res.Ranked), ids(again.Ranked))
	}
}

func TestRankZeroTopN(t *testing.T) {
	res := Rank(scored(90, 80, 70), 0, 0)

	assert.Empty(t, res.Ranked)
	assert.Equal(t, 3, res.Truncated)
}
