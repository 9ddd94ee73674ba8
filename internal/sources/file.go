package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spigell/job-sieve/internal/job"
)

const fileName = "file"

// File reads JSON arrays of records from files matching glob patterns. It
// feeds records collected by external scrapers into the pipeline.
type File struct {
	Patterns []string
}

func NewFile(patterns ...string) *File {
	return &File{Patterns: patterns}
}

func (f *File) Name() string { return fileName }

func (f *File) Fetch(ctx context.Context) ([]*job.Record, error) {
	var paths []string
	for _, pattern := range f.Patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	var records []*job.Record
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		var batch []*job.Record
		if err := json.Unmarshal(data, &batch); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		records = append(records, batch...)
	}

	return records, nil
}
