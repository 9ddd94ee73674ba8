// Package dedup keeps the identities of every record seen by previous runs.
package dedup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/spigell/job-sieve/internal/job"
)

const DefaultPath = "data/seen_jobs.json"

type file struct {
	SeenIDs []string `json:"seen_ids"`
}

// Store persists seen record identities in a single JSON file.
// It is append-only from the pipeline's point of view.
type Store struct {
	path    string
	logger  *zap.Logger
	persist bool
}

// New creates a store backed by path. When persist is false the store
// filters but never writes.
func New(path string, persist bool, logger *zap.Logger) *Store {
	if path == "" {
		path = DefaultPath
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, persist: persist, logger: logger}
}

func (s *Store) Path() string { return s.path }

// Load returns the set of previously seen identities. A missing or malformed
// file is treated as an empty set.
func (s *Store) Load() map[string]struct{} {
	seen := make(map[string]struct{})

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("reading dedup store, treating as empty", zap.String("path", s.path), zap.Error(err))
		}
		return seen
	}

	if len(data) == 0 {
		return seen
	}

	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		s.logger.Warn("parsing dedup store, treating as empty", zap.String("path", s.path), zap.Error(err))
		return seen
	}

	for _, id := range f.SeenIDs {
		seen[id] = struct{}{}
	}
	return seen
}

// FilterNew returns the records whose identity was never seen, keeping only the
// first occurrence within the batch. Every input identity is added to the store,
// including records later stages will discard.
//
// A record without url aborts with job.ErrMissingURL. Persistence failures are
// logged and tolerated: the returned set is still correct for this run.
func (s *Store) FilterNew(records []*job.Record) ([]*job.Record, error) {
	for _, rec := range records {
		if _, err := rec.EnsureID(); err != nil {
			return nil, err
		}
	}

	unlock := s.lock()
	defer unlock()

	seen := s.Load()
	fresh := make([]*job.Record, 0, len(records))
	for _, rec := range records {
		if _, ok := seen[rec.ID]; ok {
			continue
		}
		seen[rec.ID] = struct{}{}
		fresh = append(fresh, rec)
	}

	if s.persist {
		if err := s.save(seen); err != nil {
			s.logger.Warn("persisting dedup store failed; next run may reprocess these records",
				zap.String("path", s.path),
				zap.Error(err),
			)
		}
	}

	s.logger.Debug("dedup store filtered records",
		zap.Int("input", len(records)),
		zap.Int("new", len(fresh)),
		zap.Int("seen_total", len(seen)),
	)

	return fresh, nil
}

// Clear removes the persisted store.
func (s *Store) Clear() error {
	unlock := s.lock()
	defer unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing dedup store: %w", err)
	}
	return nil
}

// save writes the set through a temp file and rename, fsynced before returning.
func (s *Store) save(seen map[string]struct{}) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	tmp, err := os.CreateTemp(dir, ".seen_*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(file{SeenIDs: ids}); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing store: %w", err)
	}
	return nil
}

// lock takes an advisory file lock next to the store. Failing to lock is not
// fatal since a single run at a time is assumed.
func (s *Store) lock() func() {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.logger.Debug("skipping dedup store lock", zap.Error(err))
		return func() {}
	}

	fl := flock.New(s.path + ".lock")
	locked, err := fl.TryLock()
	if err != nil || !locked {
		s.logger.Warn("dedup store is locked by another process; continuing without lock",
			zap.String("lock", fl.Path()),
			zap.Error(err),
		)
		return func() {}
	}

	return func() {
		if err := fl.Unlock(); err != nil {
			s.logger.Debug("releasing dedup store lock", zap.Error(err))
		}
	}
}
