package render

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/prismvfx/farmhand/errors"
)

// StoreStats is the observational state of a Store, derived purely from
// its load/save operations.
type StoreStats struct {
	RetentionSeconds float64    `json:"retention_seconds"`
	TotalPruned      int        `json:"total_pruned"`
	LastPrunedCount  int        `json:"last_pruned_count"`
	LastPrunedAt     *time.Time `json:"last_pruned_at,omitempty"`
	RetainedRecords  int        `json:"retained_records"`
	LastSaveAt       *time.Time `json:"last_save_at,omitempty"`
	LastRotationAt   *time.Time `json:"last_rotation_at,omitempty"`
}

// Store persists the job table as an ordered JSON array in a single file.
// Writes go through a temp file and an atomic rename, so a concurrent
// reader never observes a partially written file.
//
// The file is a single-writer resource: one orchestrator instance owns a
// given path. Atomic replacement makes concurrent reads from another
// process safe, but two writers on one path are out of contract.
type Store struct {
	path      string
	retention time.Duration
	logger    *zap.SugaredLogger

	mu    sync.Mutex
	stats StoreStats
}

// NewStore creates a job store for path. retention == 0 is meaningful: no
// record survives a restart. A negative retention disables pruning
// entirely.
func NewStore(path string, retention time.Duration, log *zap.SugaredLogger) *Store {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Store{
		path:      path,
		retention: retention,
		logger:    log,
		stats: StoreStats{
			RetentionSeconds: retention.Seconds(),
		},
	}
}

// Load reads the persisted records, silently dropping any that are corrupt
// or missing a parsable created_at (legacy entries), applies retention
// pruning, and rewrites the file when anything was dropped so the next
// load is clean. Survivors come back in their original order.
//
// A missing file is an empty table, not an error.
func (s *Store) Load() ([]*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.stats.RetainedRecords = 0
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read job store %s", s.path)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(err, "job store %s is not a JSON array", s.path)
	}

	jobs := make([]*Job, 0, len(raw))
	dropped := 0
	for _, rec := range raw {
		var job Job
		if err := json.Unmarshal(rec, &job); err != nil || job.CreatedAt.IsZero() {
			// Corrupt or legacy record without a usable created_at.
			dropped++
			continue
		}
		jobs = append(jobs, &job)
	}
	if dropped > 0 {
		s.logger.Debugw("Dropped unreadable job records on load",
			"path", s.path,
			"dropped", dropped)
	}

	now := time.Now()
	kept, pruned := s.pruneLocked(jobs, now)

	if dropped > 0 || pruned > 0 {
		// Self-healing compaction: rewrite so the pruned records do not
		// come back on the next load.
		if err := s.writeAtomicLocked(kept); err != nil {
			s.logger.Warnw("Failed to compact job store after pruning",
				"path", s.path,
				"error", err)
		} else {
			t := now
			s.stats.LastRotationAt = &t
		}
	}

	s.stats.RetainedRecords = len(kept)
	return kept, nil
}

// Save persists an already-sized record set (post table eviction). It
// re-applies retention pruning and replaces the file atomically. The
// in-memory mutation that triggered the save is never rolled back on
// failure; durability here is at-least-once, not strict.
func (s *Store) Save(jobs []*Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	kept, _ := s.pruneLocked(jobs, now)

	if err := s.writeAtomicLocked(kept); err != nil {
		return errors.Wrapf(err, "failed to save job store %s", s.path)
	}

	t := now
	s.stats.LastSaveAt = &t
	s.stats.RetainedRecords = len(kept)
	return nil
}

// Stats returns a copy of the store's observational state.
func (s *Store) Stats() StoreStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// pruneLocked drops records older than the retention window and updates
// the prune counters. REQUIRES: s.mu held.
func (s *Store) pruneLocked(jobs []*Job, now time.Time) (kept []*Job, pruned int) {
	if s.retention < 0 {
		return jobs, 0
	}

	cutoff := now.Add(-s.retention)
	kept = make([]*Job, 0, len(jobs))
	for _, job := range jobs {
		if job.CreatedAt.Before(cutoff) {
			pruned++
			continue
		}
		kept = append(kept, job)
	}

	if pruned > 0 {
		s.stats.TotalPruned += pruned
		s.stats.LastPrunedCount = pruned
		t := now
		s.stats.LastPrunedAt = &t
		s.logger.Debugw("Pruned expired job records",
			"pruned", pruned,
			"retained", len(kept),
			"retention", s.retention)
	}
	return kept, pruned
}

// writeAtomicLocked writes the records to a temp file in the target
// directory and renames it over the store path. REQUIRES: s.mu held.
func (s *Store) writeAtomicLocked(jobs []*Job) error {
	if jobs == nil {
		jobs = []*Job{}
	}
	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal job records")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return errors.Wrapf(err, "failed to create store directory %s", dir)
	}

	// Temp file in the same directory so the rename stays on one
	// filesystem and is atomic.
	tmp, err := os.CreateTemp(dir, ".jobs-*.json.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to write temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to sync temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to close temp file")
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "failed to replace %s", s.path)
	}
	return nil
}
