package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// RecordFileName is the name of the snapshot file in a feature directory.
const RecordFileName = "state.yaml"

// CorruptStateError reports a persisted record that exists but cannot be
// used: unparseable content or a failed invariant. It is distinct from a
// missing record, which is a normal fresh-start condition. The unreadable
// file is left in place for manual inspection.
type CorruptStateError struct {
	FeatureID string
	Path      string
	Reason    string
	Err       error
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("corrupt state record for feature %s at %s: %s", e.FeatureID, e.Path, e.Reason)
}

func (e *CorruptStateError) Unwrap() error { return e.Err }

// Store reads and writes feature task records under a base directory
// (normally <root>/.forge/features). Each feature gets its own directory
// named by feature id, holding state.yaml plus the run lock.
type Store struct {
	baseDir string
	now     func() time.Time
}

// NewStore creates a Store over the given features directory.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir, now: time.Now}
}

// WithClock overrides the store's clock. Tests use this for deterministic
// updated_at values.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// BaseDir returns the directory holding all feature records.
func (s *Store) BaseDir() string { return s.baseDir }

// FeatureDir returns the directory for one feature id.
func (s *Store) FeatureDir(featureID string) string {
	return filepath.Join(s.baseDir, featureID)
}

// RecordPath returns the snapshot file path for one feature id.
func (s *Store) RecordPath(featureID string) string {
	return filepath.Join(s.FeatureDir(featureID), RecordFileName)
}

// Exists reports whether a record exists for the feature id.
func (s *Store) Exists(featureID string) bool {
	_, err := os.Stat(s.RecordPath(featureID))
	return err == nil
}

// Load reads the record for a feature id. A missing record returns
// found=false with no error. A present but unusable record returns a
// *CorruptStateError; it is never deleted or silently replaced.
func (s *Store) Load(featureID string) (rec *Record, found bool, err error) {
	path := s.RecordPath(featureID)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read state record for feature %s: %w", featureID, err)
	}

	var r Record
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, true, &CorruptStateError{
			FeatureID: featureID,
			Path:      path,
			Reason:    "unparseable YAML",
			Err:       err,
		}
	}
	if err := r.Validate(); err != nil {
		return nil, true, &CorruptStateError{
			FeatureID: featureID,
			Path:      path,
			Reason:    err.Error(),
			Err:       err,
		}
	}

	return &r, true, nil
}

// Save persists the full record snapshot atomically: the data is written
// to a temp file in the feature directory, synced, then renamed over the
// record. A crash mid-write leaves either the old or the new snapshot,
// never a torn hybrid. Save refuses records that fail validation so a bug
// upstream cannot poison the store.
func (s *Store) Save(rec *Record) error {
	if rec == nil {
		return fmt.Errorf("cannot save nil record")
	}
	rec.Timestamps.UpdatedAt = s.now().UTC()
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid record for feature %s: %w", rec.Feature.ID, err)
	}

	dir := s.FeatureDir(rec.Feature.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create feature directory: %w", err)
	}

	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	return atomicWriteFile(filepath.Join(dir, RecordFileName), data, 0o644)
}

// Discard removes the record for a feature id, superseding it ahead of a
// fresh restart. Only the snapshot file is removed; any lock file is the
// lock owner's to clean up.
func (s *Store) Discard(featureID string) error {
	err := os.Remove(s.RecordPath(featureID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to discard record for feature %s: %w", featureID, err)
	}
	return nil
}

// List returns all readable records, sorted by directory order. Corrupt
// records are returned separately so a listing can report them instead
// of hiding them; they are never deleted here.
func (s *Store) List() ([]*Record, []*CorruptStateError, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to read features directory: %w", err)
	}

	var records []*Record
	var corrupt []*CorruptStateError
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		rec, found, err := s.Load(entry.Name())
		if err != nil {
			var ce *CorruptStateError
			if errors.As(err, &ce) {
				corrupt = append(corrupt, ce)
			}
			continue
		}
		if !found {
			continue
		}
		records = append(records, rec)
	}
	return records, corrupt, nil
}

// atomicWriteFile writes data to path via a temp file and rename so a
// reader never observes a partially written file.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	ok := false
	defer func() {
		if !ok {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	ok = true
	return nil
}
