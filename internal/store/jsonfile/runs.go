// Package jsonfile provides JSON file-based stores.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hay-kot/alcl/internal/core/runs"
)

// DefaultMaxRuns bounds the run history kept on disk.
const DefaultMaxRuns = 50

// runsFile is the root JSON structure stored on disk.
type runsFile struct {
	Runs []runs.Run `json:"runs"`
}

// RunStore implements runs.Store using a JSON file for persistence.
type RunStore struct {
	path    string
	maxRuns int
	mu      sync.RWMutex
}

// NewRunStore creates a new JSON file run store at the given path.
// maxRuns limits stored runs (0 means unlimited).
func NewRunStore(path string, maxRuns int) *RunStore {
	return &RunStore{path: path, maxRuns: maxRuns}
}

// List returns all runs, newest first.
func (s *RunStore) List(ctx context.Context) ([]runs.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := s.load()
	if err != nil {
		return nil, err
	}

	return f.Runs, nil
}

// Get returns a run by ID. Returns ErrNotFound if not found.
func (s *RunStore) Get(ctx context.Context, id string) (runs.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := s.load()
	if err != nil {
		return runs.Run{}, err
	}

	for _, run := range f.Runs {
		if run.ID == id {
			return run, nil
		}
	}

	return runs.Run{}, runs.ErrNotFound
}

// Save adds a new run, pruning old runs to stay within maxRuns.
func (s *RunStore) Save(ctx context.Context, run runs.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.load()
	if err != nil {
		return err
	}

	f.Runs = append([]runs.Run{run}, f.Runs...)

	if s.maxRuns > 0 && len(f.Runs) > s.maxRuns {
		f.Runs = f.Runs[:s.maxRuns]
	}

	return s.save(f)
}

// Clear removes all runs.
func (s *RunStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.save(runsFile{Runs: []runs.Run{}})
}

// load reads the runs file from disk.
// Returns empty runsFile if file doesn't exist.
func (s *RunStore) load() (runsFile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return runsFile{}, nil
		}
		return runsFile{}, fmt.Errorf("read runs file: %w", err)
	}

	if len(data) == 0 {
		return runsFile{}, nil
	}

	var f runsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return runsFile{}, fmt.Errorf("runs file corrupted (run 'alcl history --clear' to reset): %w", err)
	}

	return f, nil
}

// save writes the runs file to disk atomically.
func (s *RunStore) save(f runsFile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create runs directory: %w", err)
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal runs: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create runs temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write runs temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close runs temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename runs file: %w", err)
	}

	return nil
}
