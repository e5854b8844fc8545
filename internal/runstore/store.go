package runstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// RunStore persists TrainingRun metadata as JSON files.
type RunStore struct {
	baseDir string
}

// NewRunStoreAt creates a RunStore rooted at dir.
func NewRunStoreAt(dir string) *RunStore {
	return &RunStore{baseDir: dir}
}

func (s *RunStore) runDir(id string) string {
	return filepath.Join(s.baseDir, id)
}

func (s *RunStore) runPath(id string) string {
	return filepath.Join(s.runDir(id), "run.json")
}

// Save persists a training run to disk.
func (s *RunStore) Save(run *TrainingRun) error {
	dir := s.runDir(run.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "create run dir")
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal run")
	}

	if err := os.WriteFile(s.runPath(run.ID), data, 0644); err != nil {
		return errors.Wrap(err, "write run")
	}

	return nil
}

// Load reads a training run from disk.
func (s *RunStore) Load(id string) (*TrainingRun, error) {
	data, err := os.ReadFile(s.runPath(id))
	if err != nil {
		return nil, errors.Wrap(err, "read run")
	}

	var run TrainingRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, errors.Wrap(err, "unmarshal run")
	}

	return &run, nil
}

// List returns all training runs, sorted by creation time (newest first).
func (s *RunStore) List() ([]*TrainingRun, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read runs dir")
	}

	var runs []*TrainingRun
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		run, err := s.Load(entry.Name())
		if err != nil {
			continue // skip corrupt entries
		}
		runs = append(runs, run)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})

	return runs, nil
}

// Delete removes a training run.
func (s *RunStore) Delete(id string) error {
	dir := s.runDir(id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return errors.Errorf("run %s not found", id)
	}
	return os.RemoveAll(dir)
}
