package runstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/fraudrnn/internal/config"
)

func TestRunStoreSaveLoadList(t *testing.T) {
	dir := t.TempDir()
	store := NewRunStoreAt(dir)

	cfg := config.DefaultConfig()
	cfg.RNNType = "gru"
	run := NewRun(cfg)
	if _, err := uuid.Parse(run.ID); err != nil {
		t.Errorf("run ID %q is not a UUID: %v", run.ID, err)
	}
	run.Metrics = RunMetrics{Epochs: 3, Loss: 0.25, Accuracy: 0.9, TP: 4}

	if err := store.Save(run); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, run.ID, "run.json")); err != nil {
		t.Errorf("run file missing: %v", err)
	}

	loaded, err := store.Load(run.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.RNNType != "gru" || loaded.Status != StatusTraining {
		t.Errorf("loaded = %+v", loaded)
	}
	if loaded.Config.StepsPerEpoch != cfg.StepsPerEpoch || loaded.Metrics.TP != 4 {
		t.Errorf("config or metrics not round-tripped: %+v", loaded)
	}
	if loaded.ModelPath != cfg.ModelPath() {
		t.Errorf("ModelPath = %q, want %q", loaded.ModelPath, cfg.ModelPath())
	}

	older := NewRun(cfg)
	older.CreatedAt = run.CreatedAt.Add(-time.Hour)
	if err := store.Save(older); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "stray.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "corrupt"), 0755); err != nil {
		t.Fatal(err)
	}

	runs, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("List returned %d runs, want 2", len(runs))
	}
	if runs[0].ID != run.ID {
		t.Errorf("List should return newest first")
	}
}

func TestRunStoreListMissingDir(t *testing.T) {
	store := NewRunStoreAt(filepath.Join(t.TempDir(), "none"))
	runs, err := store.List()
	if err != nil || runs != nil {
		t.Errorf("List = %v, %v; want nil, nil", runs, err)
	}
}

func TestRunStoreDelete(t *testing.T) {
	store := NewRunStoreAt(t.TempDir())
	run := NewRun(config.DefaultConfig())
	if err := store.Save(run); err != nil {
		t.Fatal(err)
	}

	if err := store.Delete(run.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Load(run.ID); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load after delete: %v", err)
	}
	if err := store.Delete(run.ID); err == nil {
		t.Error("expected error deleting a missing run")
	}
}

func TestFinish(t *testing.T) {
	run := NewRun(config.DefaultConfig())
	run.Finish(StatusFailed, errors.New("boom"))
	if run.Status != StatusFailed || run.Error != "boom" || run.Metrics.Duration == "" {
		t.Errorf("Finish = %+v", run)
	}
	if run.UpdatedAt.Before(run.CreatedAt) {
		t.Error("UpdatedAt before CreatedAt")
	}
}
