package fraud

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/FlavioCFOliveira/fraudrnn/internal/config"
	"github.com/FlavioCFOliveira/fraudrnn/internal/data"
	"github.com/FlavioCFOliveira/fraudrnn/internal/runstore"
)

func tinyConfig(t *testing.T, kind string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.RNNType = kind
	cfg.Features = 16
	cfg.Units = 4
	cfg.SeqLength = 3
	cfg.BatchSize = 8
	cfg.Epochs = 2
	cfg.StepsPerEpoch = 5
	cfg.Workers = 2
	cfg.LogEvery = 2
	cfg.DataDir = t.TempDir()
	cfg.ModelDir = t.TempDir()

	opts := data.DefaultSynthOptions()
	opts.Cards = 30
	if err := GenerateData(cfg, opts, 10); err != nil {
		t.Fatalf("GenerateData: %v", err)
	}
	return cfg
}

func TestBuildModel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RNNType = "GRU"
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	model, err := BuildModel(cfg)
	if err != nil {
		t.Fatal(err)
	}
	// 3*(220*200+200*200+200) + 3*(200*200+200*200+200) + 201
	if got := model.ParamCount(); got != 493401 {
		t.Errorf("ParamCount = %d, want 493401", got)
	}

	cfg.RNNType = "rnn"
	if _, err := BuildModel(cfg); err == nil {
		t.Error("expected error for unknown rnn type")
	}
}

func TestTrainThenInfer(t *testing.T) {
	for _, kind := range []string{"lstm", "gru"} {
		t.Run(kind, func(t *testing.T) {
			cfg := tinyConfig(t, kind)
			ctx := context.Background()

			var out bytes.Buffer
			res, err := Train(ctx, cfg, &out)
			if err != nil {
				t.Fatalf("Train: %v", err)
			}
			if !strings.Contains(out.String(), "Total params:") {
				t.Errorf("summary not printed:\n%s", out.String())
			}
			if res.Run.Status != runstore.StatusDone || res.Run.Metrics.Epochs != 2 {
				t.Errorf("run = %+v", res.Run)
			}
			for _, path := range []string{cfg.ModelPath(), cfg.HistoryPath(), cfg.CheckpointPath()} {
				if _, err := os.Stat(path); err != nil {
					t.Errorf("missing %s: %v", path, err)
				}
			}

			runs, err := runstore.NewRunStoreAt(cfg.RunsDir()).List()
			if err != nil || len(runs) != 1 || runs[0].ID != res.Run.ID {
				t.Errorf("recorded runs = %v, %v", runs, err)
			}

			out.Reset()
			cfg.BatchSize = 7
			inf, err := Infer(ctx, cfg, &out)
			if err != nil {
				t.Fatalf("Infer: %v", err)
			}
			if !strings.Contains(out.String(), "Test accuracy:") {
				t.Errorf("accuracy line missing:\n%s", out.String())
			}
			if inf.Accuracy < 0 || inf.Accuracy > 1 || inf.Windows == 0 || inf.Confusion.Total() != inf.Windows {
				t.Errorf("result = %+v", inf)
			}
			if inf.Accuracy != inf.Confusion.Accuracy() {
				t.Errorf("accuracy %v disagrees with confusion %v", inf.Accuracy, inf.Confusion.Accuracy())
			}
		})
	}
}

func TestTrainCancelledStillSaves(t *testing.T) {
	cfg := tinyConfig(t, "lstm")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	res, err := Train(ctx, cfg, &out)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if res.Run.Status != runstore.StatusCancelled {
		t.Errorf("status = %s, want %s", res.Run.Status, runstore.StatusCancelled)
	}
	if _, err := os.Stat(cfg.ModelPath()); err != nil {
		t.Errorf("model not saved after cancel: %v", err)
	}
}

func TestTrainEarlyStopping(t *testing.T) {
	cfg := tinyConfig(t, "gru")
	cfg.Epochs = 50
	cfg.StepsPerEpoch = 1
	cfg.Patience = 1
	cfg.LearningRate = 1e-9

	res, err := Train(context.Background(), cfg, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Run.Status != runstore.StatusStopped && res.Run.Metrics.Epochs != 50 {
		t.Errorf("status = %s after %d epochs", res.Run.Status, res.Run.Metrics.Epochs)
	}
}

func TestInferWithoutModel(t *testing.T) {
	cfg := tinyConfig(t, "gru")
	_, err := Infer(context.Background(), cfg, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "fraudrnn train") {
		t.Errorf("err = %v, want hint to run train", err)
	}
}

func TestInferFeatureMismatch(t *testing.T) {
	cfg := tinyConfig(t, "lstm")
	if _, err := Train(context.Background(), cfg, &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}
	cfg.Features = 17
	if _, err := Infer(context.Background(), cfg, &bytes.Buffer{}); err == nil {
		t.Error("expected feature width error")
	}

	// Test data that matches the config but not the saved model.
	cfg.DataDir = t.TempDir()
	opts := data.DefaultSynthOptions()
	opts.Cards = 10
	if err := GenerateData(cfg, opts, 5); err != nil {
		t.Fatal(err)
	}
	_, err := Infer(context.Background(), cfg, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "model expects 16 features") {
		t.Errorf("err = %v, want model feature mismatch", err)
	}
}

func TestGenerateData(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Features = 20
	cfg.DataDir = t.TempDir() + "/nested"

	opts := data.DefaultSynthOptions()
	opts.Cards = 5
	if err := GenerateData(cfg, opts, 3); err != nil {
		t.Fatal(err)
	}
	train, err := data.LoadCSV(cfg.TrainPath(), 20)
	if err != nil {
		t.Fatal(err)
	}
	test, err := data.LoadCSV(cfg.TestPath(), 20)
	if err != nil {
		t.Fatal(err)
	}
	if train.Len() < 5*opts.MinTx || test.Len() < 3*opts.MinTx {
		t.Errorf("rows: train=%d test=%d", train.Len(), test.Len())
	}
}
