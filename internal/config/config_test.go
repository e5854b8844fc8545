package config

import (
	"path/filepath"
	"testing"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if cfg.RNNType != "lstm" || cfg.BatchSize != 32 || cfg.SeqLength != 7 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Epochs != 20 || cfg.StepsPerEpoch != 50000 || cfg.Features != 220 || cfg.Units != 200 {
		t.Errorf("unexpected training defaults: %+v", cfg)
	}
	if cfg.ClipNorm != 0 {
		t.Errorf("clip norm = %v, want 0 (off)", cfg.ClipNorm)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"FRAUDRNN_RNN_TYPE":      "GRU",
		"FRAUDRNN_BATCH_SIZE":    "64",
		"FRAUDRNN_LEARNING_RATE": "0.01",
		"FRAUDRNN_SEED":          "7",
		"FRAUDRNN_MODEL_DIR":     "/tmp/models",
		"FRAUDRNN_UNITS":         "",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.RNNType != "GRU" || cfg.BatchSize != 64 || cfg.LearningRate != 0.01 || cfg.Seed != 7 {
		t.Errorf("env not applied: %+v", cfg)
	}
	if cfg.Units != 200 {
		t.Errorf("empty variable should be ignored, units = %d", cfg.Units)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.RNNType != "gru" {
		t.Errorf("Validate should normalize rnn type, got %q", cfg.RNNType)
	}
	if got, want := cfg.ModelPath(), filepath.Join("/tmp/models", "gru.bin"); got != want {
		t.Errorf("ModelPath = %q, want %q", got, want)
	}
}

func TestApplyEnvErrors(t *testing.T) {
	for _, key := range []string{"FRAUDRNN_EPOCHS", "FRAUDRNN_CLIP_NORM", "FRAUDRNN_SEED"} {
		cfg := DefaultConfig()
		if err := cfg.ApplyEnv(envMap(map[string]string{key: "lots"})); err == nil {
			t.Errorf("%s: expected parse error", key)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"rnn type", func(c *Config) { c.RNNType = "transformer" }},
		{"batch size", func(c *Config) { c.BatchSize = 0 }},
		{"seq length", func(c *Config) { c.SeqLength = -1 }},
		{"steps", func(c *Config) { c.StepsPerEpoch = 0 }},
		{"learning rate", func(c *Config) { c.LearningRate = 0 }},
		{"patience", func(c *Config) { c.Patience = -2 }},
		{"clip norm", func(c *Config) { c.ClipNorm = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected error")
			}
		})
	}

	var nilCfg *Config
	if err := nilCfg.Validate(); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "d"
	cfg.ModelDir = "m"

	cases := map[string]string{
		cfg.TrainPath():      filepath.Join("d", "train.csv"),
		cfg.TestPath():       filepath.Join("d", "test.csv"),
		cfg.ModelPath():      filepath.Join("m", "lstm.bin"),
		cfg.CheckpointPath(): filepath.Join("m", "lstm.best.bin"),
		cfg.HistoryPath():    filepath.Join("m", "history_lstm.csv"),
		cfg.RunsDir():        filepath.Join("m", "runs"),
	}
	for got, want := range cases {
		if got != want {
			t.Errorf("path = %q, want %q", got, want)
		}
	}
}

func TestEnsureDirs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelDir = filepath.Join(t.TempDir(), "nested", "saved_model")
	if err := EnsureDirs(cfg); err != nil {
		t.Fatal(err)
	}
	if err := EnsureDirs(cfg); err != nil {
		t.Errorf("second call: %v", err)
	}
}
