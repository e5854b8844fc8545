// Package config holds the knobs shared by the train, infer and gen-data commands.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/fraudrnn/internal/layer"
)

// Batch size defaults of the two commands.
const (
	DefaultTrainBatchSize = 32
	DefaultInferBatchSize = 2000
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "FRAUDRNN_"

// Config captures the runtime knobs for a training or inference run.
type Config struct {
	RNNType       string  `json:"rnn_type"`
	BatchSize     int     `json:"batch_size"`
	SeqLength     int     `json:"seq_length"`
	Features      int     `json:"features"`
	Units         int     `json:"units"`
	Epochs        int     `json:"epochs"`
	StepsPerEpoch int     `json:"steps_per_epoch"`
	LearningRate  float64 `json:"learning_rate"`
	Seed          int64   `json:"seed"`
	Workers       int     `json:"workers"`
	DataDir       string  `json:"data_dir"`
	ModelDir      string  `json:"model_dir"`
	// Patience is the number of epochs without loss improvement before
	// training stops. 0 disables early stopping.
	Patience int `json:"patience"`
	// ClipNorm limits each recurrent layer's gradient norm. 0 disables clipping.
	ClipNorm float64 `json:"clip_norm"`
	LogEvery int     `json:"log_every"`
}

// DefaultConfig returns a Config with the training defaults.
func DefaultConfig() *Config {
	return &Config{
		RNNType:       layer.KindLSTM,
		BatchSize:     DefaultTrainBatchSize,
		SeqLength:     7,
		Features:      220,
		Units:         200,
		Epochs:        20,
		StepsPerEpoch: 50000,
		LearningRate:  0.001,
		Seed:          42,
		DataDir:       "data",
		ModelDir:      "saved_model",
		LogEvery:      1000,
	}
}

// ApplyEnv overlays FRAUDRNN_* variables found by lookup onto c.
// Pass os.LookupEnv to read the process environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(err, "%s%s", EnvPrefix, key)
		}
		*dst = n
		return nil
	}
	float := func(key string, dst *float64) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return errors.Wrapf(err, "%s%s", EnvPrefix, key)
		}
		*dst = f
		return nil
	}

	str("RNN_TYPE", &c.RNNType)
	str("DATA_DIR", &c.DataDir)
	str("MODEL_DIR", &c.ModelDir)

	for _, f := range []struct {
		key string
		dst *int
	}{
		{"BATCH_SIZE", &c.BatchSize},
		{"SEQ_LENGTH", &c.SeqLength},
		{"FEATURES", &c.Features},
		{"UNITS", &c.Units},
		{"EPOCHS", &c.Epochs},
		{"STEPS_PER_EPOCH", &c.StepsPerEpoch},
		{"WORKERS", &c.Workers},
		{"PATIENCE", &c.Patience},
		{"LOG_EVERY", &c.LogEvery},
	} {
		if err := num(f.key, f.dst); err != nil {
			return err
		}
	}

	if err := float("LEARNING_RATE", &c.LearningRate); err != nil {
		return err
	}
	if err := float("CLIP_NORM", &c.ClipNorm); err != nil {
		return err
	}

	if v, ok := lookup(EnvPrefix + "SEED"); ok && v != "" {
		seed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return errors.Wrapf(err, "%sSEED", EnvPrefix)
		}
		c.Seed = seed
	}
	return nil
}

// Validate verifies the config is runnable and normalizes RNNType.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	kind, err := layer.ParseKind(c.RNNType)
	if err != nil {
		return err
	}
	c.RNNType = kind

	for _, f := range []struct {
		name string
		v    int
	}{
		{"batch_size", c.BatchSize},
		{"seq_length", c.SeqLength},
		{"features", c.Features},
		{"units", c.Units},
		{"epochs", c.Epochs},
		{"steps_per_epoch", c.StepsPerEpoch},
	} {
		if f.v <= 0 {
			return errors.Errorf("%s must be > 0 (got %d)", f.name, f.v)
		}
	}
	if c.LearningRate <= 0 {
		return errors.Errorf("learning_rate must be > 0 (got %v)", c.LearningRate)
	}
	if c.Workers < 0 {
		return errors.Errorf("workers must be >= 0 (got %d)", c.Workers)
	}
	if c.Patience < 0 {
		return errors.Errorf("patience must be >= 0 (got %d)", c.Patience)
	}
	if c.ClipNorm < 0 {
		return errors.Errorf("clip_norm must be >= 0 (got %v)", c.ClipNorm)
	}
	if c.LogEvery <= 0 {
		c.LogEvery = 1000
	}
	return nil
}

// TrainPath returns the training data file.
func (c *Config) TrainPath() string {
	return filepath.Join(c.DataDir, "train.csv")
}

// TestPath returns the held-out data file.
func (c *Config) TestPath() string {
	return filepath.Join(c.DataDir, "test.csv")
}

// ModelPath returns the saved model file for the configured cell type.
func (c *Config) ModelPath() string {
	return filepath.Join(c.ModelDir, c.RNNType+".bin")
}

// CheckpointPath returns the best-loss checkpoint file.
func (c *Config) CheckpointPath() string {
	return filepath.Join(c.ModelDir, c.RNNType+".best.bin")
}

// HistoryPath returns the per-epoch metrics CSV.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.ModelDir, "history_"+c.RNNType+".csv")
}

// RunsDir returns the directory holding training run records.
func (c *Config) RunsDir() string {
	return filepath.Join(c.ModelDir, "runs")
}

// EnsureDirs creates the model directory if it doesn't exist.
func EnsureDirs(cfg *Config) error {
	for _, dir := range []string{cfg.ModelDir, cfg.RunsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}
	return nil
}
