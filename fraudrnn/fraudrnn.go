// Package fraudrnn is the public entry point for embedding the fraud
// classifier in another program.
package fraudrnn

import (
	"context"
	"io"

	"github.com/FlavioCFOliveira/fraudrnn/internal/activations"
	"github.com/FlavioCFOliveira/fraudrnn/internal/config"
	"github.com/FlavioCFOliveira/fraudrnn/internal/data"
	"github.com/FlavioCFOliveira/fraudrnn/internal/fraud"
	"github.com/FlavioCFOliveira/fraudrnn/internal/layer"
	"github.com/FlavioCFOliveira/fraudrnn/internal/loss"
	"github.com/FlavioCFOliveira/fraudrnn/internal/net"
	"github.com/FlavioCFOliveira/fraudrnn/internal/opt"
)

// Re-export common types and functions for easier access
type (
	Model       = net.Sequential
	Layer       = layer.Layer
	Optimizer   = opt.Optimizer
	Loss        = loss.Loss
	Config      = config.Config
	Batch       = data.Batch
	FitOptions  = net.FitOptions
	History     = net.History
	Callback    = net.Callback
	TrainResult = fraud.TrainResult
	InferResult = fraud.InferResult
)

// Recurrent cell kinds.
const (
	LSTMKind = layer.KindLSTM
	GRUKind  = layer.KindGRU
)

// DefaultConfig returns the training defaults.
func DefaultConfig() *Config {
	return config.DefaultConfig()
}

// NewModel builds the compiled two-layer recurrent classifier described by cfg.
func NewModel(cfg *Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return fraud.BuildModel(cfg)
}

// NewSequential creates an uncompiled model from custom layers.
func NewSequential(seqLength, features int, layers ...Layer) (*Model, error) {
	return net.NewSequential(seqLength, features, layers...)
}

// Layers
func LSTM(in, units int, seed uint64) Layer {
	return layer.NewLSTM(in, units, layer.NewRNG(seed))
}

func GRU(in, units int, seed uint64) Layer {
	return layer.NewGRU(in, units, layer.NewRNG(seed))
}

func SigmoidDense(in, out int, seed uint64) Layer {
	return layer.NewDense(in, out, activations.Sigmoid{}, layer.NewRNG(seed))
}

// Optimizers and losses
func Adam(lr float64) Optimizer {
	return opt.NewAdam(lr)
}

func BinaryCrossEntropy() Loss {
	return loss.BCE{}
}

// Callbacks
func EarlyStopping(patience int, minDelta float64) *net.EarlyStopping {
	return net.NewEarlyStopping(patience, minDelta)
}

func ModelCheckpoint(filename string) Callback {
	return net.NewModelCheckpoint(filename)
}

func CSVLogger(filename string) Callback {
	return net.NewCSVLogger(filename, false)
}

// Load reads a model saved by Model.Save.
func Load(filename string) (*Model, error) {
	return net.Load(filename)
}

// Train runs the train workflow: it fits a new model on cfg's training file and saves it.
func Train(ctx context.Context, cfg *Config, summary io.Writer) (*TrainResult, error) {
	return fraud.Train(ctx, cfg, summary)
}

// Infer runs the infer workflow: it scores cfg's test file with the saved model.
func Infer(ctx context.Context, cfg *Config, summary io.Writer) (*InferResult, error) {
	return fraud.Infer(ctx, cfg, summary)
}
