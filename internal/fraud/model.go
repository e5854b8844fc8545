// Package fraud wires data, model and run records into the train, infer and
// gen-data workflows.
package fraud

import (
	"github.com/FlavioCFOliveira/fraudrnn/internal/activations"
	"github.com/FlavioCFOliveira/fraudrnn/internal/config"
	"github.com/FlavioCFOliveira/fraudrnn/internal/layer"
	"github.com/FlavioCFOliveira/fraudrnn/internal/loss"
	"github.com/FlavioCFOliveira/fraudrnn/internal/net"
	"github.com/FlavioCFOliveira/fraudrnn/internal/opt"
)

// BuildModel creates the compiled classifier: two recurrent layers of
// cfg.Units (the first returning its full sequence) and a sigmoid output,
// trained with Adam on binary cross-entropy.
func BuildModel(cfg *config.Config) (*net.Sequential, error) {
	rng := layer.NewRNG(uint64(cfg.Seed))

	first, err := layer.NewRecurrent(cfg.RNNType, cfg.Features, cfg.Units, rng)
	if err != nil {
		return nil, err
	}
	second, err := layer.NewRecurrent(cfg.RNNType, cfg.Units, cfg.Units, rng)
	if err != nil {
		return nil, err
	}
	head := layer.NewDense(cfg.Units, 1, activations.Sigmoid{}, rng)

	model, err := net.NewSequential(cfg.SeqLength, cfg.Features, first, second, head)
	if err != nil {
		return nil, err
	}
	model.Compile(opt.NewAdam(cfg.LearningRate), loss.BCE{})
	model.SetWorkers(cfg.Workers)
	model.SetClipNorm(cfg.ClipNorm)
	return model, nil
}
