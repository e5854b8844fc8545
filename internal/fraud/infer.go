package fraud

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/fraudrnn/internal/config"
	"github.com/FlavioCFOliveira/fraudrnn/internal/data"
	"github.com/FlavioCFOliveira/fraudrnn/internal/metrics"
	"github.com/FlavioCFOliveira/fraudrnn/internal/net"
)

// InferResult holds the scores of a held-out evaluation.
type InferResult struct {
	Accuracy  float64
	Confusion metrics.Confusion
	Windows   int
}

// LoadModel loads the saved model for cfg.RNNType.
func LoadModel(cfg *config.Config) (*net.Sequential, error) {
	path := cfg.ModelPath()
	model, err := net.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.Errorf("no saved model at %s; run `fraudrnn train --rnn-type %s` first", path, cfg.RNNType)
	}
	if err != nil {
		return nil, err
	}
	return model, nil
}

// Infer scores every window of cfg.TestPath() with the saved model and writes
// the model summary and the test accuracy to out.
func Infer(ctx context.Context, cfg *config.Config, out io.Writer) (*InferResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	gen, err := data.PrepareInferenceData(data.Options{
		Path:      cfg.TestPath(),
		BatchSize: cfg.BatchSize,
		SeqLength: cfg.SeqLength,
		Features:  cfg.Features,
	})
	if err != nil {
		return nil, errors.Wrap(err, "prepare inference data")
	}
	log.Printf("test data: path=%s windows=%d batch_size=%d", cfg.TestPath(), gen.Windows(), cfg.BatchSize)

	model, err := LoadModel(cfg)
	if err != nil {
		return nil, err
	}
	seqLength, features := model.InputShape()
	if features != cfg.Features {
		return nil, errors.Errorf("model expects %d features per transaction, config has %d", features, cfg.Features)
	}
	if seqLength != cfg.SeqLength {
		log.Printf("warning: model was trained on sequences of %d, scoring sequences of %d", seqLength, cfg.SeqLength)
	}
	model.SetWorkers(cfg.Workers)

	model.Summary(out)

	var yPred, yTrue []float64
	var conf metrics.Confusion
	for batch := 1; ; batch++ {
		b, err := gen.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		preds, err := model.PredictBatch(ctx, b.X)
		if err != nil {
			return nil, err
		}
		yPred = append(yPred, preds...)
		yTrue = append(yTrue, b.Y...)
		conf.AddAll(preds, b.Y)
		if batch%10 == 0 {
			log.Printf("scored: batches=%d windows=%d", batch, len(yPred))
		}
	}

	res := &InferResult{
		Accuracy:  metrics.Accuracy(yPred, yTrue),
		Confusion: conf,
		Windows:   len(yPred),
	}
	fmt.Fprintln(out, "Test accuracy:", res.Accuracy)
	log.Printf("precision=%.4f recall=%.4f f1=%.4f %s", conf.Precision(), conf.Recall(), conf.F1(), conf)
	return res, nil
}
