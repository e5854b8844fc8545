package net

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/fraudrnn/internal/data"
	"github.com/FlavioCFOliveira/fraudrnn/internal/layer"
	"github.com/FlavioCFOliveira/fraudrnn/internal/loss"
	"github.com/FlavioCFOliveira/fraudrnn/internal/metrics"
	"github.com/FlavioCFOliveira/fraudrnn/internal/opt"
)

// Sequential is a high-level wrapper around Network to provide a Keras-like API.
type Sequential struct {
	*Network
}

// NewSequential creates a model over inputs of shape (seqLength, features).
// Call Compile before training.
func NewSequential(seqLength, features int, layers ...layer.Layer) (*Sequential, error) {
	n, err := New(seqLength, features, layers, nil, nil)
	if err != nil {
		return nil, err
	}
	return &Sequential{Network: n}, nil
}

// Compile configures the model for training.
func (s *Sequential) Compile(optimizer opt.Optimizer, lossFn loss.Loss) {
	s.opt = optimizer
	s.loss = lossFn
	for _, r := range s.replicas {
		r.loss = lossFn
	}
}

// Predict returns the output probability for one sequence.
func (s *Sequential) Predict(seq [][]float64) float64 {
	return s.Forward(seq)[0]
}

// Evaluate predicts every batch of a finite source and returns the mean loss
// and the confusion counts.
func (s *Sequential) Evaluate(ctx context.Context, src data.Source) (metrics.Logs, error) {
	if s.loss == nil {
		return metrics.Logs{}, errors.New("model is not compiled")
	}

	var running metrics.Running
	pred := make([]float64, 1)
	for {
		b, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return metrics.Logs{}, err
		}

		if b.Len() == 0 {
			continue
		}
		preds, err := s.PredictBatch(ctx, b.X)
		if err != nil {
			return metrics.Logs{}, err
		}
		var total float64
		for i, p := range preds {
			pred[0] = p
			total += s.loss.Forward(pred, b.Y[i:i+1])
		}
		running.Record(total/float64(len(preds)), preds, b.Y)
	}
	return running.Logs(), nil
}

// Summary writes a table of the layers, their output shapes and parameter counts.
func (s *Sequential) Summary(w io.Writer) {
	const rule = "_________________________________________________________________"
	fmt.Fprintln(w, `Model: "sequential"`)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, " %-27s %-25s %s\n", "Layer (type)", "Output Shape", "Param #")
	fmt.Fprintln(w, strings.Repeat("=", len(rule)))

	seen := make(map[string]int)
	last := len(s.recurrent) - 1
	for i, l := range s.layers {
		typ := layerType(l)
		name := strings.ToLower(typ)
		if k := seen[name]; k > 0 {
			name = fmt.Sprintf("%s_%d", name, k)
		}
		seen[strings.ToLower(typ)]++

		shape := fmt.Sprintf("(None, %d)", l.OutSize())
		if i < last {
			shape = fmt.Sprintf("(None, %d, %d)", s.seqLength, l.OutSize())
		}
		fmt.Fprintf(w, " %-27s %-25s %d\n", fmt.Sprintf("%s (%s)", name, typ), shape, len(l.Params()))
		if i < len(s.layers)-1 {
			fmt.Fprintln(w)
		}
	}

	total := s.ParamCount()
	fmt.Fprintln(w, strings.Repeat("=", len(rule)))
	fmt.Fprintf(w, "Total params: %d\n", total)
	fmt.Fprintf(w, "Trainable params: %d\n", total)
	fmt.Fprintf(w, "Non-trainable params: 0\n")
	fmt.Fprintln(w, rule)
}

func layerType(l layer.Layer) string {
	switch l.(type) {
	case *layer.LSTM:
		return "LSTM"
	case *layer.GRU:
		return "GRU"
	case *layer.Dense:
		return "Dense"
	}
	t := fmt.Sprintf("%T", l)
	return t[strings.LastIndex(t, ".")+1:]
}
