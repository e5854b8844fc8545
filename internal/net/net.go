// Package net provides the sequence network: a stack of recurrent layers
// followed by dense layers, trained on batches of fixed-length sequences.
package net

import (
	"context"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/FlavioCFOliveira/fraudrnn/internal/data"
	"github.com/FlavioCFOliveira/fraudrnn/internal/layer"
	"github.com/FlavioCFOliveira/fraudrnn/internal/loss"
	"github.com/FlavioCFOliveira/fraudrnn/internal/metrics"
	"github.com/FlavioCFOliveira/fraudrnn/internal/opt"
)

// DefaultClipNorm is the default per-layer gradient norm limit for recurrent
// layers. 0 leaves gradients unclipped.
const DefaultClipNorm = 0.0

// Network is a stack of recurrent layers feeding a dense head.
// Every recurrent layer but the last passes its full output sequence to the
// next one; the head sees only the last hidden state.
type Network struct {
	layers    []layer.Layer
	recurrent []layer.Recurrent
	head      []layer.Layer

	seqLength int
	features  int

	loss     loss.Loss
	opt      opt.Optimizer
	clipNorm float64
	workers  int

	replicas []*Network

	// Per-network buffers so replicas can run concurrently.
	lossGradBuf []float64
	targetBuf   []float64
	zeroBuf     []float64
	steps       int
}

// New creates a network over sequences of seqLength rows of features values.
// Layers must be one or more recurrent layers followed by one or more
// non-recurrent layers, with matching sizes, ending in a single output.
func New(seqLength, features int, layers []layer.Layer, lossFn loss.Loss, optimizer opt.Optimizer) (*Network, error) {
	if seqLength <= 0 || features <= 0 {
		return nil, errors.Errorf("invalid input shape (%d, %d)", seqLength, features)
	}

	n := &Network{
		layers:    layers,
		seqLength: seqLength,
		features:  features,
		loss:      lossFn,
		opt:       optimizer,
		clipNorm:  DefaultClipNorm,
		workers:   runtime.NumCPU(),
	}

	prevOut := features
	for i, l := range layers {
		if l.InSize() != prevOut {
			return nil, errors.Errorf("layer %d expects %d inputs, previous layer produces %d", i, l.InSize(), prevOut)
		}
		prevOut = l.OutSize()

		if r, ok := l.(layer.Recurrent); ok {
			if len(n.head) > 0 {
				return nil, errors.Errorf("layer %d: recurrent layer after dense layers", i)
			}
			n.recurrent = append(n.recurrent, r)
			continue
		}
		n.head = append(n.head, l)
	}
	if len(n.recurrent) == 0 {
		return nil, errors.New("network needs at least one recurrent layer")
	}
	if len(n.head) == 0 {
		return nil, errors.New("network needs an output layer")
	}
	if prevOut != 1 {
		return nil, errors.Errorf("network must end in a single output, got %d", prevOut)
	}

	n.initBuffers()
	return n, nil
}

func (n *Network) initBuffers() {
	n.lossGradBuf = make([]float64, 1)
	n.targetBuf = make([]float64, 1)
	n.zeroBuf = make([]float64, n.recurrent[len(n.recurrent)-1].OutSize())
}

// Forward runs one sequence through the network and returns the output.
// The returned slice is reused by the next call.
func (n *Network) Forward(seq [][]float64) []float64 {
	for _, r := range n.recurrent {
		r.Reset()
	}

	var h []float64
	for _, x := range seq {
		h = x
		for _, r := range n.recurrent {
			h = r.Forward(h)
		}
	}
	n.steps = len(seq)

	out := h
	for _, l := range n.head {
		out = l.Forward(out)
	}
	return out
}

// Backward propagates dL/dout for the last Forward sequence and accumulates
// parameter gradients. Only the last time step of the top recurrent layer
// receives gradient from the head.
func (n *Network) Backward(grad []float64) {
	for i := len(n.head) - 1; i >= 0; i-- {
		grad = n.head[i].Backward(grad)
	}

	top := len(n.recurrent) - 1
	for t := n.steps - 1; t >= 0; t-- {
		g := n.zeroBuf
		if t == n.steps-1 {
			g = grad
		}
		for i := top; i >= 0; i-- {
			g = n.recurrent[i].Backward(g)
		}
	}
	n.steps = 0
}

// trainSample runs forward and backward for one labelled sequence and
// returns its loss and prediction.
func (n *Network) trainSample(seq [][]float64, label float64) (float64, float64) {
	yPred := n.Forward(seq)
	n.targetBuf[0] = label
	l := n.loss.Forward(yPred, n.targetBuf)
	p := yPred[0]

	grad := n.lossGradBuf
	if inPlace, ok := n.loss.(loss.BackwardInPlacer); ok {
		inPlace.BackwardInPlace(yPred, n.targetBuf, grad)
	} else {
		grad = n.loss.Backward(yPred, n.targetBuf)
	}
	n.Backward(grad)
	return l, p
}

// replicate returns a network sharing n's parameters with private caches and gradients.
func (n *Network) replicate() *Network {
	layers := make([]layer.Layer, len(n.layers))
	for i, l := range n.layers {
		layers[i] = l.Replica()
	}
	r := &Network{
		layers:    layers,
		seqLength: n.seqLength,
		features:  n.features,
		loss:      n.loss,
	}
	for _, l := range layers {
		if rec, ok := l.(layer.Recurrent); ok {
			r.recurrent = append(r.recurrent, rec)
		} else {
			r.head = append(r.head, l)
		}
	}
	r.initBuffers()
	return r
}

// workersFor grows the replica pool and returns the number of workers for a batch of size b.
func (n *Network) workersFor(b int) int {
	w := min(max(n.workers, 1), b)
	for len(n.replicas) < w {
		n.replicas = append(n.replicas, n.replicate())
	}
	return w
}

// parallel splits [0, b) into contiguous chunks and runs fn on each with its own replica.
func (n *Network) parallel(ctx context.Context, b int, fn func(r *Network, i int)) error {
	w := n.workersFor(b)
	chunk := (b + w - 1) / w

	var wg sync.WaitGroup
	for k := 0; k < w; k++ {
		start, end := k*chunk, min((k+1)*chunk, b)
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(r *Network, start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				if ctx.Err() != nil {
					return
				}
				fn(r, i)
			}
		}(n.replicas[k], start, end)
	}
	wg.Wait()
	return ctx.Err()
}

// TrainBatch performs one optimizer step on a batch. Samples are spread over
// worker replicas; their gradients are summed, averaged over the batch and
// applied in a single step. It returns the mean loss and confusion counts of
// the batch as predicted before the update.
func (n *Network) TrainBatch(ctx context.Context, b data.Batch) (metrics.Logs, error) {
	size := b.Len()
	if size == 0 {
		return metrics.Logs{}, errors.New("empty batch")
	}
	if n.opt == nil || n.loss == nil {
		return metrics.Logs{}, errors.New("network is not compiled")
	}

	w := n.workersFor(size)
	for _, r := range n.replicas[:w] {
		for _, l := range r.layers {
			l.ZeroGrad()
		}
	}

	losses := make([]float64, size)
	preds := make([]float64, size)
	err := n.parallel(ctx, size, func(r *Network, i int) {
		losses[i], preds[i] = r.trainSample(b.X[i], b.Y[i])
	})
	if err != nil {
		return metrics.Logs{}, err
	}

	params := make([][]float64, len(n.layers))
	grads := make([][]float64, len(n.layers))
	scale := 1 / float64(size)
	for i, l := range n.layers {
		g := l.Gradients()
		l.ZeroGrad()
		for _, r := range n.replicas[:w] {
			floats.Add(g, r.layers[i].Gradients())
		}
		floats.Scale(scale, g)
		if _, ok := l.(layer.Recurrent); ok {
			opt.ClipByNorm([][]float64{g}, n.clipNorm)
		}
		params[i] = l.Params()
		grads[i] = g
	}
	n.opt.Step(params, grads)

	logs := metrics.Logs{Loss: floats.Sum(losses) * scale}
	logs.AddAll(preds, b.Y)
	return logs, nil
}

// PredictBatch returns the output probability for every sequence in X.
func (n *Network) PredictBatch(ctx context.Context, X [][][]float64) ([]float64, error) {
	preds := make([]float64, len(X))
	if len(X) == 0 {
		return preds, nil
	}
	err := n.parallel(ctx, len(X), func(r *Network, i int) {
		preds[i] = r.Forward(X[i])[0]
	})
	if err != nil {
		return nil, err
	}
	return preds, nil
}

// SetWorkers sets the number of concurrent replicas. w <= 0 uses every CPU.
func (n *Network) SetWorkers(w int) {
	if w <= 0 {
		w = runtime.NumCPU()
	}
	n.workers = w
}

// SetClipNorm sets the gradient norm limit applied to each recurrent layer. 0 disables clipping.
func (n *Network) SetClipNorm(c float64) {
	n.clipNorm = c
}

// ClipNorm returns the gradient norm limit.
func (n *Network) ClipNorm() float64 {
	return n.clipNorm
}

// Layers returns the network's layers in order.
func (n *Network) Layers() []layer.Layer {
	return n.layers
}

// Recurrent returns the recurrent layers in order.
func (n *Network) Recurrent() []layer.Recurrent {
	return n.recurrent
}

// InputShape returns the sequence length and the feature width.
func (n *Network) InputShape() (seqLength, features int) {
	return n.seqLength, n.features
}

// Loss returns the loss function.
func (n *Network) Loss() loss.Loss {
	return n.loss
}

// Optimizer returns the optimizer.
func (n *Network) Optimizer() opt.Optimizer {
	return n.opt
}

// ParamCount returns the number of trainable parameters.
func (n *Network) ParamCount() int {
	total := 0
	for _, l := range n.layers {
		total += len(l.Params())
	}
	return total
}

// Params returns all network parameters flattened (copy).
func (n *Network) Params() []float64 {
	var params []float64
	for _, l := range n.layers {
		params = append(params, l.Params()...)
	}
	return params
}

// Gradients returns all network gradients flattened (copy).
func (n *Network) Gradients() []float64 {
	var gradients []float64
	for _, l := range n.layers {
		gradients = append(gradients, l.Gradients()...)
	}
	return gradients
}
