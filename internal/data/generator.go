package data

import (
	"context"
	"io"
	"math/rand"

	"github.com/pkg/errors"
)

// Batch is a group of sequences with their labels.
// X has shape batch x seqLength x features.
type Batch struct {
	X [][][]float64
	Y []float64
}

// Len returns the number of sequences in the batch.
func (b Batch) Len() int {
	return len(b.Y)
}

// Source yields batches. Finite sources return io.EOF once exhausted.
type Source interface {
	Next(ctx context.Context) (Batch, error)
}

// Options configures a generator.
type Options struct {
	Path      string
	BatchSize int
	SeqLength int
	Features  int
	Seed      int64
	// Prefetch is the number of batches buffered ahead of the consumer.
	Prefetch int
}

func (o *Options) validate() error {
	if o.BatchSize <= 0 {
		return errors.Errorf("batch size must be > 0 (got %d)", o.BatchSize)
	}
	if o.SeqLength <= 0 {
		return errors.Errorf("sequence length must be > 0 (got %d)", o.SeqLength)
	}
	if o.Features <= 0 {
		o.Features = DefaultFeatures
	}
	if o.Prefetch <= 0 {
		o.Prefetch = 2
	}
	if o.Seed == 0 {
		o.Seed = 42
	}
	return nil
}

func loadWindows(o Options) ([]Window, error) {
	t, err := LoadCSV(o.Path, o.Features)
	if err != nil {
		return nil, err
	}
	windows := t.Windows(o.SeqLength)
	if len(windows) == 0 {
		return nil, errors.Errorf("%s: no card has %d or more transactions", o.Path, o.SeqLength)
	}
	return windows, nil
}

// TrainingGenerator yields an unbounded stream of shuffled batches.
type TrainingGenerator struct {
	batches <-chan Batch
	cancel  context.CancelFunc
	windows int
}

// PrepareTrainingData loads the training file and starts a producer goroutine
// that reshuffles the windows on every pass and emits batches of exactly
// BatchSize, wrapping across passes. Call Close to stop the producer.
func PrepareTrainingData(ctx context.Context, o Options) (*TrainingGenerator, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	windows, err := loadWindows(o)
	if err != nil {
		return nil, err
	}
	return NewTrainingGenerator(ctx, windows, o)
}

// NewTrainingGenerator starts a generator over windows already in memory.
func NewTrainingGenerator(ctx context.Context, windows []Window, o Options) (*TrainingGenerator, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return nil, errors.New("no windows to train on")
	}
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan Batch, o.Prefetch)
	go produceShuffled(ctx, out, windows, o.BatchSize, rand.New(rand.NewSource(o.Seed)))
	return &TrainingGenerator{batches: out, cancel: cancel, windows: len(windows)}, nil
}

func produceShuffled(ctx context.Context, out chan<- Batch, windows []Window, batchSize int, rng *rand.Rand) {
	defer close(out)

	perm := rng.Perm(len(windows))
	pos := 0
	for {
		b := Batch{
			X: make([][][]float64, batchSize),
			Y: make([]float64, batchSize),
		}
		for i := 0; i < batchSize; i++ {
			if pos == len(perm) {
				rng.Shuffle(len(perm), func(a, c int) { perm[a], perm[c] = perm[c], perm[a] })
				pos = 0
			}
			w := windows[perm[pos]]
			pos++
			b.X[i] = w.Rows
			b.Y[i] = w.Label
		}
		select {
		case <-ctx.Done():
			return
		case out <- b:
		}
	}
}

// Next returns the next batch.
func (g *TrainingGenerator) Next(ctx context.Context) (Batch, error) {
	select {
	case <-ctx.Done():
		return Batch{}, ctx.Err()
	case b, ok := <-g.batches:
		if !ok {
			return Batch{}, errors.New("training generator closed")
		}
		return b, nil
	}
}

// Windows returns the number of distinct sequences the generator samples from.
func (g *TrainingGenerator) Windows() int {
	return g.windows
}

// Close stops the producer goroutine.
func (g *TrainingGenerator) Close() {
	g.cancel()
}

// InferenceGenerator yields every window once, in file order.
type InferenceGenerator struct {
	windows   []Window
	batchSize int
	pos       int
}

// PrepareInferenceData loads the held-out file. The last batch may be short.
func PrepareInferenceData(o Options) (*InferenceGenerator, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	windows, err := loadWindows(o)
	if err != nil {
		return nil, err
	}
	return NewInferenceGenerator(windows, o.BatchSize), nil
}

// NewInferenceGenerator iterates windows already in memory.
func NewInferenceGenerator(windows []Window, batchSize int) *InferenceGenerator {
	return &InferenceGenerator{windows: windows, batchSize: batchSize}
}

// Next returns the next batch, or io.EOF after the last window.
func (g *InferenceGenerator) Next(ctx context.Context) (Batch, error) {
	if err := ctx.Err(); err != nil {
		return Batch{}, err
	}
	if g.pos >= len(g.windows) {
		return Batch{}, io.EOF
	}
	end := min(g.pos+g.batchSize, len(g.windows))
	b := Batch{
		X: make([][][]float64, 0, end-g.pos),
		Y: make([]float64, 0, end-g.pos),
	}
	for _, w := range g.windows[g.pos:end] {
		b.X = append(b.X, w.Rows)
		b.Y = append(b.Y, w.Label)
	}
	g.pos = end
	return b, nil
}

// Windows returns the total number of sequences.
func (g *InferenceGenerator) Windows() int {
	return len(g.windows)
}
