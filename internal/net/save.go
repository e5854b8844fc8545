package net

import (
	"encoding/gob"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/fraudrnn/internal/activations"
	"github.com/FlavioCFOliveira/fraudrnn/internal/layer"
	"github.com/FlavioCFOliveira/fraudrnn/internal/loss"
	"github.com/FlavioCFOliveira/fraudrnn/internal/opt"
)

// ErrUnknownLayer is returned when a model file names a layer type this package cannot build.
var ErrUnknownLayer = errors.New("unknown layer type")

// formatVersion is bumped whenever modelFile changes incompatibly.
const formatVersion = 1

// modelFile is the gob-encoded form of a Sequential model.
// The optimizer state is not saved; a loaded model starts with fresh moments.
type modelFile struct {
	Version      int
	SeqLength    int
	Features     int
	Loss         string
	Optimizer    string
	LearningRate float64
	ClipNorm     float64
	Layers       []LayerConfig
}

// LayerConfig holds the configuration needed to reconstruct a layer.
type LayerConfig struct {
	Type    string
	InSize  int
	OutSize int
	Params  []float64
	// Activation type for Dense layers
	Activation string
}

// ExtractLayerConfig extracts the configuration from a layer.
func ExtractLayerConfig(l layer.Layer) LayerConfig {
	cfg := LayerConfig{
		Type:    layerType(l),
		InSize:  l.InSize(),
		OutSize: l.OutSize(),
		Params:  l.Params(),
	}
	if dense, ok := l.(*layer.Dense); ok {
		cfg.Activation = activations.Name(dense.Activation())
	}
	return cfg
}

// CreateLayer rebuilds a layer from its saved configuration. Sizes and the
// parameter count are checked before anything is allocated.
func (c *LayerConfig) CreateLayer() (layer.Layer, error) {
	var (
		l   layer.Layer
		err error
	)
	switch c.Type {
	case "LSTM":
		l, err = layer.RestoreLSTM(c.InSize, c.OutSize, c.Params)
	case "GRU":
		l, err = layer.RestoreGRU(c.InSize, c.OutSize, c.Params)
	case "Dense":
		act, aerr := activations.ByName(c.Activation)
		if aerr != nil {
			return nil, aerr
		}
		l, err = layer.RestoreDense(c.InSize, c.OutSize, act, c.Params)
	default:
		return nil, errors.Wrapf(ErrUnknownLayer, "%q", c.Type)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "%s(%d, %d)", c.Type, c.InSize, c.OutSize)
	}
	return l, nil
}

// Save saves the model to a file using gob encoding.
func (s *Sequential) Save(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "create model file")
	}

	if err := s.Encode(file); err != nil {
		file.Close()
		return err
	}
	return errors.Wrap(file.Close(), "close model file")
}

// Encode writes the model to an io.Writer using gob encoding.
func (s *Sequential) Encode(w io.Writer) error {
	mf := modelFile{
		Version:   formatVersion,
		SeqLength: s.seqLength,
		Features:  s.features,
		ClipNorm:  s.clipNorm,
	}
	if s.loss != nil {
		mf.Loss = loss.Name(s.loss)
	}
	if s.opt != nil {
		mf.Optimizer = opt.Name(s.opt)
		mf.LearningRate = s.opt.LearningRate()
	}
	for _, l := range s.layers {
		mf.Layers = append(mf.Layers, ExtractLayerConfig(l))
	}

	return errors.Wrap(gob.NewEncoder(w).Encode(mf), "encode model")
}

// Load loads a model from a file.
func Load(filename string) (*Sequential, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "open model file")
	}
	defer file.Close()

	s, err := Decode(file)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", filename)
	}
	return s, nil
}

// Decode reads a model written by Encode. The model comes back compiled with
// its saved loss and a fresh optimizer of the saved kind and learning rate.
func Decode(r io.Reader) (*Sequential, error) {
	var mf modelFile
	if err := gob.NewDecoder(r).Decode(&mf); err != nil {
		return nil, errors.Wrap(err, "decode model")
	}
	if mf.Version != formatVersion {
		return nil, errors.Errorf("unsupported model format version %d", mf.Version)
	}

	layers := make([]layer.Layer, 0, len(mf.Layers))
	for i := range mf.Layers {
		l, err := mf.Layers[i].CreateLayer()
		if err != nil {
			return nil, errors.Wrapf(err, "layer %d", i)
		}
		layers = append(layers, l)
	}

	s, err := NewSequential(mf.SeqLength, mf.Features, layers...)
	if err != nil {
		return nil, err
	}
	s.SetClipNorm(mf.ClipNorm)

	if mf.Loss != "" && mf.Optimizer != "" {
		lossFn, err := loss.ByName(mf.Loss)
		if err != nil {
			return nil, err
		}
		optimizer, err := opt.ByName(mf.Optimizer, mf.LearningRate)
		if err != nil {
			return nil, err
		}
		s.Compile(optimizer, lossFn)
	}
	return s, nil
}
