// Package layer provides the dense and recurrent layers of the fraud classifier.
//
// Layers process one time step per Forward call. Recurrent layers keep the
// per-step activations of the current sequence so Backward can run
// backpropagation through time in reverse step order.
package layer

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/FlavioCFOliveira/fraudrnn/internal/activations"
)

// Layer is a neural network layer.
type Layer interface {
	Forward(x []float64) []float64
	Backward(grad []float64) []float64

	// Params returns the live parameter storage. Writes are visible to the layer.
	Params() []float64
	// Gradients returns the live gradient accumulator, laid out like Params.
	Gradients() []float64
	// ZeroGrad clears the gradient accumulator.
	ZeroGrad()

	InSize() int
	OutSize() int

	// Replica returns a layer that shares this layer's parameters but owns its
	// activation caches and gradient accumulator.
	Replica() Layer
}

// Recurrent is a layer that carries state across the steps of a sequence.
type Recurrent interface {
	Layer

	// Reset clears the hidden state and the stored steps of the previous sequence.
	Reset()
	// Units returns the hidden state size.
	Units() int
}

// Dense is a fully connected layer.
// Weights are row-major: weight for output o, input i is at weights[o*in + i].
type Dense struct {
	params  []float64 // weights followed by biases
	grads   []float64
	weights []float64
	biases  []float64
	gradW   []float64
	gradB   []float64

	act     activations.Activation
	inSize  int
	outSize int

	inputBuf  []float64
	preActBuf []float64
	outputBuf []float64
	gradInBuf []float64
	dzBuf     []float64
}

// NewDense creates a dense layer with Glorot-uniform weights and zero biases.
func NewDense(in, out int, act activations.Activation, rng *RNG) *Dense {
	d := newDenseShell(in, out, act, make([]float64, DenseParamCount(in, out)))
	glorotUniform(d.weights, in, out, sizeSeeded(rng, in, out, 42))
	return d
}

// DenseParamCount returns the number of parameters of a dense layer.
func DenseParamCount(in, out int) int { return out*in + out }

// RestoreDense builds a dense layer around saved parameters without
// initializing weights. params becomes the layer's storage.
func RestoreDense(in, out int, act activations.Activation, params []float64) (*Dense, error) {
	if act == nil {
		return nil, fmt.Errorf("dense layer needs an activation")
	}
	if err := checkRestore(in, out, len(params), DenseParamCount); err != nil {
		return nil, err
	}
	return newDenseShell(in, out, act, params), nil
}

func newDenseShell(in, out int, act activations.Activation, params []float64) *Dense {
	grads := make([]float64, len(params))
	return &Dense{
		params:    params,
		grads:     grads,
		weights:   params[:out*in],
		biases:    params[out*in:],
		gradW:     grads[:out*in],
		gradB:     grads[out*in:],
		act:       act,
		inSize:    in,
		outSize:   out,
		inputBuf:  make([]float64, in),
		preActBuf: make([]float64, out),
		outputBuf: make([]float64, out),
		gradInBuf: make([]float64, in),
		dzBuf:     make([]float64, out),
	}
}

// Forward computes act(Wx + b). The returned slice is reused by the next call.
func (d *Dense) Forward(x []float64) []float64 {
	copy(d.inputBuf, x)
	for o := 0; o < d.outSize; o++ {
		z := d.biases[o] + floats.Dot(d.weights[o*d.inSize:(o+1)*d.inSize], d.inputBuf)
		d.preActBuf[o] = z
		d.outputBuf[o] = d.act.Activate(z)
	}
	return d.outputBuf
}

// Backward accumulates weight gradients for the last Forward input and returns dL/dx.
func (d *Dense) Backward(grad []float64) []float64 {
	for i := range d.gradInBuf {
		d.gradInBuf[i] = 0
	}
	for o := 0; o < d.outSize; o++ {
		dz := grad[o] * d.act.Derivative(d.preActBuf[o])
		d.dzBuf[o] = dz
		d.gradB[o] += dz
		row := d.weights[o*d.inSize : (o+1)*d.inSize]
		floats.AddScaled(d.gradW[o*d.inSize:(o+1)*d.inSize], dz, d.inputBuf)
		floats.AddScaled(d.gradInBuf, dz, row)
	}
	return d.gradInBuf
}

func (d *Dense) Params() []float64    { return d.params }
func (d *Dense) Gradients() []float64 { return d.grads }
func (d *Dense) InSize() int          { return d.inSize }
func (d *Dense) OutSize() int         { return d.outSize }

// ZeroGrad clears the gradient accumulator.
func (d *Dense) ZeroGrad() {
	for i := range d.grads {
		d.grads[i] = 0
	}
}

// Replica returns a Dense sharing this layer's weights.
func (d *Dense) Replica() Layer {
	return newDenseShell(d.inSize, d.outSize, d.act, d.params)
}

// Activation returns the activation function used by this layer.
func (d *Dense) Activation() activations.Activation {
	return d.act
}

// SetParams copies params into the layer's storage.
func SetParams(l Layer, params []float64) error {
	dst := l.Params()
	if len(params) != len(dst) {
		return fmt.Errorf("layer expects %d parameters, got %d", len(dst), len(params))
	}
	copy(dst, params)
	return nil
}

// maxDim bounds layer sizes read from saved models.
const maxDim = 1 << 20

func checkRestore(in, out, got int, count func(in, out int) int) error {
	if in <= 0 || out <= 0 || in > maxDim || out > maxDim {
		return fmt.Errorf("invalid layer size (%d, %d)", in, out)
	}
	if want := count(in, out); got != want {
		return fmt.Errorf("layer expects %d parameters, got %d", want, got)
	}
	return nil
}

// outer accumulates grad[r*len(v):(r+1)*len(v)] += delta[r] * v for every row r.
func outer(grad, delta, v []float64) {
	n := len(v)
	for r, d := range delta {
		if d == 0 {
			continue
		}
		floats.AddScaled(grad[r*n:(r+1)*n], d, v)
	}
}

// matVec computes dst[r] += W[r,:] . v for a row-major W with len(v) columns.
func matVec(dst, w, v []float64) {
	n := len(v)
	for r := range dst {
		dst[r] += floats.Dot(w[r*n:(r+1)*n], v)
	}
}

// matTVec computes dst += W^T delta for a row-major W with len(dst) columns.
func matTVec(dst, w, delta []float64) {
	n := len(dst)
	for r, d := range delta {
		if d == 0 {
			continue
		}
		floats.AddScaled(dst, d, w[r*n:(r+1)*n])
	}
}

func zero(s []float64) {
	for i := range s {
		s[i] = 0
	}
}
