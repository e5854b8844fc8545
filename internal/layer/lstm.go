package layer

import (
	"math"

	"github.com/FlavioCFOliveira/fraudrnn/internal/activations"
)

// lstmStep holds the activations of one time step needed for BPTT.
type lstmStep struct {
	x, hPrev, cPrev []float64
	i, f, g, o      []float64
	c, tanhC, h     []float64
}

// LSTM is a Long Short-Term Memory layer.
//
// Parameters are stored contiguously as
// [inputWeights (4u x in) | recurrentWeights (4u x u) | biases (4u)]
// with gate blocks in the order input, forget, cell, output.
type LSTM struct {
	inSize int
	units  int

	params           []float64
	grads            []float64
	inputWeights     []float64
	recurrentWeights []float64
	biases           []float64
	gradInput        []float64
	gradRecurrent    []float64
	gradBiases       []float64

	gateAct activations.Activation
	cellAct activations.Activation

	// Stored steps of the current sequence; only steps[:n] are live.
	steps []*lstmStep
	n     int

	h, c []float64

	preActBuf []float64
	dPreBuf   []float64
	dxBuf     []float64
	dhNext    []float64
	dcNext    []float64
	dhBuf     []float64
	dcBuf     []float64
}

// NewLSTM creates an LSTM layer. Input weights are Glorot-uniform, recurrent
// weights orthogonal, biases zero except the forget gate which starts at 1.
// A nil rng seeds initialization from the layer shape.
func NewLSTM(inSize, units int, rng *RNG) *LSTM {
	l := newLSTMShell(inSize, units, make([]float64, LSTMParamCount(inSize, units)))
	rng = sizeSeeded(rng, inSize, units, 142)

	glorotUniform(l.inputWeights, inSize, 4*units, rng)
	orthogonal(l.recurrentWeights, 4*units, units, rng)
	for i := units; i < 2*units; i++ {
		l.biases[i] = 1
	}
	return l
}

// LSTMParamCount returns the number of parameters of an LSTM layer.
func LSTMParamCount(inSize, units int) int { return 4 * (units*inSize + units*units + units) }

// RestoreLSTM builds an LSTM around saved parameters without initializing
// weights. params becomes the layer's storage.
func RestoreLSTM(inSize, units int, params []float64) (*LSTM, error) {
	if err := checkRestore(inSize, units, len(params), LSTMParamCount); err != nil {
		return nil, err
	}
	return newLSTMShell(inSize, units, params), nil
}

func newLSTMShell(inSize, units int, params []float64) *LSTM {
	nIn := 4 * units * inSize
	nRec := 4 * units * units
	grads := make([]float64, len(params))
	return &LSTM{
		inSize:           inSize,
		units:            units,
		params:           params,
		grads:            grads,
		inputWeights:     params[:nIn],
		recurrentWeights: params[nIn : nIn+nRec],
		biases:           params[nIn+nRec:],
		gradInput:        grads[:nIn],
		gradRecurrent:    grads[nIn : nIn+nRec],
		gradBiases:       grads[nIn+nRec:],
		gateAct:          activations.Sigmoid{},
		cellAct:          activations.Tanh{},
		h:                make([]float64, units),
		c:                make([]float64, units),
		preActBuf:        make([]float64, 4*units),
		dPreBuf:          make([]float64, 4*units),
		dxBuf:            make([]float64, inSize),
		dhNext:           make([]float64, units),
		dcNext:           make([]float64, units),
		dhBuf:            make([]float64, units),
		dcBuf:            make([]float64, units),
	}
}

// Reset resets the LSTM state for a new sequence.
func (l *LSTM) Reset() {
	l.n = 0
	zero(l.h)
	zero(l.c)
	zero(l.dhNext)
	zero(l.dcNext)
}

func (l *LSTM) nextStep() *lstmStep {
	if l.n == len(l.steps) {
		u := l.units
		buf := make([]float64, l.inSize+10*u)
		s := &lstmStep{x: buf[:l.inSize]}
		rest := buf[l.inSize:]
		for _, dst := range []*[]float64{&s.hPrev, &s.cPrev, &s.i, &s.f, &s.g, &s.o, &s.c, &s.tanhC, &s.h} {
			*dst = rest[:u:u]
			rest = rest[u:]
		}
		l.steps = append(l.steps, s)
	}
	s := l.steps[l.n]
	l.n++
	return s
}

// Forward performs a forward pass for one time step and returns the new hidden state.
// The returned slice stays valid until the next Reset.
func (l *LSTM) Forward(x []float64) []float64 {
	u := l.units
	s := l.nextStep()
	copy(s.x, x)
	copy(s.hPrev, l.h)
	copy(s.cPrev, l.c)

	pre := l.preActBuf
	copy(pre, l.biases)
	matVec(pre, l.inputWeights, s.x)
	matVec(pre, l.recurrentWeights, s.hPrev)

	for k := 0; k < u; k++ {
		s.i[k] = l.gateAct.Activate(pre[k])
		s.f[k] = l.gateAct.Activate(pre[u+k])
		s.g[k] = l.cellAct.Activate(pre[2*u+k])
		s.o[k] = l.gateAct.Activate(pre[3*u+k])

		s.c[k] = s.f[k]*s.cPrev[k] + s.i[k]*s.g[k]
		s.tanhC[k] = math.Tanh(s.c[k])
		s.h[k] = s.o[k] * s.tanhC[k]
	}

	copy(l.h, s.h)
	copy(l.c, s.c)
	return s.h
}

// Backward consumes dL/dh for the most recent unprocessed step, accumulates
// parameter gradients and returns dL/dx for that step. Calls must mirror the
// Forward calls in reverse order. Gradient flowing into earlier steps through
// the hidden and cell state is carried internally.
func (l *LSTM) Backward(grad []float64) []float64 {
	if l.n == 0 {
		zero(l.dxBuf)
		return l.dxBuf
	}
	l.n--
	s := l.steps[l.n]
	u := l.units

	dh := l.dhBuf
	dc := l.dcBuf
	dPre := l.dPreBuf
	for k := 0; k < u; k++ {
		dh[k] = grad[k] + l.dhNext[k]
		dc[k] = dh[k]*s.o[k]*(1-s.tanhC[k]*s.tanhC[k]) + l.dcNext[k]

		// Derivatives from gate outputs: sigmoid' = y(1-y), tanh' = 1-y^2.
		dPre[k] = dc[k] * s.g[k] * s.i[k] * (1 - s.i[k])
		dPre[u+k] = dc[k] * s.cPrev[k] * s.f[k] * (1 - s.f[k])
		dPre[2*u+k] = dc[k] * s.i[k] * (1 - s.g[k]*s.g[k])
		dPre[3*u+k] = dh[k] * s.tanhC[k] * s.o[k] * (1 - s.o[k])

		l.dcNext[k] = dc[k] * s.f[k]
	}

	outer(l.gradInput, dPre, s.x)
	outer(l.gradRecurrent, dPre, s.hPrev)
	for k, d := range dPre {
		l.gradBiases[k] += d
	}

	zero(l.dxBuf)
	matTVec(l.dxBuf, l.inputWeights, dPre)
	zero(l.dhNext)
	matTVec(l.dhNext, l.recurrentWeights, dPre)

	return l.dxBuf
}

func (l *LSTM) Params() []float64    { return l.params }
func (l *LSTM) Gradients() []float64 { return l.grads }
func (l *LSTM) InSize() int          { return l.inSize }
func (l *LSTM) OutSize() int         { return l.units }
func (l *LSTM) Units() int           { return l.units }

// ZeroGrad clears the gradient accumulator.
func (l *LSTM) ZeroGrad() {
	zero(l.grads)
}

// Replica returns an LSTM sharing this layer's weights.
func (l *LSTM) Replica() Layer {
	return newLSTMShell(l.inSize, l.units, l.params)
}

// Hidden returns the current hidden state of the LSTM.
func (l *LSTM) Hidden() []float64 {
	return l.h
}
