package layer

import (
	"github.com/FlavioCFOliveira/fraudrnn/internal/activations"
)

type gruStep struct {
	x, hPrev []float64
	z, r, n  []float64
	rh, h    []float64
}

// GRU implements a Gated Recurrent Unit layer.
// GRUs are similar to LSTMs but with 2 gates instead of 4 (update and reset gates).
//
//	z  = sigmoid(Wz x + Uz h + bz)
//	r  = sigmoid(Wr x + Ur h + br)
//	n  = tanh(Wn x + Un (r * h) + bn)
//	h' = z * h + (1 - z) * n
//
// Parameters are stored contiguously as
// [inputWeights (3u x in) | recurrentWeights (3u x u) | biases (3u)]
// with blocks in the order update, reset, candidate.
type GRU struct {
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

	steps []*gruStep
	n     int

	h []float64

	preActBuf []float64
	dPreBuf   []float64
	dRHBuf    []float64
	dxBuf     []float64
	dhNext    []float64
	dhBuf     []float64
}

// NewGRU creates a GRU layer with Glorot-uniform input weights, orthogonal
// recurrent weights and zero biases. A nil rng seeds initialization from the layer shape.
func NewGRU(inSize, units int, rng *RNG) *GRU {
	g := newGRUShell(inSize, units, make([]float64, GRUParamCount(inSize, units)))
	rng = sizeSeeded(rng, inSize, units, 242)

	glorotUniform(g.inputWeights, inSize, 3*units, rng)
	orthogonal(g.recurrentWeights, 3*units, units, rng)
	return g
}

// GRUParamCount returns the number of parameters of a GRU layer.
func GRUParamCount(inSize, units int) int { return 3 * (units*inSize + units*units + units) }

// RestoreGRU builds a GRU around saved parameters without initializing
// weights. params becomes the layer's storage.
func RestoreGRU(inSize, units int, params []float64) (*GRU, error) {
	if err := checkRestore(inSize, units, len(params), GRUParamCount); err != nil {
		return nil, err
	}
	return newGRUShell(inSize, units, params), nil
}

func newGRUShell(inSize, units int, params []float64) *GRU {
	nIn := 3 * units * inSize
	nRec := 3 * units * units
	grads := make([]float64, len(params))
	return &GRU{
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
		preActBuf:        make([]float64, 3*units),
		dPreBuf:          make([]float64, 3*units),
		dRHBuf:           make([]float64, units),
		dxBuf:            make([]float64, inSize),
		dhNext:           make([]float64, units),
		dhBuf:            make([]float64, units),
	}
}

// Reset resets the GRU state for a new sequence.
func (g *GRU) Reset() {
	g.n = 0
	zero(g.h)
	zero(g.dhNext)
}

func (g *GRU) nextStep() *gruStep {
	if g.n == len(g.steps) {
		u := g.units
		buf := make([]float64, g.inSize+6*u)
		s := &gruStep{x: buf[:g.inSize]}
		rest := buf[g.inSize:]
		for _, dst := range []*[]float64{&s.hPrev, &s.z, &s.r, &s.n, &s.rh, &s.h} {
			*dst = rest[:u:u]
			rest = rest[u:]
		}
		g.steps = append(g.steps, s)
	}
	s := g.steps[g.n]
	g.n++
	return s
}

// Forward performs a forward pass for one time step and returns the new hidden state.
func (g *GRU) Forward(x []float64) []float64 {
	u := g.units
	s := g.nextStep()
	copy(s.x, x)
	copy(s.hPrev, g.h)

	pre := g.preActBuf
	copy(pre, g.biases)
	matVec(pre, g.inputWeights, s.x)
	// Recurrent contribution for update and reset gates only.
	matVec(pre[:2*u], g.recurrentWeights[:2*u*u], s.hPrev)

	for k := 0; k < u; k++ {
		s.z[k] = g.gateAct.Activate(pre[k])
		s.r[k] = g.gateAct.Activate(pre[u+k])
		s.rh[k] = s.r[k] * s.hPrev[k]
	}

	candidate := pre[2*u:]
	matVec(candidate, g.recurrentWeights[2*u*u:], s.rh)
	for k := 0; k < u; k++ {
		s.n[k] = g.cellAct.Activate(candidate[k])
		s.h[k] = s.z[k]*s.hPrev[k] + (1-s.z[k])*s.n[k]
	}

	copy(g.h, s.h)
	return s.h
}

// Backward consumes dL/dh for the most recent unprocessed step and returns dL/dx.
// Calls must mirror the Forward calls in reverse order.
func (g *GRU) Backward(grad []float64) []float64 {
	if g.n == 0 {
		zero(g.dxBuf)
		return g.dxBuf
	}
	g.n--
	s := g.steps[g.n]
	u := g.units

	dh := g.dhBuf
	dPre := g.dPreBuf
	for k := 0; k < u; k++ {
		dh[k] = grad[k] + g.dhNext[k]
		dPre[k] = dh[k] * (s.hPrev[k] - s.n[k]) * s.z[k] * (1 - s.z[k])
		dPre[2*u+k] = dh[k] * (1 - s.z[k]) * (1 - s.n[k]*s.n[k])
	}

	// Candidate path: d(r*h) = Un^T dn
	dCand := dPre[2*u:]
	zero(g.dRHBuf)
	matTVec(g.dRHBuf, g.recurrentWeights[2*u*u:], dCand)
	for k := 0; k < u; k++ {
		dPre[u+k] = g.dRHBuf[k] * s.hPrev[k] * s.r[k] * (1 - s.r[k])
	}

	outer(g.gradInput, dPre, s.x)
	outer(g.gradRecurrent[:2*u*u], dPre[:2*u], s.hPrev)
	outer(g.gradRecurrent[2*u*u:], dCand, s.rh)
	for k, d := range dPre {
		g.gradBiases[k] += d
	}

	zero(g.dxBuf)
	matTVec(g.dxBuf, g.inputWeights, dPre)

	for k := 0; k < u; k++ {
		g.dhNext[k] = dh[k]*s.z[k] + g.dRHBuf[k]*s.r[k]
	}
	matTVec(g.dhNext, g.recurrentWeights[:2*u*u], dPre[:2*u])

	return g.dxBuf
}

func (g *GRU) Params() []float64    { return g.params }
func (g *GRU) Gradients() []float64 { return g.grads }
func (g *GRU) InSize() int          { return g.inSize }
func (g *GRU) OutSize() int         { return g.units }
func (g *GRU) Units() int           { return g.units }

// ZeroGrad clears the gradient accumulator.
func (g *GRU) ZeroGrad() {
	zero(g.grads)
}

// Replica returns a GRU sharing this layer's weights.
func (g *GRU) Replica() Layer {
	return newGRUShell(g.inSize, g.units, g.params)
}
