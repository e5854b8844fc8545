package layer

import (
	"math"
	"testing"
)

// sequenceLoss runs seq through l and returns sum_t dot(w[t], h_t).
func sequenceLoss(l Layer, seq, w [][]float64) float64 {
	if r, ok := l.(Recurrent); ok {
		r.Reset()
	}
	var loss float64
	for t, x := range seq {
		h := l.Forward(x)
		for k := range h {
			loss += w[t][k] * h[k]
		}
	}
	return loss
}

// analyticGrads returns parameter gradients and per-step input gradients of sequenceLoss.
func analyticGrads(l Layer, seq, w [][]float64) ([]float64, [][]float64) {
	l.ZeroGrad()
	sequenceLoss(l, seq, w)
	dx := make([][]float64, len(seq))
	for t := len(seq) - 1; t >= 0; t-- {
		dx[t] = append([]float64(nil), l.Backward(w[t])...)
	}
	return append([]float64(nil), l.Gradients()...), dx
}

func testSequence(rng *RNG, steps, in, out int) ([][]float64, [][]float64) {
	seq := make([][]float64, steps)
	w := make([][]float64, steps)
	for t := range seq {
		seq[t] = make([]float64, in)
		for i := range seq[t] {
			seq[t][i] = rng.Uniform(-1, 1)
		}
		w[t] = make([]float64, out)
		for k := range w[t] {
			w[t][k] = rng.Uniform(-1, 1)
		}
	}
	return seq, w
}

// checkGradients compares backprop against central differences on every
// parameter and every input element.
func checkGradients(t *testing.T, l Layer, steps int) {
	t.Helper()
	const h = 1e-6
	const tol = 1e-5

	seq, w := testSequence(NewRNG(7), steps, l.InSize(), l.OutSize())
	grads, dx := analyticGrads(l, seq, w)

	params := l.Params()
	for i := range params {
		orig := params[i]
		params[i] = orig + h
		plus := sequenceLoss(l, seq, w)
		params[i] = orig - h
		minus := sequenceLoss(l, seq, w)
		params[i] = orig

		numeric := (plus - minus) / (2 * h)
		if math.Abs(numeric-grads[i]) > tol*math.Max(1, math.Abs(numeric)) {
			t.Fatalf("param %d: backprop %v, finite difference %v", i, grads[i], numeric)
		}
	}

	for s := range seq {
		for i := range seq[s] {
			orig := seq[s][i]
			seq[s][i] = orig + h
			plus := sequenceLoss(l, seq, w)
			seq[s][i] = orig - h
			minus := sequenceLoss(l, seq, w)
			seq[s][i] = orig

			numeric := (plus - minus) / (2 * h)
			if math.Abs(numeric-dx[s][i]) > tol*math.Max(1, math.Abs(numeric)) {
				t.Fatalf("input step %d elem %d: backprop %v, finite difference %v", s, i, dx[s][i], numeric)
			}
		}
	}
}
