package layer

import (
	"math"
	"testing"
)

func TestGRUParamCount(t *testing.T) {
	g := NewGRU(220, 200, nil)
	// 3 * (in*u + u*u + u)
	if got, want := len(g.Params()), 3*(220*200+200*200+200); got != want {
		t.Errorf("params = %d, want %d", got, want)
	}
}

func TestGRUForward(t *testing.T) {
	g := NewGRU(3, 5, nil)

	output := g.Forward([]float64{1.0, 0.5, -0.5})
	if len(output) != 5 {
		t.Fatalf("Output length = %d, expected 5", len(output))
	}
	for i, v := range output {
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) >= 1 {
			t.Errorf("Output[%d] = %v, want finite value in (-1, 1)", i, v)
		}
	}
}

// TestGRUForwardKnownValues checks one step from a zero state.
func TestGRUForwardKnownValues(t *testing.T) {
	g := NewGRU(1, 1, nil)
	// input weights z,r,n | recurrent weights | biases
	if err := SetParams(g, []float64{0, 0, 1, 0, 0, 0, 0, 0, 0}); err != nil {
		t.Fatal(err)
	}

	h := g.Forward([]float64{0.5})

	// z = 0.5, n = tanh(0.5), h = 0.5*0 + 0.5*n
	want := 0.5 * math.Tanh(0.5)
	if math.Abs(h[0]-want) > 1e-12 {
		t.Errorf("h = %v, want %v", h[0], want)
	}
}

func TestGRUGradients(t *testing.T) {
	checkGradients(t, NewGRU(3, 4, NewRNG(13)), 4)
}
