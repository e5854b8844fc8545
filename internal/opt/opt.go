// Package opt provides optimization algorithms.
package opt

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Optimizer updates network parameters based on gradients.
type Optimizer interface {
	// Step applies one update to every parameter group in place.
	// params[i] and grads[i] must describe the same group on every call.
	Step(params, grads [][]float64)

	// LearningRate returns the current learning rate.
	LearningRate() float64

	// SetLearningRate changes the learning rate for subsequent steps.
	SetLearningRate(lr float64)
}

// SGD (Stochastic Gradient Descent) optimizer.
type SGD struct {
	LR float64
}

// Step computes params -= lr * grads for every group.
func (s *SGD) Step(params, grads [][]float64) {
	for i := range params {
		floats.AddScaled(params[i], -s.LR, grads[i])
	}
}

func (s *SGD) LearningRate() float64      { return s.LR }
func (s *SGD) SetLearningRate(lr float64) { s.LR = lr }

// Adam optimizer with bias-corrected first and second moment estimates.
type Adam struct {
	LR      float64
	Beta1   float64 // Exponential decay rate for first moment
	Beta2   float64 // Exponential decay rate for second moment
	Epsilon float64 // Small constant for numerical stability

	t int
	m [][]float64
	v [][]float64
}

// NewAdam creates a new Adam optimizer with default decay rates.
func NewAdam(learningRate float64) *Adam {
	return &Adam{
		LR:      learningRate,
		Beta1:   0.9,
		Beta2:   0.999,
		Epsilon: 1e-7,
	}
}

// Step applies one Adam update. Moment buffers are allocated on the first call.
func (a *Adam) Step(params, grads [][]float64) {
	if a.m == nil {
		a.m = make([][]float64, len(params))
		a.v = make([][]float64, len(params))
		for i, p := range params {
			a.m[i] = make([]float64, len(p))
			a.v[i] = make([]float64, len(p))
		}
	}
	if len(params) != len(a.m) {
		panic(fmt.Sprintf("Adam: got %d parameter groups, initialized with %d", len(params), len(a.m)))
	}

	a.t++
	correction1 := 1 - math.Pow(a.Beta1, float64(a.t))
	correction2 := 1 - math.Pow(a.Beta2, float64(a.t))
	stepSize := a.LR * math.Sqrt(correction2) / correction1

	for i, p := range params {
		g := grads[i]
		m := a.m[i]
		v := a.v[i]
		for j := range p {
			m[j] = a.Beta1*m[j] + (1-a.Beta1)*g[j]
			v[j] = a.Beta2*v[j] + (1-a.Beta2)*g[j]*g[j]
			p[j] -= stepSize * m[j] / (math.Sqrt(v[j]) + a.Epsilon)
		}
	}
}

func (a *Adam) LearningRate() float64      { return a.LR }
func (a *Adam) SetLearningRate(lr float64) { a.LR = lr }

// Steps returns the number of updates applied so far.
func (a *Adam) Steps() int {
	return a.t
}

// Name returns the serialized name of an optimizer.
func Name(o Optimizer) string {
	switch o.(type) {
	case *Adam:
		return "adam"
	case *SGD:
		return "sgd"
	default:
		return fmt.Sprintf("%T", o)
	}
}

// ByName creates a fresh optimizer from its serialized name.
func ByName(name string, lr float64) (Optimizer, error) {
	switch name {
	case "adam":
		return NewAdam(lr), nil
	case "sgd":
		return &SGD{LR: lr}, nil
	}
	return nil, fmt.Errorf("unknown optimizer %q", name)
}

// ClipByNorm rescales grads in place so their combined L2 norm is at most maxNorm.
// It returns the norm before clipping. maxNorm <= 0 disables clipping.
func ClipByNorm(grads [][]float64, maxNorm float64) float64 {
	var sq float64
	for _, g := range grads {
		n := floats.Norm(g, 2)
		sq += n * n
	}
	norm := math.Sqrt(sq)
	if maxNorm > 0 && norm > maxNorm {
		scale := maxNorm / norm
		for _, g := range grads {
			floats.Scale(scale, g)
		}
	}
	return norm
}
