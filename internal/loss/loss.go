// Package loss provides the loss functions used to train the classifier.
package loss

import (
	"fmt"
	"math"
)

// BackwardInPlacer is an optional interface for loss functions that support
// writing the gradient into a caller-owned buffer.
type BackwardInPlacer interface {
	BackwardInPlace(yPred, yTrue, grad []float64)
}

// Loss is a loss function with derivative.
type Loss interface {
	// Forward returns the loss averaged over the output vector.
	Forward(yPred, yTrue []float64) float64

	// Backward returns dL/dyPred.
	Backward(yPred, yTrue []float64) []float64
}

// Epsilon bounds predictions away from 0 and 1 before taking logarithms.
const Epsilon = 1e-7

// BCE (Binary Cross Entropy) loss for sigmoid outputs.
// Predictions are clipped to [Epsilon, 1-Epsilon].
type BCE struct{}

func clip(p float64) float64 {
	if p < Epsilon {
		return Epsilon
	}
	if p > 1-Epsilon {
		return 1 - Epsilon
	}
	return p
}

// Forward computes -(1/n) * sum(y*log(p) + (1-y)*log(1-p))
func (b BCE) Forward(yPred, yTrue []float64) float64 {
	n := len(yPred)
	if n != len(yTrue) {
		panic("BCE: prediction and target must have same length")
	}

	var sum float64
	for i := 0; i < n; i++ {
		p := clip(yPred[i])
		sum += yTrue[i]*math.Log(p) + (1-yTrue[i])*math.Log(1-p)
	}
	return -sum / float64(n)
}

// Backward computes (p - y) / (p * (1-p)) / n
func (b BCE) Backward(yPred, yTrue []float64) []float64 {
	grad := make([]float64, len(yPred))
	b.BackwardInPlace(yPred, yTrue, grad)
	return grad
}

// BackwardInPlace computes the gradient and stores it in grad.
func (b BCE) BackwardInPlace(yPred, yTrue, grad []float64) {
	n := len(yPred)
	if n != len(yTrue) || n != len(grad) {
		panic("BCE: slices must have same length")
	}

	for i := 0; i < n; i++ {
		p := clip(yPred[i])
		grad[i] = (p - yTrue[i]) / (p * (1 - p) * float64(n))
	}
}

// MSE (Mean Squared Error) loss.
type MSE struct{}

// Forward computes (1/n) * sum((y_pred - y_true)^2)
func (m MSE) Forward(yPred, yTrue []float64) float64 {
	n := len(yPred)
	if n != len(yTrue) {
		panic("MSE: prediction and target must have same length")
	}

	var sum float64
	for i := 0; i < n; i++ {
		diff := yPred[i] - yTrue[i]
		sum += diff * diff
	}
	return sum / float64(n)
}

// Backward computes (2/n) * (y_pred - y_true)
func (m MSE) Backward(yPred, yTrue []float64) []float64 {
	grad := make([]float64, len(yPred))
	m.BackwardInPlace(yPred, yTrue, grad)
	return grad
}

// BackwardInPlace computes the gradient and stores it in grad.
func (m MSE) BackwardInPlace(yPred, yTrue, grad []float64) {
	n := float64(len(yPred))
	for i := range yPred {
		grad[i] = 2 * (yPred[i] - yTrue[i]) / n
	}
}

// Name returns the serialized name of a loss.
func Name(l Loss) string {
	switch l.(type) {
	case BCE:
		return "binary_crossentropy"
	case MSE:
		return "mse"
	default:
		return fmt.Sprintf("%T", l)
	}
}

// ByName resolves a loss from its serialized name.
func ByName(name string) (Loss, error) {
	switch name {
	case "binary_crossentropy", "bce":
		return BCE{}, nil
	case "mse":
		return MSE{}, nil
	}
	return nil, fmt.Errorf("unknown loss %q", name)
}
