// Package metrics computes binary classification metrics for the fraud model.
package metrics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Threshold separates the positive (fraud) class from the negative class.
const Threshold = 0.5

// Confusion counts binary predictions against labels.
type Confusion struct {
	TP, FP, FN, TN int
}

// Add records one prediction. p is a probability and label is 0 or 1.
func (c *Confusion) Add(p, label float64) {
	predicted := math.RoundToEven(p) >= 1
	actual := label >= Threshold
	switch {
	case predicted && actual:
		c.TP++
	case predicted && !actual:
		c.FP++
	case !predicted && actual:
		c.FN++
	default:
		c.TN++
	}
}

// AddAll records a batch of predictions.
func (c *Confusion) AddAll(preds, labels []float64) {
	for i := range preds {
		c.Add(preds[i], labels[i])
	}
}

// Merge adds the counts of o.
func (c *Confusion) Merge(o Confusion) {
	c.TP += o.TP
	c.FP += o.FP
	c.FN += o.FN
	c.TN += o.TN
}

// Total returns the number of recorded predictions.
func (c Confusion) Total() int {
	return c.TP + c.FP + c.FN + c.TN
}

// Accuracy returns (TP+TN)/total, or 0 when empty.
func (c Confusion) Accuracy() float64 {
	if c.Total() == 0 {
		return 0
	}
	return float64(c.TP+c.TN) / float64(c.Total())
}

// Precision returns TP/(TP+FP), or 0 when nothing was predicted positive.
func (c Confusion) Precision() float64 {
	if c.TP+c.FP == 0 {
		return 0
	}
	return float64(c.TP) / float64(c.TP+c.FP)
}

// Recall returns TP/(TP+FN), or 0 when there are no positives.
func (c Confusion) Recall() float64 {
	if c.TP+c.FN == 0 {
		return 0
	}
	return float64(c.TP) / float64(c.TP+c.FN)
}

// F1 returns the harmonic mean of precision and recall.
func (c Confusion) F1() float64 {
	p, r := c.Precision(), c.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

func (c Confusion) String() string {
	return fmt.Sprintf("tp=%d fp=%d fn=%d tn=%d", c.TP, c.FP, c.FN, c.TN)
}

// Accuracy returns mean(round(p) == label) over all predictions. Rounding is
// half-to-even, so p = 0.5 counts as the negative class.
// It returns NaN for empty input.
func Accuracy(preds, labels []float64) float64 {
	if len(preds) == 0 {
		return math.NaN()
	}
	correct := make([]float64, len(preds))
	for i, p := range preds {
		if math.RoundToEven(p) == labels[i] {
			correct[i] = 1
		}
	}
	return stat.Mean(correct, nil)
}

// Logs are the metrics reported at the end of a batch or epoch.
type Logs struct {
	Loss float64
	Confusion
}

func (l Logs) String() string {
	return fmt.Sprintf("loss=%.4f accuracy=%.4f %s", l.Loss, l.Accuracy(), l.Confusion)
}

// Running accumulates batch losses and predictions over an epoch.
type Running struct {
	losses  []float64
	weights []float64
	conf    Confusion
}

// Record adds one batch.
func (r *Running) Record(loss float64, preds, labels []float64) {
	r.losses = append(r.losses, loss)
	r.weights = append(r.weights, float64(len(preds)))
	r.conf.AddAll(preds, labels)
}

// Logs returns the sample-weighted mean loss and the accumulated confusion counts.
func (r *Running) Logs() Logs {
	l := Logs{Confusion: r.conf}
	if len(r.losses) > 0 {
		l.Loss = stat.Mean(r.losses, r.weights)
	}
	return l
}

// Reset clears the accumulator.
func (r *Running) Reset() {
	r.losses = r.losses[:0]
	r.weights = r.weights[:0]
	r.conf = Confusion{}
}

// Add records the result of one batch given as Logs, weighted by its sample count.
func (r *Running) Add(batch Logs) {
	r.losses = append(r.losses, batch.Loss)
	r.weights = append(r.weights, float64(batch.Total()))
	r.conf.Merge(batch.Confusion)
}
