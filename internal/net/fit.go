package net

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/fraudrnn/internal/data"
	"github.com/FlavioCFOliveira/fraudrnn/internal/metrics"
)

// FitOptions controls a training run.
type FitOptions struct {
	Epochs int
	// StepsPerEpoch is the number of batches drawn from the source per epoch.
	StepsPerEpoch int
	Callbacks     []Callback
}

// History holds the metrics of every completed epoch.
type History struct {
	Epochs []metrics.Logs
	// Stopped reports whether a callback ended training before the last epoch.
	Stopped bool
}

// Last returns the metrics of the last completed epoch.
func (h *History) Last() (metrics.Logs, bool) {
	if len(h.Epochs) == 0 {
		return metrics.Logs{}, false
	}
	return h.Epochs[len(h.Epochs)-1], true
}

// Fit trains the model for o.Epochs epochs of o.StepsPerEpoch batches each.
// A finite source that runs out ends the epoch early, and an epoch that draws
// no batch at all ends training without being recorded. When ctx is cancelled
// Fit returns the history so far together with ctx's error; the weights keep
// every completed step.
func (s *Sequential) Fit(ctx context.Context, src data.Source, o FitOptions) (*History, error) {
	if o.Epochs <= 0 {
		return nil, errors.Errorf("epochs must be > 0 (got %d)", o.Epochs)
	}
	if o.StepsPerEpoch <= 0 {
		return nil, errors.Errorf("steps per epoch must be > 0 (got %d)", o.StepsPerEpoch)
	}

	history := &History{}
	for _, c := range o.Callbacks {
		c.OnTrainBegin(s)
	}
	defer func() {
		for _, c := range o.Callbacks {
			c.OnTrainEnd(s)
		}
	}()

	var running metrics.Running
	for epoch := 1; epoch <= o.Epochs; epoch++ {
		for _, c := range o.Callbacks {
			c.OnEpochBegin(epoch, s)
		}

		running.Reset()
		steps := 0
		for ; steps < o.StepsPerEpoch; steps++ {
			b, err := src.Next(ctx)
			if err == io.EOF {
				break
			}
			if err != nil {
				return history, err
			}

			for _, c := range o.Callbacks {
				c.OnBatchBegin(steps, s)
			}
			logs, err := s.TrainBatch(ctx, b)
			if err != nil {
				return history, err
			}
			running.Add(logs)
			for _, c := range o.Callbacks {
				c.OnBatchEnd(steps, logs, s)
			}
		}
		if steps == 0 {
			return history, nil
		}

		logs := running.Logs()
		history.Epochs = append(history.Epochs, logs)
		for _, c := range o.Callbacks {
			c.OnEpochEnd(epoch, logs, s)
		}

		for _, c := range o.Callbacks {
			if st, ok := c.(Stopper); ok && st.ShouldStop() {
				history.Stopped = true
				return history, nil
			}
		}
	}
	return history, nil
}
