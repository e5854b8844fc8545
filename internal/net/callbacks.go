package net

import (
	"log"
	"math"
	"time"

	"github.com/FlavioCFOliveira/fraudrnn/internal/metrics"
)

// Callback defines the interface for training callbacks.
type Callback interface {
	OnTrainBegin(m *Sequential)
	OnTrainEnd(m *Sequential)
	OnEpochBegin(epoch int, m *Sequential)
	OnEpochEnd(epoch int, logs metrics.Logs, m *Sequential)
	OnBatchBegin(batch int, m *Sequential)
	OnBatchEnd(batch int, logs metrics.Logs, m *Sequential)
}

// Stopper is implemented by callbacks that can end training early.
type Stopper interface {
	ShouldStop() bool
}

// BaseCallback provides default empty implementations for Callback.
type BaseCallback struct{}

func (c BaseCallback) OnTrainBegin(m *Sequential)                             {}
func (c BaseCallback) OnTrainEnd(m *Sequential)                               {}
func (c BaseCallback) OnEpochBegin(epoch int, m *Sequential)                  {}
func (c BaseCallback) OnEpochEnd(epoch int, logs metrics.Logs, m *Sequential) {}
func (c BaseCallback) OnBatchBegin(batch int, m *Sequential)                  {}
func (c BaseCallback) OnBatchEnd(batch int, logs metrics.Logs, m *Sequential) {}

// EarlyStopping stops training when the epoch loss has stopped improving.
type EarlyStopping struct {
	BaseCallback
	Patience  int
	Threshold float64

	bestLoss     float64
	numBadEpochs int
	Stopped      bool
}

func NewEarlyStopping(patience int, threshold float64) *EarlyStopping {
	return &EarlyStopping{
		Patience:  patience,
		Threshold: threshold,
		bestLoss:  math.Inf(1),
	}
}

func (c *EarlyStopping) OnEpochEnd(epoch int, logs metrics.Logs, m *Sequential) {
	if logs.Loss < c.bestLoss-c.Threshold {
		c.bestLoss = logs.Loss
		c.numBadEpochs = 0
	} else {
		c.numBadEpochs++
	}

	if c.Patience > 0 && c.numBadEpochs >= c.Patience {
		log.Printf("early stop: epoch=%d loss=%.6f best=%.6f patience=%d", epoch, logs.Loss, c.bestLoss, c.Patience)
		c.Stopped = true
	}
}

// ShouldStop reports whether patience ran out.
func (c *EarlyStopping) ShouldStop() bool {
	return c.Stopped
}

// ModelCheckpoint saves the model after every epoch if it's the best so far.
type ModelCheckpoint struct {
	BaseCallback
	Filename string

	bestLoss float64
	// Saves counts successful checkpoint writes.
	Saves int
}

func NewModelCheckpoint(filename string) *ModelCheckpoint {
	return &ModelCheckpoint{
		Filename: filename,
		bestLoss: math.Inf(1),
	}
}

func (c *ModelCheckpoint) OnEpochEnd(epoch int, logs metrics.Logs, m *Sequential) {
	if logs.Loss >= c.bestLoss {
		return
	}
	c.bestLoss = logs.Loss
	if err := m.Save(c.Filename); err != nil {
		log.Printf("checkpoint failed: path=%s err=%v", c.Filename, err)
		return
	}
	c.Saves++
	log.Printf("checkpoint saved: epoch=%d loss=%.6f path=%s", epoch, logs.Loss, c.Filename)
}

// ProgressLogger logs training progress every Interval batches and at the end of each epoch.
type ProgressLogger struct {
	BaseCallback
	Interval int

	epochStart time.Time
	samples    int
}

func (c *ProgressLogger) OnEpochBegin(epoch int, m *Sequential) {
	c.epochStart = time.Now()
	c.samples = 0
}

func (c *ProgressLogger) OnBatchEnd(batch int, logs metrics.Logs, m *Sequential) {
	c.samples += logs.Total()
	if c.Interval > 0 && (batch+1)%c.Interval == 0 {
		log.Printf("step=%d loss=%.4f accuracy=%.4f", batch+1, logs.Loss, logs.Accuracy())
	}
}

func (c *ProgressLogger) OnEpochEnd(epoch int, logs metrics.Logs, m *Sequential) {
	elapsed := time.Since(c.epochStart)
	rate := 0.0
	if s := elapsed.Seconds(); s > 0 {
		rate = float64(c.samples) / s
	}
	log.Printf("epoch=%d %s elapsed=%s samples_per_sec=%.1f", epoch, logs, elapsed.Round(time.Millisecond), rate)
}
