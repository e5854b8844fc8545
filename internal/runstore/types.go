// Package runstore records training runs as JSON files under the model directory.
package runstore

import (
	"time"

	"github.com/google/uuid"

	"github.com/FlavioCFOliveira/fraudrnn/internal/config"
)

// RunStatus represents the state of a training run.
type RunStatus string

const (
	StatusTraining  RunStatus = "training"
	StatusDone      RunStatus = "done"
	StatusStopped   RunStatus = "stopped" // ended early by patience
	StatusCancelled RunStatus = "cancelled"
	StatusFailed    RunStatus = "failed"
)

// RunMetrics contains the metrics of the last completed epoch.
type RunMetrics struct {
	Epochs   int     `json:"epochs"`
	Loss     float64 `json:"loss"`
	Accuracy float64 `json:"accuracy"`
	TP       int     `json:"tp"`
	FP       int     `json:"fp"`
	FN       int     `json:"fn"`
	TN       int     `json:"tn"`
	Params   int     `json:"params"`
	Duration string  `json:"duration,omitempty"`
}

// TrainingRun describes one invocation of the train command.
type TrainingRun struct {
	ID          string        `json:"id"`
	RNNType     string        `json:"rnn_type"`
	Status      RunStatus     `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	Config      config.Config `json:"config"`
	Metrics     RunMetrics    `json:"metrics"`
	DatasetPath string        `json:"dataset_path,omitempty"`
	ModelPath   string        `json:"model_path,omitempty"`
	HistoryPath string        `json:"history_path,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// NewRun returns a run in the training state with a fresh ID.
func NewRun(cfg *config.Config) *TrainingRun {
	now := time.Now().UTC()
	return &TrainingRun{
		ID:          uuid.NewString(),
		RNNType:     cfg.RNNType,
		Status:      StatusTraining,
		CreatedAt:   now,
		UpdatedAt:   now,
		Config:      *cfg,
		DatasetPath: cfg.TrainPath(),
		ModelPath:   cfg.ModelPath(),
		HistoryPath: cfg.HistoryPath(),
	}
}

// Finish sets the final status, stamping UpdatedAt and the run duration.
func (r *TrainingRun) Finish(status RunStatus, err error) {
	r.Status = status
	r.UpdatedAt = time.Now().UTC()
	r.Metrics.Duration = r.UpdatedAt.Sub(r.CreatedAt).Round(time.Millisecond).String()
	if err != nil {
		r.Error = err.Error()
	}
}
