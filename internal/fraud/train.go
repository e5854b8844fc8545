package fraud

import (
	"context"
	"io"
	"log"

	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/fraudrnn/internal/config"
	"github.com/FlavioCFOliveira/fraudrnn/internal/data"
	"github.com/FlavioCFOliveira/fraudrnn/internal/net"
	"github.com/FlavioCFOliveira/fraudrnn/internal/runstore"
)

// TrainResult describes a finished training run.
type TrainResult struct {
	Run       *runstore.TrainingRun
	History   *net.History
	ModelPath string
}

// Train fits a new model on cfg.TrainPath() and saves it to cfg.ModelPath().
// The model summary is written to out. If ctx is cancelled the weights
// trained so far are still saved and the run is recorded as cancelled.
func Train(ctx context.Context, cfg *config.Config, out io.Writer) (*TrainResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	gen, err := data.PrepareTrainingData(ctx, data.Options{
		Path:      cfg.TrainPath(),
		BatchSize: cfg.BatchSize,
		SeqLength: cfg.SeqLength,
		Features:  cfg.Features,
		Seed:      cfg.Seed,
	})
	if err != nil {
		return nil, errors.Wrap(err, "prepare training data")
	}
	defer gen.Close()
	log.Printf("training data: path=%s windows=%d batch_size=%d seq_length=%d", cfg.TrainPath(), gen.Windows(), cfg.BatchSize, cfg.SeqLength)

	model, err := BuildModel(cfg)
	if err != nil {
		return nil, err
	}
	model.Summary(out)

	if err := config.EnsureDirs(cfg); err != nil {
		return nil, err
	}
	store := runstore.NewRunStoreAt(cfg.RunsDir())
	run := runstore.NewRun(cfg)
	if err := store.Save(run); err != nil {
		return nil, err
	}
	log.Printf("training started: run=%s rnn=%s epochs=%d steps_per_epoch=%d", run.ID, cfg.RNNType, cfg.Epochs, cfg.StepsPerEpoch)

	callbacks := []net.Callback{
		&net.ProgressLogger{Interval: cfg.LogEvery},
		net.NewCSVLogger(cfg.HistoryPath(), false),
		net.NewModelCheckpoint(cfg.CheckpointPath()),
	}
	if cfg.Patience > 0 {
		callbacks = append(callbacks, net.NewEarlyStopping(cfg.Patience, 0))
	}

	history, fitErr := model.Fit(ctx, gen, net.FitOptions{
		Epochs:        cfg.Epochs,
		StepsPerEpoch: cfg.StepsPerEpoch,
		Callbacks:     callbacks,
	})

	status := runstore.StatusDone
	switch {
	case fitErr != nil && ctx.Err() != nil:
		status = runstore.StatusCancelled
		log.Printf("training interrupted: run=%s err=%v", run.ID, fitErr)
		fitErr = nil
	case fitErr != nil:
		run.Finish(runstore.StatusFailed, fitErr)
		if err := store.Save(run); err != nil {
			log.Printf("record run failed: run=%s err=%v", run.ID, err)
		}
		return nil, errors.Wrap(fitErr, "fit")
	case history.Stopped:
		status = runstore.StatusStopped
	}

	if err := model.Save(cfg.ModelPath()); err != nil {
		run.Finish(runstore.StatusFailed, err)
		if serr := store.Save(run); serr != nil {
			log.Printf("record run failed: run=%s err=%v", run.ID, serr)
		}
		return nil, err
	}
	log.Printf("model saved: path=%s", cfg.ModelPath())

	if history != nil {
		run.Metrics.Epochs = len(history.Epochs)
		if last, ok := history.Last(); ok {
			run.Metrics.Loss = last.Loss
			run.Metrics.Accuracy = last.Accuracy()
			run.Metrics.TP, run.Metrics.FP = last.TP, last.FP
			run.Metrics.FN, run.Metrics.TN = last.FN, last.TN
		}
	}
	run.Metrics.Params = model.ParamCount()
	run.Finish(status, nil)
	if err := store.Save(run); err != nil {
		return nil, err
	}
	log.Printf("training finished: run=%s status=%s epochs=%d duration=%s", run.ID, run.Status, run.Metrics.Epochs, run.Metrics.Duration)

	return &TrainResult{Run: run, History: history, ModelPath: cfg.ModelPath()}, fitErr
}
