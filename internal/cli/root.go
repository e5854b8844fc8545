// Package cli implements the fraudrnn command line.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/FlavioCFOliveira/fraudrnn/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "fraudrnn",
	Short: "Recurrent credit-card fraud classifier",
	Long: "fraudrnn trains and evaluates an LSTM or GRU classifier over per-card transaction sequences.\n" +
		"Settings come from defaults, then FRAUDRNN_* environment variables, then flags.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	def := config.DefaultConfig()
	pf := rootCmd.PersistentFlags()
	pf.String("data-dir", def.DataDir, "directory holding train.csv and test.csv")
	pf.String("model-dir", def.ModelDir, "directory for saved models, history and run records")
	pf.Int("features", def.Features, "features per transaction row")
	pf.Int("units", def.Units, "hidden units per recurrent layer")
	pf.Int64("seed", def.Seed, "random seed")
	pf.Int("workers", def.Workers, "parallel batch workers (0 = all CPUs)")
}

// addModelFlags registers the flags shared by train and infer.
func addModelFlags(cmd *cobra.Command, batchSize int, purpose string) {
	def := config.DefaultConfig()
	cmd.Flags().String("rnn-type", def.RNNType, "RNN type used within model: lstm or gru")
	cmd.Flags().Int("batch-size", batchSize, "batch size for "+purpose+" data")
	cmd.Flags().Int("seq-length", def.SeqLength, "sequence length for "+purpose+" data")
}

// loadConfig overlays the environment and any flag set on the command line onto base.
func loadConfig(cmd *cobra.Command, base *config.Config) (*config.Config, error) {
	cfg := base
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	str := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	num := func(name string, dst *int) {
		if flags.Changed(name) {
			*dst, _ = flags.GetInt(name)
		}
	}
	float := func(name string, dst *float64) {
		if flags.Changed(name) {
			*dst, _ = flags.GetFloat64(name)
		}
	}

	str("rnn-type", &cfg.RNNType)
	str("data-dir", &cfg.DataDir)
	str("model-dir", &cfg.ModelDir)
	num("batch-size", &cfg.BatchSize)
	num("seq-length", &cfg.SeqLength)
	num("features", &cfg.Features)
	num("units", &cfg.Units)
	num("workers", &cfg.Workers)
	num("epochs", &cfg.Epochs)
	num("steps-per-epoch", &cfg.StepsPerEpoch)
	num("patience", &cfg.Patience)
	num("log-every", &cfg.LogEvery)
	float("learning-rate", &cfg.LearningRate)
	float("clip-norm", &cfg.ClipNorm)
	if flags.Changed("seed") {
		cfg.Seed, _ = flags.GetInt64("seed")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
