package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/FlavioCFOliveira/fraudrnn/internal/config"
	"github.com/FlavioCFOliveira/fraudrnn/internal/fraud"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a fraud classifier and save it to the model directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, config.DefaultConfig())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		_, err = fraud.Train(ctx, cfg, cmd.OutOrStdout())
		return err
	},
}

func init() {
	def := config.DefaultConfig()
	addModelFlags(trainCmd, config.DefaultTrainBatchSize, "training")
	trainCmd.Flags().Int("epochs", def.Epochs, "training epochs")
	trainCmd.Flags().Int("steps-per-epoch", def.StepsPerEpoch, "batches drawn per epoch")
	trainCmd.Flags().Float64("learning-rate", def.LearningRate, "Adam learning rate")
	trainCmd.Flags().Int("patience", def.Patience, "stop after this many epochs without loss improvement (0 = never)")
	trainCmd.Flags().Float64("clip-norm", def.ClipNorm, "gradient norm limit per recurrent layer (0 = off)")
	trainCmd.Flags().Int("log-every", def.LogEvery, "log progress every N batches")
	rootCmd.AddCommand(trainCmd)
}
