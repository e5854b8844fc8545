package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/FlavioCFOliveira/fraudrnn/internal/config"
	"github.com/FlavioCFOliveira/fraudrnn/internal/fraud"
)

var inferCmd = &cobra.Command{
	Use:   "infer",
	Short: "Score the test set with a saved model and print its accuracy",
	RunE: func(cmd *cobra.Command, args []string) error {
		base := config.DefaultConfig()
		base.BatchSize = config.DefaultInferBatchSize
		cfg, err := loadConfig(cmd, base)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		_, err = fraud.Infer(ctx, cfg, cmd.OutOrStdout())
		return err
	},
}

func init() {
	addModelFlags(inferCmd, config.DefaultInferBatchSize, "inference")
	rootCmd.AddCommand(inferCmd)
}
