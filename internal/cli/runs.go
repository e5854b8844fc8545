package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/FlavioCFOliveira/fraudrnn/internal/config"
	"github.com/FlavioCFOliveira/fraudrnn/internal/runstore"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded training runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openRunStore(cmd)
		if err != nil {
			return err
		}
		runs, err := store.List()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(out, "No training runs recorded.")
			return nil
		}
		fmt.Fprintf(out, "%-36s  %-4s  %-9s  %6s  %8s  %8s  %s\n", "ID", "RNN", "STATUS", "EPOCHS", "LOSS", "ACCURACY", "CREATED")
		for _, r := range runs {
			fmt.Fprintf(out, "%-36s  %-4s  %-9s  %6d  %8.4f  %8.4f  %s\n",
				r.ID, r.RNNType, r.Status, r.Metrics.Epochs, r.Metrics.Loss, r.Metrics.Accuracy,
				r.CreatedAt.Local().Format(time.DateTime))
		}
		return nil
	},
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a training run record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openRunStore(cmd)
		if err != nil {
			return err
		}
		if err := store.Delete(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
		return nil
	},
}

func openRunStore(cmd *cobra.Command) (*runstore.RunStore, error) {
	cfg, err := loadConfig(cmd, config.DefaultConfig())
	if err != nil {
		return nil, err
	}
	return runstore.NewRunStoreAt(cfg.RunsDir()), nil
}

func init() {
	runsCmd.AddCommand(runsDeleteCmd)
	rootCmd.AddCommand(runsCmd)
}
