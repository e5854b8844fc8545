package cli

import (
	"github.com/spf13/cobra"

	"github.com/FlavioCFOliveira/fraudrnn/internal/config"
	"github.com/FlavioCFOliveira/fraudrnn/internal/data"
	"github.com/FlavioCFOliveira/fraudrnn/internal/fraud"
)

var genDataCmd = &cobra.Command{
	Use:   "gen-data",
	Short: "Write synthetic train.csv and test.csv into the data directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, config.DefaultConfig())
		if err != nil {
			return err
		}

		opts := data.DefaultSynthOptions()
		opts.Seed = uint64(cfg.Seed)
		opts.Cards, _ = cmd.Flags().GetInt("cards")
		opts.MinTx, _ = cmd.Flags().GetInt("min-tx")
		opts.MaxTx, _ = cmd.Flags().GetInt("max-tx")
		opts.FraudRate, _ = cmd.Flags().GetFloat64("fraud-rate")
		testCards, _ := cmd.Flags().GetInt("test-cards")

		return fraud.GenerateData(cfg, opts, testCards)
	},
}

func init() {
	def := data.DefaultSynthOptions()
	genDataCmd.Flags().Int("cards", def.Cards, "cards in the training file")
	genDataCmd.Flags().Int("test-cards", def.Cards/5, "cards in the test file")
	genDataCmd.Flags().Int("min-tx", def.MinTx, "minimum transactions per card")
	genDataCmd.Flags().Int("max-tx", def.MaxTx, "maximum transactions per card")
	genDataCmd.Flags().Float64("fraud-rate", def.FraudRate, "share of cards that get compromised")
	rootCmd.AddCommand(genDataCmd)
}
