package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/centernet/internal/config"
	"github.com/MeKo-Tech/centernet/internal/deconv"
	"github.com/MeKo-Tech/centernet/internal/train"
	"github.com/spf13/cobra"
)

// trainCmd wires the model into the registered trainer/evaluator backend.
var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the detector",
	Long: `Build the CenterNet model from configuration and run the registered
trainer backend against the configured dataset.

Examples:
  centernet train
  centernet train --resume
  centernet train --eval-only`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		if cmd.Flags().Changed("resume") {
			cfg.Train.Resume, _ = cmd.Flags().GetBool("resume")
		}
		evalOnly, _ := cmd.Flags().GetBool("eval-only")

		head, err := buildHead(cfg)
		if err != nil {
			return err
		}

		metrics := train.NewMetrics()
		evaluate, err := buildEvaluation(cfg)
		if err != nil {
			if !errors.Is(err, train.ErrNoEvaluator) {
				return err
			}
			slog.Warn("continuing without evaluation", "dataset", cfg.Train.Dataset, "err", err)
		}

		if evalOnly {
			if evaluate == nil {
				return fmt.Errorf("eval-only requested but no evaluator available: %w", err)
			}
			results, err := evaluate()
			if err != nil {
				return err
			}
			for name, value := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %.4f\n", name, value)
			}
			return nil
		}

		slog.Info("starting training",
			"dataset", cfg.Train.Dataset,
			"channels", cfg.Model.DeconvChannel,
			"modulated", cfg.Model.ModulateDeform)
		return train.Run(cfg, head, evaluate, metrics)
	},
}

// buildHead constructs the deconv upsampling head from configuration.
func buildHead(cfg *config.Config) (*deconv.CenternetDeconv, error) {
	build, err := deconv.Backend()
	if err != nil {
		return nil, err
	}
	return deconv.NewCenternetDeconv(cfg.Model.DeconvChannel, cfg.Model.DeconvKernel,
		cfg.Model.ModulateDeform, build)
}

// buildEvaluation resolves the dataset's evaluator and wraps it as a closure
// the trainer's eval hook can call.
func buildEvaluation(cfg *config.Config) (func() (train.Results, error), error) {
	builder := train.NewBuilder(train.DefaultCatalog())
	evaluator, err := builder.Build(cfg.Train.Dataset, cfg.Train.OutputDir)
	if err != nil {
		return nil, err
	}
	return func() (train.Results, error) {
		evaluator.Reset()
		return evaluator.Evaluate()
	}, nil
}

func init() {
	trainCmd.Flags().Bool("resume", false, "attempt to resume from the checkpoint directory")
	trainCmd.Flags().Bool("eval-only", false, "perform evaluation only")
	rootCmd.AddCommand(trainCmd)
}
