package train

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/MeKo-Tech/centernet/internal/config"
)

// ErrNoTrainer reports that no trainer backend was linked into the binary.
var ErrNoTrainer = errors.New("train: no trainer backend registered")

// Hook runs at trainer-defined points in the loop.
type Hook interface {
	// AfterStep is invoked after each training step.
	AfterStep(step int) error
	// AfterTrain is invoked once when the loop finishes.
	AfterTrain() error
}

// Trainer is the external training-loop framework.
type Trainer interface {
	// ResumeOrLoad restores model weights, resuming the previous run when
	// resume is set.
	ResumeOrLoad(resume bool) error
	// RegisterHooks appends hooks to the loop.
	RegisterHooks(hooks []Hook)
	// Train runs the loop to completion.
	Train() error
}

// TrainerFactory builds the trainer for a prepared model and configuration.
type TrainerFactory func(cfg *config.Config, model any) (Trainer, error)

var trainerFactory TrainerFactory

// RegisterTrainer installs the process-wide trainer backend, typically from an
// init function in the backend's package.
func RegisterTrainer(f TrainerFactory) { trainerFactory = f }

// EvalHook periodically evaluates the model inside the training loop; period 0
// means evaluate only on the final step (test-time-augmentation runs use this).
type EvalHook struct {
	Period int
	Fn     func() (Results, error)

	metrics *Metrics
}

// NewEvalHook builds an evaluation hook reporting through metrics (may be nil).
func NewEvalHook(period int, fn func() (Results, error), metrics *Metrics) *EvalHook {
	return &EvalHook{Period: period, Fn: fn, metrics: metrics}
}

// AfterStep runs the evaluation when the period elapses.
func (h *EvalHook) AfterStep(step int) error {
	if h.Period <= 0 || step%h.Period != 0 {
		return nil
	}
	return h.evaluate(step)
}

// AfterTrain always runs one final evaluation.
func (h *EvalHook) AfterTrain() error {
	return h.evaluate(-1)
}

func (h *EvalHook) evaluate(step int) error {
	start := time.Now()
	results, err := h.Fn()
	if err != nil {
		return fmt.Errorf("train: evaluation at step %d: %w", step, err)
	}
	if h.metrics != nil {
		h.metrics.ObserveEvaluation(time.Since(start))
	}
	slog.Info("evaluation complete", "step", step, "results", results)
	return nil
}

// Run is the training entrypoint: it prepares the output directory, restores
// weights, registers the TTA evaluation hook when enabled, and hands control
// to the trainer backend.
func Run(cfg *config.Config, model any, evaluate func() (Results, error), metrics *Metrics) error {
	factory := trainerFactory
	if factory == nil {
		return ErrNoTrainer
	}
	if err := os.MkdirAll(cfg.Train.OutputDir, 0o755); err != nil {
		return fmt.Errorf("train: creating output dir: %w", err)
	}
	slog.Info("output will be saved", "dir", cfg.Train.OutputDir)

	trainer, err := factory(cfg, model)
	if err != nil {
		return fmt.Errorf("train: building trainer: %w", err)
	}
	if err := trainer.ResumeOrLoad(cfg.Train.Resume); err != nil {
		return fmt.Errorf("train: restoring weights: %w", err)
	}
	if cfg.Train.TTAEnabled && evaluate != nil {
		trainer.RegisterHooks([]Hook{NewEvalHook(0, evaluate, metrics)})
	}
	return trainer.Train()
}
