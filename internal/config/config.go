package config

import (
	"errors"
	"fmt"
)

const (
	deconvChannelCount = 4
	deconvKernelCount  = 3
)

var errInvalidConfig = errors.New("invalid configuration")

// DefaultConfig returns the default configuration: a ResNet-style backbone
// feeding a 512-256-128-64 upsampling path with 4x4 deconv kernels.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Model: ModelConfig{
			NumClasses:     80,
			DeconvChannel:  []int{512, 256, 128, 64},
			DeconvKernel:   []int{4, 4, 4},
			ModulateDeform: true,
		},
		Decode: DecodeConfig{
			TopK:        100,
			InputWidth:  512,
			InputHeight: 512,
			DownRatio:   4,
		},
		Train: TrainConfig{
			OutputDir: "output",
			Dataset:   "coco_2017_train",
		},
	}
}

// Validate checks structural constraints the rest of the system relies on.
func (c *Config) Validate() error {
	if len(c.Model.DeconvChannel) != deconvChannelCount {
		return fmt.Errorf("%w: model.deconv_channel must list %d widths, got %d",
			errInvalidConfig, deconvChannelCount, len(c.Model.DeconvChannel))
	}
	for i, ch := range c.Model.DeconvChannel {
		if ch <= 0 {
			return fmt.Errorf("%w: model.deconv_channel[%d] must be positive, got %d",
				errInvalidConfig, i, ch)
		}
	}
	if len(c.Model.DeconvKernel) != deconvKernelCount {
		return fmt.Errorf("%w: model.deconv_kernel must list %d sizes, got %d",
			errInvalidConfig, deconvKernelCount, len(c.Model.DeconvKernel))
	}
	for i, k := range c.Model.DeconvKernel {
		if k <= 0 {
			return fmt.Errorf("%w: model.deconv_kernel[%d] must be positive, got %d",
				errInvalidConfig, i, k)
		}
	}
	if c.Model.NumClasses <= 0 {
		return fmt.Errorf("%w: model.num_classes must be positive, got %d",
			errInvalidConfig, c.Model.NumClasses)
	}
	if c.Decode.TopK <= 0 {
		return fmt.Errorf("%w: decode.top_k must be positive, got %d",
			errInvalidConfig, c.Decode.TopK)
	}
	if c.Decode.InputWidth <= 0 || c.Decode.InputHeight <= 0 {
		return fmt.Errorf("%w: decode input resolution %dx%d must be positive",
			errInvalidConfig, c.Decode.InputWidth, c.Decode.InputHeight)
	}
	if c.Decode.DownRatio <= 0 {
		return fmt.Errorf("%w: decode.down_ratio must be positive, got %d",
			errInvalidConfig, c.Decode.DownRatio)
	}
	return nil
}
