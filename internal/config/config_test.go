package config

import (
	"strings"
	"testing"
)

// TestDefaultConfigIsValid verifies the defaults pass validation.
func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig() failed validation: %v", err)
	}
}

// TestDefaultConfigValues spot-checks the defaults other packages rely on.
func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level 'info', got %s", cfg.LogLevel)
	}
	if cfg.Model.NumClasses != 80 {
		t.Errorf("Expected 80 classes, got %d", cfg.Model.NumClasses)
	}
	wantChannels := []int{512, 256, 128, 64}
	for i, ch := range cfg.Model.DeconvChannel {
		if ch != wantChannels[i] {
			t.Errorf("Expected deconv channel[%d]=%d, got %d", i, wantChannels[i], ch)
		}
	}
	if len(cfg.Model.DeconvKernel) != 3 {
		t.Errorf("Expected 3 deconv kernels, got %d", len(cfg.Model.DeconvKernel))
	}
	if !cfg.Model.ModulateDeform {
		t.Error("Expected modulated deformable convolution by default")
	}
	if cfg.Decode.TopK != 100 {
		t.Errorf("Expected top_k 100, got %d", cfg.Decode.TopK)
	}
	if cfg.Decode.InputWidth != 512 || cfg.Decode.InputHeight != 512 {
		t.Errorf("Expected 512x512 input, got %dx%d", cfg.Decode.InputWidth, cfg.Decode.InputHeight)
	}
	if cfg.Decode.DownRatio != 4 {
		t.Errorf("Expected down ratio 4, got %d", cfg.Decode.DownRatio)
	}
	if cfg.Train.Dataset != "coco_2017_train" {
		t.Errorf("Expected default dataset coco_2017_train, got %s", cfg.Train.Dataset)
	}
}

// TestValidateRejectsBadConfigs exercises each structural constraint.
func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "wrong channel count",
			mutate:  func(c *Config) { c.Model.DeconvChannel = []int{512, 256} },
			wantErr: "deconv_channel",
		},
		{
			name:    "non-positive channel",
			mutate:  func(c *Config) { c.Model.DeconvChannel = []int{512, 0, 128, 64} },
			wantErr: "deconv_channel[1]",
		},
		{
			name:    "wrong kernel count",
			mutate:  func(c *Config) { c.Model.DeconvKernel = []int{4, 4} },
			wantErr: "deconv_kernel",
		},
		{
			name:    "non-positive kernel",
			mutate:  func(c *Config) { c.Model.DeconvKernel = []int{4, -1, 4} },
			wantErr: "deconv_kernel[1]",
		},
		{
			name:    "non-positive classes",
			mutate:  func(c *Config) { c.Model.NumClasses = 0 },
			wantErr: "num_classes",
		},
		{
			name:    "non-positive top_k",
			mutate:  func(c *Config) { c.Decode.TopK = 0 },
			wantErr: "top_k",
		},
		{
			name:    "non-positive input size",
			mutate:  func(c *Config) { c.Decode.InputWidth = 0 },
			wantErr: "resolution",
		},
		{
			name:    "non-positive down ratio",
			mutate:  func(c *Config) { c.Decode.DownRatio = -4 },
			wantErr: "down_ratio",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error %q does not mention %q", err.Error(), tt.wantErr)
			}
		})
	}
}
