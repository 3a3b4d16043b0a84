package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestNewLoader tests loader creation.
func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	if loader == nil {
		t.Fatal("NewLoader() returned nil")
	}
	if loader.v == nil {
		t.Error("Loader viper instance is nil")
	}
	if loader.GetViper() != loader.v {
		t.Error("GetViper() should return the underlying instance")
	}
}

// TestLoadWithNoConfigFile tests loading with no config file present.
func TestLoadWithNoConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	originalWd, _ := os.Getwd()
	defer func() { _ = os.Chdir(originalWd) }()

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change directory: %v", err)
	}

	loader := NewLoader()
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load() returned nil config")
	}

	// Should get default values
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level 'info', got %s", cfg.LogLevel)
	}
	if cfg.Decode.TopK != 100 {
		t.Errorf("Expected default top_k 100, got %d", cfg.Decode.TopK)
	}
	if len(cfg.Model.DeconvChannel) != 4 {
		t.Errorf("Expected 4 deconv channels, got %d", len(cfg.Model.DeconvChannel))
	}
}

// TestLoadWithValidYAMLFile tests loading from a valid YAML file.
func TestLoadWithValidYAMLFile(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "centernet.yaml")

	yamlContent := `
log_level: debug
verbose: true
model:
  backbone_path: /models/backbone.onnx
  num_classes: 20
  deconv_channel: [256, 128, 64, 32]
decode:
  top_k: 50
  cat_spec_wh: true
train:
  dataset: voc_2007_test
  output_dir: /tmp/out
`

	if err := os.WriteFile(configFile, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	loader := NewLoader()
	cfg, err := loader.LoadWithFile(configFile)
	if err != nil {
		t.Fatalf("LoadWithFile() unexpected error: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level 'debug', got %s", cfg.LogLevel)
	}
	if !cfg.Verbose {
		t.Error("Expected verbose to be true")
	}
	if cfg.Model.BackbonePath != "/models/backbone.onnx" {
		t.Errorf("Expected backbone path '/models/backbone.onnx', got %s", cfg.Model.BackbonePath)
	}
	if cfg.Model.NumClasses != 20 {
		t.Errorf("Expected 20 classes, got %d", cfg.Model.NumClasses)
	}
	if cfg.Model.DeconvChannel[0] != 256 {
		t.Errorf("Expected first deconv channel 256, got %d", cfg.Model.DeconvChannel[0])
	}
	if cfg.Decode.TopK != 50 {
		t.Errorf("Expected top_k 50, got %d", cfg.Decode.TopK)
	}
	if !cfg.Decode.CatSpecWH {
		t.Error("Expected cat_spec_wh to be true")
	}
	if cfg.Train.Dataset != "voc_2007_test" {
		t.Errorf("Expected dataset 'voc_2007_test', got %s", cfg.Train.Dataset)
	}
	if cfg.Train.OutputDir != "/tmp/out" {
		t.Errorf("Expected output dir '/tmp/out', got %s", cfg.Train.OutputDir)
	}
}

// TestLoadWithFileRejectsInvalidConfig tests that validation runs on load.
func TestLoadWithFileRejectsInvalidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "centernet.yaml")

	yamlContent := `
model:
  deconv_channel: [512, 256]
`
	if err := os.WriteFile(configFile, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	loader := NewLoader()
	if _, err := loader.LoadWithFile(configFile); err == nil {
		t.Error("LoadWithFile() expected validation error, got nil")
	}
}

// TestLoadWithMissingFile tests that a nonexistent explicit file errors.
func TestLoadWithMissingFile(t *testing.T) {
	loader := NewLoader()
	if _, err := loader.LoadWithFile("/nonexistent/centernet.yaml"); err == nil {
		t.Error("LoadWithFile() expected error for missing file, got nil")
	}
}
