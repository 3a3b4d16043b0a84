package config

// Config represents the complete configuration for the centernet tool. It
// supports loading from configuration files, environment variables, and
// command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Model  ModelConfig  `mapstructure:"model" yaml:"model" json:"model"`
	Decode DecodeConfig `mapstructure:"decode" yaml:"decode" json:"decode"`
	Train  TrainConfig  `mapstructure:"train" yaml:"train" json:"train"`
}

// ModelConfig describes the backbone and the deconv upsampling head.
type ModelConfig struct {
	// BackbonePath is the ONNX backbone+head model producing the
	// (fmap, wh, reg) tensor triple.
	BackbonePath string `mapstructure:"backbone_path" yaml:"backbone_path" json:"backbone_path"`
	NumClasses   int    `mapstructure:"num_classes" yaml:"num_classes" json:"num_classes"`
	NumThreads   int    `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`

	// DeconvChannel lists the four channel widths of the upsampling path;
	// DeconvKernel the three transposed-conv kernel sizes between them.
	DeconvChannel  []int `mapstructure:"deconv_channel" yaml:"deconv_channel" json:"deconv_channel"`
	DeconvKernel   []int `mapstructure:"deconv_kernel" yaml:"deconv_kernel" json:"deconv_kernel"`
	ModulateDeform bool  `mapstructure:"modulate_deform" yaml:"modulate_deform" json:"modulate_deform"`
}

// DecodeConfig controls heatmap decoding.
type DecodeConfig struct {
	TopK      int  `mapstructure:"top_k" yaml:"top_k" json:"top_k"`
	CatSpecWH bool `mapstructure:"cat_spec_wh" yaml:"cat_spec_wh" json:"cat_spec_wh"`

	// Network input resolution used by the preprocessing warp.
	InputWidth  int `mapstructure:"input_width" yaml:"input_width" json:"input_width"`
	InputHeight int `mapstructure:"input_height" yaml:"input_height" json:"input_height"`

	// Downsampling factor from network input to the decoded feature map.
	DownRatio int `mapstructure:"down_ratio" yaml:"down_ratio" json:"down_ratio"`
}

// TrainConfig contains training-entrypoint settings.
type TrainConfig struct {
	OutputDir  string `mapstructure:"output_dir" yaml:"output_dir" json:"output_dir"`
	Dataset    string `mapstructure:"dataset" yaml:"dataset" json:"dataset"`
	Resume     bool   `mapstructure:"resume" yaml:"resume" json:"resume"`
	TTAEnabled bool   `mapstructure:"tta_enabled" yaml:"tta_enabled" json:"tta_enabled"`
}
