// Package backbone adapts an ONNX backbone+head network into the tensor
// triple the decoder consumes.
package backbone

import (
	"fmt"
	"os"

	"github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"
)

// Config holds configuration for the backbone session.
type Config struct {
	ModelPath  string // Path to the ONNX backbone model
	NumThreads int    // Number of CPU threads (0 for auto)

	// Output tensor names in the model graph.
	FmapOutput string
	WHOutput   string
	RegOutput  string

	InputName string
}

// DefaultConfig returns defaults matching the exported CenterNet graphs.
func DefaultConfig(modelPath string) Config {
	return Config{
		ModelPath:  modelPath,
		InputName:  "input",
		FmapOutput: "fmap",
		WHOutput:   "wh",
		RegOutput:  "reg",
	}
}

// Outputs is the raw prediction triple for one forward pass.
type Outputs struct {
	Fmap *tensor.Dense // [batch, classes, H, W] center heatmap
	WH   *tensor.Dense // [batch, 2(.C), H, W] box sizes
	Reg  *tensor.Dense // [batch, 2, H, W] sub-pixel center offsets
}

// Session runs backbone inference through ONNX Runtime.
type Session struct {
	cfg     Config
	session *onnxruntime_go.DynamicAdvancedSession
}

// New creates a backbone session for the configured model.
func New(cfg Config) (*Session, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("backbone model not found: %s", cfg.ModelPath)
	}
	if err := initEnvironment(); err != nil {
		return nil, err
	}

	opts, err := onnxruntime_go.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer func() {
		if err := opts.Destroy(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to destroy session options: %v\n", err)
		}
	}()

	if cfg.NumThreads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}

	session, err := onnxruntime_go.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.FmapOutput, cfg.WHOutput, cfg.RegOutput},
		opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return &Session{cfg: cfg, session: session}, nil
}

// Run feeds an NCHW float32 input through the network and returns the
// prediction triple as dense tensors.
func (s *Session) Run(input *tensor.Dense) (*Outputs, error) {
	shape := input.Shape()
	if len(shape) != 4 {
		return nil, fmt.Errorf("backbone input must be NCHW, got shape %v", shape)
	}
	dims := make([]int64, len(shape))
	for i, d := range shape {
		dims[i] = int64(d)
	}
	inputTensor, err := onnxruntime_go.NewTensor(onnxruntime_go.NewShape(dims...),
		input.Data().([]float32))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer func() {
		if err := inputTensor.Destroy(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to destroy input tensor: %v\n", err)
		}
	}()

	outputs := []onnxruntime_go.Value{nil, nil, nil}
	if err := s.session.Run([]onnxruntime_go.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("backbone inference failed: %w", err)
	}
	defer destroyValues(outputs)

	fmap, err := toDense(outputs[0], s.cfg.FmapOutput)
	if err != nil {
		return nil, err
	}
	wh, err := toDense(outputs[1], s.cfg.WHOutput)
	if err != nil {
		return nil, err
	}
	reg, err := toDense(outputs[2], s.cfg.RegOutput)
	if err != nil {
		return nil, err
	}
	return &Outputs{Fmap: fmap, WH: wh, Reg: reg}, nil
}

// Close releases the underlying ONNX session.
func (s *Session) Close() error {
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	return err
}

func destroyValues(vals []onnxruntime_go.Value) {
	for _, v := range vals {
		if v == nil {
			continue
		}
		if err := v.Destroy(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to destroy output tensor: %v\n", err)
		}
	}
}

// toDense copies an ONNX output into a dense tensor the decoder can index.
func toDense(v onnxruntime_go.Value, name string) (*tensor.Dense, error) {
	ft, ok := v.(*onnxruntime_go.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("output %q is not a float32 tensor", name)
	}
	shape := ft.GetShape()
	dims := make([]int, len(shape))
	for i, d := range shape {
		dims[i] = int(d)
	}
	data := make([]float32, len(ft.GetData()))
	copy(data, ft.GetData())
	return tensor.New(tensor.WithShape(dims...), tensor.WithBacking(data)), nil
}
