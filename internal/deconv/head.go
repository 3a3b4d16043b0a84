package deconv

import (
	"fmt"

	"gorgonia.org/tensor"
)

const (
	dcnKernelSize  = 3
	dcnGroups      = 1
	upsampleStride = 2
	upsamplePad    = 1
	upsampleOutPad = 0
)

// DeconvStage is one upsampling stage: deformable convolution, batch norm and
// ReLU, then a stride-2 transposed convolution followed by a second batch norm
// and ReLU. Each stage owns its parameters exclusively.
type DeconvStage struct {
	dcn   DeformConv
	dcnBN *BatchNorm
	up    *ConvTranspose2d
	upBN  *BatchNorm
}

// NewDeconvStage builds a stage mapping inPlanes channels to outPlanes while
// doubling the spatial resolution. The deformable convolution primitive comes
// from the supplied builder.
func NewDeconvStage(inPlanes, outPlanes, deconvKernel int, modulated bool, build DeformConvBuilder) (*DeconvStage, error) {
	if build == nil {
		return nil, fmt.Errorf("deconv: nil deformable convolution builder")
	}
	dcn, err := build(DeformConvParams{
		InPlanes:         inPlanes,
		OutPlanes:        outPlanes,
		KernelSize:       dcnKernelSize,
		DeformableGroups: dcnGroups,
		Modulated:        modulated,
	})
	if err != nil {
		return nil, fmt.Errorf("deconv: building deformable convolution: %w", err)
	}
	up, err := NewConvTranspose2d(outPlanes, outPlanes, deconvKernel,
		upsampleStride, upsamplePad, upsampleOutPad)
	if err != nil {
		return nil, err
	}
	return &DeconvStage{
		dcn:   dcn,
		dcnBN: NewBatchNorm(outPlanes),
		up:    up,
		upBN:  NewBatchNorm(outPlanes),
	}, nil
}

// Upsample exposes the transposed convolution, mainly for inspecting the
// deterministic weight initialization.
func (s *DeconvStage) Upsample() *ConvTranspose2d { return s.up }

// Forward runs the stage. Parameters are only read; concurrent calls are safe
// as long as no optimization step mutates them.
func (s *DeconvStage) Forward(x *tensor.Dense) (*tensor.Dense, error) {
	x, err := s.dcn.Forward(x)
	if err != nil {
		return nil, fmt.Errorf("deconv: deformable convolution: %w", err)
	}
	if x, err = s.dcnBN.Forward(x); err != nil {
		return nil, err
	}
	reluInPlace(x.Data().([]float32))
	if x, err = s.up.Forward(x); err != nil {
		return nil, err
	}
	if x, err = s.upBN.Forward(x); err != nil {
		return nil, err
	}
	reluInPlace(x.Data().([]float32))
	return x, nil
}

// CenternetDeconv chains three deconv stages, taking backbone features to the
// resolution the detection head reads class and box predictions from.
type CenternetDeconv struct {
	stages [3]*DeconvStage
}

// NewCenternetDeconv builds the head from a 4-element channel list and a
// 3-element kernel list; the modulated flag selects the modulated deformable
// variant for all three stages.
func NewCenternetDeconv(channels []int, kernels []int, modulated bool, build DeformConvBuilder) (*CenternetDeconv, error) {
	if len(channels) != 4 {
		return nil, fmt.Errorf("deconv: need 4 channel widths, got %d", len(channels))
	}
	if len(kernels) != 3 {
		return nil, fmt.Errorf("deconv: need 3 kernel sizes, got %d", len(kernels))
	}
	head := &CenternetDeconv{}
	for i := range head.stages {
		stage, err := NewDeconvStage(channels[i], channels[i+1], kernels[i], modulated, build)
		if err != nil {
			return nil, fmt.Errorf("deconv: stage %d: %w", i+1, err)
		}
		head.stages[i] = stage
	}
	return head, nil
}

// Stage returns the i-th stage (0-based).
func (h *CenternetDeconv) Stage(i int) *DeconvStage { return h.stages[i] }

// Forward runs the three stages in order.
func (h *CenternetDeconv) Forward(x *tensor.Dense) (*tensor.Dense, error) {
	var err error
	for i, stage := range h.stages {
		if x, err = stage.Forward(x); err != nil {
			return nil, fmt.Errorf("deconv: stage %d: %w", i+1, err)
		}
	}
	return x, nil
}
