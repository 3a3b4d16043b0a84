// Package deconv implements the CenterNet upsampling head: three chained
// stages of deformable convolution, normalization, activation and learned
// transposed-convolution upsampling.
package deconv

import (
	"fmt"
	"sync"

	"gorgonia.org/tensor"
)

// DeformConv is the deformable convolution primitive: a convolution whose
// sampling offsets (and, in the modulated variant, per-sample confidence
// weights) are predicted from the input. The numeric kernel is supplied by the
// host runtime; this package only consumes it through the interface.
type DeformConv interface {
	Forward(x *tensor.Dense) (*tensor.Dense, error)
}

// DeformConvParams configures a deformable convolution instance.
type DeformConvParams struct {
	InPlanes         int
	OutPlanes        int
	KernelSize       int
	DeformableGroups int
	Modulated        bool
}

// DeformConvBuilder constructs the deformable convolution primitive for one
// stage. Backends register themselves with RegisterBackend; tests inject
// builders directly.
type DeformConvBuilder func(p DeformConvParams) (DeformConv, error)

var (
	backendMu sync.RWMutex
	backend   DeformConvBuilder
)

// RegisterBackend installs the process-wide deformable convolution backend.
// Typically called from an init function in the backend's package.
func RegisterBackend(b DeformConvBuilder) {
	backendMu.Lock()
	defer backendMu.Unlock()
	backend = b
}

// Backend returns the registered deformable convolution builder.
func Backend() (DeformConvBuilder, error) {
	backendMu.RLock()
	defer backendMu.RUnlock()
	if backend == nil {
		return nil, fmt.Errorf("deconv: no deformable convolution backend registered")
	}
	return backend, nil
}
