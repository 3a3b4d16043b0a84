package decoder

import (
	"fmt"

	"gorgonia.org/tensor"
)

// GatherFeature picks the value at each selected flattened spatial index,
// preserving batch and selection order.
//
// With useTransform set, t must be NCHW; it is treated as transposed to
// [batch, H*W, C] before the gather, producing [batch, K, C]. Without it,
// t must already be [batch, N, D] and rows are gathered along N, producing
// [batch, K, D].
func GatherFeature(t *tensor.Dense, index [][]int, useTransform bool) (*tensor.Dense, error) {
	shape := t.Shape()
	data := t.Data().([]float32)
	if len(index) == 0 {
		return nil, fmt.Errorf("decoder: empty gather index")
	}
	k := len(index[0])

	if useTransform {
		if len(shape) != 4 {
			return nil, fmt.Errorf("decoder: transform gather needs NCHW, got shape %v", shape)
		}
		b, c, hw := shape[0], shape[1], shape[2]*shape[3]
		if len(index) != b {
			return nil, fmt.Errorf("decoder: gather index batch %d != tensor batch %d", len(index), b)
		}
		out := make([]float32, b*k*c)
		for n := 0; n < b; n++ {
			for i, idx := range index[n] {
				if idx < 0 || idx >= hw {
					return nil, fmt.Errorf("decoder: gather index %d outside %d-cell map", idx, hw)
				}
				for ch := 0; ch < c; ch++ {
					out[(n*k+i)*c+ch] = data[(n*c+ch)*hw+idx]
				}
			}
		}
		return tensor.New(tensor.WithShape(b, k, c), tensor.WithBacking(out)), nil
	}

	if len(shape) != 3 {
		return nil, fmt.Errorf("decoder: gather needs [batch, N, D], got shape %v", shape)
	}
	b, n3, d := shape[0], shape[1], shape[2]
	if len(index) != b {
		return nil, fmt.Errorf("decoder: gather index batch %d != tensor batch %d", len(index), b)
	}
	out := make([]float32, b*k*d)
	for n := 0; n < b; n++ {
		for i, idx := range index[n] {
			if idx < 0 || idx >= n3 {
				return nil, fmt.Errorf("decoder: gather index %d outside %d rows", idx, n3)
			}
			copy(out[(n*k+i)*d:(n*k+i+1)*d], data[(n*n3+idx)*d:(n*n3+idx+1)*d])
		}
	}
	return tensor.New(tensor.WithShape(b, k, d), tensor.WithBacking(out)), nil
}
