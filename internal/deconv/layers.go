package deconv

import (
	"fmt"

	"github.com/chewxy/math32"
	"gorgonia.org/tensor"
)

const (
	batchNormEps      = 1e-5
	batchNormMomentum = 0.1
)

// BatchNorm normalizes each channel by running mean/variance, with a learned
// per-channel scale and shift. In training mode it normalizes by the current
// batch statistics and folds them into the running estimates.
type BatchNorm struct {
	Gamma       []float32
	Beta        []float32
	RunningMean []float32
	RunningVar  []float32
	Eps         float32
	Momentum    float32
	Training    bool
}

// NewBatchNorm returns a BatchNorm over the given channel count with identity
// scale, zero shift and unit running variance.
func NewBatchNorm(channels int) *BatchNorm {
	bn := &BatchNorm{
		Gamma:       make([]float32, channels),
		Beta:        make([]float32, channels),
		RunningMean: make([]float32, channels),
		RunningVar:  make([]float32, channels),
		Eps:         batchNormEps,
		Momentum:    batchNormMomentum,
	}
	for i := 0; i < channels; i++ {
		bn.Gamma[i] = 1
		bn.RunningVar[i] = 1
	}
	return bn
}

// Forward normalizes x ([batch, C, H, W]) channel-wise.
func (bn *BatchNorm) Forward(x *tensor.Dense) (*tensor.Dense, error) {
	shape := x.Shape()
	if len(shape) != 4 {
		return nil, fmt.Errorf("deconv: batch norm input must be NCHW, got shape %v", shape)
	}
	b, c, h, w := shape[0], shape[1], shape[2], shape[3]
	if c != len(bn.Gamma) {
		return nil, fmt.Errorf("deconv: batch norm over %d channels got %d", len(bn.Gamma), c)
	}
	data := x.Data().([]float32)
	out := make([]float32, len(data))
	hw := h * w

	for ch := 0; ch < c; ch++ {
		mean, variance := bn.RunningMean[ch], bn.RunningVar[ch]
		if bn.Training {
			mean, variance = bn.updateStats(data, ch, b, c, hw)
		}
		inv := bn.Gamma[ch] / math32.Sqrt(variance+bn.Eps)
		for n := 0; n < b; n++ {
			plane := data[(n*c+ch)*hw : (n*c+ch+1)*hw]
			dst := out[(n*c+ch)*hw : (n*c+ch+1)*hw]
			for i, v := range plane {
				dst[i] = (v-mean)*inv + bn.Beta[ch]
			}
		}
	}
	return tensor.New(tensor.WithShape(b, c, h, w), tensor.WithBacking(out)), nil
}

// updateStats computes batch mean/variance for one channel and folds them into
// the running estimates (unbiased variance for the running update, biased for
// normalization, matching the usual convention).
func (bn *BatchNorm) updateStats(data []float32, ch, b, c, hw int) (mean, variance float32) {
	count := b * hw
	var sum, sqSum float64
	for n := 0; n < b; n++ {
		plane := data[(n*c+ch)*hw : (n*c+ch+1)*hw]
		for _, v := range plane {
			sum += float64(v)
			sqSum += float64(v) * float64(v)
		}
	}
	m := sum / float64(count)
	biased := sqSum/float64(count) - m*m
	if biased < 0 {
		biased = 0
	}
	mean = float32(m)
	variance = float32(biased)

	unbiased := variance
	if count > 1 {
		unbiased = variance * float32(count) / float32(count-1)
	}
	bn.RunningMean[ch] = (1-bn.Momentum)*bn.RunningMean[ch] + bn.Momentum*mean
	bn.RunningVar[ch] = (1-bn.Momentum)*bn.RunningVar[ch] + bn.Momentum*unbiased
	return mean, variance
}

// reluInPlace clamps negative values to zero.
func reluInPlace(data []float32) {
	for i, v := range data {
		if v < 0 {
			data[i] = 0
		}
	}
}

// ConvTranspose2d is a learned transposed convolution with no bias term.
// Weight layout is [inChannels, outChannels, kH, kW].
type ConvTranspose2d struct {
	InChannels    int
	OutChannels   int
	KernelSize    int
	Stride        int
	Padding       int
	OutputPadding int
	Weight        *tensor.Dense
}

// NewConvTranspose2d constructs the layer with its weight initialized to a
// bilinear interpolation kernel, so the layer performs plain bilinear
// upsampling before any training.
func NewConvTranspose2d(in, out, kernel, stride, padding, outputPadding int) (*ConvTranspose2d, error) {
	if in <= 0 || out <= 0 || kernel <= 0 || stride <= 0 {
		return nil, fmt.Errorf("deconv: invalid transposed conv dims in=%d out=%d k=%d stride=%d",
			in, out, kernel, stride)
	}
	c := &ConvTranspose2d{
		InChannels:    in,
		OutChannels:   out,
		KernelSize:    kernel,
		Stride:        stride,
		Padding:       padding,
		OutputPadding: outputPadding,
		Weight: tensor.New(
			tensor.WithShape(in, out, kernel, kernel),
			tensor.Of(tensor.Float32),
		),
	}
	c.initBilinear()
	return c, nil
}

// initBilinear fills the upsampling kernel deterministically. For kernel size
// ksz let f = ceil(ksz/2) and c = (2f-1-f%2)/(2f); then
//
//	weight[0][0][i][j] = (1-|i/f-c|) * (1-|j/f-c|)
//
// and each further channel replicates channel 0's kernel.
func (c *ConvTranspose2d) initBilinear() {
	w := c.Weight.Data().([]float32)
	k := c.KernelSize
	f := (k + 1) / 2
	cc := (2*float32(f) - 1 - float32(f%2)) / (2 * float32(f))
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			w[i*k+j] = (1 - math32.Abs(float32(i)/float32(f)-cc)) *
				(1 - math32.Abs(float32(j)/float32(f)-cc))
		}
	}
	kk := k * k
	stride := c.OutChannels * kk
	for ch := 1; ch < c.InChannels; ch++ {
		copy(w[ch*stride:ch*stride+kk], w[:kk])
	}
}

// Forward applies the transposed convolution to x ([batch, inC, H, W]),
// producing [batch, outC, (H-1)*stride-2*pad+k+outPad, ...].
func (c *ConvTranspose2d) Forward(x *tensor.Dense) (*tensor.Dense, error) {
	shape := x.Shape()
	if len(shape) != 4 {
		return nil, fmt.Errorf("deconv: transposed conv input must be NCHW, got shape %v", shape)
	}
	b, inC, h, w := shape[0], shape[1], shape[2], shape[3]
	if inC != c.InChannels {
		return nil, fmt.Errorf("deconv: transposed conv expects %d input channels, got %d", c.InChannels, inC)
	}
	outH := (h-1)*c.Stride - 2*c.Padding + c.KernelSize + c.OutputPadding
	outW := (w-1)*c.Stride - 2*c.Padding + c.KernelSize + c.OutputPadding
	if outH <= 0 || outW <= 0 {
		return nil, fmt.Errorf("deconv: transposed conv output collapsed to %dx%d", outH, outW)
	}

	data := x.Data().([]float32)
	wt := c.Weight.Data().([]float32)
	out := make([]float32, b*c.OutChannels*outH*outW)
	k := c.KernelSize

	for n := 0; n < b; n++ {
		for ic := 0; ic < inC; ic++ {
			plane := data[(n*inC+ic)*h*w : (n*inC+ic+1)*h*w]
			for oc := 0; oc < c.OutChannels; oc++ {
				kernel := wt[(ic*c.OutChannels+oc)*k*k : (ic*c.OutChannels+oc+1)*k*k]
				dst := out[(n*c.OutChannels+oc)*outH*outW : (n*c.OutChannels+oc+1)*outH*outW]
				scatterPlane(dst, plane, kernel, h, w, outH, outW, k, c.Stride, c.Padding)
			}
		}
	}
	return tensor.New(tensor.WithShape(b, c.OutChannels, outH, outW), tensor.WithBacking(out)), nil
}

// scatterPlane accumulates one input plane into one output plane through one
// kernel, the scatter formulation of transposed convolution.
func scatterPlane(dst, src, kernel []float32, h, w, outH, outW, k, stride, pad int) {
	for iy := 0; iy < h; iy++ {
		for ix := 0; ix < w; ix++ {
			v := src[iy*w+ix]
			if v == 0 {
				continue
			}
			for ky := 0; ky < k; ky++ {
				oy := iy*stride - pad + ky
				if oy < 0 || oy >= outH {
					continue
				}
				for kx := 0; kx < k; kx++ {
					ox := ix*stride - pad + kx
					if ox < 0 || ox >= outW {
						continue
					}
					dst[oy*outW+ox] += v * kernel[ky*k+kx]
				}
			}
		}
	}
}
