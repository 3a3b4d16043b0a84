package decoder

import (
	"fmt"

	"github.com/MeKo-Tech/centernet/internal/preprocess"
	"github.com/MeKo-Tech/centernet/internal/utils"
	"gorgonia.org/tensor"
)

// ImageInfo describes how one source image was warped into network input
// space: the crop center and size in source pixels, and the network output
// resolution the detections live in. Immutable, supplied per inference call.
type ImageInfo struct {
	Center utils.Point
	Size   utils.Point
	Width  int
	Height int
}

// TransformBoxes maps boxes from network-output coordinates back onto the
// source image by inverting the preprocessing warp. The last tensor dimension
// must be 4 (x1, y1, x2, y2); every corner is mapped as a homogeneous 2D point
// and the input shape is preserved.
//
// scale multiplies the crop size, so boxes produced from an input rescaled for
// multi-scale testing invert through the matching transform; scale 1 is the
// plain inverse of the preprocessing warp.
func TransformBoxes(boxes *tensor.Dense, info ImageInfo, scale float64) (*tensor.Dense, error) {
	shape := boxes.Shape()
	if len(shape) == 0 || shape[len(shape)-1] != 4 {
		return nil, fmt.Errorf("decoder: boxes must end in a 4-wide dimension, got shape %v", shape)
	}
	if scale <= 0 {
		return nil, fmt.Errorf("decoder: scale must be positive, got %v", scale)
	}
	size := utils.ScalePoint(info.Size, scale, scale)
	inv, err := preprocess.OutputTransform(info.Center, size, info.Width, info.Height)
	if err != nil {
		return nil, err
	}

	data := boxes.Data().([]float32)
	out := make([]float32, len(data))
	for o := 0; o+1 < len(data); o += 2 {
		p := inv.Apply(utils.Point{X: float64(data[o]), Y: float64(data[o+1])})
		out[o] = float32(p.X)
		out[o+1] = float32(p.Y)
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(out)), nil
}
