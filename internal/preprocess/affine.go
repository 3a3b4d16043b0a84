// Package preprocess implements the center-crop affine warp used to map source
// images into network input space. The decoder reuses the same control-point
// rule to invert the warp, so detections land back on the source image exactly.
package preprocess

import (
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/centernet/internal/utils"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	"gonum.org/v1/gonum/mat"
)

// ErrDegenerateControlPoints reports collinear control points, which admit no
// unique affine transform.
var ErrDegenerateControlPoints = errors.New("preprocess: degenerate control points")

// Affine is a 2x3 affine transform in row-major order:
//
//	x' = M[0]*x + M[1]*y + M[2]
//	y' = M[3]*x + M[4]*y + M[5]
type Affine struct {
	M [6]float64
}

// Apply maps a point through the transform.
func (a Affine) Apply(p utils.Point) utils.Point {
	return utils.Point{
		X: a.M[0]*p.X + a.M[1]*p.Y + a.M[2],
		Y: a.M[3]*p.X + a.M[4]*p.Y + a.M[5],
	}
}

// GenerateSrcDst produces the three point correspondences that define the
// center-crop warp: the crop center, the midpoint of its top edge, and a third
// point obtained by rotating the center-to-top vector 90 degrees. The same rule
// generates both source points (in image space, from center and crop size) and
// destination points (in network space, from the output size), so solving in
// either direction yields the forward warp or its exact inverse.
func GenerateSrcDst(center, size utils.Point, outW, outH int) (src, dst [3]utils.Point) {
	src[0] = center
	src[1] = utils.Point{X: center.X, Y: center.Y - size.X/2}
	src[2] = thirdPoint(src[0], src[1])

	dw, dh := float64(outW), float64(outH)
	dst[0] = utils.Point{X: dw / 2, Y: dh / 2}
	dst[1] = utils.Point{X: dw / 2, Y: dh/2 - dw/2}
	dst[2] = thirdPoint(dst[0], dst[1])
	return src, dst
}

// thirdPoint completes the triangle: b plus the 90-degree rotation of (a-b).
func thirdPoint(a, b utils.Point) utils.Point {
	dx, dy := a.X-b.X, a.Y-b.Y
	return utils.Point{X: b.X - dy, Y: b.Y + dx}
}

// EstimateAffine solves for the affine transform mapping the three `from`
// points onto the three `to` points.
func EstimateAffine(from, to [3]utils.Point) (Affine, error) {
	a := mat.NewDense(3, 3, []float64{
		from[0].X, from[0].Y, 1,
		from[1].X, from[1].Y, 1,
		from[2].X, from[2].Y, 1,
	})
	b := mat.NewDense(3, 2, []float64{
		to[0].X, to[0].Y,
		to[1].X, to[1].Y,
		to[2].X, to[2].Y,
	})
	var x mat.Dense
	if err := x.Solve(a, b); err != nil {
		return Affine{}, fmt.Errorf("%w: %w", ErrDegenerateControlPoints, err)
	}
	return Affine{M: [6]float64{
		x.At(0, 0), x.At(1, 0), x.At(2, 0),
		x.At(0, 1), x.At(1, 1), x.At(2, 1),
	}}, nil
}

// InputTransform returns the forward warp from source-image coordinates to
// network input coordinates for a crop described by center and size.
func InputTransform(center, size utils.Point, outW, outH int) (Affine, error) {
	src, dst := GenerateSrcDst(center, size, outW, outH)
	return EstimateAffine(src, dst)
}

// OutputTransform returns the inverse warp, from network output coordinates
// back to source-image coordinates.
func OutputTransform(center, size utils.Point, outW, outH int) (Affine, error) {
	src, dst := GenerateSrcDst(center, size, outW, outH)
	return EstimateAffine(dst, src)
}

// WarpImage resamples img into an outW x outH network input using the
// center-crop affine warp with bilinear interpolation.
func WarpImage(img image.Image, center, size utils.Point, outW, outH int) (*image.RGBA, error) {
	if outW <= 0 || outH <= 0 {
		return nil, fmt.Errorf("preprocess: invalid output size %dx%d", outW, outH)
	}
	fwd, err := InputTransform(center, size, outW, outH)
	if err != nil {
		return nil, err
	}
	dst := image.NewRGBA(image.Rect(0, 0, outW, outH))
	m := f64.Aff3{
		fwd.M[0], fwd.M[1], fwd.M[2],
		fwd.M[3], fwd.M[4], fwd.M[5],
	}
	xdraw.ApproxBiLinear.Transform(dst, m, img, img.Bounds(), xdraw.Src, nil)
	return dst, nil
}
