package decoder

import (
	"testing"

	"github.com/MeKo-Tech/centernet/internal/preprocess"
	"github.com/MeKo-Tech/centernet/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformBoxesRoundTrip(t *testing.T) {
	info := ImageInfo{
		Center: utils.Point{X: 320, Y: 240},
		Size:   utils.Point{X: 640, Y: 640},
		Width:  128,
		Height: 128,
	}
	boxes := newMap(t, []int{1, 2, 4}, []float32{
		10, 20, 30, 40,
		64, 64, 100, 120,
	})

	out, err := TransformBoxes(boxes, info, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 4}, []int(out.Shape()))

	// Mapping the source-image corners forward must recover the inputs.
	fwd, err := preprocess.InputTransform(info.Center, info.Size, info.Width, info.Height)
	require.NoError(t, err)

	in := boxes.Data().([]float32)
	od := out.Data().([]float32)
	for o := 0; o < len(od); o += 2 {
		p := fwd.Apply(utils.Point{X: float64(od[o]), Y: float64(od[o+1])})
		assert.InDelta(t, float64(in[o]), p.X, 1e-6)
		assert.InDelta(t, float64(in[o+1]), p.Y, 1e-6)
	}
}

func TestTransformBoxesIdentityMapping(t *testing.T) {
	// Crop size equal to the output size makes the warp the identity
	// translation onto the crop origin.
	info := ImageInfo{
		Center: utils.Point{X: 64, Y: 64},
		Size:   utils.Point{X: 128, Y: 128},
		Width:  128,
		Height: 128,
	}
	boxes := newMap(t, []int{1, 1, 4}, []float32{8, 16, 24, 32})

	out, err := TransformBoxes(boxes, info, 1)
	require.NoError(t, err)
	od := out.Data().([]float32)
	assert.InDelta(t, 8, float64(od[0]), 1e-6)
	assert.InDelta(t, 16, float64(od[1]), 1e-6)
	assert.InDelta(t, 24, float64(od[2]), 1e-6)
	assert.InDelta(t, 32, float64(od[3]), 1e-6)
}

func TestTransformBoxesScaleDoublesSpan(t *testing.T) {
	info := ImageInfo{
		Center: utils.Point{X: 64, Y: 64},
		Size:   utils.Point{X: 128, Y: 128},
		Width:  128,
		Height: 128,
	}
	boxes := newMap(t, []int{1, 1, 4}, []float32{60, 60, 70, 70})

	unit, err := TransformBoxes(boxes, info, 1)
	require.NoError(t, err)
	doubled, err := TransformBoxes(boxes, info, 2)
	require.NoError(t, err)

	ud := unit.Data().([]float32)
	dd := doubled.Data().([]float32)
	// Doubling the crop size doubles the mapped box span.
	assert.InDelta(t, 2*float64(ud[2]-ud[0]), float64(dd[2]-dd[0]), 1e-5)
	assert.InDelta(t, 2*float64(ud[3]-ud[1]), float64(dd[3]-dd[1]), 1e-5)
}

func TestTransformBoxesRejectsBadShape(t *testing.T) {
	_, err := TransformBoxes(zeros(1, 2, 3), ImageInfo{
		Center: utils.Point{X: 1, Y: 1},
		Size:   utils.Point{X: 2, Y: 2},
		Width:  4, Height: 4,
	}, 1)
	assert.Error(t, err)
}

func TestTransformBoxesRejectsNonPositiveScale(t *testing.T) {
	_, err := TransformBoxes(zeros(1, 1, 4), ImageInfo{
		Center: utils.Point{X: 1, Y: 1},
		Size:   utils.Point{X: 2, Y: 2},
		Width:  4, Height: 4,
	}, 0)
	assert.Error(t, err)
}
