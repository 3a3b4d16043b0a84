package utils

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewBoxOrdersCoordinates(t *testing.T) {
	b := NewBox(10, 20, 2, 4)
	assert.Equal(t, Box{MinX: 2, MinY: 4, MaxX: 10, MaxY: 20}, b)
	assert.InDelta(t, 8, b.Width(), 0)
	assert.InDelta(t, 16, b.Height(), 0)
}

func TestBoxToRectClamps(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 50)

	r := NewBox(10.4, 5.2, 20.6, 15.9).ToRect(bounds)
	assert.Equal(t, image.Rect(10, 5, 21, 16), r)

	r = NewBox(-10, -10, 200, 200).ToRect(bounds)
	assert.Equal(t, bounds, r)

	r = NewBox(150, 60, 160, 70).ToRect(bounds)
	assert.True(t, r.Empty())
}

func TestScaleAndOffsetPoint(t *testing.T) {
	p := Point{X: 3, Y: 4}
	assert.Equal(t, Point{X: 6, Y: 2}, ScalePoint(p, 2, 0.5))
	assert.Equal(t, Point{X: 2, Y: 5}, OffsetPoint(p, -1, 1))
}

func TestBoundingBox(t *testing.T) {
	pts := []Point{{X: 3, Y: 7}, {X: -1, Y: 2}, {X: 5, Y: 4}}
	assert.Equal(t, Box{MinX: -1, MinY: 2, MaxX: 5, MaxY: 7}, BoundingBox(pts))
	assert.Equal(t, Box{}, BoundingBox(nil))
}
