package cmd

import "image/color"

// overlayColor is the rectangle color for detection overlays.
var overlayColor = color.RGBA{R: 0, G: 220, B: 60, A: 255}
