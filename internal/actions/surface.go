// Package actions implements the browser action vocabulary exposed to the
// model. Each action is a Handler that declares its own parameter schema and
// drives a Surface in pixel coordinates.
package actions

import (
	"context"
	"math"
)

// Surface is the set of low-level primitives a rendered page offers.
// Coordinates are in CSS pixels of the viewport.
type Surface interface {
	Viewport() (width, height int)

	Navigate(ctx context.Context, url string) error
	GoBack(ctx context.Context) error
	GoForward(ctx context.Context) error

	MouseMove(ctx context.Context, x, y float64) error
	MouseClick(ctx context.Context, x, y float64) error
	MouseDown(ctx context.Context, x, y float64) error
	MouseUp(ctx context.Context, x, y float64) error
	MouseWheel(ctx context.Context, x, y, deltaX, deltaY float64) error

	// TypeText sends text to the focused element.
	TypeText(ctx context.Context, text string) error
	// PressKeys presses a combination such as "Control+A" or "Enter".
	PressKeys(ctx context.Context, combo string) error
	// ScrollBy scrolls the document window by the given offsets.
	ScrollBy(ctx context.Context, dx, dy int) error
	// Highlight draws transient pointer feedback. Surfaces without an
	// overlay return nil.
	Highlight(ctx context.Context, x, y float64) error
}

// GridSize is the extent of the normalized coordinate grid the model uses on
// both axes, regardless of the real viewport size.
const GridSize = 1000

// Denormalize scales a normalized grid coordinate to a pixel offset within
// dimension: int(v / 1000 * dimension), clamped to [0, dimension-1].
func Denormalize(v float64, dimension int) float64 {
	if dimension <= 0 {
		return 0
	}
	px := math.Trunc(v / GridSize * float64(dimension))
	if px < 0 {
		return 0
	}
	if max := float64(dimension - 1); px > max {
		return max
	}
	return px
}

// toPixels converts a normalized (x, y) pair against the surface viewport.
func toPixels(s Surface, x, y float64) (float64, float64) {
	w, h := s.Viewport()
	return Denormalize(x, w), Denormalize(y, h)
}
