package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/xkilldash9x/pilot-cli/internal/toolschema"
)

var (
	_ Handler = scrollDocument{}
	_ Handler = scrollAt{}
)

const defaultScrollMagnitude = 800

func direction() toolschema.ParameterSchema {
	return toolschema.Enum("up", "down", "left", "right").Describe("The direction to scroll.")
}

type scrollDocument struct {
	step int
}

func (scrollDocument) Declaration() toolschema.ToolDeclaration {
	return toolschema.NewTool(ScrollDocument).
		Describe("Scrolls the entire page up, down, left, or right.").
		Param("direction", direction().WithDefault("down")).
		Build()
}

func (h scrollDocument) Invoke(ctx context.Context, s Surface, args Args) (map[string]any, error) {
	dir, err := args.StringOr("direction", "down")
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(dir) {
	case "down":
		return nil, s.PressKeys(ctx, "PageDown")
	case "up":
		return nil, s.PressKeys(ctx, "PageUp")
	case "left":
		return nil, s.ScrollBy(ctx, -h.step, 0)
	case "right":
		return nil, s.ScrollBy(ctx, h.step, 0)
	default:
		return nil, fmt.Errorf("unsupported scroll direction %q", dir)
	}
}

type scrollAt struct{ pointerOptions }

func (scrollAt) Declaration() toolschema.ToolDeclaration {
	return toolschema.NewTool(ScrollAt).
		Describe("Scrolls the element or area under a coordinate in a direction by a magnitude in pixels.").
		Param("x", coordinate("X")).
		Param("y", coordinate("Y")).
		Param("direction", direction().WithDefault("down")).
		Param("magnitude", toolschema.Optional(toolschema.Integer()).
			Describe("Scroll distance in pixels.").WithDefault(defaultScrollMagnitude)).
		Build()
}

func (h scrollAt) Invoke(ctx context.Context, s Surface, args Args) (map[string]any, error) {
	nx, ny, err := args.Point("x", "y")
	if err != nil {
		return nil, err
	}
	dir, err := args.StringOr("direction", "down")
	if err != nil {
		return nil, err
	}
	magnitude, err := args.NumberOr("magnitude", defaultScrollMagnitude)
	if err != nil {
		return nil, err
	}

	var dx, dy float64
	switch strings.ToLower(dir) {
	case "down":
		dy = magnitude
	case "up":
		dy = -magnitude
	case "right":
		dx = magnitude
	case "left":
		dx = -magnitude
	default:
		return nil, fmt.Errorf("unsupported scroll direction %q", dir)
	}

	x, y := toPixels(s, nx, ny)
	if err := h.moveTo(ctx, s, x, y); err != nil {
		return nil, err
	}
	return nil, s.MouseWheel(ctx, x, y, dx, dy)
}
