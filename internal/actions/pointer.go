package actions

import (
	"context"

	"github.com/xkilldash9x/pilot-cli/internal/toolschema"
)

var (
	_ Handler = clickAt{}
	_ Handler = hoverAt{}
	_ Handler = dragAndDrop{}
)

func coordinate(axis string) toolschema.ParameterSchema {
	return toolschema.Integer().Describe(axis + " coordinate on a 0-1000 grid, scaled to the viewport.")
}

type pointerOptions struct {
	highlight bool
}

// moveTo positions the pointer, drawing feedback first when enabled.
func (p pointerOptions) moveTo(ctx context.Context, s Surface, x, y float64) error {
	if p.highlight {
		if err := s.Highlight(ctx, x, y); err != nil {
			return err
		}
	}
	return s.MouseMove(ctx, x, y)
}

type clickAt struct{ pointerOptions }

func (clickAt) Declaration() toolschema.ToolDeclaration {
	return toolschema.NewTool(ClickAt).
		Describe("Clicks at a specific coordinate on the page.").
		Param("x", coordinate("X")).
		Param("y", coordinate("Y")).
		Build()
}

func (h clickAt) Invoke(ctx context.Context, s Surface, args Args) (map[string]any, error) {
	nx, ny, err := args.Point("x", "y")
	if err != nil {
		return nil, err
	}
	x, y := toPixels(s, nx, ny)
	if err := h.moveTo(ctx, s, x, y); err != nil {
		return nil, err
	}
	return nil, s.MouseClick(ctx, x, y)
}

type hoverAt struct{ pointerOptions }

func (hoverAt) Declaration() toolschema.ToolDeclaration {
	return toolschema.NewTool(HoverAt).
		Describe("Moves the mouse to a specific coordinate without clicking.").
		Param("x", coordinate("X")).
		Param("y", coordinate("Y")).
		Build()
}

func (h hoverAt) Invoke(ctx context.Context, s Surface, args Args) (map[string]any, error) {
	nx, ny, err := args.Point("x", "y")
	if err != nil {
		return nil, err
	}
	x, y := toPixels(s, nx, ny)
	return nil, h.moveTo(ctx, s, x, y)
}

type dragAndDrop struct{ pointerOptions }

func (dragAndDrop) Declaration() toolschema.ToolDeclaration {
	return toolschema.NewTool(DragAndDrop).
		Describe("Drags from a starting coordinate and drops at a destination coordinate.").
		Param("x", coordinate("Starting X")).
		Param("y", coordinate("Starting Y")).
		Param("destination_x", coordinate("Destination X")).
		Param("destination_y", coordinate("Destination Y")).
		Build()
}

func (h dragAndDrop) Invoke(ctx context.Context, s Surface, args Args) (map[string]any, error) {
	nx, ny, err := args.Point("x", "y")
	if err != nil {
		return nil, err
	}
	ndx, ndy, err := args.Point("destination_x", "destination_y")
	if err != nil {
		return nil, err
	}
	x, y := toPixels(s, nx, ny)
	dx, dy := toPixels(s, ndx, ndy)

	if err := h.moveTo(ctx, s, x, y); err != nil {
		return nil, err
	}
	if err := s.MouseDown(ctx, x, y); err != nil {
		return nil, err
	}
	if err := s.MouseMove(ctx, dx, dy); err != nil {
		// Leave the button released so later actions start clean.
		_ = s.MouseUp(ctx, x, y)
		return nil, err
	}
	return nil, s.MouseUp(ctx, dx, dy)
}
