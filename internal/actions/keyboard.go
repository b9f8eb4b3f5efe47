package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/xkilldash9x/pilot-cli/internal/toolschema"
)

var (
	_ Handler = typeTextAt{}
	_ Handler = keyCombination{}
)

type typeTextAt struct{ pointerOptions }

func (typeTextAt) Declaration() toolschema.ToolDeclaration {
	return toolschema.NewTool(TypeTextAt).
		Describe("Clicks at a coordinate and types text there. Clears the field and presses Enter by default.").
		Param("x", coordinate("X")).
		Param("y", coordinate("Y")).
		Param("text", toolschema.String().Describe("The text to type.")).
		Param("press_enter", toolschema.Optional(toolschema.Boolean()).
			Describe("Press Enter after typing.").WithDefault(true)).
		Param("clear_before_typing", toolschema.Optional(toolschema.Boolean()).
			Describe("Select and delete existing content before typing.").WithDefault(true)).
		Build()
}

func (h typeTextAt) Invoke(ctx context.Context, s Surface, args Args) (map[string]any, error) {
	nx, ny, err := args.Point("x", "y")
	if err != nil {
		return nil, err
	}
	text, err := args.String("text")
	if err != nil {
		return nil, err
	}
	pressEnter, err := args.BoolOr("press_enter", true)
	if err != nil {
		return nil, err
	}
	clearFirst, err := args.BoolOr("clear_before_typing", true)
	if err != nil {
		return nil, err
	}

	x, y := toPixels(s, nx, ny)
	if err := h.moveTo(ctx, s, x, y); err != nil {
		return nil, err
	}
	if err := s.MouseClick(ctx, x, y); err != nil {
		return nil, err
	}
	if clearFirst {
		if err := s.PressKeys(ctx, "Control+A"); err != nil {
			return nil, err
		}
		if err := s.PressKeys(ctx, "Backspace"); err != nil {
			return nil, err
		}
	}
	if err := s.TypeText(ctx, text); err != nil {
		return nil, err
	}
	if pressEnter {
		return nil, s.PressKeys(ctx, "Enter")
	}
	return nil, nil
}

type keyCombination struct{}

func (keyCombination) Declaration() toolschema.ToolDeclaration {
	return toolschema.NewTool(KeyCombination).
		Describe("Presses a key or key combination, such as 'Control+C' or 'Enter'.").
		Param("keys", toolschema.String().Describe("Keys joined with '+', for example 'Control+Shift+T'.")).
		Build()
}

func (keyCombination) Invoke(ctx context.Context, s Surface, args Args) (map[string]any, error) {
	keys, err := args.String("keys")
	if err != nil {
		return nil, err
	}
	keys = strings.TrimSpace(keys)
	if keys == "" {
		return nil, fmt.Errorf("argument 'keys' must not be empty")
	}
	return nil, s.PressKeys(ctx, keys)
}
