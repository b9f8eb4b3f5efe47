// internal/browser/keys.go
package browser

import (
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/input"
)

// keyDef describes one physical key as CDP expects it.
type keyDef struct {
	Key  string
	Code string
	VK   int64
	Text string
}

// KeyChord is a parsed combination: modifiers held while Key is pressed.
type KeyChord struct {
	Modifiers input.Modifier
	Key       keyDef
	// Commands are editing commands Chrome should run for the chord. Headless
	// Chrome ignores shortcuts such as Control+A without them.
	Commands []string
}

var modifierAliases = map[string]input.Modifier{
	"control": input.ModifierCtrl,
	"ctrl":    input.ModifierCtrl,
	"alt":     input.ModifierAlt,
	"option":  input.ModifierAlt,
	"shift":   input.ModifierShift,
	"meta":    input.ModifierMeta,
	"command": input.ModifierMeta,
	"cmd":     input.ModifierMeta,
}

var namedKeys = map[string]keyDef{
	"enter":      {Key: "Enter", Code: "Enter", VK: 13, Text: "\r"},
	"return":     {Key: "Enter", Code: "Enter", VK: 13, Text: "\r"},
	"tab":        {Key: "Tab", Code: "Tab", VK: 9},
	"backspace":  {Key: "Backspace", Code: "Backspace", VK: 8},
	"escape":     {Key: "Escape", Code: "Escape", VK: 27},
	"esc":        {Key: "Escape", Code: "Escape", VK: 27},
	"space":      {Key: " ", Code: "Space", VK: 32, Text: " "},
	"delete":     {Key: "Delete", Code: "Delete", VK: 46},
	"pageup":     {Key: "PageUp", Code: "PageUp", VK: 33},
	"pagedown":   {Key: "PageDown", Code: "PageDown", VK: 34},
	"end":        {Key: "End", Code: "End", VK: 35},
	"home":       {Key: "Home", Code: "Home", VK: 36},
	"arrowleft":  {Key: "ArrowLeft", Code: "ArrowLeft", VK: 37},
	"left":       {Key: "ArrowLeft", Code: "ArrowLeft", VK: 37},
	"arrowup":    {Key: "ArrowUp", Code: "ArrowUp", VK: 38},
	"up":         {Key: "ArrowUp", Code: "ArrowUp", VK: 38},
	"arrowright": {Key: "ArrowRight", Code: "ArrowRight", VK: 39},
	"right":      {Key: "ArrowRight", Code: "ArrowRight", VK: 39},
	"arrowdown":  {Key: "ArrowDown", Code: "ArrowDown", VK: 40},
	"down":       {Key: "ArrowDown", Code: "ArrowDown", VK: 40},
	"insert":     {Key: "Insert", Code: "Insert", VK: 45},
}

var chordCommands = map[string]string{
	"a": "selectAll",
	"c": "copy",
	"v": "paste",
	"x": "cut",
	"z": "undo",
	"y": "redo",
}

// ParseKeyChord parses combinations such as "Control+A", "Enter" or
// "Shift+Tab". Modifier and named key matching is case-insensitive.
func ParseKeyChord(combo string) (KeyChord, error) {
	var chord KeyChord
	parts := strings.Split(combo, "+")
	// "Control++" means Control and the plus key.
	if strings.HasSuffix(combo, "++") {
		parts = append(parts[:len(parts)-2], "+")
	}

	var keyName string
	for i, raw := range parts {
		p := strings.TrimSpace(raw)
		if p == "" {
			return KeyChord{}, fmt.Errorf("invalid key combination %q", combo)
		}
		if m, ok := modifierAliases[strings.ToLower(p)]; ok && i < len(parts)-1 {
			chord.Modifiers |= m
			continue
		}
		if i != len(parts)-1 {
			return KeyChord{}, fmt.Errorf("unknown modifier %q in %q", p, combo)
		}
		keyName = p
	}

	// A trailing modifier ("Shift", "Control+Shift") presses that modifier.
	if m, ok := modifierAliases[strings.ToLower(keyName)]; ok {
		chord.Key = modifierKey(m)
		return chord, nil
	}

	def, err := lookupKey(keyName)
	if err != nil {
		return KeyChord{}, fmt.Errorf("%w in %q", err, combo)
	}
	chord.Key = def

	editing := chord.Modifiers&(input.ModifierCtrl|input.ModifierMeta) != 0
	if editing {
		// Text is suppressed so the shortcut does not also type a character.
		chord.Key.Text = ""
		if cmd, ok := chordCommands[strings.ToLower(def.Key)]; ok {
			chord.Commands = []string{cmd}
		}
	} else if chord.Modifiers&input.ModifierShift != 0 && len(chord.Key.Text) == 1 {
		chord.Key.Text = strings.ToUpper(chord.Key.Text)
		chord.Key.Key = chord.Key.Text
	}
	return chord, nil
}

func lookupKey(name string) (keyDef, error) {
	if def, ok := namedKeys[strings.ToLower(name)]; ok {
		return def, nil
	}
	if len(name) >= 2 && (name[0] == 'F' || name[0] == 'f') {
		var n int
		if _, err := fmt.Sscanf(name[1:], "%d", &n); err == nil && n >= 1 && n <= 12 {
			k := fmt.Sprintf("F%d", n)
			return keyDef{Key: k, Code: k, VK: int64(111 + n)}, nil
		}
	}
	if len(name) != 1 {
		return keyDef{}, fmt.Errorf("unknown key %q", name)
	}

	c := name[0]
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		upper := strings.ToUpper(name)
		lower := strings.ToLower(name)
		return keyDef{Key: lower, Code: "Key" + upper, VK: int64(upper[0]), Text: lower}, nil
	case c >= '0' && c <= '9':
		return keyDef{Key: name, Code: "Digit" + name, VK: int64(c), Text: name}, nil
	default:
		return keyDef{Key: name, Text: name}, nil
	}
}

func modifierKey(m input.Modifier) keyDef {
	switch m {
	case input.ModifierCtrl:
		return keyDef{Key: "Control", Code: "ControlLeft", VK: 17}
	case input.ModifierAlt:
		return keyDef{Key: "Alt", Code: "AltLeft", VK: 18}
	case input.ModifierShift:
		return keyDef{Key: "Shift", Code: "ShiftLeft", VK: 16}
	default:
		return keyDef{Key: "Meta", Code: "MetaLeft", VK: 91}
	}
}

// events renders the chord as a keydown/keyup pair.
func (c KeyChord) events() (*input.DispatchKeyEventParams, *input.DispatchKeyEventParams) {
	downType := input.KeyRawDown
	if c.Key.Text != "" {
		downType = input.KeyDown
	}
	down := input.DispatchKeyEvent(downType).
		WithModifiers(c.Modifiers).
		WithKey(c.Key.Key).
		WithCode(c.Key.Code).
		WithWindowsVirtualKeyCode(c.Key.VK).
		WithNativeVirtualKeyCode(c.Key.VK)
	if c.Key.Text != "" {
		down = down.WithText(c.Key.Text).WithUnmodifiedText(c.Key.Text)
	}
	if len(c.Commands) > 0 {
		down = down.WithCommands(c.Commands)
	}
	up := input.DispatchKeyEvent(input.KeyUp).
		WithModifiers(c.Modifiers).
		WithKey(c.Key.Key).
		WithCode(c.Key.Code).
		WithWindowsVirtualKeyCode(c.Key.VK).
		WithNativeVirtualKeyCode(c.Key.VK)
	return down, up
}
