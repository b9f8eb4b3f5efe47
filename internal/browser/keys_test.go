// internal/browser/keys_test.go
package browser

import (
	"testing"

	"github.com/chromedp/cdproto/input"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeyChord(t *testing.T) {
	tests := []struct {
		combo     string
		modifiers input.Modifier
		key       string
		code      string
		vk        int64
		text      string
		commands  []string
	}{
		{"Enter", 0, "Enter", "Enter", 13, "\r", nil},
		{"enter", 0, "Enter", "Enter", 13, "\r", nil},
		{"PageDown", 0, "PageDown", "PageDown", 34, "", nil},
		{"Control+A", input.ModifierCtrl, "a", "KeyA", 65, "", []string{"selectAll"}},
		{"ctrl+c", input.ModifierCtrl, "c", "KeyC", 67, "", []string{"copy"}},
		{"Meta+V", input.ModifierMeta, "v", "KeyV", 86, "", []string{"paste"}},
		{"Shift+a", input.ModifierShift, "A", "KeyA", 65, "A", nil},
		{"Control+Shift+T", input.ModifierCtrl | input.ModifierShift, "t", "KeyT", 84, "", nil},
		{"Alt+Tab", input.ModifierAlt, "Tab", "Tab", 9, "", nil},
		{"F5", 0, "F5", "F5", 116, "", nil},
		{"7", 0, "7", "Digit7", 55, "7", nil},
		{"Shift", 0, "Shift", "ShiftLeft", 16, "", nil},
		{"Control+Shift", input.ModifierCtrl, "Shift", "ShiftLeft", 16, "", nil},
		{"Control++", input.ModifierCtrl, "+", "", 0, "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.combo, func(t *testing.T) {
			chord, err := ParseKeyChord(tt.combo)
			require.NoError(t, err)
			assert.Equal(t, tt.modifiers, chord.Modifiers)
			assert.Equal(t, tt.key, chord.Key.Key)
			assert.Equal(t, tt.code, chord.Key.Code)
			assert.Equal(t, tt.vk, chord.Key.VK)
			assert.Equal(t, tt.text, chord.Key.Text)
			assert.Equal(t, tt.commands, chord.Commands)
		})
	}
}

func TestParseKeyChord_Errors(t *testing.T) {
	for _, combo := range []string{"", "Control+", "Hyper+A", "Control+NotAKey"} {
		t.Run(combo, func(t *testing.T) {
			_, err := ParseKeyChord(combo)
			assert.Error(t, err)
		})
	}
}

func TestKeyChordEvents(t *testing.T) {
	t.Run("printable keys send text on keydown", func(t *testing.T) {
		chord, err := ParseKeyChord("Enter")
		require.NoError(t, err)
		down, up := chord.events()
		assert.Equal(t, input.KeyDown, down.Type)
		assert.Equal(t, "\r", down.Text)
		assert.Equal(t, input.KeyUp, up.Type)
		assert.Empty(t, up.Text)
	})

	t.Run("shortcuts use raw keydown with commands", func(t *testing.T) {
		chord, err := ParseKeyChord("Control+A")
		require.NoError(t, err)
		down, up := chord.events()
		assert.Equal(t, input.KeyRawDown, down.Type)
		assert.Equal(t, input.ModifierCtrl, down.Modifiers)
		assert.Equal(t, []string{"selectAll"}, down.Commands)
		assert.Equal(t, input.ModifierCtrl, up.Modifiers)
	})
}
