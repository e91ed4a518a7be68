// Package keybind maps terminal key events to the high-level Actions the
// TUI controller understands: a default Action -> []KeyCombination map,
// overridable by a YAML user config merged on top, where an action mapped
// to an empty binding list is dropped.
package keybind

import "fmt"

// KeyModifiers is a bitmask of the modifier keys held during a key event.
type KeyModifiers uint8

const (
	ModShift KeyModifiers = 1 << iota
	ModAlt
	ModCtrl
	ModSuper
	ModHyper
	ModMeta
)

var modifierNames = []struct {
	mod  KeyModifiers
	name string
}{
	{ModShift, "shift"},
	{ModAlt, "alt"},
	{ModCtrl, "ctrl"},
	{ModSuper, "super"},
	{ModHyper, "hyper"},
	{ModMeta, "meta"},
}

func parseModifier(s string) (KeyModifiers, error) {
	for _, m := range modifierNames {
		if m.name == s {
			return m.mod, nil
		}
	}
	return 0, fmt.Errorf("invalid key modifier %q", s)
}

// KeyCode is a single key, either a named key (the canonical names below)
// or a literal printable character held as its own one-rune string.
type KeyCode string

const (
	KeyEscape      KeyCode = "escape"
	KeyEnter       KeyCode = "enter"
	KeyLeft        KeyCode = "left"
	KeyRight       KeyCode = "right"
	KeyUp          KeyCode = "up"
	KeyDown        KeyCode = "down"
	KeyHome        KeyCode = "home"
	KeyEnd         KeyCode = "end"
	KeyPageUp      KeyCode = "pageup"
	KeyPageDown    KeyCode = "pagedown"
	KeyTab         KeyCode = "tab"
	KeyBackspace   KeyCode = "backspace"
	KeyDelete      KeyCode = "delete"
	KeyInsert      KeyCode = "insert"
	KeyCapsLock    KeyCode = "capslock"
	KeyScrollLock  KeyCode = "scrolllock"
	KeyNumLock     KeyCode = "numlock"
	KeyPrintScreen KeyCode = "printscreen"
	KeyPause       KeyCode = "pausebreak"
	KeyMenu        KeyCode = "menu"
	KeySpace       KeyCode = " "
)

// keyCodeAliases maps every accepted spelling to its canonical KeyCode.
// Multiple aliases (e.g. "esc"/"escape") resolve to the same code; only
// one spelling is used when stringifying a code back out.
var keyCodeAliases = map[string]KeyCode{
	"escape":      KeyEscape,
	"esc":         KeyEscape,
	"enter":       KeyEnter,
	"left":        KeyLeft,
	"right":       KeyRight,
	"up":          KeyUp,
	"down":        KeyDown,
	"home":        KeyHome,
	"end":         KeyEnd,
	"pageup":      KeyPageUp,
	"pgup":        KeyPageUp,
	"pagedown":    KeyPageDown,
	"pgdn":        KeyPageDown,
	"tab":         KeyTab,
	"backspace":   KeyBackspace,
	"delete":      KeyDelete,
	"del":         KeyDelete,
	"insert":      KeyInsert,
	"ins":         KeyInsert,
	"capslock":    KeyCapsLock,
	"caps":        KeyCapsLock,
	"scrolllock":  KeyScrollLock,
	"numlock":     KeyNumLock,
	"printscreen": KeyPrintScreen,
	"pausebreak":  KeyPause,
	"menu":        KeyMenu,
	"space":       KeySpace,
}

func fKey(n int) KeyCode { return KeyCode(fmt.Sprintf("f%d", n)) }

// parseKeyCode resolves a lowercase token to a KeyCode: a named alias, an
// "f<N>" function key, or a literal single character.
func parseKeyCode(s string) (KeyCode, error) {
	if code, ok := keyCodeAliases[s]; ok {
		return code, nil
	}
	if len(s) >= 2 && (s[0] == 'f' || s[0] == 'F') {
		if n, ok := parseFNumber(s[1:]); ok && n >= 1 && n <= 12 {
			return fKey(n), nil
		}
	}
	if len([]rune(s)) == 1 {
		return KeyCode(s), nil
	}
	return "", fmt.Errorf("invalid key code %q; key combinations should be space-separated", s)
}

func parseFNumber(s string) (int, bool) {
	n := 0
	if s == "" {
		return 0, false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}
