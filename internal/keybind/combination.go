package keybind

import (
	"fmt"
	"strings"
	"unicode"
)

// KeyEvent is a single terminal keypress, normalized by whatever input
// backend the controller uses.
type KeyEvent struct {
	Code      KeyCode
	Modifiers KeyModifiers
}

// KeyCombination is one parsed key-combo string: an optional set of
// modifiers plus a base code.
type KeyCombination struct {
	Code      KeyCode
	Modifiers KeyModifiers
}

// ParseKeyCombination parses a `[modifier ]* code` string, e.g. "ctrl c"
// or "shift f2". "backtab" is accepted as a legacy alias for "shift tab".
// A modifier listed twice is a parse error.
func ParseKeyCombination(s string) (KeyCombination, error) {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 0 {
		return KeyCombination{}, fmt.Errorf("empty key combination")
	}

	codeToken := fields[len(fields)-1]
	modifierTokens := fields[:len(fields)-1]

	var modifiers KeyModifiers
	var code KeyCode
	if codeToken == "backtab" {
		modifiers |= ModShift
		code = KeyTab
	} else {
		c, err := parseKeyCode(codeToken)
		if err != nil {
			return KeyCombination{}, err
		}
		code = c
	}

	for _, tok := range modifierTokens {
		m, err := parseModifier(tok)
		if err != nil {
			return KeyCombination{}, err
		}
		if modifiers&m != 0 {
			return KeyCombination{}, fmt.Errorf("duplicate modifier %q", tok)
		}
		modifiers |= m
	}

	return KeyCombination{Code: code, Modifiers: modifiers}, nil
}

// Matches reports whether event represents this combination. Char codes
// compare case-insensitively since a terminal may report the code itself
// in caps when shift is held, letting the modifier field carry that
// information instead.
func (c KeyCombination) Matches(event KeyEvent) bool {
	return normalizeCode(c.Code) == normalizeCode(event.Code) && c.Modifiers == event.Modifiers
}

func normalizeCode(code KeyCode) KeyCode {
	runes := []rune(string(code))
	if len(runes) == 1 {
		return KeyCode(unicode.ToLower(runes[0]))
	}
	return code
}

// String renders a combination for display, e.g. "shift ctrl f2".
func (c KeyCombination) String() string {
	var parts []string
	for _, m := range modifierNames {
		if c.Modifiers&m.mod != 0 {
			parts = append(parts, m.name)
		}
	}
	parts = append(parts, string(c.Code))
	return strings.Join(parts, " ")
}
