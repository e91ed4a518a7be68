package main

import (
	"bufio"
	"context"

	"github.com/slumberhq/slumber/internal/keybind"
)

// stdinInputSource is the minimal concrete tui.InputSource wired into the
// binary. Translating raw terminal escape sequences (mouse events,
// bracketed paste, arrow-key CSI codes) into keybind.KeyEvent belongs to
// the terminal rendering layer, an external collaborator this package
// doesn't implement; this reads stdin one rune at a time and reports each
// rune (a newline included) as a plain, unmodified key press, good enough to
// drive the controller's message loop without a real raw-mode terminal
// backend.
type stdinInputSource struct {
	reader *bufio.Reader
}

func (s *stdinInputSource) Next(ctx context.Context) (keybind.KeyEvent, error) {
	r, _, err := s.reader.ReadRune()
	if err != nil {
		return keybind.KeyEvent{}, err
	}
	return keybind.KeyEvent{Code: keybind.KeyCode(string(r))}, nil
}
