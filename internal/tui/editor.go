package tui

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// EditorLauncher yields the terminal to an external editor process for
// path and waits for it to exit. Abstracted so tests can substitute a
// no-op implementation instead of spawning a real editor.
type EditorLauncher interface {
	Launch(ctx context.Context, path string) error
}

// ExecEditorLauncher launches $EDITOR (falling back to vi) as a real
// subprocess with inherited stdio: os/exec.Command, inherited terminal,
// cmd.Wait for completion.
type ExecEditorLauncher struct {
	// Editor overrides $EDITOR when set, mainly for tests.
	Editor string
}

// Launch starts the editor on path and blocks until it exits.
func (l *ExecEditorLauncher) Launch(ctx context.Context, path string) error {
	editor := l.Editor
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}

	cmd := exec.CommandContext(ctx, editor, path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start editor %q: %w", editor, err)
	}
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("editor %q: %w", editor, err)
	}
	return nil
}

// runEditor handles an EditFile message: yield the terminal to the
// editor, wait for it to exit, and drain any input events the input
// goroutine received while the editor owned the terminal (editors such
// as vim emit spurious escape sequences on exit that would otherwise be
// misinterpreted as keypresses). The EditFile message is re-posted with
// Err populated so the view can react to a failed launch.
func (c *Controller) runEditor(m EditFile) {
	if c.editor == nil {
		return
	}
	err := c.editor.Launch(context.Background(), m.Path)
	c.drainStaleInput()
	c.Post(EditFile{Path: m.Path, Err: err})
}

// drainStaleInput discards any buffered input events without blocking,
// so terminal noise produced by an editor's exit (vim and friends emit
// spurious escape sequences as the alternate screen buffer tears down)
// doesn't get interpreted as real keypresses once the loop resumes
// reading input.
func (c *Controller) drainStaleInput() {
	for {
		select {
		case <-c.inputCh:
		default:
			return
		}
	}
}
