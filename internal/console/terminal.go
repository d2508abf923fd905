package console

import (
	"io"
	"sync"
)

const clearScreen = "\033[H\033[2J"

// Terminal is a Buffer whose output is mirrored to a writer, typically stdout.
// The terminal already echoes keystrokes, so typed lines are not written back.
type Terminal struct {
	*Buffer
	mu  sync.Mutex
	out io.Writer
}

func NewTerminal(out io.Writer) *Terminal {
	b := NewBuffer()
	b.echo = false
	return &Terminal{Buffer: b, out: out}
}

func (t *Terminal) Append(text string) {
	t.Buffer.Append(text)
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = io.WriteString(t.out, text)
}

func (t *Terminal) Clear() {
	t.Buffer.Clear()
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = io.WriteString(t.out, clearScreen)
}

func (t *Terminal) ScrollToEnd() {
	if f, ok := t.out.(interface{ Sync() error }); ok {
		_ = f.Sync()
	}
}
