// Package console is the text surface the kernel prints to and the shell reads
// completed input lines from.
package console

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
)

// Console is consumed by the kernel. Output is append-only; input arrives as
// whole lines.
type Console interface {
	ReadAll() string
	Append(text string)
	Clear()
	ScrollToEnd()
	// ReadLine pops the oldest completed input line without its terminator.
	ReadLine() (string, bool)
}

// Buffer keeps the console text and pending input lines in memory. Typed lines
// are echoed into the text the way a textarea shows keystrokes.
type Buffer struct {
	mu    sync.Mutex
	text  strings.Builder
	lines []string
	head  int
	echo  bool
}

func NewBuffer() *Buffer {
	return &Buffer{echo: true}
}

func (b *Buffer) ReadAll() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text.String()
}

func (b *Buffer) Append(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text.WriteString(text)
}

func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text.Reset()
}

func (b *Buffer) ScrollToEnd() {}

func (b *Buffer) ReadLine() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.head >= len(b.lines) {
		return "", false
	}
	line := b.lines[b.head]
	b.lines[b.head] = ""
	b.head++
	if b.head == len(b.lines) {
		b.lines = b.lines[:0]
		b.head = 0
	}
	return line, true
}

// Pending reports how many typed lines have not been read yet.
func (b *Buffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines) - b.head
}

// Type injects a completed line of input. Text containing newlines is split
// into several lines; a trailing fragment without a terminator is kept as a
// line of its own.
func (b *Buffer) Type(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	text = strings.TrimSuffix(text, "\n")
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if b.echo {
			b.text.WriteString(line)
			b.text.WriteByte('\n')
		}
		b.lines = append(b.lines, line)
	}
}

// Feed scans r line by line into the input queue until r is exhausted or ctx
// ends. Only terminated lines and a final unterminated line at EOF are queued.
func (b *Buffer) Feed(ctx context.Context, r io.Reader) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errc:
					return err
				default:
					return ctx.Err()
				}
			}
			b.Type(line)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
