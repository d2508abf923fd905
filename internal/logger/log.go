// Package logger configures the process-wide slog logger.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

type Options struct {
	Level  string
	Format string
	// File is optional; logs go to Stderr when it is empty or cannot be opened.
	File   string
	Stderr io.Writer
}

// Logger owns the handler output. Close releases the log file, if any.
type Logger struct {
	*slog.Logger
	out *fileWriter
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// New builds a logger from opts. Text output uses the tint colour handler,
// coloured only when writing to a terminal.
func New(opts Options) (*Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	var w io.Writer = stderr
	var fw *fileWriter
	if opts.File != "" {
		fw, err = openFile(opts.File)
		if err != nil {
			fmt.Fprintf(stderr, "%v; falling back to stderr\n", err)
		} else {
			w = fw
		}
	}

	var h slog.Handler
	switch strings.ToLower(opts.Format) {
	case FormatJSON:
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	case "", FormatText:
		h = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
			NoColor:    fw != nil || !isTerminal(w),
		})
	default:
		if fw != nil {
			_ = fw.Close()
		}
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}
	return &Logger{Logger: slog.New(h), out: fw}, nil
}

// For returns the default logger tagged with a component name. Call it after
// slog.SetDefault so the configured handler is picked up.
func For(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

// WatchHangup reopens the log file on SIGHUP so it can be rotated:
//
//	mv rosh.log rosh.log.1 && kill -HUP <pid>
//
// The returned func stops watching.
func (l *Logger) WatchHangup() (stop func()) {
	if l.out == nil {
		return func() {}
	}
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGHUP)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-sigs:
				if err := l.out.reopen(); err != nil {
					l.Error("reopen log file", "error", err)
				}
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

func (l *Logger) Close() error {
	if l.out == nil {
		return nil
	}
	return l.out.Close()
}

type fileWriter struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

func openFile(path string) (*fileWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory for %q: %w", path, err)
	}
	fw := &fileWriter{path: path}
	if err := fw.reopen(); err != nil {
		return nil, err
	}
	return fw, nil
}

func (w *fileWriter) reopen() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file %q: %w", w.path, err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f != nil {
		_ = w.f.Close()
	}
	w.f = f
	return nil
}

func (w *fileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Write(p)
}

func (w *fileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
