package svc

import (
	"log/slog"
	"strings"

	"rosh/internal/kernel"
)

// Reply prints out to the console and hands the prompt back to the shell at
// pid. Tasks call it exactly once when they finish.
func Reply(k *kernel.Kernel, shell kernel.PID, out string) {
	if out != "" {
		k.Print(Line(out))
	}
	k.Send(shell, kernel.SetWaitingForInput{Waiting: true})
}

// Hold asks the shell at pid to stop reading input.
func Hold(c *kernel.Ctx, shell kernel.PID) {
	slog.Debug("holding shell input", slog.Int64("from", int64(c.Self)))
	c.Send(shell, kernel.SetWaitingForInput{Waiting: false})
}

// Release hands input back to the shell at pid.
func Release(c *kernel.Ctx, shell kernel.PID) {
	slog.Debug("releasing shell input", slog.Int64("from", int64(c.Self)))
	c.Send(shell, kernel.SetWaitingForInput{Waiting: true})
}

// Line terminates s with a newline unless it already ends with one.
func Line(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
