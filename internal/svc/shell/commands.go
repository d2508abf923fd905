package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"rosh/internal/kernel"
	"rosh/internal/svc"
)

// env is what a command task may touch besides the kernel.
type env struct {
	cwd   *Cwd
	shell kernel.PID
}

// command runs on a kernel task. It returns the text to print; failures are
// rendered into that text rather than returned.
type command func(ctx context.Context, k *kernel.Kernel, e *env, args []string) string

var commands = map[string]command{
	"ls":     runLs,
	"cd":     runCd,
	"mkdir":  runMkdir,
	"exists": runExists,
	"touch":  runTouch,
	"time":   runTime,
	"top":    runTop,
}

var synopses = map[string]string{
	"ls":     "ls [-a] [-l] [path]",
	"cd":     "cd <folder>",
	"mkdir":  "mkdir <folder>... [-v]",
	"exists": "exists <path>",
	"touch":  "touch <file>...",
	"time":   "time",
	"top":    "top",
}

// launch starts cmd on a task and marks the shell busy. The task always hands
// the prompt back, even when the command panics.
func (s *Shell) launch(c *kernel.Ctx, name string, cmd command, args []string) {
	e := &env{cwd: s.cwd, shell: s.PID()}
	s.waiting = false
	_, err := c.Go(name, func(ctx context.Context, k *kernel.Kernel) (out string, err error) {
		defer func() { svc.Reply(k, e.shell, out) }()
		return cmd(ctx, k, e, args), nil
	})
	if err != nil {
		s.waiting = true
		c.Print(fmt.Sprintf("%s: %v\n", name, err))
		c.Print(s.Prompt())
	}
}

func newFlags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SortFlags = false
	return fs
}

// parse parses args into fs. On failure it returns the usage text to print.
func parse(fs *pflag.FlagSet, args []string) (string, bool) {
	err := fs.Parse(args)
	if err == nil {
		return "", true
	}
	return usage(fs, err), false
}

func usage(fs *pflag.FlagSet, err error) string {
	var b strings.Builder
	if err != nil && !errors.Is(err, pflag.ErrHelp) {
		fmt.Fprintf(&b, "%s: %v\n", fs.Name(), err)
	}
	fmt.Fprintf(&b, "Usage: %s\n", synopses[fs.Name()])
	b.WriteString(fs.FlagUsages())
	return b.String()
}
