// Package shell is the interactive process. It reads one console line per tick
// while waiting for input, runs built-ins inline and hands every other command
// to a kernel task, staying busy until the task reports back.
package shell

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"rosh/internal/kernel"
	"rosh/internal/svc"
	"rosh/internal/svc/demo"
)

type Option func(*Shell)

// WithDemoLifetime sets how many ticks a demo spawned by the shell lives.
func WithDemoLifetime(ticks int) Option {
	return func(s *Shell) { s.demoLife = ticks }
}

type Shell struct {
	kernel.Base
	cwd      *Cwd
	waiting  bool
	started  bool
	demoLife int
	// matches an echoed prompt at the start of a line
	promptRe *regexp.Regexp
}

func New(opts ...Option) *Shell {
	s := &Shell{
		Base:     kernel.NewBase(svc.ShellProcess),
		cwd:      NewCwd("/"),
		waiting:  true,
		demoLife: demo.DefaultLifetime,
		promptRe: regexp.MustCompile(`^` + regexp.QuoteMeta(svc.User+"@"+svc.Hostname+":") + `[^$]*\$ ?`),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Waiting reports whether the shell reads input on its next step.
func (s *Shell) Waiting() bool { return s.waiting }

func (s *Shell) Cwd() string { return s.cwd.Get() }

func (s *Shell) Prompt() string {
	return fmt.Sprintf("%s@%s:%s$ ", svc.User, svc.Hostname, s.cwd.Get())
}

func (s *Shell) Tick(c *kernel.Ctx) {
	if !s.started {
		s.started = true
		c.Print(s.Prompt())
	}
	if !s.waiting {
		// typeahead stays queued in the console
		return
	}
	line, ok := c.ReadLine()
	if !ok {
		return
	}
	s.execute(c, s.strip(line))
}

func (s *Shell) OnMessage(c *kernel.Ctx, msg kernel.Message) {
	switch m := msg.(type) {
	case kernel.SetWaitingForInput:
		if m.Waiting && !s.waiting {
			s.waiting = true
			c.Print(s.Prompt())
			return
		}
		s.waiting = m.Waiting
	case kernel.Print:
		c.Print(m.Text)
	}
}

func (s *Shell) strip(line string) string {
	return strings.TrimSpace(s.promptRe.ReplaceAllString(line, ""))
}

func (s *Shell) execute(c *kernel.Ctx, line string) {
	args := strings.Fields(line)
	if len(args) == 0 {
		c.Print(s.Prompt())
		return
	}
	name := args[0]
	slog.Debug("shell command", slog.String("cmd", name), slog.Int("args", len(args)-1))

	if b, ok := builtins[name]; ok {
		b(s, c, strings.TrimSpace(strings.TrimPrefix(line, name)))
		if s.waiting {
			c.Print(s.Prompt())
		}
		return
	}
	if cmd, ok := commands[name]; ok {
		s.launch(c, name, cmd, args[1:])
		return
	}
	c.Print(fmt.Sprintf("Unknown: %s\n", name))
	c.Print(s.Prompt())
}
