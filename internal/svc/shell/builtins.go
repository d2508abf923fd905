package shell

import (
	"fmt"

	"rosh/internal/kernel"
	"rosh/internal/svc/demo"
)

const helpText = `Commands:
  help                 show this help
  clear                clear the console
  echo <text>          print text
  demo                 run the demo process
  ls [-a] [-l] [path]  list a folder
  cd <folder>          change the working folder
  mkdir <folder>... [-v]
  exists <path>
  touch <file>...      create empty files or bump their modification time
  time                 show the system clock
  top                  list processes
`

// builtin runs inline during the shell's step. rest is the line after the
// command name.
type builtin func(s *Shell, c *kernel.Ctx, rest string)

var builtins = map[string]builtin{
	"help":  runHelp,
	"clear": runClear,
	"echo":  runEcho,
	"demo":  runDemo,
}

func runHelp(_ *Shell, c *kernel.Ctx, _ string) {
	c.Print(helpText)
}

func runClear(_ *Shell, c *kernel.Ctx, _ string) {
	c.Clear()
}

func runEcho(_ *Shell, c *kernel.Ctx, rest string) {
	c.Print(rest + "\n")
}

// runDemo gives the prompt to a new demo process until it exits.
func runDemo(s *Shell, c *kernel.Ctx, _ string) {
	c.Print("Spawning demo process...\n")
	s.waiting = false
	pid := c.Spawn(demo.New(s.PID(), s.demoLife))
	c.Print(fmt.Sprintf("demo started with pid %d\n", pid))
}
