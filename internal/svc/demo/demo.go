// Package demo is a self-terminating process that borrows the shell prompt
// for its lifetime.
package demo

import (
	"fmt"

	"rosh/internal/kernel"
	"rosh/internal/svc"
)

const (
	DefaultLifetime = 120
	ReportEvery     = 30
)

type Demo struct {
	kernel.Base
	shell   kernel.PID
	counter int
	life    int
	started bool
}

// New returns a demo that reports to the shell at pid for lifetime ticks.
func New(shell kernel.PID, lifetime int) *Demo {
	if lifetime < 0 {
		lifetime = 0
	}
	return &Demo{
		Base:  kernel.NewBase(svc.DemoProcess),
		shell: shell,
		life:  lifetime,
	}
}

func (d *Demo) Tick(c *kernel.Ctx) {
	if !d.started {
		d.started = true
		svc.Hold(c, d.shell)
	}
	if d.life == 0 {
		svc.Release(c, d.shell)
		c.Kill(c.Self)
		return
	}
	if d.counter%ReportEvery == 0 {
		c.Print(fmt.Sprintf("[demo] tick %d (%d left)\n", d.counter, d.life))
	}
	d.counter++
	d.life--
}

// Left reports the remaining lifetime in ticks.
func (d *Demo) Left() int { return d.life }
