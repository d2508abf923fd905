package kernel

import (
	"time"

	"rosh/internal/util/future"
	"rosh/internal/vfs"
)

// Ctx is the kernel handle a process receives for the duration of one step or
// one message delivery. The kernel lock is already held, so none of its
// methods lock. Do not retain a Ctx or hand it to a task; tasks get the
// *Kernel instead.
type Ctx struct {
	k    *Kernel
	Self PID
}

func (c *Ctx) Print(text string) { c.k.print(text) }

func (c *Ctx) Clear() { c.k.console.Clear() }

// ReadLine pops the oldest completed console input line.
func (c *Ctx) ReadLine() (string, bool) { return c.k.console.ReadLine() }

func (c *Ctx) Send(to PID, msg Message) {
	if pr, ok := c.k.procs[c.Self]; ok {
		pr.msgsOut++
	}
	c.k.send(to, msg)
}

func (c *Ctx) Spawn(p Process) PID { return c.k.spawn(p) }

// Kill removes pid immediately. A process killing itself still finishes the
// current step.
func (c *Ctx) Kill(pid PID) { c.k.kill(pid) }

func (c *Ctx) Time() time.Time { return c.k.time }

func (c *Ctx) SetTime(t time.Time) { c.k.time = t }

// Now reads the kernel's clock source, not the mirrored time.
func (c *Ctx) Now() time.Time { return c.k.now() }

func (c *Ctx) Timestamp() string { return c.k.time.UTC().Format(TimestampLayout) }

func (c *Ctx) TickCount() uint64 { return c.k.tickCount }

func (c *Ctx) FS() *vfs.FS { return c.k.fs }

func (c *Ctx) Processes() []ProcessInfo { return c.k.processes() }

func (c *Ctx) Go(name string, fn TaskFunc) (*future.Future[string], error) {
	return c.k.Go(name, fn)
}

// Kernel returns the shared kernel for capture by tasks.
func (c *Ctx) Kernel() *Kernel { return c.k }
