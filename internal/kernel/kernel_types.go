package kernel

import "errors"

type PID int64

// Well-known pids for system processes. Dynamic pids start above PIDReserved.
const (
	PIDClock    PID = 1
	PIDShell    PID = 2
	PIDReserved PID = 1000
)

var (
	ErrTooManyTasks = errors.New("kernel: too many running tasks")
	ErrShutdown     = errors.New("kernel: shutting down")
)

// Process is a schedulable unit. Tick runs to completion once per kernel tick
// and must never block.
type Process interface {
	PID() PID
	// SetPID is called once by the kernel when the process is installed.
	SetPID(pid PID)
	Name() string
	Tick(ctx *Ctx)
}

// MessageHandler is implemented by processes that react to messages. It is
// only invoked while the kernel drains its queue, never during the sweep.
type MessageHandler interface {
	OnMessage(ctx *Ctx, msg Message)
}

// Base carries the identity of a process and is meant to be embedded.
type Base struct {
	pid  PID
	name string
}

func NewBase(name string) Base {
	return Base{name: name}
}

func (b *Base) PID() PID       { return b.pid }
func (b *Base) SetPID(pid PID) { b.pid = pid }
func (b *Base) Name() string   { return b.name }

// ProcessInfo is a snapshot row of the process table.
type ProcessInfo struct {
	PID         PID    `json:"pid"`
	Name        string `json:"name"`
	Steps       uint64 `json:"steps"`
	MessagesIn  uint64 `json:"messages_in"`
	MessagesOut uint64 `json:"messages_out"`
}

// proc is the table record for one process plus simple accounting.
type proc struct {
	p       Process
	steps   uint64
	msgsIn  uint64
	msgsOut uint64
}
