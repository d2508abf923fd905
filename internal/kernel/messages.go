package kernel

import "fmt"

// Message is a tagged value addressed to a process by pid. The set of
// messages is closed.
type Message interface {
	isMessage()
}

// SetWaitingForInput tells the shell whether it may read the next line.
type SetWaitingForInput struct {
	Waiting bool
}

// Print asks the receiver to write Text to the console.
type Print struct {
	Text string
}

// Kill removes the receiver from the process table once its handler, if any,
// has seen the message. This is handled by the kernel.
type Kill struct{}

func (SetWaitingForInput) isMessage() {}
func (Print) isMessage()              {}
func (Kill) isMessage()               {}

func (m SetWaitingForInput) String() string { return fmt.Sprintf("SetWaitingForInput(%t)", m.Waiting) }
func (m Print) String() string              { return fmt.Sprintf("Print(%q)", m.Text) }
func (Kill) String() string                 { return "Kill" }

type envelope struct {
	to  PID
	msg Message
}
