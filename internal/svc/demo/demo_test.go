package demo

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rosh/internal/console"
	"rosh/internal/kernel"
	"rosh/internal/vfs"
)

// inbox stands in for the shell and records what it is sent.
type inbox struct {
	kernel.Base
	got []kernel.Message
}

func (i *inbox) Tick(*kernel.Ctx) {}

func (i *inbox) OnMessage(_ *kernel.Ctx, m kernel.Message) {
	i.got = append(i.got, m)
}

func newKernel(t *testing.T) (*kernel.Kernel, *console.Buffer) {
	t.Helper()
	con := console.NewBuffer()
	k := kernel.New(con, vfs.New(), kernel.WithLogger(slog.New(slog.DiscardHandler)))
	t.Cleanup(func() { _ = k.Shutdown(context.Background()) })
	return k, con
}

func TestDemo_Lifecycle(t *testing.T) {
	k, con := newKernel(t)
	sh := &inbox{Base: kernel.NewBase("shell")}
	require.NoError(t, k.SpawnWithPID(sh, kernel.PIDShell))
	d := New(kernel.PIDShell, 61)
	pid := k.Spawn(d)

	k.Tick()
	assert.Equal(t, []kernel.Message{kernel.SetWaitingForInput{Waiting: false}}, sh.got)

	for i := 1; i < 61; i++ {
		k.Tick()
	}
	assert.Equal(t, 0, d.Left())
	assert.Len(t, sh.got, 1, "nothing else is sent while the demo runs")

	k.Tick()
	assert.Equal(t, []kernel.Message{
		kernel.SetWaitingForInput{Waiting: false},
		kernel.SetWaitingForInput{Waiting: true},
	}, sh.got)
	for _, p := range k.Processes() {
		assert.NotEqual(t, pid, p.PID)
	}

	assert.Equal(t,
		"[demo] tick 0 (61 left)\n[demo] tick 30 (31 left)\n[demo] tick 60 (1 left)\n",
		con.ReadAll())

	k.Tick()
	assert.Len(t, sh.got, 2)
}

func TestDemo_ZeroLifetime(t *testing.T) {
	k, con := newKernel(t)
	sh := &inbox{Base: kernel.NewBase("shell")}
	require.NoError(t, k.SpawnWithPID(sh, kernel.PIDShell))
	k.Spawn(New(kernel.PIDShell, -5))

	k.Tick()
	assert.Equal(t, []kernel.Message{
		kernel.SetWaitingForInput{Waiting: false},
		kernel.SetWaitingForInput{Waiting: true},
	}, sh.got)
	assert.Len(t, k.Processes(), 1)
	assert.Empty(t, con.ReadAll())
}
