// Package kernel drives a table of cooperative processes one tick at a time
// and delivers their messages in FIFO order after every sweep.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"rosh/internal/console"
	"rosh/internal/logger"
	"rosh/internal/util/future"
	"rosh/internal/vfs"
)

const (
	DefaultMaxTasks       = 64
	DefaultDeliveryBudget = 4096

	TimestampLayout = "2006-01-02 15:04:05"
)

var ErrPIDInUse = errors.New("kernel: pid in use")

// TaskFunc is the body of an asynchronous task. It may block on storage and
// must only reach the kernel through k, whose methods lock briefly.
type TaskFunc func(ctx context.Context, k *Kernel) (string, error)

type Option func(*Kernel)

func WithClock(now func() time.Time) Option {
	return func(k *Kernel) { k.now = now }
}

func WithMaxTasks(n int) Option {
	return func(k *Kernel) { k.maxTasks = n }
}

func WithDeliveryBudget(n int) Option {
	return func(k *Kernel) { k.deliveryBudget = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(k *Kernel) { k.log = l }
}

type Kernel struct {
	mu        sync.Mutex
	console   console.Console
	fs        *vfs.FS
	log       *slog.Logger
	lastPID   PID
	procs     map[PID]*proc
	queue     []envelope
	head      int
	tickCount uint64
	time      time.Time
	now       func() time.Time

	deliveryBudget int
	maxTasks       int

	baseCtx context.Context
	cancel  context.CancelFunc
	slots   *semaphore.Weighted
	tmu     sync.Mutex
	tasks   map[uint64]*future.Future[string]
	taskSeq uint64
	closed  bool
}

func New(con console.Console, fs *vfs.FS, opts ...Option) *Kernel {
	k := &Kernel{
		console:        con,
		fs:             fs,
		lastPID:        PIDReserved,
		procs:          make(map[PID]*proc),
		tasks:          make(map[uint64]*future.Future[string]),
		now:            time.Now,
		deliveryBudget: DefaultDeliveryBudget,
		maxTasks:       DefaultMaxTasks,
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.log == nil {
		k.log = logger.For("kernel")
	}
	if k.maxTasks < 1 {
		k.maxTasks = 1
	}
	if k.deliveryBudget < 1 {
		k.deliveryBudget = 1
	}
	k.slots = semaphore.NewWeighted(int64(k.maxTasks))
	k.baseCtx, k.cancel = context.WithCancel(context.Background())
	k.time = k.now()
	return k
}

// Tick steps every live process once in ascending pid order, then drains the
// message queue. The kernel lock is held for the whole pass.
func (k *Kernel) Tick() {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.tickCount++
	for _, pid := range k.sortedPIDs() {
		// killed earlier in this sweep
		pr, ok := k.procs[pid]
		if !ok {
			continue
		}
		pr.steps++
		pr.p.Tick(&Ctx{k: k, Self: pid})
	}
	k.drain()
}

// drain delivers queued messages head first, including messages enqueued by
// handlers during the drain, until the queue is empty or the per-tick
// delivery budget is spent. Leftovers keep their order for the next tick.
func (k *Kernel) drain() {
	delivered := 0
	for k.head < len(k.queue) {
		if delivered == k.deliveryBudget {
			k.log.Warn("delivery budget exhausted",
				"tick", k.tickCount, "budget", k.deliveryBudget, "pending", len(k.queue)-k.head)
			break
		}
		env := k.queue[k.head]
		k.queue[k.head] = envelope{}
		k.head++
		delivered++
		k.deliver(env)
	}

	n := copy(k.queue, k.queue[k.head:])
	clear(k.queue[n:])
	k.queue = k.queue[:n]
	k.head = 0
}

func (k *Kernel) deliver(env envelope) {
	pr, ok := k.procs[env.to]
	if !ok {
		k.log.Debug("message dropped", "pid", env.to, "msg", env.msg)
		return
	}
	pr.msgsIn++
	if h, ok := pr.p.(MessageHandler); ok {
		h.OnMessage(&Ctx{k: k, Self: env.to}, env.msg)
	}
	if _, ok := env.msg.(Kill); ok {
		k.kill(env.to)
	}
}

func (k *Kernel) sortedPIDs() []PID {
	pids := make([]PID, 0, len(k.procs))
	for pid := range k.procs {
		pids = append(pids, pid)
	}
	slices.Sort(pids)
	return pids
}

// Spawn installs p under the next free pid and returns it. Pids are never
// reused.
func (k *Kernel) Spawn(p Process) PID {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.spawn(p)
}

func (k *Kernel) spawn(p Process) PID {
	k.lastPID++
	pid := k.lastPID
	k.install(p, pid)
	return pid
}

// SpawnWithPID installs a system process under a well-known pid.
func (k *Kernel) SpawnWithPID(p Process, pid PID) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.procs[pid]; ok {
		return fmt.Errorf("%w: %d", ErrPIDInUse, pid)
	}
	if pid > k.lastPID {
		k.lastPID = pid
	}
	k.install(p, pid)
	return nil
}

func (k *Kernel) install(p Process, pid PID) {
	p.SetPID(pid)
	k.procs[pid] = &proc{p: p}
	k.log.Info("process spawned", "pid", pid, "name", p.Name())
}

// Kill removes pid from the process table. Killing an absent pid is a no-op.
func (k *Kernel) Kill(pid PID) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.kill(pid)
}

func (k *Kernel) kill(pid PID) {
	pr, ok := k.procs[pid]
	if !ok {
		k.log.Debug("kill: no such process", "pid", pid)
		return
	}
	delete(k.procs, pid)
	k.log.Info("process killed", "pid", pid, "name", pr.p.Name(), "steps", pr.steps)
}

// Send queues msg for pid. Delivery happens in the drain of the next Tick.
func (k *Kernel) Send(pid PID, msg Message) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.send(pid, msg)
}

func (k *Kernel) send(pid PID, msg Message) {
	k.queue = append(k.queue, envelope{to: pid, msg: msg})
}

// Pending reports the number of queued, undelivered messages.
func (k *Kernel) Pending() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.queue) - k.head
}

func (k *Kernel) Print(text string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.print(text)
}

func (k *Kernel) print(text string) {
	k.console.Append(text)
	k.console.ScrollToEnd()
}

func (k *Kernel) Clear() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.console.Clear()
}

func (k *Kernel) Time() time.Time {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.time
}

func (k *Kernel) SetTime(t time.Time) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.time = t
}

func (k *Kernel) Timestamp() string {
	return k.Time().UTC().Format(TimestampLayout)
}

func (k *Kernel) TickCount() uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.tickCount
}

func (k *Kernel) Processes() []ProcessInfo {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.processes()
}

func (k *Kernel) processes() []ProcessInfo {
	pids := k.sortedPIDs()
	out := make([]ProcessInfo, 0, len(pids))
	for _, pid := range pids {
		pr := k.procs[pid]
		out = append(out, ProcessInfo{
			PID:         pid,
			Name:        pr.p.Name(),
			Steps:       pr.steps,
			MessagesIn:  pr.msgsIn,
			MessagesOut: pr.msgsOut,
		})
	}
	return out
}

// FS is safe to use without the kernel lock; it has its own.
func (k *Kernel) FS() *vfs.FS { return k.fs }

// Go runs fn on its own goroutine. The returned future completes with fn's
// result. ErrTooManyTasks is returned when every task slot is taken.
func (k *Kernel) Go(name string, fn TaskFunc) (*future.Future[string], error) {
	k.tmu.Lock()
	defer k.tmu.Unlock()
	if k.closed {
		return nil, ErrShutdown
	}
	if !k.slots.TryAcquire(1) {
		k.log.Warn("task rejected", "task", name, "max", k.maxTasks)
		return nil, ErrTooManyTasks
	}
	k.taskSeq++
	id := k.taskSeq
	ctx := k.baseCtx
	f := future.New(func() (out string, err error) {
		// blocks until Go has registered the future
		defer k.forget(id)
		defer k.slots.Release(1)
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task %s panicked: %v", name, r)
			}
			if err != nil {
				k.log.Warn("task failed", "task", name, "error", err)
			}
		}()
		return fn(ctx, k)
	})
	k.tasks[id] = f
	return f, nil
}

func (k *Kernel) forget(id uint64) {
	k.tmu.Lock()
	defer k.tmu.Unlock()
	delete(k.tasks, id)
}

// running snapshots the futures of tasks that have not returned yet.
func (k *Kernel) running() []*future.Future[string] {
	k.tmu.Lock()
	defer k.tmu.Unlock()
	return slices.Collect(maps.Values(k.tasks))
}

// Tasks reports the number of running tasks.
func (k *Kernel) Tasks() int {
	k.tmu.Lock()
	defer k.tmu.Unlock()
	return len(k.tasks)
}

// Wait blocks until every running task has returned, including tasks started
// while waiting.
func (k *Kernel) Wait() {
	for {
		pending := k.running()
		if len(pending) == 0 {
			return
		}
		for _, f := range pending {
			_, _ = f.Await()
		}
	}
}

// Shutdown stops accepting tasks, cancels the running ones, waits for them up
// to ctx and closes the filesystem.
func (k *Kernel) Shutdown(ctx context.Context) error {
	k.tmu.Lock()
	if k.closed {
		k.tmu.Unlock()
		return nil
	}
	k.closed = true
	k.tmu.Unlock()

	k.cancel()
	var err error
	// no task can start once closed is set
	for _, f := range k.running() {
		if _, _ = f.AwaitContext(ctx); ctx.Err() != nil {
			err = fmt.Errorf("waiting for tasks: %w", ctx.Err())
			break
		}
	}
	if k.fs != nil {
		err = errors.Join(err, k.fs.Close())
	}
	k.LogStatus()
	return err
}

// LogStatus writes the process table to the log in pid order.
func (k *Kernel) LogStatus() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.log.Info("process table", "count", len(k.procs), "tick", k.tickCount,
		"queued", len(k.queue)-k.head, "tasks", k.Tasks())
	for _, info := range k.processes() {
		k.log.Info("process",
			"pid", info.PID, "name", info.Name, "steps", info.Steps,
			"in", info.MessagesIn, "out", info.MessagesOut)
	}
}
