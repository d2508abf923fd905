package shell

import "sync"

// Cwd is the shell's working directory, shared with the tasks it launches.
type Cwd struct {
	mu   sync.RWMutex
	path string
}

func NewCwd(p string) *Cwd {
	return &Cwd{path: p}
}

func (c *Cwd) Get() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.path
}

func (c *Cwd) Set(p string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.path = p
}
