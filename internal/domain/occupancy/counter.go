package occupancy

import "sync"

// Counter is the shared non-negative occupant count. The master node owns
// the ground truth and mutates it with ApplyDelta; slaves hold a cached
// copy updated only through SetAbsolute from the master's retained
// broadcast, so the views converge regardless of delta ordering.
type Counter struct {
	mu    sync.Mutex
	count int
}

// Count returns the current value.
func (c *Counter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.count
}

// ApplyDelta adjusts the count by d, clamping at zero, and returns the
// resulting value. Master only.
func (c *Counter) ApplyDelta(d int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.count += d
	if c.count < 0 {
		c.count = 0
	}

	return c.count
}

// SetAbsolute replaces the count with v, clamping at zero. Slaves apply
// the master's broadcast through this.
func (c *Counter) SetAbsolute(v int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v < 0 {
		v = 0
	}

	c.count = v
}
