package lazyfree

import "go.uber.org/atomic"

// Counters tracks lazy free work, in effort units. Pending work is charged
// before a job is submitted and settled by the job itself, so a reader never
// sees less pending work than is actually outstanding.
type Counters struct {
	pending atomic.Uint64
	freed   atomic.Uint64
}

// PendingCount returns the effort submitted but not yet released.
func (c *Counters) PendingCount() uint64 {
	return c.pending.Load()
}

// FreedCount returns the effort released by background jobs since the last
// reset.
func (c *Counters) FreedCount() uint64 {
	return c.freed.Load()
}

// ResetFreedStats zeroes the freed counter. Pending work is left alone.
func (c *Counters) ResetFreedStats() {
	c.freed.Store(0)
}

func (c *Counters) charge(n uint64) {
	c.pending.Add(n)
}

func (c *Counters) settle(n uint64) {
	c.pending.Sub(n)
	c.freed.Add(n)
}
