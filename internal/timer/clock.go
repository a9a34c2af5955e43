package timer

import (
	"sync/atomic"
	"time"
)

// Clock supplies a monotonically increasing millisecond counter that wraps
// at math.MaxUint32.
type Clock interface {
	Millis() uint32
}

// ClockFunc adapts a plain function to Clock.
type ClockFunc func() uint32

func (f ClockFunc) Millis() uint32 {
	return f()
}

// SystemClock counts milliseconds since it was created, using the
// monotonic reading of the process clock.
type SystemClock struct {
	epoch time.Time
}

func NewSystemClock() *SystemClock {
	return &SystemClock{epoch: time.Now()}
}

func (c *SystemClock) Millis() uint32 {
	return uint32(time.Since(c.epoch).Milliseconds())
}

// ManualClock only moves when told to. It is safe to advance from one
// goroutine while another reads it.
type ManualClock struct {
	now atomic.Uint32
}

func NewManualClock(start uint32) *ManualClock {
	c := &ManualClock{}
	c.now.Store(start)

	return c
}

func (c *ManualClock) Millis() uint32 {
	return c.now.Load()
}

// Set jumps the clock to ms.
func (c *ManualClock) Set(ms uint32) {
	c.now.Store(ms)
}

// Advance moves the clock forward by d milliseconds, wrapping at the top
// of the range, and returns the new reading.
func (c *ManualClock) Advance(d uint32) uint32 {
	return c.now.Add(d)
}
