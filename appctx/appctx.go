// Package appctx carries the execution context a query application hands to
// its background components: the application name used to attribute errors
// and the clock every time comparison reads from.
package appctx

import (
	"sync"
	"time"
)

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// ManualClock is a Clock that only moves when told to. Safe for concurrent use.
type ManualClock struct {
	now time.Time
	mu  sync.RWMutex
}

// NewManualClock creates a ManualClock set to start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Context identifies the owning application and its time source.
type Context struct {
	Name  string
	Clock Clock
}

// New creates a Context. A nil clock falls back to SystemClock.
func New(name string, clock Clock) *Context {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Context{Name: name, Clock: clock}
}

// Now returns the context clock reading.
func (c *Context) Now() time.Time {
	return c.Clock.Now()
}

// Millis converts t to Unix milliseconds, the unit record timestamps use.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}
