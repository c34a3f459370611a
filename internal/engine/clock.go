// Package engine provides the day clock and the simulation that runs on it.
package engine

import (
	"fmt"
	"time"
)

// Speed is a clock rate. The value is the day multiplier.
type Speed int

const (
	Paused Speed = 0
	X1     Speed = 1
	X2     Speed = 2
	X5     Speed = 5
)

// speeds is the cycle order for CycleUp and CycleDown.
var speeds = []Speed{Paused, X1, X2, X5}

func (s Speed) String() string {
	if s == Paused {
		return "paused"
	}
	return fmt.Sprintf("x%d", int(s))
}

// ParseSpeed reads "paused", "x1", "x2" or "x5".
func ParseSpeed(v string) (Speed, bool) {
	for _, s := range speeds {
		if s.String() == v {
			return s, true
		}
	}
	return Paused, false
}

// DefaultDayLength is the real time one day takes at X1.
const DefaultDayLength = time.Second

// DayListener receives day events.
type DayListener interface {
	OnDay(day uint64)
}

// DayFunc adapts a function to DayListener.
type DayFunc func(day uint64)

// OnDay calls f(day).
func (f DayFunc) OnDay(day uint64) { f(day) }

type subscription struct {
	id       int
	listener DayListener
}

// Clock accumulates elapsed time and broadcasts a day event each time a
// day's worth has passed at the current speed. Listeners run synchronously
// in subscription order.
type Clock struct {
	speed     Speed
	dayLength time.Duration
	accum     time.Duration
	day       uint64

	subs   []subscription
	nextID int
}

// NewClock creates a clock running at X1. A non-positive dayLength falls
// back to DefaultDayLength.
func NewClock(dayLength time.Duration) *Clock {
	if dayLength <= 0 {
		dayLength = DefaultDayLength
	}
	return &Clock{speed: X1, dayLength: dayLength}
}

// Subscribe registers l for day events and returns a function that
// removes it again.
func (c *Clock) Subscribe(l DayListener) (unsubscribe func()) {
	c.nextID++
	id := c.nextID
	c.subs = append(c.subs, subscription{id: id, listener: l})
	return func() {
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// Subscribers returns the number of registered listeners.
func (c *Clock) Subscribers() int {
	return len(c.subs)
}

// Advance adds dt to the accumulator. When a full day interval has built
// up the accumulator resets to zero and one day event is broadcast before
// Advance returns. It reports whether a day elapsed.
func (c *Clock) Advance(dt time.Duration) bool {
	if c.speed == Paused {
		return false
	}
	c.accum += dt
	if c.accum < c.Interval() {
		return false
	}
	c.accum = 0
	c.day++

	// Listeners added or removed during the broadcast take effect next day.
	subs := append([]subscription(nil), c.subs...)
	for _, s := range subs {
		s.listener.OnDay(c.day)
	}
	return true
}

// Interval returns the real time per day at the current speed.
func (c *Clock) Interval() time.Duration {
	if c.speed == Paused {
		return c.dayLength
	}
	return c.dayLength / time.Duration(c.speed)
}

// Speed returns the current speed.
func (c *Clock) Speed() Speed { return c.speed }

// Paused reports whether the clock is stopped.
func (c *Clock) Paused() bool { return c.speed == Paused }

// Day returns the number of days elapsed.
func (c *Clock) Day() uint64 { return c.day }

// SetSpeed switches to s. Unknown speeds are ignored.
func (c *Clock) SetSpeed(s Speed) {
	for _, known := range speeds {
		if known == s {
			c.speed = s
			return
		}
	}
}

// TogglePause swaps between Paused and X1.
func (c *Clock) TogglePause() {
	if c.speed == Paused {
		c.speed = X1
	} else {
		c.speed = Paused
	}
}

// CycleUp moves to the next faster speed, stopping at X5.
func (c *Clock) CycleUp() {
	c.speed = speeds[min(c.index()+1, len(speeds)-1)]
}

// CycleDown moves to the next slower speed, stopping at Paused.
func (c *Clock) CycleDown() {
	c.speed = speeds[max(c.index()-1, 0)]
}

// Restore sets the day counter, as after loading a save. The accumulator
// is cleared.
func (c *Clock) Restore(day uint64) {
	c.day = day
	c.accum = 0
}

func (c *Clock) index() int {
	for i, s := range speeds {
		if s == c.speed {
			return i
		}
	}
	return 0
}
