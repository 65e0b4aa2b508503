package engine

import "time"

// Clock paces the interpreter during WAIT commands. The virtual clock
// removes real delays so runs become deterministic for tests and offline
// rendering.
type Clock interface {
	// Now returns seconds since the clock started.
	Now() float64
	// SleepUntil blocks until Now() reaches t or stop closes.
	SleepUntil(t float64, stop <-chan struct{})
}

// RealClock follows wall time.
type RealClock struct {
	start time.Time
}

// NewRealClock starts a wall clock at zero.
func NewRealClock() *RealClock {
	return &RealClock{start: time.Now()}
}

func (c *RealClock) Now() float64 {
	return time.Since(c.start).Seconds()
}

func (c *RealClock) SleepUntil(t float64, stop <-chan struct{}) {
	d := time.Duration((t - c.Now()) * float64(time.Second))
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-stop:
	}
}

// VirtualClock advances instantly to whatever time is asked of it.
// OnWait, when set, observes each wait before the jump.
type VirtualClock struct {
	now    float64
	OnWait func(until float64)
}

// NewVirtualClock starts a virtual clock at zero.
func NewVirtualClock() *VirtualClock {
	return &VirtualClock{}
}

func (c *VirtualClock) Now() float64 {
	return c.now
}

func (c *VirtualClock) SleepUntil(t float64, stop <-chan struct{}) {
	if c.OnWait != nil {
		c.OnWait(t)
	}
	if t > c.now {
		c.now = t
	}
}
