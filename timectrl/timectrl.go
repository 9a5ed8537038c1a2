package timectrl

import (
	"context"
	"sync"
	"time"
)

// SimClock supplies the instant at which satellite positions are propagated.
// Components depend on this rather than time.Now so tests can pin the epoch.
type SimClock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now implements SimClock.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always reports the same instant until Set is called.
type FixedClock struct {
	mu sync.RWMutex
	t  time.Time
}

// NewFixedClock returns a clock pinned at t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{t: t.UTC()}
}

// Now implements SimClock.
func (c *FixedClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.t
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t.UTC()
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// Mode describes how the TimeController advances simulation time.
type Mode int

const (
	// RealTime follows the wall clock on every tick.
	RealTime Mode = iota
	// Accelerated steps simulation time by Tick on every tick regardless of
	// how much wall time elapsed.
	Accelerated
)

// Listener is invoked once per tick with the new simulation time.
type Listener func(ctx context.Context, simTime time.Time)

// TimeController drives simulation time and notifies registered listeners.
// It implements SimClock.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	currentTime time.Time
	listeners   []Listener
}

// NewTimeController constructs a controller.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
	}
}

// Now returns the current simulation time. Implements SimClock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// SetTime overrides the current simulation time.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	tc.currentTime = t
	tc.mu.Unlock()
}

// AddListener registers a callback invoked on every tick.
func (tc *TimeController) AddListener(fn Listener) {
	tc.mu.Lock()
	tc.listeners = append(tc.listeners, fn)
	tc.mu.Unlock()
}

// Run advances time every Tick and calls the listeners until ctx is done.
// It returns ctx.Err() on exit.
func (tc *TimeController) Run(ctx context.Context) error {
	ticker := time.NewTicker(tc.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case wall := <-ticker.C:
			simTime := tc.advance(wall)

			tc.mu.RLock()
			listeners := append([]Listener(nil), tc.listeners...)
			tc.mu.RUnlock()

			for _, fn := range listeners {
				fn(ctx, simTime)
			}
		}
	}
}

// Start runs the controller for the given duration in a separate goroutine.
// The returned channel is closed when the controller finishes.
func (tc *TimeController) Start(duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	go func() {
		defer close(done)
		defer cancel()
		_ = tc.Run(ctx)
	}()
	return done
}

func (tc *TimeController) advance(wall time.Time) time.Time {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.Mode == RealTime {
		tc.currentTime = wall.UTC()
	} else {
		tc.currentTime = tc.currentTime.Add(tc.Tick)
	}
	return tc.currentTime
}
