// Package clock provides an injectable time source so that time-driven
// business rules can be tested deterministically.
// This is part of the platform layer and contains no business logic.
package clock

import (
	"sync"
	"time"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Real is a Clock backed by the system clock.
type Real struct{}

// Now returns the current UTC time.
func (Real) Now() time.Time {
	return time.Now().UTC()
}

// Fake is a manually advanced Clock for tests.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake creates a Fake clock frozen at the given instant.
func NewFake(now time.Time) *Fake {
	return &Fake{now: now.UTC()}
}

// Now returns the frozen instant.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the fake clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Set moves the fake clock to the given instant.
func (f *Fake) Set(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now.UTC()
}
