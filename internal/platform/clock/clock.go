// Package clock provides an injectable time source so that lifecycle and
// adjudication logic stays deterministic under test.
package clock

import "time"

// Clock yields the current time.
type Clock interface {
	Now() time.Time
}

// Real reads the system clock.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

// Fixed always returns the same instant until advanced. Test use only.
type Fixed struct {
	t time.Time
}

func NewFixed(t time.Time) *Fixed { return &Fixed{t: t} }

func (f *Fixed) Now() time.Time { return f.t }

// Advance moves the fixed instant forward by d.
func (f *Fixed) Advance(d time.Duration) { f.t = f.t.Add(d) }

// Set replaces the fixed instant.
func (f *Fixed) Set(t time.Time) { f.t = t }
