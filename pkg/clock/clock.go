package clock

import "time"

// Clock abstracts time.Now so entitlement checks and payment
// expiry can be tested at fixed instants.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func System() Clock { return systemClock{} }

// Fixed returns a clock pinned to t. Tests advance it via Set.
type Fixed struct {
	t time.Time
}

func NewFixed(t time.Time) *Fixed { return &Fixed{t: t} }

func (f *Fixed) Now() time.Time { return f.t }

func (f *Fixed) Set(t time.Time) { f.t = t }

func (f *Fixed) Advance(d time.Duration) { f.t = f.t.Add(d) }
