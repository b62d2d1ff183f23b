package queue

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff computes the wait before a failed job is offered again.
type Backoff struct {
	Base       time.Duration
	Multiplier float64
	Max        time.Duration
	// Jitter spreads each delay by up to this fraction in either direction.
	Jitter float64
}

var DefaultBackoff = Backoff{
	Base:       30 * time.Second,
	Multiplier: 2,
	Max:        time.Hour,
	Jitter:     0.2,
}

// Delay returns the wait after the given attempt (1-based) failed.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := b.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(b.Base) * math.Pow(mult, float64(attempt-1))
	if b.Jitter > 0 {
		d += d * b.Jitter * (2*rand.Float64() - 1)
	}
	if b.Max > 0 {
		d = min(d, float64(b.Max))
	}
	return time.Duration(d)
}
