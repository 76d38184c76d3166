// Package calibration estimates device latency from the timing of hits.
package calibration

import (
	"sync/atomic"
	"time"

	"git.lost.host/meutraa/judgeline/internal/game"
)

// State is a snapshot for the settings overlay.
type State struct {
	Static  time.Duration
	Dynamic time.Duration
	Recent  []time.Duration // oldest first
}

// Estimator keeps an exponentially weighted moving average of hit offsets.
//
// Offsets must be measured against the timeline corrected by the static
// offset only. Feeding offsets that already include the dynamic correction
// would make the average chase its own output.
type Estimator struct {
	alpha   float64
	max     float64
	enabled bool
	dynamic float64 // nanoseconds

	recent []time.Duration
	next   int
	filled bool

	published atomic.Int64
}

// NewEstimator keeps the last keep accepted offsets for display.
func NewEstimator(alpha float64, max time.Duration, keep int) *Estimator {
	if alpha <= 0 || alpha > 1 {
		alpha = 0.1
	}
	if keep <= 0 {
		keep = 1
	}
	return &Estimator{
		alpha:  alpha,
		max:    float64(max),
		recent: make([]time.Duration, keep),
	}
}

func (e *Estimator) Enabled() bool {
	return e.enabled
}

// SetEnabled switches the estimator. A disabled estimator forgets its value.
func (e *Estimator) SetEnabled(on bool) {
	if e.enabled == on {
		return
	}
	e.enabled = on
	if !on {
		e.dynamic = 0
		e.published.Store(0)
	}
}

// Offset is the dynamic correction to subtract from audio time.
func (e *Estimator) Offset() time.Duration {
	if !e.enabled {
		return 0
	}
	return time.Duration(e.dynamic)
}

// Published may be read from any goroutine.
func (e *Estimator) Published() time.Duration {
	return time.Duration(e.published.Load())
}

// Observe feeds one judgement. Only perfect and good hits are used, the rest
// are too noisy. It reports whether the offset was accepted.
func (e *Estimator) Observe(j game.Judgement, offset time.Duration) bool {
	if !e.enabled || !j.Hit() {
		return false
	}
	e.dynamic += e.alpha * (float64(offset) - e.dynamic)
	if e.max > 0 {
		if e.dynamic > e.max {
			e.dynamic = e.max
		} else if e.dynamic < -e.max {
			e.dynamic = -e.max
		}
	}
	e.recent[e.next] = offset
	e.next = (e.next + 1) % len(e.recent)
	if e.next == 0 {
		e.filled = true
	}
	e.published.Store(int64(e.dynamic))
	return true
}

func (e *Estimator) Reset() {
	e.dynamic = 0
	e.next = 0
	e.filled = false
	e.published.Store(0)
}

func (e *Estimator) State(static time.Duration) State {
	var recent []time.Duration
	if e.filled {
		recent = append(recent, e.recent[e.next:]...)
	}
	recent = append(recent, e.recent[:e.next]...)
	return State{Static: static, Dynamic: e.Offset(), Recent: recent}
}
