package config

import (
	"sync/atomic"
	"time"
)

// Live holds the values a settings overlay may change while a session runs.
// There is one writer, the overlay, and the session reads once per tick.
type Live struct {
	offset atomic.Int64
	auto   atomic.Bool
}

func NewLive(s Settings) *Live {
	l := &Live{}
	l.offset.Store(int64(s.StaticOffset))
	l.auto.Store(s.AutoLatency)
	return l
}

func (l *Live) StaticOffset() time.Duration {
	return time.Duration(l.offset.Load())
}

func (l *Live) SetStaticOffset(d time.Duration) {
	l.offset.Store(int64(d))
}

// Nudge shifts the static offset and returns the new value.
func (l *Live) Nudge(d time.Duration) time.Duration {
	return time.Duration(l.offset.Add(int64(d)))
}

func (l *Live) AutoLatency() bool {
	return l.auto.Load()
}

func (l *Live) SetAutoLatency(on bool) {
	l.auto.Store(on)
}

// Persist copies the live values that outlast a session onto the settings as
// they were loaded. The static offset is left alone; see ChartOffset.
func (l *Live) Persist(stored Settings) Settings {
	stored.AutoLatency = l.AutoLatency()
	return stored
}

// ChartOffset is how far the live static offset moved from base.
func (l *Live) ChartOffset(base time.Duration) time.Duration {
	return l.StaticOffset() - base
}
