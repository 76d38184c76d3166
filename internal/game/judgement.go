package game

import (
	"errors"
	"fmt"
	"time"
)

type Judgement uint8

const (
	Perfect Judgement = iota
	Good
	Bad
	Miss
	Broken // hold released too early
)

// Judgements in tracker order.
var Judgements = [...]Judgement{Perfect, Good, Bad, Miss, Broken}

func (j Judgement) String() string {
	switch j {
	case Perfect:
		return "Perfect"
	case Good:
		return "Good"
	case Bad:
		return "Bad"
	case Miss:
		return "Miss"
	case Broken:
		return "Broken"
	}
	return fmt.Sprintf("Judgement(%d)", uint8(j))
}

// Hit is true for the judgements that keep a combo alive.
func (j Judgement) Hit() bool {
	return j == Perfect || j == Good
}

// Windows are the timing tolerances of a chart. Bounds are inclusive.
type Windows struct {
	Perfect time.Duration
	Good    time.Duration
	Bad     time.Duration

	// A hold released at most this long before its end still counts as held
	HoldTail time.Duration
}

func DefaultWindows() Windows {
	return Windows{
		Perfect:  80 * time.Millisecond,
		Good:     160 * time.Millisecond,
		Bad:      220 * time.Millisecond,
		HoldTail: 160 * time.Millisecond,
	}
}

func (w Windows) Validate() error {
	if w.Perfect <= 0 {
		return errors.New("perfect window must be positive")
	}
	if w.Good < w.Perfect || w.Bad < w.Good {
		return fmt.Errorf("windows must widen: perfect %v, good %v, bad %v", w.Perfect, w.Good, w.Bad)
	}
	if w.HoldTail < 0 {
		return errors.New("hold tail tolerance must not be negative")
	}
	return nil
}

// Classify returns the tightest window containing the offset.
// ok is false when the offset lies outside the bad window.
func (w Windows) Classify(offset time.Duration) (j Judgement, ok bool) {
	d := abs(offset)
	switch {
	case d <= w.Perfect:
		return Perfect, true
	case d <= w.Good:
		return Good, true
	case d <= w.Bad:
		return Bad, true
	}
	return Miss, false
}

// Bound of the window backing a judgement.
func (w Windows) Bound(j Judgement) time.Duration {
	switch j {
	case Perfect:
		return w.Perfect
	case Good:
		return w.Good
	case Bad:
		return w.Bad
	}
	return -1
}

func abs(x time.Duration) time.Duration {
	if x < 0 {
		return -x
	}
	return x
}
