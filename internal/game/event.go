package game

import "time"

// Event is emitted once per note when it reaches a terminal state.
type Event struct {
	Note   int           `json:"note"`
	Line   int           `json:"line"`
	Kind   Judgement     `json:"kind"`
	Offset time.Duration `json:"offset"` // hit time minus note time, zero for misses
	At     time.Duration `json:"at"`     // corrected chart time of the transition

	Highlight bool `json:"highlight,omitempty"` // judged together with notes on other lines
	Silent    bool `json:"silent,omitempty"`    // skipped by a seek or session end, no animation
}

func (e Event) OffsetMs() float64 {
	return float64(e.Offset) / float64(time.Millisecond)
}
