package calibration

import "time"

const (
	Cycle  = 2 * time.Second        // one metronome click per cycle
	Beat   = time.Second            // where in the cycle the click sits
	Accept = 200 * time.Millisecond // taps further off are ignored
	Keep   = 10
)

// Probe measures tap latency against a looping calibration track.
type Probe struct {
	record []time.Duration
}

// Tap takes the corrected song time of a tap.
func (p *Probe) Tap(t time.Duration) (time.Duration, bool) {
	phase := t % Cycle
	if phase < 0 {
		phase += Cycle
	}
	latency := phase - Beat
	if latency <= -Accept || latency >= Accept {
		return latency, false
	}
	p.record = append(p.record, latency)
	if len(p.record) > Keep {
		p.record = p.record[1:]
	}
	return latency, true
}

func (p *Probe) Samples() int {
	return len(p.record)
}

func (p *Probe) Average() time.Duration {
	if len(p.record) == 0 {
		return 0
	}
	var sum time.Duration
	for _, l := range p.record {
		sum += l
	}
	return sum / time.Duration(len(p.record))
}

// Suggest is the static offset that cancels the measured latency.
func (p *Probe) Suggest(static time.Duration) time.Duration {
	return static + p.Average()
}
