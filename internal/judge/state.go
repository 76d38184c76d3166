package judge

import "git.lost.host/meutraa/judgeline/internal/config"

// State of a note during a session.
//
//	Pending -> Judged | Missed
//	Pending -> HoldActive -> Judged | Broken    (holds only)
type State uint8

const (
	Pending State = iota
	HoldActive
	Judged
	Missed
	Broken
)

func (s State) Terminal() bool {
	return s >= Judged
}

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case HoldActive:
		return "hold-active"
	case Judged:
		return "judged"
	case Missed:
		return "missed"
	case Broken:
		return "broken"
	}
	return "unknown"
}

type Options struct {
	HitRadius     float64
	FlickDistance float64

	ForceGood bool // perfect is reported as good
	ForceBad  bool // perfect and good are reported as bad
	Highlight bool // one press may judge one note on every line it covers
	Autoplay  bool

	// Aggressive skips the chronological ordering of a tick's events and
	// stops looking for a better note after the first one a press can hit.
	// Every judgement still lies inside its window.
	Aggressive bool
}

func OptionsFrom(s config.Settings) Options {
	s = s.Effective()
	return Options{
		HitRadius:     s.HitRadius,
		FlickDistance: s.FlickDistance,
		ForceGood:     s.ForceGood,
		ForceBad:      s.ForceBad,
		Highlight:     s.Highlight,
		Autoplay:      s.Autoplay,
		Aggressive:    s.Aggressive,
	}
}
