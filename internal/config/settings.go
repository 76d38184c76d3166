package config

import (
	"time"

	"git.lost.host/meutraa/judgeline/internal/game"
)

// Region is an axis aligned rectangle in input coordinates.
type Region struct {
	X0, Y0, X1, Y1 float64
}

func (r Region) Contains(x, y float64) bool {
	return x >= r.X0 && x <= r.X1 && y >= r.Y0 && y <= r.Y1
}

func (r Region) Empty() bool {
	return r.X1 <= r.X0 || r.Y1 <= r.Y0
}

// Settings is the immutable snapshot handed to a session at start.
// StaticOffset and AutoLatency only seed the Live cell.
type Settings struct {
	Windows game.Windows

	StaticOffset time.Duration
	AutoLatency  bool
	Alpha        float64       // estimator smoothing factor
	MaxDynamic   time.Duration // estimator clamp
	DriftForce   float64       // clock drift correction per audio update

	ForceGood      bool
	ForceBad       bool
	Highlight      bool
	Aggressive     bool
	DoubleTapPause bool
	Autoplay       bool

	Speed         float64
	HitRadius     float64 // max distance along the line between touch and note
	FlickDistance float64 // pointer travel that counts as a flick
	QueueSize     int
	PauseRegion   Region
	PauseInterval time.Duration // max gap between the taps of a double tap
}

func Default() Settings {
	return Settings{
		Windows:        game.DefaultWindows(),
		Alpha:          0.1,
		MaxDynamic:     200 * time.Millisecond,
		DriftForce:     1e-3,
		Highlight:      true,
		DoubleTapPause: true,
		Speed:          1,
		HitRadius:      0.5,
		FlickDistance:  0.3,
		QueueSize:      256,
		PauseInterval:  700 * time.Millisecond,
	}
}

// Effective resolves mutually exclusive toggles.
func (s Settings) Effective() Settings {
	if s.ForceBad {
		s.ForceGood = false
	}
	if s.Speed <= 0 {
		s.Speed = 1
	}
	if s.QueueSize <= 0 {
		s.QueueSize = Default().QueueSize
	}
	if s.PauseInterval <= 0 {
		s.PauseInterval = Default().PauseInterval
	}
	return s
}
