package game

import "time"

type InputKind uint8

const (
	Down InputKind = iota
	Move
	Up
)

func (k InputKind) String() string {
	switch k {
	case Down:
		return "down"
	case Move:
		return "move"
	case Up:
		return "up"
	}
	return "unknown"
}

// InputEvent is a validated pointer event timestamped in corrected chart time.
type InputEvent struct {
	Pointer int
	Kind    InputKind
	X, Y    float64
	Time    time.Duration
}
