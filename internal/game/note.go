package game

import (
	"fmt"
	"time"
)

// NoteKind is the closed set of note variants. Judgement logic switches on it.
type NoteKind uint8

const (
	Tap NoteKind = iota
	Hold
	Drag
	Flick
)

func (k NoteKind) String() string {
	switch k {
	case Tap:
		return "tap"
	case Hold:
		return "hold"
	case Drag:
		return "drag"
	case Flick:
		return "flick"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseNoteKind accepts the lower case names returned by String.
func ParseNoteKind(s string) (NoteKind, error) {
	switch s {
	case "tap", "click":
		return Tap, nil
	case "hold":
		return Hold, nil
	case "drag":
		return Drag, nil
	case "flick":
		return Flick, nil
	}
	return Tap, fmt.Errorf("unknown note kind %q", s)
}

type Note struct {
	ID      int           // Index into Chart.Notes, assigned by NewChart
	Kind    NoteKind      //
	Line    int           // Index into Chart.Lines
	Time    time.Duration // The time the note should be hit
	EndTime time.Duration // The time a hold should be released, zero otherwise
	X       float64       // Position along the line axis
	Speed   float64       // Scroll speed multiplier, only used for rendering

	// Another note on a different line shares this time
	Simultaneous bool
}

// Duration of the note, zero for anything but holds.
func (n *Note) Duration() time.Duration {
	if n.Kind != Hold {
		return 0
	}
	return n.EndTime - n.Time
}
