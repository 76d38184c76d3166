package game

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"
)

// Chart is the immutable timeline of a play session. Lines and notes live in
// flat slices and refer to each other by index only.
type Chart struct {
	Lines      []Line
	Notes      []Note // sorted by time, Notes[i].ID == i
	Windows    Windows
	Difficulty Difficulty

	NoteCount int64
	HoldCount int64
}

// NewChart validates and indexes lines and notes produced by a parser.
// The slices are copied.
func NewChart(lines []Line, notes []Note, windows Windows) (*Chart, error) {
	if err := windows.Validate(); nil != err {
		return nil, err
	}
	c := &Chart{
		Lines:   make([]Line, len(lines)),
		Notes:   make([]Note, len(notes)),
		Windows: windows,
	}
	for i, l := range lines {
		l.ID = i
		l.Keyframes = append([]Keyframe(nil), l.Keyframes...)
		l.sortKeyframes()
		c.Lines[i] = l
	}
	copy(c.Notes, notes)
	for i := range c.Notes {
		n := &c.Notes[i]
		if n.Line < 0 || n.Line >= len(lines) {
			return nil, fmt.Errorf("note at %v refers to missing line %d", n.Time, n.Line)
		}
		if n.Kind > Flick {
			return nil, fmt.Errorf("note at %v has unknown kind %d", n.Time, n.Kind)
		}
		if n.Kind == Hold {
			if n.EndTime <= n.Time {
				return nil, fmt.Errorf("hold at %v ends at %v", n.Time, n.EndTime)
			}
			c.HoldCount++
		} else {
			n.EndTime = 0
		}
		if n.Speed == 0 {
			n.Speed = 1
		}
	}
	sort.SliceStable(c.Notes, func(i, j int) bool {
		return c.Notes[i].Time < c.Notes[j].Time
	})
	for i := range c.Notes {
		c.Notes[i].ID = i
		c.Notes[i].Simultaneous = false
	}
	c.NoteCount = int64(len(c.Notes))
	c.markSimultaneous()
	return c, nil
}

// Notes sharing a time across at least two lines are drawn highlighted.
func (c *Chart) markSimultaneous() {
	for start := 0; start < len(c.Notes); {
		end := start + 1
		for end < len(c.Notes) && c.Notes[end].Time == c.Notes[start].Time {
			end++
		}
		for i := start + 1; i < end; i++ {
			if c.Notes[i].Line != c.Notes[start].Line {
				for j := start; j < end; j++ {
					c.Notes[j].Simultaneous = true
				}
				break
			}
		}
		start = end
	}
}

// End is the time after which no note can be judged any more.
func (c *Chart) End() time.Duration {
	var end time.Duration
	for i := range c.Notes {
		n := &c.Notes[i]
		t := n.Time
		if n.Kind == Hold {
			t = n.EndTime
		}
		if t > end {
			end = t
		}
	}
	return end + c.Windows.Bad
}

// LineTransform evaluates a line at time t.
func (c *Chart) LineTransform(line int, t time.Duration) Transform {
	return c.Lines[line].TransformAt(t)
}

// NotesInWindow returns a cursor over the notes with start <= Time <= end,
// in time order.
func (c *Chart) NotesInWindow(start, end time.Duration) *Cursor {
	lo := sort.Search(len(c.Notes), func(i int) bool { return c.Notes[i].Time >= start })
	hi := sort.Search(len(c.Notes), func(i int) bool { return c.Notes[i].Time > end })
	if hi < lo {
		hi = lo
	}
	return &Cursor{notes: c.Notes, lo: lo, hi: hi, i: lo}
}

// Cursor is a restartable lazy sequence of notes.
type Cursor struct {
	notes     []Note
	lo, hi, i int
}

func (c *Cursor) Next() (Note, bool) {
	if c.i >= c.hi {
		return Note{}, false
	}
	n := c.notes[c.i]
	c.i++
	return n, true
}

func (c *Cursor) Reset() {
	c.i = c.lo
}

func (c *Cursor) Len() int {
	return c.hi - c.lo
}

// Sum identifies the chart content for score history.
func (c *Chart) Sum() string {
	h := sha256.New()
	var buf [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	putf := func(f float64) { put(math.Float64bits(f)) }

	put(uint64(c.Windows.Perfect))
	put(uint64(c.Windows.Good))
	put(uint64(c.Windows.Bad))
	for _, l := range c.Lines {
		put(uint64(len(l.Keyframes)))
		for _, k := range l.Keyframes {
			put(uint64(k.Time))
			putf(k.X)
			putf(k.Y)
			putf(k.Rotation)
			putf(k.Opacity)
		}
	}
	for _, n := range c.Notes {
		put(uint64(n.Kind))
		put(uint64(n.Line))
		put(uint64(n.Time))
		put(uint64(n.EndTime))
		putf(n.X)
	}
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
