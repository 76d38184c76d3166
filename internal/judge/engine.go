// Package judge classifies every note of a chart against timed input.
//
// The engine is single threaded. The session calls Tick once per frame with
// one snapshot of corrected song time, the seeks since the last tick and the
// input drained from the dispatcher. Each note emits exactly one event, when
// it reaches a terminal state.
package judge

import (
	"math"
	"sort"
	"time"

	"git.lost.host/meutraa/judgeline/internal/clock"
	"git.lost.host/meutraa/judgeline/internal/game"
)

type noteState struct {
	state     State
	kind      game.Judgement // head judgement while a hold is active
	offset    time.Duration
	highlight bool

	armed   bool // drag or flick touched in time, emitted at note time
	armedAt time.Duration

	grace time.Duration // an uncovered hold survives until this time
	auto  bool
}

type pointer struct {
	x, y    float64
	originX float64 // flick gestures are measured from here
	originY float64
}

type Engine struct {
	chart *game.Chart
	w     game.Windows
	opt   Options

	notes     []noteState
	cursor    int // every note before it is terminal
	remaining int
	holds     []int
	armed     []int
	pointers  map[int]*pointer

	out []game.Event
}

func New(chart *game.Chart, opt Options) *Engine {
	return &Engine{
		chart:     chart,
		w:         chart.Windows,
		opt:       opt,
		notes:     make([]noteState, len(chart.Notes)),
		remaining: len(chart.Notes),
		pointers:  map[int]*pointer{},
	}
}

func (e *Engine) State(id int) State {
	return e.notes[id].state
}

// Remaining counts notes without a terminal state.
func (e *Engine) Remaining() int {
	return e.remaining
}

// Tick advances the engine to now. Inputs must be sorted by time; inputs
// stamped after now are treated as happening at now.
func (e *Engine) Tick(now time.Duration, jumps []clock.Jump, inputs []game.InputEvent) []game.Event {
	e.out = nil
	for _, j := range jumps {
		e.jump(j)
	}
	if e.opt.Autoplay {
		e.autoplay(now)
	} else {
		for _, in := range inputs {
			if in.Time > now {
				in.Time = now
			}
			e.input(in)
		}
		e.armStill(now)
	}
	e.emitArmed(now)
	e.updateHolds(now)
	e.sweep(now)
	e.advance()
	if !e.opt.Aggressive {
		sort.SliceStable(e.out, func(i, j int) bool {
			if e.out[i].At != e.out[j].At {
				return e.out[i].At < e.out[j].At
			}
			return e.out[i].Note < e.out[j].Note
		})
	}
	return e.out
}

// Track follows pointers without judging, used while paused.
func (e *Engine) Track(inputs []game.InputEvent) {
	for _, in := range inputs {
		switch in.Kind {
		case game.Down:
			e.pointers[in.Pointer] = &pointer{x: in.X, y: in.Y, originX: in.X, originY: in.Y}
		case game.Move:
			if p, ok := e.pointers[in.Pointer]; ok {
				p.x, p.y = in.X, in.Y
			}
		case game.Up:
			delete(e.pointers, in.Pointer)
		}
	}
}

// Resume gives active holds one good window to be covered again.
func (e *Engine) Resume(now time.Duration) {
	for _, id := range e.holds {
		e.notes[id].grace = now + e.w.Good
	}
}

// Finalize forces every remaining note into a terminal state.
func (e *Engine) Finalize(now time.Duration) []game.Event {
	e.out = nil
	for id := e.cursor; id < len(e.notes); id++ {
		s := &e.notes[id]
		switch s.state {
		case Pending:
			e.judge(id, game.Miss, 0, now, false, true)
		case HoldActive:
			n := &e.chart.Notes[id]
			if now >= n.EndTime-e.w.HoldTail {
				e.judge(id, s.kind, s.offset, now, s.highlight, true)
			} else {
				e.judge(id, game.Broken, 0, now, s.highlight, true)
			}
		}
	}
	e.holds = nil
	e.armed = nil
	e.advance()
	return e.out
}

func (e *Engine) input(in game.InputEvent) {
	switch in.Kind {
	case game.Down:
		e.pointers[in.Pointer] = &pointer{x: in.X, y: in.Y, originX: in.X, originY: in.Y}
		e.press(in)
		e.armDrags(in.X, in.Y, in.Time)
	case game.Move:
		p, ok := e.pointers[in.Pointer]
		if !ok {
			return
		}
		p.x, p.y = in.X, in.Y
		if math.Hypot(p.x-p.originX, p.y-p.originY) >= e.opt.FlickDistance {
			e.armFlicks(in.X, in.Y, in.Time)
			p.originX, p.originY = p.x, p.y
		}
		e.armDrags(in.X, in.Y, in.Time)
		e.checkHolds(in.Time)
	case game.Up:
		delete(e.pointers, in.Pointer)
		e.checkHolds(in.Time)
	}
}

func (e *Engine) covers(n *game.Note, x, y float64, t time.Duration) bool {
	tr := e.chart.LineTransform(n.Line, t)
	return math.Abs(tr.Along(x, y)-n.X) <= e.opt.HitRadius
}

func (e *Engine) covered(n *game.Note, t time.Duration) bool {
	for _, p := range e.pointers {
		if e.covers(n, p.x, p.y, t) {
			return true
		}
	}
	return false
}

// press judges taps and hold heads hit by a new pointer.
func (e *Engine) press(in game.InputEvent) {
	t := in.Time
	best := map[int]int{} // line, or -1 without highlight, to note id
	cur := e.chart.NotesInWindow(t-e.w.Bad, t+e.w.Bad)
	for n, ok := cur.Next(); ok; n, ok = cur.Next() {
		if n.Kind != game.Tap && n.Kind != game.Hold {
			continue
		}
		if e.notes[n.ID].state != Pending || !e.covers(&n, in.X, in.Y, t) {
			continue
		}
		key := -1
		if e.opt.Highlight {
			key = n.Line
		}
		prev, seen := best[key]
		if !seen || absDuration(t-n.Time) < absDuration(t-e.chart.Notes[prev].Time) {
			best[key] = n.ID
		}
		if e.opt.Aggressive && !e.opt.Highlight {
			break
		}
	}

	ids := make([]int, 0, len(best))
	for _, id := range best {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	highlight := len(ids) > 1
	for _, id := range ids {
		e.hit(id, t-e.chart.Notes[id].Time, t, highlight)
	}
}

func (e *Engine) hit(id int, offset, at time.Duration, highlight bool) {
	n := &e.chart.Notes[id]
	kind, ok := e.w.Classify(offset)
	if !ok {
		return
	}
	if n.Kind == game.Hold && kind.Hit() {
		s := &e.notes[id]
		s.state = HoldActive
		s.kind = kind
		s.offset = offset
		s.highlight = highlight
		s.grace = at
		e.holds = append(e.holds, id)
		return
	}
	e.judge(id, kind, offset, at, highlight, false)
}

func (e *Engine) armDrags(x, y float64, t time.Duration) {
	e.arm(game.Drag, x, y, t)
}

func (e *Engine) armFlicks(x, y float64, t time.Duration) {
	e.arm(game.Flick, x, y, t)
}

func (e *Engine) arm(kind game.NoteKind, x, y float64, t time.Duration) {
	cur := e.chart.NotesInWindow(t-e.w.Good, t+e.w.Good)
	for n, ok := cur.Next(); ok; n, ok = cur.Next() {
		s := &e.notes[n.ID]
		if n.Kind != kind || s.state != Pending || s.armed || !e.covers(&n, x, y, t) {
			continue
		}
		s.armed = true
		s.armedAt = t
		e.armed = append(e.armed, n.ID)
	}
}

// armStill lets fingers resting on a line catch drags sliding into them.
func (e *Engine) armStill(now time.Duration) {
	ids := make([]int, 0, len(e.pointers))
	for id := range e.pointers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		p := e.pointers[id]
		e.armDrags(p.x, p.y, now)
	}
}

// emitArmed judges armed drags and flicks once their time has come.
func (e *Engine) emitArmed(now time.Duration) {
	kept := e.armed[:0]
	for _, id := range e.armed {
		n := &e.chart.Notes[id]
		s := &e.notes[id]
		if s.state != Pending {
			continue
		}
		if now < n.Time {
			kept = append(kept, id)
			continue
		}
		var offset time.Duration
		at := n.Time
		if s.armedAt > n.Time {
			offset = s.armedAt - n.Time
			at = s.armedAt
		}
		// armed within ±Good, so the offset always classifies
		kind, ok := e.w.Classify(offset)
		if !ok {
			kind = game.Good
		}
		e.judge(id, kind, offset, at, false, false)
	}
	e.armed = kept
}

// checkHolds runs after a pointer moved or lifted at t.
func (e *Engine) checkHolds(t time.Duration) {
	kept := e.holds[:0]
	for _, id := range e.holds {
		n := &e.chart.Notes[id]
		s := &e.notes[id]
		switch {
		case s.auto || e.covered(n, t):
			kept = append(kept, id)
		case t >= n.EndTime-e.w.HoldTail:
			e.judge(id, s.kind, s.offset, t, s.highlight, false)
		case t <= s.grace:
			kept = append(kept, id)
		default:
			e.judge(id, game.Broken, 0, t, s.highlight, false)
		}
	}
	e.holds = kept
}

func (e *Engine) updateHolds(now time.Duration) {
	kept := e.holds[:0]
	for _, id := range e.holds {
		n := &e.chart.Notes[id]
		s := &e.notes[id]
		switch {
		case now >= n.EndTime:
			e.judge(id, s.kind, s.offset, n.EndTime, s.highlight, false)
		case s.auto || e.covered(n, now):
			kept = append(kept, id)
		case now >= n.EndTime-e.w.HoldTail:
			e.judge(id, s.kind, s.offset, now, s.highlight, false)
		case now <= s.grace:
			kept = append(kept, id)
		default:
			e.judge(id, game.Broken, 0, now, s.highlight, false)
		}
	}
	e.holds = kept
}

// sweep misses every pending note whose bad window has closed.
func (e *Engine) sweep(now time.Duration) {
	for id := e.cursor; id < len(e.notes); id++ {
		n := &e.chart.Notes[id]
		deadline := n.Time + e.w.Bad
		if deadline >= now {
			break
		}
		if s := &e.notes[id]; s.state == Pending && !s.armed {
			e.judge(id, game.Miss, 0, deadline, false, false)
		}
	}
}

// jump handles a seek. Notes already judged stay judged; pending notes whose
// window lies behind the new position are missed without animation, and
// active holds whose tail is skipped break without animation.
func (e *Engine) jump(j clock.Jump) {
	if !j.Forward() {
		return
	}
	kept := e.holds[:0]
	for _, id := range e.holds {
		n := &e.chart.Notes[id]
		s := &e.notes[id]
		if n.EndTime-e.w.HoldTail >= j.To {
			kept = append(kept, id)
			continue
		}
		if s.auto {
			e.judge(id, s.kind, s.offset, j.To, s.highlight, true)
		} else {
			e.judge(id, game.Broken, 0, j.To, s.highlight, true)
		}
	}
	e.holds = kept
	for id := e.cursor; id < len(e.notes); id++ {
		n := &e.chart.Notes[id]
		if n.Time+e.w.Bad >= j.To {
			break
		}
		if s := &e.notes[id]; s.state == Pending && !s.armed {
			e.judge(id, game.Miss, 0, j.To, false, true)
		}
	}
	e.advance()
}

func (e *Engine) autoplay(now time.Duration) {
	for id := e.cursor; id < len(e.notes); id++ {
		n := &e.chart.Notes[id]
		if n.Time > now {
			break
		}
		s := &e.notes[id]
		if s.state != Pending {
			continue
		}
		if n.Kind == game.Hold {
			s.state = HoldActive
			s.kind = game.Perfect
			s.auto = true
			e.holds = append(e.holds, id)
			continue
		}
		e.judge(id, game.Perfect, 0, n.Time, false, false)
	}
}

func (e *Engine) judge(id int, kind game.Judgement, offset, at time.Duration, highlight, silent bool) {
	s := &e.notes[id]
	switch {
	case e.opt.ForceBad && kind.Hit():
		kind = game.Bad
	case e.opt.ForceGood && kind == game.Perfect:
		kind = game.Good
	}
	switch kind {
	case game.Miss:
		s.state = Missed
	case game.Broken:
		s.state = Broken
	default:
		s.state = Judged
	}
	s.kind = kind
	s.armed = false
	e.remaining--
	e.out = append(e.out, game.Event{
		Note:      id,
		Line:      e.chart.Notes[id].Line,
		Kind:      kind,
		Offset:    offset,
		At:        at,
		Highlight: highlight,
		Silent:    silent,
	})
}

func (e *Engine) advance() {
	for e.cursor < len(e.notes) && e.notes[e.cursor].state.Terminal() {
		e.cursor++
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
