package render

import (
	"fmt"
	"math"
	"time"

	"git.lost.host/meutraa/judgeline/internal/game"
	"git.lost.host/meutraa/judgeline/internal/session"
	"git.lost.host/meutraa/judgeline/internal/theme"
)

const (
	barRow         = 4  // rows above the bottom of the screen
	columnSpacing  = 2  // half the distance between lanes
	decoFrames     = 60 // frames a judgement label stays up
	scrollPerRow   = 20 * time.Millisecond
	sideColumnSize = 36
)

type cell struct {
	row, col uint16
}

// Playfield draws a chart as falling notes onto lanes, one lane per distinct
// note position, with the session state at the side.
type Playfield struct {
	r     Renderer
	th    theme.Theme
	chart *game.Chart

	rows, cols int
	center     int
	sideCol    int
	scroll     time.Duration
	longest    time.Duration // longest hold

	done  []bool
	drawn []cell
}

func NewPlayfield(r Renderer, th theme.Theme, chart *game.Chart, cols, rows int, speed float64) *Playfield {
	if speed <= 0 {
		speed = 1
	}
	p := &Playfield{
		r:      r,
		th:     th,
		chart:  chart,
		rows:   rows,
		cols:   cols,
		center: cols >> 1,
		scroll: time.Duration(float64(scrollPerRow) / speed),
		done:   make([]bool, len(chart.Notes)),
	}
	for i := range chart.Notes {
		if d := chart.Notes[i].Duration(); d > p.longest {
			p.longest = d
		}
	}
	p.sideCol = p.column(0) - sideColumnSize
	if p.sideCol < 2 {
		p.sideCol = 2
	}
	return p
}

// column of a position along the line, lanes centred on the screen.
func (p *Playfield) column(x float64) int {
	mid := 0.0
	if lanes := p.chart.Difficulty.Lanes; lanes > 0 {
		mid = float64(lanes-1) / 2
	}
	return p.center + int(math.Round((x-mid)*2*columnSpacing))
}

func (p *Playfield) hitRow() int {
	return p.rows - barRow
}

func (p *Playfield) rowAt(t, now time.Duration) int {
	return p.hitRow() - int((t-now)/p.scroll)
}

func (p *Playfield) inField(row int) bool {
	return row > 0 && row < p.rows
}

func (p *Playfield) put(row, col int, s string) {
	if !p.inField(row) || col < 1 || col > p.cols {
		return
	}
	p.r.Fill(uint16(row), uint16(col), s)
	p.drawn = append(p.drawn, cell{uint16(row), uint16(col)})
}

// Apply hides judged notes and shows their judgement.
func (p *Playfield) Apply(u session.Update) {
	for _, ev := range u.Events {
		p.done[ev.Note] = true
		if ev.Silent {
			continue
		}
		label, c := p.th.Judgement(ev.Kind)
		n := &p.chart.Notes[ev.Note]
		col := p.column(n.X) - len(label)/2
		if col < 1 {
			col = 1
		}
		p.r.AddDecoration(uint16(col), uint16(p.hitRow()+1), colorize(c.R, c.G, c.B, label), decoFrames)
	}
}

// Draw renders the notes around corrected chart time now.
func (p *Playfield) Draw(now time.Duration) {
	for _, c := range p.drawn {
		p.r.Fill(c.row, c.col, " ")
	}
	p.drawn = p.drawn[:0]

	for i := 0; i < int(p.chart.Difficulty.Lanes); i++ {
		col := p.column(float64(i))
		p.r.Fill(uint16(p.hitRow()), uint16(col), p.th.RenderHitField(i))
	}

	ahead := time.Duration(p.hitRow()) * p.scroll
	cur := p.chart.NotesInWindow(now-p.chart.Windows.Bad-p.longest, now+ahead)
	for n, ok := cur.Next(); ok; n, ok = cur.Next() {
		if p.done[n.ID] {
			continue
		}
		col := p.column(n.X)
		if n.Kind == game.Hold {
			head := p.rowAt(n.Time, now)
			if head > p.hitRow() {
				head = p.hitRow()
			}
			for row := p.rowAt(n.EndTime, now); row < head; row++ {
				p.put(row, col, p.th.RenderHoldBody(&n))
			}
			p.put(head, col, p.th.RenderNote(&n))
			continue
		}
		p.put(p.rowAt(n.Time, now), col, p.th.RenderNote(&n))
	}
}

// HUD draws the score panel.
func (p *Playfield) HUD(u session.Update) {
	s := u.Score
	row := uint16(4)
	col := uint16(p.sideCol)
	lines := []string{
		fmt.Sprintf("      Score:  %07d", s.Score),
		fmt.Sprintf("      Combo:  %7d", s.Combo),
		fmt.Sprintf("  Max combo:  %7d", s.MaxCombo),
		fmt.Sprintf("   Accuracy:  %6.2f%%", s.Accuracy*100),
		fmt.Sprintf("      Notes:  %7d", s.Total),
		fmt.Sprintf("    Latency:  %+5dms", u.Dynamic.Milliseconds()),
	}
	for _, l := range lines {
		p.r.Fill(row, col, l)
		row++
	}
	row++
	for _, j := range game.Judgements {
		label, c := p.th.Judgement(j)
		p.r.FillColor(row, col, c, fmt.Sprintf("%11v:  %7d", label, s.Count(j)))
		row++
	}
	status := "        "
	if u.Paused {
		status = " PAUSED "
	}
	p.r.Fill(row+1, col, status)
}

func colorize(r, g, b uint8, s string) string {
	return fmt.Sprintf("\033[38;2;%v;%v;%vm%v\033[0m", r, g, b, s)
}
