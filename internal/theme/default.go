package theme

import (
	"fmt"
	"image/color"

	"git.lost.host/meutraa/judgeline/internal/game"
)

type DefaultTheme struct {
}

func paint(c color.RGBA, s string) string {
	return fmt.Sprintf("\033[38;2;%v;%v;%vm%v\033[0m", c.R, c.G, c.B, s)
}

func (t *DefaultTheme) RenderNote(n *game.Note) string {
	c := noteColor(n.Kind)
	if n.Simultaneous {
		c = highlightColor
	}
	return paint(c, syms[n.Kind])
}

func (t *DefaultTheme) RenderHoldBody(n *game.Note) string {
	return paint(noteColor(game.Hold), holdSym)
}

func (t *DefaultTheme) RenderHitField(column int) string {
	return barSym
}

func (t *DefaultTheme) Judgement(j game.Judgement) (string, color.RGBA) {
	c, ok := judgementColors[j]
	if !ok {
		c = white
	}
	return j.String(), c
}

const (
	holdSym = "┃"
	barSym  = "-"
)

var (
	white          = color.RGBA{255, 255, 255, 255}
	highlightColor = color.RGBA{255, 236, 160, 255}

	syms = map[game.NoteKind]string{
		game.Tap:   "⬤",
		game.Hold:  "▣",
		game.Drag:  "◆",
		game.Flick: "▲",
	}
	noteColors = map[game.NoteKind]color.RGBA{
		game.Tap:   {10, 195, 255, 255},
		game.Hold:  {10, 195, 255, 255},
		game.Drag:  {236, 195, 0, 255},
		game.Flick: {236, 30, 0, 255},
	}
	judgementColors = map[game.Judgement]color.RGBA{
		game.Perfect: {255, 236, 160, 255},
		game.Good:    {180, 225, 255, 255},
		game.Bad:     {236, 30, 0, 255},
		game.Miss:    {106, 106, 106, 255},
		game.Broken:  {236, 0, 106, 255},
	}
)

func noteColor(k game.NoteKind) color.RGBA {
	c, ok := noteColors[k]
	if !ok {
		return white
	}
	return c
}
