package theme

import (
	"image/color"

	"git.lost.host/meutraa/judgeline/internal/game"
)

type Theme interface {
	RenderNote(n *game.Note) string
	RenderHoldBody(n *game.Note) string
	RenderHitField(column int) string

	// Judgement returns the label and colour of a judgement animation.
	Judgement(j game.Judgement) (string, color.RGBA)
}
