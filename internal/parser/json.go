package parser

import (
	"errors"
	"fmt"
	"os"

	"git.lost.host/meutraa/judgeline/internal/game"
	"github.com/tidwall/gjson"
)

// JSONParser reads charts with moving judgement lines. Times are in seconds.
//
//	{
//	  "name": "Hard", "level": "12", "offset": 0.1,
//	  "lines": [{
//	    "keyframes": [{"time": 0, "x": 0, "y": -3, "rotation": 0, "opacity": 1}],
//	    "notes": [{"kind": "hold", "time": 1.5, "end": 2, "x": 0.5, "speed": 1}]
//	  }]
//	}
type JSONParser struct{}

func (p *JSONParser) Parse(file string, windows game.Windows) ([]*game.Chart, error) {
	data, err := os.ReadFile(file)
	if nil != err {
		return nil, fmt.Errorf("unable to read chart: %w", err)
	}
	chart, err := p.ParseBytes(data, windows)
	if nil != err {
		return nil, err
	}
	return []*game.Chart{chart}, nil
}

func (p *JSONParser) ParseBytes(data []byte, windows game.Windows) (*game.Chart, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("chart is not valid json")
	}
	root := gjson.ParseBytes(data)
	offset := root.Get("offset").Float()

	var (
		lines []game.Line
		notes []game.Note
		perr  error
	)
	root.Get("lines").ForEach(func(_, l gjson.Result) bool {
		line := game.Line{}
		l.Get("keyframes").ForEach(func(_, k gjson.Result) bool {
			opacity := k.Get("opacity")
			line.Keyframes = append(line.Keyframes, game.Keyframe{
				Time:     seconds(k.Get("time").Float() + offset),
				X:        k.Get("x").Float(),
				Y:        k.Get("y").Float(),
				Rotation: k.Get("rotation").Float(),
				Opacity:  defaultFloat(opacity, 1),
			})
			return true
		})
		if len(line.Keyframes) == 0 {
			line.Keyframes = game.StaticLine(0, 0, 0, 0).Keyframes
		}

		id := len(lines)
		lines = append(lines, line)
		l.Get("notes").ForEach(func(_, n gjson.Result) bool {
			kind, err := game.ParseNoteKind(n.Get("kind").String())
			if nil != err {
				perr = fmt.Errorf("line %d: %w", id, err)
				return false
			}
			note := game.Note{
				Kind:  kind,
				Line:  id,
				Time:  seconds(n.Get("time").Float() + offset),
				X:     n.Get("x").Float(),
				Speed: defaultFloat(n.Get("speed"), 1),
			}
			if kind == game.Hold {
				note.EndTime = seconds(n.Get("end").Float() + offset)
			}
			notes = append(notes, note)
			return true
		})
		return nil == perr
	})
	if nil != perr {
		return nil, perr
	}
	if len(lines) == 0 {
		return nil, errors.New("chart has no lines")
	}

	chart, err := game.NewChart(lines, notes, windows)
	if nil != err {
		return nil, fmt.Errorf("unable to build chart: %w", err)
	}
	chart.Difficulty = game.Difficulty{
		Name:  root.Get("name").String(),
		Level: root.Get("level").String(),
	}
	return chart, nil
}

func defaultFloat(r gjson.Result, def float64) float64 {
	if !r.Exists() {
		return def
	}
	return r.Float()
}
