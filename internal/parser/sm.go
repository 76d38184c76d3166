package parser

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"git.lost.host/meutraa/judgeline/internal/game"
)

// StepParser reads StepMania .sm files. All columns sit on one static line,
// column i at position i.
type StepParser struct{}

func (p *StepParser) getSecondsPerNote(rates []game.BPM, currentBeat float64, bpn float64) float64 {
	sel := 0.0
	for _, bpm := range rates {
		if currentBeat >= bpm.StartingBeat {
			sel = bpm.Value
		} else {
			break
		}
	}
	return bpn * 60.0 / sel
}

// 0 – No note
// 1 – Normal note
// 2 – Hold head
// 3 – Hold/Roll tail
// 4 – Roll head
// M – Mine (or other negative note)
// K – Automatic keysound
// L – Lift note
// F – Fake note
func noteKind(ch byte) (game.NoteKind, bool) {
	switch ch {
	case '1':
		return game.Tap, true
	case '2', '4':
		return game.Hold, true
	}
	return game.Tap, false
}

func seconds(s float64) time.Duration {
	return time.Duration(s * 1000 * 1000 * 1000)
}

type stepSection struct {
	difficulty game.Difficulty
	body       string
}

func (p *StepParser) parseMeta(meta string) (float64, []game.BPM, error) {
	offset := 0.0
	bpms := []game.BPM{}
	for _, mdl := range strings.Split(meta, "\n#") {
		mdl = strings.TrimPrefix(strings.TrimSpace(mdl), "#")
		if strings.HasPrefix(mdl, "OFFSET:") {
			mdl = strings.TrimSuffix(strings.TrimPrefix(mdl, "OFFSET:"), ";")
			offs, err := strconv.ParseFloat(strings.TrimSpace(mdl), 64)
			if nil != err {
				return 0, nil, fmt.Errorf("unable to parse offset: %w", err)
			}
			offset = -offs
		} else if strings.HasPrefix(mdl, "BPMS:") {
			mdl = strings.TrimPrefix(mdl, "BPMS:")
			mdl = strings.ReplaceAll(mdl, "\n", "")
			for _, bpm := range strings.Split(strings.TrimSuffix(mdl, ";"), ",") {
				as := strings.Split(strings.TrimSpace(bpm), "=")
				if len(as) != 2 {
					return 0, nil, fmt.Errorf("unable to parse bpm %q", bpm)
				}
				sb, err := strconv.ParseFloat(as[0], 64)
				if nil != err {
					return 0, nil, fmt.Errorf("unable to parse bpm beat: %w", err)
				}
				value, err := strconv.ParseFloat(as[1], 64)
				if nil != err {
					return 0, nil, fmt.Errorf("unable to parse bpm value: %w", err)
				}
				if value <= 0 {
					return 0, nil, fmt.Errorf("bpm %v at beat %v is not positive", value, sb)
				}
				bpms = append(bpms, game.BPM{StartingBeat: sb, Value: value})
			}
		}
	}
	if len(bpms) == 0 || bpms[0].StartingBeat > 0 {
		return 0, nil, fmt.Errorf("chart has no bpm at beat 0")
	}
	return offset, bpms, nil
}

func (p *StepParser) Parse(file string, windows game.Windows) ([]*game.Chart, error) {
	data, err := os.ReadFile(file)
	if nil != err {
		return nil, fmt.Errorf("unable to read chart: %w", err)
	}

	str := strings.ReplaceAll(string(data), "\r", "")
	sections := strings.Split(str, "#NOTES:")
	offset, bpms, err := p.parseMeta(sections[0])
	if nil != err {
		return nil, err
	}

	steps := []stepSection{}
	for _, section := range sections[1:] {
		lines := strings.SplitN(section, "\n", 7)
		if len(lines) < 7 {
			continue
		}
		chartType := strings.TrimSuffix(strings.TrimSpace(lines[1]), ":")
		nKeys, ok := game.NKeyMap[chartType]
		if !ok {
			continue
		}
		steps = append(steps, stepSection{
			difficulty: game.Difficulty{
				Name:  strings.TrimSuffix(strings.TrimSpace(lines[3]), ":"),
				Level: strings.TrimSuffix(strings.TrimSpace(lines[4]), ":"),
				Lanes: nKeys,
			},
			body: lines[6],
		})
	}

	charts := []*game.Chart{}
	for _, step := range steps {
		notes := p.parseNotes(step, offset, bpms)
		chart, err := game.NewChart([]game.Line{game.StaticLine(0, 0, 0, 0)}, notes, windows)
		if nil != err {
			return nil, fmt.Errorf("unable to build %v chart: %w", step.difficulty.Name, err)
		}
		chart.Difficulty = step.difficulty
		charts = append(charts, chart)
	}
	return charts, nil
}

func (p *StepParser) parseNotes(step stepSection, offset float64, bpms []game.BPM) []game.Note {
	// Start time of first note
	secs := offset
	currentBeat := 0.0
	notes := []game.Note{}
	open := make([]int, step.difficulty.Lanes) // hold head per column, -1 if none
	for i := range open {
		open[i] = -1
	}

	for _, block := range strings.Split(step.body, "\n,") {
		lines := []string{}
		for _, l := range strings.Split(block, "\n") {
			if strings.HasPrefix(l, " ") || strings.Contains(l, "-") || strings.HasPrefix(l, "//") {
				continue
			}
			l = strings.TrimSuffix(strings.TrimSpace(l), ";")
			if len(l) >= int(step.difficulty.Lanes) {
				lines = append(lines, l)
			}
		}
		if len(lines) == 0 {
			continue
		}

		// Beat count is 4 per block
		beatsPerNote := 4.0 / float64(len(lines)) // 1/4, 1/8, 1/16, 1/24 etc
		for _, line := range lines {
			secondsPerNote := p.getSecondsPerNote(bpms, currentBeat, beatsPerNote)
			for col := 0; col < int(step.difficulty.Lanes); col++ {
				c := line[col]
				if kind, ok := noteKind(c); ok {
					if kind == game.Hold {
						open[col] = len(notes)
					}
					notes = append(notes, game.Note{
						Kind: kind,
						Time: seconds(secs),
						X:    float64(col),
					})
				} else if c == '3' && open[col] >= 0 {
					// This is a release note of the last head in the column
					notes[open[col]].EndTime = seconds(secs)
					open[col] = -1
				}
			}
			secs += secondsPerNote
			currentBeat += beatsPerNote
		}
	}

	// Heads without a tail are plain taps
	for i := range notes {
		if notes[i].Kind == game.Hold && notes[i].EndTime <= notes[i].Time {
			notes[i].Kind = game.Tap
			notes[i].EndTime = 0
		}
	}
	return notes
}
