package score

import (
	"math"

	"git.lost.host/meutraa/judgeline/internal/game"
)

const (
	MaxScore   = 1000000
	comboShare = 100000
	goodWeight = 0.65
)

// State is the live score of a session.
type State struct {
	Total    int64 // notes in the chart
	Counts   [len(game.Judgements)]int64
	Combo    int64
	MaxCombo int64
	Score    int64
	Accuracy float64
}

func (s *State) Count(j game.Judgement) int64 {
	return s.Counts[j]
}

// Judged counts every note with a terminal state.
func (s *State) Judged() int64 {
	var n int64
	for _, c := range s.Counts {
		n += c
	}
	return n
}

// Tracker folds judgement events into a State. It is not safe for
// concurrent use.
type Tracker struct {
	s State
}

func NewTracker(total int64) *Tracker {
	return &Tracker{s: State{Total: total, Accuracy: 1}}
}

func (t *Tracker) Apply(ev game.Event) {
	s := &t.s
	s.Counts[ev.Kind]++
	if ev.Kind.Hit() {
		s.Combo++
		if s.Combo > s.MaxCombo {
			s.MaxCombo = s.Combo
		}
	} else {
		s.Combo = 0
	}

	weighted := float64(s.Counts[game.Perfect]) + goodWeight*float64(s.Counts[game.Good])
	s.Accuracy = weighted / float64(s.Judged())
	if s.Total > 0 {
		n := float64(s.Total)
		s.Score = int64(math.Round((MaxScore-comboShare)*weighted/n + comboShare*float64(s.MaxCombo)/n))
	}
}

func (t *Tracker) State() State {
	return t.s
}

// Fold replays an event log from an empty state.
func Fold(total int64, events []game.Event) State {
	t := NewTracker(total)
	for _, ev := range events {
		t.Apply(ev)
	}
	return t.State()
}
