package score

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"git.lost.host/meutraa/judgeline/internal/game"
)

var compactTests = []struct {
	events []game.Event
	lines  []LineEvents
}{
	{nil, []LineEvents{}},
	{
		[]game.Event{
			{Note: 0, Line: 0, Kind: game.Perfect, Offset: 10, At: 100},
			{Note: 1, Line: 2, Kind: game.Miss, At: 300},
			{Note: 2, Line: 0, Kind: game.Good, Offset: -90, At: 310},
		},
		[]LineEvents{
			{Line: 0, Seq: []int{0, 2}, Notes: []int{0, 2}, Kinds: []game.Judgement{game.Perfect, game.Good}, Offsets: []time.Duration{10, -90}, At: []time.Duration{100, 310}},
			{},
			{Line: 2, Seq: []int{1}, Notes: []int{1}, Kinds: []game.Judgement{game.Miss}, Offsets: []time.Duration{0}, At: []time.Duration{300}},
		},
	},
}

func TestCompactEvents(t *testing.T) {
	for _, test := range compactTests {
		out := compactEvents(test.events)
		if !reflect.DeepEqual(out, test.lines) {
			t.Log("out     ", out)
			t.Log("expected", test.lines)
			t.Fail()
		}
	}
}

func TestUncompactEvents(t *testing.T) {
	for _, test := range compactTests {
		out, err := uncompactEvents(test.lines)
		if nil != err {
			t.Fatal(err)
		}
		if len(out) != len(test.events) {
			t.Fatalf("expected %d events, got %d", len(test.events), len(out))
		}
		for i := range out {
			if out[i] != test.events[i] {
				t.Errorf("event %d: %+v, expected %+v", i, out[i], test.events[i])
			}
		}
	}

	ragged := []LineEvents{{Seq: []int{0, 1}, Notes: []int{0}}}
	if _, err := uncompactEvents(ragged); nil == err {
		t.Error("ragged columns should fail")
	}
}

func TestStore(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "scores.db"))
	if nil != err {
		t.Fatal(err)
	}
	defer s.Close()

	lines := []game.Line{game.StaticLine(0, 0, 0, 0)}
	notes := []game.Note{{Kind: game.Tap, Time: time.Second}, {Kind: game.Tap, Time: 2 * time.Second}}
	chart, err := game.NewChart(lines, notes, game.DefaultWindows())
	if nil != err {
		t.Fatal(err)
	}

	log := []game.Event{
		{Note: 0, Kind: game.Perfect, Offset: 12 * time.Millisecond, At: time.Second},
		{Note: 1, Kind: game.Miss, At: 2220 * time.Millisecond},
	}
	saved, err := s.Save(chart, log, 1)
	if nil != err {
		t.Fatal(err)
	}

	records, err := s.Load(chart.Sum())
	if nil != err {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	r := records[0]
	if r.ID != saved.ID || r.Total != 2 || !r.Played.Equal(saved.Played) {
		t.Errorf("loaded %+v, saved %+v", r, saved)
	}
	if Replay(r) != Fold(2, log) {
		t.Errorf("replay %+v, expected %+v", Replay(r), Fold(2, log))
	}

	other, err := s.Load("nothing")
	if nil != err || len(other) != 0 {
		t.Errorf("unknown sum should load nothing, got %v %v", other, err)
	}
}

func TestStoreOffset(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "scores.db"))
	if nil != err {
		t.Fatal(err)
	}
	defer s.Close()

	if d, err := s.Offset("chart"); nil != err || d != 0 {
		t.Fatalf("unknown chart should have no offset, got %v %v", d, err)
	}
	for _, want := range []time.Duration{15 * time.Millisecond, -5 * time.Millisecond} {
		if err := s.SetOffset("chart", want); nil != err {
			t.Fatal(err)
		}
		if d, err := s.Offset("chart"); nil != err || d != want {
			t.Errorf("expected %v, got %v %v", want, d, err)
		}
	}
	if d, _ := s.Offset("other"); d != 0 {
		t.Errorf("offsets should be per chart, got %v", d)
	}
}
