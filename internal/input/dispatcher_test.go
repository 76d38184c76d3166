package input

import (
	"math"
	"testing"
	"time"

	"git.lost.host/meutraa/judgeline/internal/config"
	"git.lost.host/meutraa/judgeline/internal/game"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func since(t time.Time) time.Duration {
	return t.Sub(base)
}

func at(ms int) time.Time {
	return base.Add(time.Duration(ms) * time.Millisecond)
}

func newDispatcher(t *testing.T, mutate func(*config.Settings)) (*Dispatcher, *test.Hook) {
	logger, hook := test.NewNullLogger()
	s := config.Default()
	if nil != mutate {
		mutate(&s)
	}
	return NewDispatcher(s, logger), hook
}

func TestDrainConvertsAndSorts(t *testing.T) {
	d, _ := newDispatcher(t, nil)
	d.Push(RawEvent{Pointer: 1, Kind: game.Down, X: 1, At: at(300)})
	d.Push(RawEvent{Pointer: 2, Kind: game.Down, X: 2, At: at(100)})
	d.Push(RawEvent{Pointer: 2, Kind: game.Up, X: 2, At: at(200)})

	batch := d.Drain(since)
	if batch.Pause {
		t.Error("unexpected pause")
	}
	expected := []game.InputEvent{
		{Pointer: 2, Kind: game.Down, X: 2, Time: 100 * time.Millisecond},
		{Pointer: 2, Kind: game.Up, X: 2, Time: 200 * time.Millisecond},
		{Pointer: 1, Kind: game.Down, X: 1, Time: 300 * time.Millisecond},
	}
	if len(batch.Events) != len(expected) {
		t.Fatalf("got %v", batch.Events)
	}
	for i := range expected {
		if batch.Events[i] != expected[i] {
			t.Errorf("event %d: %+v, expected %+v", i, batch.Events[i], expected[i])
		}
	}
	if again := d.Drain(since); len(again.Events) != 0 {
		t.Error("events should be consumed once")
	}
}

func TestDrainDiscardsBrokenLifecycles(t *testing.T) {
	d, hook := newDispatcher(t, nil)
	d.Push(RawEvent{Pointer: 1, Kind: game.Down, At: at(0)})
	d.Push(RawEvent{Pointer: 1, Kind: game.Down, At: at(10)}) // reused without release
	d.Push(RawEvent{Pointer: 2, Kind: game.Up, At: at(20)})   // never pressed
	d.Push(RawEvent{Pointer: 3, Kind: game.Move, At: at(30)}) // never pressed
	d.Push(RawEvent{Pointer: 4, Kind: game.Down, X: math.NaN(), At: at(40)})
	d.Push(RawEvent{Pointer: 1, Kind: game.Up, At: at(50)})
	d.Push(RawEvent{Pointer: 1, Kind: game.Up, At: at(60)}) // released twice

	batch := d.Drain(since)
	if len(batch.Events) != 2 {
		t.Fatalf("expected the first press and release only, got %v", batch.Events)
	}
	warnings := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings++
		}
	}
	if warnings != 5 {
		t.Errorf("expected 5 warnings, got %d", warnings)
	}
}

func TestQueueIsBounded(t *testing.T) {
	d, _ := newDispatcher(t, func(s *config.Settings) { s.QueueSize = 2 })
	for i := 0; i < 2; i++ {
		if !d.Push(RawEvent{Pointer: i, Kind: game.Down}) {
			t.Fatalf("push %d rejected", i)
		}
	}
	if d.Push(RawEvent{Pointer: 9, Kind: game.Down}) {
		t.Error("push into a full queue should fail")
	}
	if d.Dropped() != 1 {
		t.Errorf("dropped %d", d.Dropped())
	}
	if n := len(d.Drain(since).Events); n != 2 {
		t.Errorf("drained %d", n)
	}
}

var pauseButton = config.Region{X0: -1, Y0: -1, X1: -0.8, Y1: -0.8}

func tap(d *Dispatcher, pointer int, x float64, ms int) {
	d.Push(RawEvent{Pointer: pointer, Kind: game.Down, X: x, Y: -0.9, At: at(ms)})
	d.Push(RawEvent{Pointer: pointer, Kind: game.Up, X: x, Y: -0.9, At: at(ms + 30)})
}

func TestDoubleTapPause(t *testing.T) {
	d, _ := newDispatcher(t, func(s *config.Settings) { s.PauseRegion = pauseButton })

	tap(d, 1, -0.9, 0)
	if b := d.Drain(since); b.Pause || len(b.Events) != 0 {
		t.Fatalf("first tap should only arm the pause, got %+v", b)
	}
	tap(d, 1, -0.9, 500)
	if b := d.Drain(since); !b.Pause || len(b.Events) != 0 {
		t.Fatalf("second tap should pause, got %+v", b)
	}
	tap(d, 1, -0.9, 3000)
	tap(d, 1, -0.9, 4000)
	if b := d.Drain(since); b.Pause {
		t.Error("taps further apart than the interval should not pause")
	}
	tap(d, 2, 0.5, 4100)
	if b := d.Drain(since); b.Pause || len(b.Events) != 2 {
		t.Errorf("taps outside the button should pass through, got %+v", b)
	}
}

func TestSingleTapPause(t *testing.T) {
	d, _ := newDispatcher(t, func(s *config.Settings) {
		s.PauseRegion = pauseButton
		s.DoubleTapPause = false
	})
	tap(d, 1, -0.9, 0)
	if b := d.Drain(since); !b.Pause {
		t.Error("a single tap should pause when double tap is off")
	}
}

func TestCapturedPointerStaysCaptured(t *testing.T) {
	d, _ := newDispatcher(t, func(s *config.Settings) { s.PauseRegion = pauseButton })
	d.Push(RawEvent{Pointer: 1, Kind: game.Down, X: -0.9, Y: -0.9, At: at(0)})
	d.Push(RawEvent{Pointer: 1, Kind: game.Move, X: 0, Y: 0, At: at(10)})
	d.Push(RawEvent{Pointer: 1, Kind: game.Up, X: 0, Y: 0, At: at(20)})
	if b := d.Drain(since); len(b.Events) != 0 {
		t.Errorf("a pointer pressed on the pause button should never reach notes, got %v", b.Events)
	}
}
