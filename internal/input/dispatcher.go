// Package input turns raw pointer events from device threads into validated,
// chart timed input for the judgement tick.
package input

import (
	"math"
	"sort"
	"sync/atomic"
	"time"

	"git.lost.host/meutraa/judgeline/internal/config"
	"git.lost.host/meutraa/judgeline/internal/game"
	"github.com/sirupsen/logrus"
)

// RawEvent is what a device delivers, stamped with the wall clock.
type RawEvent struct {
	Pointer int
	Kind    game.InputKind
	X, Y    float64
	At      time.Time
}

// Batch is everything drained in one tick.
type Batch struct {
	Events []game.InputEvent // sorted by time
	Pause  bool              // the pause button was triggered
}

type Dispatcher struct {
	queue chan RawEvent
	log   logrus.FieldLogger

	// only touched by Drain
	down     map[int]bool
	captured map[int]bool // pointers that went down on the pause button
	firstTap time.Time

	pauseRegion config.Region
	doubleTap   bool
	interval    time.Duration

	dropped atomic.Uint64
}

func NewDispatcher(settings config.Settings, log logrus.FieldLogger) *Dispatcher {
	settings = settings.Effective()
	return &Dispatcher{
		queue:       make(chan RawEvent, settings.QueueSize),
		log:         log,
		down:        map[int]bool{},
		captured:    map[int]bool{},
		pauseRegion: settings.PauseRegion,
		doubleTap:   settings.DoubleTapPause,
		interval:    settings.PauseInterval,
	}
}

// Push is safe to call from any goroutine and never blocks. It returns false
// when the queue is full and the event was dropped.
func (d *Dispatcher) Push(ev RawEvent) bool {
	select {
	case d.queue <- ev:
		return true
	default:
		if d.dropped.Add(1) == 1 {
			d.log.WithField("pointer", ev.Pointer).Warn("input queue full, dropping events")
		}
		return false
	}
}

// Dropped counts events lost to a full queue.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Drain takes the events queued so far. toChart maps wall clock stamps to
// corrected chart time.
func (d *Dispatcher) Drain(toChart func(time.Time) time.Duration) Batch {
	var batch Batch
	n := len(d.queue)
	for i := 0; i < n; i++ {
		ev := <-d.queue
		if !d.valid(ev) {
			continue
		}
		if d.capture(ev, &batch) {
			continue
		}
		batch.Events = append(batch.Events, game.InputEvent{
			Pointer: ev.Pointer,
			Kind:    ev.Kind,
			X:       ev.X,
			Y:       ev.Y,
			Time:    toChart(ev.At),
		})
	}
	sort.SliceStable(batch.Events, func(i, j int) bool {
		return batch.Events[i].Time < batch.Events[j].Time
	})
	return batch
}

// valid tracks the pointer lifecycle and rejects events that break it.
func (d *Dispatcher) valid(ev RawEvent) bool {
	discard := func(reason string) bool {
		d.log.WithFields(logrus.Fields{
			"pointer": ev.Pointer,
			"kind":    ev.Kind.String(),
		}).Warn(reason)
		return false
	}
	if math.IsNaN(ev.X) || math.IsNaN(ev.Y) || math.IsInf(ev.X, 0) || math.IsInf(ev.Y, 0) {
		return discard("discarding input with invalid position")
	}
	switch ev.Kind {
	case game.Down:
		if d.down[ev.Pointer] {
			return discard("discarding press of a pointer that was never released")
		}
		d.down[ev.Pointer] = true
	case game.Move:
		if !d.down[ev.Pointer] {
			return discard("discarding move of a released pointer")
		}
	case game.Up:
		if !d.down[ev.Pointer] {
			return discard("discarding release of a released pointer")
		}
		delete(d.down, ev.Pointer)
	default:
		return discard("discarding input of unknown kind")
	}
	return true
}

// capture swallows events that belong to the pause button.
func (d *Dispatcher) capture(ev RawEvent, batch *Batch) bool {
	if ev.Kind != game.Down {
		if d.captured[ev.Pointer] {
			if ev.Kind == game.Up {
				delete(d.captured, ev.Pointer)
			}
			return true
		}
		return false
	}
	if d.pauseRegion.Empty() || !d.pauseRegion.Contains(ev.X, ev.Y) {
		return false
	}
	d.captured[ev.Pointer] = true
	if d.doubleTap && (d.firstTap.IsZero() || ev.At.Sub(d.firstTap) > d.interval) {
		d.firstTap = ev.At
		return true
	}
	d.firstTap = time.Time{}
	batch.Pause = true
	return true
}
