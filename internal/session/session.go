// Package session runs the judgement tick of one play through a chart.
package session

import (
	"time"

	"git.lost.host/meutraa/judgeline/internal/calibration"
	"git.lost.host/meutraa/judgeline/internal/clock"
	"git.lost.host/meutraa/judgeline/internal/config"
	"git.lost.host/meutraa/judgeline/internal/game"
	"git.lost.host/meutraa/judgeline/internal/input"
	"git.lost.host/meutraa/judgeline/internal/judge"
	"git.lost.host/meutraa/judgeline/internal/score"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Update is what one tick produced.
type Update struct {
	Session uuid.UUID     `json:"session"`
	Now     time.Duration `json:"now"`
	Events  []game.Event  `json:"events,omitempty"`
	Score   score.State   `json:"score"`
	Dynamic time.Duration `json:"dynamic"`
	Paused  bool          `json:"paused,omitempty"`
}

// Sink receives every update. Publish is called on the tick goroutine and
// must not block.
type Sink interface {
	Publish(Update)
}

type Session struct {
	ID uuid.UUID

	chart    *game.Chart
	clock    *clock.Clock
	live     *config.Live
	input    *input.Dispatcher
	engine   *judge.Engine
	tracker  *score.Tracker
	latency  *calibration.Estimator
	sinks    []Sink
	log      logrus.FieldLogger
	paused   bool
	finished bool
	now      time.Duration
	history  []game.Event

	skipped  []clock.Jump // seeks made while paused
	exercise *Span
}

// Span is a range of corrected chart time.
type Span struct {
	Start, End time.Duration
}

// New prepares a session. The clock is driven by the caller; the session
// only reads it, pauses it and seeks it.
func New(chart *game.Chart, settings config.Settings, clk *clock.Clock, live *config.Live, in *input.Dispatcher, log logrus.FieldLogger, sinks ...Sink) *Session {
	settings = settings.Effective()
	id := uuid.New()
	s := &Session{
		ID:      id,
		chart:   chart,
		clock:   clk,
		live:    live,
		input:   in,
		engine:  judge.New(chart, judge.OptionsFrom(settings)),
		tracker: score.NewTracker(chart.NoteCount),
		latency: calibration.NewEstimator(settings.Alpha, settings.MaxDynamic, 16),
		sinks:   sinks,
		log: log.WithFields(logrus.Fields{
			"session": id.String(),
			"chart":   chart.Sum(),
		}),
	}
	s.latency.SetEnabled(live.AutoLatency())
	s.log.WithFields(logrus.Fields{
		"notes":    chart.NoteCount,
		"autoplay": settings.Autoplay,
	}).Info("session created")
	return s
}

// correction is subtracted from audio time.
func (s *Session) correction() time.Duration {
	return s.live.StaticOffset() + s.latency.Offset()
}

// Tick runs one judgement step. The clock is sampled once.
func (s *Session) Tick() Update {
	if s.finished {
		return s.update(nil)
	}
	s.latency.SetEnabled(s.live.AutoLatency())
	static := s.live.StaticOffset()
	dynamic := s.latency.Offset()
	correction := static + dynamic

	s.now = s.clock.Now() - correction
	jumps := s.clock.Drain()
	for i := range jumps {
		jumps[i].From -= correction
		jumps[i].To -= correction
	}
	batch := s.input.Drain(func(at time.Time) time.Duration {
		return s.clock.At(at) - correction
	})

	if s.paused {
		s.skipped = append(s.skipped, jumps...)
		s.engine.Track(batch.Events)
		if batch.Pause {
			s.Resume()
		}
		return s.update(nil)
	}
	if len(s.skipped) > 0 {
		jumps = append(s.skipped, jumps...)
		s.skipped = nil
	}

	events := s.engine.Tick(s.now, jumps, batch.Events)
	s.apply(events, dynamic)
	if batch.Pause {
		s.Pause()
	}
	if nil != s.exercise && s.now >= s.exercise.End {
		s.Seek(s.exercise.Start + correction)
	}
	return s.publish(events)
}

func (s *Session) apply(events []game.Event, dynamic time.Duration) {
	for _, ev := range events {
		s.tracker.Apply(ev)
		s.history = append(s.history, ev)
		s.log.WithFields(logrus.Fields{
			"note":   ev.Note,
			"kind":   ev.Kind.String(),
			"offset": ev.Offset,
		}).Debug("judged")

		// Drag and flick offsets do not measure latency. Force rules may have
		// changed the kind, so classify the raw offset again.
		kind := s.chart.Notes[ev.Note].Kind
		if kind != game.Tap && kind != game.Hold {
			continue
		}
		if !ev.Kind.Hit() && ev.Kind != game.Bad {
			continue
		}
		if raw, ok := s.chart.Windows.Classify(ev.Offset); ok {
			s.latency.Observe(raw, ev.Offset+dynamic)
		}
	}
}

func (s *Session) update(events []game.Event) Update {
	return Update{
		Session: s.ID,
		Now:     s.now,
		Events:  events,
		Score:   s.tracker.State(),
		Dynamic: s.latency.Offset(),
		Paused:  s.paused,
	}
}

func (s *Session) publish(events []game.Event) Update {
	u := s.update(events)
	for _, sink := range s.sinks {
		sink.Publish(u)
	}
	return u
}

// Pause freezes the clock. Active holds survive.
func (s *Session) Pause() {
	if s.paused || s.finished {
		return
	}
	if err := s.clock.Pause(); nil != err {
		s.log.WithError(err).Warn("unable to pause audio")
	}
	s.paused = true
	s.log.WithField("at", s.now).Info("paused")
}

func (s *Session) Resume() {
	if !s.paused {
		return
	}
	if err := s.clock.Resume(); nil != err {
		s.log.WithError(err).Warn("unable to resume audio")
	}
	s.paused = false
	s.engine.Resume(s.clock.Now() - s.correction())
	s.log.WithField("at", s.now).Info("resumed")
}

func (s *Session) Paused() bool {
	return s.paused
}

// Seek moves playback to audio time to. The jump is judged on the next tick.
func (s *Session) Seek(to time.Duration) {
	if err := s.clock.Seek(to); nil != err {
		s.log.WithError(err).Warn("unable to seek audio")
	}
	s.log.WithField("to", to).Info("seek")
}

// Exercise loops playback over span until the session is finished. Notes
// before the span are skipped; notes judged on one pass stay judged.
func (s *Session) Exercise(span Span) {
	s.exercise = &span
	s.log.WithFields(logrus.Fields{
		"start": span.Start,
		"end":   span.End,
	}).Info("exercise")
	s.Seek(span.Start + s.correction())
}

// Done is true once every note is judged or the chart is over. An exercise
// only ends when it is finished.
func (s *Session) Done() bool {
	if nil != s.exercise {
		return s.finished
	}
	return s.finished || s.engine.Remaining() == 0 || s.now > s.chart.End()
}

func (s *Session) Score() score.State {
	return s.tracker.State()
}

func (s *Session) Calibration() calibration.State {
	return s.latency.State(s.live.StaticOffset())
}

// Events returns the judgement log so far.
func (s *Session) Events() []game.Event {
	return s.history
}

// Finish judges every remaining note and stops the session. Calling it again
// does nothing.
func (s *Session) Finish() score.State {
	if s.finished {
		return s.tracker.State()
	}
	events := s.engine.Finalize(s.now)
	s.apply(events, s.latency.Offset())
	s.publish(events)
	s.finished = true

	st := s.tracker.State()
	s.log.WithFields(logrus.Fields{
		"score":     st.Score,
		"max_combo": st.MaxCombo,
		"accuracy":  st.Accuracy,
	}).Info("session finished")
	return st
}
