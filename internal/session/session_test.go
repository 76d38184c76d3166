package session

import (
	"testing"
	"time"

	"git.lost.host/meutraa/judgeline/internal/clock"
	"git.lost.host/meutraa/judgeline/internal/config"
	"git.lost.host/meutraa/judgeline/internal/game"
	"git.lost.host/meutraa/judgeline/internal/input"
	"git.lost.host/meutraa/judgeline/internal/judge"
	"git.lost.host/meutraa/judgeline/internal/score"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type wall struct {
	t time.Time
}

func (w *wall) now() time.Time {
	return w.t
}

func (w *wall) at(d time.Duration) time.Time {
	return time.Unix(1000, 0).Add(d)
}

type recorder struct {
	updates []Update
}

func (r *recorder) Publish(u Update) {
	r.updates = append(r.updates, u)
}

type fixture struct {
	wall    *wall
	clock   *clock.Clock
	live    *config.Live
	input   *input.Dispatcher
	session *Session
	sink    *recorder
	hook    *test.Hook
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func newFixture(t *testing.T, notes []game.Note, settings config.Settings) *fixture {
	t.Helper()
	c, err := game.NewChart([]game.Line{game.StaticLine(0, 0, 0, 0)}, notes, settings.Windows)
	if nil != err {
		t.Fatal(err)
	}
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	f := &fixture{wall: &wall{}, live: config.NewLive(settings), sink: &recorder{}, hook: hook}
	f.wall.t = f.wall.at(0)
	f.clock = clock.New(clock.WithWall(f.wall.now))
	f.input = input.NewDispatcher(settings, log)
	f.session = New(c, settings, f.clock, f.live, f.input, log, f.sink)
	if err := f.clock.Start(0); nil != err {
		t.Fatal(err)
	}
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.wall.t = f.wall.at(d)
}

func (f *fixture) press(p int, x, y float64, d time.Duration) {
	f.input.Push(input.RawEvent{Pointer: p, Kind: game.Down, X: x, Y: y, At: f.wall.at(d)})
}

func (f *fixture) release(p int, d time.Duration) {
	f.input.Push(input.RawEvent{Pointer: p, Kind: game.Up, At: f.wall.at(d)})
}

func narrowSettings() config.Settings {
	s := config.Default()
	s.Windows = game.Windows{Perfect: ms(50), Good: ms(100), Bad: ms(150), HoldTail: ms(100)}
	return s
}

func TestTapScenario(t *testing.T) {
	f := newFixture(t, []game.Note{{Kind: game.Tap, Time: ms(1000)}}, narrowSettings())

	f.press(1, 0, 0, ms(1030))
	f.advance(ms(1040))
	u := f.session.Tick()
	if len(u.Events) != 1 {
		t.Fatalf("expected one event, got %+v", u.Events)
	}
	ev := u.Events[0]
	if ev.Kind != game.Perfect || ev.Offset != ms(30) {
		t.Errorf("expected perfect +30ms, got %+v", ev)
	}
	if u.Score.Combo != 1 || u.Score.Count(game.Perfect) != 1 {
		t.Errorf("unexpected score %+v", u.Score)
	}
	if u.Session != f.session.ID || len(f.sink.updates) != 1 {
		t.Errorf("sink should see the update, got %d", len(f.sink.updates))
	}
	if !f.session.Done() {
		t.Error("session should be done once every note is judged")
	}
}

func TestMissScenario(t *testing.T) {
	notes := []game.Note{{Kind: game.Tap, Time: ms(500)}, {Kind: game.Tap, Time: ms(1000)}}
	f := newFixture(t, notes, narrowSettings())

	f.press(1, 0, 0, ms(500))
	f.release(1, ms(520))
	f.advance(ms(600))
	if u := f.session.Tick(); u.Score.Combo != 1 {
		t.Fatalf("expected combo 1, got %+v", u.Score)
	}

	f.press(1, 0, 0, ms(1200))
	f.advance(ms(1200))
	u := f.session.Tick()
	if len(u.Events) != 1 || u.Events[0].Kind != game.Miss || u.Events[0].At != ms(1150) {
		t.Fatalf("expected a miss at 1.15s, got %+v", u.Events)
	}
	if u.Score.Combo != 0 || u.Score.MaxCombo != 1 {
		t.Errorf("miss should reset the combo, got %+v", u.Score)
	}
}

func TestStaticOffset(t *testing.T) {
	s := narrowSettings()
	s.StaticOffset = ms(30)
	f := newFixture(t, []game.Note{{Kind: game.Tap, Time: ms(1000)}}, s)

	f.press(1, 0, 0, ms(1030))
	f.advance(ms(1040))
	u := f.session.Tick()
	if len(u.Events) != 1 || u.Events[0].Offset != 0 {
		t.Fatalf("static offset should cancel the latency, got %+v", u.Events)
	}
	if u.Now != ms(1010) {
		t.Errorf("expected corrected time 1.01s, got %v", u.Now)
	}

	f.live.Nudge(ms(10))
	if f.session.Calibration().Static != ms(40) {
		t.Errorf("live offset not applied, got %+v", f.session.Calibration())
	}
}

func TestAutoLatency(t *testing.T) {
	s := narrowSettings()
	s.AutoLatency = true
	var notes []game.Note
	for i := 1; i <= 40; i++ {
		notes = append(notes, game.Note{Kind: game.Tap, Time: time.Duration(i) * time.Second})
	}
	f := newFixture(t, notes, s)

	for i := 1; i <= 40; i++ {
		at := time.Duration(i)*time.Second + ms(40)
		f.press(1, 0, 0, at)
		f.release(1, at+ms(10))
		f.advance(at + ms(20))
		f.session.Tick()
	}
	dyn := f.session.Calibration().Dynamic
	if dyn < ms(35) || dyn > ms(45) {
		t.Errorf("dynamic offset should approach 40ms, got %v", dyn)
	}

	f.live.SetAutoLatency(false)
	f.advance(ms(41000))
	if u := f.session.Tick(); u.Dynamic != 0 {
		t.Errorf("disabled estimator should not correct, got %v", u.Dynamic)
	}
}

func TestPauseKeepsHold(t *testing.T) {
	s := narrowSettings()
	s.PauseRegion = config.Region{X0: 10, Y0: 10, X1: 11, Y1: 11}
	notes := []game.Note{{Kind: game.Hold, Time: ms(1000), EndTime: ms(2000)}}
	f := newFixture(t, notes, s)

	f.press(1, 0, 0, ms(1000))
	f.advance(ms(1010))
	f.session.Tick()

	f.press(2, 10.5, 10.5, ms(1100))
	f.release(2, ms(1110))
	f.press(2, 10.5, 10.5, ms(1200))
	f.advance(ms(1210))
	f.session.Tick()
	if !f.session.Paused() {
		t.Fatal("double tap on the pause button should pause")
	}
	paused := f.clock.Now()

	f.release(1, ms(5000))
	f.advance(ms(6000))
	if u := f.session.Tick(); len(u.Events) != 0 || f.clock.Now() != paused {
		t.Fatalf("nothing should happen while paused, got %+v at %v", u.Events, f.clock.Now())
	}

	f.session.Resume()
	f.press(1, 0, 0, ms(6050))
	f.advance(ms(6060))
	if u := f.session.Tick(); len(u.Events) != 0 {
		t.Fatalf("hold should survive the pause, got %+v", u.Events)
	}
	f.advance(ms(7000))
	u := f.session.Tick()
	if len(u.Events) != 1 || u.Events[0].Kind != game.Perfect {
		t.Errorf("expected the hold to finish perfect, got %+v", u.Events)
	}
}

func TestSeekBack(t *testing.T) {
	f := newFixture(t, []game.Note{{Kind: game.Tap, Time: ms(1000)}, {Kind: game.Tap, Time: ms(3000)}}, narrowSettings())
	f.press(1, 0, 0, ms(1000))
	f.advance(ms(1100))
	f.session.Tick()

	f.session.Seek(ms(500))
	f.advance(ms(1200))
	if u := f.session.Tick(); len(u.Events) != 0 {
		t.Fatalf("seek back should not re-emit, got %+v", u.Events)
	}
	if f.clock.Now() != ms(600) {
		t.Errorf("clock at %v", f.clock.Now())
	}
}

func TestFinish(t *testing.T) {
	notes := []game.Note{
		{Kind: game.Tap, Time: ms(1000)},
		{Kind: game.Tap, Time: ms(2000)},
		{Kind: game.Drag, Time: ms(3000)},
		{Kind: game.Hold, Time: ms(4000), EndTime: ms(5000)},
	}
	f := newFixture(t, notes, narrowSettings())
	f.press(1, 0, 0, ms(1000))
	f.release(1, ms(1010))
	f.press(1, 0, 0, ms(2070))
	f.advance(ms(2100))
	f.session.Tick()
	if f.session.Done() {
		t.Fatal("session should not be done")
	}

	st := f.session.Finish()
	if folded := score.Fold(int64(len(notes)), f.session.Events()); folded != st {
		t.Errorf("folding the log gives %+v, live state is %+v", folded, st)
	}
	if st.Count(game.Perfect) != 1 || st.Count(game.Good) != 1 {
		t.Errorf("expected one perfect and one good, got %+v", st)
	}
	if st.Judged() != int64(len(notes)) {
		t.Errorf("%d of %d notes judged", st.Judged(), len(notes))
	}
	if len(f.session.Events()) != len(notes) {
		t.Errorf("log has %d events", len(f.session.Events()))
	}
	if f.session.Finish() != st || !f.session.Done() {
		t.Error("finish should be idempotent")
	}

	var finished bool
	for _, e := range f.hook.AllEntries() {
		if e.Message == "session finished" && e.Data["session"] == f.session.ID.String() {
			finished = true
		}
	}
	if !finished {
		t.Error("missing finish log entry")
	}
}

func TestSeekWhilePaused(t *testing.T) {
	notes := []game.Note{{Kind: game.Tap, Time: ms(1000)}, {Kind: game.Tap, Time: ms(5000)}}
	f := newFixture(t, notes, narrowSettings())
	f.advance(ms(500))
	f.session.Tick()

	f.session.Pause()
	f.session.Seek(ms(3000))
	f.advance(ms(600))
	if u := f.session.Tick(); len(u.Events) != 0 {
		t.Fatalf("nothing should be judged while paused, got %+v", u.Events)
	}

	f.session.Resume()
	f.advance(ms(700))
	u := f.session.Tick()
	if len(u.Events) != 1 {
		t.Fatalf("expected the skipped note, got %+v", u.Events)
	}
	ev := u.Events[0]
	if ev.Note != 0 || ev.Kind != game.Miss || !ev.Silent || ev.At != ms(3000) {
		t.Errorf("skipped note should miss silently at the seek target, got %+v", ev)
	}
}

func TestExercise(t *testing.T) {
	notes := []game.Note{
		{Kind: game.Tap, Time: ms(1000)},
		{Kind: game.Tap, Time: ms(2000)},
		{Kind: game.Tap, Time: ms(3000)},
	}
	f := newFixture(t, notes, narrowSettings())
	f.session.Exercise(Span{Start: ms(1500), End: ms(2500)})

	u := f.session.Tick()
	if len(u.Events) != 1 || u.Events[0].Note != 0 || !u.Events[0].Silent {
		t.Fatalf("note before the span should be skipped, got %+v", u.Events)
	}

	// song time is 1.5s plus wall time from here on
	f.press(1, 0, 0, ms(500))
	f.release(1, ms(520))
	f.advance(ms(510))
	u = f.session.Tick()
	if len(u.Events) != 1 || u.Events[0].Note != 1 || u.Events[0].Kind != game.Perfect {
		t.Fatalf("expected the second note perfect, got %+v", u.Events)
	}

	f.advance(ms(1000))
	f.session.Tick()
	f.advance(ms(1010))
	if u := f.session.Tick(); len(u.Events) != 0 || u.Now != ms(1510) {
		t.Fatalf("playback should loop back to 1.5s, got %+v at %v", u.Events, u.Now)
	}

	f.press(2, 0, 0, ms(1500))
	f.advance(ms(1510))
	if u := f.session.Tick(); len(u.Events) != 0 {
		t.Errorf("a note judged on the first pass was judged again: %+v", u.Events)
	}
	if f.session.Done() {
		t.Error("an exercise runs until it is finished")
	}
	if f.session.engine.State(2) != judge.Pending {
		t.Errorf("note after the span should be untouched")
	}
}
