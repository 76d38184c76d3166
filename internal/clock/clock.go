// Package clock turns the position reported by an audio player into a
// monotonic song clock that can be sampled at any frame rate.
//
// The audio thread calls Update with the playback position whenever it has
// one. Between updates the clock extrapolates from the wall clock, and each
// update pulls the extrapolation toward the reported position. Now never
// goes backwards; the only way to move the clock back is an explicit Seek,
// which is queued as a Jump for the judgement tick to drain.
package clock

import (
	"sync"
	"time"
)

// Source reports the playback position of an audio stream.
type Source interface {
	Position() time.Duration
}

// Controller is implemented by sources that can be driven by the clock.
type Controller interface {
	Play() error
	Pause() error
	Seek(time.Duration) error
}

// Jump is a discontinuity caused by a seek.
type Jump struct {
	From, To time.Duration
}

// Forward is true when the jump skips song time.
func (j Jump) Forward() bool {
	return j.To > j.From
}

// Updates further off than this are applied at once rather than smoothed.
const SnapThreshold = 250 * time.Millisecond

type Clock struct {
	mu sync.Mutex

	wall  func() time.Time
	ctl   Controller
	speed float64
	force float64

	anchor  time.Time // wall time at song time zero
	running bool
	frozen  time.Duration // song time while not running
	last    time.Duration // floor for Now
	pending *Jump
}

type Option func(*Clock)

// WithWall replaces time.Now, for tests.
func WithWall(now func() time.Time) Option {
	return func(c *Clock) { c.wall = now }
}

func WithSpeed(speed float64) Option {
	return func(c *Clock) {
		if speed > 0 {
			c.speed = speed
		}
	}
}

// WithDriftForce sets the share of the measured drift corrected per update.
// Zero snaps to every update.
func WithDriftForce(force float64) Option {
	return func(c *Clock) { c.force = force }
}

// WithController forwards Start, Pause, Resume and Seek to the audio player.
func WithController(ctl Controller) Option {
	return func(c *Clock) { c.ctl = ctl }
}

// New returns a stopped clock at song time zero.
func New(opts ...Option) *Clock {
	c := &Clock{wall: time.Now, speed: 1}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Clock) songTime(wall time.Time) time.Duration {
	return time.Duration(float64(wall.Sub(c.anchor)) * c.speed)
}

func (c *Clock) anchorFor(wall time.Time, song time.Duration) time.Time {
	return wall.Add(-time.Duration(float64(song) / c.speed))
}

// Start runs the clock from song time at. A negative value delays the song.
func (c *Clock) Start(at time.Duration) error {
	c.mu.Lock()
	c.anchor = c.anchorFor(c.wall(), at)
	c.running = true
	c.last = at
	c.mu.Unlock()
	if nil != c.ctl {
		return c.ctl.Play()
	}
	return nil
}

// Now is sampled once per tick.
func (c *Clock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nowLocked()
}

func (c *Clock) nowLocked() time.Duration {
	if !c.running {
		return c.frozen
	}
	t := c.songTime(c.wall())
	if t < c.last {
		t = c.last
	}
	c.last = t
	return t
}

// At maps a wall clock instant, typically an input timestamp, to song time.
func (c *Clock) At(wall time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return c.frozen
	}
	return c.songTime(wall)
}

// Update is called from the audio thread with the current playback position.
func (c *Clock) Update(pos time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	wall := c.wall()
	drift := pos - c.songTime(wall)
	if c.force <= 0 || drift > SnapThreshold || drift < -SnapThreshold {
		c.anchor = c.anchorFor(wall, pos)
		return
	}
	c.anchor = c.anchor.Add(-time.Duration(float64(drift) * c.force / c.speed))
}

// Sync pulls the position from a source. Use it when the player has no
// callback of its own.
func (c *Clock) Sync(src Source) {
	c.Update(src.Position())
}

func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Clock) Pause() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.frozen = c.nowLocked()
	c.running = false
	c.mu.Unlock()
	if nil != c.ctl {
		return c.ctl.Pause()
	}
	return nil
}

// Resume continues from the frozen time.
func (c *Clock) Resume() error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.anchor = c.anchorFor(c.wall(), c.frozen)
	c.last = c.frozen
	c.running = true
	c.mu.Unlock()
	if nil != c.ctl {
		return c.ctl.Play()
	}
	return nil
}

// Seek moves the clock and records the discontinuity. Seeks that happen
// before the next Drain are merged into one jump.
func (c *Clock) Seek(to time.Duration) error {
	c.mu.Lock()
	from := c.nowLocked()
	if nil != c.pending {
		from = c.pending.From
	}
	c.pending = &Jump{From: from, To: to}
	c.anchor = c.anchorFor(c.wall(), to)
	c.frozen = to
	c.last = to
	c.mu.Unlock()
	if nil != c.ctl {
		return c.ctl.Seek(to)
	}
	return nil
}

// Drain returns the jump recorded since the last call, if any.
func (c *Clock) Drain() []Jump {
	c.mu.Lock()
	defer c.mu.Unlock()
	if nil == c.pending {
		return nil
	}
	j := *c.pending
	c.pending = nil
	if j.From == j.To {
		return nil
	}
	return []Jump{j}
}
