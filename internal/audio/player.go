// Package audio plays the song of a session and reports its position.
package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/vorbis"
	"github.com/faiface/beep/wav"
	pkgerrors "github.com/pkg/errors"
)

// ErrLoad matches every LoadError.
var ErrLoad = errors.New("load-cali-failed")

// LoadError means the song could not be opened, decoded or played. A session
// cannot start without its song.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%v: %v: %v", ErrLoad, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func (e *LoadError) Is(target error) bool {
	return target == ErrLoad
}

// Extensions lists the formats Decode understands.
var Extensions = []string{".ogg", ".mp3", ".wav"}

// Decode opens an audio file based on its extension.
func Decode(path string) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path)
	if nil != err {
		return nil, beep.Format{}, pkgerrors.Wrap(err, "unable to open audio")
	}
	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ogg":
		streamer, format, err = vorbis.Decode(f)
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	case ".wav":
		streamer, format, err = wav.Decode(f)
	default:
		f.Close()
		return nil, beep.Format{}, fmt.Errorf("unsupported audio format %q", filepath.Ext(path))
	}
	if nil != err {
		f.Close()
		return nil, beep.Format{}, pkgerrors.Wrap(err, "unable to decode audio")
	}
	return streamer, format, nil
}

type Option func(*Player)

// WithRate plays the song faster or slower, pitch included.
func WithRate(rate float64) Option {
	return func(p *Player) {
		if rate > 0 {
			p.rate = rate
		}
	}
}

// WithLeadIn plays silence before the song.
func WithLeadIn(d time.Duration) Option {
	return func(p *Player) { p.leadIn = d }
}

// WithLoop restarts the song when it ends. Positions keep growing.
func WithLoop() Option {
	return func(p *Player) { p.loop = true }
}

// Player streams a song to the speaker. Its methods may be called from any
// goroutine.
type Player struct {
	path     string
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl

	rate    float64
	leadIn  time.Duration
	loop    bool
	loops   int
	started bool
	notify  func(time.Duration)
}

// Load decodes the song and opens the speaker. Every failure is a LoadError.
func Load(path string, opts ...Option) (*Player, error) {
	p := &Player{path: path, rate: 1}
	for _, opt := range opts {
		opt(p)
	}
	streamer, format, err := Decode(path)
	if nil != err {
		return nil, &LoadError{Path: path, Err: err}
	}
	p.streamer = streamer
	p.format = format
	p.ctrl = &beep.Ctrl{Streamer: streamer, Paused: true}

	sr := beep.SampleRate(math.Round(float64(format.SampleRate) * p.rate))
	if err := speaker.Init(sr, format.SampleRate.N(time.Second/60)); nil != err {
		streamer.Close()
		return nil, &LoadError{Path: path, Err: pkgerrors.Wrap(err, "unable to open speaker")}
	}
	return p, nil
}

// Notify registers f to receive the playback position. f runs on the audio
// thread after every buffer and must not block.
func (p *Player) Notify(f func(time.Duration)) {
	speaker.Lock()
	p.notify = f
	speaker.Unlock()
}

func (p *Player) Format() beep.Format {
	return p.format
}

// Length of one pass through the song.
func (p *Player) Length() time.Duration {
	return p.format.SampleRate.D(p.streamer.Len())
}

func (p *Player) Position() time.Duration {
	speaker.Lock()
	defer speaker.Unlock()
	return p.position()
}

func (p *Player) position() time.Duration {
	return p.format.SampleRate.D(p.loops*p.streamer.Len() + p.streamer.Position())
}

// Play starts the song, or continues it after Pause.
func (p *Player) Play() error {
	speaker.Lock()
	p.ctrl.Paused = false
	first := !p.started
	p.started = true
	speaker.Unlock()
	if first {
		lead := beep.Silence(p.format.SampleRate.N(p.leadIn))
		speaker.Play(beep.Seq(lead, &tap{p}))
	}
	return nil
}

func (p *Player) Pause() error {
	speaker.Lock()
	p.ctrl.Paused = true
	speaker.Unlock()
	return nil
}

func (p *Player) Seek(to time.Duration) error {
	speaker.Lock()
	defer speaker.Unlock()
	n := p.format.SampleRate.N(to)
	length := p.streamer.Len()
	if p.loop && length > 0 {
		p.loops = n / length
		n %= length
	}
	if n < 0 {
		n = 0
	}
	if n >= length {
		n = length - 1
	}
	if err := p.streamer.Seek(n); nil != err {
		return pkgerrors.Wrapf(err, "unable to seek to %v", to)
	}
	return nil
}

func (p *Player) Close() error {
	speaker.Lock()
	p.ctrl.Streamer = nil
	speaker.Unlock()
	return p.streamer.Close()
}

// tap reports the position after every buffer and handles looping.
type tap struct {
	p *Player
}

func (t *tap) Stream(samples [][2]float64) (int, bool) {
	p := t.p
	if nil == p.ctrl.Streamer {
		return 0, false
	}
	n, ok := p.ctrl.Stream(samples)
	if p.loop && (!ok || n < len(samples)) && p.streamer.Len() > 0 {
		p.loops++
		if err := p.streamer.Seek(0); nil == err {
			m, _ := p.ctrl.Stream(samples[n:])
			n, ok = n+m, true
		}
	}
	if !p.ctrl.Paused && nil != p.notify {
		p.notify(p.position())
	}
	return n, ok
}

func (t *tap) Err() error {
	return t.p.streamer.Err()
}
