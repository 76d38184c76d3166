package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// file is the persisted form of Settings. Durations are in milliseconds.
type file struct {
	OffsetMs       float64 `yaml:"offset_ms"`
	AutoLatency    bool    `yaml:"auto_latency"`
	Alpha          float64 `yaml:"alpha"`
	ForceGood      bool    `yaml:"force_good"`
	ForceBad       bool    `yaml:"force_bad"`
	Highlight      bool    `yaml:"highlight"`
	Aggressive     bool    `yaml:"aggressive"`
	DoubleTapPause bool    `yaml:"double_tap_pause"`
	HitRadius      float64 `yaml:"hit_radius"`
	FlickDistance  float64 `yaml:"flick_distance"`
	Windows        windows `yaml:"windows"`
	PauseRegion    Region  `yaml:"pause_region"`
}

type windows struct {
	PerfectMs  float64 `yaml:"perfect_ms"`
	GoodMs     float64 `yaml:"good_ms"`
	BadMs      float64 `yaml:"bad_ms"`
	HoldTailMs float64 `yaml:"hold_tail_ms"`
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func fromMillis(f float64) time.Duration {
	return time.Duration(f * float64(time.Millisecond))
}

func toFile(s Settings) file {
	return file{
		OffsetMs:       millis(s.StaticOffset),
		AutoLatency:    s.AutoLatency,
		Alpha:          s.Alpha,
		ForceGood:      s.ForceGood,
		ForceBad:       s.ForceBad,
		Highlight:      s.Highlight,
		Aggressive:     s.Aggressive,
		DoubleTapPause: s.DoubleTapPause,
		HitRadius:      s.HitRadius,
		FlickDistance:  s.FlickDistance,
		Windows: windows{
			PerfectMs:  millis(s.Windows.Perfect),
			GoodMs:     millis(s.Windows.Good),
			BadMs:      millis(s.Windows.Bad),
			HoldTailMs: millis(s.Windows.HoldTail),
		},
		PauseRegion: s.PauseRegion,
	}
}

func (f file) apply(s Settings) Settings {
	s.StaticOffset = fromMillis(f.OffsetMs)
	s.AutoLatency = f.AutoLatency
	s.Alpha = f.Alpha
	s.ForceGood = f.ForceGood
	s.ForceBad = f.ForceBad
	s.Highlight = f.Highlight
	s.Aggressive = f.Aggressive
	s.DoubleTapPause = f.DoubleTapPause
	s.HitRadius = f.HitRadius
	s.FlickDistance = f.FlickDistance
	s.Windows.Perfect = fromMillis(f.Windows.PerfectMs)
	s.Windows.Good = fromMillis(f.Windows.GoodMs)
	s.Windows.Bad = fromMillis(f.Windows.BadMs)
	s.Windows.HoldTail = fromMillis(f.Windows.HoldTailMs)
	s.PauseRegion = f.PauseRegion
	return s
}

// Store persists settings between sessions as YAML.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load returns the defaults when no settings file exists yet.
// Keys missing from the file keep their default value.
func (s *Store) Load() (Settings, error) {
	def := Default()
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return def, nil
	} else if nil != err {
		return def, fmt.Errorf("unable to read settings: %w", err)
	}
	f := toFile(def)
	if err := yaml.Unmarshal(data, &f); nil != err {
		return def, fmt.Errorf("unable to parse settings %s: %w", s.path, err)
	}
	settings := f.apply(def)
	if err := settings.Windows.Validate(); nil != err {
		return def, fmt.Errorf("invalid windows in %s: %w", s.path, err)
	}
	return settings, nil
}

func (s *Store) Save(settings Settings) error {
	data, err := yaml.Marshal(toFile(settings))
	if nil != err {
		return fmt.Errorf("unable to encode settings: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); nil != err {
			return fmt.Errorf("unable to create settings dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); nil != err {
		return fmt.Errorf("unable to write settings: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// Set changes one key, as named by Keys, and saves the result.
func (s *Store) Set(key, value string) (Settings, error) {
	settings, err := s.Load()
	if nil != err {
		return settings, err
	}
	parseBool := func(dst *bool) error {
		b, err := strconv.ParseBool(value)
		if nil == err {
			*dst = b
		}
		return err
	}
	parseFloat := func(dst *float64) error {
		f, err := strconv.ParseFloat(value, 64)
		if nil == err {
			*dst = f
		}
		return err
	}
	switch key {
	case "offset":
		var ms float64
		err = parseFloat(&ms)
		settings.StaticOffset = fromMillis(ms)
	case "auto-latency":
		err = parseBool(&settings.AutoLatency)
	case "alpha":
		err = parseFloat(&settings.Alpha)
		if nil == err && (settings.Alpha <= 0 || settings.Alpha > 1) {
			err = errors.New("alpha must be in (0, 1]")
		}
	case "force-good":
		err = parseBool(&settings.ForceGood)
	case "force-bad":
		err = parseBool(&settings.ForceBad)
	case "highlight":
		err = parseBool(&settings.Highlight)
	case "aggressive":
		err = parseBool(&settings.Aggressive)
	case "double-tap-pause":
		err = parseBool(&settings.DoubleTapPause)
	case "hit-radius":
		err = parseFloat(&settings.HitRadius)
	default:
		err = fmt.Errorf("unknown setting %q", key)
	}
	if nil != err {
		return settings, fmt.Errorf("unable to set %s: %w", key, err)
	}
	return settings, s.Save(settings)
}
