package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/alecthomas/kingpin.v2"
)

// Flags are registered on the default kingpin application and parsed in main.
var (
	SettingsPath = kingpin.Flag("settings", "Settings file").Default("judgeline.yaml").String()
	DatabasePath = kingpin.Flag("db", "Score history database").Default("scores.db").String()
	LogLevel     = kingpin.Flag("log-level", "Log level").Default("info").Enum("debug", "info", "warn", "error")
	LogFile      = kingpin.Flag("log-file", "Log destination, empty for stderr").Default("judgeline.log").String()

	Play        = kingpin.Command("play", "Play a chart")
	Directory   = Play.Arg("directory", "Song/chart directory").Required().ExistingDir()
	Rate        = Play.Flag("rate", "Playback speed").Default("1.0").Short('r').Float64()
	Delay       = Play.Flag("delay", "Start delay").Default("1.5s").Short('d').Duration()
	FramePeriod = Play.Flag("frame-period", "Judgement tick period").Default("4ms").Short('p').Duration()
	Device      = Play.Flag("device", "evdev keyboard device for press and release input").Short('i').String()
	FeedAddr    = Play.Flag("feed", "Listen address for the judgement feed websocket").String()
	Autoplay    = Play.Flag("autoplay", "Judge every note perfect").Bool()
	Exercise    = Play.Flag("exercise", "Loop a start:end range of the chart, as 1m10s:1m25s or 70:85").String()
	keys4       = Play.Flag("keys-single", "Keys for 4k").Default("dfjk").Short('k').String()
	keys6       = Play.Flag("keys-solo", "Keys for 6k").Default("sdfjkl").String()
	keys8       = Play.Flag("keys-double", "Keys for 8k").Default("asdfjkl;").String()

	Calibrate = kingpin.Command("calibrate", "Measure tap latency against a metronome track")
	CaliAudio = Calibrate.Arg("audio", "Calibration track").Required().String()

	History      = kingpin.Command("history", "List and verify stored plays of a chart")
	HistoryChart = History.Arg("directory", "Song/chart directory").Required().ExistingDir()

	Set      = kingpin.Command("set", "Change a stored setting")
	SetKey   = Set.Arg("key", "Setting name").Required().Enum(Keys()...)
	SetValue = Set.Arg("value", "New value").Required().String()
)

const Version = "0.3.0"

func Keys() []string {
	return []string{
		"offset", "auto-latency", "alpha", "force-good", "force-bad",
		"highlight", "aggressive", "double-tap-pause", "hit-radius",
	}
}

// LaneKeys returns the keyboard layout for a lane count.
func LaneKeys(nKeys uint8) []rune {
	switch nKeys {
	case 6:
		return []rune(*keys6)
	case 8:
		return []rune(*keys8)
	}
	return []rune(*keys4)
}

// KeyColumn maps a rune to its lane, -1 if it is not a lane key.
func KeyColumn(r rune, nKeys uint8) int {
	for i, c := range LaneKeys(nKeys) {
		if r == c {
			return i
		}
	}
	return -1
}

// ParseSpan reads a start:end range. Each side is a Go duration or a number
// of seconds.
func ParseSpan(s string) (time.Duration, time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected start:end, got %q", s)
	}
	var bounds [2]time.Duration
	for i, p := range parts {
		d, err := time.ParseDuration(p)
		if nil != err {
			secs, ferr := strconv.ParseFloat(p, 64)
			if nil != ferr {
				return 0, 0, fmt.Errorf("unable to parse %q: %w", p, err)
			}
			d = time.Duration(secs * float64(time.Second))
		}
		bounds[i] = d
	}
	if bounds[1] <= bounds[0] {
		return 0, 0, fmt.Errorf("range %q ends before it starts", s)
	}
	return bounds[0], bounds[1], nil
}
