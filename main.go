package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"git.lost.host/meutraa/judgeline/internal/audio"
	"git.lost.host/meutraa/judgeline/internal/calibration"
	"git.lost.host/meutraa/judgeline/internal/clock"
	"git.lost.host/meutraa/judgeline/internal/config"
	"git.lost.host/meutraa/judgeline/internal/feed"
	"git.lost.host/meutraa/judgeline/internal/game"
	"git.lost.host/meutraa/judgeline/internal/input"
	"git.lost.host/meutraa/judgeline/internal/parser"
	"git.lost.host/meutraa/judgeline/internal/render"
	"git.lost.host/meutraa/judgeline/internal/score"
	"git.lost.host/meutraa/judgeline/internal/session"
	"git.lost.host/meutraa/judgeline/internal/theme"
	"github.com/eiannone/keyboard"
	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"
)

const (
	nudgeStep = 5 * time.Millisecond
	seekStep  = 5 * time.Second
)

func main() {
	kingpin.Version(config.Version)
	command := kingpin.Parse()

	log, closeLog, err := setupLog()
	if nil != err {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closeLog()

	switch command {
	case config.Play.FullCommand():
		err = play(log)
	case config.Calibrate.FullCommand():
		err = calibrate(log)
	case config.History.FullCommand():
		err = history()
	case config.Set.FullCommand():
		_, err = config.NewStore(*config.SettingsPath).Set(*config.SetKey, *config.SetValue)
	}
	if nil != err {
		log.WithError(err).Error("command failed")
		fmt.Fprintln(os.Stderr, err)
		closeLog()
		os.Exit(1)
	}
}

func setupLog() (*logrus.Logger, func(), error) {
	log := logrus.New()
	level, err := logrus.ParseLevel(*config.LogLevel)
	if nil != err {
		return nil, nil, fmt.Errorf("unable to parse log level: %w", err)
	}
	log.SetLevel(level)
	if *config.LogFile == "" {
		return log, func() {}, nil
	}
	f, err := os.OpenFile(*config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if nil != err {
		return nil, nil, fmt.Errorf("unable to open log file: %w", err)
	}
	log.SetOutput(f)
	log.SetFormatter(&logrus.JSONFormatter{})
	return log, func() { f.Close() }, nil
}

// findSong returns the audio and chart files of a song directory.
func findSong(dir string) (string, string, error) {
	found := map[string]string{}
	if err := filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if nil != err {
			return err
		}
		if !info.IsDir() {
			found[strings.ToLower(filepath.Ext(info.Name()))] = p
		}
		return nil
	}); nil != err {
		return "", "", fmt.Errorf("unable to walk song directory: %w", err)
	}

	var audioFile, chartFile string
	for _, ext := range audio.Extensions {
		if p, ok := found[ext]; ok && audioFile == "" {
			audioFile = p
		}
	}
	for _, ext := range parser.Extensions {
		if p, ok := found[ext]; ok && chartFile == "" {
			chartFile = p
		}
	}
	if audioFile == "" || chartFile == "" {
		return "", "", errors.New("unable to find a chart and an audio file in the song directory")
	}
	return audioFile, chartFile, nil
}

func loadCharts(dir string, windows game.Windows) ([]*game.Chart, string, error) {
	audioFile, chartFile, err := findSong(dir)
	if nil != err {
		return nil, "", err
	}
	psr, err := parser.ForFile(chartFile)
	if nil != err {
		return nil, "", err
	}
	charts, err := psr.Parse(chartFile, windows)
	if nil != err {
		return nil, "", fmt.Errorf("unable to parse %v: %w", chartFile, err)
	}
	if len(charts) == 0 {
		return nil, "", fmt.Errorf("%v has no playable charts", chartFile)
	}
	return charts, audioFile, nil
}

func selectChart(charts []*game.Chart, keys <-chan keyboard.KeyEvent) (*game.Chart, error) {
	if len(charts) == 1 {
		return charts[0], nil
	}
	for i, c := range charts {
		fmt.Printf("%2v) %3v  %5v  %v\r\n", i, c.Difficulty.Level, len(c.Notes), c.Difficulty.Name)
	}
	key := <-keys
	index, err := strconv.ParseInt(string(key.Rune), 10, 64)
	if nil != err || index < 0 || index > int64(len(charts)-1) {
		return nil, fmt.Errorf("no chart %q", key.Rune)
	}
	return charts[index], nil
}

func play(log *logrus.Logger) error {
	store := config.NewStore(*config.SettingsPath)
	stored, err := store.Load()
	if nil != err {
		return err
	}
	settings := stored
	settings.Speed = *config.Rate
	settings.Autoplay = *config.Autoplay
	settings = settings.Effective()

	var exercise *session.Span
	if *config.Exercise != "" {
		start, end, err := config.ParseSpan(*config.Exercise)
		if nil != err {
			return err
		}
		exercise = &session.Span{Start: start, End: end}
	}

	charts, audioFile, err := loadCharts(*config.Directory, settings.Windows)
	if nil != err {
		return err
	}

	keys, err := keyboard.GetKeys(128)
	if nil != err {
		return fmt.Errorf("unable to open keyboard: %w", err)
	}
	defer func() {
		if err := keyboard.Close(); nil != err {
			log.WithError(err).Warn("unable to close keyboard")
		}
	}()

	chart, err := selectChart(charts, keys)
	if nil != err {
		return err
	}

	db, err := score.Open(*config.DatabasePath)
	if nil != err {
		return err
	}
	defer db.Close()
	chartOffset, err := db.Offset(chart.Sum())
	if nil != err {
		return err
	}
	settings.StaticOffset += chartOffset

	player, err := audio.Load(audioFile, audio.WithRate(settings.Speed), audio.WithLeadIn(*config.Delay))
	if nil != err {
		return err
	}
	defer player.Close()

	clk := clock.New(
		clock.WithSpeed(settings.Speed),
		clock.WithDriftForce(settings.DriftForce),
		clock.WithController(player),
	)
	player.Notify(clk.Update)

	live := config.NewLive(settings)
	dispatcher := input.NewDispatcher(settings, log)
	lanes := config.LaneKeys(chart.Difficulty.Lanes)
	if *config.Device != "" {
		if err := input.ReadDevice(*config.Device, lanes, dispatcher, log); nil != err {
			return fmt.Errorf("unable to read input device: %w", err)
		}
	}

	var sinks []session.Sink
	if *config.FeedAddr != "" {
		hub := feed.NewHub(log)
		defer hub.Close()
		srv := &http.Server{Addr: *config.FeedAddr, Handler: hub}
		go func() {
			if err := srv.ListenAndServe(); nil != err && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("feed server stopped")
			}
		}()
		defer srv.Close()
		sinks = append(sinks, hub)
	}

	sess := session.New(chart, settings, clk, live, dispatcher, log, sinks...)

	r := render.NewRenderer()
	cols, rows, err := r.Size()
	if nil != err {
		return fmt.Errorf("unable to get terminal size: %w", err)
	}
	field := render.NewPlayfield(r, &theme.DefaultTheme{}, chart, cols, rows, settings.Speed)

	// Clear the screen and hide the cursor
	if err := r.Init(); nil != err {
		return fmt.Errorf("unable to set up terminal: %w", err)
	}
	if err := clk.Start(-*config.Delay); nil != err {
		r.Deinit()
		return err
	}
	if nil != exercise {
		sess.Exercise(*exercise)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.RenderLoop(ctx, *config.FramePeriod, func(now time.Time) bool {
		// get the key inputs that occurred so far
		for n := len(keys); n > 0; n-- {
			key := <-keys
			if !handleKey(key, now, sess, live, dispatcher, clk, chart.Difficulty.Lanes, *config.Device == "") {
				return false
			}
		}
		u := sess.Tick()
		field.Apply(u)
		field.Draw(u.Now)
		field.HUD(u)
		return !sess.Done()
	})
	r.Deinit()

	final := sess.Finish()
	if err := store.Save(live.Persist(stored)); nil != err {
		log.WithError(err).Warn("unable to save settings")
	}
	// nudges during play belong to this chart
	if err := db.SetOffset(chart.Sum(), live.ChartOffset(stored.StaticOffset)); nil != err {
		log.WithError(err).Warn("unable to save chart offset")
	}

	if !settings.Autoplay && nil == exercise {
		if _, err := db.Save(chart, sess.Events(), settings.Speed); nil != err {
			return err
		}
	}

	printScore(chart, final)
	return nil
}

// handleKey returns false when the player quits.
func handleKey(key keyboard.KeyEvent, now time.Time, sess *session.Session, live *config.Live, d *input.Dispatcher, clk *clock.Clock, lanes uint8, lanesFromKeyboard bool) bool {
	switch key.Key {
	case keyboard.KeyEsc, keyboard.KeyCtrlC:
		return false
	case keyboard.KeySpace:
		if sess.Paused() {
			sess.Resume()
		} else {
			sess.Pause()
		}
		return true
	case keyboard.KeyArrowUp:
		live.Nudge(nudgeStep)
		return true
	case keyboard.KeyArrowDown:
		live.Nudge(-nudgeStep)
		return true
	case keyboard.KeyArrowLeft:
		sess.Seek(clk.Now() - seekStep)
		return true
	case keyboard.KeyArrowRight:
		sess.Seek(clk.Now() + seekStep)
		return true
	case keyboard.KeyTab:
		live.SetAutoLatency(!live.AutoLatency())
		return true
	}
	if !lanesFromKeyboard {
		return true
	}
	// The terminal only reports presses, so every press is a short tap.
	if col := config.KeyColumn(key.Rune, lanes); col >= 0 {
		pointer := 1000 + col
		d.Push(input.RawEvent{Pointer: pointer, Kind: game.Down, X: float64(col), At: now})
		d.Push(input.RawEvent{Pointer: pointer, Kind: game.Up, X: float64(col), At: now})
	}
	return true
}

func printScore(chart *game.Chart, s score.State) {
	fmt.Printf("%v %v\n", chart.Difficulty.Name, chart.Difficulty.Level)
	fmt.Printf("      Score:  %07d\n", s.Score)
	fmt.Printf("   Accuracy:  %6.2f%%\n", s.Accuracy*100)
	fmt.Printf("  Max combo:  %7d / %d\n", s.MaxCombo, s.Total)
	for _, j := range game.Judgements {
		fmt.Printf("%11v:  %7d\n", j, s.Count(j))
	}
}

func calibrate(log *logrus.Logger) error {
	store := config.NewStore(*config.SettingsPath)
	settings, err := store.Load()
	if nil != err {
		return err
	}

	player, err := audio.Load(*config.CaliAudio, audio.WithLoop())
	if nil != err {
		return err
	}
	defer player.Close()
	clk := clock.New(clock.WithController(player))
	player.Notify(clk.Update)

	keys, err := keyboard.GetKeys(16)
	if nil != err {
		return fmt.Errorf("unable to open keyboard: %w", err)
	}
	defer keyboard.Close()

	fmt.Printf("Tap any key on the click, Enter to save, Esc to cancel\r\n")
	if err := clk.Start(0); nil != err {
		return err
	}

	var probe calibration.Probe
	for key := range keys {
		switch key.Key {
		case keyboard.KeyEsc, keyboard.KeyCtrlC:
			return nil
		case keyboard.KeyEnter:
			if probe.Samples() == 0 {
				return errors.New("no taps recorded")
			}
			settings.StaticOffset = probe.Suggest(settings.StaticOffset)
			log.WithField("offset", settings.StaticOffset).Info("calibrated")
			fmt.Printf("offset set to %v\r\n", settings.StaticOffset)
			return store.Save(settings)
		}
		latency, ok := probe.Tap(clk.Now() - settings.StaticOffset)
		if !ok {
			fmt.Printf("%+6dms  ignored\r\n", latency.Milliseconds())
			continue
		}
		fmt.Printf("%+6dms  average %+dms over %d\r\n", latency.Milliseconds(), probe.Average().Milliseconds(), probe.Samples())
	}
	return nil
}

func history() error {
	settings, err := config.NewStore(*config.SettingsPath).Load()
	if nil != err {
		return err
	}
	charts, _, err := loadCharts(*config.HistoryChart, settings.Windows)
	if nil != err {
		return err
	}
	db, err := score.Open(*config.DatabasePath)
	if nil != err {
		return err
	}
	defer db.Close()

	for _, chart := range charts {
		records, err := db.Load(chart.Sum())
		if nil != err {
			return err
		}
		fmt.Printf("%v %v: %d plays\n", chart.Difficulty.Name, chart.Difficulty.Level, len(records))
		for _, r := range records {
			s := score.Replay(r)
			fmt.Printf("  %v  %v  x%.2f  %07d  %6.2f%%  %d/%d\n",
				r.Played.Local().Format("2006-01-02 15:04"), r.ID, r.Rate, s.Score, s.Accuracy*100, s.MaxCombo, s.Total)
		}
	}
	return nil
}
