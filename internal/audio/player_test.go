package audio

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
)

func TestLoadFailure(t *testing.T) {
	dir := t.TempDir()
	unsupported := filepath.Join(dir, "song.flac")
	if err := os.WriteFile(unsupported, []byte("fLaC"), 0o644); nil != err {
		t.Fatal(err)
	}
	garbage := filepath.Join(dir, "song.mp3")
	if err := os.WriteFile(garbage, []byte("not an mp3"), 0o644); nil != err {
		t.Fatal(err)
	}

	for _, path := range []string{filepath.Join(dir, "missing.ogg"), unsupported, garbage} {
		p, err := Load(path)
		if nil == err {
			p.Close()
			t.Errorf("%v: expected an error", path)
			continue
		}
		if !errors.Is(err, ErrLoad) {
			t.Errorf("%v: %v should match ErrLoad", path, err)
		}
		var le *LoadError
		if !errors.As(err, &le) || le.Path != path {
			t.Errorf("%v: expected a LoadError, got %#v", path, err)
		}
		if !strings.HasPrefix(err.Error(), "load-cali-failed") {
			t.Errorf("unexpected message %q", err)
		}
	}
}

func TestDecodeWav(t *testing.T) {
	path := filepath.Join(t.TempDir(), "click.wav")
	f, err := os.Create(path)
	if nil != err {
		t.Fatal(err)
	}
	format := beep.Format{SampleRate: 44100, NumChannels: 2, Precision: 2}
	if err := wav.Encode(f, beep.Silence(22050), format); nil != err {
		t.Fatal(err)
	}
	f.Close()

	s, got, err := Decode(path)
	if nil != err {
		t.Fatal(err)
	}
	defer s.Close()
	if got.SampleRate != format.SampleRate {
		t.Errorf("sample rate %v", got.SampleRate)
	}
	if s.Len() != 22050 {
		t.Errorf("expected 22050 samples, got %d", s.Len())
	}
}
