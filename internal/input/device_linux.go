//go:build linux && cgo

package input

// #include <linux/input-event-codes.h>
// #include <linux/input.h>
import "C"

import (
	"encoding/binary"
	"fmt"
	"os"
	"syscall"
	"time"

	"git.lost.host/meutraa/judgeline/internal/game"
	"github.com/sirupsen/logrus"
)

type keyEvent struct {
	Time  syscall.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

var keyCodes = map[rune]uint16{
	'a': C.KEY_A, 'b': C.KEY_B, 'c': C.KEY_C, 'd': C.KEY_D, 'e': C.KEY_E,
	'f': C.KEY_F, 'g': C.KEY_G, 'h': C.KEY_H, 'i': C.KEY_I, 'j': C.KEY_J,
	'k': C.KEY_K, 'l': C.KEY_L, 'm': C.KEY_M, 'n': C.KEY_N, 'o': C.KEY_O,
	'p': C.KEY_P, 'q': C.KEY_Q, 'r': C.KEY_R, 's': C.KEY_S, 't': C.KEY_T,
	'u': C.KEY_U, 'v': C.KEY_V, 'w': C.KEY_W, 'x': C.KEY_X, 'y': C.KEY_Y,
	'z': C.KEY_Z, ';': C.KEY_SEMICOLON, ' ': C.KEY_SPACE,
}

// ReadDevice reads key presses and releases from an evdev device. Each key in
// lanes becomes a pointer resting at its lane index on the X axis.
func ReadDevice(path string, lanes []rune, d *Dispatcher, log logrus.FieldLogger) error {
	codes := map[uint16]int{}
	for i, r := range lanes {
		code, ok := keyCodes[r]
		if !ok {
			return fmt.Errorf("no key code for %q", r)
		}
		codes[code] = i
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	go func() {
		defer file.Close()

		var ev keyEvent
		for {
			err := binary.Read(file, binary.LittleEndian, &ev)
			if nil != err {
				log.WithError(err).Error("unable to read keyboard input")
				return
			}
			// value 2 is auto repeat
			if ev.Type != C.EV_KEY || ev.Value == 2 {
				continue
			}
			lane, ok := codes[ev.Code]
			if !ok {
				continue
			}
			kind := game.Up
			if ev.Value == 1 {
				kind = game.Down
			}
			d.Push(RawEvent{
				Pointer: int(ev.Code),
				Kind:    kind,
				X:       float64(lane),
				At:      time.Unix(int64(ev.Time.Sec), int64(ev.Time.Usec)*1000),
			})
		}
	}()
	return nil
}
