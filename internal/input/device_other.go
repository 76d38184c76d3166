//go:build !linux || !cgo

package input

import (
	"errors"

	"github.com/sirupsen/logrus"
)

func ReadDevice(path string, lanes []rune, d *Dispatcher, log logrus.FieldLogger) error {
	return errors.New("evdev input needs linux and cgo")
}
