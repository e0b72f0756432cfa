package interrupt

import (
	"github.com/golang/glog"
	"github.com/stianeikeland/go-rpio"
)

const asserted = rpio.Low

// GPIOWatcher reads the interrupt line on a Raspberry Pi GPIO pin.
type GPIOWatcher struct {
	pin rpio.Pin
}

// NewGPIOWatcher opens the GPIO memory range and sets pin (BCM numbering) up as a pulled-up
// input, since the chip only ever pulls the line low.
func NewGPIOWatcher(pin int) (*GPIOWatcher, error) {
	err := rpio.Open()
	if err != nil {
		return nil, err
	}

	w := new(GPIOWatcher)
	w.pin = rpio.Pin(pin)
	w.pin.Input()
	w.pin.PullUp()

	glog.Infof("interrupt: watching GPIO %d", pin)
	return w, nil
}

// Level samples the line.
func (w *GPIOWatcher) Level() Level {
	if w.pin.Read() == asserted {
		return Asserted
	}
	return Released
}

// Close returns the pin to its default pull and releases the GPIO memory range.
func (w *GPIOWatcher) Close() error {
	w.pin.PullOff()
	return rpio.Close()
}
