// Package i2cbus opens the I2C bus a DS3231 hangs off, through either embd or periph.io.
package i2cbus

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/alittlebrighter/embd"
	_ "github.com/alittlebrighter/embd/host/rpi"
	"github.com/golang/glog"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/alittlebrighter/rtclock/ds3231"
)

// Driver names accepted by Open.
const (
	Embd   = "embd"
	Periph = "periph"
)

// Speed is the bus clock requested from periph.io. The DS3231 supports fast mode.
const Speed = 400 * physic.KiloHertz

var ErrDriver = errors.New("i2cbus: unknown driver")

// Bus is a ds3231.Bus that holds a host resource until closed.
type Bus interface {
	ds3231.Bus
	io.Closer
}

// Open opens I2C bus number with the named driver. An empty driver selects embd.
func Open(driver string, number int) (Bus, error) {
	switch driver {
	case "", Embd:
		return &embdBus{I2CBus: embd.NewI2CBus(byte(number))}, nil
	case Periph:
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("i2cbus: periph host init: %w", err)
		}
		bc, err := i2creg.Open(strconv.Itoa(number))
		if err != nil {
			return nil, fmt.Errorf("i2cbus: open bus %d: %w", number, err)
		}
		p := &PeriphBus{Bus: bc}
		if err := p.SetSpeed(Speed); err != nil {
			glog.Warningf("i2cbus: %s: keeping default speed: %v", bc, err)
		}
		return p, nil
	}
	return nil, fmt.Errorf("%w %q", ErrDriver, driver)
}

type embdBus struct {
	embd.I2CBus
}

// Close releases the bus and the embd I2C driver.
func (b *embdBus) Close() error {
	err := b.I2CBus.Close()
	if cerr := embd.CloseI2C(); err == nil {
		err = cerr
	}
	return err
}

// PeriphBus adapts a periph.io bus to register reads and writes: the register number goes
// out first, followed by the data for a write, or a repeated start and the read for a read.
type PeriphBus struct {
	Bus i2c.Bus
}

func (p *PeriphBus) ReadFromReg(addr, reg byte, value []byte) error {
	return p.Bus.Tx(uint16(addr), []byte{reg}, value)
}

func (p *PeriphBus) WriteToReg(addr, reg byte, value []byte) error {
	w := make([]byte, 0, len(value)+1)
	w = append(w, reg)
	w = append(w, value...)
	return p.Bus.Tx(uint16(addr), w, nil)
}

func (p *PeriphBus) SetSpeed(f physic.Frequency) error {
	return p.Bus.SetSpeed(f)
}

// Close closes the underlying bus when it can be closed.
func (p *PeriphBus) Close() error {
	if c, ok := p.Bus.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
