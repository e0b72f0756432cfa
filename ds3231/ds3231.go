// Package ds3231 is a driver for the DS3231 real-time clock and all code is based off of the
// documentation found here:
// https://datasheets.maximintegrated.com/en/ds/DS3231.pdf
//
// Every operation reads the registers it needs, changes only the bits it owns and writes
// them back. Nothing is cached between calls: the oscillator, the alarm comparators and the
// battery domain change registers on their own. A Device is not safe for concurrent use.
//
// The field setters do not range check. Out-of-range input is packed as BCD anyway and the
// stored value is whatever the truncated byte decodes to, the same as writing the register
// directly. Validate with codec.DateTime.Validate or AlarmSpec.Validate first when the input
// is not trusted.
package ds3231

import (
	"errors"
	"fmt"

	"github.com/golang/glog"

	"github.com/alittlebrighter/rtclock/codec"
)

// ErrBusy is returned by ConvertTemperature while a conversion is already running.
var ErrBusy = errors.New("ds3231: temperature conversion in progress")

// Bus is the register-level I2C transport. embd.I2CBus satisfies it.
type Bus interface {
	ReadFromReg(addr, reg byte, value []byte) error
	WriteToReg(addr, reg byte, value []byte) error
}

// Device represents a DS3231 on an I2C bus.
type Device struct {
	Bus     Bus
	Address byte
	// Calendar converts between chip fields and epoch seconds for SetEpoch and Epoch.
	Calendar codec.Calendar
}

// New returns a handle to a DS3231 at the default address. It reads the control register
// once to make sure the chip answers.
func New(bus Bus) (*Device, error) {
	d := &Device{Bus: bus, Address: Address, Calendar: codec.UTC}

	_, err := d.read8(RegControl)
	return d, err
}

func (d *Device) read(reg byte, buf []byte) error {
	if err := d.Bus.ReadFromReg(d.Address, reg, buf); err != nil {
		return fmt.Errorf("ds3231: read %s: %w", regName(reg), err)
	}
	return nil
}

func (d *Device) write(reg byte, buf []byte) error {
	if glog.V(3) {
		glog.Infof("ds3231: write %s % x", regName(reg), buf)
	}
	if err := d.Bus.WriteToReg(d.Address, reg, buf); err != nil {
		return fmt.Errorf("ds3231: write %s: %w", regName(reg), err)
	}
	return nil
}

func (d *Device) read8(reg byte) (byte, error) {
	buf := [1]byte{}
	err := d.read(reg, buf[:])
	return buf[0], err
}

func (d *Device) write8(reg, val byte) error {
	buf := [1]byte{val}
	return d.write(reg, buf[:])
}

// update replaces the bits of reg selected by mask with the same bits of value, leaving the
// rest of the register as read, and returns the register as it was before the write.
func (d *Device) update(reg, mask, value byte) (byte, error) {
	prev, err := d.read8(reg)
	if err != nil {
		return 0, err
	}
	next := prev&^mask | value&mask
	if reg == RegStatus {
		// an alarm flag set between our read and write must survive; writing 1 leaves it alone.
		// OSF is written back as read.
		next |= StatusAlarmFlags &^ mask
	}
	glog.V(2).Infof("ds3231: %s %08b -> %08b", regName(reg), prev, next)
	return prev, d.write8(reg, next)
}

// setBits sets (set = true) or clears (set = false) bits in reg.
func (d *Device) setBits(reg, bits byte, set bool) error {
	var v byte
	if set {
		v = bits
	}
	_, err := d.update(reg, bits, v)
	return err
}

// readBits reports whether all of bits are set in reg.
func (d *Device) readBits(reg, bits byte) (bool, error) {
	v, err := d.read8(reg)
	return v&bits == bits, err
}

// StartClock enables the oscillator and clears the oscillator-stop flag. The alarm flags in
// the status register are left untouched.
func (d *Device) StartClock() error {
	if err := d.setBits(RegControl, ControlEOSC, false); err != nil {
		return err
	}
	return d.setBits(RegStatus, StatusOSF, false)
}

// StopClock stops the oscillator. The chip only honours this while running from the
// backup battery; on main power the oscillator keeps running.
func (d *Device) StopClock() error {
	return d.setBits(RegControl, ControlEOSC, true)
}

// IsRunning reports whether the oscillator is enabled and has not stopped since the last
// StartClock.
func (d *Device) IsRunning() (bool, error) {
	stopped, err := d.readBits(RegControl, ControlEOSC)
	if err != nil || stopped {
		return false, err
	}
	lost, err := d.LostPower()
	return !lost, err
}

// LostPower reports the oscillator-stop flag, set when the oscillator stopped at some point
// (power loss, EOSC on battery) and the time can no longer be trusted.
func (d *Device) LostPower() (bool, error) {
	return d.readBits(RegStatus, StatusOSF)
}
