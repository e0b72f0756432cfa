// Package ds3231test provides a register-level model of a DS3231 for tests. It implements
// ds3231.Bus with the write semantics of the status register: the alarm flags can only be
// cleared and BSY is read-only.
package ds3231test

import (
	"errors"
	"fmt"

	"github.com/alittlebrighter/rtclock/ds3231"
)

var (
	// ErrNoDevice is returned for transactions addressed elsewhere, like a missing ack.
	ErrNoDevice = errors.New("ds3231test: no device at address")
	// ErrFailed is returned once FailAfter transactions have been made.
	ErrFailed = errors.New("ds3231test: bus failure")
)

// Chip is an in-memory DS3231 register file.
type Chip struct {
	Address byte
	Regs    [ds3231.RegisterCount]byte
	// Err fails every transaction when set.
	Err error
	// FailAfter, when positive, fails every transaction after the first FailAfter.
	FailAfter int

	Reads, Writes int
}

// New returns a chip at the default address with all registers zero: 24-hour mode,
// oscillator enabled, both alarms disabled.
func New() *Chip {
	return &Chip{Address: ds3231.Address}
}

func (c *Chip) check(addr, reg byte, n int) error {
	switch {
	case c.Err != nil:
		return c.Err
	case c.FailAfter > 0 && c.Reads+c.Writes >= c.FailAfter:
		return ErrFailed
	case addr != c.Address:
		return fmt.Errorf("%w %#02x", ErrNoDevice, addr)
	case int(reg)+n > len(c.Regs):
		return fmt.Errorf("ds3231test: register %#02x+%d out of range", reg, n)
	}
	return nil
}

// ReadFromReg implements ds3231.Bus.
func (c *Chip) ReadFromReg(addr, reg byte, value []byte) error {
	if err := c.check(addr, reg, len(value)); err != nil {
		return err
	}
	c.Reads++
	copy(value, c.Regs[reg:])
	return nil
}

// WriteToReg implements ds3231.Bus.
func (c *Chip) WriteToReg(addr, reg byte, value []byte) error {
	if err := c.check(addr, reg, len(value)); err != nil {
		return err
	}
	c.Writes++
	for i, v := range value {
		r := int(reg) + i
		if r == ds3231.RegStatus {
			old := c.Regs[r]
			v = old&v&ds3231.StatusAlarmFlags | v&^(ds3231.StatusAlarmFlags|ds3231.StatusBSY) | old&ds3231.StatusBSY
		}
		c.Regs[r] = v
	}
	return nil
}

// Trigger sets the alarm's flag the way a match in the chip would.
func (c *Chip) Trigger(a ds3231.Alarm) {
	switch a {
	case ds3231.Alarm1:
		c.Regs[ds3231.RegStatus] |= ds3231.StatusA1F
	case ds3231.Alarm2:
		c.Regs[ds3231.RegStatus] |= ds3231.StatusA2F
	}
}

// Transactions returns the number of successful reads and writes.
func (c *Chip) Transactions() int {
	return c.Reads + c.Writes
}
