// Package codec converts between plain integers and the packed BCD fields stored in the
// DS3231 time, calendar and alarm registers.
//
// Nothing here talks to hardware. Encoders do not range check: a value outside a field's
// BCD range is packed anyway and the result is truncated, matching the chip's own silent
// wraparound. Use DateTime.Validate in front of the encoders when input is untrusted.
package codec

import "fmt"

// Hour register layout.
const (
	hour12Bit   = 1 << 6 // 12-hour mode select
	pmBit       = 1 << 5 // PM in 12-hour mode, 20-hour digit in 24-hour mode
	hour12Field = 0x1F
	hour24Field = 0x3F
)

// ToBCD packs v into a byte with the tens digit in the high nibble. v must be 0-99.
func ToBCD(v uint8) byte {
	return v + 6*(v/10)
}

// FromBCD unpacks a BCD byte. Any byte is accepted; nibbles above 9 are not rejected.
func FromBCD(b byte) uint8 {
	return b - 6*(b>>4)
}

// HourMode selects how the hour register is interpreted.
type HourMode uint8

const (
	Hour24 HourMode = iota
	Hour12
)

func (m HourMode) String() string {
	if m == Hour12 {
		return "12h"
	}
	return "24h"
}

func (m HourMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *HourMode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "12h", "12":
		*m = Hour12
	case "24h", "24", "":
		*m = Hour24
	default:
		return fmt.Errorf("%w: hour mode %q", ErrOutOfRange, text)
	}
	return nil
}

// Meridiem is the AM/PM half of a 12-hour reading. NoMeridiem is reported in 24-hour mode.
type Meridiem uint8

const (
	AM Meridiem = iota
	PM
	NoMeridiem
)

func (m Meridiem) String() string {
	switch m {
	case AM:
		return "AM"
	case PM:
		return "PM"
	default:
		return "24h"
	}
}

// ClockMode is the hour mode together with the meridiem flag, both stored in the hour register.
type ClockMode struct {
	Hours    HourMode
	Meridiem Meridiem
}

// Mode24 is the 24-hour clock mode.
var Mode24 = ClockMode{Hours: Hour24, Meridiem: NoMeridiem}

// ModeOf reads the mode bits of an hour register.
func ModeOf(reg byte) ClockMode {
	if reg&hour12Bit == 0 {
		return Mode24
	}
	if reg&pmBit != 0 {
		return ClockMode{Hours: Hour12, Meridiem: PM}
	}
	return ClockMode{Hours: Hour12, Meridiem: AM}
}

// EncodeHour packs hour for the given mode, including the mode bits. In 12-hour mode hour is
// 1-12 and the meridiem selects bit 5; in 24-hour mode hour is 0-23.
func EncodeHour(hour uint8, mode ClockMode) byte {
	if mode.Hours == Hour24 {
		return ToBCD(hour) & hour24Field
	}
	b := byte(hour12Bit) | ToBCD(hour)&hour12Field
	if mode.Meridiem == PM {
		b |= pmBit
	}
	return b
}

// DecodeHour unpacks the numeric hour field of reg as seen in the given mode. The result is
// 1-12 in 12-hour mode and 0-23 in 24-hour mode.
func DecodeHour(reg byte, mode ClockMode) uint8 {
	if mode.Hours == Hour24 {
		return FromBCD(reg & hour24Field)
	}
	return FromBCD(reg & hour12Field)
}

// HourFieldMask returns the bits of the hour register holding the numeric hour in mode.
func HourFieldMask(mode HourMode) byte {
	if mode == Hour12 {
		return hour12Field
	}
	return hour24Field
}

// CanonicalHour decodes reg using its own mode bits and returns 0-23.
func CanonicalHour(reg byte) uint8 {
	mode := ModeOf(reg)
	h := DecodeHour(reg, mode)
	if mode.Hours == Hour12 {
		return To24(h, mode.Meridiem)
	}
	return h
}

// To24 converts a 1-12 hour and meridiem to 0-23.
func To24(hour uint8, m Meridiem) uint8 {
	h := hour % 12
	if m == PM {
		h += 12
	}
	return h
}

// From24 converts a 0-23 hour to 1-12 and a meridiem.
func From24(hour uint8) (uint8, Meridiem) {
	m := AM
	if hour >= 12 {
		m = PM
	}
	h := hour % 12
	if h == 0 {
		h = 12
	}
	return h, m
}

// BaseYear is the year stored as 00 with the century bit clear.
const BaseYear = 2000

// EncodeYear splits a full year into the BCD year register and the century flag kept in
// bit 7 of the month register. Years outside 2000-2199 wrap.
func EncodeYear(year uint16) (byte, bool) {
	off := year - BaseYear
	return ToBCD(uint8(off % 100)), (off/100)%2 == 1
}

// DecodeYear is the inverse of EncodeYear.
func DecodeYear(reg byte, century bool) uint16 {
	y := BaseYear + uint16(FromBCD(reg))
	if century {
		y += 100
	}
	return y
}
