package ds3231

import (
	"errors"
	"time"

	"github.com/alittlebrighter/rtclock/codec"
)

// ErrHour24 is returned when a meridiem is set while the chip is in 24-hour mode.
var ErrHour24 = errors.New("ds3231: meridiem is undefined in 24-hour mode")

// Register field masks.
const (
	secondsField = 0x7F
	minutesField = 0x7F
	weekdayField = 0x07
	dateField    = 0x3F
	monthField   = 0x1F
)

func (d *Device) setField(reg, mask, v uint8) error {
	_, err := d.update(reg, mask, codec.ToBCD(v))
	return err
}

func (d *Device) field(reg, mask byte) (uint8, error) {
	v, err := d.read8(reg)
	return codec.FromBCD(v & mask), err
}

// SetSeconds sets the seconds register, 0-59.
func (d *Device) SetSeconds(second uint8) error {
	return d.setField(RegSeconds, secondsField, second)
}

// SetMinutes sets the minutes register, 0-59.
func (d *Device) SetMinutes(minute uint8) error {
	return d.setField(RegMinutes, minutesField, minute)
}

// SetHours sets the hour in the chip's current mode: 1-12 in 12-hour mode, where the
// meridiem bit is kept, or 0-23 in 24-hour mode.
func (d *Device) SetHours(hour uint8) error {
	reg, err := d.read8(RegHours)
	if err != nil {
		return err
	}
	mode := codec.ModeOf(reg)
	mask := codec.HourFieldMask(mode.Hours)
	next := reg&^mask | codec.EncodeHour(hour, mode)&mask
	return d.write8(RegHours, next)
}

// SetWeek sets the day of week, 1-7. The chip only increments it at midnight; the mapping
// to weekday names is up to the caller. Helpers in this package use 1 for Sunday.
func (d *Device) SetWeek(week uint8) error {
	return d.setField(RegWeekday, weekdayField, week)
}

// SetDay sets the day of month, 1-31.
func (d *Device) SetDay(day uint8) error {
	return d.setField(RegDate, dateField, day)
}

// SetMonth sets the month, 1-12. The century bit is kept.
func (d *Device) SetMonth(month uint8) error {
	return d.setField(RegMonth, monthField, month)
}

// SetYear sets the year, 2000-2199, across the year register and the century bit.
func (d *Device) SetYear(year uint16) error {
	reg, century := codec.EncodeYear(year)
	if err := d.write8(RegYear, reg); err != nil {
		return err
	}
	return d.setBits(RegMonth, monthCentury, century)
}

// SetDate sets day, month and year one register at a time. A failure part way leaves the
// fields already written in place; use WriteDateTime for a single bus transaction.
func (d *Device) SetDate(day, month uint8, year uint16) error {
	if err := d.SetDay(day); err != nil {
		return err
	}
	if err := d.SetMonth(month); err != nil {
		return err
	}
	return d.SetYear(year)
}

// SetTime sets hour, minute and second one register at a time, with the same caveat as
// SetDate. The hour is interpreted in the chip's current mode.
func (d *Device) SetTime(hour, minute, second uint8) error {
	if err := d.SetHours(hour); err != nil {
		return err
	}
	if err := d.SetMinutes(minute); err != nil {
		return err
	}
	return d.SetSeconds(second)
}

// Seconds returns the seconds register.
func (d *Device) Seconds() (uint8, error) {
	return d.field(RegSeconds, secondsField)
}

// Minutes returns the minutes register.
func (d *Device) Minutes() (uint8, error) {
	return d.field(RegMinutes, minutesField)
}

// Hours returns the hour as stored: 1-12 in 12-hour mode, 0-23 in 24-hour mode. Use
// Meridiem to tell AM from PM.
func (d *Device) Hours() (uint8, error) {
	reg, err := d.read8(RegHours)
	if err != nil {
		return 0, err
	}
	return codec.DecodeHour(reg, codec.ModeOf(reg)), nil
}

// Week returns the day of week.
func (d *Device) Week() (uint8, error) {
	return d.field(RegWeekday, weekdayField)
}

// Day returns the day of month.
func (d *Device) Day() (uint8, error) {
	return d.field(RegDate, dateField)
}

// Month returns the month.
func (d *Device) Month() (uint8, error) {
	return d.field(RegMonth, monthField)
}

// Year returns the full year.
func (d *Device) Year() (uint16, error) {
	buf := [2]byte{}
	if err := d.read(RegMonth, buf[:]); err != nil {
		return 0, err
	}
	return codec.DecodeYear(buf[1], buf[0]&monthCentury != 0), nil
}

// SetHourMode switches between 12- and 24-hour mode. The stored hour is not converted:
// the numeric field keeps its bits and is read in the new mode from then on, so 3 PM
// becomes 03:00 when switching to 24-hour mode. Leaving 12-hour mode also drops the
// meridiem bit, which is the 20-hour digit in 24-hour mode.
func (d *Device) SetHourMode(mode codec.HourMode) error {
	if mode == codec.Hour12 {
		_, err := d.update(RegHours, 1<<6, 1<<6)
		return err
	}
	_, err := d.update(RegHours, 1<<6|1<<5, 0)
	return err
}

// HourMode returns the chip's hour mode.
func (d *Device) HourMode() (codec.HourMode, error) {
	reg, err := d.read8(RegHours)
	return codec.ModeOf(reg).Hours, err
}

// SetMeridiem sets AM or PM without touching the hour. It fails with ErrHour24 in
// 24-hour mode.
func (d *Device) SetMeridiem(m codec.Meridiem) error {
	reg, err := d.read8(RegHours)
	if err != nil {
		return err
	}
	if codec.ModeOf(reg).Hours == codec.Hour24 {
		return ErrHour24
	}
	reg &^= 1 << 5
	if m == codec.PM {
		reg |= 1 << 5
	}
	return d.write8(RegHours, reg)
}

// Meridiem returns AM or PM in 12-hour mode and NoMeridiem in 24-hour mode.
func (d *Device) Meridiem() (codec.Meridiem, error) {
	reg, err := d.read8(RegHours)
	return codec.ModeOf(reg).Meridiem, err
}

// ReadDateTime reads all time and calendar registers in one bus transaction, so the fields
// are consistent with each other. The hour is returned as 0-23 whatever the mode.
func (d *Device) ReadDateTime() (codec.DateTime, error) {
	buf := [timeLen]byte{}
	if err := d.read(RegSeconds, buf[:]); err != nil {
		return codec.DateTime{}, err
	}
	return codec.DateTime{
		Second:  codec.FromBCD(buf[RegSeconds] & secondsField),
		Minute:  codec.FromBCD(buf[RegMinutes] & minutesField),
		Hour:    codec.CanonicalHour(buf[RegHours]),
		Weekday: codec.FromBCD(buf[RegWeekday] & weekdayField),
		Day:     codec.FromBCD(buf[RegDate] & dateField),
		Month:   codec.FromBCD(buf[RegMonth] & monthField),
		Year:    codec.DecodeYear(buf[RegYear], buf[RegMonth]&monthCentury != 0),
	}, nil
}

// WriteDateTime writes all time and calendar registers in one bus transaction. dt.Hour is
// 0-23 and is stored in the chip's current hour mode. A zero weekday keeps the stored one.
func (d *Device) WriteDateTime(dt codec.DateTime) error {
	buf := [timeLen]byte{}
	if err := d.read(RegSeconds, buf[:]); err != nil {
		return err
	}

	mode := codec.ModeOf(buf[RegHours])
	hour := dt.Hour
	if mode.Hours == codec.Hour12 {
		hour, mode.Meridiem = codec.From24(dt.Hour)
	}
	year, century := codec.EncodeYear(dt.Year)

	buf[RegSeconds] = buf[RegSeconds]&^secondsField | codec.ToBCD(dt.Second)&secondsField
	buf[RegMinutes] = buf[RegMinutes]&^minutesField | codec.ToBCD(dt.Minute)&minutesField
	buf[RegHours] = buf[RegHours]&(1<<7) | codec.EncodeHour(hour, mode)
	if dt.Weekday != 0 {
		buf[RegWeekday] = buf[RegWeekday]&^weekdayField | codec.ToBCD(dt.Weekday)&weekdayField
	}
	buf[RegDate] = buf[RegDate]&^dateField | codec.ToBCD(dt.Day)&dateField
	buf[RegMonth] = buf[RegMonth]&^(monthField|monthCentury) | codec.ToBCD(dt.Month)&monthField
	if century {
		buf[RegMonth] |= monthCentury
	}
	buf[RegYear] = year
	return d.write(RegSeconds, buf[:])
}

// Now returns the chip time, read in one transaction and placed by the Device's calendar.
func (d *Device) Now() (time.Time, error) {
	dt, err := d.ReadDateTime()
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(d.calendar().ToEpoch(dt), 0), nil
}

// Set writes t, rounded down to the second, as converted by the Device's calendar.
func (d *Device) Set(t time.Time) error {
	return d.SetEpoch(t.Unix())
}

// SetEpoch sets the chip from seconds since the Unix epoch.
func (d *Device) SetEpoch(epoch int64) error {
	return d.WriteDateTime(d.calendar().FromEpoch(epoch))
}

// CheckEpoch reports codec.ErrOutOfRange when epoch falls outside the years 2000-2199 the
// registers can hold once converted by the Device's calendar. Set and SetEpoch do not check.
func (d *Device) CheckEpoch(epoch int64) error {
	return d.calendar().FromEpoch(epoch).Validate()
}

// Epoch returns the chip time as seconds since the Unix epoch.
func (d *Device) Epoch() (int64, error) {
	dt, err := d.ReadDateTime()
	if err != nil {
		return 0, err
	}
	return d.calendar().ToEpoch(dt), nil
}

// SetDateTimeStamp sets the date and time from strings such as "Jan  2 2006" and
// "15:04:05", field by field. In 12-hour mode the meridiem is set from the parsed hour.
func (d *Device) SetDateTimeStamp(date, clock string) error {
	dt, err := codec.ParseStamp(date, clock)
	if err != nil {
		return err
	}
	mode, err := d.HourMode()
	if err != nil {
		return err
	}
	hour := dt.Hour
	if mode == codec.Hour12 {
		var m codec.Meridiem
		hour, m = codec.From24(dt.Hour)
		if err := d.SetMeridiem(m); err != nil {
			return err
		}
	}
	if err := d.SetDate(dt.Day, dt.Month, dt.Year); err != nil {
		return err
	}
	if err := d.SetWeek(dt.Weekday); err != nil {
		return err
	}
	return d.SetTime(hour, dt.Minute, dt.Second)
}

func (d *Device) calendar() codec.Calendar {
	if d.Calendar == nil {
		return codec.UTC
	}
	return d.Calendar
}
