package codec

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrOutOfRange is returned by the validation helpers when a field cannot be represented
	// in its register.
	ErrOutOfRange = errors.New("value out of range")
	// ErrStamp is returned by ParseStamp for malformed date or time strings.
	ErrStamp = errors.New("malformed date/time stamp")
)

// DateTime is a decoded point in time as held by the chip. Hour is always 0-23 regardless of
// the chip's hour mode. Weekday runs 1-7 with 1 for Sunday; 0 means not supplied.
type DateTime struct {
	Second  uint8  `json:"second"`
	Minute  uint8  `json:"minute"`
	Hour    uint8  `json:"hour"`
	Day     uint8  `json:"day,omitempty"`
	Weekday uint8  `json:"weekday,omitempty"`
	Month   uint8  `json:"month,omitempty"`
	Year    uint16 `json:"year,omitempty"`
}

// NewDateTime returns a full calendar value. The weekday is left unset; no calendar
// arithmetic is done here.
func NewDateTime(year uint16, month, day, hour, minute, second uint8) DateTime {
	return DateTime{
		Second: second,
		Minute: minute,
		Hour:   hour,
		Day:    day,
		Month:  month,
		Year:   year,
	}
}

// NewTimeOfDay returns a value with only the clock fields set, as used for alarm payloads.
func NewTimeOfDay(hour, minute, second uint8) DateTime {
	return DateTime{Second: second, Minute: minute, Hour: hour}
}

// FromTime copies the calendar fields of t, in t's location, including the weekday.
func FromTime(t time.Time) DateTime {
	return DateTime{
		Second:  uint8(t.Second()),
		Minute:  uint8(t.Minute()),
		Hour:    uint8(t.Hour()),
		Day:     uint8(t.Day()),
		Weekday: uint8(t.Weekday()) + 1,
		Month:   uint8(t.Month()),
		Year:    uint16(t.Year()),
	}
}

// Time builds a time.Time in loc. The weekday is ignored.
func (dt DateTime) Time(loc *time.Location) time.Time {
	return time.Date(int(dt.Year), time.Month(dt.Month), int(dt.Day),
		int(dt.Hour), int(dt.Minute), int(dt.Second), 0, loc)
}

func (dt DateTime) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d",
		dt.Year, dt.Month, dt.Day, dt.Hour, dt.Minute, dt.Second)
}

// ValidateTimeOfDay checks the hour, minute and second fields.
func (dt DateTime) ValidateTimeOfDay() error {
	switch {
	case dt.Second > 59:
		return outOfRange("second", int(dt.Second))
	case dt.Minute > 59:
		return outOfRange("minute", int(dt.Minute))
	case dt.Hour > 23:
		return outOfRange("hour", int(dt.Hour))
	}
	return nil
}

// Validate checks every field against the range its register can hold.
func (dt DateTime) Validate() error {
	if err := dt.ValidateTimeOfDay(); err != nil {
		return err
	}
	switch {
	case dt.Day < 1 || dt.Day > 31:
		return outOfRange("day", int(dt.Day))
	case dt.Weekday > 7:
		return outOfRange("weekday", int(dt.Weekday))
	case dt.Month < 1 || dt.Month > 12:
		return outOfRange("month", int(dt.Month))
	case dt.Year < BaseYear || dt.Year >= BaseYear+200:
		return outOfRange("year", int(dt.Year))
	}
	return nil
}

func outOfRange(field string, v int) error {
	return fmt.Errorf("%w: %s %d", ErrOutOfRange, field, v)
}

// Calendar converts between calendar fields and seconds since the Unix epoch.
type Calendar interface {
	ToEpoch(DateTime) int64
	FromEpoch(int64) DateTime
}

type calendar struct {
	loc *time.Location
}

// NewCalendar returns a Calendar that interprets chip time in loc.
func NewCalendar(loc *time.Location) Calendar {
	return calendar{loc: loc}
}

// UTC treats chip time as UTC.
var UTC = NewCalendar(time.UTC)

func (c calendar) ToEpoch(dt DateTime) int64 {
	return dt.Time(c.loc).Unix()
}

func (c calendar) FromEpoch(epoch int64) DateTime {
	return FromTime(time.Unix(epoch, 0).In(c.loc))
}

// Layouts accepted by ParseStamp, in the format C compilers use for __DATE__ and __TIME__.
const (
	StampDate = "Jan _2 2006"
	StampTime = "15:04:05"
)

// ParseStamp parses a date string such as "Jan  2 2006" and a time string such as "15:04:05".
func ParseStamp(date, clock string) (DateTime, error) {
	d, err := time.Parse(StampDate, date)
	if err != nil {
		return DateTime{}, fmt.Errorf("%w: date %q: %v", ErrStamp, date, err)
	}
	c, err := time.Parse(StampTime, clock)
	if err != nil {
		return DateTime{}, fmt.Errorf("%w: time %q: %v", ErrStamp, clock, err)
	}
	dt := FromTime(time.Date(d.Year(), d.Month(), d.Day(),
		c.Hour(), c.Minute(), c.Second(), 0, time.UTC))
	return dt, nil
}
