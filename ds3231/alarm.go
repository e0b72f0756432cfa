package ds3231

import (
	"errors"
	"fmt"

	"github.com/alittlebrighter/rtclock/codec"
)

var (
	// ErrAlarm is returned for an alarm number other than 1 or 2.
	ErrAlarm = errors.New("ds3231: no such alarm")
	// ErrAlarmMatch is returned when an alarm cannot match on the requested fields, such as
	// seconds on alarm 2.
	ErrAlarmMatch = errors.New("ds3231: match not supported by alarm")
)

// Alarm selects one of the chip's two alarms.
type Alarm uint8

const (
	Alarm1 Alarm = 1
	Alarm2 Alarm = 2
)

func (a Alarm) String() string {
	return fmt.Sprintf("alarm%d", uint8(a))
}

// span returns the first register and number of registers of the alarm.
func (a Alarm) span() (byte, int, error) {
	switch a {
	case Alarm1:
		return RegAlarm1, alarm1Len, nil
	case Alarm2:
		return RegAlarm2, alarm2Len, nil
	}
	return 0, 0, fmt.Errorf("%w: %d", ErrAlarm, uint8(a))
}

// bits returns the alarm's interrupt-enable bit in the control register and its flag in the
// status register.
func (a Alarm) bits() (enable, flag byte, err error) {
	switch a {
	case Alarm1:
		return ControlA1IE, StatusA1F, nil
	case Alarm2:
		return ControlA2IE, StatusA2F, nil
	}
	return 0, 0, fmt.Errorf("%w: %d", ErrAlarm, uint8(a))
}

// Match is the set of fields an alarm compares against the live time. Every variant fires
// when all its fields match; the remaining fields are masked out in the alarm registers.
type Match uint8

const (
	// EverySecond fires every second. Alarm 1 only.
	EverySecond Match = iota
	// EveryMinute fires when seconds roll over to 00. Alarm 2 only.
	EveryMinute
	// MatchSeconds fires once a minute. Alarm 1 only.
	MatchSeconds
	// MatchMinutes fires once an hour: minutes and, for alarm 1, seconds.
	MatchMinutes
	// MatchHours fires once a day.
	MatchHours
	// MatchDate fires once a month on the given day of month.
	MatchDate
	// MatchWeekday fires once a week on the given day of week.
	MatchWeekday
)

var matchNames = [...]string{
	EverySecond:  "every-second",
	EveryMinute:  "every-minute",
	MatchSeconds: "seconds",
	MatchMinutes: "minutes",
	MatchHours:   "hours",
	MatchDate:    "date",
	MatchWeekday: "weekday",
}

func (m Match) String() string {
	if int(m) < len(matchNames) {
		return matchNames[m]
	}
	return fmt.Sprintf("Match(%d)", uint8(m))
}

func (m Match) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Match) UnmarshalText(text []byte) error {
	for i, name := range matchNames {
		if name == string(text) {
			*m = Match(i)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrAlarmMatch, text)
}

// compared returns how many of the alarm's registers, counted from the first, take part in
// the match.
func (a Alarm) compared(m Match) (int, error) {
	if _, _, err := a.span(); err != nil {
		return 0, err
	}
	// alarm 1 has one more register in front, the seconds
	extra := 0
	if a == Alarm1 {
		extra = 1
	}
	switch {
	case a == Alarm1 && m == EverySecond, a == Alarm2 && m == EveryMinute:
		return 0, nil
	case a == Alarm1 && m == MatchSeconds:
		return 1, nil
	case m == MatchMinutes:
		return extra + 1, nil
	case m == MatchHours:
		return extra + 2, nil
	case m == MatchDate, m == MatchWeekday:
		return extra + 3, nil
	}
	return 0, fmt.Errorf("%w: %s on %s", ErrAlarmMatch, m, a)
}

// State is the lifecycle of an alarm as seen through its enable bit and flag.
type State uint8

const (
	// Disabled alarms do not drive the interrupt output. The chip still sets the flag on a
	// match.
	Disabled State = iota
	// Armed alarms are enabled and have not matched since the flag was last cleared.
	Armed
	// Triggered alarms have matched; the flag stays set until ClearAlarm.
	Triggered
)

func (s State) String() string {
	switch s {
	case Armed:
		return "armed"
	case Triggered:
		return "triggered"
	default:
		return "disabled"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{Disabled, Armed, Triggered} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("ds3231: unknown alarm state %q", text)
}

// AlarmSpec is a partial time for an alarm and the fields it matches on. Fields of At not
// covered by Match are ignored when setting and decoded best effort when reading.
type AlarmSpec struct {
	Match Match          `json:"match"`
	At    codec.DateTime `json:"at"`
}

// EverySecondSpec returns an alarm 1 spec that fires every second.
func EverySecondSpec() AlarmSpec {
	return AlarmSpec{Match: EverySecond}
}

// AtSecond returns an alarm 1 spec firing once a minute at second.
func AtSecond(second uint8) AlarmSpec {
	return AlarmSpec{Match: MatchSeconds, At: codec.DateTime{Second: second}}
}

// AtMinuteSecond returns an alarm 1 spec firing once an hour.
func AtMinuteSecond(minute, second uint8) AlarmSpec {
	return AlarmSpec{Match: MatchMinutes, At: codec.DateTime{Minute: minute, Second: second}}
}

// AtTime returns an alarm 1 spec firing once a day. hour is 0-23.
func AtTime(hour, minute, second uint8) AlarmSpec {
	return AlarmSpec{Match: MatchHours, At: codec.NewTimeOfDay(hour, minute, second)}
}

// AtDateTime returns an alarm 1 spec firing once a month on day.
func AtDateTime(day, hour, minute, second uint8) AlarmSpec {
	at := codec.NewTimeOfDay(hour, minute, second)
	at.Day = day
	return AlarmSpec{Match: MatchDate, At: at}
}

// AtWeekdayTime returns an alarm 1 spec firing once a week on weekday, 1-7.
func AtWeekdayTime(weekday, hour, minute, second uint8) AlarmSpec {
	at := codec.NewTimeOfDay(hour, minute, second)
	at.Weekday = weekday
	return AlarmSpec{Match: MatchWeekday, At: at}
}

// EveryMinuteSpec returns an alarm 2 spec that fires every minute.
func EveryMinuteSpec() AlarmSpec {
	return AlarmSpec{Match: EveryMinute}
}

// AtMinute returns an alarm 2 spec firing once an hour.
func AtMinute(minute uint8) AlarmSpec {
	return AlarmSpec{Match: MatchMinutes, At: codec.DateTime{Minute: minute}}
}

// AtHourMinute returns an alarm 2 spec firing once a day.
func AtHourMinute(hour, minute uint8) AlarmSpec {
	return AlarmSpec{Match: MatchHours, At: codec.NewTimeOfDay(hour, minute, 0)}
}

// AtDate returns an alarm 2 spec firing once a month on day.
func AtDate(day, hour, minute uint8) AlarmSpec {
	at := codec.NewTimeOfDay(hour, minute, 0)
	at.Day = day
	return AlarmSpec{Match: MatchDate, At: at}
}

// AtWeekday returns an alarm 2 spec firing once a week on weekday, 1-7.
func AtWeekday(weekday, hour, minute uint8) AlarmSpec {
	at := codec.NewTimeOfDay(hour, minute, 0)
	at.Weekday = weekday
	return AlarmSpec{Match: MatchWeekday, At: at}
}

// AlarmFromFields picks the alarm settings from the number of fields given, most significant first:
// for alarm 1 (second), (minute, second), (hour, minute, second) or
// (day, hour, minute, second); for alarm 2 the same without the second. No fields means
// every second for alarm 1 and every minute for alarm 2.
func AlarmFromFields(a Alarm, fields ...uint8) (AlarmSpec, error) {
	f := fields
	switch {
	case a == Alarm1 && len(f) == 0:
		return EverySecondSpec(), nil
	case a == Alarm1 && len(f) == 1:
		return AtSecond(f[0]), nil
	case a == Alarm1 && len(f) == 2:
		return AtMinuteSecond(f[0], f[1]), nil
	case a == Alarm1 && len(f) == 3:
		return AtTime(f[0], f[1], f[2]), nil
	case a == Alarm1 && len(f) == 4:
		return AtDateTime(f[0], f[1], f[2], f[3]), nil
	case a == Alarm2 && len(f) == 0:
		return EveryMinuteSpec(), nil
	case a == Alarm2 && len(f) == 1:
		return AtMinute(f[0]), nil
	case a == Alarm2 && len(f) == 2:
		return AtHourMinute(f[0], f[1]), nil
	case a == Alarm2 && len(f) == 3:
		return AtDate(f[0], f[1], f[2]), nil
	}
	if _, _, err := a.span(); err != nil {
		return AlarmSpec{}, err
	}
	return AlarmSpec{}, fmt.Errorf("%w: %d fields for %s", ErrAlarmMatch, len(f), a)
}

// Validate checks that a supports the match and that every compared field is in range.
func (s AlarmSpec) Validate(a Alarm) error {
	if _, err := a.compared(s.Match); err != nil {
		return err
	}
	fields := s.At
	if a == Alarm2 {
		fields.Second = 0
	}
	if err := fields.ValidateTimeOfDay(); err != nil {
		return err
	}
	if s.Match == MatchWeekday && (s.At.Weekday < 1 || s.At.Weekday > 7) {
		return fmt.Errorf("%w: weekday %d", codec.ErrOutOfRange, s.At.Weekday)
	}
	if s.Match == MatchDate && (s.At.Day < 1 || s.At.Day > 31) {
		return fmt.Errorf("%w: day %d", codec.ErrOutOfRange, s.At.Day)
	}
	return nil
}

// alarmFields returns the register image of the alarm's fields as written by spec, without
// mask bits. Alarm 2 has no seconds register.
func alarmFields(a Alarm, s AlarmSpec) []byte {
	day := codec.ToBCD(s.At.Day) & dateField
	if s.Match == MatchWeekday {
		day = alarmDayDY | codec.ToBCD(s.At.Weekday)&weekdayField
	}
	fields := []byte{
		codec.ToBCD(s.At.Second) & secondsField,
		codec.ToBCD(s.At.Minute) & minutesField,
		codec.EncodeHour(s.At.Hour, codec.Mode24),
		day,
	}
	if a == Alarm2 {
		return fields[1:]
	}
	return fields
}

// SetAlarm writes spec to the alarm's registers. Compared fields are written with their mask
// bit clear; the other registers keep their value and get the mask bit set. Hours are stored
// in 24-hour form. The alarm's enable bit and flag are not changed.
func (d *Device) SetAlarm(a Alarm, spec AlarmSpec) error {
	reg, length, err := a.span()
	if err != nil {
		return err
	}
	n, err := a.compared(spec.Match)
	if err != nil {
		return err
	}

	buf := make([]byte, length)
	if err := d.read(reg, buf); err != nil {
		return err
	}
	fields := alarmFields(a, spec)
	for i := range buf {
		if i < n {
			buf[i] = fields[i]
		} else {
			buf[i] |= alarmMask
		}
	}
	return d.write(reg, buf)
}

// SetAlarm1 sets alarm 1.
func (d *Device) SetAlarm1(spec AlarmSpec) error {
	return d.SetAlarm(Alarm1, spec)
}

// SetAlarm2 sets alarm 2. Specs matching on seconds are rejected with ErrAlarmMatch.
func (d *Device) SetAlarm2(spec AlarmSpec) error {
	return d.SetAlarm(Alarm2, spec)
}

// GetAlarm reads the alarm back. Match is derived from the mask bits; every field is decoded,
// including the masked ones.
func (d *Device) GetAlarm(a Alarm) (AlarmSpec, error) {
	reg, length, err := a.span()
	if err != nil {
		return AlarmSpec{}, err
	}
	buf := make([]byte, length)
	if err := d.read(reg, buf); err != nil {
		return AlarmSpec{}, err
	}
	if a == Alarm2 {
		// line up with alarm 1's layout; alarm 2 always fires at second 00
		buf = append([]byte{0}, buf...)
	}

	spec := AlarmSpec{At: codec.DateTime{
		Second: codec.FromBCD(buf[0] & secondsField),
		Minute: codec.FromBCD(buf[1] & minutesField),
		Hour:   codec.CanonicalHour(buf[2] &^ alarmMask),
	}}
	day := buf[3]
	if day&alarmDayDY != 0 {
		spec.At.Weekday = codec.FromBCD(day & weekdayField)
	} else {
		spec.At.Day = codec.FromBCD(day & dateField)
	}

	first := 0
	if a == Alarm2 {
		first = 1
	}
	n := 0
	for _, b := range buf[first:] {
		if b&alarmMask != 0 {
			break
		}
		n++
	}
	spec.Match = matchFor(a, n, day&alarmDayDY != 0)
	return spec, nil
}

func matchFor(a Alarm, compared int, weekday bool) Match {
	if a == Alarm2 {
		compared++
	}
	switch compared {
	case 0:
		return EverySecond
	case 1:
		if a == Alarm2 {
			return EveryMinute
		}
		return MatchSeconds
	case 2:
		return MatchMinutes
	case 3:
		return MatchHours
	}
	if weekday {
		return MatchWeekday
	}
	return MatchDate
}

// Alarm1 reads alarm 1.
func (d *Device) Alarm1() (AlarmSpec, error) {
	return d.GetAlarm(Alarm1)
}

// Alarm2 reads alarm 2. The returned seconds are always 0.
func (d *Device) Alarm2() (AlarmSpec, error) {
	return d.GetAlarm(Alarm2)
}

// EnableAlarm sets the alarm's interrupt-enable bit. The INT/SQW pin only reports it while
// the pin is in interrupt mode, see EnableAlarmPin.
func (d *Device) EnableAlarm(a Alarm) error {
	enable, _, err := a.bits()
	if err != nil {
		return err
	}
	return d.setBits(RegControl, enable, true)
}

// DisableAlarm clears the alarm's interrupt-enable bit.
func (d *Device) DisableAlarm(a Alarm) error {
	enable, _, err := a.bits()
	if err != nil {
		return err
	}
	return d.setBits(RegControl, enable, false)
}

// AlarmEnabled reports the alarm's interrupt-enable bit.
func (d *Device) AlarmEnabled(a Alarm) (bool, error) {
	enable, _, err := a.bits()
	if err != nil {
		return false, err
	}
	return d.readBits(RegControl, enable)
}

// AlarmTriggered reports the alarm's flag in the status register.
func (d *Device) AlarmTriggered(a Alarm) (bool, error) {
	_, flag, err := a.bits()
	if err != nil {
		return false, err
	}
	return d.readBits(RegStatus, flag)
}

// ClearAlarm clears the alarm's flag, releasing the interrupt output. The other alarm's flag
// and the oscillator-stop flag are not touched.
func (d *Device) ClearAlarm(a Alarm) error {
	_, flag, err := a.bits()
	if err != nil {
		return err
	}
	return d.setBits(RegStatus, flag, false)
}

// AlarmState combines the enable bit and the flag.
func (d *Device) AlarmState(a Alarm) (State, error) {
	enabled, err := d.AlarmEnabled(a)
	if err != nil || !enabled {
		return Disabled, err
	}
	triggered, err := d.AlarmTriggered(a)
	if err != nil {
		return Disabled, err
	}
	if triggered {
		return Triggered, nil
	}
	return Armed, nil
}

// EnableAlarmPin routes the alarm interrupts to the INT/SQW pin, which stops the square
// wave output.
func (d *Device) EnableAlarmPin() error {
	_, err := d.update(RegControl, ControlINTCN|ControlBBSQW, ControlINTCN)
	return err
}
