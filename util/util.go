package util

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/alittlebrighter/rtclock/ds3231"
)

type TemperatureUnits string

const (
	Celsius    TemperatureUnits = "Celsius"
	Fahrenheit TemperatureUnits = "Fahrenheit"
)

// TempCToF converts temperature degrees from Celsius to Fahrenheit
func TempCToF(tempC float64) float64 {
	return tempC*9/5 + 32
}

// TempFToC converts temperature degrees from Fahrenheit to Celsius
func TempFToC(tempF float64) float64 {
	return (tempF - 32) * 5 / 9
}

// ConvertTemp converts degrees measured in from to the units to.
func ConvertTemp(degrees float64, from, to TemperatureUnits) float64 {
	switch {
	case from == Celsius && to == Fahrenheit:
		return TempCToF(degrees)
	case from == Fahrenheit && to == Celsius:
		return TempFToC(degrees)
	}
	return degrees
}

// ClockTime is a time of day written in kitchen format, "3:04PM".
type ClockTime time.Time

// NewClockTime returns the time of day hour:minute.
func NewClockTime(hour, minute int) ClockTime {
	return ClockTime(time.Date(0, time.January, 1, hour, minute, 0, 0, time.UTC))
}

func (t *ClockTime) UnmarshalJSON(data []byte) error {
	realTime, err := time.Parse(`"`+time.Kitchen+`"`, string(data))
	*t = ClockTime(realTime)
	return err
}

func (t ClockTime) MarshalJSON() ([]byte, error) {
	b := make([]byte, 0, len(time.Kitchen)+2)
	b = append(b, '"')
	b = t.AppendFormat(b, time.Kitchen)
	b = append(b, '"')
	return b, nil
}

func (t ClockTime) Hour() int {
	return time.Time(t).Hour()
}

func (t ClockTime) Minute() int {
	return time.Time(t).Minute()
}

func (t ClockTime) AppendFormat(dat []byte, format string) []byte {
	return time.Time(t).AppendFormat(dat, format)
}

// Duration is a time.Duration that reads and writes JSON as a string such as "30s". Plain
// numbers are accepted as nanoseconds.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration %s", data)
	}
	return nil
}

// EventLog records one observation of an alarm by the clock service.
type EventLog struct {
	Alarm       ds3231.Alarm     `json:"alarm"`
	State       ds3231.State     `json:"state"`
	Temperature float64          `json:"temperature"`
	Units       TemperatureUnits `json:"units"`
	Timestamp   time.Time        `json:"timestamp"`
	Error       string           `json:"error,omitempty"`
}

type RingBuffer struct {
	buffer []*EventLog
	index  uint
}

func NewRingBuffer(size uint) *RingBuffer {
	if size == 0 {
		size = 1
	}
	return &RingBuffer{buffer: make([]*EventLog, size)}
}

func (buf *RingBuffer) Add(item *EventLog) {
	if buf.index == uint(len(buf.buffer)) {
		buf.index = 0
	}
	buf.buffer[buf.index] = item
	buf.index = buf.index + 1
}

// GetAll returns the stored events, oldest first.
func (buf *RingBuffer) GetAll() []*EventLog {
	all := make([]*EventLog, 0, len(buf.buffer))
	for _, e := range append(buf.buffer[buf.index:], buf.buffer[:buf.index]...) {
		if e != nil {
			all = append(all, e)
		}
	}
	return all
}

func (buf *RingBuffer) GetLast() *EventLog {
	if buf.index == 0 {
		return buf.buffer[len(buf.buffer)-1]
	}

	return buf.buffer[buf.index-1]
}
