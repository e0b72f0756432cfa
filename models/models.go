package models

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/alittlebrighter/rtclock/ds3231"
	"github.com/alittlebrighter/rtclock/util"
)

// AlarmEvent is published each time the clock service sees an alarm flag set.
type AlarmEvent struct {
	ID          uuid.UUID        `json:"id"`
	Alarm       ds3231.Alarm     `json:"alarm"`
	Spec        ds3231.AlarmSpec `json:"spec"`
	ChipTime    time.Time        `json:"chipTime"`
	Temperature Temperature      `json:"temperature"`
}

// NewAlarmEvent stamps an event with a fresh random ID.
func NewAlarmEvent(alarm ds3231.Alarm, spec ds3231.AlarmSpec, chipTime time.Time, temp Temperature) *AlarmEvent {
	return &AlarmEvent{
		ID:          uuid.New(),
		Alarm:       alarm,
		Spec:        spec,
		ChipTime:    chipTime,
		Temperature: temp,
	}
}

type Temperature struct {
	Degrees float64               `json:"degrees"`
	Unit    util.TemperatureUnits `json:"unit"`
}

// TimeReport is the reply to a time request and the body of a time update.
type TimeReport struct {
	Time      time.Time `json:"time"`
	Epoch     int64     `json:"epoch"`
	HourMode  string    `json:"hourMode,omitempty"`
	Running   bool      `json:"running"`
	LostPower bool      `json:"lostPower"`
	Error     string    `json:"error,omitempty"`
}

// ErrNoTime is returned by SetTime.Target for a request without a time or an epoch.
var ErrNoTime = errors.New("time request has neither time nor epoch")

// SetTime is a request to set the chip clock. Exactly one of Time and Epoch is used; a zero
// Time selects Epoch.
type SetTime struct {
	Time  time.Time `json:"time"`
	Epoch int64     `json:"epoch"`
}

// Target returns the requested time.
func (s *SetTime) Target() (time.Time, error) {
	switch {
	case !s.Time.IsZero():
		return s.Time, nil
	case s.Epoch != 0:
		return time.Unix(s.Epoch, 0), nil
	}
	return time.Time{}, ErrNoTime
}
