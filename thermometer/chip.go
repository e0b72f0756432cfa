package thermometer

import (
	"github.com/alittlebrighter/rtclock/util"
)

// Sensor is the temperature half of a DS3231. *ds3231.Device and *rtclock.Clock both qualify.
type Sensor interface {
	Temperature() (float64, error)
}

// Chip is a simple wrapper of the DS3231 temperature sensor, which the chip uses for its
// oscillator compensation. Readings are refreshed by the chip every 64 seconds.
type Chip struct {
	sensor Sensor
}

// NewChip is the constructor for the Chip wrapper.
func NewChip(sensor Sensor) *Chip {
	return &Chip{sensor: sensor}
}

// ReadTemperature returns the last conversion in Celsius.
func (meter *Chip) ReadTemperature() (float64, util.TemperatureUnits, error) {
	temp, err := meter.sensor.Temperature()
	return temp, util.Celsius, err
}

// Shutdown does nothing; the bus belongs to whoever opened the device.
func (meter *Chip) Shutdown() {}
