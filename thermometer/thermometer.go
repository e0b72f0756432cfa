package thermometer

import (
	"github.com/alittlebrighter/rtclock/util"
)

// Thermometer defines the basic functions needed of a thermometer.
type Thermometer interface {
	ReadTemperature() (float64, util.TemperatureUnits, error)
	Shutdown()
}

// NewLocal returns a thermometer reading the sensor built into the clock chip.
func NewLocal(sensor Sensor) Thermometer {
	return NewChip(sensor)
}

// NewRemote returns a pointer to a thermometer service hosted remotely.
func NewRemote(endpoint string) (Thermometer, error) {
	return NewJSONWebService(endpoint)
}
