package ds3231

import "fmt"

// OutPin is the function of the INT/SQW pin.
type OutPin uint8

const (
	// OutInterrupt drives the pin low while an enabled alarm's flag is set.
	OutInterrupt OutPin = iota
	OutSquare1Hz
	OutSquare1kHz // 1.024kHz
	OutSquare4kHz // 4.096kHz
	OutSquare8kHz // 8.192kHz
)

var outPinNames = [...]string{"interrupt", "1Hz", "1kHz", "4kHz", "8kHz"}

func (p OutPin) String() string {
	if int(p) < len(outPinNames) {
		return outPinNames[p]
	}
	return fmt.Sprintf("OutPin(%d)", uint8(p))
}

func (p OutPin) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *OutPin) UnmarshalText(text []byte) error {
	for i, name := range outPinNames {
		if name == string(text) {
			*p = OutPin(i)
			return nil
		}
	}
	return fmt.Errorf("ds3231: unknown output pin mode %q", text)
}

const rateShift = 3 // RS1 position

// SetOutPin selects the INT/SQW pin function. Square wave modes also keep the output
// running on battery power.
func (d *Device) SetOutPin(p OutPin) error {
	switch {
	case p == OutInterrupt:
		return d.EnableAlarmPin()
	case p <= OutSquare8kHz:
		rate := byte(p-OutSquare1Hz) << rateShift
		_, err := d.update(RegControl, ControlINTCN|ControlBBSQW|ControlRS2|ControlRS1, ControlBBSQW|rate)
		return err
	}
	return fmt.Errorf("ds3231: unknown output pin mode %d", uint8(p))
}

// OutPin returns the INT/SQW pin function.
func (d *Device) OutPin() (OutPin, error) {
	ctrl, err := d.read8(RegControl)
	if err != nil {
		return 0, err
	}
	if ctrl&ControlINTCN != 0 {
		return OutInterrupt, nil
	}
	return OutSquare1Hz + OutPin((ctrl&(ControlRS2|ControlRS1))>>rateShift), nil
}

// InterruptMode reports whether the INT/SQW pin outputs alarm interrupts rather than the
// square wave.
func (d *Device) InterruptMode() (bool, error) {
	return d.readBits(RegControl, ControlINTCN)
}

// EnableSquareWave switches the INT/SQW pin to the square wave at the currently selected
// rate, which stops alarm interrupts on the pin.
func (d *Device) EnableSquareWave() error {
	_, err := d.update(RegControl, ControlINTCN|ControlBBSQW, ControlBBSQW)
	return err
}

// Set32kHz enables or disables the separate 32kHz output pin.
func (d *Device) Set32kHz(on bool) error {
	return d.setBits(RegStatus, StatusEN32kHz, on)
}

// Is32kHz reports whether the 32kHz output pin is enabled.
func (d *Device) Is32kHz() (bool, error) {
	return d.readBits(RegStatus, StatusEN32kHz)
}

// AgingOffset returns the oscillator trim. Positive values slow the oscillator down.
func (d *Device) AgingOffset() (int8, error) {
	v, err := d.read8(RegAging)
	return int8(v), err
}

// SetAgingOffset sets the oscillator trim. The change takes effect at the next temperature
// conversion; see ConvertTemperature.
func (d *Device) SetAgingOffset(offset int8) error {
	return d.write8(RegAging, byte(offset))
}

// Temperature returns the last converted temperature in degrees Celsius, with a resolution
// of 0.25°C. The chip converts every 64 seconds on its own.
func (d *Device) Temperature() (float64, error) {
	buf := [2]byte{}
	if err := d.read(RegTempMSB, buf[:]); err != nil {
		return 0, err
	}
	return float64(int8(buf[0])) + float64(buf[1]>>6)*0.25, nil
}

// ConvertTemperature starts a temperature conversion, which also applies the aging offset.
// It returns ErrBusy while a conversion is running.
func (d *Device) ConvertTemperature() error {
	status, err := d.read8(RegStatus)
	if err != nil {
		return err
	}
	ctrl, err := d.read8(RegControl)
	if err != nil {
		return err
	}
	if status&StatusBSY != 0 || ctrl&ControlCONV != 0 {
		return ErrBusy
	}
	return d.write8(RegControl, ctrl|ControlCONV)
}
