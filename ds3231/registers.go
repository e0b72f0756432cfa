package ds3231

const (
	Address = 0x68 // I2C address for DS3231

	RegSeconds   = 0x00 // Time registers start here
	RegMinutes   = 0x01
	RegHours     = 0x02 // 12/24 mode and AM/PM bits share this register
	RegWeekday   = 0x03
	RegDate      = 0x04
	RegMonth     = 0x05 // Bit 7 holds the century
	RegYear      = 0x06
	RegAlarm1    = 0x07 // Alarm 1 seconds, minutes, hours, day/date
	RegAlarm2    = 0x0B // Alarm 2 minutes, hours, day/date
	RegControl   = 0x0E
	RegStatus    = 0x0F
	RegAging     = 0x10 // Aging offset, two's complement
	RegTempMSB   = 0x11 // Temperature integer part, two's complement
	RegTempLSB   = 0x12 // Temperature fraction in bits 7:6

	// RegisterCount is the size of the register space.
	RegisterCount = 0x13

	timeLen   = RegYear - RegSeconds + 1
	alarm1Len = RegAlarm2 - RegAlarm1
	alarm2Len = RegControl - RegAlarm2
)

// Control register bits.
const (
	ControlA1IE  = 1 << iota // Alarm 1 interrupt enable
	ControlA2IE              // Alarm 2 interrupt enable
	ControlINTCN             // INT/SQW pin outputs alarms instead of the square wave
	ControlRS1               // Square wave rate select
	ControlRS2
	ControlCONV  // Force temperature conversion
	ControlBBSQW // Square wave on battery power
	ControlEOSC  // Oscillator disabled on battery power when set
)

// Status register bits.
const (
	StatusA1F     = 1 << 0 // Alarm 1 matched
	StatusA2F     = 1 << 1 // Alarm 2 matched
	StatusBSY     = 1 << 2 // Temperature conversion in progress
	StatusEN32kHz = 1 << 3 // 32kHz output enabled
	StatusOSF     = 1 << 7 // Oscillator stopped since last cleared

	// StatusFlags are set by the chip and cleared by writing 0.
	StatusFlags = StatusA1F | StatusA2F | StatusOSF
	// StatusAlarmFlags ignore a written 1.
	StatusAlarmFlags = StatusA1F | StatusA2F
)

// Alarm register bits.
const (
	alarmMask    = 1 << 7 // Field does not take part in the match
	alarmDayDY   = 1 << 6 // Day register holds day of week instead of date
	monthCentury = 1 << 7
)

var regNames = [RegisterCount]string{
	"seconds", "minutes", "hours", "weekday", "date", "month", "year",
	"alarm1 seconds", "alarm1 minutes", "alarm1 hours", "alarm1 day",
	"alarm2 minutes", "alarm2 hours", "alarm2 day",
	"control", "status", "aging", "temp msb", "temp lsb",
}

func regName(reg byte) string {
	if int(reg) < len(regNames) {
		return regNames[reg]
	}
	return "unknown"
}
