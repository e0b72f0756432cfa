package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alittlebrighter/rtclock/codec"
	"github.com/alittlebrighter/rtclock/ds3231"
	"github.com/alittlebrighter/rtclock/ds3231/ds3231test"
)

func newDevice(t *testing.T) (*ds3231.Device, *ds3231test.Chip) {
	t.Helper()
	chip := ds3231test.New()
	dev, err := ds3231.New(chip)
	require.NoError(t, err)
	return dev, chip
}

func runCmd(t *testing.T, dev *ds3231.Device, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(dev, args, &out)
	return strings.TrimSpace(out.String()), err
}

func TestSetAndEpoch(t *testing.T) {
	dev, chip := newDevice(t)

	out, err := runCmd(t, dev, "set", "2024-02-29T23:59:59Z")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29T23:59:59Z", out)

	out, err = runCmd(t, dev, "epoch")
	require.NoError(t, err)
	assert.Equal(t, "1709251199", out)

	regs := chip.Regs
	_, err = runCmd(t, dev, "epoch", "0")
	assert.ErrorIs(t, err, codec.ErrOutOfRange)
	_, err = runCmd(t, dev, "set", "2300-01-01T00:00:00Z")
	assert.ErrorIs(t, err, codec.ErrOutOfRange)
	assert.Equal(t, regs, chip.Regs)

	out, err = runCmd(t, dev, "epoch", "7258118399")
	require.NoError(t, err)
	assert.Equal(t, "7258118399", out)

	_, err = runCmd(t, dev, "set", "yesterday")
	assert.Error(t, err)
}

func TestStampAndMode(t *testing.T) {
	dev, chip := newDevice(t)

	out, err := runCmd(t, dev, "mode", "12h")
	require.NoError(t, err)
	assert.Equal(t, "12h", out)

	out, err = runCmd(t, dev, "stamp", "Oct 16 2026", "19:45:10")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-16T19:45:10Z", out)
	assert.Equal(t, byte(0x67), chip.Regs[ds3231.RegHours])

	_, err = runCmd(t, dev, "mode", "13h")
	assert.ErrorIs(t, err, codec.ErrOutOfRange)
}

func TestAlarmCommands(t *testing.T) {
	dev, chip := newDevice(t)

	out, err := runCmd(t, dev, "alarm", "1", "30")
	require.NoError(t, err)
	assert.Equal(t, "alarm1: seconds at :30 (disabled)", out)

	out, err = runCmd(t, dev, "enable", "1")
	require.NoError(t, err)
	assert.Equal(t, "alarm1: seconds at :30 (armed)", out)

	chip.Trigger(ds3231.Alarm1)
	out, err = runCmd(t, dev, "alarm", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "(triggered)")

	out, err = runCmd(t, dev, "clear", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "(armed)")

	weekday = true
	defer func() { weekday = false }()
	out, err = runCmd(t, dev, "alarm", "2", "2", "6", "45")
	require.NoError(t, err)
	assert.Equal(t, "alarm2: weekday on Monday at 06:45:00 (disabled)", out)

	out, err = runCmd(t, dev, "alarm", "2", "every")
	require.NoError(t, err)
	assert.Equal(t, "alarm2: every-minute (disabled)", out)

	_, err = runCmd(t, dev, "alarm", "3")
	assert.ErrorIs(t, err, ds3231.ErrAlarm)
	_, err = runCmd(t, dev, "alarm", "2", "1", "2", "3", "4")
	assert.ErrorIs(t, err, ds3231.ErrAlarmMatch)
	_, err = runCmd(t, dev, "alarm", "1", "61")
	assert.ErrorIs(t, err, codec.ErrOutOfRange)
	_, err = runCmd(t, dev, "enable")
	assert.ErrorIs(t, err, errUsage)
}

func TestPinAgingTemp(t *testing.T) {
	dev, chip := newDevice(t)
	chip.Regs[ds3231.RegTempMSB] = 24
	chip.Regs[ds3231.RegTempLSB] = 0x80

	out, err := runCmd(t, dev, "pin", "4kHz")
	require.NoError(t, err)
	assert.Equal(t, "4kHz", out)

	out, err = runCmd(t, dev, "aging", "-7")
	require.NoError(t, err)
	assert.Equal(t, "-7", out)

	out, err = runCmd(t, dev, "temp")
	require.NoError(t, err)
	assert.Equal(t, "24.50°C", out)

	_, err = runCmd(t, dev, "aging", "200")
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	dev, chip := newDevice(t)
	chip.Regs[ds3231.RegStatus] = ds3231.StatusOSF

	_, err := runCmd(t, dev, "stop")
	require.NoError(t, err)
	out, err := runCmd(t, dev, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "running:     false")
	assert.Contains(t, out, "lost power:  true")
	assert.Contains(t, out, "alarm2:")

	_, err = runCmd(t, dev, "start")
	require.NoError(t, err)
	out, err = runCmd(t, dev, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "running:     true")
}

func TestDescribeUnsetWeekday(t *testing.T) {
	dev, chip := newDevice(t)
	// DY set with a zero day of week
	chip.Regs[ds3231.RegAlarm2+2] = 0x40

	out, err := runCmd(t, dev, "alarm", "2")
	require.NoError(t, err)
	assert.Equal(t, "alarm2: weekday on weekday 0 at 00:00:00 (disabled)", out)
}

func TestUnknownCommand(t *testing.T) {
	dev, _ := newDevice(t)
	_, err := runCmd(t, dev, "reboot")
	assert.ErrorIs(t, err, errUsage)
}
