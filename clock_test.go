package rtclock

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alittlebrighter/rtclock/codec"
	"github.com/alittlebrighter/rtclock/ds3231"
	"github.com/alittlebrighter/rtclock/ds3231/ds3231test"
	"github.com/alittlebrighter/rtclock/interrupt"
	"github.com/alittlebrighter/rtclock/models"
	"github.com/alittlebrighter/rtclock/util"
)

func newTestClock(t *testing.T) (*Clock, *ds3231test.Chip, *MockNotifier) {
	t.Helper()
	chip := ds3231test.New()
	dev, err := ds3231.New(chip)
	require.NoError(t, err)

	clock := &Clock{
		HourMode:       codec.Hour24,
		OutPin:         ds3231.OutInterrupt,
		AgingOffset:    -2,
		MaxErrors:      2,
		PollInterval:   util.Duration(time.Millisecond),
		UnitPreference: util.Celsius,
		Alarms: []*AlarmSchedule{
			{Alarm: ds3231.Alarm1, Match: ds3231.MatchHours, At: util.NewClockTime(6, 30), Second: 15, Enabled: true},
			{Alarm: ds3231.Alarm2, Match: ds3231.MatchWeekday, Day: 2, At: util.NewClockTime(22, 0)},
		},
	}
	notifier := new(MockNotifier)
	clock.SetDevice(dev)
	clock.SetNotifier(notifier)
	clock.SetEventBuffer(10)
	return clock, chip, notifier
}

func TestValidate(t *testing.T) {
	valid := func() *Clock {
		return &Clock{
			HourMode: codec.Hour12,
			Alarms: []*AlarmSchedule{
				{Alarm: ds3231.Alarm1, Match: ds3231.MatchSeconds, Second: 59},
				{Alarm: ds3231.Alarm2, Match: ds3231.MatchDate, Day: 31, At: util.NewClockTime(23, 59)},
			},
		}
	}
	require.NoError(t, valid().Validate())

	tests := map[string]func(*Clock){
		"hour mode":       func(c *Clock) { c.HourMode = 7 },
		"output pin":      func(c *Clock) { c.OutPin = 9 },
		"poll interval":   func(c *Clock) { c.PollInterval = -1 },
		"units":           func(c *Clock) { c.UnitPreference = "Kelvin" },
		"location":        func(c *Clock) { c.Location = "Nowhere/Special" },
		"duplicate alarm": func(c *Clock) { c.Alarms[1].Alarm = ds3231.Alarm1 },
		"nil alarm":       func(c *Clock) { c.Alarms[0] = nil },
		"alarm2 seconds":  func(c *Clock) { c.Alarms[1].Match = ds3231.MatchSeconds },
		"second range":    func(c *Clock) { c.Alarms[0].Second = 60 },
		"day range":       func(c *Clock) { c.Alarms[1].Day = 0 },
	}
	for name, breakIt := range tests {
		t.Run(name, func(t *testing.T) {
			c := valid()
			breakIt(c)
			assert.ErrorIs(t, c.Validate(), ErrConfig)
		})
	}

	c := valid()
	c.Alarms[1].Match = ds3231.MatchSeconds
	assert.ErrorIs(t, c.Validate(), ds3231.ErrAlarmMatch)
}

func TestAlarmScheduleSpec(t *testing.T) {
	s := &AlarmSchedule{Alarm: ds3231.Alarm2, Match: ds3231.MatchWeekday, Day: 3, At: util.NewClockTime(18, 45), Second: 30}
	assert.Equal(t, ds3231.AtWeekday(3, 18, 45), s.Spec())

	s = &AlarmSchedule{Alarm: ds3231.Alarm1, Match: ds3231.MatchDate, Day: 12, At: util.NewClockTime(0, 5), Second: 30}
	assert.Equal(t, ds3231.AtDateTime(12, 0, 5, 30), s.Spec())
}

func TestApply(t *testing.T) {
	clock, chip, _ := newTestClock(t)
	chip.Regs[ds3231.RegControl] = ds3231.ControlEOSC | ds3231.ControlBBSQW
	chip.Regs[ds3231.RegStatus] = ds3231.StatusA1F | ds3231.StatusA2F

	require.NoError(t, clock.Apply())

	assert.Equal(t, byte(ds3231.ControlINTCN|ds3231.ControlA1IE), chip.Regs[ds3231.RegControl])
	assert.Zero(t, chip.Regs[ds3231.RegStatus]&ds3231.StatusFlags)
	assert.Equal(t, byte(0xFE), chip.Regs[ds3231.RegAging])
	assert.Equal(t, []byte{0x15, 0x30, 0x06, 0x80}, chip.Regs[ds3231.RegAlarm1:ds3231.RegAlarm2])
	assert.Equal(t, []byte{0x00, 0x22, 0x42}, chip.Regs[ds3231.RegAlarm2:ds3231.RegControl])

	statuses, err := clock.AlarmStatuses()
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, ds3231.Armed, statuses[0].State)
	assert.Equal(t, ds3231.Disabled, statuses[1].State)
	assert.Equal(t, ds3231.MatchWeekday, statuses[1].Spec.Match)
}

func TestApplyKeepsTimeAcrossHourModes(t *testing.T) {
	clock, chip, _ := newTestClock(t)
	at := time.Date(2024, 2, 29, 15, 4, 5, 0, time.UTC)
	require.NoError(t, clock.Set(at))

	clock.HourMode = codec.Hour12
	require.NoError(t, clock.Apply())
	assert.Equal(t, byte(0x63), chip.Regs[ds3231.RegHours])

	now, err := clock.Now()
	require.NoError(t, err)
	assert.True(t, at.Equal(now), "got %s", now)
}

func TestSetRejectsTimesOutsideChipRange(t *testing.T) {
	clock, chip, _ := newTestClock(t)
	at := time.Date(2024, 2, 29, 15, 4, 5, 0, time.UTC)
	require.NoError(t, clock.Set(at))
	regs := chip.Regs

	for _, bad := range []time.Time{
		time.Unix(0, 0),
		time.Date(1999, 12, 31, 23, 59, 59, 0, time.UTC),
		time.Date(2200, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC),
	} {
		assert.ErrorIs(t, clock.Set(bad), codec.ErrOutOfRange, bad.String())
	}
	assert.Equal(t, regs, chip.Regs)

	last := time.Date(2199, 12, 31, 23, 59, 59, 0, time.UTC)
	require.NoError(t, clock.Set(last))
	now, err := clock.Now()
	require.NoError(t, err)
	assert.True(t, last.Equal(now), "got %s", now)
}

func TestApplySyncsAfterPowerLoss(t *testing.T) {
	clock, chip, _ := newTestClock(t)
	chip.Regs[ds3231.RegStatus] = ds3231.StatusOSF

	require.NoError(t, clock.Apply())
	now, err := clock.Now()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), now, 2*time.Second)

	status, err := clock.Status()
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.False(t, status.LostPower)
	assert.Equal(t, "24h", status.HourMode)
}

func TestPoll(t *testing.T) {
	clock, chip, notifier := newTestClock(t)
	require.NoError(t, clock.Apply())
	chip.Regs[ds3231.RegTempMSB] = 20
	chip.Regs[ds3231.RegTempLSB] = 0x40

	fired, err := clock.Poll()
	require.NoError(t, err)
	assert.Empty(t, fired)

	// alarm 2 is disabled, its flag is not reported
	chip.Trigger(ds3231.Alarm1)
	chip.Trigger(ds3231.Alarm2)
	fired, err = clock.Poll()
	require.NoError(t, err)
	require.Len(t, fired, 1)
	assert.Equal(t, ds3231.Alarm1, fired[0].Alarm)
	assert.Equal(t, ds3231.MatchHours, fired[0].Spec.Match)
	assert.Equal(t, 20.25, fired[0].Temperature.Degrees)

	assert.Equal(t, fired, notifier.events)
	assert.Zero(t, chip.Regs[ds3231.RegStatus]&ds3231.StatusA1F)
	assert.NotZero(t, chip.Regs[ds3231.RegStatus]&ds3231.StatusA2F)

	events := clock.Events()
	require.Len(t, events, 1)
	assert.Equal(t, ds3231.Alarm1, events[0].Alarm)
	assert.Equal(t, ds3231.Triggered, events[0].State)
}

func TestPollUnitPreference(t *testing.T) {
	clock, chip, _ := newTestClock(t)
	clock.UnitPreference = util.Fahrenheit
	require.NoError(t, clock.Apply())
	chip.Regs[ds3231.RegTempMSB] = 100

	chip.Trigger(ds3231.Alarm1)
	fired, err := clock.Poll()
	require.NoError(t, err)
	require.Len(t, fired, 1)
	assert.Equal(t, 212.0, fired[0].Temperature.Degrees)
	assert.Equal(t, util.Fahrenheit, fired[0].Temperature.Unit)
}

func TestPollNotifierFailure(t *testing.T) {
	clock, chip, notifier := newTestClock(t)
	require.NoError(t, clock.Apply())
	notifier.err = errors.New("broker down")

	chip.Trigger(ds3231.Alarm1)
	fired, err := clock.Poll()
	require.NoError(t, err)
	assert.Len(t, fired, 1)
	assert.Zero(t, chip.Regs[ds3231.RegStatus]&ds3231.StatusA1F)
}

func TestHandleError(t *testing.T) {
	clock, _, _ := newTestClock(t)
	boom := errors.New("boom")

	for i := 0; uint8(i) < clock.MaxErrors; i++ {
		assert.NoError(t, clock.HandleError(boom), "gave up after too few errors")
	}
	err := clock.HandleError(boom)
	assert.ErrorIs(t, err, ErrTooManyErrors)
	assert.ErrorIs(t, err, boom)

	// the count starts over
	assert.NoError(t, clock.HandleError(boom))
}

func TestRunStopsOnTooManyErrors(t *testing.T) {
	clock, chip, _ := newTestClock(t)
	require.NoError(t, clock.Apply())
	chip.Err = errors.New("nack")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := clock.Run(ctx)
	assert.ErrorIs(t, err, ErrTooManyErrors)

	events := clock.Events()
	require.Len(t, events, int(clock.MaxErrors)+1)
	assert.NotEmpty(t, events[0].Error)
}

func TestRunReportsAndStops(t *testing.T) {
	clock, chip, notifier := newTestClock(t)
	require.NoError(t, clock.Apply())
	chip.Trigger(ds3231.Alarm1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- clock.Run(ctx) }()

	require.Eventually(t, func() bool { return len(clock.Events()) == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
	assert.Len(t, notifier.Events(), 1)
}

func TestShouldPoll(t *testing.T) {
	clock, _, _ := newTestClock(t)
	assert.True(t, clock.shouldPoll())

	line := &MockWatcher{level: interrupt.Released}
	clock.SetWatcher(line)
	assert.False(t, clock.shouldPoll())

	line.level = interrupt.Asserted
	assert.True(t, clock.shouldPoll())

	// the line carries a square wave, not alarms
	line.level = interrupt.Released
	clock.OutPin = ds3231.OutSquare1Hz
	assert.True(t, clock.shouldPoll())
}

func TestUpdate(t *testing.T) {
	clock, chip, _ := newTestClock(t)
	require.NoError(t, clock.Apply())

	bad := &Clock{HourMode: 5}
	assert.ErrorIs(t, clock.Update(bad), ErrConfig)
	assert.Equal(t, codec.Hour24, clock.HourMode)

	next := &Clock{
		HourMode: codec.Hour24,
		OutPin:   ds3231.OutSquare1kHz,
		Alarms:   []*AlarmSchedule{{Alarm: ds3231.Alarm2, Match: ds3231.EveryMinute, Enabled: true}},
	}
	require.NoError(t, clock.Update(next))
	assert.Equal(t, ds3231.OutSquare1kHz, clock.OutPin)
	assert.Equal(t, byte(ds3231.ControlBBSQW|ds3231.ControlRS1|ds3231.ControlA2IE), chip.Regs[ds3231.RegControl])
}

func TestNoDevice(t *testing.T) {
	clock := new(Clock)
	assert.ErrorIs(t, clock.Apply(), ErrNoDevice)
	_, err := clock.Poll()
	assert.ErrorIs(t, err, ErrNoDevice)
	_, err = clock.Now()
	assert.ErrorIs(t, err, ErrNoDevice)
	assert.Empty(t, clock.Events())
}

func TestConfigPersistence(t *testing.T) {
	clock, _, _ := newTestClock(t)
	config := &Config{Clock: clock, ServeAt: ":8080"}
	config.Bus.Driver = "periph"
	config.Bus.Number = 1
	config.Pins.Interrupt = 17
	config.NATS.Subject = "rtc.alarm"

	path := filepath.Join(t.TempDir(), "rtclock.yaml")
	require.NoError(t, SaveConfig(path, config))

	loaded, err := ReadConfig(path)
	require.NoError(t, err)
	require.NoError(t, loaded.Clock.Validate())
	assert.Equal(t, "periph", loaded.Bus.Driver)
	assert.Equal(t, 17, loaded.Pins.Interrupt)
	assert.Equal(t, "rtc.alarm", loaded.NATS.Subject)
	assert.Equal(t, util.Duration(time.Millisecond), loaded.Clock.PollInterval)
	assert.Equal(t, int8(-2), loaded.Clock.AgingOffset)
	require.Len(t, loaded.Clock.Alarms, 2)
	assert.Equal(t, clock.Alarms[0].Spec(), loaded.Clock.Alarms[0].Spec())
	assert.Equal(t, clock.Alarms[1].Spec(), loaded.Clock.Alarms[1].Spec())
}

func TestReadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rtclock.yaml")
	require.NoError(t, writeFile(path, `
serveAt: ":8080"
bus:
  driver: embd
  number: 1
clock:
  hourMode: 12h
  outPin: 1Hz
  pollInterval: 30s
  maxErrors: 5
  alarms:
    - alarm: 1
      match: hours
      at: "6:30AM"
      enabled: true
`))

	config, err := ReadConfig(path)
	require.NoError(t, err)
	require.NoError(t, config.Clock.Validate())
	assert.Equal(t, codec.Hour12, config.Clock.HourMode)
	assert.Equal(t, ds3231.OutSquare1Hz, config.Clock.OutPin)
	assert.Equal(t, util.Duration(30*time.Second), config.Clock.PollInterval)
	assert.Equal(t, ds3231.AtTime(6, 30, 0), config.Clock.Alarms[0].Spec())
}

type MockNotifier struct {
	mu     sync.Mutex
	events []*models.AlarmEvent
	err    error
}

func (mn *MockNotifier) AlarmFired(e *models.AlarmEvent) error {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	mn.events = append(mn.events, e)
	return mn.err
}

func (mn *MockNotifier) Events() []*models.AlarmEvent {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	return mn.events
}

type MockWatcher struct {
	level interrupt.Level
}

func (mw *MockWatcher) Level() interrupt.Level {
	return mw.level
}

func (mw *MockWatcher) Close() error { return nil }

func writeFile(path, data string) error {
	return os.WriteFile(path, []byte(data), 0600)
}
