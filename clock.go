package rtclock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/alittlebrighter/rtclock/codec"
	"github.com/alittlebrighter/rtclock/ds3231"
	"github.com/alittlebrighter/rtclock/interrupt"
	"github.com/alittlebrighter/rtclock/models"
	"github.com/alittlebrighter/rtclock/util"
)

var (
	ErrConfig        = errors.New("invalid clock configuration")
	ErrNoDevice      = errors.New("no clock device attached")
	ErrTooManyErrors = errors.New("too many consecutive clock errors")
)

// DefaultPollInterval is used when a Clock has no PollInterval.
const DefaultPollInterval = time.Second

type Config struct {
	Clock *Clock `json:"clock"`
	Bus   struct {
		Driver string `json:"driver"`
		Number int    `json:"number"`
	} `json:"bus"`
	Pins struct {
		// Interrupt is the BCM number of the GPIO wired to INT/SQW; 0 disables the watcher.
		Interrupt int `json:"interrupt"`
	} `json:"pins"`
	NATS struct {
		URL     string `json:"url"`
		Subject string `json:"subject"`
	} `json:"nats"`
	Thermometer struct {
		// Endpoint is another node's /temperature URL served in place of the chip's reading.
		Endpoint string `json:"endpoint,omitempty"`
	} `json:"thermometer"`
	ServeAt string `json:"serveAt"`
}

// Notifier is told about every alarm the clock sees fire.
type Notifier interface {
	AlarmFired(*models.AlarmEvent) error
}

// Clock is the primary struct that holds the configuration of a DS3231 and runs the loop
// that reports its alarms.
type Clock struct {
	HourMode       codec.HourMode        `json:"hourMode"`
	OutPin         ds3231.OutPin         `json:"outPin"`
	AgingOffset    int8                  `json:"agingOffset"`
	Location       string                `json:"location,omitempty"`
	SyncOnStart    bool                  `json:"syncOnStart"`
	Alarms         []*AlarmSchedule      `json:"alarms"`
	PollInterval   util.Duration         `json:"pollInterval"`
	MaxErrors      uint8                 `json:"maxErrors"`
	UnitPreference util.TemperatureUnits `json:"unitPreference"`

	mu         sync.Mutex
	dev        *ds3231.Device
	watcher    interrupt.Watcher
	notifier   Notifier
	events     *util.RingBuffer
	errorCount uint8
}

// AlarmSchedule is the configuration of one chip alarm. At carries the hour and minute; Day
// is the day of month for date matches and the day of week, 1 for Sunday, for weekday
// matches. Second is ignored by alarm 2.
type AlarmSchedule struct {
	Alarm   ds3231.Alarm   `json:"alarm"`
	Match   ds3231.Match   `json:"match"`
	Day     uint8          `json:"day,omitempty"`
	At      util.ClockTime `json:"at"`
	Second  uint8          `json:"second,omitempty"`
	Enabled bool           `json:"enabled"`
}

// Spec converts the schedule to the chip's alarm layout.
func (s *AlarmSchedule) Spec() ds3231.AlarmSpec {
	at := codec.NewTimeOfDay(uint8(s.At.Hour()), uint8(s.At.Minute()), s.Second)
	if s.Alarm == ds3231.Alarm2 {
		at.Second = 0
	}
	switch s.Match {
	case ds3231.MatchDate:
		at.Day = s.Day
	case ds3231.MatchWeekday:
		at.Weekday = s.Day
	}
	return ds3231.AlarmSpec{Match: s.Match, At: at}
}

// AlarmStatus is the programmed state of one alarm as read from the chip.
type AlarmStatus struct {
	Alarm ds3231.Alarm     `json:"alarm"`
	Spec  ds3231.AlarmSpec `json:"spec"`
	State ds3231.State     `json:"state"`
}

func (c *Clock) SetDevice(dev *ds3231.Device) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dev = dev
}

// SetWatcher gates polling on the interrupt line while the output pin is in interrupt mode.
func (c *Clock) SetWatcher(w interrupt.Watcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watcher = w
}

func (c *Clock) SetNotifier(n Notifier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifier = n
}

// SetEventBuffer sets how many alarm events are kept for Events.
func (c *Clock) SetEventBuffer(size uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = util.NewRingBuffer(size)
}

// Validate checks that a clock has a valid configuration. Errors wrap ErrConfig.
func (c *Clock) Validate() error {
	switch {
	case c.HourMode != codec.Hour24 && c.HourMode != codec.Hour12:
		return fmt.Errorf("%w: hour mode %d", ErrConfig, c.HourMode)
	case c.OutPin > ds3231.OutSquare8kHz:
		return fmt.Errorf("%w: output pin %s", ErrConfig, c.OutPin)
	case c.PollInterval < 0:
		return fmt.Errorf("%w: negative poll interval", ErrConfig)
	case c.UnitPreference != "" && c.UnitPreference != util.Celsius && c.UnitPreference != util.Fahrenheit:
		return fmt.Errorf("%w: unit preference %q", ErrConfig, c.UnitPreference)
	}
	if _, err := c.location(); err != nil {
		return fmt.Errorf("%w: location: %w", ErrConfig, err)
	}

	seen := map[ds3231.Alarm]bool{}
	for i, s := range c.Alarms {
		if s == nil {
			return fmt.Errorf("%w: alarm entry #%d is empty", ErrConfig, i+1)
		}
		if seen[s.Alarm] {
			return fmt.Errorf("%w: %s scheduled twice", ErrConfig, s.Alarm)
		}
		seen[s.Alarm] = true
		if err := s.Spec().Validate(s.Alarm); err != nil {
			return fmt.Errorf("%w: alarm entry #%d: %w", ErrConfig, i+1, err)
		}
	}
	return nil
}

func (c *Clock) location() (*time.Location, error) {
	if c.Location == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Location)
}

// Apply programs the chip from the configuration: oscillator, hour mode, output pin, aging
// offset and alarms. Alarms without a schedule are disabled. Stale alarm flags are cleared
// so the interrupt line starts released.
func (c *Clock) Apply() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.apply()
}

func (c *Clock) apply() error {
	if c.dev == nil {
		return ErrNoDevice
	}
	loc, err := c.location()
	if err != nil {
		return fmt.Errorf("%w: location: %w", ErrConfig, err)
	}
	c.dev.Calendar = codec.NewCalendar(loc)

	lost, err := c.dev.LostPower()
	if err != nil {
		return err
	}
	if lost {
		glog.Warning("clock: oscillator stopped since last start, time is not trustworthy")
	}
	if err := c.dev.StartClock(); err != nil {
		return err
	}
	if err := c.switchHourMode(); err != nil {
		return err
	}
	if c.SyncOnStart || lost {
		glog.Infof("clock: setting chip time from host clock")
		if err := c.dev.Set(time.Now()); err != nil {
			return err
		}
	}
	if err := c.dev.SetOutPin(c.OutPin); err != nil {
		return err
	}
	if err := c.dev.SetAgingOffset(c.AgingOffset); err != nil {
		return err
	}

	scheduled := map[ds3231.Alarm]*AlarmSchedule{}
	for _, s := range c.Alarms {
		scheduled[s.Alarm] = s
	}
	for _, a := range []ds3231.Alarm{ds3231.Alarm1, ds3231.Alarm2} {
		s, ok := scheduled[a]
		if ok {
			if err := c.dev.SetAlarm(a, s.Spec()); err != nil {
				return err
			}
		}
		if ok && s.Enabled {
			err = c.dev.EnableAlarm(a)
		} else {
			err = c.dev.DisableAlarm(a)
		}
		if err != nil {
			return err
		}
		if err := c.dev.ClearAlarm(a); err != nil {
			return err
		}
	}

	glog.Infof("clock: applied %s mode, output %s, aging %d, %d alarm(s)",
		c.HourMode, c.OutPin, c.AgingOffset, len(c.Alarms))
	return nil
}

// switchHourMode changes the chip's hour mode and rewrites the current time in the new
// mode, since the chip itself reinterprets the stored hour bits.
func (c *Clock) switchHourMode() error {
	mode, err := c.dev.HourMode()
	if err != nil || mode == c.HourMode {
		return err
	}
	dt, err := c.dev.ReadDateTime()
	if err != nil {
		return err
	}
	if err := c.dev.SetHourMode(c.HourMode); err != nil {
		return err
	}
	return c.dev.WriteDateTime(dt)
}

// Update replaces the configuration with next's and reprograms the chip.
func (c *Clock) Update(next *Clock) error {
	if err := next.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.copySettings(next)
	return c.apply()
}

// Settings returns a copy of the configuration fields, safe to encode while the clock runs.
func (c *Clock) Settings() *Clock {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := new(Clock)
	s.copySettings(c)
	return s
}

func (c *Clock) copySettings(from *Clock) {
	c.HourMode = from.HourMode
	c.OutPin = from.OutPin
	c.AgingOffset = from.AgingOffset
	c.Location = from.Location
	c.SyncOnStart = from.SyncOnStart
	c.Alarms = from.Alarms
	c.PollInterval = from.PollInterval
	c.MaxErrors = from.MaxErrors
	c.UnitPreference = from.UnitPreference
}

// Poll checks both alarms and, for each enabled alarm whose flag is set, records an event,
// notifies and clears the flag. It returns the events it raised.
func (c *Clock) Poll() ([]*models.AlarmEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dev == nil {
		return nil, ErrNoDevice
	}

	var fired []*models.AlarmEvent
	for _, a := range []ds3231.Alarm{ds3231.Alarm1, ds3231.Alarm2} {
		state, err := c.dev.AlarmState(a)
		if err != nil {
			return fired, err
		}
		if state != ds3231.Triggered {
			continue
		}

		event, err := c.alarmEvent(a)
		if err != nil {
			return fired, err
		}
		if err := c.dev.ClearAlarm(a); err != nil {
			return fired, err
		}
		fired = append(fired, event)

		glog.Infof("clock: %s fired at %s", a, event.ChipTime.Format(time.RFC3339))
		c.eventLog().Add(&util.EventLog{
			Alarm:       a,
			State:       state,
			Temperature: event.Temperature.Degrees,
			Units:       event.Temperature.Unit,
			Timestamp:   event.ChipTime,
		})
		if c.notifier != nil {
			if err := c.notifier.AlarmFired(event); err != nil {
				glog.Warningf("clock: notify %s: %v", a, err)
			}
		}
	}
	return fired, nil
}

func (c *Clock) alarmEvent(a ds3231.Alarm) (*models.AlarmEvent, error) {
	spec, err := c.dev.GetAlarm(a)
	if err != nil {
		return nil, err
	}
	now, err := c.dev.Now()
	if err != nil {
		return nil, err
	}
	temp, err := c.dev.Temperature()
	if err != nil {
		return nil, err
	}
	units := c.units()
	return models.NewAlarmEvent(a, spec, now, models.Temperature{
		Degrees: util.ConvertTemp(temp, util.Celsius, units),
		Unit:    units,
	}), nil
}

func (c *Clock) units() util.TemperatureUnits {
	if c.UnitPreference == "" {
		return util.Celsius
	}
	return c.UnitPreference
}

func (c *Clock) eventLog() *util.RingBuffer {
	if c.events == nil {
		c.events = util.NewRingBuffer(60)
	}
	return c.events
}

// HandleError counts consecutive failures and returns ErrTooManyErrors once there have been
// more than MaxErrors of them.
func (c *Clock) HandleError(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.errorCount++
	glog.Errorf("clock: poll failed (%d/%d): %v", c.errorCount, c.MaxErrors, err)
	c.eventLog().Add(&util.EventLog{Units: c.units(), Timestamp: time.Now(), Error: err.Error()})

	if c.errorCount > c.MaxErrors {
		c.errorCount = 0
		return fmt.Errorf("%w: %w", ErrTooManyErrors, err)
	}
	return nil
}

func (c *Clock) resetErrors() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorCount = 0
}

// shouldPoll reports whether a tick has to touch the bus. With a watcher in interrupt mode a
// released line means no enabled alarm has fired.
func (c *Clock) shouldPoll() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.watcher == nil || c.OutPin != ds3231.OutInterrupt {
		return true
	}
	return c.watcher.Level() == interrupt.Asserted
}

func (c *Clock) pollInterval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return time.Duration(c.PollInterval)
}

func (c *Clock) poll() error {
	if _, err := c.Poll(); err != nil {
		return c.HandleError(err)
	}
	c.resetErrors()
	return nil
}

// Run polls the alarms until ctx is done or the error budget is spent.
func (c *Clock) Run(ctx context.Context) error {
	// we want to do something right away
	if err := c.poll(); err != nil {
		return err
	}

	ticker := time.NewTicker(c.pollInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if !c.shouldPoll() {
				continue
			}
			if err := c.poll(); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// Now reads the chip time.
func (c *Clock) Now() (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dev == nil {
		return time.Time{}, ErrNoDevice
	}
	return c.dev.Now()
}

// Set writes t to the chip. Times the chip cannot hold return codec.ErrOutOfRange and leave
// the chip untouched.
func (c *Clock) Set(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dev == nil {
		return ErrNoDevice
	}
	if err := c.dev.CheckEpoch(t.Unix()); err != nil {
		return err
	}
	glog.Infof("clock: set to %s", t.Format(time.RFC3339))
	return c.dev.Set(t)
}

// Temperature returns the chip temperature in Celsius.
func (c *Clock) Temperature() (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dev == nil {
		return 0, ErrNoDevice
	}
	return c.dev.Temperature()
}

// Status reads the chip time together with its oscillator state.
func (c *Clock) Status() (*models.TimeReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dev == nil {
		return nil, ErrNoDevice
	}

	now, err := c.dev.Now()
	if err != nil {
		return nil, err
	}
	mode, err := c.dev.HourMode()
	if err != nil {
		return nil, err
	}
	running, err := c.dev.IsRunning()
	if err != nil {
		return nil, err
	}
	lost, err := c.dev.LostPower()
	if err != nil {
		return nil, err
	}
	return &models.TimeReport{
		Time:      now,
		Epoch:     now.Unix(),
		HourMode:  mode.String(),
		Running:   running,
		LostPower: lost,
	}, nil
}

// AlarmStatuses reads both alarms back from the chip.
func (c *Clock) AlarmStatuses() ([]AlarmStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dev == nil {
		return nil, ErrNoDevice
	}

	var statuses []AlarmStatus
	for _, a := range []ds3231.Alarm{ds3231.Alarm1, ds3231.Alarm2} {
		spec, err := c.dev.GetAlarm(a)
		if err != nil {
			return nil, err
		}
		state, err := c.dev.AlarmState(a)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, AlarmStatus{Alarm: a, Spec: spec, State: state})
	}
	return statuses, nil
}

// Events returns the recorded alarm events and poll failures, oldest first.
func (c *Clock) Events() []*util.EventLog {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eventLog().GetAll()
}
