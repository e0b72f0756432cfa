package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/alittlebrighter/rtclock/codec"
	"github.com/alittlebrighter/rtclock/ds3231"
	"github.com/alittlebrighter/rtclock/i2cbus"
)

const usage = `usage: rtcctl [flags] command [args]

commands:
  now                      print the chip time in UTC
  set RFC3339              set the chip time
  sync                     set the chip time from the host clock
  epoch [seconds]          print or set the time as Unix seconds
  stamp "Jan  2 2006" 15:04:05
                           set the time from date and time strings
  mode [12h|24h]           print or set the hour mode
  alarm N [every|fields]   print or set alarm N; fields run from day to second
  enable N | disable N     set or clear alarm N's interrupt enable
  clear N                  clear alarm N's flag
  status                   print the oscillator, output and alarm state
  temp                     print the temperature
  aging [offset]           print or set the aging offset
  pin [interrupt|1Hz|1kHz|4kHz|8kHz]
                           print or set the INT/SQW pin function
  start | stop             enable or disable the oscillator
`

var (
	driver  = i2cbus.Embd
	busNum  = 1
	weekday = false
)

var errUsage = errors.New("bad arguments")

func main() {
	flag.StringVar(&driver, "driver", driver, "I2C driver: embd or periph.")
	flag.IntVar(&busNum, "bus", busNum, "I2C bus number.")
	flag.BoolVar(&weekday, "weekday", weekday, "Treat the day field of an alarm as a day of week, 1 for Sunday.")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage, "\nflags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	defer glog.Flush()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	bus, err := i2cbus.Open(driver, busNum)
	if err != nil {
		glog.Exitf("ERROR: Can't open I2C bus %d: %v", busNum, err)
	}
	defer bus.Close()

	dev, err := ds3231.New(bus)
	if err != nil {
		glog.Exitf("ERROR: No DS3231 on I2C bus %d: %v", busNum, err)
	}

	if err := run(dev, flag.Args(), os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
		}
		glog.Errorf("ERROR: %s: %v", flag.Arg(0), err)
		glog.Flush()
		os.Exit(1)
	}
}

func run(dev *ds3231.Device, args []string, out io.Writer) error {
	cmd, args := args[0], args[1:]
	switch cmd {
	case "now":
		return printNow(dev, out)
	case "set":
		if len(args) != 1 {
			return errUsage
		}
		t, err := time.Parse(time.RFC3339, args[0])
		if err != nil {
			return err
		}
		if err := setEpoch(dev, t.Unix()); err != nil {
			return err
		}
		return printNow(dev, out)
	case "sync":
		if err := setEpoch(dev, time.Now().Unix()); err != nil {
			return err
		}
		return printNow(dev, out)
	case "epoch":
		if len(args) == 1 {
			epoch, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}
			if err := setEpoch(dev, epoch); err != nil {
				return err
			}
		}
		epoch, err := dev.Epoch()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, epoch)
		return nil
	case "stamp":
		if len(args) != 2 {
			return errUsage
		}
		if err := dev.SetDateTimeStamp(args[0], args[1]); err != nil {
			return err
		}
		return printNow(dev, out)
	case "mode":
		if len(args) == 1 {
			var mode codec.HourMode
			if err := mode.UnmarshalText([]byte(args[0])); err != nil {
				return err
			}
			if err := dev.SetHourMode(mode); err != nil {
				return err
			}
		}
		mode, err := dev.HourMode()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, mode)
		return nil
	case "alarm":
		return alarm(dev, args, out)
	case "enable", "disable", "clear":
		a, err := alarmArg(args)
		if err != nil {
			return err
		}
		switch cmd {
		case "enable":
			err = dev.EnableAlarm(a)
		case "disable":
			err = dev.DisableAlarm(a)
		default:
			err = dev.ClearAlarm(a)
		}
		if err != nil {
			return err
		}
		return printAlarm(dev, a, out)
	case "status":
		return printStatus(dev, out)
	case "temp":
		temp, err := dev.Temperature()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%.2f°C\n", temp)
		return nil
	case "aging":
		if len(args) == 1 {
			offset, err := strconv.ParseInt(args[0], 10, 8)
			if err != nil {
				return err
			}
			if err := dev.SetAgingOffset(int8(offset)); err != nil {
				return err
			}
		}
		offset, err := dev.AgingOffset()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, offset)
		return nil
	case "pin":
		if len(args) == 1 {
			var p ds3231.OutPin
			if err := p.UnmarshalText([]byte(args[0])); err != nil {
				return err
			}
			if err := dev.SetOutPin(p); err != nil {
				return err
			}
		}
		p, err := dev.OutPin()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, p)
		return nil
	case "start":
		return dev.StartClock()
	case "stop":
		return dev.StopClock()
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

// setEpoch writes epoch after checking the chip can hold it.
func setEpoch(dev *ds3231.Device, epoch int64) error {
	if err := dev.CheckEpoch(epoch); err != nil {
		return err
	}
	return dev.SetEpoch(epoch)
}

func alarmArg(args []string) (ds3231.Alarm, error) {
	if len(args) < 1 {
		return 0, errUsage
	}
	n, err := strconv.ParseUint(args[0], 10, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: alarm %q", errUsage, args[0])
	}
	a := ds3231.Alarm(n)
	if a != ds3231.Alarm1 && a != ds3231.Alarm2 {
		return 0, fmt.Errorf("%w: %d", ds3231.ErrAlarm, n)
	}
	return a, nil
}

func alarm(dev *ds3231.Device, args []string, out io.Writer) error {
	a, err := alarmArg(args)
	if err != nil {
		return err
	}
	args = args[1:]
	if len(args) == 0 {
		return printAlarm(dev, a, out)
	}

	var fields []uint8
	if !(len(args) == 1 && args[0] == "every") {
		for _, arg := range args {
			v, err := strconv.ParseUint(arg, 10, 8)
			if err != nil {
				return fmt.Errorf("%w: field %q", errUsage, arg)
			}
			fields = append(fields, uint8(v))
		}
	}
	spec, err := ds3231.AlarmFromFields(a, fields...)
	if err != nil {
		return err
	}
	if weekday && spec.Match == ds3231.MatchDate {
		spec.Match = ds3231.MatchWeekday
		spec.At.Weekday, spec.At.Day = spec.At.Day, 0
	}
	if err := spec.Validate(a); err != nil {
		return err
	}
	if err := dev.SetAlarm(a, spec); err != nil {
		return err
	}
	return printAlarm(dev, a, out)
}

func printNow(dev *ds3231.Device, out io.Writer) error {
	now, err := dev.Now()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, now.UTC().Format(time.RFC3339))
	return nil
}

func printAlarm(dev *ds3231.Device, a ds3231.Alarm, out io.Writer) error {
	spec, err := dev.GetAlarm(a)
	if err != nil {
		return err
	}
	state, err := dev.AlarmState(a)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %s (%s)\n", a, strings.TrimSpace(spec.Match.String()+" "+describe(spec)), state)
	return nil
}

func describe(spec ds3231.AlarmSpec) string {
	at := spec.At
	clock := fmt.Sprintf("%02d:%02d:%02d", at.Hour, at.Minute, at.Second)
	switch spec.Match {
	case ds3231.EverySecond, ds3231.EveryMinute:
		return ""
	case ds3231.MatchSeconds:
		return fmt.Sprintf("at :%02d", at.Second)
	case ds3231.MatchMinutes:
		return fmt.Sprintf("at xx:%02d:%02d", at.Minute, at.Second)
	case ds3231.MatchDate:
		return fmt.Sprintf("on day %d at %s", at.Day, clock)
	case ds3231.MatchWeekday:
		if at.Weekday < 1 || at.Weekday > 7 {
			return fmt.Sprintf("on weekday %d at %s", at.Weekday, clock)
		}
		return fmt.Sprintf("on %s at %s", time.Weekday(at.Weekday-1), clock)
	}
	return "at " + clock
}

func printStatus(dev *ds3231.Device, out io.Writer) error {
	var lines []string
	add := func(name string, v interface{}, err error) error {
		if err != nil {
			return err
		}
		lines = append(lines, fmt.Sprintf("%-12s %v", name+":", v))
		return nil
	}

	now, err := dev.Now()
	if err := add("time", now.UTC().Format(time.RFC3339), err); err != nil {
		return err
	}
	mode, err := dev.HourMode()
	if err := add("mode", mode, err); err != nil {
		return err
	}
	running, err := dev.IsRunning()
	if err := add("running", running, err); err != nil {
		return err
	}
	lost, err := dev.LostPower()
	if err := add("lost power", lost, err); err != nil {
		return err
	}
	pin, err := dev.OutPin()
	if err := add("pin", pin, err); err != nil {
		return err
	}
	on, err := dev.Is32kHz()
	if err := add("32kHz", on, err); err != nil {
		return err
	}
	aging, err := dev.AgingOffset()
	if err := add("aging", aging, err); err != nil {
		return err
	}
	temp, err := dev.Temperature()
	if err := add("temperature", fmt.Sprintf("%.2f°C", temp), err); err != nil {
		return err
	}
	fmt.Fprintln(out, strings.Join(lines, "\n"))

	for _, a := range []ds3231.Alarm{ds3231.Alarm1, ds3231.Alarm2} {
		if err := printAlarm(dev, a, out); err != nil {
			return err
		}
	}
	return nil
}
