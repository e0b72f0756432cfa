package main

import (
	"context"
	"flag"
	"net/http"

	"github.com/golang/glog"

	"github.com/alittlebrighter/rtclock"
	"github.com/alittlebrighter/rtclock/ds3231"
	"github.com/alittlebrighter/rtclock/i2cbus"
	"github.com/alittlebrighter/rtclock/interrupt"
	"github.com/alittlebrighter/rtclock/publisher"
	"github.com/alittlebrighter/rtclock/thermometer"
)

var (
	ConfigPath = "/etc/rtclock.conf"
	natsURL    = ""
)

// newMeter reads the configured remote thermometer, or the clock chip when there is none.
func newMeter(config *rtclock.Config) (thermometer.Thermometer, error) {
	if endpoint := config.Thermometer.Endpoint; endpoint != "" {
		return thermometer.NewRemote(endpoint)
	}
	return thermometer.NewLocal(config.Clock), nil
}

func main() {
	flag.StringVar(&ConfigPath, "config", ConfigPath, "Path to the configuration file to use.")
	flag.StringVar(&natsURL, "natsUrl", natsURL, "Url for NATS instance to connect to; overrides the configuration file.")
	flag.Parse()
	defer glog.Flush()

	glog.Info("Starting clock.")

	config, err := rtclock.ReadConfig(ConfigPath)
	if err != nil {
		glog.Exitf("Could not read configuration: %v", err)
	}
	if config.Clock == nil {
		config.Clock = new(rtclock.Clock)
	}
	if err := config.Clock.Validate(); err != nil {
		glog.Exit(err)
	}
	if natsURL != "" {
		config.NATS.URL = natsURL
	}

	bus, err := i2cbus.Open(config.Bus.Driver, config.Bus.Number)
	if err != nil {
		glog.Exitf("Error opening I2C bus: %v", err)
	}
	defer bus.Close()

	dev, err := ds3231.New(bus)
	if err != nil {
		glog.Exitf("No DS3231 on I2C bus %d: %v", config.Bus.Number, err)
	}

	clock := config.Clock
	clock.SetDevice(dev)
	clock.SetEventBuffer(60)

	if pin := config.Pins.Interrupt; pin != 0 {
		watcher, err := interrupt.NewGPIOWatcher(pin)
		if err != nil {
			glog.Exitf("Error opening GPIO: %v", err)
		}
		defer watcher.Close()
		clock.SetWatcher(watcher)
	}

	if config.NATS.URL != "" {
		pub, err := publisher.Connect(config.NATS.URL, config.NATS.Subject)
		if err != nil {
			glog.Warningf("Could not connect to message bus: %v", err)
		} else {
			defer pub.Close()
			clock.SetNotifier(pub)
			if err := pub.ServeTime(clock); err != nil {
				glog.Warningf("Could not serve time requests: %v", err)
			}
		}
	}

	if err := clock.Apply(); err != nil {
		glog.Exitf("Error programming clock: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := clock.Run(ctx); err != nil {
			glog.Errorf("Clock loop stopped: %v", err)
		}
	}()

	meter, err := newMeter(config)
	if err != nil {
		glog.Exitf("Error setting up thermometer: %v", err)
	}
	defer meter.Shutdown()

	app := &appContext{
		clock:      clock,
		config:     config,
		configPath: ConfigPath,
		meter:      meter,
	}
	app.routes(http.DefaultServeMux)

	glog.Infof("Starting web server at %s", config.ServeAt)
	glog.Fatal(http.ListenAndServe(config.ServeAt, nil))
}
